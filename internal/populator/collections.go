package populator

import (
	"context"
	"fmt"

	"matter_intake_backend/internal/manifest"
	"matter_intake_backend/internal/matter"
	"matter_intake_backend/internal/policy"
	"matter_intake_backend/platform/apperr"
)

// AddCollections creates a record for every referenced data collection and
// writes the manifest's field values into it according to the field policy.
// Record values are read sequentially, valuesPageSize per page for at most
// valuesMaxPages pages, pausing between pages.
func (p *Populator) AddCollections(ctx context.Context, matterID string, m *manifest.Manifest) ([]string, error) {
	log := p.log.WithContext(ctx)

	referenced := map[string]struct{}{}
	for _, id := range m.CollectionIDs() {
		referenced[id] = struct{}{}
		if _, err := p.client.CreateCollectionRecord(ctx, matterID, id); err != nil {
			log.Warn("collection record create failed", "collection_id", id, "error", err)
		}
	}
	if len(referenced) == 0 {
		return nil, nil
	}

	incoming := map[string]string{}
	for _, c := range m.Collections {
		for field, value := range c.Fields {
			incoming[field] = value
		}
	}

	if field := p.policy.PropertyField; field != "" {
		id, err := p.propertyParticipantID(ctx, matterID)
		if err != nil {
			return nil, err
		}
		if id != "" {
			incoming[field] = id
		}
	}

	var (
		issues []string
		gaps   []string
	)
	for page := 1; page <= valuesMaxPages; page++ {
		if page > 1 {
			if err := pause(ctx, p.pagePause); err != nil {
				return issues, err
			}
		}

		res, err := p.client.ListRecordValues(ctx, matterID, matter.Page{Number: page, Size: valuesPageSize})
		if err != nil {
			return issues, apperr.External("list collection values", err)
		}

		for _, v := range res.Items {
			if _, ok := referenced[v.CollectionID]; !ok {
				continue
			}
			value, ok := incoming[v.Field]
			if !ok {
				continue
			}

			decision := Decide(p.policy.ActionFor(v.Field), m.VacantLand, v.Value, value)
			switch decision.Status {
			case StatusUpdate:
				if err := p.client.UpdateRecordValue(ctx, v.ID, decision.Value); err != nil {
					return issues, apperr.External(fmt.Sprintf("update field %s", v.Field), err)
				}
			case StatusNotFound:
				gaps = append(gaps, v.Field)
			}
		}

		if !res.HasMore {
			break
		}
	}

	if len(gaps) > 0 {
		log.Warn("collection fields without an update rule", "fields", gaps)
		for _, field := range gaps {
			issues = append(issues, fmt.Sprintf("Field %s has no update rule, so its value was not written.", field))
		}
	}
	return issues, nil
}

func (p *Populator) propertyParticipantID(ctx context.Context, matterID string) (string, error) {
	linked, err := p.client.ListMatterParticipants(ctx, matterID)
	if err != nil {
		return "", apperr.External("load matter participants", err)
	}
	for _, mp := range linked {
		if policy.SameRole(mp.TypeName, p.policy.Roles.Property) {
			return mp.ParticipantID, nil
		}
	}
	return "", nil
}
