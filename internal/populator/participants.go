package populator

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"matter_intake_backend/internal/manifest"
	"matter_intake_backend/internal/matter"
	"matter_intake_backend/internal/policy"
	"matter_intake_backend/platform/apperr"
)

// roleIndex maps a lowercased role name to the participants linked under it.
type roleIndex map[string][]matter.MatterParticipant

func roleKey(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}

func (idx roleIndex) ids(role string) []string {
	linked := idx[roleKey(role)]
	ids := make([]string, 0, len(linked))
	for _, mp := range linked {
		ids = append(ids, mp.ParticipantID)
	}
	return ids
}

func (idx roleIndex) add(role string, mp matter.MatterParticipant) {
	idx[roleKey(role)] = append(idx[roleKey(role)], mp)
}

// AddParticipants links the manifest's participants to the matter and
// returns the issue notes raised on the way. Provisioning failures abort;
// single link failures are logged and skipped.
func (p *Populator) AddParticipants(ctx context.Context, matterID string, in manifest.Participants) ([]string, error) {
	log := p.log.WithContext(ctx)

	linked, err := p.client.ListMatterParticipants(ctx, matterID)
	if err != nil {
		return nil, apperr.External("load matter participants", err)
	}
	index := roleIndex{}
	for _, mp := range linked {
		index.add(mp.TypeName, mp)
	}

	var issues []string
	createdByRef := map[string]string{}
	createdByRole := map[string][]string{}

	link := func(participantID, typeID, role string) bool {
		if res := p.provisioner.Link(ctx, matterID, participantID, typeID); !res.OK() {
			log.Warn("participant link failed", "operation", res.Op,
				"participant_id", participantID, "type_id", typeID, "error", res.Err)
			return false
		}
		index.add(role, matter.MatterParticipant{ParticipantID: participantID, TypeID: typeID, TypeName: role})
		return true
	}

	for _, d := range in.New {
		if existing := index.ids(d.TypeName); len(existing) > 0 && !p.allowsSecond(d, len(existing)) {
			issues = append(issues, fmt.Sprintf("A %s is already on the matter, so %s was not added.", d.TypeName, d.Label()))
			continue
		}

		out, err := p.provisioner.ProcessNewParticipant(ctx, d)
		if err != nil {
			return issues, err
		}
		issues = append(issues, out.Issues...)

		if !link(out.ParticipantID, d.TypeID, d.TypeName) {
			continue
		}
		if d.Ref != "" {
			createdByRef[d.Ref] = out.ParticipantID
		}
		createdByRole[roleKey(d.TypeName)] = append(createdByRole[roleKey(d.TypeName)], out.ParticipantID)
	}

	for _, e := range in.Existing {
		if p.isSingleHolderRole(e.TypeName) {
			if conflict, ok := conflictingHolder(index[roleKey(e.TypeName)], e.ParticipantID); ok {
				issues = append(issues, fmt.Sprintf(
					"%s is already linked as %s, so %s was not linked. Please review which one is correct.",
					displayName(conflict), e.TypeName, orID(e.DisplayName, e.ParticipantID)))
				continue
			}
			if slices.Contains(index.ids(e.TypeName), e.ParticipantID) {
				continue
			}
		}
		link(e.ParticipantID, e.TypeID, e.TypeName)
	}

	for _, l := range in.LinkMatter {
		for _, source := range p.linkSources(l, createdByRef, createdByRole) {
			link(source, l.TargetTypeID, l.TargetRole)
		}
	}

	return issues, nil
}

// allowsSecond is the co-buyer/co-seller exception: a descriptor flagged as
// the second buyer or seller may join exactly one existing holder.
func (p *Populator) allowsSecond(d manifest.ParticipantDescriptor, holders int) bool {
	if !d.Second || holders != 1 {
		return false
	}
	return policy.SameRole(d.TypeName, p.policy.Roles.Buyer) || policy.SameRole(d.TypeName, p.policy.Roles.Seller)
}

func (p *Populator) isSingleHolderRole(role string) bool {
	return policy.SameRole(role, p.policy.Roles.Council) || policy.SameRole(role, p.policy.Roles.WaterAuthority)
}

// linkSources resolves the participant ids a directive links. Client and
// other-side targets fan out over every participant created for the source
// role; other targets link one source.
func (p *Populator) linkSources(l manifest.LinkDirective, byRef map[string]string, byRole map[string][]string) []string {
	fanOut := policy.SameRole(l.TargetRole, p.policy.Roles.Client) || policy.SameRole(l.TargetRole, p.policy.Roles.OtherSide)
	if fanOut && l.SourceRole != "" {
		if ids := byRole[roleKey(l.SourceRole)]; len(ids) > 0 {
			return ids
		}
	}

	switch {
	case l.SourceID != "":
		return []string{l.SourceID}
	case l.SourceRef != "" && byRef[l.SourceRef] != "":
		return []string{byRef[l.SourceRef]}
	case l.SourceRole != "" && len(byRole[roleKey(l.SourceRole)]) > 0:
		return byRole[roleKey(l.SourceRole)][:1]
	}

	p.log.Warn("link directive has no resolvable source",
		"source_ref", l.SourceRef, "source_role", l.SourceRole, "target_role", l.TargetRole)
	return nil
}

func conflictingHolder(holders []matter.MatterParticipant, id string) (matter.MatterParticipant, bool) {
	for _, h := range holders {
		if h.ParticipantID != id {
			return h, true
		}
	}
	return matter.MatterParticipant{}, false
}

func displayName(mp matter.MatterParticipant) string {
	return orID(mp.DisplayName, mp.ParticipantID)
}

func orID(name, id string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return id
}
