package saga

import (
	"context"
	"fmt"
	"strings"

	"matter_intake_backend/internal/manifest"
	"matter_intake_backend/internal/matter"
	"matter_intake_backend/platform/apperr"
)

func (o *Orchestrator) createMatter(ctx context.Context, state *State) ([]string, error) {
	if state.MatterID != "" {
		// Replayed after a reset: the matter already exists.
		return nil, nil
	}

	job, err := o.jobs.Get(ctx, state.JobID)
	if err != nil {
		return nil, err
	}
	sub := job.Submission

	if strings.TrimSpace(sub.TemplateID) == "" {
		return nil, apperr.Validation("submission has no template id").
			WithCode(apperr.CodeMissingTemplate).
			WithUserMessage("The intake submission did not name a matter template.")
	}
	if strings.TrimSpace(sub.MatterName) == "" {
		return nil, apperr.Validation("submission has no matter name").
			WithCode(apperr.CodeMissingMatterName).
			WithUserMessage("The intake submission did not include a matter name.")
	}

	created, err := o.matters.CreateMatter(ctx, matter.MatterCreate{
		Name:       strings.TrimSpace(sub.MatterName),
		TemplateID: sub.TemplateID,
		Reference:  state.CorrelationID,
	})
	if err != nil {
		return nil, apperr.External("create matter", err)
	}

	if err := o.store.SetMatterID(ctx, state.CorrelationID, created.ID); err != nil {
		return nil, err
	}
	state.MatterID = created.ID
	return nil, nil
}

func (o *Orchestrator) createManifest(ctx context.Context, state *State) ([]string, error) {
	if state.Manifest != nil {
		return nil, nil
	}

	job, err := o.jobs.Get(ctx, state.JobID)
	if err != nil {
		return nil, err
	}

	m, issues, err := o.builder.Build(job.Submission)
	if err != nil {
		return issues, err
	}
	issues = append(issues, o.catalogIssues(ctx, m)...)
	if err := o.store.SetManifest(ctx, state.CorrelationID, m); err != nil {
		return issues, err
	}
	state.Manifest = m
	return issues, nil
}

// catalogIssues reports manifest participant types and data collections the
// case-management system does not define. An empty or unavailable catalogue
// is not checked.
func (o *Orchestrator) catalogIssues(ctx context.Context, m *manifest.Manifest) []string {
	log := o.log.WithContext(ctx)
	var issues []string

	if typeIDs := participantTypeIDs(m.Participants); len(typeIDs) > 0 {
		types, err := o.matters.ListParticipantTypes(ctx)
		switch {
		case err != nil:
			log.ExternalCallFailed("list participant types", err)
			issues = append(issues, "Participant types were not checked: the case-management system did not return them.")
		case len(types) > 0:
			known := make(map[string]struct{}, len(types))
			for _, t := range types {
				known[t.ID] = struct{}{}
			}
			for _, id := range typeIDs {
				if _, ok := known[id]; !ok {
					issues = append(issues, fmt.Sprintf("Participant type %s is not defined in the case-management system.", id))
				}
			}
		}
	}

	if len(m.Collections) == 0 {
		return issues
	}
	collections, err := o.matters.ListDataCollections(ctx)
	if err != nil {
		log.ExternalCallFailed("list data collections", err)
		return append(issues, "Data collections were not checked: the case-management system did not return them.")
	}
	if len(collections) == 0 {
		return issues
	}
	known := make(map[string]struct{}, len(collections))
	for _, c := range collections {
		known[c.ID] = struct{}{}
	}
	for _, id := range m.CollectionIDs() {
		if _, ok := known[id]; !ok {
			issues = append(issues, fmt.Sprintf("Data collection %s is not defined in the case-management system.", id))
		}
	}
	return issues
}

// participantTypeIDs lists every type id the participant directives use, in
// order and without duplicates.
func participantTypeIDs(p manifest.Participants) []string {
	var ids []string
	seen := map[string]struct{}{}
	add := func(id string) {
		if _, ok := seen[id]; ok || id == "" {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, d := range p.New {
		add(d.TypeID)
	}
	for _, e := range p.Existing {
		add(e.TypeID)
	}
	for _, l := range p.LinkMatter {
		add(l.TargetTypeID)
	}
	return ids
}

// requireMatter checks the preconditions shared by the populate stages.
func requireMatter(state *State) (string, *manifest.Manifest, error) {
	if state.MatterID == "" {
		return "", nil, apperr.Precondition(apperr.CodeMissingMatter, "saga has no matter id").
			WithUserMessage("No matter was recorded for this intake, so it cannot be populated.")
	}
	if state.Manifest == nil {
		return "", nil, apperr.Precondition(apperr.CodeMissingManifest, "saga has no manifest").
			WithUserMessage("No manifest was recorded for this intake, so the matter cannot be populated.")
	}
	return state.MatterID, state.Manifest, nil
}

func (o *Orchestrator) populateParticipants(ctx context.Context, state *State) ([]string, error) {
	matterID, m, err := requireMatter(state)
	if err != nil {
		return nil, err
	}
	return o.populator.AddParticipants(ctx, matterID, m.Participants)
}

func (o *Orchestrator) populateCollections(ctx context.Context, state *State) ([]string, error) {
	matterID, m, err := requireMatter(state)
	if err != nil {
		return nil, err
	}
	return o.populator.AddCollections(ctx, matterID, m)
}

// populateFilenotes writes the manifest's notes and tasks, then the issues
// accumulated so far as one summary note.
func (o *Orchestrator) populateFilenotes(ctx context.Context, state *State) ([]string, error) {
	matterID, m, err := requireMatter(state)
	if err != nil {
		return nil, err
	}
	if err := o.populator.AddFilenotes(ctx, matterID, m.Filenotes); err != nil {
		return nil, err
	}
	if err := o.populator.AddTasks(ctx, matterID, m.Tasks); err != nil {
		return nil, err
	}
	if err := o.populator.AddIssuesAsFilenotes(ctx, matterID, state.Issues); err != nil {
		return nil, err
	}
	return nil, nil
}

// populateFiles attaches documents. Per-file failures are issues; they are
// written to the matter here because the summary note has already been made.
func (o *Orchestrator) populateFiles(ctx context.Context, state *State) ([]string, error) {
	matterID, m, err := requireMatter(state)
	if err != nil {
		return nil, err
	}
	issues := o.populator.AddFiles(ctx, matterID, m.Files)
	if err := o.populator.AddIssuesAsFilenotes(ctx, matterID, issues); err != nil {
		o.log.WithContext(ctx).ExternalCallFailed("write file issues", err, "matter_id", matterID)
	}
	return issues, nil
}

func (o *Orchestrator) changeStep(ctx context.Context, state *State) ([]string, error) {
	matterID, _, err := requireMatter(state)
	if err != nil {
		return nil, err
	}
	if err := o.populator.ChangeStep(ctx, matterID); err != nil {
		return nil, err
	}
	if err := o.jobs.MarkCompleted(ctx, state.JobID, matterID, o.now().UTC()); err != nil {
		return nil, err
	}
	if err := o.jobs.MarkMatterPopulated(ctx, state.TenantID, matterID); err != nil {
		return nil, err
	}
	return nil, nil
}
