package populator

import (
	"context"
	"fmt"
	"strings"

	"matter_intake_backend/internal/manifest"
	"matter_intake_backend/internal/matter"
	"matter_intake_backend/platform/apperr"
)

// AddFilenotes writes each note to the matter in order.
func (p *Populator) AddFilenotes(ctx context.Context, matterID string, notes []string) error {
	for _, note := range notes {
		if strings.TrimSpace(note) == "" {
			continue
		}
		if err := p.client.CreateFileNote(ctx, matterID, note); err != nil {
			return apperr.External("create file note", err)
		}
	}
	return nil
}

// AddIssuesAsFilenotes writes the accumulated issues as one note. Issues that
// came from an external submission are written as-is; otherwise multiple
// issues are numbered and a disclaimer note follows.
func (p *Populator) AddIssuesAsFilenotes(ctx context.Context, matterID string, issues []string) error {
	if len(issues) == 0 {
		return nil
	}

	tag := p.policy.Notes.ExternalSubmissionTag
	external := false
	if tag != "" {
		for _, issue := range issues {
			if strings.Contains(issue, tag) {
				external = true
				break
			}
		}
	}

	var text string
	if external || len(issues) == 1 {
		text = strings.Join(issues, "\n")
	} else {
		var b strings.Builder
		for i, issue := range issues {
			if i > 0 {
				b.WriteString("\n")
			}
			fmt.Fprintf(&b, "%d. %s", i+1, issue)
		}
		text = b.String()
	}

	notes := []string{text}
	if !external && p.policy.Notes.Disclaimer != "" {
		notes = append(notes, p.policy.Notes.Disclaimer)
	}
	return p.AddFilenotes(ctx, matterID, notes)
}

// AddTasks creates the manifest's tasks on the matter.
func (p *Populator) AddTasks(ctx context.Context, matterID string, tasks []manifest.Task) error {
	for _, t := range tasks {
		task := matter.Task{Name: t.Name, Description: t.Description, DueDate: t.DueDate, AssigneeID: t.AssigneeID}
		if err := p.client.CreateTask(ctx, matterID, task); err != nil {
			return apperr.External(fmt.Sprintf("create task %q", t.Name), err)
		}
	}
	return nil
}
