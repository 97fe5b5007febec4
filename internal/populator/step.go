package populator

import (
	"context"
	"fmt"
	"strings"

	"matter_intake_backend/internal/matter"
	"matter_intake_backend/platform/apperr"
)

// ChangeStep moves the matter to the configured target step. A matter
// already at the target is left alone.
func (p *Populator) ChangeStep(ctx context.Context, matterID string) error {
	cfg := p.policy.StepChange

	info, err := p.client.GetStepInfo(ctx, matterID)
	if err != nil {
		return apperr.External("get step info", err)
	}
	if strings.EqualFold(info.Current.Name, cfg.TargetStep) {
		return nil
	}

	var target *matter.Step
	for i := range info.Available {
		if strings.EqualFold(info.Available[i].Name, cfg.TargetStep) {
			target = &info.Available[i]
			break
		}
	}
	if target == nil {
		return apperr.Precondition(apperr.CodeMissingConfig, fmt.Sprintf("step %q is not available", cfg.TargetStep)).
			WithUserMessage(fmt.Sprintf("The matter could not be moved to step %q because that step is not available from %q.", cfg.TargetStep, info.Current.Name))
	}

	assignee := cfg.DefaultAssignee
	if assignee == "" {
		assignee = info.AssigneeID
	}

	var data map[string]string
	for _, key := range info.RequiredData {
		value, ok := cfg.RequiredStepData[key]
		if !ok {
			return apperr.Precondition(apperr.CodeMissingConfig, fmt.Sprintf("no value configured for step data %q", key)).
				WithUserMessage(fmt.Sprintf("The matter could not be moved to step %q because %q is required and not configured.", cfg.TargetStep, key))
		}
		if data == nil {
			data = make(map[string]string, len(info.RequiredData))
		}
		data[key] = value
	}

	err = p.client.ChangeStep(ctx, matterID, matter.StepChange{StepID: target.ID, AssigneeID: assignee, Data: data})
	if err != nil {
		return apperr.External("change step", err)
	}
	return nil
}
