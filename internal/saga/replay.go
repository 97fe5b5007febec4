package saga

import (
	"context"
	"fmt"

	"matter_intake_backend/platform/apperr"
	"matter_intake_backend/platform/logger"
)

// Replay republishes the event for the stage a saga is waiting on. An errored
// saga must be given the stage to resume from; its status is reset to that
// stage's required status first. Completed stages stay completed, so
// replaying a healthy saga only re-drives the stage it is already at.
func (o *Orchestrator) Replay(ctx context.Context, correlationID string, from Path) (Path, error) {
	state, err := o.store.Find(ctx, correlationID)
	if err != nil {
		return "", err
	}

	switch {
	case state.Status == StatusError:
		if from == "" {
			return "", apperr.BadRequest("saga is in error-processing; a stage to resume from is required").
				WithCode(apperr.CodeStatusConflict)
		}
		st, ok := lookupStage(from)
		if !ok {
			return "", apperr.BadRequest(fmt.Sprintf("unknown stage %q", from))
		}
		if err := o.store.ResetStatus(ctx, correlationID, st.requires); err != nil {
			return "", err
		}
		state.Status = st.requires
	case state.Status == StatusCompleted:
		return "", apperr.Conflict("saga already completed").WithCode(apperr.CodeStatusConflict)
	case from != "":
		if st, ok := lookupStage(from); !ok || st.requires != state.Status {
			return "", apperr.Conflict(fmt.Sprintf("saga is at %s, not at stage %s", state.Status, from)).
				WithCode(apperr.CodeStatusConflict)
		}
	}

	path, ok := PathFor(state.Status)
	if !ok {
		return "", apperr.Internal(fmt.Sprintf("no stage runs from status %q", state.Status))
	}

	ctx = logger.ContextWithSaga(ctx, state.CorrelationID, state.JobID)
	o.log.WithContext(ctx).Info("replaying saga stage", "stage", path, "status", state.Status)
	if err := o.publisher.Publish(ctx, path, Event{FileID: state.CorrelationID, JobID: state.JobID}); err != nil {
		return "", fmt.Errorf("publish %s: %w", path, err)
	}
	return path, nil
}
