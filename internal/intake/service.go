package intake

import (
	"context"
	"fmt"

	"matter_intake_backend/internal/jobs"
	"matter_intake_backend/internal/manifest"
	"matter_intake_backend/internal/saga"
	"matter_intake_backend/platform/apperr"
	"matter_intake_backend/platform/logger"
	"matter_intake_backend/platform/validator"

	"github.com/google/uuid"
)

// JobCreator stores submitted jobs.
type JobCreator interface {
	Create(ctx context.Context, job jobs.Job) (jobs.Job, error)
}

// SagaReader loads saga state by correlation id.
type SagaReader interface {
	Find(ctx context.Context, correlationID string) (saga.State, error)
}

// Replayer re-drives a saga from its current or a named stage.
type Replayer interface {
	Replay(ctx context.Context, correlationID string, from saga.Path) (saga.Path, error)
}

// SubmitRequest is one matter to provision. FileID becomes the saga's
// correlation id and must be unique.
type SubmitRequest struct {
	FileID     string              `json:"fileId" validate:"required,max=200"`
	Submission manifest.Submission `json:"submission"`
}

// SubmitResponse acknowledges an accepted submission.
type SubmitResponse struct {
	JobID  string `json:"jobId"`
	FileID string `json:"fileId"`
	Status string `json:"status"`
}

// Service accepts submissions and exposes saga state.
type Service struct {
	jobs      JobCreator
	sagas     SagaReader
	replayer  Replayer
	publisher saga.Publisher
	val       *validator.Validator
	log       *logger.Logger
}

// NewService creates the intake service.
func NewService(jobStore JobCreator, sagas SagaReader, replayer Replayer, publisher saga.Publisher, val *validator.Validator, log *logger.Logger) *Service {
	return &Service{jobs: jobStore, sagas: sagas, replayer: replayer, publisher: publisher, val: val, log: log}
}

// Submit stores the job and publishes the start event. A file id that
// already has a saga is rejected.
func (s *Service) Submit(ctx context.Context, tenantID string, req SubmitRequest) (SubmitResponse, error) {
	if err := s.val.Struct(req); err != nil {
		return SubmitResponse{}, apperr.Validation("invalid submission").
			WithDetails(validator.Describe(err))
	}

	if _, err := s.sagas.Find(ctx, req.FileID); err == nil {
		return SubmitResponse{}, jobs.ErrFileSubmitted(req.FileID)
	} else if !apperr.Is(err, apperr.KindNotFound) {
		return SubmitResponse{}, fmt.Errorf("check saga: %w", err)
	}

	job, err := s.jobs.Create(ctx, jobs.Job{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		FileID:     req.FileID,
		Submission: req.Submission,
	})
	if apperr.Is(err, apperr.KindConflict) {
		return SubmitResponse{}, err
	}
	if err != nil {
		return SubmitResponse{}, fmt.Errorf("store job: %w", err)
	}

	ctx = logger.ContextWithSaga(ctx, req.FileID, job.ID)
	if err := s.publisher.Publish(ctx, saga.PathStart, saga.Event{FileID: req.FileID, JobID: job.ID}); err != nil {
		return SubmitResponse{}, fmt.Errorf("publish start: %w", err)
	}
	s.log.WithContext(ctx).Info("intake job accepted", "tenant_id", tenantID)

	return SubmitResponse{JobID: job.ID, FileID: req.FileID, Status: "accepted"}, nil
}

// GetSaga returns the saga for fileID if it belongs to tenantID. Other
// tenants' sagas are reported as missing.
func (s *Service) GetSaga(ctx context.Context, tenantID, fileID string) (saga.State, error) {
	state, err := s.sagas.Find(ctx, fileID)
	if err != nil {
		return saga.State{}, err
	}
	if state.TenantID != tenantID {
		return saga.State{}, saga.ErrNotFound(fileID)
	}
	return state, nil
}

// Replay re-drives the caller's saga. See saga.Orchestrator.Replay.
func (s *Service) Replay(ctx context.Context, tenantID, fileID string, from saga.Path) (saga.Path, error) {
	if _, err := s.GetSaga(ctx, tenantID, fileID); err != nil {
		return "", err
	}
	return s.replayer.Replay(ctx, fileID, from)
}
