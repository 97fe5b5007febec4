package saga

import (
	"context"
	"time"

	"matter_intake_backend/internal/manifest"
	"matter_intake_backend/platform/apperr"
)

// Store persists saga state. Implementations must make AdvanceStatus a
// compare-and-set on the current status, and SetMatterID/SetManifest
// write-once.
type Store interface {
	Find(ctx context.Context, correlationID string) (State, error)
	Create(ctx context.Context, state State) error
	// AdvanceStatus moves from to to and reports whether this call did it.
	AdvanceStatus(ctx context.Context, correlationID string, from, to Status) (bool, error)
	SetMatterID(ctx context.Context, correlationID, matterID string) error
	SetManifest(ctx context.Context, correlationID string, m *manifest.Manifest) error
	AppendIssues(ctx context.Context, correlationID string, issues []string) error
	MarkError(ctx context.Context, correlationID, note string) error
	MarkCompleted(ctx context.Context, correlationID string, at time.Time) error
	// ResetStatus moves an errored saga back to a forward status for replay.
	ResetStatus(ctx context.Context, correlationID string, to Status) error
}

// ErrNotFound builds the error returned for an unknown correlation id.
func ErrNotFound(correlationID string) error {
	return apperr.NotFound("saga not found").WithCode(apperr.CodeSagaNotFound).WithDetails(map[string]string{"correlationId": correlationID})
}

// ErrExists builds the error returned when Create finds an existing saga.
func ErrExists(correlationID string) error {
	return apperr.Conflict("saga already exists").WithCode(apperr.CodeStatusConflict).WithDetails(map[string]string{"correlationId": correlationID})
}

// ErrAlreadySet builds the error returned when a write-once field is set twice
// with a different value.
func ErrAlreadySet(field string) error {
	return apperr.Conflict(field + " is already set").WithCode(apperr.CodeStatusConflict)
}

// ErrNotErrored builds the error returned when a reset targets a saga that
// is not in error-processing.
func ErrNotErrored(correlationID string) error {
	return apperr.Conflict("saga is not in error-processing").WithCode(apperr.CodeStatusConflict).WithDetails(map[string]string{"correlationId": correlationID})
}

// ErrNotCompleted builds the error returned when a completion timestamp is
// written for a saga that has not reached completed.
func ErrNotCompleted(correlationID string) error {
	return apperr.Conflict("saga is not completed").WithCode(apperr.CodeStatusConflict).WithDetails(map[string]string{"correlationId": correlationID})
}
