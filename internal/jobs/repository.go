// Package jobs stores intake jobs: the submitted payload a saga provisions
// from, plus the per-matter status flag set when population finishes.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"matter_intake_backend/internal/manifest"
	"matter_intake_backend/platform/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// MatterStatusPopulated marks a matter whose saga completed.
const MatterStatusPopulated = "populated"

// Job is one intake submission.
type Job struct {
	ID          string
	TenantID    string
	FileID      string
	Submission  manifest.Submission
	MatterID    string
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// Repository provides data access for intake jobs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new jobs repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a job. A file id is accepted once.
func (r *Repository) Create(ctx context.Context, job Job) (Job, error) {
	payload, err := json.Marshal(job.Submission)
	if err != nil {
		return Job{}, fmt.Errorf("encode submission: %w", err)
	}

	err = r.pool.QueryRow(ctx, `
		INSERT INTO intake_jobs (id, tenant_id, file_id, submission)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, job.ID, job.TenantID, job.FileID, payload).Scan(&job.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return Job{}, ErrFileSubmitted(job.FileID)
	}
	if err != nil {
		return Job{}, err
	}
	return job, nil
}

// Get loads a job by id.
func (r *Repository) Get(ctx context.Context, id string) (Job, error) {
	var (
		job      Job
		payload  []byte
		matterID *string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, file_id, submission, matter_id, created_at, completed_at
		FROM intake_jobs
		WHERE id = $1
	`, id).Scan(&job.ID, &job.TenantID, &job.FileID, &payload, &matterID, &job.CreatedAt, &job.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Job{}, ErrNotFound(id)
	}
	if err != nil {
		return Job{}, err
	}

	if matterID != nil {
		job.MatterID = *matterID
	}
	if err := json.Unmarshal(payload, &job.Submission); err != nil {
		return Job{}, fmt.Errorf("decode submission for job %s: %w", id, err)
	}
	return job, nil
}

// MarkCompleted records the created matter and completion time on the job.
func (r *Repository) MarkCompleted(ctx context.Context, id, matterID string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE intake_jobs SET matter_id = $2, completed_at = $3
		WHERE id = $1
	`, id, matterID, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound(id)
	}
	return nil
}

// MarkMatterPopulated sets the matter's status flag to populated.
func (r *Repository) MarkMatterPopulated(ctx context.Context, tenantID, matterID string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO matter_statuses (matter_id, tenant_id, status, updated_at)
		VALUES ($1, $2, $3, now())
		ON CONFLICT (matter_id) DO UPDATE SET status = EXCLUDED.status, updated_at = now()
	`, matterID, tenantID, MatterStatusPopulated)
	return err
}

// ErrFileSubmitted builds the error returned when a file id already has a job.
func ErrFileSubmitted(fileID string) error {
	return apperr.Conflict("file already submitted").
		WithCode(apperr.CodeStatusConflict).
		WithUserMessage(fmt.Sprintf("File %s has already been submitted.", fileID))
}

// ErrNotFound builds the error returned for an unknown job id.
func ErrNotFound(id string) error {
	return apperr.NotFound("intake job not found").
		WithCode(apperr.CodeJobNotFound).
		WithUserMessage(fmt.Sprintf("Intake job %s does not exist.", id))
}
