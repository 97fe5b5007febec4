package saga

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"matter_intake_backend/internal/manifest"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const uniqueViolation = "23505"

// Repository is the Postgres Store. Every write is a single statement whose
// WHERE clause carries the guard, so concurrent deliveries need no locks.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new saga repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

var _ Store = (*Repository)(nil)

func (r *Repository) Find(ctx context.Context, correlationID string) (State, error) {
	var (
		s         State
		status    string
		matterID  *string
		manifestB []byte
		issuesB   []byte
		errorNote *string
	)
	err := r.pool.QueryRow(ctx, `
		SELECT correlation_id, tenant_id, job_id, status, matter_id, manifest, issues,
			error_note, created_at, updated_at, completed_at
		FROM saga_states
		WHERE correlation_id = $1
	`, correlationID).Scan(
		&s.CorrelationID, &s.TenantID, &s.JobID, &status, &matterID, &manifestB, &issuesB,
		&errorNote, &s.CreatedAt, &s.UpdatedAt, &s.CompletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return State{}, ErrNotFound(correlationID)
	}
	if err != nil {
		return State{}, err
	}

	s.Status = Status(status)
	if matterID != nil {
		s.MatterID = *matterID
	}
	if errorNote != nil {
		s.ErrorNote = *errorNote
	}
	if len(manifestB) > 0 {
		var m manifest.Manifest
		if err := json.Unmarshal(manifestB, &m); err != nil {
			return State{}, fmt.Errorf("decode manifest of saga %s: %w", correlationID, err)
		}
		s.Manifest = &m
	}
	s.Issues = []string{}
	if len(issuesB) > 0 {
		if err := json.Unmarshal(issuesB, &s.Issues); err != nil {
			return State{}, fmt.Errorf("decode issues of saga %s: %w", correlationID, err)
		}
	}
	return s, nil
}

func (r *Repository) Create(ctx context.Context, s State) error {
	issues := s.Issues
	if issues == nil {
		issues = []string{}
	}
	issuesB, err := json.Marshal(issues)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO saga_states (correlation_id, tenant_id, job_id, status, issues)
		VALUES ($1, $2, $3, $4, $5)
	`, s.CorrelationID, s.TenantID, s.JobID, string(s.Status), issuesB)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrExists(s.CorrelationID)
	}
	return err
}

func (r *Repository) AdvanceStatus(ctx context.Context, correlationID string, from, to Status) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE saga_states SET status = $3, updated_at = now()
		WHERE correlation_id = $1 AND status = $2
	`, correlationID, string(from), string(to))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repository) SetMatterID(ctx context.Context, correlationID, matterID string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE saga_states SET matter_id = $2, updated_at = now()
		WHERE correlation_id = $1 AND (matter_id IS NULL OR matter_id = $2)
	`, correlationID, matterID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrSet(ctx, correlationID, "matter id")
	}
	return nil
}

func (r *Repository) SetManifest(ctx context.Context, correlationID string, m *manifest.Manifest) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE saga_states SET manifest = $2, updated_at = now()
		WHERE correlation_id = $1 AND manifest IS NULL
	`, correlationID, payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.missingOrSet(ctx, correlationID, "manifest")
	}
	return nil
}

func (r *Repository) AppendIssues(ctx context.Context, correlationID string, issues []string) error {
	if len(issues) == 0 {
		return nil
	}
	payload, err := json.Marshal(issues)
	if err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE saga_states SET issues = issues || $2::jsonb, updated_at = now()
		WHERE correlation_id = $1
	`, correlationID, payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound(correlationID)
	}
	return nil
}

func (r *Repository) MarkError(ctx context.Context, correlationID, note string) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE saga_states SET status = $2, error_note = $3, updated_at = now()
		WHERE correlation_id = $1
	`, correlationID, string(StatusError), note)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound(correlationID)
	}
	return nil
}

func (r *Repository) MarkCompleted(ctx context.Context, correlationID string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE saga_states SET completed_at = $2, updated_at = now()
		WHERE correlation_id = $1 AND status = $3
	`, correlationID, at, string(StatusCompleted))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Find(ctx, correlationID); err != nil {
			return err
		}
		return ErrNotCompleted(correlationID)
	}
	return nil
}

func (r *Repository) ResetStatus(ctx context.Context, correlationID string, to Status) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE saga_states SET status = $2, error_note = NULL, updated_at = now()
		WHERE correlation_id = $1 AND status = $3
	`, correlationID, string(to), string(StatusError))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Find(ctx, correlationID); err != nil {
			return err
		}
		return ErrNotErrored(correlationID)
	}
	return nil
}

// missingOrSet distinguishes an unknown saga from a write-once conflict.
func (r *Repository) missingOrSet(ctx context.Context, correlationID, field string) error {
	if _, err := r.Find(ctx, correlationID); err != nil {
		return err
	}
	return ErrAlreadySet(field)
}

// ListStalled returns sagas on a forward status that have not been updated
// since before, oldest first.
func (r *Repository) ListStalled(ctx context.Context, before time.Time, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT correlation_id
		FROM saga_states
		WHERE status NOT IN ($1, $2) AND updated_at < $3
		ORDER BY updated_at
		LIMIT $4
	`, string(StatusCompleted), string(StatusError), before, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
