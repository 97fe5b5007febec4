// Package saga runs the staged, crash-resumable provisioning of one matter.
// Each stage is triggered by an event, guarded by the persisted status and
// finishes by publishing the next stage's event. Redelivered events find the
// status already advanced and only republish, so no locks are needed.
package saga

import (
	"time"

	"matter_intake_backend/internal/manifest"
)

// Status is both the last completed stage and the next stage to run.
type Status string

const (
	StatusCreate          Status = "create"
	StatusManifestCreate  Status = "manifest-create"
	StatusParticipants    Status = "participants"
	StatusDataCollections Status = "data-collections"
	StatusFilenotes       Status = "filenotes"
	StatusFiles           Status = "files"
	StatusStepChange      Status = "stepchange"
	StatusCompleted       Status = "completed"
	StatusError           Status = "error-processing"
)

// order is the forward sequence of statuses; StatusError is absorbing and
// not part of it.
var order = []Status{
	StatusCreate,
	StatusManifestCreate,
	StatusParticipants,
	StatusDataCollections,
	StatusFilenotes,
	StatusFiles,
	StatusStepChange,
	StatusCompleted,
}

// Rank is the position of s in the forward sequence, or -1.
func (s Status) Rank() int {
	for i, o := range order {
		if o == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusError || s.Rank() >= 0
}

// Terminal reports whether no further stage runs from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// State is the persisted record of one saga, keyed by correlation id (the
// submitted file id). It is never deleted and serves as the audit trail.
type State struct {
	CorrelationID string             `json:"correlationId"`
	TenantID      string             `json:"tenantId"`
	JobID         string             `json:"jobId"`
	Status        Status             `json:"status"`
	MatterID      string             `json:"matterId,omitempty"`
	Manifest      *manifest.Manifest `json:"manifest,omitempty"`
	Issues        []string           `json:"issues"`
	ErrorNote     string             `json:"errorNote,omitempty"`
	CreatedAt     time.Time          `json:"createdAt"`
	UpdatedAt     time.Time          `json:"updatedAt"`
	CompletedAt   *time.Time         `json:"completedAt,omitempty"`
}

// Event is the payload of every stage event.
type Event struct {
	FileID string `json:"fileId"`
	JobID  string `json:"jobId"`
}
