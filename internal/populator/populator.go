// Package populator performs the per-matter writes of the populate stages:
// participants, data collections, file notes, tasks, files and the terminal
// workflow step change.
package populator

import (
	"context"
	"time"

	"matter_intake_backend/internal/manifest"
	"matter_intake_backend/internal/matter"
	"matter_intake_backend/internal/participants"
	"matter_intake_backend/internal/policy"
	"matter_intake_backend/platform/logger"
)

const (
	valuesPageSize = 200
	valuesMaxPages = 5
	// DefaultPagePause is the delay between record-value pages.
	DefaultPagePause = 2 * time.Second
)

// Downloader fetches a document's bytes from object storage.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Provisioner resolves and links participants.
type Provisioner interface {
	ProcessNewParticipant(ctx context.Context, d manifest.ParticipantDescriptor) (participants.Outcome, error)
	Link(ctx context.Context, matterID, participantID, typeID string) participants.Result
}

// Populator writes manifest content to one matter at a time. It holds no
// per-matter state and may be shared across concurrent stage handlers.
type Populator struct {
	client      matter.Client
	provisioner Provisioner
	downloader  Downloader
	policy      *policy.Policy
	pagePause   time.Duration
	log         *logger.Logger
}

// Option configures a Populator.
type Option func(*Populator)

// WithPagePause overrides the delay between record-value pages.
func WithPagePause(d time.Duration) Option {
	return func(p *Populator) { p.pagePause = d }
}

// New creates a Populator.
func New(client matter.Client, prov Provisioner, downloader Downloader, pol *policy.Policy, log *logger.Logger, opts ...Option) *Populator {
	p := &Populator{
		client:      client,
		provisioner: prov,
		downloader:  downloader,
		policy:      pol,
		pagePause:   DefaultPagePause,
		log:         log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// pause waits d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
