package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"matter_intake_backend/internal/jobs"
	"matter_intake_backend/internal/manifest"
	"matter_intake_backend/internal/matter"
	"matter_intake_backend/platform/apperr"
	"matter_intake_backend/platform/logger"
)

// Publisher delivers stage events. Delivery is at-least-once.
type Publisher interface {
	Publish(ctx context.Context, path Path, ev Event) error
}

// Jobs is the intake job record the saga reads from and completes.
type Jobs interface {
	Get(ctx context.Context, id string) (jobs.Job, error)
	MarkCompleted(ctx context.Context, id, matterID string, at time.Time) error
	MarkMatterPopulated(ctx context.Context, tenantID, matterID string) error
}

// ManifestBuilder turns a submission into a validated manifest.
type ManifestBuilder interface {
	Build(sub manifest.Submission) (*manifest.Manifest, []string, error)
}

// Populator performs the per-matter writes of the populate stages.
type Populator interface {
	AddParticipants(ctx context.Context, matterID string, in manifest.Participants) ([]string, error)
	AddCollections(ctx context.Context, matterID string, m *manifest.Manifest) ([]string, error)
	AddFilenotes(ctx context.Context, matterID string, notes []string) error
	AddIssuesAsFilenotes(ctx context.Context, matterID string, issues []string) error
	AddTasks(ctx context.Context, matterID string, tasks []manifest.Task) error
	AddFiles(ctx context.Context, matterID string, files []manifest.FileRef) []string
	ChangeStep(ctx context.Context, matterID string) error
}

// Deps are the Orchestrator's collaborators.
type Deps struct {
	Store     Store
	Jobs      Jobs
	Matters   matter.Client
	Builder   ManifestBuilder
	Populator Populator
	Publisher Publisher
	Metrics   *Metrics
	Log       *logger.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Orchestrator handles stage events. It keeps no per-saga state in memory;
// concurrent events for different correlation ids are independent.
type Orchestrator struct {
	store     Store
	jobs      Jobs
	matters   matter.Client
	builder   ManifestBuilder
	populator Populator
	publisher Publisher
	metrics   *Metrics
	log       *logger.Logger
	now       func() time.Time
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(d Deps) *Orchestrator {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Metrics == nil {
		d.Metrics = NewMetrics(nil)
	}
	return &Orchestrator{
		store:     d.Store,
		jobs:      d.Jobs,
		matters:   d.Matters,
		builder:   d.Builder,
		populator: d.Populator,
		publisher: d.Publisher,
		metrics:   d.Metrics,
		log:       d.Log,
		now:       d.Now,
	}
}

// Handle runs the stage named by path for ev. A stage failure is recorded on
// the saga and returns nil: the event is consumed and nothing is retried.
// Errors are returned only when the saga state itself could not be read or
// advanced, or the next event could not be published.
func (o *Orchestrator) Handle(ctx context.Context, path Path, ev Event) error {
	if ev.FileID == "" {
		o.metrics.outcome(path, OutcomeDropped)
		return apperr.BadRequest("stage event has no fileId")
	}
	ctx = logger.ContextWithSaga(ctx, ev.FileID, ev.JobID)
	log := o.log.WithContext(ctx)

	if path == PathStart {
		return o.start(ctx, ev)
	}

	st, ok := lookupStage(path)
	if !ok {
		o.metrics.outcome(path, OutcomeDropped)
		return apperr.BadRequest(fmt.Sprintf("unknown stage %q", path))
	}

	state, err := o.store.Find(ctx, ev.FileID)
	if apperr.Is(err, apperr.KindNotFound) {
		log.Warn("stage event for unknown saga dropped", "stage", path)
		o.metrics.outcome(path, OutcomeDropped)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load saga: %w", err)
	}

	if state.Status != st.requires {
		return o.skip(ctx, st.path, st.next, state.Status, ev)
	}

	advanced, err := o.store.AdvanceStatus(ctx, state.CorrelationID, st.requires, st.advances)
	if err != nil {
		return fmt.Errorf("advance saga to %s: %w", st.advances, err)
	}
	if !advanced {
		// Another delivery of this event advanced the status first.
		return o.skip(ctx, st.path, st.next, st.advances, ev)
	}
	state.Status = st.advances

	started := time.Now()
	issues, workErr := st.work(o, ctx, &state)
	o.metrics.observe(st.path, started)

	if len(issues) > 0 {
		wctx, cancel := detached(ctx)
		err := o.store.AppendIssues(wctx, state.CorrelationID, issues)
		cancel()
		if err != nil {
			log.DatabaseError("append saga issues", err)
			if workErr == nil {
				workErr = err
			}
		}
		state.Issues = append(state.Issues, issues...)
	}
	if workErr != nil {
		o.fail(ctx, st.path, state, workErr)
		return nil
	}

	if st.advances == StatusCompleted {
		wctx, cancel := detached(ctx)
		err := o.store.MarkCompleted(wctx, state.CorrelationID, o.now().UTC())
		cancel()
		if err != nil {
			return fmt.Errorf("mark saga completed: %w", err)
		}
	}

	log.StageEvent(string(st.path), OutcomeAdvanced, string(st.advances))
	o.metrics.outcome(st.path, OutcomeAdvanced)
	return o.publishNext(ctx, st.next, ev)
}

// start creates the saga from its intake job. A saga that already exists is
// treated like any other redelivered stage.
func (o *Orchestrator) start(ctx context.Context, ev Event) error {
	log := o.log.WithContext(ctx)

	existing, err := o.store.Find(ctx, ev.FileID)
	if err == nil {
		return o.skip(ctx, PathStart, PathCreate, existing.Status, ev)
	}
	if !apperr.Is(err, apperr.KindNotFound) {
		return fmt.Errorf("load saga: %w", err)
	}

	job, err := o.jobs.Get(ctx, ev.JobID)
	if apperr.Is(err, apperr.KindNotFound) {
		log.Error("start event references unknown job", "error", err)
		o.metrics.outcome(PathStart, OutcomeDropped)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job.FileID != "" && job.FileID != ev.FileID {
		log.Warn("start event file id differs from job", "job_file_id", job.FileID)
	}

	now := o.now().UTC()
	err = o.store.Create(ctx, State{
		CorrelationID: ev.FileID,
		TenantID:      job.TenantID,
		JobID:         job.ID,
		Status:        StatusCreate,
		Issues:        []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	})
	if apperr.Is(err, apperr.KindConflict) {
		return o.skip(ctx, PathStart, PathCreate, StatusCreate, ev)
	}
	if err != nil {
		return fmt.Errorf("create saga: %w", err)
	}

	log.StageEvent(string(PathStart), OutcomeAdvanced, string(StatusCreate))
	o.metrics.outcome(PathStart, OutcomeAdvanced)
	return o.publishNext(ctx, PathCreate, ev)
}

// skip is the redelivery path: no stage work, only the next event. An
// errored saga stays halted until it is reset and replayed.
func (o *Orchestrator) skip(ctx context.Context, path, next Path, current Status, ev Event) error {
	o.log.WithContext(ctx).StageEvent(string(path), OutcomeSkipped, string(current))
	o.metrics.outcome(path, OutcomeSkipped)
	if current == StatusError {
		return nil
	}
	return o.publishNext(ctx, next, ev)
}

func (o *Orchestrator) publishNext(ctx context.Context, next Path, ev Event) error {
	if next == "" {
		return nil
	}
	if err := o.publisher.Publish(ctx, next, ev); err != nil {
		return fmt.Errorf("publish %s: %w", next, err)
	}
	return nil
}

// bookkeepingTimeout bounds the saga writes that must outlive the stage
// context.
const bookkeepingTimeout = 10 * time.Second

// detached returns a context for saga bookkeeping that survives cancellation
// of ctx. Once the status has advanced, a failure must be recorded or
// redelivery skips the stage.
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), bookkeepingTimeout)
}

// fail halts the saga: the classified note is stored with the error status
// and, when a matter exists, written to it as a file note. Both writes are
// best-effort and run on a detached context.
func (o *Orchestrator) fail(ctx context.Context, path Path, state State, cause error) {
	log := o.log.WithContext(ctx)
	note := DescribeFailure(path, cause)

	ctx, cancel := detached(ctx)
	defer cancel()

	log.Error("saga stage failed", "stage", path, "code", apperr.GetCode(cause), "error", cause)
	o.metrics.outcome(path, OutcomeFailed)

	if err := o.store.MarkError(ctx, state.CorrelationID, note); err != nil {
		log.DatabaseError("mark saga error", err)
	}
	if state.MatterID == "" {
		return
	}
	if err := o.matters.CreateFileNote(ctx, state.MatterID, note); err != nil {
		log.ExternalCallFailed("write failure note", err, "matter_id", state.MatterID)
	}
}

// DescribeFailure turns a stage error into the operator-facing note. Typed
// errors contribute their code and pre-written message; matter API errors
// contribute their (pretty-printed) response body.
func DescribeFailure(path Path, err error) string {
	head := fmt.Sprintf("Matter intake stopped at stage %s.", path)

	var appErr *apperr.Error
	hasApp := errors.As(err, &appErr)
	var apiErr *matter.APIError
	hasAPI := errors.As(err, &apiErr)

	switch {
	case hasApp && appErr.UserMessage != "":
		msg := fmt.Sprintf("%s [%s] %s", head, orUnknown(appErr.Code), appErr.UserMessage)
		if hasAPI {
			msg += "\n" + apiErr.Display()
		}
		return msg
	case hasAPI:
		code := apperr.CodeExternalCallFailed
		if hasApp && appErr.Code != "" {
			code = appErr.Code
		}
		return fmt.Sprintf("%s [%s] The case-management system rejected a request.\n%s", head, code, apiErr.Display())
	case hasApp:
		return fmt.Sprintf("%s [%s] %s", head, orUnknown(appErr.Code), appErr.Error())
	default:
		return fmt.Sprintf("%s An unexpected error occurred: %s", head, err.Error())
	}
}

func orUnknown(code string) string {
	if code == "" {
		return "UNKNOWN"
	}
	return code
}
