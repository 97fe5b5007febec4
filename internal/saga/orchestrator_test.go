package saga

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"matter_intake_backend/internal/jobs"
	"matter_intake_backend/internal/manifest"
	"matter_intake_backend/internal/matter"
	"matter_intake_backend/internal/matter/mattertest"
	"matter_intake_backend/platform/apperr"
	"matter_intake_backend/platform/logger"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	fileID = "file-1"
	jobID  = "job-1"
)

type published struct {
	path Path
	ev   Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, path Path, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{path: path, ev: ev})
	return nil
}

func (p *recordingPublisher) take() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.events
	p.events = nil
	return out
}

type stubBuilder struct {
	issues       []string
	err          error
	participants manifest.Participants
	collections  []manifest.CollectionFields
}

func (b stubBuilder) Build(sub manifest.Submission) (*manifest.Manifest, []string, error) {
	if b.err != nil {
		return nil, b.issues, b.err
	}
	return &manifest.Manifest{
		MatterName:   sub.MatterName,
		TemplateID:   sub.TemplateID,
		Filenotes:    sub.Filenotes,
		Files:        sub.Files,
		Participants: b.participants,
		Collections:  b.collections,
	}, b.issues, nil
}

type stubPopulator struct {
	mu sync.Mutex

	participantIssues []string
	collectionIssues  []string
	collectionsErr    error
	onCollections     func()
	fileIssues        []string
	stepErr           error

	calls       []string
	issueNotes  [][]string
	filenotes   []string
	stepMatters []string
}

func (p *stubPopulator) record(call string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
}

func (p *stubPopulator) AddParticipants(context.Context, string, manifest.Participants) ([]string, error) {
	p.record("participants")
	return p.participantIssues, nil
}

func (p *stubPopulator) AddCollections(ctx context.Context, _ string, _ *manifest.Manifest) ([]string, error) {
	p.record("collections")
	if p.onCollections != nil {
		p.onCollections()
		return p.collectionIssues, ctx.Err()
	}
	return p.collectionIssues, p.collectionsErr
}

func (p *stubPopulator) AddFilenotes(_ context.Context, _ string, notes []string) error {
	p.record("filenotes")
	p.mu.Lock()
	defer p.mu.Unlock()
	p.filenotes = append(p.filenotes, notes...)
	return nil
}

func (p *stubPopulator) AddIssuesAsFilenotes(_ context.Context, _ string, issues []string) error {
	p.record("issues")
	p.mu.Lock()
	defer p.mu.Unlock()
	p.issueNotes = append(p.issueNotes, append([]string(nil), issues...))
	return nil
}

func (p *stubPopulator) AddTasks(context.Context, string, []manifest.Task) error {
	p.record("tasks")
	return nil
}

func (p *stubPopulator) AddFiles(context.Context, string, []manifest.FileRef) []string {
	p.record("files")
	return p.fileIssues
}

func (p *stubPopulator) ChangeStep(_ context.Context, matterID string) error {
	p.record("step")
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stepMatters = append(p.stepMatters, matterID)
	return p.stepErr
}

func (p *stubPopulator) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

type harness struct {
	store     *MemoryStore
	jobs      *jobs.MemoryRepository
	matters   *mattertest.Fake
	populator *stubPopulator
	publisher *recordingPublisher
	orch      *Orchestrator
}

func newHarness(t *testing.T, builder ManifestBuilder, pop *stubPopulator) *harness {
	t.Helper()
	h := &harness{
		store:     NewMemoryStore(),
		jobs:      jobs.NewMemoryRepository(),
		matters:   mattertest.New(),
		populator: pop,
		publisher: &recordingPublisher{},
	}
	h.orch = NewOrchestrator(Deps{
		Store:     h.store,
		Jobs:      h.jobs,
		Matters:   h.matters,
		Builder:   builder,
		Populator: pop,
		Publisher: h.publisher,
		Log:       logger.Nop(),
		Now:       func() time.Time { return time.Date(2025, 1, 13, 9, 0, 0, 0, time.UTC) },
	})
	return h
}

func (h *harness) submit(t *testing.T, sub manifest.Submission) {
	t.Helper()
	_, err := h.jobs.Create(context.Background(), jobs.Job{ID: jobID, TenantID: "tenant-1", FileID: fileID, Submission: sub})
	require.NoError(t, err)
}

// drive handles ev and every event it publishes until the chain stops,
// returning the paths handled in order.
func (h *harness) drive(t *testing.T, path Path) []Path {
	t.Helper()
	queue := []published{{path: path, ev: Event{FileID: fileID, JobID: jobID}}}
	var handled []Path
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		require.NoError(t, h.orch.Handle(context.Background(), next.path, next.ev))
		handled = append(handled, next.path)
		queue = append(queue, h.publisher.take()...)
	}
	return handled
}

func (h *harness) state(t *testing.T) State {
	t.Helper()
	st, err := h.store.Find(context.Background(), fileID)
	require.NoError(t, err)
	return st
}

func validSubmission() manifest.Submission {
	return manifest.Submission{
		MatterName: "Smith purchase of 1 Test St",
		TemplateID: "tpl-conveyance",
		Filenotes:  []string{"Client called about deposit"},
	}
}

func TestHandleRunsEveryStageToCompletion(t *testing.T) {
	pop := &stubPopulator{
		participantIssues: []string{"participant issue"},
		collectionIssues:  []string{"collection issue"},
		fileIssues:        []string{"file issue"},
	}
	h := newHarness(t, stubBuilder{issues: []string{"manifest issue"}}, pop)
	h.submit(t, validSubmission())

	handled := h.drive(t, PathStart)
	assert.Equal(t, Paths(), handled)

	st := h.state(t)
	assert.Equal(t, StatusCompleted, st.Status)
	require.NotNil(t, st.CompletedAt)
	assert.Equal(t, "tenant-1", st.TenantID)
	assert.Equal(t, []string{"manifest issue", "participant issue", "collection issue", "file issue"}, st.Issues)

	require.Len(t, h.matters.Matters, 1)
	assert.Equal(t, h.matters.Matters[0].ID, st.MatterID)
	require.NotNil(t, st.Manifest)
	assert.Equal(t, "tpl-conveyance", st.Manifest.TemplateID)

	// The summary note carries the issues known before the files stage; the
	// files stage writes its own.
	assert.Equal(t, [][]string{
		{"manifest issue", "participant issue", "collection issue"},
		{"file issue"},
	}, pop.issueNotes)
	assert.Equal(t, []string{"Client called about deposit"}, pop.filenotes)
	assert.Equal(t, []string{st.MatterID}, pop.stepMatters)

	job, err := h.jobs.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Equal(t, st.MatterID, job.MatterID)
	assert.NotNil(t, job.CompletedAt)
	assert.Equal(t, jobs.MatterStatusPopulated, h.jobs.MatterStatus(st.MatterID))
}

func TestRedeliveredEventOnlyRepublishes(t *testing.T) {
	pop := &stubPopulator{}
	h := newHarness(t, stubBuilder{}, pop)
	h.submit(t, validSubmission())
	h.drive(t, PathStart)

	writes := h.store.Writes()
	calls := pop.callCount()
	before := h.state(t)

	require.NoError(t, h.orch.Handle(context.Background(), PathParticipants, Event{FileID: fileID, JobID: jobID}))

	assert.Equal(t, writes, h.store.Writes())
	assert.Equal(t, calls, pop.callCount())
	assert.Len(t, h.matters.Matters, 1)
	assert.Equal(t, before, h.state(t))
	assert.Equal(t, []published{{path: PathDataCollections, ev: Event{FileID: fileID, JobID: jobID}}}, h.publisher.take())
	assert.Equal(t, 1.0, testutil.ToFloat64(h.orch.metrics.stages.WithLabelValues(string(PathParticipants), OutcomeSkipped)))
}

func TestRedeliveredStartDoesNotRecreateSaga(t *testing.T) {
	h := newHarness(t, stubBuilder{}, &stubPopulator{})
	h.submit(t, validSubmission())
	ctx := context.Background()
	ev := Event{FileID: fileID, JobID: jobID}

	require.NoError(t, h.orch.Handle(ctx, PathStart, ev))
	require.NoError(t, h.orch.Handle(ctx, PathStart, ev))

	assert.Equal(t, 1, h.store.Writes())
	assert.Equal(t, []published{{path: PathCreate, ev: ev}, {path: PathCreate, ev: ev}}, h.publisher.take())
}

func TestStartWithUnknownJobIsDropped(t *testing.T) {
	h := newHarness(t, stubBuilder{}, &stubPopulator{})

	require.NoError(t, h.orch.Handle(context.Background(), PathStart, Event{FileID: fileID, JobID: "missing"}))

	_, err := h.store.Find(context.Background(), fileID)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
	assert.Empty(t, h.publisher.take())
}

func TestStageEventForUnknownSagaIsDropped(t *testing.T) {
	h := newHarness(t, stubBuilder{}, &stubPopulator{})

	require.NoError(t, h.orch.Handle(context.Background(), PathFiles, Event{FileID: fileID, JobID: jobID}))
	assert.Empty(t, h.publisher.take())
}

func TestHandleRejectsUnknownPath(t *testing.T) {
	h := newHarness(t, stubBuilder{}, &stubPopulator{})

	err := h.orch.Handle(context.Background(), Path("populate-nothing"), Event{FileID: fileID})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
}

func TestStageFailureHaltsSagaAndWritesNote(t *testing.T) {
	apiErr := &matter.APIError{Op: "update record value", Status: 422, Body: []byte(`{"message":"field is locked"}`)}
	pop := &stubPopulator{
		collectionIssues: []string{"gap"},
		collectionsErr:   apperr.External("update record value", apiErr),
	}
	h := newHarness(t, stubBuilder{}, pop)
	h.submit(t, validSubmission())

	handled := h.drive(t, PathStart)
	assert.Equal(t, Paths()[:5], handled)

	st := h.state(t)
	assert.Equal(t, StatusError, st.Status)
	assert.Equal(t, []string{"gap"}, st.Issues)
	assert.Contains(t, st.ErrorNote, "stage populate-data-collections")
	assert.Contains(t, st.ErrorNote, "[EXTERNAL_CALL_FAILED]")
	assert.Contains(t, st.ErrorNote, `"message": "field is locked"`)
	assert.Equal(t, []string{st.ErrorNote}, h.matters.Notes[st.MatterID])

	// A late redelivery of a later stage neither runs nor republishes.
	require.NoError(t, h.orch.Handle(context.Background(), PathFiles, Event{FileID: fileID, JobID: jobID}))
	assert.Empty(t, h.publisher.take())
	assert.Equal(t, StatusError, h.state(t).Status)
}

// ctxStore refuses writes on a done context, like a database driver does.
type ctxStore struct {
	*MemoryStore
}

func (s ctxStore) AppendIssues(ctx context.Context, correlationID string, issues []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.AppendIssues(ctx, correlationID, issues)
}

func (s ctxStore) MarkError(ctx context.Context, correlationID, note string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.MarkError(ctx, correlationID, note)
}

func (s ctxStore) MarkCompleted(ctx context.Context, correlationID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.MemoryStore.MarkCompleted(ctx, correlationID, at)
}

func TestCancelledStageStillRecordsFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pop := &stubPopulator{collectionIssues: []string{"gap"}, onCollections: cancel}
	h := newHarness(t, stubBuilder{}, pop)
	h.orch.store = ctxStore{MemoryStore: h.store}
	h.submit(t, validSubmission())

	ev := Event{FileID: fileID, JobID: jobID}
	for _, path := range Paths()[:4] {
		require.NoError(t, h.orch.Handle(context.Background(), path, ev))
	}
	h.publisher.take()

	require.NoError(t, h.orch.Handle(ctx, PathDataCollections, ev))
	assert.Empty(t, h.publisher.take())

	st := h.state(t)
	assert.Equal(t, StatusError, st.Status)
	assert.Equal(t, []string{"gap"}, st.Issues)
	assert.Contains(t, st.ErrorNote, "stage populate-data-collections")
	assert.Equal(t, []string{st.ErrorNote}, h.matters.Notes[st.MatterID])

	// Redelivery of the next stage finds the saga halted.
	require.NoError(t, h.orch.Handle(context.Background(), PathFiles, ev))
	assert.Empty(t, h.publisher.take())
	assert.Equal(t, StatusError, h.state(t).Status)
}

func TestManifestCreateChecksCatalogue(t *testing.T) {
	builder := stubBuilder{
		issues: []string{"manifest issue"},
		participants: manifest.Participants{
			New:        []manifest.ParticipantDescriptor{{TypeID: "type-buyer", TypeName: "Buyer", LastName: "Smith"}},
			Existing:   []manifest.ExistingParticipant{{ParticipantID: "p-1", TypeID: "type-agent", TypeName: "Agent"}},
			LinkMatter: []manifest.LinkDirective{{SourceRef: "buyer", TargetTypeID: "type-buyer", TargetRole: "client"}},
		},
		collections: []manifest.CollectionFields{
			{CollectionID: "col-property"},
			{CollectionID: "col-missing"},
			{CollectionID: "col-property"},
		},
	}
	h := newHarness(t, builder, &stubPopulator{})
	h.matters.Types = []matter.ParticipantType{{ID: "type-buyer", Name: "Buyer"}}
	h.matters.Collections = []matter.DataCollection{{ID: "col-property", Name: "Property"}}
	h.submit(t, validSubmission())

	ev := Event{FileID: fileID, JobID: jobID}
	for _, path := range Paths()[:3] {
		require.NoError(t, h.orch.Handle(context.Background(), path, ev))
	}

	st := h.state(t)
	assert.Equal(t, StatusManifestCreate, st.Status)
	require.NotNil(t, st.Manifest)
	assert.Equal(t, []string{
		"manifest issue",
		"Participant type type-agent is not defined in the case-management system.",
		"Data collection col-missing is not defined in the case-management system.",
	}, st.Issues)
}

func TestManifestCreateNotesUnavailableCatalogue(t *testing.T) {
	builder := stubBuilder{
		participants: manifest.Participants{
			New: []manifest.ParticipantDescriptor{{TypeID: "type-buyer", TypeName: "Buyer", LastName: "Smith"}},
		},
		collections: []manifest.CollectionFields{{CollectionID: "col-property"}},
	}
	h := newHarness(t, builder, &stubPopulator{})
	h.matters.Fail["ListParticipantTypes"] = errors.New("timeout")
	h.matters.Fail["ListDataCollections"] = errors.New("timeout")
	h.submit(t, validSubmission())

	handled := h.drive(t, PathStart)
	assert.Equal(t, Paths(), handled)

	st := h.state(t)
	assert.Equal(t, StatusCompleted, st.Status)
	assert.Equal(t, []string{
		"Participant types were not checked: the case-management system did not return them.",
		"Data collections were not checked: the case-management system did not return them.",
	}, st.Issues)
}

func TestMissingTemplateFailsCreateWithoutNote(t *testing.T) {
	h := newHarness(t, stubBuilder{}, &stubPopulator{})
	sub := validSubmission()
	sub.TemplateID = " "
	h.submit(t, sub)

	handled := h.drive(t, PathStart)
	assert.Equal(t, []Path{PathStart, PathCreate}, handled)

	st := h.state(t)
	assert.Equal(t, StatusError, st.Status)
	assert.Contains(t, st.ErrorNote, "[MISSING_TEMPLATE_ID]")
	assert.Empty(t, h.matters.Matters)
	assert.Empty(t, h.matters.Notes)
}

func TestPopulateWithoutMatterFailsPrecondition(t *testing.T) {
	pop := &stubPopulator{}
	h := newHarness(t, stubBuilder{}, pop)
	require.NoError(t, h.store.Create(context.Background(), State{
		CorrelationID: fileID, TenantID: "tenant-1", JobID: jobID, Status: StatusParticipants,
	}))

	require.NoError(t, h.orch.Handle(context.Background(), PathParticipants, Event{FileID: fileID, JobID: jobID}))

	st := h.state(t)
	assert.Equal(t, StatusError, st.Status)
	assert.Contains(t, st.ErrorNote, "[MISSING_MATTER_ID]")
	assert.Zero(t, pop.callCount())
	assert.Empty(t, h.publisher.take())
}

func TestInvalidManifestFailsWithIssuesKept(t *testing.T) {
	invalid := apperr.Validation("manifest failed validation").
		WithCode(apperr.CodeInvalidManifest).
		WithUserMessage("The manifest is missing required fields.")
	h := newHarness(t, stubBuilder{issues: []string{"no contract date"}, err: invalid}, &stubPopulator{})
	h.submit(t, validSubmission())

	h.drive(t, PathStart)

	st := h.state(t)
	assert.Equal(t, StatusError, st.Status)
	assert.Equal(t, []string{"no contract date"}, st.Issues)
	assert.Nil(t, st.Manifest)
	assert.Equal(t,
		"Matter intake stopped at stage manifest-create. [INVALID_MANIFEST] The manifest is missing required fields.",
		st.ErrorNote)
	assert.Equal(t, []string{st.ErrorNote}, h.matters.Notes[st.MatterID])
}

func TestPublishFailureIsReturnedForRetry(t *testing.T) {
	h := newHarness(t, stubBuilder{}, &stubPopulator{})
	h.submit(t, validSubmission())
	h.publisher.err = errors.New("redis unavailable")

	err := h.orch.Handle(context.Background(), PathStart, Event{FileID: fileID, JobID: jobID})
	require.Error(t, err)

	// The retry finds the saga created and republishes.
	h.publisher.err = nil
	require.NoError(t, h.orch.Handle(context.Background(), PathStart, Event{FileID: fileID, JobID: jobID}))
	assert.Equal(t, []published{{path: PathCreate, ev: Event{FileID: fileID, JobID: jobID}}}, h.publisher.take())
}

func TestReplayResumesErroredSaga(t *testing.T) {
	pop := &stubPopulator{stepErr: apperr.Precondition(apperr.CodeMissingConfig, "no step data")}
	h := newHarness(t, stubBuilder{}, pop)
	h.submit(t, validSubmission())
	h.drive(t, PathStart)
	require.Equal(t, StatusError, h.state(t).Status)

	ctx := context.Background()
	_, err := h.orch.Replay(ctx, fileID, "")
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	pop.stepErr = nil
	path, err := h.orch.Replay(ctx, fileID, PathStepChange)
	require.NoError(t, err)
	assert.Equal(t, PathStepChange, path)
	assert.Empty(t, h.state(t).ErrorNote)

	h.drive(t, PathStepChange)
	assert.Equal(t, StatusCompleted, h.state(t).Status)
	require.Len(t, h.matters.Matters, 1)

	_, err = h.orch.Replay(ctx, fileID, "")
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestReplayRedrivesPendingStage(t *testing.T) {
	h := newHarness(t, stubBuilder{}, &stubPopulator{})
	require.NoError(t, h.store.Create(context.Background(), State{
		CorrelationID: fileID, TenantID: "tenant-1", JobID: jobID, Status: StatusFiles,
	}))

	path, err := h.orch.Replay(context.Background(), fileID, "")
	require.NoError(t, err)
	assert.Equal(t, PathFiles, path)
	assert.Equal(t, []published{{path: PathFiles, ev: Event{FileID: fileID, JobID: jobID}}}, h.publisher.take())

	_, err = h.orch.Replay(context.Background(), fileID, PathCreate)
	assert.True(t, apperr.Is(err, apperr.KindConflict))
}

func TestDescribeFailure(t *testing.T) {
	apiErr := &matter.APIError{Op: "create matter", Status: 400, Body: []byte(`{"error":"bad template"}`)}

	cases := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "typed with user message",
			err:  apperr.Precondition(apperr.CodeMissingManifest, "x").WithUserMessage("No manifest."),
			want: "Matter intake stopped at stage create. [MISSING_MANIFEST] No manifest.",
		},
		{
			name: "api error",
			err:  apperr.External("create matter", apiErr),
			want: "Matter intake stopped at stage create. [EXTERNAL_CALL_FAILED] The case-management system rejected a request.\n" +
				"matter api create matter: status 400\n{\n  \"error\": \"bad template\"\n}",
		},
		{
			name: "untyped",
			err:  errors.New("boom"),
			want: "Matter intake stopped at stage create. An unexpected error occurred: boom",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DescribeFailure(PathCreate, tc.err))
		})
	}
}

func TestPathFor(t *testing.T) {
	path, ok := PathFor(StatusDataCollections)
	require.True(t, ok)
	assert.Equal(t, PathDataCollections, path)

	_, ok = PathFor(StatusCompleted)
	assert.False(t, ok)
}
