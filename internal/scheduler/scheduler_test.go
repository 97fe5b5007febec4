package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"matter_intake_backend/internal/saga"
	"matter_intake_backend/platform/apperr"
	"matter_intake_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientPublishesStageTask(t *testing.T) {
	mr := miniredis.RunT(t)
	opt := asynq.RedisClientOpt{Addr: mr.Addr()}

	client := newClient(opt, "matter-intake", 3)
	t.Cleanup(func() { _ = client.Close() })

	ev := saga.Event{FileID: "file-1", JobID: "job-1"}
	require.NoError(t, client.Publish(context.Background(), saga.PathParticipants, ev))

	inspector := asynq.NewInspector(opt)
	t.Cleanup(func() { _ = inspector.Close() })

	pending, err := inspector.ListPendingTasks("matter-intake")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "matter.populate-participants", pending[0].Type)
	assert.Equal(t, 3, pending[0].MaxRetry)
	assert.JSONEq(t, `{"fileId":"file-1","jobId":"job-1"}`, string(pending[0].Payload))
}

func TestParseStageTaskRoundTrip(t *testing.T) {
	task, err := NewStageTask(saga.PathFiles, saga.Event{FileID: "file-9", JobID: "job-9"})
	require.NoError(t, err)

	path, ev, err := ParseStageTask(task)
	require.NoError(t, err)
	assert.Equal(t, saga.PathFiles, path)
	assert.Equal(t, saga.Event{FileID: "file-9", JobID: "job-9"}, ev)
}

func TestParseStageTaskRejectsBadPayloads(t *testing.T) {
	cases := map[string]*asynq.Task{
		"foreign type":   asynq.NewTask("reports.nightly", []byte(`{"fileId":"f"}`)),
		"bad json":       asynq.NewTask(TaskType(saga.PathCreate), []byte(`{`)),
		"missing fileId": asynq.NewTask(TaskType(saga.PathCreate), []byte(`{"jobId":"j"}`)),
	}
	for name, task := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := ParseStageTask(task)
			assert.Error(t, err)
		})
	}
}

type handlerFunc func(ctx context.Context, path saga.Path, ev saga.Event) error

func (f handlerFunc) Handle(ctx context.Context, path saga.Path, ev saga.Event) error {
	return f(ctx, path, ev)
}

func TestMuxRoutesEveryStage(t *testing.T) {
	var got []saga.Path
	mux := newMux(handlerFunc(func(_ context.Context, path saga.Path, ev saga.Event) error {
		got = append(got, path)
		assert.Equal(t, "file-1", ev.FileID)
		return nil
	}), logger.Nop())

	for _, path := range saga.Paths() {
		task, err := NewStageTask(path, saga.Event{FileID: "file-1"})
		require.NoError(t, err)
		require.NoError(t, mux.ProcessTask(context.Background(), task))
	}
	assert.Equal(t, saga.Paths(), got)
}

func TestMuxClassifiesErrors(t *testing.T) {
	transient := errors.New("database unavailable")
	var next error
	mux := newMux(handlerFunc(func(context.Context, saga.Path, saga.Event) error {
		return next
	}), logger.Nop())

	good, err := NewStageTask(saga.PathCreate, saga.Event{FileID: "file-1"})
	require.NoError(t, err)

	next = transient
	err = mux.ProcessTask(context.Background(), good)
	assert.ErrorIs(t, err, transient)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	next = apperr.BadRequest("unknown stage")
	assert.ErrorIs(t, mux.ProcessTask(context.Background(), good), asynq.SkipRetry)

	bad := asynq.NewTask(TaskType(saga.PathCreate), []byte(`not json`))
	assert.ErrorIs(t, mux.ProcessTask(context.Background(), bad), asynq.SkipRetry)
}

type stubLister struct {
	ids    []string
	before time.Time
}

func (l *stubLister) ListStalled(_ context.Context, before time.Time, limit int) ([]string, error) {
	l.before = before
	return l.ids[:min(limit, len(l.ids))], nil
}

type stubReplayer struct {
	replayed []string
	fail     map[string]error
}

func (r *stubReplayer) Replay(_ context.Context, id string, from saga.Path) (saga.Path, error) {
	if err := r.fail[id]; err != nil {
		return "", err
	}
	r.replayed = append(r.replayed, id)
	return saga.PathFiles, nil
}

func TestSweeperReplaysStalledSagas(t *testing.T) {
	lister := &stubLister{ids: []string{"file-1", "file-2", "file-3"}}
	replayer := &stubReplayer{fail: map[string]error{"file-2": apperr.Conflict("saga already completed")}}

	sweeper := NewStalledSagaSweeper(lister, replayer, logger.Nop(), time.Minute, 5*time.Minute)
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	sweeper.now = func() time.Time { return now }

	assert.Equal(t, 2, sweeper.sweep(context.Background()))
	assert.Equal(t, []string{"file-1", "file-3"}, replayer.replayed)
	// Thresholds shorter than a stage may run are raised.
	assert.Equal(t, now.Add(-2*StageTimeout), lister.before)
}
