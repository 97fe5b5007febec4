package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apphttp "matter_intake_backend/internal/http"
	"matter_intake_backend/internal/http/router"
	"matter_intake_backend/internal/jobs"
	"matter_intake_backend/internal/saga"
	"matter_intake_backend/platform/logger"
	"matter_intake_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "mik_0123456789abcdef"

type httpConfig struct{}

func (httpConfig) GetHTTPAddr() string          { return ":0" }
func (httpConfig) GetIntakeRateLimit() float64 { return 0 }

type memoryKeys map[string]APIKey

func (k memoryKeys) GetByHash(_ context.Context, hash string) (APIKey, error) {
	key, ok := k[hash]
	if !ok || !key.IsActive {
		return APIKey{}, ErrAPIKeyNotFound
	}
	return key, nil
}

type publishedEvent struct {
	path saga.Path
	ev   saga.Event
}

type recordingPublisher struct {
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, path saga.Path, ev saga.Event) error {
	p.events = append(p.events, publishedEvent{path: path, ev: ev})
	return nil
}

type stubReplayer struct {
	calls []saga.Path
}

func (r *stubReplayer) Replay(_ context.Context, _ string, from saga.Path) (saga.Path, error) {
	r.calls = append(r.calls, from)
	if from == "" {
		return saga.PathFiles, nil
	}
	return from, nil
}

type harness struct {
	engine    *gin.Engine
	jobs      *jobs.MemoryRepository
	sagas     *saga.MemoryStore
	publisher *recordingPublisher
	replayer  *stubReplayer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &harness{
		jobs:      jobs.NewMemoryRepository(),
		sagas:     saga.NewMemoryStore(),
		publisher: &recordingPublisher{},
		replayer:  &stubReplayer{},
	}
	keys := memoryKeys{HashKey(testKey): {ID: "key-1", TenantID: "tenant-a", IsActive: true}}
	module := NewModule(keys, h.jobs, h.sagas, h.replayer, h.publisher, validator.New(), logger.Nop())

	h.engine = router.New(&apphttp.App{
		Config:   httpConfig{},
		Logger:   logger.Nop(),
		Registry: prometheus.NewRegistry(),
		Modules:  []apphttp.Module{module},
	})
	return h
}

func (h *harness) do(t *testing.T, method, path, key string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set(APIKeyHeader, key)
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec
}

func TestSubmitStoresJobAndPublishesStart(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/intake/jobs", testKey, map[string]any{
		"fileId":     "file-1",
		"submission": map[string]any{"matterName": "Smith purchase", "templateId": "tpl-1"},
	})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp SubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "file-1", resp.FileID)
	assert.NotEmpty(t, resp.JobID)

	job, err := h.jobs.Get(context.Background(), resp.JobID)
	require.NoError(t, err)
	assert.Equal(t, "tenant-a", job.TenantID)
	assert.Equal(t, "Smith purchase", job.Submission.MatterName)

	require.Len(t, h.publisher.events, 1)
	assert.Equal(t, saga.PathStart, h.publisher.events[0].path)
	assert.Equal(t, saga.Event{FileID: "file-1", JobID: resp.JobID}, h.publisher.events[0].ev)
}

func TestSubmitRequiresAPIKey(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodPost, "/api/v1/intake/jobs", "", map[string]any{"fileId": "f"}).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(t, http.MethodPost, "/api/v1/intake/jobs", "mik_wrong", map[string]any{"fileId": "f"}).Code)
	assert.Empty(t, h.publisher.events)
}

func TestSubmitValidatesFileID(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/api/v1/intake/jobs", testKey, map[string]any{"submission": map[string]any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, h.publisher.events)
}

func TestSubmitRejectsKnownFile(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sagas.Create(context.Background(), saga.State{
		CorrelationID: "file-1", TenantID: "tenant-a", JobID: "job-0", Status: saga.StatusFiles,
	}))

	rec := h.do(t, http.MethodPost, "/api/v1/intake/jobs", testKey, map[string]any{"fileId": "file-1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "STATUS_CONFLICT")
	assert.Empty(t, h.publisher.events)
}

func TestSubmitAcceptsFileOnceBeforeSagaStarts(t *testing.T) {
	h := newHarness(t)
	body := map[string]any{
		"fileId":     "file-1",
		"submission": map[string]any{"matterName": "Smith purchase", "templateId": "tpl-1"},
	}

	first := h.do(t, http.MethodPost, "/api/v1/intake/jobs", testKey, body)
	require.Equal(t, http.StatusAccepted, first.Code, first.Body.String())

	second := h.do(t, http.MethodPost, "/api/v1/intake/jobs", testKey, body)
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Contains(t, second.Body.String(), "STATUS_CONFLICT")

	require.Len(t, h.publisher.events, 1)
	assert.Equal(t, saga.PathStart, h.publisher.events[0].path)
}

func TestGetSagaIsTenantScoped(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.sagas.Create(ctx, saga.State{
		CorrelationID: "file-1", TenantID: "tenant-a", JobID: "job-1", Status: saga.StatusCreate,
	}))
	require.NoError(t, h.sagas.AppendIssues(ctx, "file-1", []string{"Participant: phone ignored"}))
	require.NoError(t, h.sagas.Create(ctx, saga.State{
		CorrelationID: "file-2", TenantID: "tenant-b", JobID: "job-2", Status: saga.StatusCreate,
	}))

	rec := h.do(t, http.MethodGet, "/api/v1/intake/sagas/file-1", testKey, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp SagaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "create", resp.Status)
	assert.Equal(t, []string{"Participant: phone ignored"}, resp.Issues)

	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/v1/intake/sagas/file-2", testKey, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(t, http.MethodGet, "/api/v1/intake/sagas/missing", testKey, nil).Code)
}

func TestReplayPassesStage(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.sagas.Create(context.Background(), saga.State{
		CorrelationID: "file-1", TenantID: "tenant-a", JobID: "job-1", Status: saga.StatusError,
	}))

	rec := h.do(t, http.MethodPost, "/api/v1/intake/sagas/file-1/replay", testKey, ReplayRequest{Stage: "populate-files"})
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, []saga.Path{saga.PathFiles}, h.replayer.calls)

	rec = h.do(t, http.MethodPost, "/api/v1/intake/sagas/file-1/replay", testKey, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, []saga.Path{saga.PathFiles, ""}, h.replayer.calls)
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/health", "", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/ready", "", nil).Code)

	rec := h.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "matter_intake_http_requests_total")
}

func TestGenerateAPIKey(t *testing.T) {
	plaintext, hash, prefix, err := GenerateAPIKey()
	require.NoError(t, err)
	assert.Len(t, plaintext, 4+64)
	assert.Equal(t, plaintext[:12], prefix)
	assert.Equal(t, HashKey(plaintext), hash)
	assert.NotEqual(t, plaintext, hash)
}
