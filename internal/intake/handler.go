package intake

import (
	"net/http"
	"time"

	"matter_intake_backend/internal/saga"
	"matter_intake_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

const errInvalidRequest = "invalid request body"

// Handler handles intake HTTP requests.
type Handler struct {
	service *Service
}

// NewHandler creates a new intake handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// SagaResponse is the operator view of a saga.
type SagaResponse struct {
	FileID      string   `json:"fileId"`
	JobID       string   `json:"jobId"`
	Status      string   `json:"status"`
	MatterID    string   `json:"matterId,omitempty"`
	Issues      []string `json:"issues"`
	ErrorNote   string   `json:"errorNote,omitempty"`
	CreatedAt   string   `json:"createdAt"`
	UpdatedAt   string   `json:"updatedAt"`
	CompletedAt *string  `json:"completedAt,omitempty"`
}

// ReplayRequest optionally names the stage to resume from.
type ReplayRequest struct {
	Stage string `json:"stage"`
}

// HandleSubmit accepts a matter for provisioning.
// POST /api/v1/intake/jobs
func (h *Handler) HandleSubmit(c *gin.Context) {
	caller, ok := httpkit.MustGetCaller(c)
	if !ok {
		return
	}

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, err.Error())
		return
	}

	resp, err := h.service.Submit(c.Request.Context(), caller.TenantID, req)
	if httpkit.HandleError(c, err) {
		return
	}
	c.JSON(http.StatusAccepted, resp)
}

// HandleGetSaga returns the caller's saga state.
// GET /api/v1/intake/sagas/:fileId
func (h *Handler) HandleGetSaga(c *gin.Context) {
	caller, ok := httpkit.MustGetCaller(c)
	if !ok {
		return
	}

	state, err := h.service.GetSaga(c.Request.Context(), caller.TenantID, c.Param("fileId"))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, toSagaResponse(state))
}

// HandleReplay republishes the caller's saga stage.
// POST /api/v1/intake/sagas/:fileId/replay
func (h *Handler) HandleReplay(c *gin.Context) {
	caller, ok := httpkit.MustGetCaller(c)
	if !ok {
		return
	}

	var req ReplayRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, errInvalidRequest, err.Error())
			return
		}
	}

	path, err := h.service.Replay(c.Request.Context(), caller.TenantID, c.Param("fileId"), saga.Path(req.Stage))
	if httpkit.HandleError(c, err) {
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"fileId": c.Param("fileId"), "stage": path})
}

func toSagaResponse(s saga.State) SagaResponse {
	resp := SagaResponse{
		FileID:    s.CorrelationID,
		JobID:     s.JobID,
		Status:    string(s.Status),
		MatterID:  s.MatterID,
		Issues:    s.Issues,
		ErrorNote: s.ErrorNote,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
		UpdatedAt: s.UpdatedAt.Format(time.RFC3339),
	}
	if resp.Issues == nil {
		resp.Issues = []string{}
	}
	if s.CompletedAt != nil {
		at := s.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &at
	}
	return resp
}
