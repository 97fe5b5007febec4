package intake

import (
	apphttp "matter_intake_backend/internal/http"
	"matter_intake_backend/internal/saga"
	"matter_intake_backend/platform/logger"
	"matter_intake_backend/platform/validator"
)

// Module is the intake bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	keys    KeyLookup
}

// NewModule creates and initializes the intake module with all its dependencies.
func NewModule(keys KeyLookup, jobStore JobCreator, sagas SagaReader, replayer Replayer, publisher saga.Publisher, val *validator.Validator, log *logger.Logger) *Module {
	service := NewService(jobStore, sagas, replayer, publisher, val, log)
	return &Module{handler: NewHandler(service), keys: keys}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "intake"
}

// RegisterRoutes mounts intake routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/intake")
	group.Use(APIKeyAuthMiddleware(m.keys))
	group.POST("/jobs", m.handler.HandleSubmit)
	group.GET("/sagas/:fileId", m.handler.HandleGetSaga)
	group.POST("/sagas/:fileId/replay", m.handler.HandleReplay)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
