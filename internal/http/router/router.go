package router

import (
	"context"
	"net/http"
	"time"

	apphttp "matter_intake_backend/internal/http"
	"matter_intake_backend/internal/http/middleware"
	"matter_intake_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

// New builds the engine: health, readiness and metrics endpoints plus every
// module's routes under /api/v1.
func New(app *apphttp.App) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(httpkit.RequestLogger(app.Logger))
	engine.Use(httpkit.SecurityHeaders())
	if app.Registry != nil {
		engine.Use(middleware.RequestMetrics(app.Registry))
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(app.Registry, promhttp.HandlerOpts{})))
	}

	engine.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/api/ready", func(c *gin.Context) {
		if app.Health == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := app.Health.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := engine.Group("/api/v1")
	if limit := app.Config.GetIntakeRateLimit(); limit > 0 {
		burst := max(int(limit), 1)
		v1.Use(httpkit.NewIPRateLimiter(rate.Limit(limit), burst, app.Logger).RateLimit())
	}

	routerCtx := &apphttp.RouterContext{Engine: engine, V1: v1}
	for _, module := range app.Modules {
		app.Logger.Debug("registering routes", "module", module.Name())
		module.RegisterRoutes(routerCtx)
	}

	return engine
}
