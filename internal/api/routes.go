package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	infragin "github.com/jonesrussell/seo-pinger/infrastructure/gin"
	infralogger "github.com/jonesrussell/seo-pinger/infrastructure/logger"
	"github.com/jonesrussell/seo-pinger/infrastructure/sse"
	"github.com/jonesrussell/seo-pinger/internal/domain"
	"github.com/jonesrussell/seo-pinger/internal/handler"
	"github.com/jonesrussell/seo-pinger/internal/metrics"
	"github.com/jonesrussell/seo-pinger/internal/middleware"
)

// BatchEvents is the part of the batch manager the event stream needs.
type BatchEvents interface {
	Get(id string) (domain.Batch, bool)
	Backlog(id string) []sse.Event
}

// Routes gathers what SetupRoutes mounts. Schedules and Broker may be nil.
type Routes struct {
	Batches   *handler.BatchHandler
	Endpoints *handler.EndpointHandler
	Schedules *handler.ScheduleHandler

	Broker      sse.Broker
	BatchEvents BatchEvents
	Metrics     *metrics.Metrics

	JWTSecret         string
	RequestsPerSecond float64
	Burst             int
}

// SetupRoutes configures all API routes.
// Health routes are registered by the infrastructure gin builder.
func SetupRoutes(router *gin.Engine, rt Routes, log infralogger.Logger, done <-chan struct{}) {
	if rt.Metrics != nil {
		router.GET("/metrics", gin.WrapH(rt.Metrics.Handler()))
	}

	v1 := infragin.ProtectedGroup(router, "/api/v1", rt.JWTSecret)
	v1.Use(middleware.RateLimiter(rt.RequestsPerSecond, rt.Burst, done))

	batches := v1.Group("/batches")
	batches.POST("", rt.Batches.Create)
	batches.GET("", rt.Batches.List)
	batches.GET("/:id", rt.Batches.Get)
	batches.DELETE("/:id", rt.Batches.Cancel)
	batches.GET("/:id/log.txt", rt.Batches.Log)
	if rt.Broker != nil && rt.BatchEvents != nil {
		batches.GET("/:id/events", batchEventsHandler(rt.Broker, rt.BatchEvents, log))
	}

	v1.GET("/endpoints", rt.Endpoints.List)
	v1.GET("/endpoints/resolve", rt.Endpoints.Resolve)
	v1.POST("/endpoints/custom", rt.Endpoints.AddCustom)
	v1.DELETE("/endpoints/custom/:name", rt.Endpoints.RemoveCustom)
	v1.GET("/manual-links", rt.Endpoints.ManualLinks)

	if rt.Schedules != nil {
		v1.GET("/schedules", rt.Schedules.List)
		v1.POST("/schedules/:name/run", rt.Schedules.Run)
	}
}

// batchEventsHandler streams one batch's events until it completes.
func batchEventsHandler(broker sse.Broker, batches BatchEvents, log infralogger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, ok := batches.Get(id); !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Batch not found"})
			return
		}

		sse.Handler(broker, log, sse.HandlerOptions{
			StopOn:  sse.EventTypeBatchCompleted,
			Backlog: func() []sse.Event { return batches.Backlog(id) },
		}, sse.WithBatchFilter(id))(c)
	}
}
