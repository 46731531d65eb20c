package handler

import (
	"errors"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/seo-pinger/infrastructure/logger"
	"github.com/jonesrussell/seo-pinger/internal/domain"
	"github.com/jonesrussell/seo-pinger/internal/schedule"
)

// ScheduleService lists and triggers schedules. *schedule.Scheduler satisfies it.
type ScheduleService interface {
	Entries() []schedule.EntryInfo
	Trigger(name string) (domain.Batch, error)
}

// ScheduleHandler serves the schedule routes.
type ScheduleHandler struct {
	schedules ScheduleService
	logger    logger.Logger
}

// NewScheduleHandler creates a ScheduleHandler.
func NewScheduleHandler(svc ScheduleService, log logger.Logger) *ScheduleHandler {
	return &ScheduleHandler{schedules: svc, logger: log}
}

// List returns the registered schedules sorted by name.
func (h *ScheduleHandler) List(c *gin.Context) {
	entries := h.schedules.Entries()
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	c.JSON(http.StatusOK, gin.H{
		"schedules": entries,
		"count":     len(entries),
	})
}

// Run starts the named schedule's batch now.
func (h *ScheduleHandler) Run(c *gin.Context) {
	name := c.Param("name")

	b, err := h.schedules.Trigger(name)
	if err != nil {
		if errors.Is(err, schedule.ErrUnknownJob) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Schedule not found"})
			return
		}
		h.logger.Error("Failed to run schedule", logger.String("schedule", name), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to run schedule"})
		return
	}

	c.JSON(http.StatusAccepted, b)
}
