package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/seo-pinger/infrastructure/logger"
	"github.com/jonesrussell/seo-pinger/internal/catalog"
	"github.com/jonesrussell/seo-pinger/internal/domain"
	"github.com/jonesrussell/seo-pinger/internal/event"
	"github.com/jonesrussell/seo-pinger/internal/submission"
)

// CustomStore manages user-defined endpoints. *catalog.Registry satisfies it.
type CustomStore interface {
	Add(e domain.Endpoint) error
	Remove(name string) error
	List() []domain.Endpoint
}

// EndpointResolver previews the endpoints a URL would be pinged at.
type EndpointResolver interface {
	Resolve(ctx context.Context, targetURL string, sink event.Sink) []domain.Endpoint
}

// EndpointHandler serves the catalog routes.
type EndpointHandler struct {
	custom   CustomStore
	resolver EndpointResolver
	logger   logger.Logger
}

// NewEndpointHandler creates an EndpointHandler. resolver may be nil, which
// disables Resolve.
func NewEndpointHandler(custom CustomStore, resolver EndpointResolver, log logger.Logger) *EndpointHandler {
	return &EndpointHandler{custom: custom, resolver: resolver, logger: log}
}

// List returns the built-in and custom endpoints.
func (h *EndpointHandler) List(c *gin.Context) {
	builtin := catalog.Default()
	custom := h.custom.List()
	c.JSON(http.StatusOK, gin.H{
		"builtin": builtin,
		"custom":  custom,
		"count":   len(catalog.Merge(builtin, custom, h.logger)),
	})
}

// AddCustom stores a custom endpoint.
func (h *EndpointHandler) AddCustom(c *gin.Context) {
	var e domain.Endpoint
	if err := c.ShouldBindJSON(&e); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	err := h.custom.Add(e)
	switch {
	case err == nil:
	case errors.Is(err, catalog.ErrInvalidEndpoint):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, catalog.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	default:
		h.logger.Error("Failed to add custom endpoint", logger.String("name", e.Name), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add custom endpoint"})
		return
	}

	h.logger.Info("Custom endpoint added", logger.String("name", e.Name))

	stored, _ := catalog.Normalize(e)
	c.JSON(http.StatusCreated, stored)
}

// RemoveCustom deletes a custom endpoint by name.
func (h *EndpointHandler) RemoveCustom(c *gin.Context) {
	name := c.Param("name")

	if err := h.custom.Remove(name); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Custom endpoint not found"})
			return
		}
		h.logger.Error("Failed to remove custom endpoint", logger.String("name", name), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to remove custom endpoint"})
		return
	}

	h.logger.Info("Custom endpoint removed", logger.String("name", name))
	c.Status(http.StatusNoContent)
}

// Resolve shows which endpoints ?url= would be pinged at, with the resolver's
// log lines.
func (h *EndpointHandler) Resolve(c *gin.Context) {
	if h.resolver == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Resolver not configured"})
		return
	}

	target := strings.TrimSpace(c.Query("url"))
	if err := submission.Validate([]string{target}); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var logs event.Collector
	endpoints := h.resolver.Resolve(c.Request.Context(), target, &logs)

	c.JSON(http.StatusOK, gin.H{
		"url":       target,
		"endpoints": endpoints,
		"log":       logs.Messages(),
	})
}

// ManualLinks lists destinations that need a manual submission.
func (h *EndpointHandler) ManualLinks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"links": catalog.ManualLinks()})
}
