// Package handler exposes batches and endpoints over HTTP.
package handler

import (
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jonesrussell/seo-pinger/infrastructure/jwt"
	"github.com/jonesrussell/seo-pinger/infrastructure/logger"
	"github.com/jonesrussell/seo-pinger/internal/batch"
	"github.com/jonesrussell/seo-pinger/internal/domain"
	"github.com/jonesrussell/seo-pinger/internal/submission"
)

// BatchService runs and tracks batches. *batch.Manager satisfies it.
type BatchService interface {
	Start(urls []string, policy submission.DedupPolicy) (domain.Batch, error)
	Get(id string) (domain.Batch, bool)
	List() []domain.Batch
	Cancel(id string) error
}

// BatchHandler serves the batch routes.
type BatchHandler struct {
	batches BatchService
	dedup   submission.DedupPolicy
	logger  logger.Logger
}

// NewBatchHandler creates a BatchHandler. dedup applies when a request names
// no policy.
func NewBatchHandler(svc BatchService, dedup submission.DedupPolicy, log logger.Logger) *BatchHandler {
	if dedup == "" {
		dedup = submission.DedupPreserve
	}
	return &BatchHandler{batches: svc, dedup: dedup, logger: log}
}

// CreateBatchRequest accepts multi-line text, a list, or both.
type CreateBatchRequest struct {
	URLs    string   `json:"urls"`
	URLList []string `json:"url_list"`
	Dedup   string   `json:"dedup"`
}

// Create starts a batch and answers 202 with its first snapshot.
func (h *BatchHandler) Create(c *gin.Context) {
	var req CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	policy := h.dedup
	if req.Dedup != "" {
		if !slices.Contains(submission.DedupPolicies, req.Dedup) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "dedup must be one of: " + strings.Join(submission.DedupPolicies, ", "),
			})
			return
		}
		policy = submission.DedupPolicy(req.Dedup)
	}

	urls := append(submission.ParseInput(req.URLs, policy), req.URLList...)

	b, err := h.batches.Start(urls, policy)
	if err != nil {
		h.startFailed(c, err)
		return
	}

	fields := []logger.Field{logger.String("batch_id", b.ID), logger.Int("urls", len(b.Items))}
	if claims, ok := jwt.GetClaims(c); ok {
		fields = append(fields, logger.String("requested_by", claims.Sub))
	}
	h.logger.Info("Batch requested", fields...)

	c.Header("Location", "/api/v1/batches/"+b.ID)
	c.JSON(http.StatusAccepted, b)
}

func (h *BatchHandler) startFailed(c *gin.Context, err error) {
	var verr *submission.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "invalid_urls": verr.Invalid})
	case errors.Is(err, submission.ErrEmptyBatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "invalid_urls": []submission.InvalidURL{}})
	case errors.Is(err, batch.ErrTooManyBatches):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	default:
		h.logger.Error("Failed to start batch", logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start batch"})
	}
}

// List returns every retained batch, newest first.
func (h *BatchHandler) List(c *gin.Context) {
	batches := h.batches.List()
	c.JSON(http.StatusOK, gin.H{
		"batches": batches,
		"count":   len(batches),
	})
}

// Get returns one batch snapshot.
func (h *BatchHandler) Get(c *gin.Context) {
	b, ok := h.batches.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Batch not found"})
		return
	}
	c.JSON(http.StatusOK, b)
}

// Cancel abandons a batch. Items not yet reached end as failed.
func (h *BatchHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if err := h.batches.Cancel(id); err != nil {
		if errors.Is(err, batch.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Batch not found"})
			return
		}
		h.logger.Error("Failed to cancel batch", logger.String("batch_id", id), logger.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel batch"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"id": id, "status": "cancelling"})
}

// Log exports the batch log as plain text, one entry per line.
func (h *BatchHandler) Log(c *gin.Context) {
	b, ok := h.batches.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Batch not found"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="seo-pinger-`+b.ID+`.txt"`)
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(b.LogText()))
}
