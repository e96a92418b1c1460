package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/models"
	"github.com/Voyagetechsolutions/kjkhandala-sub001/internal/services"
)

// Materializer turns projected trips into persisted rows
type Materializer interface {
	MaterializeUpcoming(ctx context.Context) (*services.MaterializeStats, error)
	MaterializeAhead(ctx context.Context, from time.Time, days int) (*services.MaterializeStats, error)
}

// ExpirySweeper releases reservations whose hold has passed
type ExpirySweeper interface {
	RunOnce(ctx context.Context) (int, error)
}

// TemplateInvalidator drops cached schedule templates
type TemplateInvalidator interface {
	Invalidate(ctx context.Context, ids ...string) error
}

// MaterializeRequest optionally overrides the window of a manual run
type MaterializeRequest struct {
	From string `json:"from,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Days int    `json:"days,omitempty" validate:"omitempty,min=1,max=90"`
}

// JobsHandler lets admins trigger background jobs on demand
type JobsHandler struct {
	materializer Materializer
	sweeper      ExpirySweeper
	templates    TemplateInvalidator
	location     *time.Location
	logger       *logrus.Logger
}

// NewJobsHandler creates a new jobs handler. templates is nil when caching is off.
func NewJobsHandler(materializer Materializer, sweeper ExpirySweeper, templates TemplateInvalidator, loc *time.Location, logger *logrus.Logger) *JobsHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &JobsHandler{
		materializer: materializer,
		sweeper:      sweeper,
		templates:    templates,
		location:     loc,
		logger:       logger,
	}
}

// MaterializeTrips handles POST /api/v1/admin/jobs/materialize
func (h *JobsHandler) MaterializeTrips(c *gin.Context) {
	var req MaterializeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "Invalid request format", err)
			return
		}
	}
	if err := models.ValidateStruct(&req); err != nil {
		respondError(c, h.logger, err)
		return
	}

	var (
		stats *services.MaterializeStats
		err   error
	)
	if req.From == "" && req.Days == 0 {
		stats, err = h.materializer.MaterializeUpcoming(c.Request.Context())
	} else {
		from := time.Now().In(h.location)
		if req.From != "" {
			// validated above
			from, _ = time.ParseInLocation("2006-01-02", req.From, h.location)
		}
		days := req.Days
		if days == 0 {
			days = 1
		}
		stats, err = h.materializer.MaterializeAhead(c.Request.Context(), from, days)
	}
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"stats":  stats,
	})
}

// ExpireReservations handles POST /api/v1/admin/jobs/expire-reservations
func (h *JobsHandler) ExpireReservations(c *gin.Context) {
	released, err := h.sweeper.RunOnce(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":         "success",
		"released_seats": released,
	})
}

// InvalidateTemplates handles POST /api/v1/admin/cache/templates/invalidate
func (h *JobsHandler) InvalidateTemplates(c *gin.Context) {
	if h.templates == nil {
		c.JSON(http.StatusOK, gin.H{"status": "success", "cache": "disabled"})
		return
	}

	var req struct {
		TemplateIDs []string `json:"template_ids"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "Invalid request format", err)
			return
		}
	}

	if err := h.templates.Invalidate(c.Request.Context(), req.TemplateIDs...); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithField("template_ids", req.TemplateIDs).Info("Template cache invalidated")
	c.JSON(http.StatusOK, gin.H{"status": "success", "cache": "invalidated"})
}
