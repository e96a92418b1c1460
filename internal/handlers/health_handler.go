package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Pinger is a dependency the health check can ping
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger
type PingerFunc func(ctx context.Context) error

// Ping calls f
func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler reports the state of the service and its dependencies
type HealthHandler struct {
	checks  map[string]Pinger
	version string
	logger  *logrus.Logger
}

// NewHealthHandler creates a new health handler. A nil check is skipped.
func NewHealthHandler(version string, checks map[string]Pinger, logger *logrus.Logger) *HealthHandler {
	active := make(map[string]Pinger, len(checks))
	for name, check := range checks {
		if check != nil {
			active[name] = check
		}
	}
	return &HealthHandler{checks: active, version: version, logger: logger}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	errs := make(map[string]error, len(h.checks))
	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	outcomes := make([]error, len(names))

	var g errgroup.Group
	for i, name := range names {
		i, check := i, h.checks[name]
		g.Go(func() error {
			outcomes[i] = check.Ping(ctx)
			return nil
		})
	}
	_ = g.Wait()

	healthy := true
	for i, name := range names {
		if outcomes[i] != nil {
			healthy = false
			results[name] = "unhealthy"
			errs[name] = outcomes[i]
			continue
		}
		results[name] = "healthy"
	}

	status := http.StatusOK
	state := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "unhealthy"
		h.logger.WithField("checks", errs).Error("Health check failed")
	}

	c.JSON(status, gin.H{
		"status":    state,
		"version":   version(h.version),
		"checks":    results,
		"timestamp": time.Now().UTC(),
	})
}

func version(v string) string {
	if v == "" {
		return "dev"
	}
	return v
}
