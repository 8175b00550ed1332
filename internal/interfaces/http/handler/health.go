package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/primebond/ledger/internal/interfaces/http/dto"
)

// Checker probes one dependency for readiness
type Checker func(ctx context.Context) error

// HealthHandler serves liveness and readiness probes
type HealthHandler struct {
	BaseHandler
	version   string
	startTime time.Time
	checks    map[string]Checker
}

// NewHealthHandler creates a new HealthHandler. checks are run by Ready.
func NewHealthHandler(version string, checks map[string]Checker) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
		checks:    checks,
	}
}

// Live handles GET /health
func (h *HealthHandler) Live(c *gin.Context) {
	h.Success(c, gin.H{
		"status":     "ok",
		"version":    h.version,
		"go_version": runtime.Version(),
		"uptime":     time.Since(h.startTime).Round(time.Second).String(),
	})
}

// Ready handles GET /ready: 503 when any dependency check fails
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	resp := dto.NewSuccessResponse(results)
	resp.Success = status == http.StatusOK
	c.JSON(status, resp)
}
