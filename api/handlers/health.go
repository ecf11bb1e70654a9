package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/querysense/querysense/datasource"
	"github.com/querysense/querysense/llm"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	registry *datasource.Registry
	provider llm.Provider
	logger   *zap.Logger
}

// NewHealthHandler creates the handler. registry and provider may be
// nil; readiness then skips the missing probe.
func NewHealthHandler(registry *datasource.Registry, provider llm.Provider, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{registry: registry, provider: provider, logger: logger}
}

// HandleHealth handles GET /health: process liveness only.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now(),
	})
}

// HandleReady handles GET /readyz: sources and the LLM provider must
// both answer.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string)

	if h.registry != nil {
		results, err := h.registry.PingAll(ctx)
		for name, perr := range results {
			if perr != nil {
				checks["source:"+name] = perr.Error()
				status = http.StatusServiceUnavailable
			} else {
				checks["source:"+name] = "ok"
			}
		}
		if err != nil {
			h.logger.Warn("readiness: data source probe failed", zap.Error(err))
		}
	}

	if h.provider != nil {
		hs, err := h.provider.HealthCheck(ctx)
		switch {
		case err != nil:
			checks["llm"] = err.Error()
			status = http.StatusServiceUnavailable
		case !hs.Healthy:
			checks["llm"] = "unhealthy"
			status = http.StatusServiceUnavailable
		default:
			checks["llm"] = "ok"
		}
	}

	WriteJSON(w, status, map[string]any{
		"status":    statusWord(status),
		"checks":    checks,
		"timestamp": time.Now(),
	})
}

// HandleVersion returns build information.
func (h *HealthHandler) HandleVersion(version, buildTime, gitCommit string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		WriteJSON(w, http.StatusOK, map[string]string{
			"version":    version,
			"build_time": buildTime,
			"git_commit": gitCommit,
		})
	}
}

func statusWord(status int) string {
	if status == http.StatusOK {
		return "ready"
	}
	return "degraded"
}
