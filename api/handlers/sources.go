package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/querysense/querysense/api"
)

// SourcesHandler lists the queryable data sources.
type SourcesHandler struct {
	svc    *api.Service
	logger *zap.Logger
}

// NewSourcesHandler creates the handler.
func NewSourcesHandler(svc *api.Service, logger *zap.Logger) *SourcesHandler {
	return &SourcesHandler{svc: svc, logger: logger}
}

// HandleList handles GET /api/v1/sources.
func (h *SourcesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	WriteSuccess(w, h.svc.Sources())
}

// HandleSchema handles GET /api/v1/sources/{name}/schema.
func (h *SourcesHandler) HandleSchema(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	conn, err := h.svc.Registry().Get(name)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	tables, err := conn.Schema(r.Context())
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, tables)
}

// HandleTable handles GET /api/v1/sources/{name}/tables/{table}.
func (h *SourcesHandler) HandleTable(w http.ResponseWriter, r *http.Request) {
	conn, err := h.svc.Registry().Get(r.PathValue("name"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	table, err := conn.TableInfo(r.Context(), r.PathValue("table"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, table)
}
