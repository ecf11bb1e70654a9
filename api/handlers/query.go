package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/querysense/querysense/api"
)

// QueryHandler answers questions synchronously.
type QueryHandler struct {
	svc    *api.Service
	logger *zap.Logger
}

// NewQueryHandler creates the handler.
func NewQueryHandler(svc *api.Service, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{svc: svc, logger: logger}
}

// HandleQuery handles POST /api/v1/query.
func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req api.AskRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	result, err := h.svc.Ask(r.Context(), req, nil)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, result)
}
