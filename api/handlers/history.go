package handlers

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/querysense/querysense/history"
	"github.com/querysense/querysense/types"
)

// HistoryHandler serves past questions and their outcomes.
type HistoryHandler struct {
	store  *history.Store
	logger *zap.Logger
}

// NewHistoryHandler creates the handler. store may be nil when history
// is disabled; every endpoint then returns 503.
func NewHistoryHandler(store *history.Store, logger *zap.Logger) *HistoryHandler {
	return &HistoryHandler{store: store, logger: logger}
}

// HandleList handles GET /api/v1/history.
func (h *HistoryHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		WriteError(w, types.NewError(types.ErrServiceUnavailable, "query history is disabled"), h.logger)
		return
	}
	filter := history.ListFilter{
		Source: r.URL.Query().Get("source"),
		Limit:  intParam(r, "limit"),
		Offset: intParam(r, "offset"),
	}
	records, err := h.store.List(r.Context(), filter)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, records)
}

// HandleGet handles GET /api/v1/history/{id}.
func (h *HistoryHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		WriteError(w, types.NewError(types.ErrServiceUnavailable, "query history is disabled"), h.logger)
		return
	}
	rec, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	WriteSuccess(w, rec)
}

func intParam(r *http.Request, name string) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
