package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/querysense/querysense/agent"
	"github.com/querysense/querysense/api"
	"github.com/querysense/querysense/graph"
	"github.com/querysense/querysense/types"
)

// streamWriteTimeout bounds each websocket write so one slow client
// cannot stall the pipeline goroutine.
const streamWriteTimeout = 10 * time.Second

// StreamHandler answers questions over a websocket, pushing pipeline
// events as the roles run.
type StreamHandler struct {
	svc    *api.Service
	logger *zap.Logger
}

// NewStreamHandler creates the handler.
func NewStreamHandler(svc *api.Service, logger *zap.Logger) *StreamHandler {
	return &StreamHandler{svc: svc, logger: logger}
}

// StreamEvent is one websocket message.
type StreamEvent struct {
	Type     string          `json:"type"` // node_start, node_complete, result, error
	Node     string          `json:"node,omitempty"`
	Step     int             `json:"step,omitempty"`
	Revision int             `json:"revision,omitempty"`
	Result   *api.AskResult  `json:"result,omitempty"`
	Error    *ErrorInfo      `json:"error,omitempty"`
}

// HandleStream handles GET /api/v1/query/stream. The client sends one
// AskRequest after connecting and receives events until the result.
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	ctx := r.Context()

	var req api.AskRequest
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	err = wsjson.Read(readCtx, conn, &req)
	cancel()
	if err != nil {
		conn.Close(websocket.StatusPolicyViolation, "expected an ask request")
		return
	}

	send := func(ev StreamEvent) {
		writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
		defer cancel()
		if err := wsjson.Write(writeCtx, conn, ev); err != nil {
			h.logger.Debug("websocket write failed", zap.Error(err))
		}
	}

	result, err := h.svc.Ask(ctx, req, func(ev graph.Event[agent.QueryState]) {
		switch ev.Type {
		case graph.EventNodeStart, graph.EventNodeComplete:
			send(StreamEvent{
				Type:     string(ev.Type),
				Node:     ev.Node,
				Step:     ev.Step,
				Revision: ev.State.Revision,
			})
		}
	})
	if err != nil {
		send(StreamEvent{Type: "error", Error: errorInfoOf(err)})
		conn.Close(websocket.StatusNormalClosure, "done")
		return
	}

	send(StreamEvent{Type: "result", Result: result})
	conn.Close(websocket.StatusNormalClosure, "done")
}

func errorInfoOf(err error) *ErrorInfo {
	var typed *types.Error
	if errors.As(err, &typed) {
		return &ErrorInfo{
			Code:      string(typed.Code),
			Message:   typed.Message,
			Retryable: typed.Retryable,
		}
	}
	return &ErrorInfo{Code: string(types.ErrInternalError), Message: err.Error()}
}
