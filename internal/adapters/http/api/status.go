package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/thermo/internal/adapters/mq/queue"
)

// StatusDependencies defines the interface for task status lookups.
type StatusDependencies interface {
	TaskStatus(ctx context.Context, id string) (queue.Status, error)
}

// StatusHandler handles task status requests.
type StatusHandler struct {
	deps StatusDependencies
}

// NewStatusHandler creates a new status handler.
func NewStatusHandler(deps StatusDependencies) *StatusHandler {
	return &StatusHandler{deps: deps}
}

type statusResponse struct {
	Status string `json:"status"`
	TaskID string `json:"task_id"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// HandleGetStatus handles GET /etl/status/{task_id} requests.
func (h *StatusHandler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_status"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/etl/status/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not_found", NewKind(op, ErrNotFound))
		return
	}
	st, err := h.deps.TaskStatus(r.Context(), id)
	if errors.Is(err, queue.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Status: string(st.State),
		TaskID: id,
		Result: st.Result,
		Error:  st.Error,
	})
}
