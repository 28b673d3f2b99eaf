package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/thermo/internal/adapters/repository"
	"github.com/okian/thermo/internal/domain/model"
)

// TemperatureDependencies defines the interface for reading aggregates.
type TemperatureDependencies interface {
	Temperatures(ctx context.Context, f model.Filter, page int) (model.Page, error)
	Temperature(ctx context.Context, id int64) (model.AggregateTemperature, error)
}

// TemperatureHandler handles aggregate read requests.
type TemperatureHandler struct {
	deps TemperatureDependencies
}

// NewTemperatureHandler creates a new temperature handler.
func NewTemperatureHandler(deps TemperatureDependencies) *TemperatureHandler {
	return &TemperatureHandler{deps: deps}
}

// HandleList handles GET /temperatures?page=N&city=C&year=Y requests.
func (h *TemperatureHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_temperatures"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := r.URL.Query()

	page := 1
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		page = n
	}

	f := model.Filter{City: strings.TrimSpace(q.Get("city"))}
	if v := q.Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		f.Year = y
	}

	result, err := h.deps.Temperatures(r.Context(), f, page)
	if errors.Is(err, repository.ErrInvalidPage) {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// HandleGet handles GET /temperatures/{id} requests.
func (h *TemperatureHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_temperature"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	raw := strings.TrimPrefix(r.URL.Path, "/temperatures/")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	rec, err := h.deps.Temperature(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", WrapKind(op, ErrNotFound, err))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
