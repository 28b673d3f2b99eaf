// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/okian/thermo/pkg/logger"
	"github.com/okian/thermo/pkg/metrics"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	DatasetDependencies
	StatusDependencies
	TemperatureDependencies
	FileDependencies
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	datasetsHandler    *DatasetsHandler
	statusHandler      *StatusHandler
	temperatureHandler *TemperatureHandler
	filesHandler       *FilesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		datasetsHandler:    NewDatasetsHandler(deps),
		statusHandler:      NewStatusHandler(deps),
		temperatureHandler: NewTemperatureHandler(deps),
		filesHandler:       NewFilesHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/datasets", MetricsMiddleware(s.datasetsHandler.HandlePostDataset, "datasets"))
	mux.HandleFunc("/etl/status/", MetricsMiddleware(s.statusHandler.HandleGetStatus, "etl_status"))
	mux.HandleFunc("/temperatures", MetricsMiddleware(s.temperatureHandler.HandleList, "temperatures"))
	mux.HandleFunc("/temperatures/", MetricsMiddleware(s.temperatureHandler.HandleGet, "temperature"))
	mux.HandleFunc("/files", MetricsMiddleware(s.filesHandler.HandleList, "files"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeJSON encodes v before writing the header, so a value that cannot be
// encoded becomes a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		metrics.RecordErrorByComponent("http", "encode")
		logger.Get().Named("api").Error(context.Background(), "failed to encode response", logger.Error(err))
		status = http.StatusInternalServerError
		body, _ = json.Marshal(errorResponse{Code: "internal_error", Message: "response could not be encoded"})
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
