package api

import (
	"context"
	"net/http"

	"github.com/okian/thermo/internal/etl"
)

// FileDependencies defines the interface for listing waiting files.
type FileDependencies interface {
	PendingFiles(ctx context.Context) ([]etl.FileInfo, error)
}

// FilesHandler handles file listing requests.
type FilesHandler struct {
	deps FileDependencies
}

// NewFilesHandler creates a new files handler.
func NewFilesHandler(deps FileDependencies) *FilesHandler {
	return &FilesHandler{deps: deps}
}

type filesResponse struct {
	Files []etl.FileInfo `json:"files"`
	Total int            `json:"total"`
}

// HandleList handles GET /files requests.
func (h *FilesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_files"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	files, err := h.deps.PendingFiles(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
		return
	}
	if files == nil {
		files = []etl.FileInfo{}
	}
	writeJSON(w, http.StatusOK, filesResponse{Files: files, Total: len(files)})
}
