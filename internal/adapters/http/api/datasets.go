package api

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/okian/thermo/internal/etl"
)

const (
	// multipartOverhead allows for boundaries and part headers on top of the
	// file itself.
	multipartOverhead = 1 << 20
	// replyTimeout bounds writing the reply once the body has been consumed.
	replyTimeout = 30 * time.Second
)

// DatasetDependencies defines the interface for accepting uploads.
type DatasetDependencies interface {
	// Upload stores the file and enqueues it, returning the task id.
	Upload(ctx context.Context, filename string, r io.Reader) (string, error)
	MaxUploadBytes() int64
}

// DatasetsHandler handles CSV uploads.
type DatasetsHandler struct {
	deps DatasetDependencies
}

// NewDatasetsHandler creates a new datasets handler.
func NewDatasetsHandler(deps DatasetDependencies) *DatasetsHandler {
	return &DatasetsHandler{deps: deps}
}

type uploadResponse struct {
	Status string `json:"status"`
	TaskID string `json:"task_id"`
}

// HandlePostDataset handles POST /datasets with a multipart "file" field.
// The part is streamed to disk, never buffered in memory.
func (h *DatasetsHandler) HandlePostDataset(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_dataset"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if limit := h.deps.MaxUploadBytes(); limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	part, err := filePart(mr)
	if err != nil {
		if tooLarge(err) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large", WrapKind(op, ErrTooLarge, err))
			return
		}
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	defer part.Close()

	id, err := h.deps.Upload(r.Context(), part.FileName(), part)
	// The server write deadline runs from the request headers, so a slow
	// body would otherwise leave an enqueued task without a reply.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Now().Add(replyTimeout))
	if err != nil {
		h.fail(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Status: "enqueued", TaskID: id})
}

// filePart advances mr to the "file" part.
func filePart(mr *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing file field")
		}
		if err != nil {
			return nil, err
		}
		if part.FormName() == "file" {
			if part.FileName() == "" {
				_ = part.Close()
				return nil, errors.New("file field has no filename")
			}
			return part, nil
		}
		_ = part.Close()
	}
}

func (h *DatasetsHandler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case tooLarge(err):
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", WrapKind(op, ErrTooLarge, err))
	case errors.Is(err, etl.ErrNotCSV):
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
	case errors.Is(err, etl.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "unavailable", WrapKind(op, ErrUnavailable, err))
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", Wrap(op, err))
	}
}

func tooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr) || errors.Is(err, etl.ErrTooLarge)
}
