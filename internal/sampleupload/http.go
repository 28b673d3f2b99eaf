package sampleupload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/thermo/pkg/logger"
)

// Task states reported by /etl/status.
const (
	statePending = "PENDING"
	stateStarted = "STARTED"
	stateSuccess = "SUCCESS"
	stateFailure = "FAILURE"
)

const pollInterval = 250 * time.Millisecond

// HTTPClient wraps http.Client with the service's base URL.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// newHTTPClient creates a new HTTP client with timeout.
func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

type uploadResponse struct {
	Status string `json:"status"`
	TaskID string `json:"task_id"`
}

type statusResponse struct {
	Status string `json:"status"`
	TaskID string `json:"task_id"`
	Result string `json:"result"`
	Error  string `json:"error"`
}

type record struct {
	ID             int64   `json:"id"`
	City           string  `json:"city"`
	Year           int     `json:"year"`
	AvgTemperature float64 `json:"avg_temperature"`
}

type page struct {
	Page       int      `json:"page"`
	TotalPages int      `json:"total_pages"`
	Data       []record `json:"data"`
}

// get performs a GET request and decodes a 200 JSON response into v.
func (c *HTTPClient) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	return decodeResponse(resp, v)
}

func decodeResponse(resp *http.Response, v any) error {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}
	if v == nil {
		return nil
	}
	return json.Unmarshal(body, v)
}

// Upload posts f as multipart field "file" and returns the task id.
func (c *HTTPClient) Upload(ctx context.Context, f File) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", f.Name)
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(f.Data); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/datasets", &buf)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	var out uploadResponse
	if err := decodeResponse(resp, &out); err != nil {
		return "", err
	}
	return out.TaskID, nil
}

// Status returns the current status of a task.
func (c *HTTPClient) Status(ctx context.Context, id string) (statusResponse, error) {
	var out statusResponse
	err := c.get(ctx, "/etl/status/"+url.PathEscape(id), &out)
	return out, err
}

// Temperatures returns every record whose city contains filter.
func (c *HTTPClient) Temperatures(ctx context.Context, filter string) ([]record, error) {
	var all []record
	for n := 1; ; n++ {
		var p page
		q := url.Values{"page": {strconv.Itoa(n)}, "city": {filter}}
		if err := c.get(ctx, "/temperatures?"+q.Encode(), &p); err != nil {
			return nil, err
		}
		all = append(all, p.Data...)
		if n >= p.TotalPages {
			return all, nil
		}
	}
}

// uploadFiles uploads files concurrently and returns task ids by file name.
func uploadFiles(ctx context.Context, config *Config, client *HTTPClient, files []File, stats *Stats) map[string]string {
	logger.Get().Info(ctx, "uploading files", logger.Int("files", len(files)), logger.Int("workers", config.Workers))

	var (
		mu       sync.Mutex
		ids      = make(map[string]string, len(files))
		uploaded int64
		failed   int64
		wg       sync.WaitGroup
	)
	jobs := make(chan File)
	for w := 0; w < config.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for f := range jobs {
				id, err := client.Upload(ctx, f)
				if err != nil {
					atomic.AddInt64(&failed, 1)
					logger.Get().Warn(ctx, "upload failed", logger.String("file", f.Name), logger.Error(err))
					continue
				}
				atomic.AddInt64(&uploaded, 1)
				mu.Lock()
				ids[f.Name] = id
				mu.Unlock()
				if config.Verbose {
					logger.Get().Info(ctx, "file uploaded", logger.String("file", f.Name), logger.String("task_id", id))
				}
			}
		}()
	}
	for _, f := range files {
		select {
		case jobs <- f:
		case <-ctx.Done():
		}
	}
	close(jobs)
	wg.Wait()

	stats.FilesUploaded = int(uploaded)
	stats.UploadsFailed = int(failed)
	return ids
}

// waitForTasks polls every task until it finishes or config.Wait passes.
func waitForTasks(ctx context.Context, config *Config, client *HTTPClient, ids map[string]string, stats *Stats) {
	logger.Get().Info(ctx, "waiting for tasks", logger.Int("tasks", len(ids)), logger.Duration("wait", config.Wait))

	ctx, cancel := context.WithTimeout(ctx, config.Wait)
	defer cancel()

	pending := make(map[string]string, len(ids))
	for name, id := range ids {
		pending[name] = id
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for len(pending) > 0 {
		for name, id := range pending {
			st, err := client.Status(ctx, id)
			if err != nil {
				continue
			}
			switch st.Status {
			case stateSuccess:
				stats.TasksSucceeded++
				delete(pending, name)
				if config.Verbose {
					logger.Get().Info(ctx, "task succeeded", logger.String("file", name), logger.String("result", st.Result))
				}
			case stateFailure:
				stats.TasksFailed++
				delete(pending, name)
				logger.Get().Warn(ctx, "task failed", logger.String("file", name), logger.String("error", st.Error))
			case statePending, stateStarted:
			}
		}
		if len(pending) == 0 {
			break
		}
		select {
		case <-ctx.Done():
			stats.TasksUnfinished = len(pending)
			logger.Get().Warn(ctx, "tasks still running after wait", logger.Int("tasks", len(pending)))
			return
		case <-ticker.C:
		}
	}
}
