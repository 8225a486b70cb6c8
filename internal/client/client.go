package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"resty.dev/v3"

	"livemenu/internal/export"
	"livemenu/internal/models"
)

// ErrJobFailed is returned by WaitJob when the job ends in the failed state.
var ErrJobFailed = errors.New("export job failed")

// APIError is a non-2xx answer of the menu API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http %d", e.Status)
	}
	return fmt.Sprintf("http %d: %s", e.Status, e.Message)
}

// Client talks to a running menu API with an API-key pair.
type Client struct {
	baseURL  string
	apiKey   string
	apiExtra string
	http     *resty.Client
}

func New(baseURL, apiKey, apiExtra string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		apiExtra: apiExtra,
		http: resty.New().
			SetRetryCount(2).
			SetRetryWaitTime(300 * time.Millisecond).
			SetRetryMaxWaitTime(2 * time.Second).
			SetTimeout(timeout),
	}
}

func (c *Client) Close() error {
	return c.http.Close()
}

// EnqueueExport queues an export. archiveID may be empty.
func (c *Client) EnqueueExport(ctx context.Context, req export.Request, archiveID string) (*models.ExportJob, error) {
	body := struct {
		export.Request
		ArchiveID string `json:"archive_id,omitempty"`
	}{Request: req, ArchiveID: archiveID}

	var job models.ExportJob
	if err := c.do(ctx, http.MethodPost, "/api/v1/exports", body, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (c *Client) Job(ctx context.Context, id string) (*models.ExportJob, error) {
	var job models.ExportJob
	if err := c.do(ctx, http.MethodGet, "/api/v1/exports/"+url.PathEscape(id), nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// WaitJob polls the job until it finishes. onUpdate sees every polled state.
func (c *Client) WaitJob(ctx context.Context, id string, every time.Duration, onUpdate func(*models.ExportJob)) (*models.ExportJob, error) {
	if every <= 0 {
		every = time.Second
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		job, err := c.Job(ctx, id)
		if err != nil {
			return nil, err
		}
		if onUpdate != nil {
			onUpdate(job)
		}
		if job.Finished() {
			if job.Status == models.JobFailed {
				return job, fmt.Errorf("%w: %s", ErrJobFailed, job.Error)
			}
			return job, nil
		}

		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Download fetches a stored artifact by its key.
func (c *Client) Download(ctx context.Context, key string) ([]byte, error) {
	resp, err := c.request(ctx).Get(c.baseURL + "/api/v1/artifacts/" + key)
	if err != nil {
		return nil, fmt.Errorf("download %s: %w", key, err)
	}
	defer resp.Body.Close()

	buff := new(bytes.Buffer)
	if _, err := buff.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if resp.StatusCode() >= 300 {
		return nil, apiError(resp.StatusCode(), buff.Bytes())
	}
	return buff.Bytes(), nil
}

func (c *Client) request(ctx context.Context) *resty.Request {
	r := c.http.R().SetContext(ctx)
	if c.apiKey != "" {
		r.SetHeader("x-api-key", c.apiKey)
	}
	if c.apiExtra != "" {
		r.SetHeader("x-api-extra", c.apiExtra)
	}
	return r
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	r := c.request(ctx)
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r.SetHeader("Content-Type", "application/json").SetBody(data)
	}

	resp, err := r.Execute(method, c.baseURL+path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return apiError(resp.StatusCode(), data)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func apiError(status int, body []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)
	return &APIError{Status: status, Message: payload.Error}
}
