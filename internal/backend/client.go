// Package backend is the HTTP client for the admin backend that owns all
// durable task/project/sprint state. Every call is bounded by the timeout
// guard and traced; retry policy belongs to callers.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tasklane/tasklane_server/config"
	"github.com/tasklane/tasklane_server/pkg/guard"
	"github.com/tasklane/tasklane_server/pkg/tracing"
)

// Client is a lightweight JSON client for the admin backend API.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	tracer     *tracing.Manager
}

// New creates a Client from config. The per-call deadline comes from
// backend.timeout_ms; the embedded http.Client timeout is only a backstop
// for calls the guard has stopped waiting on.
func New(cfg config.BackendConfig, tracer *tracing.Manager) *Client {
	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		timeout:    timeout,
		httpClient: &http.Client{Timeout: 3 * timeout},
		tracer:     tracer,
	}
}

// call wraps one backend operation in a span and the timeout guard.
func call[T any](ctx context.Context, c *Client, name string, attrs []attribute.KeyValue, fn guard.Operation[T]) (T, error) {
	var out T
	err := c.tracer.WithSpan(ctx, name, attrs, func(ctx context.Context) error {
		v, err := guard.WithTimeout(ctx, fn, c.timeout, name)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling backend: %w", err)
	}
	defer resp.Body.Close()

	tracing.SetSpanAttributes(ctx,
		tracing.KeyHTTPMethod.String(method),
		tracing.KeyHTTPStatusCode.Int(resp.StatusCode),
	)

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return fmt.Errorf("%w: %s", ErrValidation, readErrorBody(resp.Body))
	case resp.StatusCode >= 300:
		return fmt.Errorf("%w: status %d", ErrBackend, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding body: %v", ErrBackend, err)
	}
	return nil
}

func readErrorBody(r io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(r, 4096)).Decode(&payload); err != nil || payload.Error == "" {
		return "no detail"
	}
	return payload.Error
}

// ListProjects returns all non-archived projects.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	return call(ctx, c, "backend.list_projects", nil, func(ctx context.Context) ([]Project, error) {
		var projects []Project
		if err := c.do(ctx, http.MethodGet, "/api/projects", nil, &projects); err != nil {
			return nil, err
		}
		return projects, nil
	})
}

// ListTasks returns the tasks of one project.
func (c *Client) ListTasks(ctx context.Context, projectID string) ([]Task, error) {
	attrs := []attribute.KeyValue{tracing.Project(projectID)}
	return call(ctx, c, "backend.list_tasks", attrs, func(ctx context.Context) ([]Task, error) {
		var tasks []Task
		path := "/api/tasks?project_id=" + url.QueryEscape(projectID)
		if err := c.do(ctx, http.MethodGet, path, nil, &tasks); err != nil {
			return nil, err
		}
		return tasks, nil
	})
}

// GetTask fetches one task by id.
func (c *Client) GetTask(ctx context.Context, id string) (*Task, error) {
	attrs := []attribute.KeyValue{tracing.Task(id)}
	return call(ctx, c, "backend.get_task", attrs, func(ctx context.Context) (*Task, error) {
		var task Task
		if err := c.do(ctx, http.MethodGet, "/api/tasks/"+url.PathEscape(id), nil, &task); err != nil {
			return nil, err
		}
		return &task, nil
	})
}

// CreateTask creates a task and returns the stored representation.
func (c *Client) CreateTask(ctx context.Context, create TaskCreate) (*Task, error) {
	attrs := []attribute.KeyValue{tracing.Project(create.ProjectID)}
	return call(ctx, c, "backend.create_task", attrs, func(ctx context.Context) (*Task, error) {
		var task Task
		if err := c.do(ctx, http.MethodPost, "/api/tasks", create, &task); err != nil {
			return nil, err
		}
		return &task, nil
	})
}

// UpdateTask applies a partial update and returns the new representation.
func (c *Client) UpdateTask(ctx context.Context, id string, patch map[string]any) (*Task, error) {
	attrs := []attribute.KeyValue{tracing.Task(id)}
	return call(ctx, c, "backend.update_task", attrs, func(ctx context.Context) (*Task, error) {
		var task Task
		if err := c.do(ctx, http.MethodPatch, "/api/tasks/"+url.PathEscape(id), patch, &task); err != nil {
			return nil, err
		}
		return &task, nil
	})
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	attrs := []attribute.KeyValue{tracing.Task(id)}
	_, err := call(ctx, c, "backend.delete_task", attrs, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.do(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(id), nil, nil)
	})
	return err
}

// SprintBoard returns the kanban board of one sprint.
func (c *Client) SprintBoard(ctx context.Context, sprintID string) (*Board, error) {
	attrs := []attribute.KeyValue{tracing.Sprint(sprintID)}
	return call(ctx, c, "backend.sprint_board", attrs, func(ctx context.Context) (*Board, error) {
		var board Board
		if err := c.do(ctx, http.MethodGet, "/api/sprints/"+url.PathEscape(sprintID)+"/board", nil, &board); err != nil {
			return nil, err
		}
		return &board, nil
	})
}

// Ping checks backend liveness; used by the health monitor.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", ErrBackend, resp.StatusCode)
	}
	return nil
}
