// Package taskapi is an HTTP client for the MicroJobs tasks API.
package taskapi

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

	"github.com/CrowderSoup/microjobs/database"
)

// ErrEmptyResponse is returned when a successful response carries no body
// where one was expected.
var ErrEmptyResponse = errors.New("empty response body")

// APIError is a non-2xx response. Its message is the server's error text so
// it can be shown to the user as is.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return http.StatusText(e.Status)
	}
	return e.Message
}

// Client talks to the tasks API on behalf of one user.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// NewClient creates a client for the API at baseURL. A zero timeout keeps
// the transport default.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// WithToken returns a copy of the client that authenticates with token.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// UpdateResult is the body of a PATCH /tasks/{id} response.
type UpdateResult struct {
	Acknowledged  bool  `json:"acknowledged"`
	ModifiedCount int64 `json:"modifiedCount"`
}

// DeleteResult is the body of a DELETE /tasks/{id} response.
type DeleteResult struct {
	DeletedCount int64 `json:"deletedCount"`
}

// ListTasks fetches the tasks posted by buyerEmail.
func (c *Client) ListTasks(ctx context.Context, buyerEmail string) ([]database.Task, error) {
	var tasks []database.Task
	path := "/tasks?buyerEmail=" + url.QueryEscape(buyerEmail)
	if err := c.do(ctx, http.MethodGet, path, nil, &tasks); err != nil {
		return nil, err
	}
	if tasks == nil {
		tasks = []database.Task{}
	}
	return tasks, nil
}

// GetTask fetches one task.
func (c *Client) GetTask(ctx context.Context, id string) (database.Task, error) {
	var task database.Task
	err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil, &task)
	return task, err
}

// CreateTask posts a new task and returns it with its assigned id.
func (c *Client) CreateTask(ctx context.Context, task database.Task) (database.Task, error) {
	var created database.Task
	err := c.do(ctx, http.MethodPost, "/tasks", task, &created)
	return created, err
}

// UpdateTask sends task as a partial update and returns the modified count.
func (c *Client) UpdateTask(ctx context.Context, task database.Task) (int64, error) {
	var res UpdateResult
	if err := c.do(ctx, http.MethodPatch, "/tasks/"+url.PathEscape(task.ID), task, &res); err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// DeleteTask removes the task with id.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	var res DeleteResult
	return c.do(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(id), nil, &res)
}

// UserRole returns the stored role name of email.
func (c *Client) UserRole(ctx context.Context, email string) (string, error) {
	var res struct {
		Role string `json:"role"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/role/"+url.PathEscape(email), nil, &res); err != nil {
		return "", err
	}
	return res.Role, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s %s: %w", method, path, ErrEmptyResponse)
		}
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Status: resp.StatusCode}

	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &payload) == nil && payload.Error != "" {
		apiErr.Message = payload.Error
	} else {
		apiErr.Message = strings.TrimSpace(string(b))
	}
	return apiErr
}
