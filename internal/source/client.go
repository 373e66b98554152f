// Package source reads the remote demo API that seeds projects, tasks and the
// assignee directory. It never writes to the remote side.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public dummyjson deployment.
const DefaultBaseURL = "https://dummyjson.com"

// Todo is one record of GET /todos.
type Todo struct {
	ID        int64  `json:"id"`
	Todo      string `json:"todo"`
	Completed bool   `json:"completed"`
	UserID    int64  `json:"userId"`
}

// User is the subset of GET /users the dashboard consumes.
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Image     string `json:"image,omitempty"`
}

// Source is the read-only remote contract.
type Source interface {
	Todos(ctx context.Context) ([]Todo, error)
	Todo(ctx context.Context, id int64) (Todo, error)
	Users(ctx context.Context) ([]User, error)
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("remote error: status=%d body=%s", e.StatusCode, e.Body)
}

// NotFound reports whether the remote answered 404.
func (e *APIError) NotFound() bool { return e.StatusCode == http.StatusNotFound }

// Client is a minimal dummyjson HTTP client. It is safe for concurrent use
// once configured.
type Client struct {
	BaseURL    string
	Limit      int
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Todos fetches the todo list. Limit 0 keeps the remote default page.
func (c *Client) Todos(ctx context.Context) ([]Todo, error) {
	var resp struct {
		Todos []Todo `json:"todos"`
	}
	if err := c.do(ctx, c.withLimit("todos"), &resp); err != nil {
		return nil, fmt.Errorf("fetch todos: %w", err)
	}
	if resp.Todos == nil {
		resp.Todos = []Todo{}
	}
	return resp.Todos, nil
}

// Todo fetches a single record for detail views.
func (c *Client) Todo(ctx context.Context, id int64) (Todo, error) {
	var resp Todo
	if err := c.do(ctx, "todos/"+strconv.FormatInt(id, 10), &resp); err != nil {
		return Todo{}, fmt.Errorf("fetch todo %d: %w", id, err)
	}
	return resp, nil
}

// Users fetches the assignee directory.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var resp struct {
		Users []User `json:"users"`
	}
	if err := c.do(ctx, c.withLimit("users"), &resp); err != nil {
		return nil, fmt.Errorf("fetch users: %w", err)
	}
	if resp.Users == nil {
		resp.Users = []User{}
	}
	return resp.Users, nil
}

func (c *Client) withLimit(endpoint string) string {
	if c.Limit <= 0 {
		return endpoint
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.Limit))
	return endpoint + "?" + q.Encode()
}

func (c *Client) do(ctx context.Context, endpoint string, out any) error {
	hc := c.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
