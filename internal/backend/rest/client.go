// Package rest implements service.Service against the task backend's
// JSON REST API.
package rest

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

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"taskman/internal/logging"
	"taskman/internal/service"
)

const (
	defaultTimeout = 10 * time.Second

	// maxErrorBody caps how much of an error response is read for its message.
	maxErrorBody = 64 << 10
)

// Fallback messages used when the backend does not provide one.
const (
	msgLoadTasks    = "Failed to load tasks"
	msgSaveTask     = "Failed to save task"
	msgDeleteTask   = "Failed to delete task"
	msgInvalidLogin = "Invalid email or password"
	msgRegistration = "Registration failed"
	msgProfile      = "Failed to load profile"
	msgSaveProfile  = "Failed to save profile"
)

// Client talks to the REST backend. It is safe for concurrent use.
type Client struct {
	baseURL *url.URL
	base    http.RoundTripper
	timeout time.Duration
	logger  *logging.Logger
}

// Options allows overriding client dependencies.
type Options struct {
	// Transport is the underlying round tripper. Defaults to
	// http.DefaultTransport.
	Transport http.RoundTripper
	// Timeout bounds every request. Defaults to 10s.
	Timeout time.Duration
	Logger  *logging.Logger
}

var _ service.Service = (*Client)(nil)

// New creates a client for the backend at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("api url is empty")
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse api url: %w", err)
	}
	c := &Client{
		baseURL: parsed,
		base:    opts.Transport,
		timeout: opts.Timeout,
		logger:  opts.Logger,
	}
	if c.base == nil {
		c.base = http.DefaultTransport
	}
	if c.timeout <= 0 {
		c.timeout = defaultTimeout
	}
	if c.logger == nil {
		c.logger = logging.NopLogger()
	}
	c.logger = c.logger.With("component", "rest")
	return c, nil
}

// httpClient returns a client that attaches token as a bearer header.
func (c *Client) httpClient(token string) *http.Client {
	transport := c.base
	if token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}),
			Base:   c.base,
		}
	}
	return &http.Client{Transport: transport, Timeout: c.timeout}
}

// Register implements service.Service.
func (c *Client) Register(ctx context.Context, reg service.Registration) (service.UserProfile, error) {
	const op = "Register"
	resp, err := c.doJSON(ctx, op, http.MethodPost, "/api/auth/register", "", reg)
	if err != nil {
		return service.UserProfile{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return service.UserProfile{}, c.statusError(op, resp, msgRegistration)
	}
	var body struct {
		User *service.UserProfile `json:"user"`
	}
	if err := decodeBody(resp.Body, &body); err != nil {
		return service.UserProfile{}, transientError(op, err)
	}
	if body.User == nil {
		return service.UserProfile{}, nil
	}
	return *body.User, nil
}

// Login implements service.Service. Any 401 means bad credentials here,
// not an expired session.
func (c *Client) Login(ctx context.Context, creds service.Credentials) (service.AuthResult, error) {
	const op = "Login"
	resp, err := c.doJSON(ctx, op, http.MethodPost, "/api/auth/login", "", creds)
	if err != nil {
		return service.AuthResult{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusUnauthorized {
		msg := readMessage(resp.Body)
		if msg == "" {
			msg = msgInvalidLogin
		}
		return service.AuthResult{}, &service.Error{Op: op, Kind: service.KindValidation, Status: resp.StatusCode, Message: msg}
	}
	if resp.StatusCode >= 300 {
		return service.AuthResult{}, c.statusError(op, resp, msgInvalidLogin)
	}
	var result service.AuthResult
	if err := decodeBody(resp.Body, &result); err != nil {
		return service.AuthResult{}, transientError(op, err)
	}
	if strings.TrimSpace(result.Token) == "" {
		return service.AuthResult{}, &service.Error{Op: op, Kind: service.KindTransient, Status: resp.StatusCode, Err: errors.New("empty auth token")}
	}
	return result, nil
}

// GetProfile implements service.Service.
func (c *Client) GetProfile(ctx context.Context, token string) (service.UserProfile, error) {
	const op = "GetProfile"
	resp, err := c.do(ctx, op, http.MethodGet, "/api/user/profile", token, nil)
	if err != nil {
		return service.UserProfile{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return service.UserProfile{}, c.statusError(op, resp, msgProfile)
	}
	return decodeProfile(op, resp.Body)
}

// UpdateProfile implements service.Service.
func (c *Client) UpdateProfile(ctx context.Context, token string, update service.ProfileUpdate) (service.UserProfile, error) {
	const op = "UpdateProfile"
	resp, err := c.doJSON(ctx, op, http.MethodPut, "/api/user/profile", token, update)
	if err != nil {
		return service.UserProfile{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return service.UserProfile{}, c.statusError(op, resp, msgSaveProfile)
	}
	return decodeProfile(op, resp.Body)
}

// ListTasks implements service.Service.
func (c *Client) ListTasks(ctx context.Context, token string, filters service.Filters) ([]service.Task, error) {
	const op = "ListTasks"
	path := "/api/tasks"
	if q := filters.Query(); len(q) > 0 {
		path += "?" + q.Encode()
	}
	resp, err := c.do(ctx, op, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, c.statusError(op, resp, msgLoadTasks)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transientError(op, err)
	}
	tasks, err := decodeTaskList(data)
	if err != nil {
		return nil, transientError(op, err)
	}
	return tasks, nil
}

// CreateTask implements service.Service. Empty status and priority
// default to pending and medium.
func (c *Client) CreateTask(ctx context.Context, token string, fields service.TaskFields) (service.Task, error) {
	const op = "CreateTask"
	fields = fields.WithDefaults()
	fields.Title = strings.TrimSpace(fields.Title)
	if err := fields.Validate(); err != nil {
		return service.Task{}, err
	}
	return c.saveTask(ctx, op, http.MethodPost, "/api/tasks", token, fields)
}

// UpdateTask implements service.Service. All fields are sent.
func (c *Client) UpdateTask(ctx context.Context, token, id string, fields service.TaskFields) (service.Task, error) {
	const op = "UpdateTask"
	path, err := taskPath(op, id)
	if err != nil {
		return service.Task{}, err
	}
	fields.Title = strings.TrimSpace(fields.Title)
	if err := fields.Validate(); err != nil {
		return service.Task{}, err
	}
	return c.saveTask(ctx, op, http.MethodPut, path, token, fields)
}

// taskPath returns the escaped resource path of task id. Ids that are
// empty or dot segments are rejected: they would address another route.
func taskPath(op, id string) (string, error) {
	switch id = strings.TrimSpace(id); id {
	case "":
		return "", &service.Error{Op: op, Kind: service.KindValidation, Message: "task id required"}
	case ".", "..":
		return "", &service.Error{Op: op, Kind: service.KindValidation, Message: "invalid task id: " + id}
	}
	return "/api/tasks/" + url.PathEscape(id), nil
}

func (c *Client) saveTask(ctx context.Context, op, method, path, token string, fields service.TaskFields) (service.Task, error) {
	resp, err := c.doJSON(ctx, op, method, path, token, fields)
	if err != nil {
		return service.Task{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return service.Task{}, c.statusError(op, resp, msgSaveTask)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return service.Task{}, transientError(op, err)
	}
	task, err := decodeTask(data)
	if err != nil {
		return service.Task{}, transientError(op, err)
	}
	return task, nil
}

// DeleteTask implements service.Service. A 404 counts as success.
func (c *Client) DeleteTask(ctx context.Context, token, id string) error {
	const op = "DeleteTask"
	id = strings.TrimSpace(id)
	path, err := taskPath(op, id)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, op, http.MethodDelete, path, token, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		c.logger.Debug("delete of missing task treated as success", "task_id", id)
		return nil
	}
	if resp.StatusCode >= 300 {
		return c.statusError(op, resp, msgDeleteTask)
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path, token string, body io.Reader) (*http.Response, error) {
	rel, err := url.Parse(path)
	if err != nil {
		return nil, &service.Error{Op: op, Kind: service.KindUnknown, Err: err}
	}
	// The escaped path is sent as built, without dot-segment cleaning.
	full := *c.baseURL
	full.Path = strings.TrimRight(c.baseURL.Path, "/") + rel.Path
	full.RawPath = strings.TrimRight(c.baseURL.EscapedPath(), "/") + rel.EscapedPath()
	full.RawQuery = rel.RawQuery

	req, err := http.NewRequestWithContext(ctx, method, full.String(), body)
	if err != nil {
		return nil, &service.Error{Op: op, Kind: service.KindUnknown, Err: err}
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient(token).Do(req)
	if err != nil {
		c.logger.Warn("request failed", "op", op, "method", method, "path", rel.Path, "request_id", requestID, "error", err.Error())
		return nil, transientError(op, err)
	}
	c.logger.Debug("request completed",
		"op", op,
		"method", method,
		"path", rel.Path,
		"status", resp.StatusCode,
		"request_id", requestID,
		"duration_ms", time.Since(start).Milliseconds())
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, op, method, path, token string, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		buf := &bytes.Buffer{}
		if err := json.NewEncoder(buf).Encode(payload); err != nil {
			return nil, &service.Error{Op: op, Kind: service.KindUnknown, Err: err}
		}
		body = buf
	}
	return c.do(ctx, op, method, path, token, body)
}

// statusError classifies a non-2xx response and extracts the backend's
// message, falling back to fallback for validation failures.
func (c *Client) statusError(op string, resp *http.Response, fallback string) *service.Error {
	e := &service.Error{Op: op, Kind: classify(resp.StatusCode), Status: resp.StatusCode}
	msg := readMessage(resp.Body)
	switch e.Kind {
	case service.KindUnauthenticated:
		e.Message = msg
		if e.Message == "" {
			e.Message = service.ErrUnauthenticated.Error()
		}
	case service.KindTransient:
		c.logger.Error("backend error", "op", op, "status", resp.StatusCode, "message", msg)
		e.Message = fallback
	default:
		e.Message = msg
		if e.Message == "" {
			e.Message = fallback
		}
	}
	return e
}

func classify(status int) service.ErrorKind {
	switch {
	case status == http.StatusUnauthorized:
		return service.KindUnauthenticated
	case status == http.StatusNotFound:
		return service.KindNotFound
	case status >= 400 && status < 500:
		return service.KindValidation
	case status >= 500:
		return service.KindTransient
	default:
		return service.KindUnknown
	}
}

// readMessage returns the "message" (or "error") field of a JSON error body.
func readMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(data) == 0 {
		return ""
	}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return ""
	}
	if m := strings.TrimSpace(body.Message); m != "" {
		return m
	}
	return strings.TrimSpace(body.Error)
}

func transientError(op string, err error) *service.Error {
	return &service.Error{Op: op, Kind: service.KindTransient, Err: err}
}

func decodeBody(r io.Reader, v any) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("malformed response: %w", err)
	}
	return nil
}

// decodeProfile accepts {"user": {...}} or a bare profile object.
func decodeProfile(op string, r io.Reader) (service.UserProfile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return service.UserProfile{}, transientError(op, err)
	}
	var wrapped struct {
		User *service.UserProfile `json:"user"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return service.UserProfile{}, transientError(op, fmt.Errorf("malformed response: %w", err))
	}
	if wrapped.User != nil {
		return *wrapped.User, nil
	}
	var user service.UserProfile
	if err := json.Unmarshal(data, &user); err != nil {
		return service.UserProfile{}, transientError(op, fmt.Errorf("malformed response: %w", err))
	}
	if user.ID == "" && user.Email == "" {
		return service.UserProfile{}, transientError(op, errors.New("response has no user"))
	}
	return user, nil
}

// decodeTask accepts {"task": {...}} or a bare task object.
func decodeTask(data []byte) (service.Task, error) {
	var wrapped struct {
		Task *service.Task `json:"task"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return service.Task{}, fmt.Errorf("malformed response: %w", err)
	}
	if wrapped.Task != nil {
		return *wrapped.Task, nil
	}
	var task service.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return service.Task{}, fmt.Errorf("malformed response: %w", err)
	}
	if task.ID == "" {
		return service.Task{}, errors.New("response has no task id")
	}
	return task, nil
}

// decodeTaskList accepts [...], {"tasks": [...]} and null.
func decodeTaskList(data []byte) ([]service.Task, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return []service.Task{}, nil
	}
	var tasks []service.Task
	if data[0] == '[' {
		if err := json.Unmarshal(data, &tasks); err != nil {
			return nil, fmt.Errorf("malformed task list: %w", err)
		}
	} else {
		var wrapped struct {
			Tasks []service.Task `json:"tasks"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("malformed task list: %w", err)
		}
		tasks = wrapped.Tasks
	}
	if tasks == nil {
		tasks = []service.Task{}
	}
	return tasks, nil
}
