package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"taskman/internal/service"
)

// FakeAPI is an httptest server speaking the task backend's REST API.
// Tokens are HS256 JWTs; passwords are stored as bcrypt hashes.
type FakeAPI struct {
	*httptest.Server

	// BareList makes GET /api/tasks answer with a bare array instead of
	// {"tasks": [...]}.
	BareList bool

	mu       sync.Mutex
	key      []byte
	ttl      time.Duration
	users    map[string]*apiUser // email -> user
	byID     map[string]*apiUser
	tasks    map[string][]apiTask // user id -> tasks
	revoked  map[string]bool
	requests []string
}

type apiUser struct {
	ID       string `json:"_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Bio      string `json:"bio,omitempty"`
	password []byte
}

type apiTask struct {
	ID          string           `json:"_id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Status      service.Status   `json:"status"`
	Priority    service.Priority `json:"priority"`
	User        string           `json:"user"`
}

// NewFakeAPI starts a FakeAPI that is closed when t finishes.
func NewFakeAPI(t testing.TB) *FakeAPI {
	t.Helper()
	api := &FakeAPI{
		key:     []byte(uuid.NewString()),
		ttl:     time.Hour,
		users:   make(map[string]*apiUser),
		byID:    make(map[string]*apiUser),
		tasks:   make(map[string][]apiTask),
		revoked: make(map[string]bool),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/register", api.register)
	mux.HandleFunc("POST /api/auth/login", api.login)
	mux.HandleFunc("GET /api/user/profile", api.authed(api.getProfile))
	mux.HandleFunc("PUT /api/user/profile", api.authed(api.updateProfile))
	mux.HandleFunc("GET /api/tasks", api.authed(api.listTasks))
	mux.HandleFunc("POST /api/tasks", api.authed(api.createTask))
	mux.HandleFunc("PUT /api/tasks/{id}", api.authed(api.updateTask))
	mux.HandleFunc("DELETE /api/tasks/{id}", api.authed(api.deleteTask))

	api.Server = httptest.NewServer(api.record(mux))
	t.Cleanup(api.Close)
	return api
}

// Revoke makes token invalid, as if it had expired.
func (a *FakeAPI) Revoke(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.revoked[token] = true
}

// Requests returns "METHOD /path?query" for every request served.
func (a *FakeAPI) Requests() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.requests...)
}

func (a *FakeAPI) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.mu.Lock()
		a.requests = append(a.requests, r.Method+" "+r.URL.RequestURI())
		a.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func (a *FakeAPI) register(w http.ResponseWriter, r *http.Request) {
	var reg service.Registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	email := strings.ToLower(strings.TrimSpace(reg.Email))
	if email == "" || reg.Password == "" || strings.TrimSpace(reg.Name) == "" {
		writeMessage(w, http.StatusBadRequest, "Please provide all fields")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), bcrypt.MinCost)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.users[email]; ok {
		writeMessage(w, http.StatusBadRequest, "User already exists")
		return
	}
	u := &apiUser{ID: uuid.NewString(), Name: strings.TrimSpace(reg.Name), Email: email, password: hash}
	a.users[email] = u
	a.byID[u.ID] = u
	writeJSON(w, http.StatusCreated, map[string]any{"message": "User registered successfully", "user": u})
}

func (a *FakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var creds service.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	a.mu.Lock()
	u, ok := a.users[strings.ToLower(strings.TrimSpace(creds.Email))]
	a.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(u.password, []byte(creds.Password)) != nil {
		writeMessage(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	now := time.Now()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   u.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		ID:        uuid.NewString(),
	}).SignedString(a.key)
	if err != nil {
		writeMessage(w, http.StatusInternalServerError, "Server error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "user": u})
}

// authed resolves the bearer token to a user or answers 401.
func (a *FakeAPI) authed(next func(http.ResponseWriter, *http.Request, *apiUser)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeMessage(w, http.StatusUnauthorized, "No token, authorization denied")
			return
		}
		claims := &jwt.RegisteredClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
			return a.key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

		a.mu.Lock()
		u := a.byID[claims.Subject]
		revoked := a.revoked[raw]
		a.mu.Unlock()

		if err != nil || revoked || u == nil {
			writeMessage(w, http.StatusUnauthorized, "Token is not valid")
			return
		}
		next(w, r, u)
	}
}

func (a *FakeAPI) getProfile(w http.ResponseWriter, r *http.Request, u *apiUser) {
	a.mu.Lock()
	defer a.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (a *FakeAPI) updateProfile(w http.ResponseWriter, r *http.Request, u *apiUser) {
	var update service.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(update.Name) == "" {
		writeMessage(w, http.StatusBadRequest, "Name is required")
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	u.Name = strings.TrimSpace(update.Name)
	u.Bio = update.Bio
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

func (a *FakeAPI) listTasks(w http.ResponseWriter, r *http.Request, u *apiUser) {
	q := r.URL.Query()
	filters := service.Filters{
		Search:   q.Get("search"),
		Status:   service.Status(q.Get("status")),
		Priority: service.Priority(q.Get("priority")),
	}

	a.mu.Lock()
	result := []apiTask{}
	for _, t := range a.tasks[u.ID] {
		if filters.Match(service.Task{Title: t.Title, Description: t.Description, Status: t.Status, Priority: t.Priority}) {
			result = append(result, t)
		}
	}
	a.mu.Unlock()

	if a.BareList {
		writeJSON(w, http.StatusOK, result)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tasks": result})
}

func decodeTaskFields(w http.ResponseWriter, r *http.Request) (service.TaskFields, bool) {
	var fields service.TaskFields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid request body")
		return fields, false
	}
	if strings.TrimSpace(fields.Title) == "" {
		writeMessage(w, http.StatusBadRequest, "Title is required")
		return fields, false
	}
	if err := fields.Validate(); err != nil {
		writeMessage(w, http.StatusBadRequest, err.Error())
		return fields, false
	}
	return fields.WithDefaults(), true
}

func (a *FakeAPI) createTask(w http.ResponseWriter, r *http.Request, u *apiUser) {
	fields, ok := decodeTaskFields(w, r)
	if !ok {
		return
	}
	t := apiTask{
		ID:          uuid.NewString(),
		Title:       strings.TrimSpace(fields.Title),
		Description: fields.Description,
		Status:      fields.Status,
		Priority:    fields.Priority,
		User:        u.ID,
	}
	a.mu.Lock()
	a.tasks[u.ID] = append([]apiTask{t}, a.tasks[u.ID]...)
	a.mu.Unlock()
	writeJSON(w, http.StatusCreated, t)
}

func (a *FakeAPI) updateTask(w http.ResponseWriter, r *http.Request, u *apiUser) {
	fields, ok := decodeTaskFields(w, r)
	if !ok {
		return
	}
	id := r.PathValue("id")

	a.mu.Lock()
	defer a.mu.Unlock()
	for i, t := range a.tasks[u.ID] {
		if t.ID == id {
			t.Title = strings.TrimSpace(fields.Title)
			t.Description = fields.Description
			t.Status = fields.Status
			t.Priority = fields.Priority
			a.tasks[u.ID][i] = t
			writeJSON(w, http.StatusOK, t)
			return
		}
	}
	writeMessage(w, http.StatusNotFound, "Task not found")
}

func (a *FakeAPI) deleteTask(w http.ResponseWriter, r *http.Request, u *apiUser) {
	id := r.PathValue("id")

	a.mu.Lock()
	defer a.mu.Unlock()
	tasks := a.tasks[u.ID]
	for i, t := range tasks {
		if t.ID == id {
			a.tasks[u.ID] = append(tasks[:i], tasks[i+1:]...)
			writeMessage(w, http.StatusOK, "Task removed")
			return
		}
	}
	writeMessage(w, http.StatusNotFound, "Task not found")
}
