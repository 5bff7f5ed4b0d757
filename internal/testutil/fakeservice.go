// Package testutil provides testing utilities.
package testutil

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"taskman/internal/service"
)

// FakeToken is the token FakeService accepts after NewFakeService.
const FakeToken = "fake-token"

// FakeService is an in-memory implementation of service.Service for testing.
// It holds a single task list shared by every valid token.
type FakeService struct {
	mu      sync.RWMutex
	tasks   []service.Task
	nextID  int
	profile service.UserProfile
	users   map[string]fakeUser // email -> account
	tokens  map[string]bool     // valid tokens

	// ListCalls records the filters of every ListTasks call.
	ListCalls []service.Filters

	// Error injection for testing
	RegisterErr      error
	LoginErr         error
	GetProfileErr    error
	UpdateProfileErr error
	ListTasksErr     error
	CreateTaskErr    error
	UpdateTaskErr    error
	DeleteTaskErr    error
}

type fakeUser struct {
	profile  service.UserProfile
	password string
}

// NewFakeService creates a FakeService that accepts FakeToken for a
// default profile.
func NewFakeService() *FakeService {
	return &FakeService{
		profile: service.UserProfile{ID: "u1", Name: "Test User", Email: "test@example.com"},
		users:   make(map[string]fakeUser),
		tokens:  map[string]bool{FakeToken: true},
	}
}

// SetProfile replaces the profile returned for valid tokens.
func (f *FakeService) SetProfile(p service.UserProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profile = p
}

// RevokeTokens makes every token invalid, as an expired session would be.
func (f *FakeService) RevokeTokens() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tokens = make(map[string]bool)
}

// AddTask appends a task and returns it.
func (f *FakeService) AddTask(title string, status service.Status, priority service.Priority) service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t := service.Task{
		ID:       fmt.Sprintf("task%d", f.nextID),
		Title:    title,
		Status:   status,
		Priority: priority,
	}
	f.tasks = append(f.tasks, t)
	return t
}

// Tasks returns a copy of every stored task.
func (f *FakeService) Tasks() []service.Task {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]service.Task(nil), f.tasks...)
}

func (f *FakeService) checkToken(op, token string) error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.tokens[token] {
		return &service.Error{Op: op, Kind: service.KindUnauthenticated, Status: 401}
	}
	return nil
}

// Register implements service.Service.
func (f *FakeService) Register(ctx context.Context, reg service.Registration) (service.UserProfile, error) {
	if f.RegisterErr != nil {
		return service.UserProfile{}, f.RegisterErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(reg.Email))
	if email == "" || reg.Password == "" || strings.TrimSpace(reg.Name) == "" {
		return service.UserProfile{}, &service.Error{Op: "Register", Kind: service.KindValidation, Status: 400, Message: "Please provide all fields"}
	}
	if _, ok := f.users[email]; ok {
		return service.UserProfile{}, &service.Error{Op: "Register", Kind: service.KindValidation, Status: 400, Message: "User already exists"}
	}
	p := service.UserProfile{ID: fmt.Sprintf("u%d", len(f.users)+2), Name: reg.Name, Email: email}
	f.users[email] = fakeUser{profile: p, password: reg.Password}
	return p, nil
}

// Login implements service.Service.
func (f *FakeService) Login(ctx context.Context, creds service.Credentials) (service.AuthResult, error) {
	if f.LoginErr != nil {
		return service.AuthResult{}, f.LoginErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[strings.ToLower(strings.TrimSpace(creds.Email))]
	if !ok || u.password != creds.Password {
		return service.AuthResult{}, &service.Error{Op: "Login", Kind: service.KindValidation, Status: 401, Message: "Invalid email or password"}
	}
	token := "token-" + u.profile.ID
	f.tokens[token] = true
	f.profile = u.profile
	return service.AuthResult{Token: token, User: u.profile}, nil
}

// GetProfile implements service.Service.
func (f *FakeService) GetProfile(ctx context.Context, token string) (service.UserProfile, error) {
	if f.GetProfileErr != nil {
		return service.UserProfile{}, f.GetProfileErr
	}
	if err := f.checkToken("GetProfile", token); err != nil {
		return service.UserProfile{}, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.profile, nil
}

// UpdateProfile implements service.Service.
func (f *FakeService) UpdateProfile(ctx context.Context, token string, update service.ProfileUpdate) (service.UserProfile, error) {
	if f.UpdateProfileErr != nil {
		return service.UserProfile{}, f.UpdateProfileErr
	}
	if err := f.checkToken("UpdateProfile", token); err != nil {
		return service.UserProfile{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.profile.Name = update.Name
	f.profile.Bio = update.Bio
	return f.profile, nil
}

// ListTasks implements service.Service.
func (f *FakeService) ListTasks(ctx context.Context, token string, filters service.Filters) ([]service.Task, error) {
	f.mu.Lock()
	f.ListCalls = append(f.ListCalls, filters)
	f.mu.Unlock()
	if f.ListTasksErr != nil {
		return nil, f.ListTasksErr
	}
	if err := f.checkToken("ListTasks", token); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	result := []service.Task{}
	for _, t := range f.tasks {
		if filters.Match(t) {
			result = append(result, t)
		}
	}
	return result, nil
}

// CreateTask implements service.Service.
func (f *FakeService) CreateTask(ctx context.Context, token string, fields service.TaskFields) (service.Task, error) {
	if f.CreateTaskErr != nil {
		return service.Task{}, f.CreateTaskErr
	}
	if err := f.checkToken("CreateTask", token); err != nil {
		return service.Task{}, err
	}
	fields = fields.WithDefaults()
	if err := fields.Validate(); err != nil {
		return service.Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	t := service.Task{
		ID:          fmt.Sprintf("task%d", f.nextID),
		Title:       strings.TrimSpace(fields.Title),
		Description: fields.Description,
		Status:      fields.Status,
		Priority:    fields.Priority,
	}
	f.tasks = append(f.tasks, t)
	return t, nil
}

// UpdateTask implements service.Service.
func (f *FakeService) UpdateTask(ctx context.Context, token, id string, fields service.TaskFields) (service.Task, error) {
	if f.UpdateTaskErr != nil {
		return service.Task{}, f.UpdateTaskErr
	}
	if err := f.checkToken("UpdateTask", token); err != nil {
		return service.Task{}, err
	}
	if err := fields.Validate(); err != nil {
		return service.Task{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks[i] = service.Task{
				ID:          id,
				Title:       strings.TrimSpace(fields.Title),
				Description: fields.Description,
				Status:      fields.Status,
				Priority:    fields.Priority,
			}
			return f.tasks[i], nil
		}
	}
	return service.Task{}, &service.Error{Op: "UpdateTask", Kind: service.KindNotFound, Status: 404, Message: "Task not found"}
}

// DeleteTask implements service.Service. Deleting a missing task succeeds.
func (f *FakeService) DeleteTask(ctx context.Context, token, id string) error {
	if f.DeleteTaskErr != nil {
		return f.DeleteTaskErr
	}
	if err := f.checkToken("DeleteTask", token); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.tasks {
		if t.ID == id {
			f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
			return nil
		}
	}
	return nil
}
