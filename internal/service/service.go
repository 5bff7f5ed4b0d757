package service

import "context"

// Service defines the interface for backend operations.
// Every authenticated method takes the bearer token explicitly; the caller
// owns the session. Commands never talk HTTP directly.
type Service interface {
	// Register creates an account. The backend may not return a profile,
	// in which case the zero UserProfile is returned.
	Register(ctx context.Context, reg Registration) (UserProfile, error)

	// Login exchanges credentials for a bearer token and profile.
	Login(ctx context.Context, creds Credentials) (AuthResult, error)

	// GetProfile returns the profile for token.
	GetProfile(ctx context.Context, token string) (UserProfile, error)

	// UpdateProfile saves name and bio and returns the stored profile.
	UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (UserProfile, error)

	// ListTasks returns the tasks matching filters, in backend order.
	// Empty filter fields are not sent.
	ListTasks(ctx context.Context, token string, filters Filters) ([]Task, error)

	// CreateTask validates and creates a task.
	CreateTask(ctx context.Context, token string, fields TaskFields) (Task, error)

	// UpdateTask validates and replaces the fields of task id.
	UpdateTask(ctx context.Context, token, id string, fields TaskFields) (Task, error)

	// DeleteTask deletes task id. Deleting a missing task succeeds.
	DeleteTask(ctx context.Context, token, id string) error
}

// ProfileClient is the subset of Service the session manager needs.
type ProfileClient interface {
	GetProfile(ctx context.Context, token string) (UserProfile, error)
	UpdateProfile(ctx context.Context, token string, update ProfileUpdate) (UserProfile, error)
}

// TaskLister is the subset of Service the filter pipeline needs.
type TaskLister interface {
	ListTasks(ctx context.Context, token string, filters Filters) ([]Task, error)
}
