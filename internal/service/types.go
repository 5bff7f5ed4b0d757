// Package service defines the backend-agnostic types and interface for
// account and task operations.
package service

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the workflow state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Priority is the importance of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParseStatus validates a status value. Matching is case-insensitive and
// accepts "in progress" and "in_progress" for "in-progress".
func ParseStatus(s string) (Status, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "-", "_", "-").Replace(norm)
	switch Status(norm) {
	case StatusPending, StatusInProgress, StatusCompleted:
		return Status(norm), nil
	}
	return "", fmt.Errorf("invalid status: %s", s)
}

// ParsePriority validates a priority value (case-insensitive).
func ParsePriority(s string) (Priority, error) {
	norm := Priority(strings.ToLower(strings.TrimSpace(s)))
	switch norm {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return norm, nil
	}
	return "", fmt.Errorf("invalid priority: %s", s)
}

// UserProfile is the backend-owned account profile.
type UserProfile struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
	Bio   string `json:"bio,omitempty" yaml:"bio,omitempty"`
}

// UnmarshalJSON accepts both "id" and "_id" for the identifier.
func (u *UserProfile) UnmarshalJSON(data []byte) error {
	type plain UserProfile
	var raw struct {
		plain
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*u = UserProfile(raw.plain)
	if u.ID == "" {
		u.ID = raw.MongoID
	}
	return nil
}

// Task is a single task item.
type Task struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Status      Status   `json:"status" yaml:"status"`
	Priority    Priority `json:"priority" yaml:"priority"`
}

// UnmarshalJSON accepts both "id" and "_id" for the identifier.
func (t *Task) UnmarshalJSON(data []byte) error {
	type plain Task
	var raw struct {
		plain
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*t = Task(raw.plain)
	if t.ID == "" {
		t.ID = raw.MongoID
	}
	return nil
}

// Fields returns the editable fields of the task.
func (t Task) Fields() TaskFields {
	return TaskFields{
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
	}
}

// TaskFields is the payload for creating or updating a task.
type TaskFields struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      Status   `json:"status"`
	Priority    Priority `json:"priority"`
}

// WithDefaults fills an empty status with pending and an empty priority
// with medium.
func (f TaskFields) WithDefaults() TaskFields {
	if f.Status == "" {
		f.Status = StatusPending
	}
	if f.Priority == "" {
		f.Priority = PriorityMedium
	}
	return f
}

// Validate checks the fields before they are sent to the backend.
func (f TaskFields) Validate() error {
	if strings.TrimSpace(f.Title) == "" {
		return &Error{Op: "ValidateTask", Kind: KindValidation, Message: "title required"}
	}
	if f.Status != "" {
		if _, err := ParseStatus(string(f.Status)); err != nil {
			return &Error{Op: "ValidateTask", Kind: KindValidation, Message: err.Error()}
		}
	}
	if f.Priority != "" {
		if _, err := ParsePriority(string(f.Priority)); err != nil {
			return &Error{Op: "ValidateTask", Kind: KindValidation, Message: err.Error()}
		}
	}
	return nil
}

// Credentials are the login form values.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Registration is the sign-up form values.
type Registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is a successful login response.
type AuthResult struct {
	Token string      `json:"token"`
	User  UserProfile `json:"user"`
}

// ProfileUpdate is the editable part of a profile.
type ProfileUpdate struct {
	Name string `json:"name"`
	Bio  string `json:"bio"`
}
