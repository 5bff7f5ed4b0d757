package service

import (
	"net/url"
	"strings"
)

// Filters narrows a task listing. Empty fields mean "any".
type Filters struct {
	Search   string   `json:"search,omitempty" yaml:"search,omitempty"`
	Status   Status   `json:"status,omitempty" yaml:"status,omitempty"`
	Priority Priority `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// Query returns the query parameters for the non-empty fields only.
func (f Filters) Query() url.Values {
	q := url.Values{}
	if s := strings.TrimSpace(f.Search); s != "" {
		q.Set("search", s)
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Priority != "" {
		q.Set("priority", string(f.Priority))
	}
	return q
}

// IsZero reports whether no filter is set.
func (f Filters) IsZero() bool {
	return strings.TrimSpace(f.Search) == "" && f.Status == "" && f.Priority == ""
}

// Match reports whether t satisfies f. Search is a case-insensitive
// substring match on title and description.
func (f Filters) Match(t Task) bool {
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.Priority != "" && t.Priority != f.Priority {
		return false
	}
	if s := strings.ToLower(strings.TrimSpace(f.Search)); s != "" {
		if !strings.Contains(strings.ToLower(t.Title), s) &&
			!strings.Contains(strings.ToLower(t.Description), s) {
			return false
		}
	}
	return true
}
