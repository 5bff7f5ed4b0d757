// Package output provides formatters for CLI output.
package output

import (
	"fmt"
	"io"
	"strings"
	"time"

	"taskman/internal/service"
)

// FormatTask formats a task line for the unfiltered listing.
// Format: "{N:>4}  {STATUS:<11}  {PRIORITY:<6}  {TITLE}\n"
func FormatTask(w io.Writer, num int, task service.Task) {
	fmt.Fprintf(w, "%4d  %-11s  %-6s  %s\n", num, task.Status, task.Priority, normalizeTitle(task.Title))
}

// FormatTaskWithID formats a task line for a filtered listing, where
// positions would not match the unfiltered numbering.
// Format: "{ID}  {STATUS:<11}  {PRIORITY:<6}  {TITLE}\n"
func FormatTaskWithID(w io.Writer, task service.Task) {
	fmt.Fprintf(w, "%s  %-11s  %-6s  %s\n", task.ID, task.Status, task.Priority, normalizeTitle(task.Title))
}

// FormatTaskDetail formats every field of a task, one per line.
func FormatTaskDetail(w io.Writer, task service.Task) {
	fmt.Fprintf(w, "id:          %s\n", task.ID)
	fmt.Fprintf(w, "title:       %s\n", normalizeTitle(task.Title))
	fmt.Fprintf(w, "status:      %s\n", task.Status)
	fmt.Fprintf(w, "priority:    %s\n", task.Priority)
	if d := strings.TrimSpace(task.Description); d != "" {
		fmt.Fprintf(w, "description: %s\n", singleLine(d))
	}
}

// FormatStats formats task counts by status.
func FormatStats(w io.Writer, stats service.Stats) {
	fmt.Fprintf(w, "%-12s %d\n", "total", stats.Total)
	fmt.Fprintf(w, "%-12s %d\n", service.StatusPending, stats.Pending)
	fmt.Fprintf(w, "%-12s %d\n", service.StatusInProgress, stats.InProgress)
	fmt.Fprintf(w, "%-12s %d\n", service.StatusCompleted, stats.Completed)
}

// FormatProfile formats a user profile. A zero expires is omitted.
func FormatProfile(w io.Writer, user service.UserProfile, expires time.Time) {
	fmt.Fprintf(w, "name:    %s\n", user.Name)
	fmt.Fprintf(w, "email:   %s\n", user.Email)
	if b := strings.TrimSpace(user.Bio); b != "" {
		fmt.Fprintf(w, "bio:     %s\n", singleLine(b))
	}
	if user.ID != "" {
		fmt.Fprintf(w, "id:      %s\n", user.ID)
	}
	if !expires.IsZero() {
		fmt.Fprintf(w, "expires: %s\n", expires.UTC().Format(time.RFC3339))
	}
}

// normalizeTitle normalizes a task title for display.
// - Empty or whitespace-only titles become "(untitled)"
// - Newlines are replaced with spaces
func normalizeTitle(title string) string {
	title = singleLine(title)
	if strings.TrimSpace(title) == "" {
		return "(untitled)"
	}
	return title
}

func singleLine(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
