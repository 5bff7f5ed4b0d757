package commands_test

import (
	"strings"
	"testing"

	"taskman/internal/commands"
	"taskman/internal/exitcode"
	"taskman/internal/service"
)

func TestBrowseCommand(t *testing.T) {
	h := loggedIn(t, false)
	h.seed()
	h.env.In = strings.NewReader("status completed\n")

	stdout, stderr, code := h.run(&commands.BrowseCmd{}, "--debounce", "10ms")

	if code != exitcode.Success {
		t.Fatalf("expected success, got %d (stderr %q)", code, stderr)
	}
	want := `== search="" status=completed priority=any ==` + "\n" +
		"task2  completed    high    Write tests\n" +
		"1 total, 0 pending, 0 in progress, 1 completed\n"
	if !strings.HasSuffix(stdout, want) {
		t.Errorf("expected output ending with %q, got %q", want, stdout)
	}
	calls := h.svc.ListCalls
	if last := calls[len(calls)-1]; last != (service.Filters{Status: service.StatusCompleted}) {
		t.Errorf("unexpected last filters %+v", last)
	}
}

func TestBrowseCommand_SearchDebounced(t *testing.T) {
	h := loggedIn(t, false)
	h.seed()
	h.env.In = strings.NewReader("search t\nsearch ta\nsearch tax\nquit\nsearch ignored\n")

	stdout, _, code := h.run(&commands.BrowseCmd{}, "--debounce", "1h")

	if code != exitcode.Success {
		t.Fatalf("expected success, got %d", code)
	}
	for _, f := range h.svc.ListCalls {
		if f.Search != "" && f.Search != "tax" {
			t.Errorf("expected only the final search sent, got %q", f.Search)
		}
	}
	if !strings.HasSuffix(stdout, "task3  in-progress  high    Tax return\n1 total, 0 pending, 1 in progress, 0 completed\n") {
		t.Errorf("unexpected output %q", stdout)
	}
}

func TestBrowseCommand_BadInstruction(t *testing.T) {
	h := loggedIn(t, false)
	h.env.In = strings.NewReader("priority urgent\njump\n")

	_, stderr, code := h.run(&commands.BrowseCmd{})

	if code != exitcode.Success {
		t.Fatalf("expected success, got %d", code)
	}
	for _, want := range []string{"error: invalid priority: urgent\n", "error: unknown instruction: jump\n"} {
		if !strings.Contains(stderr, want) {
			t.Errorf("expected %q in stderr %q", want, stderr)
		}
	}
}

func TestBrowseCommand_ExpiredSession(t *testing.T) {
	h := loggedIn(t, false)
	h.svc.RevokeTokens()
	h.env.In = strings.NewReader("")

	_, stderr, code := h.run(&commands.BrowseCmd{})

	if code != exitcode.AuthError {
		t.Errorf("expected exit code %d, got %d", exitcode.AuthError, code)
	}
	if !strings.Contains(stderr, "error: session expired (run: taskman login)\n") {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if h.env.Session.State().Token != "" {
		t.Error("expected session cleared")
	}
}

func TestBrowseCommand_NoInput(t *testing.T) {
	h := loggedIn(t, false)
	_, stderr, code := h.run(&commands.BrowseCmd{})
	if code != exitcode.UserError || stderr != "error: browse needs an input stream\n" {
		t.Errorf("unexpected result %d %q", code, stderr)
	}
}
