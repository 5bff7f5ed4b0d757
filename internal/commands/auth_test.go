package commands_test

import (
	"context"
	"strings"
	"testing"

	"taskman/internal/commands"
	"taskman/internal/exitcode"
	"taskman/internal/service"
	"taskman/internal/session"
	"taskman/internal/testutil"
)

func TestRegisterCommand(t *testing.T) {
	h := newHarness(t, false)

	stdout, stderr, code := h.run(&commands.RegisterCmd{},
		"--name", "Ada", "--email", "ada@example.com", "--password", "secret")

	expectResult(t, stdout, stderr, code, "ok\n", "✓ Registration successful! Please log in.\n", exitcode.Success)
	if h.env.Session.State().Token != "" {
		t.Error("register must not log in")
	}
}

func TestRegisterCommand_Duplicate(t *testing.T) {
	h := newHarness(t, false)
	args := []string{"--name", "Ada", "--email", "ada@example.com", "--password", "secret"}
	h.run(&commands.RegisterCmd{}, args...)

	stdout, stderr, code := h.run(&commands.RegisterCmd{}, args...)

	expectResult(t, stdout, stderr, code, "", "error: User already exists\n", exitcode.UserError)
}

func TestRegisterCommand_MissingFields(t *testing.T) {
	h := newHarness(t, false)
	stdout, stderr, code := h.run(&commands.RegisterCmd{}, "--email", "ada@example.com")
	expectResult(t, stdout, stderr, code, "", "error: name, email and password required\n", exitcode.UserError)
}

func TestLoginCommand(t *testing.T) {
	h := newHarness(t, false)
	h.run(&commands.RegisterCmd{}, "--name", "Ada", "--email", "ada@example.com", "--password", "secret")

	stdout, stderr, code := h.run(&commands.LoginCmd{}, "--email", "ada@example.com", "--password", "secret")

	expectResult(t, stdout, stderr, code, "ok\n", "✓ Login successful!\n", exitcode.Success)
	state := h.env.Session.State()
	if state.Token != "token-u2" || state.User == nil || state.User.Name != "Ada" {
		t.Errorf("unexpected session %+v", state)
	}
	if token, ok, _ := h.store.Get(session.KeyToken); !ok || token != "token-u2" {
		t.Errorf("expected token persisted, got %q", token)
	}
	if raw, ok, _ := h.store.Get(session.KeyUser); !ok || !strings.Contains(raw, `"ada@example.com"`) {
		t.Errorf("expected user persisted, got %q", raw)
	}
}

func TestLoginCommand_BadCredentials(t *testing.T) {
	h := newHarness(t, false)

	stdout, stderr, code := h.run(&commands.LoginCmd{}, "--email", "ada@example.com", "--password", "nope")

	expectResult(t, stdout, stderr, code, "", "error: Invalid email or password\n", exitcode.AuthError)
	if _, ok, _ := h.store.Get(session.KeyToken); ok {
		t.Error("expected nothing persisted")
	}
}

func TestLoginCommand_MissingFields(t *testing.T) {
	h := newHarness(t, false)
	stdout, stderr, code := h.run(&commands.LoginCmd{}, "--email", "ada@example.com")
	expectResult(t, stdout, stderr, code, "", "error: email and password required\n", exitcode.UserError)
}

func TestLoginCommand_BackendDown(t *testing.T) {
	h := newHarness(t, false)
	h.svc.LoginErr = &service.Error{Op: "Login", Kind: service.KindTransient, Message: "Invalid email or password"}

	_, stderr, code := h.run(&commands.LoginCmd{}, "--email", "a@b.c", "--password", "x")

	if code != exitcode.BackendError {
		t.Errorf("expected exit code %d, got %d", exitcode.BackendError, code)
	}
	if !strings.HasPrefix(stderr, "error: backend error: ") {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestLogoutCommand(t *testing.T) {
	h := loggedIn(t, false)

	stdout, stderr, code := h.run(&commands.LogoutCmd{})

	expectResult(t, stdout, stderr, code, "ok\n", "• Logged out successfully!\n", exitcode.Success)
	if h.env.Session.State().Token != "" {
		t.Error("expected session cleared")
	}
	for _, key := range []string{session.KeyToken, session.KeyUser} {
		if _, ok, _ := h.store.Get(key); ok {
			t.Errorf("expected %s removed", key)
		}
	}
}

func TestLogoutCommand_Quiet(t *testing.T) {
	h := loggedIn(t, true)
	stdout, stderr, code := h.run(&commands.LogoutCmd{})
	expectResult(t, stdout, stderr, code, "", "", exitcode.Success)
}

func TestLogoutCommand_NotLoggedIn(t *testing.T) {
	h := newHarness(t, false)
	stdout, stderr, code := h.run(&commands.LogoutCmd{})
	expectResult(t, stdout, stderr, code, "not logged in\n", "", exitcode.Success)
}

func TestLoginThenListUsesNewToken(t *testing.T) {
	h := newHarness(t, true)
	h.svc.Register(context.Background(), service.Registration{Name: "Ada", Email: "ada@example.com", Password: "secret"})
	h.svc.AddTask("Buy milk", service.StatusPending, service.PriorityLow)

	if _, _, code := h.run(&commands.LoginCmd{}, "--email", "ada@example.com", "--password", "secret"); code != exitcode.Success {
		t.Fatalf("login failed: %d", code)
	}
	stdout, _, code := h.run(&commands.ListCmd{})

	if code != exitcode.Success || !strings.Contains(stdout, "Buy milk") {
		t.Errorf("unexpected list result %d %q", code, stdout)
	}
	if h.env.Token() == testutil.FakeToken {
		t.Error("expected the login token in use")
	}
}
