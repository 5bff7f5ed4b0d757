package commands_test

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"io"
	"reflect"
	"strings"
	"testing"

	"taskman/internal/commands"
	"taskman/internal/config"
	"taskman/internal/exitcode"
	"taskman/internal/logging"
	"taskman/internal/notify"
	"taskman/internal/output"
	"taskman/internal/service"
	"taskman/internal/session"
	"taskman/internal/testutil"
)

// harness runs commands against a FakeService with a session held in
// memory. Notifications are rendered into the same buffer as stderr.
type harness struct {
	t      *testing.T
	svc    *testutil.FakeService
	store  *session.MemoryStore
	env    *commands.Env
	stderr bytes.Buffer
}

func newHarness(t *testing.T, quiet bool) *harness {
	t.Helper()
	h := &harness{t: t, svc: testutil.NewFakeService(), store: session.NewMemoryStore()}
	notifier := notify.New(output.NewNotificationSink(&h.stderr, quiet))
	t.Cleanup(notifier.Close)
	mgr := session.NewManager(h.store, h.svc, session.WithNotifier(notifier))
	t.Cleanup(mgr.Close)
	h.env = &commands.Env{
		Config:  &config.Config{Dir: t.TempDir(), Quiet: quiet},
		Service: h.svc,
		Session: mgr,
		Logger:  logging.NopLogger(),
	}
	return h
}

// loggedIn returns a harness whose session holds testutil.FakeToken.
func loggedIn(t *testing.T, quiet bool) *harness {
	t.Helper()
	h := newHarness(t, quiet)
	user := service.UserProfile{ID: "u1", Name: "Test User", Email: "test@example.com"}
	if err := h.env.Session.Login(testutil.FakeToken, user); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return h
}

// run parses args with the command's flags and runs it.
func (h *harness) run(cmd commands.Command, args ...string) (stdout, stderr string, code int) {
	h.t.Helper()
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cmd.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		h.t.Fatalf("flag parse failed: %v", err)
	}
	h.stderr.Reset()
	var out bytes.Buffer
	code = cmd.Run(context.Background(), h.env, fs.Args(), &out, &h.stderr)
	return out.String(), h.stderr.String(), code
}

func (h *harness) seed() {
	h.svc.AddTask("Buy milk", service.StatusPending, service.PriorityLow)
	h.svc.AddTask("Write tests", service.StatusCompleted, service.PriorityHigh)
	h.svc.AddTask("Tax return", service.StatusInProgress, service.PriorityHigh)
}

func expectResult(t *testing.T, gotOut, gotErr string, gotCode int, wantOut, wantErr string, wantCode int) {
	t.Helper()
	if gotCode != wantCode {
		t.Errorf("expected exit code %d, got %d", wantCode, gotCode)
	}
	if gotOut != wantOut {
		t.Errorf("expected stdout %q, got %q", wantOut, gotOut)
	}
	if gotErr != wantErr {
		t.Errorf("expected stderr %q, got %q", wantErr, gotErr)
	}
}

// Tests for version command
func TestVersionCommand(t *testing.T) {
	h := newHarness(t, false)
	stdout, stderr, code := h.run(&commands.VersionCmd{})
	expectResult(t, stdout, stderr, code, "taskman 0.1.0\n", "", exitcode.Success)
}

// Tests for help command
func TestHelpCommand(t *testing.T) {
	h := newHarness(t, false)
	stdout, stderr, code := h.run(&commands.HelpCmd{})

	if code != exitcode.Success {
		t.Errorf("expected exit code %d, got %d", exitcode.Success, code)
	}
	if stderr != "" {
		t.Errorf("expected no stderr, got %q", stderr)
	}
	testutil.GoldenString(t, "help", stdout)
}

func TestHelpCommand_ForCommand(t *testing.T) {
	h := newHarness(t, false)
	stdout, stderr, code := h.run(&commands.HelpCmd{}, "ls")
	expected := "List tasks\n\nUsage:\n  taskman list [--search <text>] [--status <status>] [--priority <priority>] [--output text|json|yaml]\n\nAliases: ls\n"
	expectResult(t, stdout, stderr, code, expected, "", exitcode.Success)
}

func TestHelpCommand_UnknownCommand(t *testing.T) {
	h := newHarness(t, false)
	stdout, stderr, code := h.run(&commands.HelpCmd{}, "nope")
	expectResult(t, stdout, stderr, code, "", "error: unknown command: nope\n", exitcode.UserError)
}

// Tests for list command
func TestListCommand_Unfiltered(t *testing.T) {
	h := loggedIn(t, false)
	h.seed()

	stdout, stderr, code := h.run(&commands.ListCmd{})

	expected := "   1  pending      low     Buy milk\n" +
		"   2  completed    high    Write tests\n" +
		"   3  in-progress  high    Tax return\n"
	expectResult(t, stdout, stderr, code, expected, "", exitcode.Success)
}

func TestListCommand_FilteredShowsIDs(t *testing.T) {
	h := loggedIn(t, false)
	h.seed()

	stdout, stderr, code := h.run(&commands.ListCmd{}, "--status", "completed", "--priority", "any")

	expectResult(t, stdout, stderr, code, "task2  completed    high    Write tests\n", "", exitcode.Success)
	want := service.Filters{Status: service.StatusCompleted}
	if calls := h.svc.ListCalls; len(calls) != 1 || calls[0] != want {
		t.Errorf("expected one call with %+v, got %+v", want, calls)
	}
}

func TestListCommand_Search(t *testing.T) {
	h := loggedIn(t, false)
	h.seed()

	stdout, _, code := h.run(&commands.ListCmd{}, "-s", "TAX")

	if code != exitcode.Success {
		t.Fatalf("expected success, got %d", code)
	}
	if stdout != "task3  in-progress  high    Tax return\n" {
		t.Errorf("unexpected output %q", stdout)
	}
}

func TestListCommand_Empty(t *testing.T) {
	h := loggedIn(t, false)
	stdout, stderr, code := h.run(&commands.ListCmd{})
	expectResult(t, stdout, stderr, code, "no tasks found\n", "", exitcode.Success)
}

func TestListCommand_EmptyQuiet(t *testing.T) {
	h := loggedIn(t, true)
	stdout, stderr, code := h.run(&commands.ListCmd{})
	expectResult(t, stdout, stderr, code, "", "", exitcode.Success)
}

func TestListCommand_InvalidStatus(t *testing.T) {
	h := loggedIn(t, false)
	stdout, stderr, code := h.run(&commands.ListCmd{}, "--status", "bogus")
	expectResult(t, stdout, stderr, code, "", "error: invalid status: bogus\n", exitcode.UserError)
	if len(h.svc.ListCalls) != 0 {
		t.Error("expected no backend call for invalid filter")
	}
}

func TestListCommand_UnexpectedArgument(t *testing.T) {
	h := loggedIn(t, false)
	stdout, stderr, code := h.run(&commands.ListCmd{}, "extra")
	expectResult(t, stdout, stderr, code, "", "error: unexpected argument: extra\n", exitcode.UserError)
}

func TestListCommand_JSON(t *testing.T) {
	h := loggedIn(t, false)
	h.seed()

	stdout, _, code := h.run(&commands.ListCmd{}, "-o", "json")
	if code != exitcode.Success {
		t.Fatalf("expected success, got %d", code)
	}
	var tasks []service.Task
	if err := json.Unmarshal([]byte(stdout), &tasks); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, stdout)
	}
	if len(tasks) != 3 || tasks[0].ID != "task1" {
		t.Errorf("unexpected tasks: %+v", tasks)
	}
}

func TestListCommand_ExpiredSession(t *testing.T) {
	h := loggedIn(t, false)
	h.svc.RevokeTokens()

	stdout, stderr, code := h.run(&commands.ListCmd{})

	expectResult(t, stdout, stderr, code, "", "error: session expired (run: taskman login)\n", exitcode.AuthError)
	if h.env.Session.State().Token != "" {
		t.Error("expected session cleared")
	}
	if _, ok, _ := h.store.Get(session.KeyToken); ok {
		t.Error("expected stored token removed")
	}
}

func TestListCommand_BackendError(t *testing.T) {
	h := loggedIn(t, false)
	h.svc.ListTasksErr = &service.Error{Op: "ListTasks", Kind: service.KindTransient, Message: "Failed to load tasks"}

	stdout, stderr, code := h.run(&commands.ListCmd{})

	expectResult(t, stdout, stderr, code, "", "error: backend error: Failed to load tasks\n", exitcode.BackendError)
	if h.env.Session.State().Token == "" {
		t.Error("a transient failure must keep the session")
	}
}

// Tests for add command
func TestAddCommand(t *testing.T) {
	h := loggedIn(t, false)

	stdout, stderr, code := h.run(&commands.AddCmd{}, "-p", "high", "-d", "2 litres", "Buy", "milk")

	expectResult(t, stdout, stderr, code, "ok\n", "", exitcode.Success)
	tasks := h.svc.Tasks()
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	want := service.Task{ID: "task1", Title: "Buy milk", Description: "2 litres", Status: service.StatusPending, Priority: service.PriorityHigh}
	if tasks[0] != want {
		t.Errorf("expected %+v, got %+v", want, tasks[0])
	}
}

func TestAddCommand_Defaults(t *testing.T) {
	h := loggedIn(t, true)

	stdout, stderr, code := h.run(&commands.AddCmd{}, "Call mom")

	expectResult(t, stdout, stderr, code, "", "", exitcode.Success)
	tasks := h.svc.Tasks()
	if len(tasks) != 1 || tasks[0].Status != service.StatusPending || tasks[0].Priority != service.PriorityMedium {
		t.Errorf("expected pending/medium task, got %+v", tasks)
	}
}

func TestAddCommand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no title", nil, "error: title required\n"},
		{"blank title", []string{"  "}, "error: title required\n"},
		{"bad status", []string{"--status", "done", "x"}, "error: invalid status: done\n"},
		{"bad priority", []string{"-p", "urgent", "x"}, "error: invalid priority: urgent\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := loggedIn(t, false)
			stdout, stderr, code := h.run(&commands.AddCmd{}, tt.args...)
			expectResult(t, stdout, stderr, code, "", tt.wantErr, exitcode.UserError)
			if len(h.svc.Tasks()) != 0 {
				t.Error("expected no task created")
			}
		})
	}
}

// Tests for edit command
func TestEditCommand_ByNumber(t *testing.T) {
	h := loggedIn(t, false)
	h.seed()

	stdout, stderr, code := h.run(&commands.EditCmd{}, "--status", "in progress", "-t", "Buy oat milk", "1")

	expectResult(t, stdout, stderr, code, "ok\n", "", exitcode.Success)
	got := h.svc.Tasks()[0]
	want := service.Task{ID: "task1", Title: "Buy oat milk", Status: service.StatusInProgress, Priority: service.PriorityLow}
	if got != want {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestEditCommand_ByID(t *testing.T) {
	h := loggedIn(t, false)
	h.seed()

	_, _, code := h.run(&commands.EditCmd{}, "-p", "low", "task3")

	if code != exitcode.Success {
		t.Fatalf("expected success, got %d", code)
	}
	if got := h.svc.Tasks()[2]; got.Priority != service.PriorityLow || got.Title != "Tax return" {
		t.Errorf("expected only priority changed, got %+v", got)
	}
}

func TestEditCommand_ClearDescription(t *testing.T) {
	h := loggedIn(t, false)
	h.svc.AddTask("Buy milk", service.StatusPending, service.PriorityLow)
	h.run(&commands.EditCmd{}, "-d", "semi-skimmed", "1")

	_, _, code := h.run(&commands.EditCmd{}, "-d", "", "1")

	if code != exitcode.Success {
		t.Fatalf("expected success, got %d", code)
	}
	if d := h.svc.Tasks()[0].Description; d != "" {
		t.Errorf("expected description cleared, got %q", d)
	}
}

func TestEditCommand_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no ref", []string{"-t", "x"}, "error: task reference required\n"},
		{"nothing to change", []string{"1"}, "error: nothing to change\n"},
		{"out of range", []string{"-t", "x", "5"}, "error: task number out of range: 5\n"},
		{"zero", []string{"-t", "x", "0"}, "error: task number out of range: 0\n"},
		{"unknown id", []string{"-t", "x", "nope"}, "error: task not found: nope\n"},
		{"bad status", []string{"--status", "later", "1"}, "error: invalid status: later\n"},
		{"two refs", []string{"-t", "x", "1", "2"}, "error: unexpected argument: 2\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := loggedIn(t, false)
			h.seed()
			stdout, stderr, code := h.run(&commands.EditCmd{}, tt.args...)
			expectResult(t, stdout, stderr, code, "", tt.wantErr, exitcode.UserError)
		})
	}
}

func TestEditCommand_FlagsResetBetweenRuns(t *testing.T) {
	h := loggedIn(t, false)
	h.seed()
	cmd := &commands.EditCmd{}

	h.run(cmd, "-t", "Renamed", "1")
	_, stderr, code := h.run(cmd, "2")

	if code != exitcode.UserError || stderr != "error: nothing to change\n" {
		t.Errorf("expected flags from the previous run forgotten, got %d %q", code, stderr)
	}
}

// Tests for done command
func TestDoneCommand(t *testing.T) {
	h := loggedIn(t, false)
	h.seed()

	stdout, stderr, code := h.run(&commands.DoneCmd{}, "1", "task3", "2")

	expectResult(t, stdout, stderr, code, "ok\n", "", exitcode.Success)
	for _, task := range h.svc.Tasks() {
		if task.Status != service.StatusCompleted {
			t.Errorf("expected %s completed, got %s", task.ID, task.Status)
		}
	}
}

func TestDoneCommand_ResolvesAllBeforeChanging(t *testing.T) {
	h := loggedIn(t, false)
	h.seed()

	_, stderr, code := h.run(&commands.DoneCmd{}, "1", "9")

	if code != exitcode.UserError || stderr != "error: task number out of range: 9\n" {
		t.Errorf("unexpected result %d %q", code, stderr)
	}
	if h.svc.Tasks()[0].Status != service.StatusPending {
		t.Error("expected no task changed when a ref fails")
	}
}

func TestDoneCommand_NoRef(t *testing.T) {
	h := loggedIn(t, false)
	stdout, stderr, code := h.run(&commands.DoneCmd{})
	expectResult(t, stdout, stderr, code, "", "error: task reference required\n", exitcode.UserError)
}

// Tests for rm command
func TestRmCommand(t *testing.T) {
	h := loggedIn(t, false)
	h.seed()

	stdout, stderr, code := h.run(&commands.RmCmd{}, "1", "task3", "1")

	expectResult(t, stdout, stderr, code, "ok\n", "", exitcode.Success)
	tasks := h.svc.Tasks()
	if len(tasks) != 1 || tasks[0].ID != "task2" {
		t.Errorf("expected only task2 left, got %+v", tasks)
	}
}

func TestRmCommand_MissingIDSucceeds(t *testing.T) {
	h := loggedIn(t, true)
	h.seed()
	before := h.svc.Tasks()

	stdout, stderr, code := h.run(&commands.RmCmd{}, "gone")

	expectResult(t, stdout, stderr, code, "", "", exitcode.Success)
	if len(h.svc.ListCalls) != 0 {
		t.Error("expected ids deleted without a listing")
	}
	if after := h.svc.Tasks(); !reflect.DeepEqual(after, before) {
		t.Errorf("expected tasks unchanged, got %+v", after)
	}
}

func TestRmCommand_DotSegmentRejected(t *testing.T) {
	for _, ref := range []string{".", ".."} {
		h := loggedIn(t, true)
		h.seed()

		stdout, stderr, code := h.run(&commands.RmCmd{}, ref)

		expectResult(t, stdout, stderr, code, "", "error: invalid task reference: "+ref+"\n", exitcode.UserError)
		if n := len(h.svc.Tasks()); n != 3 {
			t.Errorf("rm %s: expected 3 tasks left, got %d", ref, n)
		}
	}
}

func TestRmCommand_BackendError(t *testing.T) {
	h := loggedIn(t, false)
	h.svc.DeleteTaskErr = &service.Error{Op: "DeleteTask", Kind: service.KindTransient, Message: "Failed to delete task"}

	stdout, stderr, code := h.run(&commands.RmCmd{}, "abc")

	expectResult(t, stdout, stderr, code, "", "error: backend error: Failed to delete task\n", exitcode.BackendError)
}

// Tests for stats command
func TestStatsCommand(t *testing.T) {
	h := loggedIn(t, false)
	h.seed()
	h.svc.AddTask("Plan trip", service.StatusPending, service.PriorityMedium)

	stdout, stderr, code := h.run(&commands.StatsCmd{})

	expected := "total        4\n" +
		"pending      2\n" +
		"in-progress  1\n" +
		"completed    1\n"
	expectResult(t, stdout, stderr, code, expected, "", exitcode.Success)
}

func TestStatsCommand_YAML(t *testing.T) {
	h := loggedIn(t, false)
	h.seed()

	stdout, _, code := h.run(&commands.StatsCmd{}, "--output", "yaml")

	if code != exitcode.Success {
		t.Fatalf("expected success, got %d", code)
	}
	if !strings.Contains(stdout, "total: 3\n") || !strings.Contains(stdout, "completed: 1\n") {
		t.Errorf("unexpected yaml %q", stdout)
	}
}

func TestStatsCommand_BadFormat(t *testing.T) {
	h := loggedIn(t, false)
	_, stderr, code := h.run(&commands.StatsCmd{}, "-o", "xml")
	if code != exitcode.UserError || !strings.HasPrefix(stderr, "error: ") {
		t.Errorf("unexpected result %d %q", code, stderr)
	}
}

// Tests for whoami and profile commands
func TestWhoamiCommand(t *testing.T) {
	h := loggedIn(t, false)

	stdout, stderr, code := h.run(&commands.WhoamiCmd{})

	expected := "name:    Test User\nemail:   test@example.com\nid:      u1\n"
	expectResult(t, stdout, stderr, code, expected, "", exitcode.Success)
}

func TestWhoamiCommand_JSON(t *testing.T) {
	h := loggedIn(t, false)

	stdout, _, code := h.run(&commands.WhoamiCmd{}, "-o", "json")

	if code != exitcode.Success {
		t.Fatalf("expected success, got %d", code)
	}
	var got struct {
		User      service.UserProfile `json:"user"`
		ExpiresAt *string             `json:"expires_at"`
	}
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got.User.Email != "test@example.com" || got.ExpiresAt != nil {
		t.Errorf("unexpected output %+v", got)
	}
}

func TestProfileCommand_Show(t *testing.T) {
	h := loggedIn(t, false)
	h.svc.SetProfile(service.UserProfile{ID: "u1", Name: "Renamed", Email: "test@example.com", Bio: "hi"})

	stdout, stderr, code := h.run(&commands.ProfileCmd{})

	expected := "name:    Renamed\nemail:   test@example.com\nbio:     hi\nid:      u1\n"
	expectResult(t, stdout, stderr, code, expected, "", exitcode.Success)
}

func TestProfileCommand_ShowOffline(t *testing.T) {
	h := loggedIn(t, false)
	h.svc.GetProfileErr = &service.Error{Op: "GetProfile", Kind: service.KindTransient, Message: "Failed to load profile"}

	stdout, stderr, code := h.run(&commands.ProfileCmd{})

	if code != exitcode.Success {
		t.Fatalf("expected cached profile shown, got %d", code)
	}
	if !strings.HasPrefix(stdout, "name:    Test User\n") {
		t.Errorf("expected cached profile, got %q", stdout)
	}
	if stderr != "! Could not refresh your profile. Check your connection.\n" {
		t.Errorf("expected warning notification, got %q", stderr)
	}
}

func TestProfileCommand_Update(t *testing.T) {
	h := loggedIn(t, false)

	stdout, stderr, code := h.run(&commands.ProfileCmd{}, "--bio", "Gardener")

	expectResult(t, stdout, stderr, code, "ok\n", "✓ Profile updated successfully!\n", exitcode.Success)
	user := h.env.Session.State().User
	if user == nil || user.Name != "Test User" || user.Bio != "Gardener" {
		t.Errorf("expected bio saved with name kept, got %+v", user)
	}
}

func TestProfileCommand_EmptyName(t *testing.T) {
	h := loggedIn(t, false)
	stdout, stderr, code := h.run(&commands.ProfileCmd{}, "--name", " ")
	expectResult(t, stdout, stderr, code, "", "error: name required\n", exitcode.UserError)
}

func TestProfileCommand_Expired(t *testing.T) {
	h := loggedIn(t, false)
	h.svc.RevokeTokens()

	stdout, stderr, code := h.run(&commands.ProfileCmd{})

	expectResult(t, stdout, stderr, code, "", "error: session expired (run: taskman login)\n", exitcode.AuthError)
}
