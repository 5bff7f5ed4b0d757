// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskman/internal/config"
	"taskman/internal/exitcode"
	"taskman/internal/logging"
	"taskman/internal/service"
	"taskman/internal/session"
)

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsAuth returns true if the command requires a verified session.
	// Commands like help, version, register, login, logout return false.
	NeedsAuth() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command with positional args left after flag
	// parsing. Returns exit code.
	Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int
}

// Env carries the dependencies a command runs with.
type Env struct {
	Config  *config.Config
	Service service.Service
	Session *session.Manager
	Logger  *logging.Logger

	// In is read by interactive commands.
	In io.Reader
}

// Token returns the current session token.
func (e *Env) Token() string {
	return e.Session.State().Token
}

// reportError prints a failed backend call and returns its exit code.
// A rejected token ends the session.
func reportError(env *Env, errOut io.Writer, err error) int {
	code := exitcode.For(err)
	switch code {
	case exitcode.AuthError:
		if logoutErr := env.Session.Logout(false); logoutErr != nil {
			env.Logger.Warn("failed to clear expired session", "error", logoutErr.Error())
		}
		fmt.Fprintln(errOut, "error: session expired (run: taskman login)")
	case exitcode.UserError:
		fmt.Fprintf(errOut, "error: %v\n", err)
	default:
		env.Logger.Error("backend call failed", "error", err.Error())
		fmt.Fprintf(errOut, "error: backend error: %v\n", err)
	}
	return code
}

// printOK prints the success marker unless quiet.
func printOK(env *Env, out io.Writer) {
	if !env.Config.Quiet {
		fmt.Fprintln(out, "ok")
	}
}

// optString is a string flag that records whether it was set, so an
// explicit empty value can be told apart from an absent flag.
type optString struct {
	value string
	set   bool
}

func (o *optString) String() string { return o.value }

func (o *optString) Set(s string) error {
	o.value = s
	o.set = true
	return nil
}

// reset clears the flag before a parse.
func (o *optString) reset() { *o = optString{} }
