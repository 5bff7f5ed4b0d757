package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"time"

	"taskman/internal/exitcode"
	"taskman/internal/output"
	"taskman/internal/service"
)

func init() {
	Register(&WhoamiCmd{})
}

// WhoamiCmd implements the whoami command. It shows the verified session
// profile and, for JWT tokens, the token expiry.
type WhoamiCmd struct {
	format string
}

func (c *WhoamiCmd) Name() string      { return "whoami" }
func (c *WhoamiCmd) Aliases() []string { return nil }
func (c *WhoamiCmd) Synopsis() string  { return "Show the signed-in account" }
func (c *WhoamiCmd) Usage() string     { return "taskman whoami [--output text|json|yaml]" }
func (c *WhoamiCmd) NeedsAuth() bool   { return true }

func (c *WhoamiCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.format, "output", "", "")
	fs.StringVar(&c.format, "o", "", "")
}

type whoamiResult struct {
	User      service.UserProfile `json:"user" yaml:"user"`
	ExpiresAt *time.Time          `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

func (c *WhoamiCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	format, err := output.ParseFormat(c.format)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	return showProfile(env, format, out, errOut)
}

// showProfile prints the cached profile of the current session.
func showProfile(env *Env, format output.Format, out, errOut io.Writer) int {
	state := env.Session.State()
	if state.User == nil {
		fmt.Fprintln(errOut, "error: profile unavailable (backend unreachable)")
		return exitcode.BackendError
	}

	var expires time.Time
	if claims, err := env.Session.TokenClaims(); err == nil && claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	} else if err != nil {
		env.Logger.Debug("token claims unavailable", "error", err.Error())
	}

	if format != output.FormatText {
		res := whoamiResult{User: *state.User}
		if !expires.IsZero() {
			res.ExpiresAt = &expires
		}
		if err := output.Encode(out, format, res); err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.BackendError
		}
		return exitcode.Success
	}
	output.FormatProfile(out, *state.User, expires)
	return exitcode.Success
}
