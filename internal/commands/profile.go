package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"taskman/internal/exitcode"
	"taskman/internal/output"
	"taskman/internal/service"
)

func init() {
	Register(&ProfileCmd{})
}

// ProfileCmd implements the profile command. Without flags it re-fetches
// and prints the profile; with --name or --bio it saves the change.
type ProfileCmd struct {
	name optString
	bio  optString
}

func (c *ProfileCmd) Name() string      { return "profile" }
func (c *ProfileCmd) Aliases() []string { return nil }
func (c *ProfileCmd) Synopsis() string  { return "Show or edit your profile" }
func (c *ProfileCmd) Usage() string     { return "taskman profile [--name <name>] [--bio <text>]" }
func (c *ProfileCmd) NeedsAuth() bool   { return true }

func (c *ProfileCmd) RegisterFlags(fs *flag.FlagSet) {
	c.name.reset()
	c.bio.reset()
	fs.Var(&c.name, "name", "")
	fs.Var(&c.bio, "bio", "")
}

func (c *ProfileCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}

	if !c.name.set && !c.bio.set {
		if err := env.Session.RefreshProfile(ctx); err != nil {
			if service.IsUnauthenticated(err) {
				return reportError(env, errOut, err)
			}
			// The cached profile is still shown below.
			env.Logger.Warn("profile refresh failed", "error", err.Error())
		}
		return showProfile(env, output.FormatText, out, errOut)
	}

	update := service.ProfileUpdate{}
	if u := env.Session.State().User; u != nil {
		update.Name, update.Bio = u.Name, u.Bio
	}
	if c.name.set {
		update.Name = strings.TrimSpace(c.name.value)
	}
	if c.bio.set {
		update.Bio = c.bio.value
	}
	if update.Name == "" {
		fmt.Fprintln(errOut, "error: name required")
		return exitcode.UserError
	}

	if _, err := env.Session.UpdateProfile(ctx, update); err != nil {
		return reportError(env, errOut, err)
	}

	printOK(env, out)
	return exitcode.Success
}
