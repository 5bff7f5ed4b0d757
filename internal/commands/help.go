package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"taskman/internal/exitcode"
)

func init() {
	Register(&HelpCmd{registry: DefaultRegistry})
}

// HelpCmd implements the help command. With a command name it prints that
// command's usage.
type HelpCmd struct {
	registry *Registry
}

func (c *HelpCmd) Name() string      { return "help" }
func (c *HelpCmd) Aliases() []string { return nil }
func (c *HelpCmd) Synopsis() string  { return "Print usage" }
func (c *HelpCmd) Usage() string     { return "taskman help [command]" }
func (c *HelpCmd) NeedsAuth() bool   { return false }

func (c *HelpCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *HelpCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	registry := c.registry
	if registry == nil {
		registry = DefaultRegistry
	}

	if len(args) > 0 {
		cmd, ok := registry.Find(args[0])
		if !ok {
			fmt.Fprintf(errOut, "error: unknown command: %s\n", args[0])
			return exitcode.UserError
		}
		fmt.Fprintf(out, "%s\n\nUsage:\n  %s\n", cmd.Synopsis(), cmd.Usage())
		if aliases := cmd.Aliases(); len(aliases) > 0 {
			fmt.Fprintf(out, "\nAliases: %s\n", strings.Join(aliases, ", "))
		}
		return exitcode.Success
	}

	fmt.Fprint(out, "Usage:\n  taskman <command> [flags] [args]\n  taskman            List all tasks\n\nCommands:\n")
	for _, cmd := range registry.All() {
		suffix := ""
		switch aliases := cmd.Aliases(); len(aliases) {
		case 0:
		case 1:
			suffix = " (alias: " + aliases[0] + ")"
		default:
			suffix = " (aliases: " + strings.Join(aliases, ", ") + ")"
		}
		fmt.Fprintf(out, "  %-10s %s%s\n", cmd.Name(), cmd.Synopsis(), suffix)
	}
	fmt.Fprint(out, helpFooter)
	return exitcode.Success
}

const helpFooter = `
A <ref> is a task number from the unfiltered listing or a task id.
Status: pending, in-progress, completed. Priority: low, medium, high.
Formats: text, json, yaml.

Common flags:
  --config <dir>    Override config directory
  --api-url <url>   Override the backend URL
  --quiet           Suppress informational output
  --debug           Print debug logs to stderr
`
