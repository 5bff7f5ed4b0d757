package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskman/internal/exitcode"
	"taskman/internal/output"
	"taskman/internal/service"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command.
// Handles both `taskman` (no args) and `taskman list [filters]`.
type ListCmd struct {
	search   string
	status   string
	priority string
	format   string
}

func (c *ListCmd) Name() string      { return "list" }
func (c *ListCmd) Aliases() []string { return []string{"ls"} }
func (c *ListCmd) Synopsis() string  { return "List tasks" }
func (c *ListCmd) Usage() string {
	return "taskman list [--search <text>] [--status <status>] [--priority <priority>] [--output text|json|yaml]"
}
func (c *ListCmd) NeedsAuth() bool { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.search, "search", "", "")
	fs.StringVar(&c.search, "s", "", "")
	fs.StringVar(&c.status, "status", "", "")
	fs.StringVar(&c.priority, "priority", "", "")
	fs.StringVar(&c.format, "output", "", "")
	fs.StringVar(&c.format, "o", "", "")
}

func (c *ListCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}
	format, err := output.ParseFormat(c.format)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	filters, err := parseFilters(c.search, c.status, c.priority)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	tasks, err := env.Service.ListTasks(ctx, env.Token(), filters)
	if err != nil {
		return reportError(env, errOut, err)
	}
	env.Logger.Debug("listed tasks", "count", len(tasks), "filtered", !filters.IsZero())

	if format != output.FormatText {
		if err := output.Encode(out, format, tasks); err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.BackendError
		}
		return exitcode.Success
	}

	if len(tasks) == 0 {
		if !env.Config.Quiet {
			fmt.Fprintln(out, "no tasks found")
		}
		return exitcode.Success
	}
	// Numbers only make sense for the unfiltered listing, which is what
	// numeric refs index.
	for i, task := range tasks {
		if filters.IsZero() {
			output.FormatTask(out, i+1, task)
		} else {
			output.FormatTaskWithID(out, task)
		}
	}
	return exitcode.Success
}

// parseFilters validates filter flag values. "any" and "" mean no filter.
func parseFilters(search, status, priority string) (service.Filters, error) {
	f := service.Filters{Search: search}
	if status != "" && status != "any" {
		s, err := service.ParseStatus(status)
		if err != nil {
			return f, err
		}
		f.Status = s
	}
	if priority != "" && priority != "any" {
		p, err := service.ParsePriority(priority)
		if err != nil {
			return f, err
		}
		f.Priority = p
	}
	return f, nil
}
