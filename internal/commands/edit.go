package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskman/internal/exitcode"
	"taskman/internal/service"
)

func init() {
	Register(&EditCmd{})
}

// EditCmd implements the edit command. Unset flags keep the task's
// current values; the full field set is sent.
type EditCmd struct {
	title       optString
	description optString
	status      optString
	priority    optString
}

func (c *EditCmd) Name() string      { return "edit" }
func (c *EditCmd) Aliases() []string { return []string{"update"} }
func (c *EditCmd) Synopsis() string  { return "Change a task" }
func (c *EditCmd) Usage() string {
	return "taskman edit [--title <text>] [--description <text>] [--status <status>] [--priority <priority>] <ref>"
}
func (c *EditCmd) NeedsAuth() bool { return true }

func (c *EditCmd) RegisterFlags(fs *flag.FlagSet) {
	for _, o := range []*optString{&c.title, &c.description, &c.status, &c.priority} {
		o.reset()
	}
	fs.Var(&c.title, "title", "")
	fs.Var(&c.title, "t", "")
	fs.Var(&c.description, "description", "")
	fs.Var(&c.description, "d", "")
	fs.Var(&c.status, "status", "")
	fs.Var(&c.priority, "priority", "")
	fs.Var(&c.priority, "p", "")
}

func (c *EditCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	if len(args) > 1 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[1])
		return exitcode.UserError
	}
	var refArg string
	if len(args) == 1 {
		refArg = args[0]
	}
	ref, err := ParseTaskRef(refArg)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}
	if !c.title.set && !c.description.set && !c.status.set && !c.priority.set {
		fmt.Fprintln(errOut, "error: nothing to change")
		return exitcode.UserError
	}

	task, err := newTaskIndex(env).resolve(ctx, ref)
	if err != nil {
		return reportError(env, errOut, err)
	}

	fields := task.Fields()
	if c.title.set {
		fields.Title = c.title.value
	}
	if c.description.set {
		fields.Description = c.description.value
	}
	if c.status.set {
		s, err := service.ParseStatus(c.status.value)
		if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.UserError
		}
		fields.Status = s
	}
	if c.priority.set {
		p, err := service.ParsePriority(c.priority.value)
		if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.UserError
		}
		fields.Priority = p
	}

	if _, err := env.Service.UpdateTask(ctx, env.Token(), task.ID, fields); err != nil {
		return reportError(env, errOut, err)
	}
	env.Logger.Info("task updated", "task_id", task.ID)

	printOK(env, out)
	return exitcode.Success
}
