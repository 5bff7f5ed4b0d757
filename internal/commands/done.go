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
	Register(&DoneCmd{})
}

// DoneCmd implements the done command.
type DoneCmd struct{}

func (c *DoneCmd) Name() string      { return "done" }
func (c *DoneCmd) Aliases() []string { return nil }
func (c *DoneCmd) Synopsis() string  { return "Mark tasks completed" }
func (c *DoneCmd) Usage() string     { return "taskman done <ref>..." }
func (c *DoneCmd) NeedsAuth() bool   { return true }

func (c *DoneCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *DoneCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	refs, err := ParseTaskRefs(args)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	// Resolve every ref before changing anything so positions stay stable.
	index := newTaskIndex(env)
	tasks := make([]service.Task, 0, len(refs))
	for _, ref := range refs {
		task, err := index.resolve(ctx, ref)
		if err != nil {
			return reportError(env, errOut, err)
		}
		tasks = append(tasks, task)
	}

	for _, task := range tasks {
		if task.Status == service.StatusCompleted {
			continue
		}
		fields := task.Fields()
		fields.Status = service.StatusCompleted
		if _, err := env.Service.UpdateTask(ctx, env.Token(), task.ID, fields); err != nil {
			return reportError(env, errOut, err)
		}
		env.Logger.Info("task completed", "task_id", task.ID)
	}

	printOK(env, out)
	return exitcode.Success
}
