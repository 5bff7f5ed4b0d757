package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"taskman/internal/exitcode"
)

func init() {
	Register(&RmCmd{})
}

// RmCmd implements the rm command.
type RmCmd struct{}

func (c *RmCmd) Name() string      { return "rm" }
func (c *RmCmd) Aliases() []string { return []string{"delete"} }
func (c *RmCmd) Synopsis() string  { return "Delete tasks" }
func (c *RmCmd) Usage() string     { return "taskman rm <ref>..." }
func (c *RmCmd) NeedsAuth() bool   { return true }

func (c *RmCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *RmCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	refs, err := ParseTaskRefs(args)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	// Positions are resolved against the listing before any delete.
	// Ids go straight to the backend: deleting a missing task succeeds.
	index := newTaskIndex(env)
	ids := make([]string, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		id := ref.ID
		if id == "" {
			task, err := index.resolve(ctx, ref)
			if err != nil {
				return reportError(env, errOut, err)
			}
			id = task.ID
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}

	for _, id := range ids {
		if err := env.Service.DeleteTask(ctx, env.Token(), id); err != nil {
			return reportError(env, errOut, err)
		}
		env.Logger.Info("task deleted", "task_id", id)
	}

	printOK(env, out)
	return exitcode.Success
}
