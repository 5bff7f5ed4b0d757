package commands

import (
	"context"
	"fmt"

	"taskman/internal/service"
)

// taskIndex resolves references against one unfiltered listing, fetched
// at most once per command run.
type taskIndex struct {
	env    *Env
	tasks  []service.Task
	loaded bool
}

func newTaskIndex(env *Env) *taskIndex {
	return &taskIndex{env: env}
}

func (x *taskIndex) load(ctx context.Context) error {
	if x.loaded {
		return nil
	}
	tasks, err := x.env.Service.ListTasks(ctx, x.env.Token(), service.Filters{})
	if err != nil {
		return err
	}
	x.tasks = tasks
	x.loaded = true
	return nil
}

// resolve returns the task ref points to.
func (x *taskIndex) resolve(ctx context.Context, ref TaskRef) (service.Task, error) {
	if err := x.load(ctx); err != nil {
		return service.Task{}, err
	}
	if ref.ID == "" {
		if ref.Num < 1 || ref.Num > len(x.tasks) {
			return service.Task{}, &service.Error{Op: "resolve", Kind: service.KindNotFound, Message: fmt.Sprintf("task number out of range: %d", ref.Num)}
		}
		return x.tasks[ref.Num-1], nil
	}
	for _, t := range x.tasks {
		if t.ID == ref.ID {
			return t, nil
		}
	}
	return service.Task{}, &service.Error{Op: "resolve", Kind: service.KindNotFound, Message: fmt.Sprintf("task not found: %s", ref.ID)}
}
