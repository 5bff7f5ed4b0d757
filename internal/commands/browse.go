package commands

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"taskman/internal/dashboard"
	"taskman/internal/exitcode"
	"taskman/internal/output"
	"taskman/internal/service"
)

func init() {
	Register(&BrowseCmd{})
}

// BrowseCmd implements the browse command: an interactive filter loop
// reading one instruction per line from stdin.
//
//	search <text>      search title and description (debounced)
//	status <s|any>     filter by status
//	priority <p|any>   filter by priority
//	refresh            fetch again
//	quit               exit
type BrowseCmd struct {
	debounce time.Duration
}

func (c *BrowseCmd) Name() string      { return "browse" }
func (c *BrowseCmd) Aliases() []string { return nil }
func (c *BrowseCmd) Synopsis() string  { return "Filter tasks interactively" }
func (c *BrowseCmd) Usage() string     { return "taskman browse [--debounce <duration>]" }
func (c *BrowseCmd) NeedsAuth() bool   { return true }

func (c *BrowseCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.DurationVar(&c.debounce, "debounce", dashboard.DefaultDebounce, "")
}

func (c *BrowseCmd) Run(ctx context.Context, env *Env, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintf(errOut, "error: unexpected argument: %s\n", args[0])
		return exitcode.UserError
	}
	if env.In == nil {
		fmt.Fprintln(errOut, "error: browse needs an input stream")
		return exitcode.UserError
	}

	var mu sync.Mutex
	expired := false
	header := lipgloss.NewRenderer(out).NewStyle().Bold(true)

	ctrl := dashboard.New(env.Service, env.Token,
		dashboard.WithDebounce(c.debounce),
		dashboard.WithLogger(env.Logger),
		dashboard.OnUnauthenticated(func() {
			mu.Lock()
			expired = true
			mu.Unlock()
			env.Session.Logout(false)
		}),
		dashboard.OnResult(func(res dashboard.Result) {
			mu.Lock()
			defer mu.Unlock()
			writeResult(out, errOut, header, res)
		}),
	)
	defer ctrl.Close()

	ctrl.Refresh()

	lines := make(chan string)
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(env.In)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-stop:
				return
			}
		}
	}()

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				break loop
			}
			mu.Lock()
			stop := expired
			mu.Unlock()
			if stop {
				break loop
			}
			quit, err := applyBrowseLine(ctrl, line)
			if err != nil {
				mu.Lock()
				fmt.Fprintf(errOut, "error: %v\n", err)
				mu.Unlock()
				continue
			}
			if quit {
				break loop
			}
		}
	}

	res, err := ctrl.Flush(ctx)
	if err != nil {
		return exitcode.Success
	}
	mu.Lock()
	defer mu.Unlock()
	if expired {
		fmt.Fprintln(errOut, "error: session expired (run: taskman login)")
		return exitcode.AuthError
	}
	if res.Err != nil {
		return exitcode.For(res.Err)
	}
	return exitcode.Success
}

// applyBrowseLine applies one instruction. It reports whether to quit.
func applyBrowseLine(ctrl *dashboard.Controller, line string) (bool, error) {
	verb, arg, _ := strings.Cut(strings.TrimSpace(line), " ")
	arg = strings.TrimSpace(arg)
	switch strings.ToLower(verb) {
	case "":
		return false, nil
	case "search", "/":
		ctrl.SetSearch(arg)
	case "status":
		f, err := parseFilters("", arg, "")
		if err != nil {
			return false, err
		}
		ctrl.SetStatus(f.Status)
	case "priority":
		f, err := parseFilters("", "", arg)
		if err != nil {
			return false, err
		}
		ctrl.SetPriority(f.Priority)
	case "refresh":
		ctrl.Refresh()
	case "quit", "exit", "q":
		return true, nil
	default:
		return false, fmt.Errorf("unknown instruction: %s", verb)
	}
	return false, nil
}

func writeResult(out, errOut io.Writer, header lipgloss.Style, res dashboard.Result) {
	if res.Err != nil {
		if !service.IsUnauthenticated(res.Err) {
			fmt.Fprintf(errOut, "error: %v\n", res.Err)
		}
		return
	}
	fmt.Fprintln(out, header.Render(describeFilters(res.Filters)))
	if len(res.Tasks) == 0 {
		fmt.Fprintln(out, "no tasks found")
	}
	for _, task := range res.Tasks {
		output.FormatTaskWithID(out, task)
	}
	fmt.Fprintf(out, "%d total, %d pending, %d in progress, %d completed\n",
		res.Stats.Total, res.Stats.Pending, res.Stats.InProgress, res.Stats.Completed)
}

func describeFilters(f service.Filters) string {
	status, priority := string(f.Status), string(f.Priority)
	if status == "" {
		status = "any"
	}
	if priority == "" {
		priority = "any"
	}
	return fmt.Sprintf("== search=%q status=%s priority=%s ==", strings.TrimSpace(f.Search), status, priority)
}
