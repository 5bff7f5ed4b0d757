package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"taskman/internal/commands"
	"taskman/internal/config"
	"taskman/internal/exitcode"
	"taskman/internal/logging"
	"taskman/internal/notify"
	"taskman/internal/output"
	"taskman/internal/service"
	"taskman/internal/session"
)

// ServiceFactory creates a Service from config.
// Used to inject the backend during dispatch.
type ServiceFactory func(ctx context.Context, cfg *config.Config, logger *logging.Logger) (service.Service, error)

// Dispatcher handles command-line parsing and dispatch.
type Dispatcher struct {
	registry *commands.Registry
	factory  ServiceFactory

	// In is handed to interactive commands.
	In io.Reader
}

// NewDispatcher creates a new dispatcher with the given registry and service factory.
func NewDispatcher(registry *commands.Registry, factory ServiceFactory) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		factory:  factory,
	}
}

// Run parses arguments and dispatches to the appropriate command.
// Returns the exit code.
func (d *Dispatcher) Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	// No args -> dispatch to "list" command with no args
	if len(args) == 0 {
		return d.dispatch(ctx, "list", nil, out, errOut)
	}

	cmdName := args[0]

	// If first token starts with -, it's an error (flags require a command)
	if strings.HasPrefix(cmdName, "-") {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}

	return d.dispatch(ctx, cmdName, args[1:], out, errOut)
}

func (d *Dispatcher) dispatch(ctx context.Context, cmdName string, args []string, out, errOut io.Writer) int {
	cmd, ok := d.registry.Find(cmdName)
	if !ok {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}
	return d.dispatchCommand(ctx, cmd, args, out, errOut)
}

// commonFlags are accepted by every command.
type commonFlags struct {
	configDir string
	apiURL    string
	quiet     bool
	debug     bool
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, cmd commands.Command, args []string, out, errOut io.Writer) int {
	// Create flag set with custom error handling
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard) // We handle errors ourselves

	var common commonFlags
	fs.StringVar(&common.configDir, "config", "", "")
	fs.StringVar(&common.apiURL, "api-url", "", "")
	fs.BoolVar(&common.quiet, "quiet", false, "")
	fs.BoolVar(&common.debug, "debug", false, "")

	// Register command-specific flags
	cmd.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		fmt.Fprintln(errOut, flagError(err))
		return exitcode.UserError
	}

	// Check if first positional arg starts with - (should have been parsed as flag)
	positionalArgs := fs.Args()
	if len(positionalArgs) > 0 && strings.HasPrefix(positionalArgs[0], "-") && positionalArgs[0] != "-" {
		fmt.Fprintf(errOut, "error: unknown flag: %s\n", positionalArgs[0])
		return exitcode.UserError
	}

	cfg, err := loadConfig(common)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}

	logger, err := newLogger(cfg, errOut)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}
	defer logger.Close()
	logger = logger.With("command", cmd.Name())
	ctx = logging.WithContext(ctx, logger)

	if d.factory == nil {
		fmt.Fprintln(errOut, "error: backend error: no backend configured")
		return exitcode.BackendError
	}
	svc, err := d.factory(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create backend client", "error", err.Error())
		fmt.Fprintf(errOut, "error: backend error: %s\n", err)
		return exitcode.BackendError
	}

	notifier := notify.New(output.NewNotificationSink(errOut, cfg.Quiet))
	defer notifier.Close()

	sess := session.NewManager(session.NewFileStore(cfg.Dir), svc,
		session.WithNotifier(notifier),
		session.WithLogger(logger),
	)
	defer sess.Close()

	// Reading the stored session is local; only commands that need a
	// verified session pay for the profile round trip.
	state := sess.Load()
	if cmd.NeedsAuth() {
		if state.Token == "" {
			fmt.Fprintln(errOut, "error: not logged in (run: taskman login)")
			return exitcode.AuthError
		}
		if state = sess.Initialize(ctx); state.Token == "" {
			fmt.Fprintln(errOut, "error: session expired (run: taskman login)")
			return exitcode.AuthError
		}
	}

	env := &commands.Env{
		Config:  cfg,
		Service: svc,
		Session: sess,
		Logger:  logger,
		In:      d.In,
	}
	return cmd.Run(ctx, env, positionalArgs, out, errOut)
}

// loadConfig reads configuration and applies command-line overrides.
func loadConfig(common commonFlags) (*config.Config, error) {
	cfg, err := config.New(common.configDir)
	if err != nil {
		return nil, err
	}
	if common.apiURL != "" {
		cfg.APIURL = strings.TrimRight(strings.TrimSpace(common.apiURL), "/")
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	cfg.Quiet = common.quiet
	cfg.Debug = common.debug
	return cfg, nil
}

// newLogger logs to stderr with --debug, to the configured log file
// otherwise, and nowhere when neither is set.
func newLogger(cfg *config.Config, errOut io.Writer) (*logging.Logger, error) {
	switch {
	case cfg.Debug:
		return logging.NewWriterLogger(errOut, logging.LevelDebug), nil
	case cfg.LogFile != "":
		return logging.NewLogger(cfg.LogFile, cfg.LogLevel)
	default:
		return logging.NopLogger(), nil
	}
}

// flagError turns a flag package error into the CLI's error line.
func flagError(err error) string {
	errStr := err.Error()

	// Check for missing flag value
	if strings.Contains(errStr, "needs a value") || strings.Contains(errStr, "flag needs an argument") {
		parts := strings.Split(errStr, ":")
		if len(parts) > 1 {
			flagPart := strings.TrimSpace(parts[len(parts)-1])
			return "error: flag needs an argument: " + flagPart
		}
	}

	// Check for unknown flag
	if flagName, ok := strings.CutPrefix(errStr, "flag provided but not defined: "); ok {
		return "error: unknown flag: " + flagName
	}

	return "error: " + errStr
}
