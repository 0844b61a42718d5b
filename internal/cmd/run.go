package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/fixloop/internal/agent"
	"github.com/harrison/fixloop/internal/budget"
	"github.com/harrison/fixloop/internal/config"
	"github.com/harrison/fixloop/internal/executor"
	"github.com/harrison/fixloop/internal/history"
	"github.com/harrison/fixloop/internal/logger"
	"github.com/harrison/fixloop/internal/session"
	"github.com/harrison/fixloop/internal/supervisor"
	"github.com/harrison/fixloop/internal/telemetry"
	"github.com/harrison/fixloop/internal/workspace"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [task]...",
		Short: "Generate, build and test code for one or more tasks",
		Long: `Run the generate, build, test and fix loop.

With no arguments, fixloop starts an interactive session: it prompts for a
task description, runs it to completion, and prompts again. Type "exit"
to quit. With arguments, each argument is run as a task in order.

Configuration is loaded from .fixloop/config.yaml if present, then from
a .env file and the process environment (AZURE_OPENAI_* and friends).
CLI flags override both.

Examples:
  # Interactive session
  fixloop run

  # Batch mode
  fixloop run "Reverse a string" "Check whether a number is prime"

  # Other options
  fixloop run --max-attempts 3 "Sum a list"      # Fewer fix rounds
  fixloop run --timeout 2m "Parse a CSV line"    # Longer build/test timeout
  fixloop run --app-type web "Hello endpoint"    # Scaffold a web project
  fixloop run --workspace ./out "FizzBuzz"       # Generate into ./out
  fixloop run --config custom.yaml "FizzBuzz"    # Use custom config file`,
		Args: cobra.ArbitraryArgs,
		RunE: runCommand,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .fixloop/config.yaml)")
	cmd.Flags().String("env-file", ".env", "Path to a .env file with credentials")
	cmd.Flags().Int("max-attempts", 0, "Maximum generate/build/test rounds per task")
	cmd.Flags().String("timeout", "", "Per-launch build/test timeout (e.g., 60s, 2m)")
	cmd.Flags().String("log-dir", "", "Directory for log files")
	cmd.Flags().String("workspace", "", "Directory for generated projects")
	cmd.Flags().String("app-type", "", "Project scaffold: console, web, or winforms")
	cmd.Flags().Bool("verbose", false, "Show debug output")

	return cmd
}

// loadRunConfig resolves the effective configuration: file, then .env and
// environment, then flags. The result is validated.
func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(".")
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := config.LoadDotEnv(envFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	var maxAttemptsPtr *int
	if cmd.Flags().Changed("max-attempts") {
		v, _ := cmd.Flags().GetInt("max-attempts")
		maxAttemptsPtr = &v
	}

	var timeoutPtr *time.Duration
	if cmd.Flags().Changed("timeout") {
		timeoutStr, _ := cmd.Flags().GetString("timeout")
		timeout, err := time.ParseDuration(timeoutStr)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout format %q: %w", timeoutStr, err)
		}
		if timeout < time.Second {
			return nil, fmt.Errorf("--timeout must be at least 1s, got %s", timeoutStr)
		}
		timeoutPtr = &timeout
	}

	stringFlag := func(name string) *string {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		v, _ := cmd.Flags().GetString(name)
		return &v
	}

	cfg.MergeWithFlags(maxAttemptsPtr, timeoutPtr, stringFlag("log-dir"), stringFlag("workspace"), stringFlag("app-type"))

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}

	consoleLog := logger.NewConsoleLogger(cmd.OutOrStdout(), cfg.LogLevel)
	fileLog, err := logger.NewFileLoggerWithDirAndLevel(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	defer fileLog.Close()
	log := logger.NewMultiLogger(consoleLog, fileLog)

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "fixloop",
		ServiceVersion: Version,
		OTLPEndpoint:   cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(flushCtx); err != nil {
			log.LogWarn(fmt.Sprintf("telemetry shutdown: %v", err))
		}
	}()

	sess, closeStore, err := buildSession(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := sess.Start(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("failed to start session: %w", err)
	}

	if len(args) > 0 {
		err = sess.RunTasks(ctx, args)
	} else {
		err = sess.Interactive(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	}

	summary, closeErr := sess.Close()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close session: %w", closeErr)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logs written to: %s\n", fileLog.RunFile())
	if summary.Aborted > 0 {
		return fmt.Errorf("%d task(s) aborted", summary.Aborted)
	}
	return nil
}

// buildSession wires the generation gateway, process supervisor, workspace,
// attempt loop and history store into a session. The returned func closes
// the history store and is always safe to call.
func buildSession(cfg *config.Config, log *logger.MultiLogger) (*session.Session, func(), error) {
	noop := func() {}

	backend, err := agent.NewOpenAIBackend(agent.OpenAIConfig{
		Provider:   cfg.Generation.Provider,
		Endpoint:   cfg.Generation.Endpoint,
		APIKey:     cfg.Generation.APIKey,
		Deployment: cfg.Generation.Deployment,
		APIVersion: cfg.Generation.APIVersion,
	})
	if err != nil {
		return nil, noop, fmt.Errorf("failed to create generation backend: %w", err)
	}

	gateway := agent.NewGateway(backend, agent.GatewayConfig{
		MaxRetries:  cfg.Generation.MaxRetries,
		RetryDelay:  cfg.GenerationRetryDelay(),
		CallTimeout: cfg.Generation.CallTimeout,
		MaxTokens:   cfg.MaxCompletionTokens(),
	}, log)
	prompts := agent.NewPrompts(cfg.Toolchain.Language, cfg.Toolchain.TestFramework)

	sup := supervisor.New(nil, cfg.Process.RetryDelay, log)

	layout, err := workspace.NewLayout(cfg.Workspace)
	if err != nil {
		return nil, noop, fmt.Errorf("invalid workspace: %w", err)
	}
	ws := workspace.New(layout, workspace.Options{
		AppType:        cfg.Workspace.AppType,
		SkipScaffold:   cfg.Workspace.SkipScaffold,
		CommandTimeout: cfg.ProcessTimeout(),
		MaxRetries:     cfg.Process.MaxRetries,
	}, sup, log)

	trimmer := budget.NewTrimmer(cfg.MaxPromptTokens(), cfg.Generation.CharsPerToken, log)

	loop := executor.NewAttemptLoop(gateway, prompts, sup, ws, trimmer, executor.LoopConfig{
		MaxAttempts:            cfg.Loop.MaxAttempts,
		FixDelay:               cfg.Loop.FixDelay,
		PinTestsOnBuildFailure: cfg.Loop.PinTestsOnBuildFailure,
		BuildCommand:           cfg.Toolchain.BuildCommand,
		TestCommand:            cfg.Toolchain.TestCommand,
		CommandTimeout:         cfg.ProcessTimeout(),
		CommandMaxRetries:      cfg.Process.MaxRetries,
	}, log)

	// A nil *history.Store must not reach the session as a non-nil interface.
	var recorder session.Recorder
	closeStore := noop
	if cfg.History.Enabled {
		store, err := history.NewStore(cfg.History.DBPath)
		if err != nil {
			log.LogWarn(fmt.Sprintf("Run history disabled: %v", err))
		} else {
			recorder = store
			closeStore = func() {
				if err := store.Close(); err != nil {
					log.LogWarn(fmt.Sprintf("failed to close history store: %v", err))
				}
			}
		}
	}

	return session.New(loop, ws, recorder, log), closeStore, nil
}
