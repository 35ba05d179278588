// Package cli implements the multishot command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"multishot/internal/browser"
	"multishot/internal/capture"
	"multishot/internal/config"
	"multishot/internal/job"
	"multishot/internal/logging"
	"multishot/internal/namer"
	"multishot/internal/orchestrator"
	"multishot/internal/report"
)

// Version is the multishot release.
const Version = "1.0.0"

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1 // one or more jobs failed, or the backend was unusable
	ExitUsage   = 2 // bad arguments or configuration; nothing was captured
)

// exitError carries an exit code out of RunE. A nil err means the message
// was already printed.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error {
	return &exitError{code: ExitUsage, err: err}
}

// Flag names that bind to config keys.
var configKeys = map[string]string{
	"concurrency": "concurrency",
	"timeout":     "timeout",
	"chrome-path": "chrome_path",
	"log-level":   "logging.level",
	"log-file":    "logging.file",
}

// NewRootCommand builds the multishot command. Flag parsing is left to the
// job parser since groups and pass-through Chrome flags do not fit pflag;
// the flags declared here document the tool flags and receive their values.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "multishot [flags] <target> <WIDTHxHEIGHT> [job flags]",
		Short: "Capture screenshots of web pages at fixed viewport sizes",
		Long: `multishot renders one or more pages in headless Chrome and writes a PNG or
JPEG screenshot per job. Several jobs are written as bracket groups; flags
outside the groups apply to every group.

Job flags:
  --out DIR                         output directory (default ".")
  --format png|jpg                  image format (default png)
  --quality 1-100                   jpg quality
  --delay MS                        wait after load before capturing
  --selector CSS                    capture only the first matching element
  --zoom-factor N                   page zoom (default 1)
  --force-device-scale-factor N     output pixel density (default 1)

Any other --flag is passed to Chrome.`,
		Example: `  multishot page.html 1280x800
  multishot https://example.com 375x667 --format jpg --quality 85
  multishot [ page.html 1280x800 ] [ page.html 375x667 --selector "#hero" ] --out shots`,
		Version:            Version,
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		RunE:               run,
	}

	f := cmd.Flags()
	f.String("config", "", "config file (default is $XDG_CONFIG_HOME/multishot/config.yaml)")
	f.Int("concurrency", orchestrator.DefaultConcurrency, "number of jobs captured at once")
	f.Duration("timeout", orchestrator.DefaultTimeout, "deadline of each job")
	f.String("chrome-path", "", "Chrome or Chromium binary (default: $CHROME_BIN or auto-detect)")
	f.String("log-level", "warn", "log level: debug, info, warn, error")
	f.String("log-file", "", "write JSON logs to this file instead of stderr")
	f.Bool("dry-run", false, "print the resolved jobs as YAML without capturing")
	f.BoolP("help", "h", false, "help for multishot")
	f.Bool("version", false, "print the version")

	return cmd
}

// Execute runs multishot with the process arguments and returns its exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return ExecuteArgs(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

// ExecuteArgs runs multishot with args and returns its exit code.
func ExecuteArgs(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if args == nil {
		args = []string{}
	}
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	var exit *exitError
	if !errors.As(err, &exit) {
		exit = &exitError{code: ExitFailure, err: err}
	}
	if exit.err != nil {
		report.NewPrinter(stdout, stderr).Error(exit.err)
	}
	return exit.code
}

func run(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	kinds := toolFlagKinds(flags)

	segments, err := job.Tokenize(args)
	if err != nil {
		return usageError(err)
	}
	toolFlags, err := job.ScanToolFlags(segments, kinds)
	if err != nil {
		return usageError(err)
	}
	for name, value := range toolFlags {
		if err := flags.Set(name, value); err != nil {
			return usageError(fmt.Errorf("invalid value %q for --%s: %w", value, name, err))
		}
	}

	if help, _ := flags.GetBool("help"); help {
		return cmd.Help()
	}
	if version, _ := flags.GetBool("version"); version {
		fmt.Fprintf(cmd.OutOrStdout(), "multishot v%s\n", Version)
		return nil
	}
	if len(args) == 0 {
		fmt.Fprint(cmd.ErrOrStderr(), cmd.UsageString())
		return &exitError{code: ExitUsage}
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		return usageError(err)
	}

	logger, err := logging.NewLogger(cmd.ErrOrStderr(), cfg.Logging.File, cfg.Logging.Level)
	if err != nil {
		return usageError(err)
	}
	defer func() { _ = logger.Close() }()
	logger = logger.WithRun(uuid.NewString())

	plan, err := job.Build(segments, job.Options{Defaults: cfg.JobDefaults(), ToolFlags: kinds})
	if err != nil {
		logger.Debug("arguments rejected", "error", err)
		return usageError(err)
	}
	outputs := namer.Resolve(plan.Jobs)

	if dryRun, _ := flags.GetBool("dry-run"); dryRun {
		return report.Plan(cmd.OutOrStdout(), outputs)
	}

	backend := browser.New(browser.Options{ChromePath: cfg.ChromePath, Logger: logger})
	defer func() { _ = backend.Close() }()

	pipeline := capture.NewPipeline(backend, capture.NewWriter(nil), logger)
	res := orchestrator.Run(cmd.Context(), pipeline, outputs, orchestrator.Options{
		Concurrency: cfg.Concurrency,
		Timeout:     cfg.Timeout,
		Logger:      logger,
	})

	report.NewPrinter(cmd.OutOrStdout(), cmd.ErrOrStderr()).Result(res)
	if !res.OK() {
		return &exitError{code: ExitFailure}
	}
	return nil
}

// toolFlagKinds reports, for every declared flag, whether it is boolean.
func toolFlagKinds(flags *pflag.FlagSet) map[string]bool {
	kinds := make(map[string]bool)
	flags.VisitAll(func(f *pflag.Flag) {
		kinds[f.Name] = f.Value.Type() == "bool"
	})
	return kinds
}

func loadConfig(flags *pflag.FlagSet) (*config.Config, error) {
	v := viper.New()
	cfgFile, _ := flags.GetString("config")
	if err := config.Init(v, cfgFile); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	for name, key := range configKeys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return nil, err
		}
	}
	return config.Load(v)
}
