// Command webqa captures visual baselines, diffs pages against them, and runs
// cross-browser smoke tests.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"webqa/internal/browser"
	"webqa/internal/config"
	"webqa/internal/logging"
)

// Exit codes.
const (
	exitPass        = 0
	exitFail        = 1
	exitConfigError = 2
)

// app holds the state shared by all commands of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer

	// Global flags
	configPath string
	verbose    bool
	headless   bool
	noHeadless bool
	workers    int
	timeout    time.Duration
	driver     string
	strict     bool

	cfg      *config.Config
	logger   *zap.Logger
	exitCode int

	// newLauncher builds the browser launcher; tests replace it.
	newLauncher func(cfg *config.Config, logger *zap.Logger) (browser.Launcher, func(context.Context) error, error)
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:      stdout,
		stderr:      stderr,
		newLauncher: managerLauncher,
	}
}

// managerLauncher routes engines to the configured driver.
func managerLauncher(cfg *config.Config, logger *zap.Logger) (browser.Launcher, func(context.Context) error, error) {
	mgr, err := browser.NewManager(cfg.Browser.Driver, logging.For(logger, logging.CategoryBrowser))
	if err != nil {
		return nil, nil, config.Errorf("browser.driver: %v", err)
	}
	return mgr, mgr.Shutdown, nil
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "webqa",
		Short: "Visual regression and cross-browser smoke testing for web apps",
		Long: `webqa drives real browsers against a running web application.

  webqa baseline   capture reference screenshots per viewport
  webqa compare    re-capture and diff against the baselines
  webqa matrix     run the load / interaction / console smoke test per browser

Exit status is 0 when every target passed, 1 when any target failed or
errored, and 2 for configuration errors.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{msg: err.Error()}
	})

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "webqa.yaml", "Config file")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	flags.BoolVar(&a.headless, "headless", true, "Run browsers headless")
	flags.BoolVar(&a.noHeadless, "no-headless", false, "Show browser windows")
	flags.IntVar(&a.workers, "workers", 0, "Targets processed concurrently (default from config, 1)")
	flags.DurationVar(&a.timeout, "timeout", 0, "Navigation timeout (default from config, 30s)")
	flags.StringVar(&a.driver, "driver", "", "Browser driver: auto, rod, playwright")
	flags.BoolVar(&a.strict, "strict", false, "Treat warnings as failures")

	root.AddCommand(a.baselineCmd(), a.compareCmd(), a.matrixCmd())
	return root
}

// setup loads the config file, applies flag overrides and builds the logger.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return &config.Error{Err: err}
	}

	flags := cmd.Flags()
	if flags.Changed("headless") {
		cfg.Browser.Headless = a.headless
	}
	if a.noHeadless {
		cfg.Browser.Headless = false
	}
	if flags.Changed("workers") {
		cfg.Run.Workers = a.workers
	}
	if flags.Changed("timeout") {
		cfg.Capture.NavigationTimeout = a.timeout.String()
	}
	if a.driver != "" {
		cfg.Browser.Driver = a.driver
	}
	if a.strict {
		cfg.Run.FailOnWarn = true
	}
	if a.verbose {
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return config.Errorf("logging: %v", err)
	}
	a.cfg = cfg
	a.logger = logger
	logging.For(logger, logging.CategoryBoot).Debug("configuration loaded",
		zap.String("path", a.configPath),
		zap.String("driver", cfg.Browser.Driver),
		zap.Bool("headless", cfg.Browser.Headless),
		zap.Int("workers", cfg.GetWorkers()))
	return nil
}

// signalContext cancels on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// execute runs the CLI and returns the process exit status.
func (a *app) execute(args []string) int {
	root := a.rootCmd()
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(a.stderr, "Error:", err)
		if config.IsConfigError(err) || isUsageError(err) {
			return exitConfigError
		}
		return exitFail
	}
	return a.exitCode
}

// usageError marks a bad flag combination.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

// isUsageError also recognises cobra's missing required flag error, which
// has no type of its own.
func isUsageError(err error) bool {
	var ue *usageError
	return errors.As(err, &ue) || strings.HasPrefix(err.Error(), "required flag")
}

func main() {
	os.Exit(newApp(os.Stdout, os.Stderr).execute(os.Args[1:]))
}
