package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nickborgers/monorepo/scholar-citations/internal/browser"
	"github.com/nickborgers/monorepo/scholar-citations/internal/config"
	"github.com/nickborgers/monorepo/scholar-citations/internal/job"
	"github.com/nickborgers/monorepo/scholar-citations/internal/metrics"
	"github.com/nickborgers/monorepo/scholar-citations/internal/outputs"
)

const version = "1.0.0"

// Process exit codes
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// controllerFactory builds the browser controller once configuration is known
type controllerFactory func(cfg *config.BrowserConfig) (browser.Controller, error)

// usageError marks errors caused by how the command was invoked
type usageError struct {
	err error
}

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, browser.NewController)
	stop()
	os.Exit(code)
}

// run executes the command and maps its outcome to an exit code
func run(ctx context.Context, args []string, stdout, stderr io.Writer, newController controllerFactory) int {
	cmd := newRootCmd(newController)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitCode(err)
}

func exitCode(err error) int {
	var usage usageError
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, config.ErrMissingProfileURL), errors.As(err, &usage):
		return exitUsage
	default:
		return exitFailure
	}
}

func newRootCmd(newController controllerFactory) *cobra.Command {
	var configFile, outputPath string

	cmd := &cobra.Command{
		Use:   "scholar-citations [profile-url]",
		Short: "Capture a Google Scholar citation snapshot to a JSON file.",
		Long: `scholar-citations renders a Google Scholar profile in headless Chrome, extracts the
display name, citation count, h-index and i10-index, and writes them to a JSON file.

The profile URL is read from $PROFILE_URL, or from the first argument when the
variable is unset.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.MaximumNArgs(1)(cmd, args); err != nil {
				return usageError{err}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			config.LoadDotEnv()

			// Resolved before anything touches the network
			url, err := config.ResolveProfileURL(args)
			if err != nil {
				return err
			}

			cfg, err := loadConfig(configFile, outputPath)
			if err != nil {
				return err
			}

			return capture(cmd.Context(), cmd.OutOrStdout(), cfg, url, newController)
		},
	}

	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "YAML config file (default $CONFIG_FILE)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "snapshot file path (default $OUTPUT_PATH or "+config.DefaultOutputPath+")")

	return cmd
}

// capture wires the outputs and runs a single fetch
func capture(ctx context.Context, stdout io.Writer, cfg *config.Config, url string, newController controllerFactory) error {
	logger, err := outputs.NewLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	slog.SetDefault(logger.Slog())
	slog.Debug("Starting scholar-citations", "version", version, "output", cfg.General.OutputPath)

	browserCtrl, err := newController(&cfg.Browser)
	if err != nil {
		return fmt.Errorf("failed to create browser controller: %w", err)
	}

	dispatcher := metrics.NewDispatcher()
	dispatcher.RegisterOutput(logger)
	registerOptionalOutputs(ctx, dispatcher, cfg)

	fetchJob := job.New(browserCtrl, outputs.NewFileWriter(cfg.General.OutputPath), dispatcher)
	if _, err := fetchJob.Run(ctx, url); err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Wrote %s\n", cfg.General.OutputPath)
	return nil
}

// registerOptionalOutputs adds every enabled sink. A sink that cannot be set up
// is skipped so it never costs the snapshot itself.
func registerOptionalOutputs(ctx context.Context, dispatcher *metrics.Dispatcher, cfg *config.Config) {
	esOutput, err := outputs.NewElasticsearchOutput(ctx, &cfg.Elasticsearch)
	if err != nil {
		slog.Warn("Elasticsearch output disabled", "error", err)
	} else if esOutput != nil {
		dispatcher.RegisterOutput(esOutput)
	}

	promOutput, err := outputs.NewPrometheusOutput(&cfg.Prometheus)
	if err != nil {
		slog.Warn("Prometheus output disabled", "error", err)
	} else if promOutput != nil {
		dispatcher.RegisterOutput(promOutput)
	}

	snmpOutput, err := outputs.NewSNMPOutput(&cfg.SNMP)
	if err != nil {
		slog.Warn("SNMP output disabled", "error", err)
	} else if snmpOutput != nil {
		dispatcher.RegisterOutput(snmpOutput)
	}

	slog.Debug("Outputs registered", "outputs", dispatcher.Outputs())
}

func loadConfig(configFlag, outputFlag string) (*config.Config, error) {
	// Flag wins over env var for the config file location
	configFile := configFlag
	if configFile == "" {
		configFile = os.Getenv("CONFIG_FILE")
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Override with environment variables
	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if outputFlag != "" {
		cfg.General.OutputPath = outputFlag
	}

	return cfg, nil
}
