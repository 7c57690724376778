package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/fmc-connections/internal/config"
	"github.com/telhawk-systems/fmc-connections/internal/extractor"
	"github.com/telhawk-systems/fmc-connections/internal/fmc"
	"github.com/telhawk-systems/fmc-connections/internal/logging"
	"github.com/telhawk-systems/fmc-connections/pkg/output"
)

// envFile is loaded from the working directory when present.
const envFile = ".env"

// NewRootCmd builds the fmcconn command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "fmcconn",
		Short: "Export FMC connection events to CSV",
		Long: `fmcconn authenticates against a Firepower Management Center, retrieves
the connection events of the last hours and writes them to a CSV file
with the columns Protocol, SRC-INT, SRC_IP, SRC-PORT, DST-INT, DST_IP,
DST-PORT and FLAGS.

Every flag can also be set through FMC_<FLAG> environment variables
(for example FMC_PASSWORD, FMC_LOG_LEVEL or FMC_CONFIG), a .env file in
the working directory, or a YAML file given with --config.

With --summary-format json or yaml, stdout carries only the summary
document; progress messages go to stderr.`,
		Example: `  fmcconn --host 10.1.1.10 --username api --password secret
  fmcconn --host fmc.lab --username api --hours 24 --limit 5000 --output today.csv
  FMC_PASSWORD=secret fmcconn --config fmcconn.yaml --summary-format json`,
		Version:       "0.1.0",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, cfgFile)
		},
	}

	d := config.Default()
	flags := cmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "YAML config file")
	flags.String("host", d.Host, "FMC host name or IP address (required)")
	flags.Int("port", d.Port, "FMC HTTPS port")
	flags.String("username", d.Username, "API username (required)")
	flags.String("password", d.Password, "API password (required)")
	flags.Int("hours", d.Hours, "hours of history to retrieve")
	flags.Int("limit", d.Limit, "maximum number of events to retrieve")
	flags.StringP("output", "o", d.Output, "CSV output path (default connection_events_<host>_<timestamp>.csv)")
	flags.String("fallback", d.Fallback, "when no events are retrieved: none or sample")
	flags.String("summary-format", d.SummaryFormat, "summary format: text, json, yaml")
	flags.String("metrics-file", d.MetricsFile, "write run metrics to this Prometheus textfile")
	flags.String("log-level", d.LogLevel, "log level: debug, info, warn, error")
	flags.String("log-format", d.LogFormat, "log format: text, json")
	flags.Bool("no-color", d.NoColor, "disable colored output")

	return cmd
}

// Execute runs the root command until completion or SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		output.Error("%v", err)
		return err
	}
	return nil
}

func run(cmd *cobra.Command, cfgFile string) error {
	cfg, err := config.Load(cmd.Flags(), cfgFile, envFile)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.NoColor {
		defer func(prev bool) { color.NoColor = prev }(color.NoColor)
		color.NoColor = true
	}

	logger := logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())
	printer := output.New(cmd.OutOrStdout(), cmd.ErrOrStderr())
	// Progress moves to stderr so a json or yaml summary owns stdout.
	progress := printer
	if cfg.SummaryFormat != "text" {
		progress = output.New(cmd.ErrOrStderr(), cmd.ErrOrStderr())
	}

	creds := cfg.Credentials()
	client := fmc.NewClient(creds.BaseURL(), fmc.WithLogger(logger))
	ex := extractor.New(client,
		extractor.WithPrinter(progress),
		extractor.WithLogger(logger),
	)

	summary, runErr := ex.Run(cmd.Context(), extractor.Options{
		Credentials: creds,
		HoursBack:   cfg.Hours,
		Limit:       cfg.Limit,
		Output:      cfg.Output,
		Fallback:    cfg.FallbackPolicy(),
	})

	if cfg.MetricsFile != "" {
		if err := ex.Metrics().WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Warn("failed to write metrics textfile", logging.Path(cfg.MetricsFile), logging.Error(err))
			progress.Warn("Metrics not written: %v", err)
		}
	}

	if runErr != nil {
		return runErr
	}
	return summary.Render(printer, cfg.SummaryFormat)
}
