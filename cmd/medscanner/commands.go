package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"MedScanner/internal/app"
	"MedScanner/internal/config"
	"MedScanner/internal/domain"
	"MedScanner/internal/logging"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "medscanner",
		Short:         "Collect, filter and classify medical AI news and papers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the YAML config (defaults to $"+config.PathEnv+")")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newScheduleCommand(opts))
	cmd.AddCommand(newValidateCommand(opts))
	return cmd
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute one ingestion run and print its summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, _, err := bootstrap(ctx, opts)
			if err != nil {
				return err
			}
			defer application.Close()

			summary, err := application.Run(ctx)
			printSummary(cmd.OutOrStdout(), summary)
			return err
		},
	}
}

func newScheduleCommand(opts *rootOptions) *cobra.Command {
	var runOnStart bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run on the configured cron expression until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, logger, err := bootstrap(ctx, opts)
			if err != nil {
				return err
			}
			defer application.Close()

			err = application.Schedule(ctx, runOnStart)
			logger.Info("scheduler stopped")
			return err
		},
	}
	cmd.Flags().BoolVar(&runOnStart, "run-now", false, "trigger one run immediately after start")
	return cmd
}

func newValidateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load and validate the configuration without running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration ok: %d sources, sink %s\n", len(cfg.Sources), cfg.Sink.Kind)
			return nil
		},
	}
}

func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func bootstrap(ctx context.Context, opts *rootOptions) (*app.Application, *slog.Logger, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return application, logger, nil
}

func printSummary(w io.Writer, summary domain.RunSummary) {
	if summary.RunID == "" {
		return
	}
	fmt.Fprintf(w, "run %s (%s)\n", summary.RunID, summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tFETCHED\tINVALID\tDEDUPED\tGATED\tCLASS_FAIL\tPERSISTED\tOFF_TAXONOMY\tSINK_FAIL\tERROR")
	rows := make([]domain.SourceStats, 0, len(summary.Sources)+1)
	rows = append(rows, summary.Sources...)
	for _, st := range append(rows, summary.Totals()) {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%s\n",
			st.Source, st.Fetched, st.Invalid, st.Deduped, st.GatedOut,
			st.ClassificationFailed, st.Persisted, st.OffTaxonomy, st.SinkFailed, st.FetchError)
	}
	_ = tw.Flush()
}
