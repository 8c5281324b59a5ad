package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/spf13/cobra"

	"golemio-extractor/config"
	"golemio-extractor/models"
	"golemio-extractor/scheduler"
	"golemio-extractor/scraper/golemio"
	"golemio-extractor/services"
	"golemio-extractor/storage"
	"golemio-extractor/utils"
)

var interactive bool

var rootCmd = &cobra.Command{
	Use:   "golemio-extractor",
	Short: "Extracts Prague municipal library locations from Golemio into daily CSV/JSON snapshots.",
	Long: "Runs one extraction at startup and then at the configured daily times.\n" +
		"Configuration comes from the environment, an optional .env file and CONFIG_FILE (JSON5).",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return scheduleCmd.RunE(cmd, args)
	},
}

var scheduleCmd = &cobra.Command{
	Use:          "schedule",
	Short:        "Run one extraction now, then at every configured daily time (default).",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(app *app, axes models.Axes) error {
			return app.schedule(cmd.Context(), axes)
		})
	},
}

var runCmd = &cobra.Command{
	Use:          "run",
	Short:        "Run one extraction and exit.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd, func(app *app, axes models.Axes) error {
			return app.runOnce(cmd.Context(), axes)
		})
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&interactive, "interactive", "i", false,
		"prompt for districts, coordinates, range, limit, offset and updated-since before running")
	rootCmd.AddCommand(scheduleCmd, runCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type app struct {
	cfg       *config.Config
	logger    *utils.Logger
	extractor *services.Extractor
	summary   *services.SummaryService
	writers   []storage.SnapshotWriter
}

func withApp(cmd *cobra.Command, fn func(*app, models.Axes) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	a, err := newApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.close()

	axes := cfg.Axes()
	if interactive {
		fmt.Fprintln(cmd.OutOrStdout(), "\n=== GOLEMIO EXTRACTOR ===")
		axes, err = config.PromptAxes(cmd.InOrStdin(), cmd.OutOrStdout())
		if err != nil {
			return err
		}
	}
	return fn(a, axes)
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logOpts := utils.LoggerOptions{Level: cfg.LogLevel, FilePath: cfg.LogFile}
	if cfg.FluentBit.Enabled {
		client, err := fluent.New(fluent.Config{
			FluentHost: cfg.FluentBit.Host,
			FluentPort: cfg.FluentBit.Port,
			TagPrefix:  cfg.AppName,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create fluentd logger: %w", err)
		}
		logOpts.Fluent = client
	}
	logger, err := utils.NewLogger(logOpts)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, summary: services.NewSummaryService(logger)}
	a.writers = []storage.SnapshotWriter{
		storage.NewCSVWriter(cfg.OutputDir, logger),
		storage.NewJSONWriter(cfg.OutputDir, logger),
	}
	if cfg.Postgres.Enabled {
		pg, err := storage.NewPostgresWriter(ctx, cfg.Postgres.DSN, logger)
		if err != nil {
			a.close()
			return nil, err
		}
		a.writers = append(a.writers, pg)
	}

	opts, err := services.OptionsFromConfig(cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	a.extractor = services.NewExtractor(opts, golemio.New(cfg, logger), a.writers, logger)

	logger.Info("=== Golemio Extractor starting ===")
	logger.Info("Config: api=%s | output=%s | tz=%s | districts=%v | limits=%v",
		cfg.APIURL, cfg.OutputDir, cfg.Timezone, cfg.Districts, cfg.Limits)
	return a, nil
}

// runOnce performs one extraction. A run without any data is reported but is
// not an error for the process.
func (a *app) runOnce(ctx context.Context, axes models.Axes) error {
	run, err := a.extractor.Run(ctx, axes)
	if errors.Is(err, services.ErrNoData) {
		a.logger.Error("Extraction %s produced no data; nothing written", run.ID)
		return nil
	}
	if err != nil {
		a.logger.Error("Extraction failed: %v", err)
		return err
	}

	report := a.summary.Generate(run, services.ReferencePoint(axes.LatLngs))
	a.summary.Print(os.Stdout, report)
	return nil
}

func (a *app) schedule(ctx context.Context, axes models.Axes) error {
	loc, err := a.cfg.Location()
	if err != nil {
		return err
	}
	times, err := a.cfg.Schedule()
	if err != nil {
		return err
	}

	// startup run failures are logged inside runOnce; scheduling proceeds
	_ = a.runOnce(ctx, axes)

	s := scheduler.New(loc, a.logger)
	if err := s.AddDaily(times, func() { _ = a.runOnce(ctx, axes) }); err != nil {
		return err
	}
	s.Run(ctx)
	return nil
}

func (a *app) close() {
	for _, w := range a.writers {
		if err := w.Close(); err != nil {
			a.logger.Warn("Failed to close writer: %v", err)
		}
	}
	_ = a.logger.Close()
}
