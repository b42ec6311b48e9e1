package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/grid-frequency-etl/internal/adapter/fingrid"
	httpadapter "github.com/couchcryptid/grid-frequency-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/grid-frequency-etl/internal/adapter/kafka"
	"github.com/couchcryptid/grid-frequency-etl/internal/config"
	"github.com/couchcryptid/grid-frequency-etl/internal/extract"
	"github.com/couchcryptid/grid-frequency-etl/internal/fetch"
	"github.com/couchcryptid/grid-frequency-etl/internal/observability"
	"github.com/couchcryptid/grid-frequency-etl/internal/pipeline"
	"github.com/couchcryptid/grid-frequency-etl/internal/report"
	"github.com/couchcryptid/grid-frequency-etl/internal/threshold"
	"github.com/couchcryptid/grid-frequency-etl/internal/weekly"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gridfreq",
		Short:         "builds weekly grid frequency series and minutes outside the nominal band",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd.Context(), "")
		},
	}

	root.AddCommand(&cobra.Command{
		Use:          "run",
		Short:        "runs every stage in order",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return execute(cmd.Context(), "")
		},
	})

	short := map[string]string{
		pipeline.StageFetch:     "downloads monthly archives",
		pipeline.StageExtract:   "extracts daily CSV files from downloaded archives",
		pipeline.StageAggregate: "builds complete one-second weekly series",
		pipeline.StageCount:     "counts minutes outside the nominal band per week",
		pipeline.StageReport:    "renders the cumulative minutes chart and workbook",
	}
	for _, stage := range pipeline.Stages {
		root.AddCommand(&cobra.Command{
			Use:          stage,
			Short:        short[stage],
			SilenceUsage: true,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return execute(cmd.Context(), stage)
			},
		})
	}
	return root
}

// execute runs one stage, or the whole pipeline when stage is empty.
func execute(parent context.Context, stage string) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		return err
	}

	runID := uuid.NewString()
	logger := observability.NewLogger(cfg).With("run_id", runID)
	metrics := observability.NewMetrics()

	client := fingrid.NewClient(cfg.FetchTimeout, metrics, logger)
	fetcher := fetch.New(client, cfg.RawDir, cfg.FetchBaseURL, cfg.FetchURLTemplates, logger, metrics)
	extractor := extract.New(cfg.RawDir, cfg.ExtractedDir, logger, metrics)
	aggregator := weekly.New(cfg.ExtractedDir, cfg.WeeklyDir, cfg.Localizer(), logger, metrics)

	var counterOpts []threshold.Option
	var writer *kafkaadapter.Writer
	if len(cfg.KafkaBrokers) > 0 {
		writer = kafkaadapter.NewWriter(cfg, runID, logger)
		counterOpts = append(counterOpts, threshold.WithPublisher(writer))
		logger.Info("summary publishing enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaSummaryTopic)
	}
	counter := threshold.New(cfg.WeeklyDir, cfg.SummaryPath, cfg.Band, logger, metrics, counterOpts...)
	reporter := report.New(cfg.SummaryPath, cfg.ChartPath, cfg.WorkbookPath, logger)

	p := pipeline.New(fetcher, extractor, aggregator, counter, reporter, cfg.FetchFrom, cfg.FetchTo, logger, metrics)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srv *httpadapter.Server
	if cfg.HTTPAddr != "" {
		srv = httpadapter.NewServer(cfg.HTTPAddr, p, prometheus.DefaultGatherer, logger)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
	}

	if stage == "" {
		err = p.Run(ctx)
	} else {
		err = p.RunStage(ctx, stage)
	}
	if err != nil {
		logger.Error("pipeline error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := observability.WriteTextfile(cfg.MetricsTextfile); err != nil {
		logger.Error("metrics textfile write error", "error", err)
	}

	logger.Info("shutdown complete")
	return err
}
