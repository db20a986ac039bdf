package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dvloznov/securebank/internal/api"
	"github.com/dvloznov/securebank/internal/classifier"
	"github.com/dvloznov/securebank/internal/config"
	"github.com/dvloznov/securebank/internal/export"
	"github.com/dvloznov/securebank/internal/incidents"
	"github.com/dvloznov/securebank/internal/logger"
	"github.com/dvloznov/securebank/internal/screener"
	"github.com/dvloznov/securebank/internal/session"
	"github.com/rs/zerolog"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Parse command-line flags
	var (
		port = flag.String("port", cfg.Port, "HTTP server port")
		seed = flag.Bool("seed", true, "Load demo transactions into each new session")
	)
	flag.Parse()
	cfg.Port = *port

	// Initialize logger
	log := logger.NewWithLevel(cfg.LogLevel)

	app, err := newApp(context.Background(), cfg, *seed, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize server")
	}
	defer app.close()

	// Start server in a goroutine
	go func() {
		log.Info().Str("port", cfg.Port).Bool("classifier", app.classifier.Available()).Msg("Starting API server")
		if err := app.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Abandon any blocked transfer and stop categorization workers
	app.sessions.Shutdown(shutdownCtx)

	log.Info().Msg("Server exited")
}

// app is the wired server and the clients it owns.
type app struct {
	server     *http.Server
	sessions   *session.Manager
	classifier *classifier.Adapter
	closers    []func() error
}

func (a *app) close() {
	for _, c := range a.closers {
		_ = c()
	}
}

// newApp builds every component cfg enables. Optional backends stay off when
// their settings are empty.
func newApp(ctx context.Context, cfg *config.Config, seed bool, log zerolog.Logger) (*app, error) {
	a := &app{}

	scr := screener.New(screener.Config{
		AmountThreshold: cfg.ScreenAmountThreshold,
		Keywords:        cfg.ScreenKeywords,
	})

	// Classifier backend is optional; without it every call falls back.
	var gen classifier.Generator
	if cfg.ClassifierEnabled() {
		g, err := classifier.NewGeminiGenerator(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("newApp: classifier client: %w", err)
		}
		gen = g
	} else {
		log.Warn().Msg("No GEMINI_API_KEY configured - risk checks will use the default verdict")
	}
	a.classifier = classifier.NewAdapter(gen, classifier.Options{
		Timeout:       cfg.ClassifierTimeout,
		HistoryWindow: cfg.HistoryWindow,
		Screener:      scr,
	}, log)

	// Decision sinks
	sinks := incidents.MultiSink{incidents.NewLogSink(log)}
	if cfg.BigQueryEnabled() {
		bq, err := incidents.NewBigQuerySink(ctx, cfg.BQProject, cfg.BQDataset)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("newApp: bigquery sink: %w", err)
		}
		a.closers = append(a.closers, bq.Close)
		sinks = append(sinks, bq)
		log.Info().Str("project", cfg.BQProject).Str("dataset", cfg.BQDataset).Msg("Recording risk decisions to BigQuery")
	}
	if cfg.NotionEnabled() {
		sinks = append(sinks, incidents.NewNotionSink(incidents.NewNotionClient(cfg.NotionToken), cfg.NotionDatabaseID))
		log.Info().Msg("Recording review items to Notion")
	}

	var exporter *export.Exporter
	if cfg.GCSBucket != "" {
		store, err := export.NewGCSObjectStore(ctx)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("newApp: storage client: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		exporter = export.NewExporter(store, cfg.GCSBucket, log)
	} else {
		log.Warn().Msg("No GCS bucket configured - statement export will be disabled")
	}

	a.sessions = session.NewManager(session.Options{
		Username:         cfg.DemoUsername,
		Password:         cfg.DemoPassword,
		TwoFactorEnabled: cfg.TwoFactorEnabled,
		InitialBalance:   cfg.InitialBalance,
		Currency:         cfg.Currency,
		BlockThreshold:   cfg.RiskBlockThreshold,
		HistoryWindow:    cfg.HistoryWindow,
		Workers:          cfg.CategorizeWorkers,
		SeedDemoData:     seed,
	}, session.Deps{
		Classifier: a.classifier,
		Screener:   scr,
		Sink:       sinks,
		Exporter:   exporter,
	}, log)

	// Create HTTP server
	a.server = &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(a.sessions, log),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return a, nil
}
