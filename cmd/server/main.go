package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	apihttp "recwatch/internal/api/http"
	"recwatch/internal/app"
	"recwatch/internal/domain"
	"recwatch/internal/metrics"
	mongorepo "recwatch/internal/repository/mongo"
	"recwatch/internal/store"
	"recwatch/internal/telemetry"
	"recwatch/internal/upstream"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "recwatch")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "recwatch"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("apiBaseUrl", cfg.APIBaseURL),
		slog.Bool("authConfigured", cfg.APIToken != ""),
		slog.Bool("journalEnabled", cfg.MongoURI != ""),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var journal *mongorepo.Journal
	var mongoDisconnect func()
	if cfg.MongoURI != "" {
		ctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
		mongoClient, err := mongorepo.Connect(ctx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
		if err != nil {
			cancel()
			logger.Error("mongo connect failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		if err := mongoClient.Ping(ctx, readpref.Primary()); err != nil {
			cancel()
			logger.Error("mongo ping failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		journal = mongorepo.NewJournal(mongoClient, cfg.MongoDatabase, cfg.MongoCollection)
		if err := journal.EnsureIndexes(ctx); err != nil {
			logger.Warn("mongo ensure indexes failed", slog.String("error", err.Error()))
		}
		cancel()
		mongoDisconnect = func() {
			if err := mongoClient.Disconnect(context.Background()); err != nil {
				logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
			}
		}
	}

	st := store.New()

	// Journal writes run on their own worker so a slow Mongo never stalls
	// the feed read loop.
	var journalWriter *mongorepo.AsyncRecorder
	if journal != nil {
		journalWriter = mongorepo.NewAsyncRecorder(journal, logger, 64)
		go journalWriter.Run(rootCtx)
	}

	var handler *apihttp.Server
	onEvent := func(ev domain.Event) {
		rec, ok := domain.NewEventRecord(ev, time.Now().UTC())
		if !ok {
			return
		}
		if journalWriter != nil {
			journalWriter.Enqueue(rec)
		}
		if handler != nil {
			handler.BroadcastNotice(rec)
		}
	}

	feed := upstream.NewManager(upstream.Config{
		BaseURL:   cfg.APIBaseURL,
		Token:     func() string { return cfg.APIToken },
		Store:     st,
		OnEvent:   onEvent,
		Logger:    logger,
		BaseDelay: time.Duration(cfg.ReconnectBaseMs) * time.Millisecond,
		MaxDelay:  time.Duration(cfg.ReconnectMaxMs) * time.Millisecond,
	})
	if cfg.StreamerFilter != "" {
		if err := feed.SetFilter(cfg.StreamerFilter); err != nil {
			logger.Warn("invalid startup streamer filter", slog.String("error", err.Error()))
		}
	}

	serverOpts := []apihttp.ServerOption{
		apihttp.WithLogger(logger),
		apihttp.WithUpstream(feed),
		apihttp.WithAllowedOrigins(cfg.CORSAllowedOrigins),
	}
	if journal != nil {
		serverOpts = append(serverOpts, apihttp.WithHistory(journal))
	}
	handler = apihttp.NewServer(st, serverOpts...)

	feed.Connect()
	go syncViews(rootCtx, st, handler)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	feed.Disconnect()
	handler.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}
	if mongoDisconnect != nil {
		mongoDisconnect()
	}

	logger.Info("server stopped")
}

// syncViews keeps the Prometheus gauges fresh and pushes the reconciled
// download list to WebSocket clients whenever the store changed since the
// last tick.
func syncViews(ctx context.Context, st *store.Store, handler *apihttp.Server) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastVersion uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			version := st.Version()
			metrics.StoreVersion.Set(float64(version))
			metrics.ActiveDownloads.Set(float64(st.Len()))
			if version == lastVersion {
				continue
			}
			lastVersion = version
			handler.BroadcastViews(st.Views())
		}
	}
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
