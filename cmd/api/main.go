package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/safar/localmeat/internal/config"
	"github.com/safar/localmeat/internal/database"
	"github.com/safar/localmeat/internal/loader"
	"github.com/safar/localmeat/internal/notify"
	"github.com/safar/localmeat/internal/store"
	flag "github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	port := flag.String("port", "", "HTTP port (overrides SERVER_PORT)")
	source := flag.String("loader", "", "data source: dir, postgres or seed (overrides LOADER_SOURCE)")
	dataDir := flag.String("data-dir", "", "directory with users, farms and requests resources (overrides LOADER_DIR)")
	logLevel := flag.String("log-level", "", "debug, info, warn or error (overrides LOG_LEVEL)")
	writeSeed := flag.String("write-seed", "", "write the built-in seed data as JSON resources to this directory and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if flag.CommandLine.Changed("port") {
		cfg.Server.Port = *port
	}
	if flag.CommandLine.Changed("loader") {
		cfg.Loader.Source = *source
	}
	if flag.CommandLine.Changed("data-dir") {
		cfg.Loader.Dir = *dataDir
	}
	if flag.CommandLine.Changed("log-level") {
		cfg.Log.Level = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if *writeSeed != "" {
		if err := os.MkdirAll(*writeSeed, 0o755); err != nil {
			return fmt.Errorf("create seed directory: %w", err)
		}
		if err := loader.WriteJSON(*writeSeed, loader.Seed(time.Now())); err != nil {
			return fmt.Errorf("write seed data: %w", err)
		}
		logger.Info("seed data written", "dir", *writeSeed)
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, closeSource, err := openSource(ctx, cfg)
	if err != nil {
		// The marketplace still starts on seed data.
		logger.Warn("data source unavailable", "source", cfg.Loader.Source, "error", err)
	}
	market := store.Open(ctx, src,
		store.WithLogger(logger),
		store.WithNotifier(notify.NewLogger(logger)),
	)
	closeSource()

	market.Subscribe(func(e store.Event) {
		logger.Debug("event", "kind", e.Kind)
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      newServer(market, logger).routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// openSource returns the configured loader source and a func releasing it.
// A nil source makes the marketplace use the seed data.
func openSource(ctx context.Context, cfg *config.Config) (loader.Source, func(), error) {
	noop := func() {}

	switch cfg.Loader.Source {
	case config.LoaderDir:
		return loader.DirSource{Dir: cfg.Loader.Dir}, noop, nil
	case config.LoaderPostgres:
		db, err := database.NewConnection(ctx, &cfg.Database)
		if err != nil {
			return nil, noop, err
		}
		return loader.PostgresSource{DB: db}, func() {
			if err := db.Close(); err != nil {
				slog.Warn("close database", "error", err)
			}
		}, nil
	default:
		return nil, noop, nil
	}
}

func newLogger(cfg config.LogConfig) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler), nil
}
