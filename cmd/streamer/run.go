package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/coin-stream/internal/board"
	"github.com/rickgao/coin-stream/internal/config"
	"github.com/rickgao/coin-stream/internal/connection"
	"github.com/rickgao/coin-stream/internal/logging"
	"github.com/rickgao/coin-stream/internal/version"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	var (
		markets []string
		focus   string
		iv      string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Stream tickers and the focused market, serving a debug API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadAndValidate(flags.configPath)
			if err != nil {
				return err
			}
			if len(markets) > 0 {
				cfg.Markets = markets
			}
			if cmd.Flags().Changed("focus") {
				cfg.Focus.Market = focus
			}
			if cmd.Flags().Changed("interval") {
				cfg.Focus.Interval = iv
			}
			return run(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringSliceVar(&markets, "markets", nil, "ticker markets, overrides config")
	cmd.Flags().StringVar(&focus, "focus", "", "focused market, overrides config")
	cmd.Flags().StringVar(&iv, "interval", "", "candle interval of the focused market")
	return cmd
}

func run(parent context.Context, cfg *config.StreamerConfig) error {
	logger, closer, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	logger.Info("starting streamer",
		"version", version.Version,
		"commit", version.Commit,
		"url", cfg.Stream.URL,
		"markets", len(cfg.Markets),
	)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn := connection.New(cfg.Connection(),
		connection.WithLogger(logger),
		connection.WithOnConnect(func() {
			logger.Info("stream connected")
		}),
		connection.WithOnError(func(err error) {
			logger.Warn("broker error", "error", err)
		}),
	)
	defer conn.Close()

	b := board.New(conn, cfg.Board(), logger)
	b.WatchTickers(cfg.Markets)
	if cfg.Focus.Market != "" {
		b.Focus(cfg.Focus.Market, cfg.Focus.Interval)
	}
	conn.Connect()

	g, gctx := errgroup.WithContext(ctx)

	if !cfg.HTTP.Disabled {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
			Handler:           createDebugHandler(conn, b, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("starting debug server", "port", cfg.HTTP.Port)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("debug server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")
		conn.Disconnect()
		return nil
	})

	err = g.Wait()
	logger.Info("streamer stopped", "stats", conn.RouterStats())
	return err
}

func newLogger(cfg *config.StreamerConfig) (*slog.Logger, io.Closer, error) {
	l := cfg.Logging
	return logging.New(logging.Options{
		Level:      l.Level,
		Format:     l.Format,
		File:       l.File,
		MaxSizeMB:  l.MaxSizeMB,
		MaxBackups: l.MaxBackups,
		MaxAgeDays: l.MaxAgeDays,
	})
}

// stderrLogger is used by the short-lived commands so stdout stays clean.
func stderrLogger(cfg *config.StreamerConfig) *slog.Logger {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	logger, err := logging.NewWithWriter(os.Stderr, cfg.Logging.Format, level)
	if err != nil {
		return slog.Default()
	}
	return logger
}
