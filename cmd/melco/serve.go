package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zberg/go-melco/internal/api"
	"github.com/zberg/go-melco/internal/config"
	"github.com/zberg/go-melco/internal/hub"
	"github.com/zberg/go-melco/internal/metrics"
	"github.com/zberg/go-melco/internal/store"
	"github.com/zberg/go-melco/pkg/melco"
)

var configPath string

func init() {
	serveCmd.Flags().StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the polling daemon with its HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		setupLogging(cfg.Log.Level, cfg.Log.JSON, cfg.Log.Colors)
		log.Info().Str("config", configPath).Msg("Starting melco")

		return serve(signalContext(), cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	st, err := store.Open(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	opts := []melco.ClientOption{melco.WithPort(cfg.Controller.Port)}
	if d := cfg.Controller.Timeout.Duration(); d > 0 {
		opts = append(opts, melco.WithRequestTimeout(d))
	}

	h := hub.New(st, hub.MelcoFactory(opts...), hub.CoordinatorOptions{
		Interval: cfg.Poll.Interval.Duration(),
		Partial:  cfg.Poll.Partial,
		Parallel: cfg.Poll.Parallel,
	})
	if err := h.Start(ctx); err != nil {
		return err
	}
	defer h.Stop()

	if host := cfg.Controller.Host; host != "" {
		if _, err := h.Setup(ctx, host); err != nil && !errors.Is(err, hub.ErrAlreadyConfigured) {
			log.Error().Err(err).Str("host", host).Str("reason", hub.SetupReason(err)).Msg("Controller setup failed")
		}
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr(),
		Handler:           api.NewRouter(h, metrics.NewRegistry(h)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout.Duration())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
	log.Info().Msg("Stopped")
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Warn().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	return ctx
}

func setupLogging(level string, useJSON bool, colors bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}
