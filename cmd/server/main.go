package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/config"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/http/api/tv"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/logging"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/ordering"
	"github.com/Nixie-Tech-LLC/medusa-scheduler/internal/schedule"
)

const shutdownTimeout = 10 * time.Second

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "medusa-scheduler",
	Short:         "Schedule resolution service for Medusa signage players",
	Long:          "Resolves which schedule slot governs playback, keeps slot and item ordering consistent, and pushes status changes to players.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the background status refresher",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it)
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.Setup(cfg.Environment)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}
	gin.SetMode(logging.GinMode(cfg.Environment))

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	backend, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	hub := tv.NewHub(logger)
	notifier := openNotifier(cfg, hub, logger)
	defer notifier.Close()

	statusCache, closeCache := openStatusCache(cfg, logger)
	defer closeCache()

	repo := schedule.NewRepository(backend.Store, ordering.NewManager(), logger)
	svc := schedule.NewService(repo, backend.Assets, statusCache, notifier, schedule.Options{
		Location: loc,
		Horizon:  cfg.Schedule.Lookahead,
		CacheTTL: cfg.StatusCacheTTL,
	}, logger)
	refresher := schedule.NewRefresher(svc, cfg.StatusRefreshSpec, logger)

	r := gin.New()
	r.Use(gin.Recovery())
	if err := RegisterRoutes(r, cfg, svc, hub, logger); err != nil {
		return fmt.Errorf("register routes: %w", err)
	}
	httpServer := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return refresher.Run(gctx) })
	g.Go(func() error {
		logger.Info().Str("addr", cfg.ServerAddress).Str("timezone", loc.String()).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down gracefully...")

		// Websocket connections are hijacked, so Shutdown does not wait for them.
		hub.Close()
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(timeoutCtx)
	})

	err = g.Wait()
	logger.Info().Msg("medusa-scheduler stopped")
	return err
}
