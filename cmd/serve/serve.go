package serve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/openvote/voteapi/internal/abuse"
	apiv1 "github.com/openvote/voteapi/internal/api/v1"
	"github.com/openvote/voteapi/internal/conf"
	"github.com/openvote/voteapi/internal/datastore"
	"github.com/openvote/voteapi/internal/datasync"
	"github.com/openvote/voteapi/internal/elo"
	"github.com/openvote/voteapi/internal/identity"
	"github.com/openvote/voteapi/internal/logging"
	"github.com/openvote/voteapi/internal/results"
	"github.com/openvote/voteapi/internal/voting"
)

// Command creates the serve subcommand, which runs the HTTP API server.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the voting API server",
		Long:  "Start the HTTP server exposing vote submission, results and admin endpoints.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().StringVar(&settings.WebServer.Port, "port", viper.GetString("webserver.port"), "Port to listen on")
	cmd.Flags().BoolVar(&settings.Telemetry.Enabled, "telemetry", viper.GetBool("telemetry.enabled"), "Enable Prometheus metrics endpoint")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

// runServer wires the datastore, services and HTTP layer together and
// blocks until the process receives an interrupt.
func runServer(settings *conf.Settings) error {
	logging.Init(settings)
	logger := logging.ForService("server")

	store := datastore.New(settings)
	if err := store.Open(); err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	var oracle abuse.Oracle
	if settings.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		redisOracle, err := abuse.NewRedisOracle(ctx, settings)
		cancel()
		if err != nil {
			// The oracle fails open: a missing Redis degrades abuse
			// detection, it does not take the service down.
			logger.Warn("redis unavailable, abuse detection disabled", "error", err)
			oracle = &abuse.Noop{}
		} else {
			oracle = redisOracle
			defer redisOracle.Close()
		}
	} else {
		oracle = &abuse.Noop{}
	}

	hasher := identity.NewHasher(settings.Security.IPPepper)
	engine := elo.NewEngine(settings.Voting.EloKFactor, settings.Voting.EloInitialRating)
	votes := voting.NewService(store, oracle, hasher, engine)
	aggregator := results.NewAggregator(store)
	sync := datasync.New(store, settings.Data.Dir)

	if settings.Data.Dir != "" {
		if summary, err := sync.SyncAll(); err != nil {
			logger.Warn("startup data sync failed", "error", err)
		} else {
			logger.Info("startup data sync complete",
				"categories_created", summary.CategoriesCreated,
				"categories_updated", summary.CategoriesUpdated,
				"items_created", summary.ItemsCreated,
				"items_updated", summary.ItemsUpdated,
				"errors", len(summary.Errors))
		}
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	if settings.WebServer.Debug {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType, "X-Admin-Token"},
	}))

	apiv1.New(e, store, settings, votes, aggregator, sync, hasher)

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + settings.WebServer.Port
		logger.Info("starting server", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}
