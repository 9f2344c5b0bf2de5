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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/roblox669900-cpu/giveaway-bot/docs"
	"github.com/roblox669900-cpu/giveaway-bot/internal/common/config"
	"github.com/roblox669900-cpu/giveaway-bot/internal/common/logger"
	"github.com/roblox669900-cpu/giveaway-bot/internal/common/middleware"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/engagement"
	giveawayhttp "github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/delivery/http"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/repository"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/repository/store"
	"github.com/roblox669900-cpu/giveaway-bot/internal/features/giveaway/service"
	"github.com/roblox669900-cpu/giveaway-bot/internal/metrics"
	"github.com/roblox669900-cpu/giveaway-bot/internal/platform/discord"
	"github.com/roblox669900-cpu/giveaway-bot/internal/workers"
)

// @title           Giveaway Bot API
// @version         1.0
// @description     Read-only view of active and resolved Discord giveaways.

// @BasePath  /api/v1

// @tag.name giveaways
// @tag.description Active and archived giveaways

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.ServiceName, cfg.Debug)
	logger.Info().Bool("debug", cfg.Debug).Str("store", cfg.Store.Backend).Msg("Starting giveaway bot")

	if err := run(cfg); err != nil {
		logger.Fatal().Err(err).Msg("Giveaway bot failed")
	}
	logger.Info().Msg("Giveaway bot exited")
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, rdb, err := store.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close store")
		}
	}()
	logger.Info().Str("backend", cfg.Store.Backend).Msg("Store opened")

	trackers := engagement.NewRegistry()

	bot, err := discord.New(cfg, trackers)
	if err != nil {
		return err
	}

	opts := []service.Option{
		service.WithEntryEmoji(cfg.Discord.EntryEmoji),
		service.WithRefreshInterval(cfg.Giveaway.RefreshInterval),
		service.WithResolveRetries(cfg.Giveaway.ResolveRetries),
		service.WithMaxConcurrentResolutions(cfg.Giveaway.MaxConcurrentResolutions),
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	publisherDone := make(chan struct{})
	if rdb != nil && cfg.Redis.OutcomeStream != "" {
		publisher := workers.NewOutcomePublisher(rdb.Client, cfg.Redis.OutcomeStream, logger.Component("outcome_stream"))
		opts = append(opts, service.WithOutcomeHook(publisher.Publish))
		go func() {
			publisher.Start(workerCtx)
			close(publisherDone)
		}()
	} else {
		close(publisherDone)
	}

	engine := service.NewEngine(repo, bot.Chat(), trackers, opts...)
	bot.Attach(engine)

	pruner, err := workers.NewArchivePruner(repo, cfg.Giveaway.PruneSchedule, cfg.Giveaway.ArchiveRetention, logger.Component("archive_pruner"))
	if err != nil {
		return err
	}

	if err := bot.Open(ctx); err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		bot.Close(closeCtx)
	}()

	resumed, err := engine.Resume(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to resume giveaways")
	} else {
		logger.Info().Int("giveaways", resumed).Msg("Giveaways resumed")
	}

	pruner.Start()

	var server *http.Server
	if cfg.Server.Enabled {
		server = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:      newRouter(cfg, engine, repo),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			logger.Info().Int("port", cfg.Server.Port).Msg("Starting HTTP server")
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("HTTP server failed")
				stop()
			}
		}()
	}

	<-ctx.Done()
	logger.Info().Msg("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP server forced to shutdown")
		}
	}
	pruner.Stop(shutdownCtx)
	if err := engine.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Giveaway engine did not stop in time")
	}
	stopWorkers()
	<-publisherDone
	return nil
}

func newRouter(cfg *config.Config, engine *service.Engine, repo repository.GiveawayRepository) *gin.Engine {
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	httpLog := logger.Component("http")

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(httpLog))
	router.Use(middleware.ErrorHandler(httpLog))

	corsConfig := cors.DefaultConfig()
	if cfg.Server.Origin == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = []string{cfg.Server.Origin}
	}
	corsConfig.AllowMethods = []string{"GET", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Accept", "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	giveawayhttp.RegisterProbes(router, cfg.ServiceName, repo.Ping)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	docs.SwaggerInfo.BasePath = "/api/v1"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	v1 := router.Group("/api/v1")
	giveawayhttp.NewGiveawayHandler(engine, httpLog).RegisterRoutes(v1)

	return router
}
