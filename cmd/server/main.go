// Command server runs the progression HTTP service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/koodecode/progression/internal/api"
	"github.com/koodecode/progression/internal/cache"
	"github.com/koodecode/progression/internal/config"
	"github.com/koodecode/progression/internal/repository"
	"github.com/koodecode/progression/internal/service/badges"
	"github.com/koodecode/progression/internal/service/leaderboard"
	"github.com/koodecode/progression/internal/service/ledger"
	"github.com/koodecode/progression/internal/service/scheduler"
	"github.com/koodecode/progression/internal/service/stats"
	"github.com/koodecode/progression/internal/service/store"
	"github.com/koodecode/progression/pkg/logger"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	log := logger.Get()

	log.Info().
		Str("environment", cfg.Server.Environment).
		Int("port", cfg.Server.Port).
		Msg("Starting progression service")

	db, err := repository.NewDB(&cfg.Database.Postgres, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Migrate(log); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	redisCache, err := cache.NewRedisCache(&cfg.Database.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer redisCache.Close()

	// Repositories
	profileRepo := repository.NewProfileRepository(db)
	badgeRepo := repository.NewBadgeRepository(db)
	storeRepo := repository.NewStoreRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)

	// Services
	badgeService := badges.NewService(badgeRepo, profileRepo, log)
	ledgerService := ledger.NewService(ledgerRepo, log)
	statsService := stats.NewService(profileRepo, badgeService, ledgerService, cfg.Rewards, log)
	storeService := store.NewService(storeRepo, profileRepo, ledgerService, log)
	leaderboardService := leaderboard.NewService(profileRepo, badgeRepo, redisCache, log)

	if cfg.Badges.CatalogPath != "" {
		seed, err := badges.LoadCatalogFile(cfg.Badges.CatalogPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Badges.CatalogPath).Msg("Failed to load badge catalog")
		}
		if err := badgeService.SyncCatalog(seed); err != nil {
			log.Fatal().Err(err).Msg("Failed to sync badge catalog")
		}
		log.Info().Int("badges", len(seed)).Msg("Badge catalog synced")
	}

	schedulerService := scheduler.NewService(cfg.Scheduler, profileRepo, badgeService, leaderboardService, ledgerRepo, log)
	if err := schedulerService.Start(); err != nil {
		log.Fatal().Err(err).Msg("Failed to start scheduler")
	}
	defer schedulerService.Stop()

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		if err := db.Health(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	handler := api.NewHandler(statsService, badgeService, storeService, ledgerService, leaderboardService, log)
	handler.RegisterRoutes(router)

	if cfg.Metrics.Prometheus.Enabled {
		go serveMetrics(cfg.Metrics.Prometheus, log)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown")
	}
}

// serveMetrics exposes the Prometheus registry on its own port.
func serveMetrics(cfg config.PrometheusConfig, log *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Info().Str("addr", addr).Str("path", cfg.Path).Msg("Metrics server listening")

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}
