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

	"comanda/internal/api"
	"comanda/internal/config"
	"comanda/internal/database"
	"comanda/internal/kitchen"
	"comanda/internal/metrics"
	"comanda/internal/orders"
	"comanda/internal/stock"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

var (
	port        = flag.Int("port", 0, "API server port (overrides config)")
	metricsPort = flag.Int("metrics-port", 0, "Metrics server port (overrides config)")
	configFile  = flag.String("config", "", "Path to configuration file")
	seed        = flag.Bool("seed", false, "Load the demo dataset and exit")
)

func main() {
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to load configuration")
		}
		cfg = loaded
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *metricsPort != 0 {
		cfg.Server.MetricsPort = *metricsPort
	}
	if level, err := zerolog.ParseLevel(cfg.Logging.Level); err == nil && cfg.Logging.Level != "" {
		logger = logger.Level(level)
	}

	db, err := database.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate schema")
	}

	if *seed {
		if err := database.Seed(db); err != nil {
			logger.Fatal().Err(err).Msg("failed to seed demo data")
		}
		logger.Info().Msg("demo data loaded")
		return
	}

	m := metrics.New()
	feed := api.NewFeed(logger)

	stockSvc := stock.NewService(db, logger, m)
	ordersSvc := orders.NewService(db, stockSvc, logger, m)
	kitchenSvc := kitchen.NewService(db, logger, m)
	kitchenSvc.AttachFeed(feed)
	if cfg.Kitchen.SyncEnabled {
		ordersSvc.AttachKitchen(kitchenSvc)
		kitchenSvc.AttachOrders(ordersSvc)
	}

	server := api.NewServer(db, ordersSvc, kitchenSvc, stockSvc, feed, logger, cfg.Auth.JWTSecret)

	go startMetricsServer(cfg.Server.MetricsPort, m, logger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: server.Router(),
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("API server shutdown error")
		}
	}()

	logger.Info().Int("port", cfg.Server.Port).Msg("starting API server")
	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("API server error")
	}
}

func startMetricsServer(port int, m *metrics.Metrics, logger zerolog.Logger) {
	metricsRouter := gin.Default()
	metricsRouter.GET("/metrics", gin.WrapH(m.Handler()))

	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: metricsRouter,
	}

	logger.Info().Int("port", port).Msg("starting metrics server")
	if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
