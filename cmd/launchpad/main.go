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
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"launchpad-backend/internal/app"
	"launchpad-backend/internal/config"
	"launchpad-backend/internal/router"
	"launchpad-backend/internal/utils"
)

func main() {
	configPath := flag.String("config", "", "path to config yaml (default config.local.yaml, then config.yaml)")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("⚠️ Failed to load .env: %v", err)
	}

	if err := config.LoadConfig(*configPath); err != nil {
		logrus.Fatalf("❌ Failed to load config: %v", err)
	}
	cfg := config.AppConfig

	logger, err := utils.InitLogger(cfg.Logging)
	if err != nil {
		logrus.Fatalf("❌ Failed to init logger: %v", err)
	}
	if logger.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := app.InitializeContainer(ctx, cfg)
	if err != nil {
		logger.Fatalf("❌ Failed to initialize services: %v", err)
	}
	container.Start(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router.SetupRouter(cfg, logger, container.Handlers()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("🚀 Launchpad backend listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("❌ HTTP server error: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("🛑 Received shutdown signal, shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("❌ HTTP server shutdown: %v", err)
	}
	container.Shutdown()
	logger.Info("✅ Shutdown complete")
}
