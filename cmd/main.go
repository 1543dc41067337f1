package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"sitegen-backend/internal/config"
	"sitegen-backend/internal/handler"
	"sitegen-backend/internal/provider"
	"sitegen-backend/internal/service"
	"sitegen-backend/internal/settings"
	"sitegen-backend/internal/storage"
	"sitegen-backend/pkg/logger"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./configs/config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	gin.SetMode(gin.ReleaseMode)

	store := storage.Open(cfg.Storage)
	registry := provider.FromConfig(cfg)
	prefs := settings.Open(cfg.Settings, cfg.Providers.Default)

	generation := service.NewGenerationService(cfg, registry, prefs)
	workspace := service.NewWorkspaceService(cfg, generation, store)
	projects := service.NewProjectService(store)
	proxy := service.NewProxyService(cfg, registry)

	router := handler.NewRouter(cfg, handler.Deps{
		Workspace: workspace,
		Projects:  projects,
		Proxy:     proxy,
		Settings:  prefs,
		Registry:  registry,
	})

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go projects.RunBackups(ctx, cfg.Storage.BackupInterval)

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	go func() {
		logger.Infof("Server listening on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}

	workspace.Close()
	if err := store.Close(); err != nil {
		logger.Errorf("Failed to close storage: %v", err)
	}
	logger.Info("Server stopped")
}
