package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"projectdash/internal/config"
	"projectdash/internal/db"
	"projectdash/internal/handler"
	"projectdash/internal/httpserver"
	"projectdash/internal/redis"
	"projectdash/internal/repository"
	"projectdash/internal/service"
	"projectdash/pkg/logger"
	"projectdash/pkg/outbox"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	log := logger.New()
	defer log.Sync()

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	handler.SetDebug(cfg.Debug)

	log.Info("Starting projectdash server...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("redis_addr", cfg.Redis.Addr),
		zap.String("port", cfg.Server.Port),
	)

	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	rdb := redis.NewClient(cfg.Redis)
	defer rdb.Close()

	txm := repository.NewTxManager(dbConn)
	outboxRepo := outbox.NewRepository(dbConn)

	userRepo := repository.NewUserRepository(dbConn, log)
	projectRepo := repository.NewProjectRepository(dbConn, txm, outboxRepo, log)
	taskRepo := repository.NewTaskRepository(dbConn, txm, outboxRepo, log)

	denylist := service.NewTokenDenylist(rdb)
	authSvc := service.NewAuthService(userRepo, denylist, cfg.JWT.Secret, log)
	projectSvc := service.NewProjectService(projectRepo, userRepo, log)
	taskSvc := service.NewTaskService(taskRepo, projectRepo, userRepo, log)
	userSvc := service.NewUserService(userRepo, log)

	handlers := httpserver.Handlers{
		Auth:     handler.NewAuthHandler(authSvc, log),
		Projects: handler.NewProjectHandler(projectSvc, log),
		Tasks:    handler.NewTaskHandler(taskSvc, log),
		Users:    handler.NewUserHandler(userSvc, log),
	}

	router := httpserver.NewRouter(handlers, authSvc, log, dbConn, rdb)

	srv := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down projectdash server gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		log.Info("HTTP server stopped")
	}

	log.Info("projectdash server shutdown complete")
}
