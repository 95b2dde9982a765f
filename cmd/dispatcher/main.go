package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"projectdash/internal/config"
	"projectdash/internal/db"
	"projectdash/pkg/logger"
	"projectdash/pkg/mq"
	"projectdash/pkg/outbox"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	interval := flag.Duration("interval", time.Second, "outbox scan interval")
	flag.Parse()

	cfg := config.MustLoad(*configPath)

	log := logger.New()
	defer log.Sync()

	log.Info("Starting outbox dispatcher...",
		zap.String("db_host", cfg.DB.Host),
		zap.String("mq_url", cfg.MQ.URL),
	)

	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()

	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	repo := outbox.NewRepository(dbConn)
	dispatcher := outbox.NewDispatcher(repo, publisher, log).
		WithInterval(*interval)

	ctx, cancel := context.WithCancel(context.Background())
	go dispatcher.Start(ctx)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down outbox dispatcher...")
	cancel()
	time.Sleep(200 * time.Millisecond)
	log.Info("Outbox dispatcher shutdown complete")
}
