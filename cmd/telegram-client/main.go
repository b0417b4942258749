package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/iamvkosarev/ai-multichat/config"
	"github.com/iamvkosarev/ai-multichat/internal/app"
	"github.com/iamvkosarev/ai-multichat/pkg/logger"
)

func main() {
	cfgPath := flag.String("config", "", "path to a yaml config file")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to load .env: %v", err)
	}

	cfg, err := config.LoadTelegramConfig(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = app.RunTelegram(ctx, cfg, zapLogger); err != nil {
		zapLogger.Fatal("telegram client stopped", zap.Error(err))
	}
}
