package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/anthropics/emoji-gateway/internal/biz/usecase"
	"github.com/anthropics/emoji-gateway/internal/conf"
	"github.com/anthropics/emoji-gateway/internal/data"
	"github.com/anthropics/emoji-gateway/internal/logging"
	"github.com/anthropics/emoji-gateway/internal/server"
	"github.com/anthropics/emoji-gateway/internal/service"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := conf.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	logger, err := logging.New(cfg.Server.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("initializing emoji gateway")

	// Initialize repository layer
	repos := data.NewRepositories(cfg, logger)

	ctx := context.Background()

	// Identify the bot's own account. The mention filter cannot work without
	// it, so failure here terminates the process.
	botUsername, err := repos.Message.Me(ctx)
	if err != nil {
		logger.Fatal("failed to fetch bot account info", zap.Error(err))
	}
	logger.Info("bot account identified", zap.String("username", botUsername))

	// Pre-warm the font list; a failure is retried on first request
	if _, err := repos.Renderer.Fonts(ctx); err != nil {
		logger.Warn("failed to fetch font list, will retry on first request", zap.Error(err))
	} else {
		logger.Info("font list cached")
	}

	// Initialize usecase and service layers
	filterUC := usecase.NewFilterUsecase(botUsername, logger)
	dialogueUC := usecase.NewDialogueUsecase(repos.State, repos.Message, repos.Renderer, repos.Planner, logger)
	mentionSvc := service.NewMentionService(repos.State, filterUC, dialogueUC, logger)

	// Health/metrics HTTP server
	healthSrv := server.NewHealthServer(cfg.Server.Port, repos.State, mentionSvc, logger)
	go func() {
		if err := healthSrv.Start(); err != nil {
			logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Start the streaming connection
	streamURL := fmt.Sprintf("wss://%s/streaming?i=%s", cfg.Misskey.Host, cfg.Misskey.Token)
	stream := server.NewStreamClient(streamURL, mentionSvc, logger)
	stream.Connect()

	logger.Info("emoji gateway is running")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))

	stream.Close()
	healthSrv.Stop()
	if err := repos.State.Close(); err != nil {
		logger.Error("failed to close store", zap.Error(err))
	}
	_ = logger.Sync()
	os.Exit(0)
}
