package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	api "github.com/OvyFlash/telegram-bot-api"
	"github.com/redis/go-redis/v9"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/iamvkosarev/ai-multichat/config"
	in_memory "github.com/iamvkosarev/ai-multichat/internal/storage/in-memory"
	key_value "github.com/iamvkosarev/ai-multichat/internal/storage/key-value"
	http_client "github.com/iamvkosarev/ai-multichat/internal/transport/http-client"
	http_server "github.com/iamvkosarev/ai-multichat/internal/transport/http-server"
	"github.com/iamvkosarev/ai-multichat/internal/usecase"
)

// RunServer serves the chat API until ctx is cancelled.
func RunServer(ctx context.Context, cfg *config.ServerConfig, logger *zap.Logger) error {
	chatStorage := in_memory.NewChatStorage(cfg.History.SystemPrompt, cfg.History.MaxTurns)
	openAIUsecase := usecase.NewOpenAIUsecase(cfg.OpenAI, logger.Named("openai"))

	serverChatUsecase := usecase.NewServerChatUsecase(
		usecase.ServerChatUsecaseDeps{
			ChatStorage: chatStorage,
			Gateway:     openAIUsecase,
			Logger:      logger.Named("chat"),
		}, cfg.History,
	)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           http_server.NewServer(serverChatUsecase, logger.Named("http")).Handler(),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var serveErr error
	wg := conc.NewWaitGroup()
	wg.Go(
		func() {
			logger.Info("server listening", zap.String("addr", httpServer.Addr))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr = fmt.Errorf("failed to serve: %w", err)
			}
			cancel()
		},
	)

	var shutdownErr error
	wg.Go(
		func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				shutdownErr = fmt.Errorf("failed to shut down: %w", err)
			}
		},
	)

	wg.Wait()
	return errors.Join(serveErr, shutdownErr)
}

// RunTelegram runs the Telegram client host against the chat server.
func RunTelegram(ctx context.Context, cfg *config.TelegramConfig, logger *zap.Logger) error {
	bot, err := api.NewBotAPI(cfg.Telegram.APIToken)
	if err != nil {
		return fmt.Errorf("failed to create new bot: %w", err)
	}
	logger.Info("authorized on account", zap.String("username", bot.Self.UserName))

	rdb := redis.NewClient(
		&redis.Options{
			Addr:     cfg.Redis.Endpoint,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
	)
	defer rdb.Close()
	if err = rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	chatAPI := http_client.NewClient(cfg.ChatServer.URL, cfg.ChatServer.RequestTimeout)
	sessionLogger := logger.Named("session")

	newSession := func(ctx context.Context, telegramID int64) (*usecase.SessionUsecase, error) {
		namespace := strconv.FormatInt(telegramID, 10)
		store, err := usecase.OpenClientChat(
			ctx, usecase.ClientChatUsecaseDeps{
				StateStorage: key_value.NewClientStateStorage(rdb, namespace),
				Logger:       sessionLogger.With(zap.String("telegram_id", namespace)),
			},
		)
		if err != nil {
			return nil, err
		}
		return usecase.NewSessionUsecase(
			usecase.SessionUsecaseDeps{
				Store:  store,
				API:    chatAPI,
				Logger: sessionLogger,
			},
		), nil
	}

	telegramUsecase, err := usecase.NewTelegramUsecase(
		cfg.Telegram, usecase.TelegramUsecaseDeps{
			Bot:        bot,
			NewSession: newSession,
			Logger:     logger.Named("telegram"),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to create telegram usecase: %w", err)
	}

	return telegramUsecase.Run(ctx)
}
