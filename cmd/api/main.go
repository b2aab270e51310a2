package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/compeq-chat/backend/internal/config"
	"github.com/zhouzirui/compeq-chat/backend/internal/handler"
	"github.com/zhouzirui/compeq-chat/backend/internal/logging"
	"github.com/zhouzirui/compeq-chat/backend/internal/model/persona"
	"github.com/zhouzirui/compeq-chat/backend/internal/service/ai"
	"github.com/zhouzirui/compeq-chat/backend/internal/service/assistant"
	"github.com/zhouzirui/compeq-chat/backend/internal/service/chat"
	"github.com/zhouzirui/compeq-chat/backend/internal/service/extract"
	"github.com/zhouzirui/compeq-chat/backend/internal/storage"
	"github.com/zhouzirui/compeq-chat/backend/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if envErr != nil {
		logger.Info("no .env file loaded, continuing with system environment variables only", zap.Error(envErr))
	}

	tracing, err := telemetry.NewProvider(ctx, cfg.Telemetry, logger)
	if err != nil {
		logger.Fatal("failed to init telemetry", zap.Error(err))
	}
	defer shutdown(logger, "telemetry", tracing.Shutdown)

	store, err := storage.Open(ctx, cfg.Store)
	if err != nil {
		logger.Fatal("failed to open store", zap.String("backend", cfg.Store.Backend), zap.Error(err))
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("close store failed", zap.Error(err))
		}
	}()
	logger.Info("store opened", zap.String("backend", cfg.Store.Backend))

	personaStore := persona.NewMemoryStore(persona.Seed())
	chatService := chat.NewService(store, logger.Named("chat"))
	extractor := extract.New(extract.OptionsFromConfig(cfg.Extract), logger.Named("extract"))

	// 未配置模型时保持 nil 接口，会话管理与导出仍可用
	var completer assistant.Completer
	if cfg.AI.Enabled() {
		if llm, err := newLLMService(ctx, cfg.AI, personaStore, logger); err != nil {
			logger.Warn("failed to initialize AI service, continuing without model", zap.String("provider", cfg.AI.Provider), zap.Error(err))
		} else {
			completer = llm
			logger.Info("AI service initialized", zap.String("provider", cfg.AI.Provider), zap.String("model", cfg.AI.Model))
		}
	} else {
		logger.Warn("模型凭证未配置，跳过 AI 功能初始化", zap.String("provider", cfg.AI.Provider))
	}

	assistantService := assistant.NewService(chatService, extractor, completer, assistant.NewPreviewCache(0, 0), logger.Named("assistant"))

	router := handler.NewRouter(handler.Options{
		Assistant:      assistantService,
		Personas:       personaStore,
		ActivePersona:  cfg.AI.PersonaID,
		AllowedOrigin:  cfg.Server.AllowedOrigin,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Logger:         logger,
	})

	startServer(ctx, logger, cfg.Server, router)
}

func newLLMService(ctx context.Context, cfg config.AIConfig, personas persona.Store, logger *zap.Logger) (*ai.Service, error) {
	systemPrompt, err := ai.ResolveSystemPrompt(cfg.SystemInstruction, cfg.PersonaID, personas)
	if err != nil {
		return nil, err
	}
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, err
	}
	return ai.NewService(ctx, chatModel, ai.ConfigFrom(cfg, systemPrompt), logger.Named("ai"))
}

func shutdown(logger *zap.Logger, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.Warn("shutdown failed", zap.String("component", name), zap.Error(err))
	}
}

func startServer(ctx context.Context, logger *zap.Logger, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("Compeq chat backend listening", zap.String("addr", addr))
	if err := runServer(ctx, srv); err != nil {
		logger.Error("server error", zap.Error(err))
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
