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
	"github.com/sashabaranov/go-openai"

	"github.com/zhouzirui/poet-chat/backend/internal/config"
	"github.com/zhouzirui/poet-chat/backend/internal/handler"
	"github.com/zhouzirui/poet-chat/backend/internal/model/persona"
	"github.com/zhouzirui/poet-chat/backend/internal/service/ai"
	"github.com/zhouzirui/poet-chat/backend/internal/service/speech"
	"github.com/zhouzirui/poet-chat/backend/internal/telemetry"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logCloser, err := telemetry.InitLogger(cfg.Log)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer logCloser.Close()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		log.Fatalf("failed to initialize telemetry: %v", err)
	}
	defer shutdownTelemetry()

	metrics := telemetry.NewRelayMetrics()
	openaiClient := cfg.OpenAI.NewClient()

	completer, err := newCompleter(ctx, cfg, openaiClient)
	if err != nil {
		log.Fatalf("failed to initialize chat provider: %v", err)
	}
	log.Printf("chat provider=%s model=%s", cfg.Chat.Provider, completer.Model())

	opts := []ai.Option{ai.WithMetrics(metrics)}
	if cfg.Chat.TokenCounting {
		tokens := ai.NewTokenCounter(completer.Model())
		warmTokenCounter(tokens, tokenWarmTimeout)
		opts = append(opts, ai.WithTokenCounter(tokens))
	}
	chatService := ai.NewService(completer, opts...)
	speechService := speech.NewService(openaiClient, cfg.Speech, metrics)

	personaStore := persona.NewMemoryStore(persona.Seed())
	router := handler.NewRouter(cfg, personaStore, chatService, speechService)

	startServer(ctx, cfg.Server, router)
}

// tokenWarmTimeout 启动时等待 tiktoken 编码的上限，超时后继续在后台加载
const tokenWarmTimeout = 10 * time.Second

func warmTokenCounter(tokens *ai.TokenCounter, timeout time.Duration) {
	select {
	case <-tokens.Warm():
	case <-time.After(timeout):
		log.Printf("[ai] tiktoken encoding still loading after %s, token counts are skipped until it is ready", timeout)
	}
}

// newCompleter 按 CHAT_PROVIDER 选择聊天模型
func newCompleter(ctx context.Context, cfg *config.Config, client *openai.Client) (ai.Completer, error) {
	if cfg.Chat.Provider == config.ProviderArk {
		chatModel, err := cfg.Ark.NewChatModel(ctx)
		if err != nil {
			return nil, err
		}
		return ai.NewArkCompleter(chatModel, cfg.Ark.Model), nil
	}
	return ai.NewOpenAICompleter(client, cfg.Chat.Model), nil
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: serverCfg.ReadHeaderTimeout,
		IdleTimeout:       serverCfg.IdleTimeout,
	}

	log.Printf("AI Poet Chat backend listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
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
