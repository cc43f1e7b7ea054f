package main

import (
	"chat-relay/auth"
	admin "chat-relay/infrastructure/grpc"
	"chat-relay/infrastructure/websocket"
	"chat-relay/internal"
	"chat-relay/moderation"
	"chat-relay/observability"
	"chat-relay/repositories"
	"chat-relay/runtime"
	"chat-relay/runtime/workers"
	"chat-relay/search"
	"chat-relay/services"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Relay terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run wires every component and blocks until a signal or a server failure.
// Deferred cleanups run before the exit code reaches main.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	charReplacement, err := internal.CharacterRune(config.CharReplacement)
	if err != nil {
		return exitConfig, err
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Storage (BadgerDB) & search index (Bluge)
	db, err := badger.Open(buildBadgerOpts(config, log, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	writer, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return exitRuntime, fmt.Errorf("search index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing search index...")
		_ = writer.Close()
	}()

	// 3. Moderation
	censored, err := moderation.DefaultLoader().LoadAll("censored")
	if err != nil {
		return exitConfig, fmt.Errorf("censored words loading failed: %w", err)
	}
	moderator, err := moderation.NewModerator(censored.Words, charReplacement, log)
	if err != nil {
		return exitConfig, fmt.Errorf("moderator creation failed: %w", err)
	}
	log.Info("Moderation loaded", "words", len(censored.Words), "languages", censored.Languages)

	// 4. Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	// 5. Services & orchestration
	messageRepository := repositories.NewMessageRepository(db, log, config.HistoryLimit())
	conversationRepository := repositories.NewConversationRepository(db)
	userRepository := repositories.NewUserRepository(db)
	storyRepository := repositories.NewStoryRepository(db)

	presence := runtime.NewPresence()
	router := runtime.NewRouter(presence, log, metrics)
	conversationService := services.NewConversationService(conversationRepository, log)
	messageService := services.NewMessageService(
		messageRepository, userRepository, router, conversationService,
		search.NewMessageIndex(writer, log), moderator, config.MaxContentLength, log, metrics,
	)
	typingService := services.NewTypingService(router, conversationService, config.TypingTimeout, log)
	callService := services.NewCallService(router, log, metrics)
	storyService := services.NewStoryService(storyRepository, router, config.MaxContentLength, log)
	contactService := services.NewContactService(userRepository, config.ContactResults)

	supervisor := workers.NewSupervisor(log, metrics, config.RestartInterval)
	orchestrator := runtime.NewOrchestrator(log, metrics, runtime.Config{
		RoomBufferSize:  config.RoomBufferSize,
		RoomIdleTimeout: config.RoomIdleTimeout,
		MetricInterval:  config.MetricInterval,
	}, supervisor, presence, router, userRepository,
		conversationService, messageService, typingService, callService, storyService, contactService)
	chatService := services.NewChatService(auth.NewVerifier(config.JwtSecret), orchestrator, log)

	errChan := make(chan error, 3)
	orchestratorDone := make(chan struct{})
	go func() {
		defer close(orchestratorDone)
		log.Info("Starting orchestrator...")
		if err := orchestrator.Start(ctx); err != nil {
			errChan <- fmt.Errorf("orchestrator error: %w", err)
		}
	}()
	<-orchestrator.Ready()

	// 6. HTTP: websocket gateway, metrics, liveness
	wsConfig := websocket.DefaultConfig()
	wsConfig.AllowedOrigins = config.Origins()
	wsConfig.SinkBufferSize = config.ConnectionBufferSize

	mux := http.NewServeMux()
	mux.Handle("/ws", websocket.NewGateway(ctx, chatService, wsConfig, log))
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	httpServer := &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 7. Admin gRPC (health)
	adminAddress := fmt.Sprintf("%s:%d", config.Host, config.AdminPort)
	listener, err := net.Listen("tcp", adminAddress)
	if err != nil {
		return exitRuntime, fmt.Errorf("failed to listen on %s: %w", adminAddress, err)
	}
	adminServer := admin.NewAdminServer(log)
	go func() {
		if err := adminServer.Serve(listener); err != nil {
			errChan <- err
		}
	}()
	adminServer.SetServing(true)

	// 8. Wait for Stop or Error
	code := exitOK
	var runErr error
	select {
	case <-ctx.Done():
		log.Info("Shutdown signal received")
	case runErr = <-errChan:
		code = exitRuntime
	}

	// 9. Graceful shutdown: stop accepting, close connections, drain workers
	log.Info("Shutting down gracefully...")
	adminServer.SetServing(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP shutdown incomplete", "error", err)
	}
	stop()
	orchestrator.Stop()
	select {
	case <-orchestratorDone:
	case <-shutdownCtx.Done():
		log.Warn("Workers still running after shutdown timeout")
	}
	adminServer.Stop(shutdownCtx)
	log.Info("Program stopped cleanly")

	return code, runErr
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}
