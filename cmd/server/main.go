package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/healthdesk/benefits-assistant/internal/api"
	"github.com/healthdesk/benefits-assistant/internal/auth"
	"github.com/healthdesk/benefits-assistant/internal/benefits"
	"github.com/healthdesk/benefits-assistant/internal/config"
	"github.com/healthdesk/benefits-assistant/internal/core"
	"github.com/healthdesk/benefits-assistant/internal/llm"
	"github.com/healthdesk/benefits-assistant/internal/logger"
	"github.com/healthdesk/benefits-assistant/internal/metrics"
	"github.com/healthdesk/benefits-assistant/internal/qaeval"
	"github.com/healthdesk/benefits-assistant/internal/store"
)

func main() {
	// Command line flag for the offline answer evaluation
	evalDir := flag.String("eval-qa", "", "Evaluate answers against the *_test.json cases in this directory and exit")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadChat()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	// Setup logging
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Load the benefit tables
	table, diags, err := benefits.LoadDir(cfg.ServicesDir)
	if err != nil {
		log.Fatal("Failed to load benefit tables", "dir", cfg.ServicesDir, "error", err)
	}
	for _, d := range diags {
		log.Warn("Skipped benefit table line", "diagnostic", d.String())
	}
	metrics.BenefitDiagnostics.Set(float64(len(diags)))
	log.Info("Benefit tables loaded", "hmos", len(table.HMOs()), "entries", table.Len(), "diagnostics", len(diags))

	// Initialize LLM client
	gemini, err := llm.NewGeminiClient(context.Background(), cfg.GeminiAPIKey, cfg.ChatModel, cfg.EmbeddingModel, log)
	if err != nil {
		log.Fatal("Failed to initialize Gemini client", "error", err)
	}
	defer gemini.Close()

	qaService := core.NewQAService(table, gemini, log)

	// Handle answer evaluation if flag is set
	if *evalDir != "" {
		if err := runEvaluation(context.Background(), *evalDir, qaService, gemini, log); err != nil {
			log.Fatal("Answer evaluation failed", "error", err)
		}
		return
	}

	// Initialize session store
	sessionStore, err := newSessionStore(context.Background(), cfg)
	if err != nil {
		log.Fatal("Failed to initialize session store", "backend", cfg.SessionBackend, "error", err)
	}
	defer sessionStore.Close()

	// Initialize services
	collector, err := core.NewInfoCollector(gemini, log)
	if err != nil {
		log.Fatal("Failed to initialize info collector", "error", err)
	}
	chatService := core.NewChatService(sessionStore, collector, qaService, log)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)

	stats, err := api.NewProcessStats()
	if err != nil {
		log.Warn("Process stats unavailable, /health will report errors", "error", err)
	}

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(chatService, collector, qaService, tokens, log)
	router := api.NewRouter(apiHandler, api.RouterOptions{
		Log:            log,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Stats:          stats,
	})

	serve(fmt.Sprintf(":%s", cfg.ServerPort), router, log)
}

func newSessionStore(ctx context.Context, cfg *config.ChatConfig) (store.SessionStore, error) {
	if cfg.SessionBackend == config.SessionBackendRedis {
		rs, err := store.NewRedisStore(ctx, &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, cfg.SessionTTL)
		if err != nil {
			return nil, err
		}
		return rs, nil
	}
	ss, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return ss, nil
}

func runEvaluation(ctx context.Context, dir string, qa *core.QAService, embedder llm.Embedder, log *logger.Logger) error {
	log.Info("Starting answer evaluation", "dir", dir)
	cases, err := qaeval.LoadDir(dir)
	if err != nil {
		return err
	}
	report, err := qaeval.NewEvaluator(qa, embedder, log).Run(ctx, cases)
	if err != nil {
		return err
	}

	textFile, err := os.Create(filepath.Join(dir, "evaluation_report.txt"))
	if err != nil {
		return err
	}
	defer textFile.Close()
	report.WriteText(textFile)

	jsonFile, err := os.Create(filepath.Join(dir, "evaluation_results.json"))
	if err != nil {
		return err
	}
	defer jsonFile.Close()
	if err := report.WriteJSON(jsonFile); err != nil {
		return err
	}

	report.WriteText(os.Stdout)
	log.Info("Answer evaluation complete", "questions", report.Total, "accuracy", report.Accuracy)
	return nil
}

func serve(addr string, handler http.Handler, log *logger.Logger) {
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // model calls can take time
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info("Starting server. Press Ctrl+C to quit.", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Could not listen", "addr", addr, "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		return
	}
	log.Info("Server exiting gracefully")
}
