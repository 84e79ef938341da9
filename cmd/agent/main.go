package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cloud.google.com/go/storage"

	"github.com/dvloznov/insight-agent/internal/api/handlers"
	"github.com/dvloznov/insight-agent/internal/api/middleware"
	"github.com/dvloznov/insight-agent/internal/audit"
	"github.com/dvloznov/insight-agent/internal/config"
	"github.com/dvloznov/insight-agent/internal/insight"
	"github.com/dvloznov/insight-agent/internal/llm"
	"github.com/dvloznov/insight-agent/internal/logger"
	"github.com/dvloznov/insight-agent/internal/prompts"
	"github.com/dvloznov/insight-agent/internal/upstream"
)

func main() {
	cfg := config.Load()

	port := flag.String("port", cfg.Port, "HTTP server port")
	flag.Parse()

	log := logger.New()
	ctx := context.Background()

	// Prompt templates: in-code defaults, optional GCS object, optional local
	// file with hot reload.
	promptStore := prompts.NewStore(cfg.PromptsPath)
	if cfg.PromptsGCSBucket != "" {
		storageClient, err := storage.NewClient(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer func() { _ = storageClient.Close() }()
		promptStore.WithRemote(
			prompts.NewGCSSource(storageClient, cfg.PromptsGCSBucket, cfg.PromptsGCSObject),
			cfg.PromptsRefreshInterval,
		)
	}

	backend, err := llm.NewBackend(ctx, llm.Config{
		Provider:        cfg.Backend,
		Model:           cfg.Model,
		Project:         cfg.Project,
		Location:        cfg.Location,
		MaxOutputTokens: cfg.MaxOutputTokens,
		ThinkingBudget:  cfg.ThinkingBudget,
		GatewayURL:      cfg.GatewayURL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create model backend")
	}
	log.Info().Str("backend", backend.Name()).Str("model", cfg.Model).Msg("Model backend ready")

	var sink audit.Sink = audit.NopSink{}
	if cfg.AuditDataset != "" && cfg.Project != "" {
		bqSink, err := audit.NewBigQuerySink(ctx, cfg.Project, cfg.AuditDataset, cfg.AuditTable)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create audit sink")
		}
		defer func() { _ = bqSink.Close() }()
		sink = bqSink
		log.Info().Str("dataset", cfg.AuditDataset).Str("table", cfg.AuditTable).Msg("Audit trail enabled")
	}

	svc := insight.NewService(insight.Options{
		Backend:                  backend,
		Invoker:                  llm.NewInvoker(log),
		Governor:                 llm.NewGovernor(cfg.MaxConcurrentCalls, cfg.RequestsPerMinute),
		Prompts:                  promptStore,
		Sink:                     sink,
		Log:                      log,
		ModelName:                cfg.Model,
		MaxTransactionsPerPrompt: cfg.MaxTransactionsPerPrompt,
		CacheTTL:                 cfg.CacheTTL,
		FallbackOnFailure:        cfg.FallbackOnFailure,
	})

	bankClient := upstream.NewClient(cfg.TransactionHistoryURL, cfg.BalanceReaderURL, cfg.UserServiceURL)

	analysisHandler := handlers.NewAnalysisHandler(svc, cfg.FastScreenDefault, log)
	proxyHandler := handlers.NewProxyHandler(bankClient, cfg.MonitorWindowDays, log)
	invocationsHandler := handlers.NewInvocationsHandler(sink, log)

	mux := http.NewServeMux()

	mux.HandleFunc("/api/budget/coach", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			analysisHandler.Coach(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/spending/analyze", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			analysisHandler.AnalyzeSpending(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/fraud/detect", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			analysisHandler.DetectFraud(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/api/transactions/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		accountID := strings.TrimPrefix(r.URL.Path, "/api/transactions/")
		if accountID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Account ID is required")
			return
		}
		proxyHandler.GetTransactions(w, r, accountID)
	})

	mux.HandleFunc("/api/balance/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		accountID := strings.TrimPrefix(r.URL.Path, "/api/balance/")
		if accountID == "" {
			middleware.WriteError(w, http.StatusBadRequest, "Account ID is required")
			return
		}
		proxyHandler.GetBalance(w, r, accountID)
	})

	mux.HandleFunc("/api/invocations", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			invocationsHandler.List(w, r)
		} else {
			middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	})

	mux.HandleFunc("/healthz", handlers.Health)
	mux.HandleFunc("/api/healthz", handlers.Health)

	// RequestID sits outside Logger so access log lines carry the ID.
	handler := middleware.Recovery(log)(
		middleware.RequestID(
			middleware.Logger(log)(
				middleware.CORS(mux),
			),
		),
	)

	// Write timeout leaves headroom for a full retry cycle against a
	// rate-limited model.
	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Msg("Starting insight agent")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
