// The monitor polls the transaction history for a demo account, publishes one
// analysis job per newly observed transaction, and logs the model's
// one-sentence advice for each.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/insight-agent/internal/config"
	"github.com/dvloznov/insight-agent/internal/jobs"
	"github.com/dvloznov/insight-agent/internal/jobs/inmemory"
	"github.com/dvloznov/insight-agent/internal/llm"
	"github.com/dvloznov/insight-agent/internal/logger"
	"github.com/dvloznov/insight-agent/internal/normalize"
	"github.com/dvloznov/insight-agent/internal/prompts"
	"github.com/dvloznov/insight-agent/internal/upstream"
)

func main() {
	cfg := config.Load()
	log := logger.New()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

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

	m := &monitor{
		client:     upstream.NewClient(cfg.TransactionHistoryURL, cfg.BalanceReaderURL, cfg.UserServiceURL),
		backend:    backend,
		invoker:    llm.NewInvoker(log),
		governor:   llm.NewGovernor(cfg.MaxConcurrentCalls, cfg.RequestsPerMinute),
		prompts:    prompts.NewStore(cfg.PromptsPath),
		log:        log,
		accountID:  cfg.MonitorAccountID,
		windowDays: cfg.MonitorWindowDays,
		username:   cfg.MonitorUsername,
		password:   cfg.MonitorPassword,
		seen:       make(map[int64]struct{}),
	}

	jobStore := inmemory.NewStore()
	queue := inmemory.NewQueue(100, 2, jobStore)

	if err := queue.Start(ctx, m.handleJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job workers")
	}

	log.Info().
		Str("account_id", cfg.MonitorAccountID).
		Dur("interval", cfg.MonitorInterval).
		Msg("Starting transaction monitor")

	ticker := time.NewTicker(cfg.MonitorInterval)
	defer ticker.Stop()

	// First poll establishes the baseline; existing history is marked seen
	// without analysis so startup does not replay the whole ledger.
	m.poll(ctx, queue, true)

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Shutting down monitor...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := queue.Stop(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("Error draining job queue")
			}
			log.Info().Msg("Monitor exited")
			return
		case <-ticker.C:
			m.poll(ctx, queue, false)
		}
	}
}

type monitor struct {
	client   *upstream.Client
	backend  llm.Backend
	invoker  *llm.Invoker
	governor *llm.Governor
	prompts  *prompts.Store
	log      zerolog.Logger

	accountID  string
	windowDays int
	username   string
	password   string

	token string
	seen  map[int64]struct{}
}

// poll fetches the current window and publishes a job per unseen transaction.
// baseline polls only mark records as seen.
func (m *monitor) poll(ctx context.Context, queue *inmemory.Queue, baseline bool) {
	records, err := m.fetch(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("Failed to fetch transactions")
		return
	}

	window := normalize.Records(records, m.accountID)

	for i, r := range records {
		id, err := r.TransactionID.Int64()
		if err != nil {
			continue
		}
		if _, ok := m.seen[id]; ok {
			continue
		}
		m.seen[id] = struct{}{}
		if baseline {
			continue
		}

		job := &jobs.AnalyzeTransactionJob{
			AccountID:     m.accountID,
			TransactionID: id,
			Transaction:   window[i],
			Window:        window,
		}
		if err := queue.PublishAnalyzeTransaction(ctx, job); err != nil {
			m.log.Error().Err(err).Int64("transaction_id", id).Msg("Failed to enqueue analysis job")
			continue
		}
		m.log.Info().
			Str("job_id", job.JobID).
			Int64("transaction_id", id).
			Msg("New transaction enqueued for analysis")
	}
}

// fetch reads the transaction window, logging in again when the JWT expires.
func (m *monitor) fetch(ctx context.Context) ([]normalize.RawRecord, error) {
	if m.token == "" {
		token, err := m.client.Login(ctx, m.username, m.password)
		if err != nil {
			return nil, fmt.Errorf("login: %w", err)
		}
		m.token = token
	}

	records, err := m.client.GetTransactions(ctx, m.accountID, m.token, m.windowDays)
	if err != nil {
		// Token likely expired; drop it and retry on the next poll.
		m.token = ""
		return nil, err
	}
	return records, nil
}

// handleJob asks the model for one-sentence advice on a new transaction.
func (m *monitor) handleJob(ctx context.Context, job jobs.Job) error {
	analyzeJob, ok := job.(*jobs.AnalyzeTransactionJob)
	if !ok {
		return fmt.Errorf("unexpected job type: %T", job)
	}

	txnJSON, err := json.Marshal(analyzeJob.Transaction)
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}
	windowJSON, err := json.Marshal(analyzeJob.Window)
	if err != nil {
		return fmt.Errorf("marshal window: %w", err)
	}
	prompt, err := m.prompts.Render(ctx, "monitor_advice", map[string]string{
		"transaction": string(txnJSON),
		"window":      string(windowJSON),
	})
	if err != nil {
		return fmt.Errorf("render prompt: %w", err)
	}

	if err := m.governor.Acquire(ctx); err != nil {
		return err
	}
	defer m.governor.Release()

	resp, err := m.invoker.Do(ctx, func(ctx context.Context) (llm.Response, error) {
		return m.backend.Generate(ctx, llm.Request{Prompt: prompt})
	})
	if err != nil {
		return fmt.Errorf("model call: %w", err)
	}

	analyzeJob.Advice = resp.Text
	m.log.Info().
		Int64("transaction_id", analyzeJob.TransactionID).
		Str("label", analyzeJob.Transaction.Label).
		Float64("amount", analyzeJob.Transaction.Amount).
		Str("advice", resp.Text).
		Msg("Transaction analyzed")
	return nil
}
