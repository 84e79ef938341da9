// Package insight runs the analysis pipeline: shape the prompt, govern the
// model call, recover structured JSON from the reply, and fall back to local
// heuristics when the model cannot answer.
package insight

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/insight-agent/internal/audit"
	"github.com/dvloznov/insight-agent/internal/categorize"
	"github.com/dvloznov/insight-agent/internal/domain"
	"github.com/dvloznov/insight-agent/internal/llm"
	"github.com/dvloznov/insight-agent/internal/prompts"
	"github.com/dvloznov/insight-agent/internal/screen"
)

// Request is one analysis invocation.
type Request struct {
	Transactions []domain.Transaction
	Account      domain.AccountContext

	// Fast enables the statistical pre-screen on fraud detection, sending only
	// outlier transactions to the model.
	Fast bool

	// RequestID correlates audit rows with access logs. Optional.
	RequestID string
}

// Options configures a Service.
type Options struct {
	Backend  llm.Backend
	Invoker  *llm.Invoker
	Governor *llm.Governor
	Prompts  *prompts.Store
	Sink     audit.Sink
	Log      zerolog.Logger

	ModelName                string
	MaxTransactionsPerPrompt int
	CacheTTL                 time.Duration

	// FallbackOnFailure serves heuristic results when the model fails for any
	// reason other than sustained rate limiting.
	FallbackOnFailure bool
}

// Service orchestrates the three analysis pipelines.
type Service struct {
	backend  llm.Backend
	invoker  *llm.Invoker
	governor *llm.Governor
	prompts  *prompts.Store
	sink     audit.Sink
	cache    *resultCache
	log      zerolog.Logger

	modelName    string
	maxPerPrompt int
	fallback     bool
}

// NewService wires the pipeline together.
func NewService(opts Options) *Service {
	sink := opts.Sink
	if sink == nil {
		sink = audit.NopSink{}
	}
	maxPerPrompt := opts.MaxTransactionsPerPrompt
	if maxPerPrompt <= 0 {
		maxPerPrompt = 50
	}
	return &Service{
		backend:      opts.Backend,
		invoker:      opts.Invoker,
		governor:     opts.Governor,
		prompts:      opts.Prompts,
		sink:         sink,
		cache:        newResultCache(opts.CacheTTL),
		log:          opts.Log,
		modelName:    opts.ModelName,
		maxPerPrompt: maxPerPrompt,
		fallback:     opts.FallbackOnFailure,
	}
}

// Coach produces budget-coach advice for the transaction window.
func (s *Service) Coach(ctx context.Context, req Request) (*domain.CoachResult, error) {
	out, err := run(ctx, s, domain.KindCoach, req, categorize.CoachFallback)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// AnalyzeSpending summarizes spending patterns for the transaction window.
func (s *Service) AnalyzeSpending(ctx context.Context, req Request) (*domain.SpendingResult, error) {
	out, err := run(ctx, s, domain.KindSpending, req, categorize.SpendingFallback)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DetectFraud screens the transaction window for suspicious activity. With
// req.Fast set, only statistical outliers reach the model.
func (s *Service) DetectFraud(ctx context.Context, req Request) (*domain.FraudResult, error) {
	out, err := run(ctx, s, domain.KindFraud, req, categorize.FraudFallback)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// run is the shared pipeline. R is the kind-specific result type; fallback
// computes the heuristic result from the full (pre-screen) transaction set.
func run[R any](ctx context.Context, s *Service, kind domain.AnalysisKind, req Request, fallback func([]domain.Transaction) R) (*R, error) {
	if len(req.Transactions) == 0 {
		return nil, domain.ErrNoTransactions
	}

	key := cacheKey(kind, req)
	if cached, ok := s.cache.get(key); ok {
		if result, ok := cached.(*R); ok {
			s.log.Debug().Str("kind", string(kind)).Msg("Serving analysis from cache")
			return result, nil
		}
	}

	rec := &audit.InvocationRecord{
		InvocationID:     uuid.NewString(),
		RequestID:        req.RequestID,
		Kind:             string(kind),
		Backend:          s.backend.Name(),
		Model:            s.modelName,
		TransactionCount: len(req.Transactions),
		FastScreen:       req.Fast && kind == domain.KindFraud,
	}

	result, err := s.generate(ctx, kind, req, rec)
	if err != nil {
		if errors.Is(err, llm.ErrSaturated) {
			// Sustained overload surfaces as 429 regardless of the fallback
			// setting so clients back off instead of hammering the heuristic.
			rec.Outcome = "saturated"
			rec.ErrorMessage = nullString(err)
			s.record(rec)
			return nil, err
		}
		if !s.fallback {
			rec.Outcome = "error"
			rec.ErrorMessage = nullString(err)
			s.record(rec)
			return nil, err
		}

		s.log.Warn().Err(err).Str("kind", string(kind)).Msg("Model analysis failed, serving heuristic fallback")
		out := fallback(req.Transactions)
		rec.Outcome = "fallback"
		rec.ErrorMessage = nullString(err)
		s.record(rec)
		s.cache.set(key, &out)
		return &out, nil
	}

	var out R
	if err := llm.DecodeInto(result.Text, &out); err != nil {
		if !s.fallback {
			rec.Outcome = "error"
			rec.ErrorMessage = nullString(err)
			s.record(rec)
			return nil, fmt.Errorf("unusable model output: %w", err)
		}
		s.log.Warn().Err(err).Str("kind", string(kind)).Msg("Model output unparseable, serving heuristic fallback")
		fb := fallback(req.Transactions)
		rec.Outcome = "fallback"
		rec.ErrorMessage = nullString(err)
		s.record(rec)
		s.cache.set(key, &fb)
		return &fb, nil
	}

	rec.Outcome = "success"
	rec.InputTokens = int64(result.InputTokens)
	rec.OutputTokens = int64(result.OutputTokens)
	s.record(rec)
	s.cache.set(key, &out)
	return &out, nil
}

// generate renders the prompt and performs the governed, retried model call.
func (s *Service) generate(ctx context.Context, kind domain.AnalysisKind, req Request, rec *audit.InvocationRecord) (llm.Response, error) {
	txns := req.Transactions
	if kind == domain.KindFraud && req.Fast {
		txns = screen.Outliers(txns, true)
	}
	if len(txns) > s.maxPerPrompt {
		txns = txns[:s.maxPerPrompt]
	}

	prompt, err := s.renderPrompt(ctx, kind, txns, req.Account)
	if err != nil {
		return llm.Response{}, err
	}

	if err := s.governor.Acquire(ctx); err != nil {
		return llm.Response{}, err
	}
	defer s.governor.Release()

	start := time.Now()
	resp, err := s.invoker.Do(ctx, func(ctx context.Context) (llm.Response, error) {
		return s.backend.Generate(ctx, llm.Request{
			Prompt: prompt,
			Schema: llm.SchemaFor(kind),
		})
	})
	rec.LatencyMS = time.Since(start).Milliseconds()
	return resp, err
}

func (s *Service) renderPrompt(ctx context.Context, kind domain.AnalysisKind, txns []domain.Transaction, account domain.AccountContext) (string, error) {
	// Indented so the model sees one field per line.
	txnJSON, err := json.MarshalIndent(txns, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal transactions: %w", err)
	}
	accountJSON, err := json.Marshal(account)
	if err != nil {
		return "", fmt.Errorf("marshal account context: %w", err)
	}
	return s.prompts.Render(ctx, string(kind), map[string]string{
		"transactions":    string(txnJSON),
		"account_context": string(accountJSON),
	})
}

// record writes the audit row off the request path with its own deadline.
func (s *Service) record(rec *audit.InvocationRecord) {
	rec.CreatedTS = time.Now().UTC()
	rec.Day = civil.DateOf(rec.CreatedTS)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.sink.Record(ctx, rec); err != nil {
			s.log.Error().Err(err).Str("invocation_id", rec.InvocationID).Msg("Failed to write audit row")
		}
	}()
}

// cacheKey fingerprints the full request so any change in window, context or
// screening mode misses the cache.
func cacheKey(kind domain.AnalysisKind, req Request) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%t|", kind, req.Fast)
	_ = json.NewEncoder(h).Encode(req.Transactions)
	_ = json.NewEncoder(h).Encode(req.Account)
	return hex.EncodeToString(h.Sum(nil))
}

func nullString(err error) bigquery.NullString {
	return bigquery.NullString{StringVal: err.Error(), Valid: true}
}
