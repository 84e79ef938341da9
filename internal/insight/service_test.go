package insight

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvloznov/insight-agent/internal/audit"
	"github.com/dvloznov/insight-agent/internal/domain"
	"github.com/dvloznov/insight-agent/internal/llm"
	"github.com/dvloznov/insight-agent/internal/prompts"
)

// fakeBackend scripts model replies and records the prompts it saw.
type fakeBackend struct {
	mu      sync.Mutex
	prompts []string
	reply   func(call int) (llm.Response, error)
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Generate(_ context.Context, req llm.Request) (llm.Response, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, req.Prompt)
	call := len(f.prompts)
	f.mu.Unlock()
	return f.reply(call)
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func (f *fakeBackend) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

// captureSink collects audit rows and signals each write.
type captureSink struct {
	mu      sync.Mutex
	records []*audit.InvocationRecord
	written chan struct{}
}

func newCaptureSink() *captureSink {
	return &captureSink{written: make(chan struct{}, 16)}
}

func (c *captureSink) Record(_ context.Context, rec *audit.InvocationRecord) error {
	c.mu.Lock()
	c.records = append(c.records, rec)
	c.mu.Unlock()
	c.written <- struct{}{}
	return nil
}

func (c *captureSink) Recent(context.Context, int) ([]*audit.InvocationRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records, nil
}

func (c *captureSink) waitForWrite(t *testing.T) *audit.InvocationRecord {
	t.Helper()
	select {
	case <-c.written:
	case <-time.After(2 * time.Second):
		t.Fatal("no audit row written")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records[len(c.records)-1]
}

func testService(backend llm.Backend, sink audit.Sink, fallback bool) *Service {
	return NewService(Options{
		Backend: backend,
		Invoker: llm.NewInvokerWithPolicy(zerolog.Nop(), llm.Policy{
			MaxAttempts: 3,
			BaseDelay:   time.Millisecond,
			MaxDelay:    2 * time.Millisecond,
		}),
		Governor:          llm.NewGovernor(4, 1000),
		Prompts:           prompts.NewStore(""),
		Sink:              sink,
		Log:               zerolog.Nop(),
		ModelName:         "test-model",
		CacheTTL:          time.Minute,
		FallbackOnFailure: fallback,
	})
}

func sampleTxns() []domain.Transaction {
	return []domain.Transaction{
		{Date: "2024-05-01", Label: "Corner Cafe", Amount: -12.50},
		{Date: "2024-05-02", Label: "Grocery Market", Amount: -30.25},
	}
}

func TestServiceEmptyWindow(t *testing.T) {
	svc := testService(&fakeBackend{}, newCaptureSink(), true)

	_, err := svc.Coach(context.Background(), Request{})
	assert.ErrorIs(t, err, domain.ErrNoTransactions)
	_, err = svc.AnalyzeSpending(context.Background(), Request{})
	assert.ErrorIs(t, err, domain.ErrNoTransactions)
	_, err = svc.DetectFraud(context.Background(), Request{})
	assert.ErrorIs(t, err, domain.ErrNoTransactions)
}

func TestServiceCoachSuccess(t *testing.T) {
	backend := &fakeBackend{reply: func(int) (llm.Response, error) {
		return llm.Response{
			Text:         `{"summary": "looking good", "budget_buckets": [{"name": "Dining", "total": 12.5, "count": 1}], "tips": ["keep it up"]}`,
			InputTokens:  100,
			OutputTokens: 40,
		}, nil
	}}
	sink := newCaptureSink()
	svc := testService(backend, sink, true)

	out, err := svc.Coach(context.Background(), Request{Transactions: sampleTxns(), RequestID: "req-1"})
	require.NoError(t, err)
	assert.Equal(t, "looking good", out.Summary)
	require.Len(t, out.BudgetBuckets, 1)
	assert.Equal(t, "Dining", out.BudgetBuckets[0].Name)

	rec := sink.waitForWrite(t)
	assert.Equal(t, "success", rec.Outcome)
	assert.Equal(t, "budget_coach", rec.Kind)
	assert.Equal(t, "req-1", rec.RequestID)
	assert.Equal(t, int64(100), rec.InputTokens)
	assert.Equal(t, 2, rec.TransactionCount)
}

func TestServiceFencedOutputRecovered(t *testing.T) {
	backend := &fakeBackend{reply: func(int) (llm.Response, error) {
		return llm.Response{Text: "```json\n{\"summary\": \"fenced\", \"budget_buckets\": [], \"tips\": []}\n```"}, nil
	}}
	svc := testService(backend, newCaptureSink(), false)

	out, err := svc.Coach(context.Background(), Request{Transactions: sampleTxns()})
	require.NoError(t, err)
	assert.Equal(t, "fenced", out.Summary)
}

func TestServiceFallbackOnModelFailure(t *testing.T) {
	backend := &fakeBackend{reply: func(int) (llm.Response, error) {
		return llm.Response{}, errors.New("backend exploded")
	}}
	sink := newCaptureSink()
	svc := testService(backend, sink, true)

	out, err := svc.AnalyzeSpending(context.Background(), Request{Transactions: sampleTxns()})
	require.NoError(t, err)
	assert.Contains(t, out.Summary, "expenses=42.75")
	assert.Contains(t, out.Summary, "income=0.00")
	assert.NotNil(t, out.UnusualTransactions)

	rec := sink.waitForWrite(t)
	assert.Equal(t, "fallback", rec.Outcome)
	assert.True(t, rec.ErrorMessage.Valid)
}

func TestServiceFallbackOnUnparseableOutput(t *testing.T) {
	backend := &fakeBackend{reply: func(int) (llm.Response, error) {
		return llm.Response{Text: "I am sorry, I cannot answer in JSON today."}, nil
	}}
	sink := newCaptureSink()
	svc := testService(backend, sink, true)

	out, err := svc.Coach(context.Background(), Request{Transactions: sampleTxns()})
	require.NoError(t, err)
	assert.Contains(t, out.Summary, "Computed locally")

	rec := sink.waitForWrite(t)
	assert.Equal(t, "fallback", rec.Outcome)
}

func TestServiceErrorWithoutFallback(t *testing.T) {
	backend := &fakeBackend{reply: func(int) (llm.Response, error) {
		return llm.Response{}, errors.New("backend exploded")
	}}
	sink := newCaptureSink()
	svc := testService(backend, sink, false)

	_, err := svc.Coach(context.Background(), Request{Transactions: sampleTxns()})
	require.Error(t, err)

	rec := sink.waitForWrite(t)
	assert.Equal(t, "error", rec.Outcome)
}

func TestServiceSaturationBypassesFallback(t *testing.T) {
	backend := &fakeBackend{reply: func(int) (llm.Response, error) {
		return llm.Response{}, &llm.RateLimitError{Err: errors.New("quota")}
	}}
	sink := newCaptureSink()
	svc := testService(backend, sink, true)

	_, err := svc.DetectFraud(context.Background(), Request{Transactions: sampleTxns()})
	require.ErrorIs(t, err, llm.ErrSaturated)

	rec := sink.waitForWrite(t)
	assert.Equal(t, "saturated", rec.Outcome)
}

func TestServiceCacheHitSkipsBackend(t *testing.T) {
	backend := &fakeBackend{reply: func(int) (llm.Response, error) {
		return llm.Response{Text: `{"summary": "cached", "budget_buckets": [], "tips": []}`}, nil
	}}
	svc := testService(backend, newCaptureSink(), true)
	req := Request{Transactions: sampleTxns()}

	first, err := svc.Coach(context.Background(), req)
	require.NoError(t, err)
	second, err := svc.Coach(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, backend.calls())
}

func TestServiceCacheKeyedByFastFlag(t *testing.T) {
	backend := &fakeBackend{reply: func(int) (llm.Response, error) {
		return llm.Response{Text: `{"findings": [], "overall_risk": "low", "summary": "clean"}`}, nil
	}}
	svc := testService(backend, newCaptureSink(), true)
	txns := sampleTxns()

	_, err := svc.DetectFraud(context.Background(), Request{Transactions: txns})
	require.NoError(t, err)
	_, err = svc.DetectFraud(context.Background(), Request{Transactions: txns, Fast: true})
	require.NoError(t, err)

	assert.Equal(t, 2, backend.calls())
}

func TestServiceFastScreenShrinksFraudPrompt(t *testing.T) {
	backend := &fakeBackend{reply: func(int) (llm.Response, error) {
		return llm.Response{Text: `{"findings": [], "overall_risk": "low", "summary": "clean"}`}, nil
	}}
	svc := testService(backend, newCaptureSink(), true)

	txns := make([]domain.Transaction, 0, 13)
	for i := 0; i < 12; i++ {
		txns = append(txns, domain.Transaction{Date: "2024-05-01", Label: "Corner Cafe", Amount: -10})
	}
	txns = append(txns, domain.Transaction{Date: "2024-05-02", Label: "Overseas Wire", Amount: -5000})

	_, err := svc.DetectFraud(context.Background(), Request{Transactions: txns, Fast: true})
	require.NoError(t, err)

	prompt := backend.lastPrompt()
	assert.Contains(t, prompt, "Overseas Wire")
	assert.NotContains(t, prompt, "Corner Cafe")
}

func TestServicePromptUsesIndentedTransactions(t *testing.T) {
	backend := &fakeBackend{reply: func(int) (llm.Response, error) {
		return llm.Response{Text: `{"summary": "ok", "budget_buckets": [], "tips": []}`}, nil
	}}
	svc := testService(backend, newCaptureSink(), true)

	_, err := svc.Coach(context.Background(), Request{Transactions: sampleTxns()})
	require.NoError(t, err)

	prompt := backend.lastPrompt()
	assert.Contains(t, prompt, "  {\n    \"date\": \"2024-05-01\",")
	assert.Contains(t, prompt, "\n    \"label\": \"Corner Cafe\",")
}

func TestServiceTruncatesOversizedWindow(t *testing.T) {
	backend := &fakeBackend{reply: func(int) (llm.Response, error) {
		return llm.Response{Text: `{"summary": "ok", "budget_buckets": [], "tips": []}`}, nil
	}}
	svc := testService(backend, newCaptureSink(), true)
	svc.maxPerPrompt = 3

	txns := []domain.Transaction{
		{Date: "2024-05-01", Label: "keep-one", Amount: -1},
		{Date: "2024-05-02", Label: "keep-two", Amount: -2},
		{Date: "2024-05-03", Label: "keep-three", Amount: -3},
		{Date: "2024-05-04", Label: "dropped-tail", Amount: -4},
	}

	_, err := svc.Coach(context.Background(), Request{Transactions: txns})
	require.NoError(t, err)

	prompt := backend.lastPrompt()
	assert.Contains(t, prompt, "keep-three")
	assert.NotContains(t, prompt, "dropped-tail")
}
