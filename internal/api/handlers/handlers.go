package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/dvloznov/insight-agent/internal/api/middleware"
	"github.com/dvloznov/insight-agent/internal/audit"
	"github.com/dvloznov/insight-agent/internal/domain"
	"github.com/dvloznov/insight-agent/internal/insight"
	"github.com/dvloznov/insight-agent/internal/llm"
	"github.com/dvloznov/insight-agent/internal/normalize"
	"github.com/dvloznov/insight-agent/internal/upstream"
)

// maxBodyBytes bounds analysis request bodies.
const maxBodyBytes = 10 << 20

// AnalysisHandler handles the three analysis endpoints.
type AnalysisHandler struct {
	svc         *insight.Service
	fastDefault bool
	log         zerolog.Logger
}

// NewAnalysisHandler creates a new analysis handler.
func NewAnalysisHandler(svc *insight.Service, fastDefault bool, log zerolog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		svc:         svc,
		fastDefault: fastDefault,
		log:         log,
	}
}

// analysisBody is the request envelope. A bare transaction array is accepted
// as shorthand for {"transactions": [...]}.
type analysisBody struct {
	Transactions   []normalize.RawRecord `json:"transactions"`
	AccountContext domain.AccountContext `json:"account_context"`
}

// Coach handles POST /api/budget/coach
func (h *AnalysisHandler) Coach(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Coach(r.Context(), req)
	if err != nil {
		h.writeAnalysisError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// AnalyzeSpending handles POST /api/spending/analyze
func (h *AnalysisHandler) AnalyzeSpending(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	result, err := h.svc.AnalyzeSpending(r.Context(), req)
	if err != nil {
		h.writeAnalysisError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// DetectFraud handles POST /api/fraud/detect?fast=bool
func (h *AnalysisHandler) DetectFraud(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseRequest(w, r)
	if !ok {
		return
	}

	req.Fast = h.fastDefault
	if v := r.URL.Query().Get("fast"); v != "" {
		fast, err := strconv.ParseBool(v)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid fast parameter")
			return
		}
		req.Fast = fast
	}

	result, err := h.svc.DetectFraud(r.Context(), req)
	if err != nil {
		h.writeAnalysisError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, result)
}

// parseRequest decodes the body and normalizes the transaction records.
// A false return means the error response has already been written.
func (h *AnalysisHandler) parseRequest(w http.ResponseWriter, r *http.Request) (insight.Request, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read request body")
		return insight.Request{}, false
	}

	var parsed analysisBody
	trimmed := strings.TrimSpace(string(body))
	switch {
	case trimmed == "":
		middleware.WriteError(w, http.StatusBadRequest, "Request body is required")
		return insight.Request{}, false
	case strings.HasPrefix(trimmed, "["):
		if err := json.Unmarshal(body, &parsed.Transactions); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid transactions array")
			return insight.Request{}, false
		}
	default:
		if err := json.Unmarshal(body, &parsed); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
			return insight.Request{}, false
		}
	}

	if len(parsed.Transactions) == 0 {
		middleware.WriteError(w, http.StatusBadRequest, "At least one transaction is required")
		return insight.Request{}, false
	}

	return insight.Request{
		Transactions: normalize.Records(parsed.Transactions, parsed.AccountContext.AccountID),
		Account:      parsed.AccountContext,
		RequestID:    middleware.RequestIDFromContext(r.Context()),
	}, true
}

func (h *AnalysisHandler) writeAnalysisError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrNoTransactions):
		middleware.WriteError(w, http.StatusBadRequest, "At least one transaction is required")
	case errors.Is(err, llm.ErrSaturated):
		middleware.WriteError(w, http.StatusTooManyRequests, "Service temporarily overloaded")
	default:
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("Analysis failed")
		middleware.WriteError(w, http.StatusBadGateway, "Analysis backend unavailable")
	}
}

// ProxyHandler forwards ledger reads to the bank services.
type ProxyHandler struct {
	client     *upstream.Client
	windowDays int
	log        zerolog.Logger
}

// NewProxyHandler creates a new proxy handler.
func NewProxyHandler(client *upstream.Client, windowDays int, log zerolog.Logger) *ProxyHandler {
	return &ProxyHandler{
		client:     client,
		windowDays: windowDays,
		log:        log,
	}
}

// GetTransactions handles GET /api/transactions/{accountID}
func (h *ProxyHandler) GetTransactions(w http.ResponseWriter, r *http.Request, accountID string) {
	token := middleware.BearerToken(r)
	if token == "" {
		middleware.WriteError(w, http.StatusUnauthorized, "Authorization bearer token is required")
		return
	}

	windowDays := h.windowDays
	if v := r.URL.Query().Get("window_days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			windowDays = n
		}
	}

	records, err := h.client.GetTransactions(r.Context(), accountID, token, windowDays)
	if err != nil {
		h.writeProxyError(w, r, err)
		return
	}
	if records == nil {
		records = []normalize.RawRecord{}
	}
	middleware.WriteJSON(w, http.StatusOK, records)
}

// GetBalance handles GET /api/balance/{accountID}
func (h *ProxyHandler) GetBalance(w http.ResponseWriter, r *http.Request, accountID string) {
	balance, err := h.client.GetBalance(r.Context(), accountID, middleware.BearerToken(r))
	if err != nil {
		h.writeProxyError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]float64{"balance": balance})
}

func (h *ProxyHandler) writeProxyError(w http.ResponseWriter, r *http.Request, err error) {
	var statusErr *upstream.StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusUnauthorized {
		middleware.WriteError(w, http.StatusUnauthorized, "Upstream rejected the provided token")
		return
	}
	h.log.Error().Err(err).Str("path", r.URL.Path).Msg("Upstream request failed")
	middleware.WriteError(w, http.StatusBadGateway, "Upstream service unavailable")
}

// InvocationsHandler serves the model-invocation audit trail.
type InvocationsHandler struct {
	sink audit.Sink
	log  zerolog.Logger
}

// NewInvocationsHandler creates a new invocations handler.
func NewInvocationsHandler(sink audit.Sink, log zerolog.Logger) *InvocationsHandler {
	return &InvocationsHandler{sink: sink, log: log}
}

// List handles GET /api/invocations
func (h *InvocationsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}

	rows, err := h.sink.Recent(r.Context(), limit)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to read audit rows")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to read invocations")
		return
	}
	if rows == nil {
		rows = []*audit.InvocationRecord{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"invocations": rows,
		"count":       len(rows),
	})
}

// Health handles GET /healthz and GET /api/healthz
func Health(w http.ResponseWriter, _ *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
