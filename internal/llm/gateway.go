package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// gatewayBackend forwards prompts to an external agent-gateway service over
// HTTP instead of calling the model API directly. The gateway applies its own
// schema constraints; Request.Schema is ignored here.
type gatewayBackend struct {
	httpClient *http.Client
	url        string
}

func newGatewayBackend(cfg Config) (Backend, error) {
	if cfg.GatewayURL == "" {
		return nil, fmt.Errorf("gateway backend requires AGENT_GATEWAY_URL")
	}
	return &gatewayBackend{
		url: strings.TrimSuffix(cfg.GatewayURL, "/") + "/chat",
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}, nil
}

func (b *gatewayBackend) Name() string { return "gateway" }

func (b *gatewayBackend) Generate(ctx context.Context, req Request) (Response, error) {
	body, err := json.Marshal(map[string]string{"prompt": req.Prompt})
	if err != nil {
		return Response{}, fmt.Errorf("marshal gateway request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.url, bytes.NewReader(body))
	if err != nil {
		return Response{}, fmt.Errorf("create gateway request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.httpClient.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("gateway request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read gateway response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return Response{}, &RateLimitError{
			Err:        fmt.Errorf("gateway rate limited: %s", payload),
			RetryAfter: retryAfterHeader(resp.Header.Get("Retry-After")),
		}
	}
	if resp.StatusCode != http.StatusOK {
		return Response{}, fmt.Errorf("gateway error (status %d): %s", resp.StatusCode, payload)
	}

	// The gateway wraps the model output under "result"; pass it through as
	// text so the recovery layer treats both backends identically.
	var wrapped struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal(payload, &wrapped); err == nil && len(wrapped.Result) > 0 {
		return Response{Text: string(wrapped.Result)}, nil
	}
	return Response{Text: string(payload)}, nil
}

func retryAfterHeader(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
