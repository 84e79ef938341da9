package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// geminiBackend calls Gemini through the Google GenAI SDK, in Vertex mode
// when a project is configured and API-key mode otherwise.
type geminiBackend struct {
	client          *genai.Client
	model           string
	maxOutputTokens int32
	thinkingBudget  int32
}

func newGeminiBackend(ctx context.Context, cfg Config) (Backend, error) {
	cc := &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	}
	if cfg.Project != "" {
		cc.Backend = genai.BackendVertexAI
		cc.Project = cfg.Project
		cc.Location = cfg.Location
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &geminiBackend{
		client:          client,
		model:           cfg.Model,
		maxOutputTokens: int32(cfg.MaxOutputTokens),
		thinkingBudget:  int32(cfg.ThinkingBudget),
	}, nil
}

func (b *geminiBackend) Name() string { return "gemini" }

func (b *geminiBackend) Generate(ctx context.Context, req Request) (Response, error) {
	// Temperature 0 keeps repeated analyses of the same window stable.
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr[float32](0),
		MaxOutputTokens: b.maxOutputTokens,
	}
	if b.thinkingBudget > 0 {
		config.ThinkingConfig = &genai.ThinkingConfig{
			ThinkingBudget: genai.Ptr(b.thinkingBudget),
		}
	}
	if req.Schema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = req.Schema
	}

	resp, err := b.client.Models.GenerateContent(ctx, b.model, genai.Text(req.Prompt), config)
	if err != nil {
		return Response{}, mapGenAIError(err)
	}

	text := resp.Text()
	if text == "" {
		return Response{}, fmt.Errorf("empty response from model %s", b.model)
	}

	out := Response{Text: text}
	if um := resp.UsageMetadata; um != nil {
		out.InputTokens = int(um.PromptTokenCount)
		out.OutputTokens = int(um.CandidatesTokenCount)
	}
	return out, nil
}

// mapGenAIError converts provider rate-limit responses into *RateLimitError
// so the invoker can tell them apart from hard failures.
func mapGenAIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return &RateLimitError{Err: err, RetryAfter: retryDelayFromDetails(apiErr.Details)}
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) && gErr.Code == http.StatusTooManyRequests {
		return &RateLimitError{Err: err}
	}

	return err
}

// retryDelayFromDetails pulls the google.rpc.RetryInfo delay out of the error
// detail blob when the server provides one.
func retryDelayFromDetails(details []map[string]any) time.Duration {
	for _, d := range details {
		typeURL, _ := d["@type"].(string)
		if !strings.HasSuffix(typeURL, "RetryInfo") {
			continue
		}
		if s, ok := d["retryDelay"].(string); ok && s != "" {
			if dur, err := time.ParseDuration(s); err == nil {
				return dur
			}
		}
	}
	return 0
}
