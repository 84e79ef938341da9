// Package llm wraps the hosted generative model behind a backend strategy
// and supplies the throttling, retry and response-recovery discipline around
// it.
package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// Request is a single generation request. A nil Schema asks for plain text;
// otherwise the backend constrains the response to the given JSON schema.
type Request struct {
	Prompt string
	Schema *genai.Schema
}

// Response carries the raw model text plus token accounting for the audit
// trail.
type Response struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// Backend is the model-provider strategy. One variant is selected at startup
// from configuration; requests never branch on the environment.
type Backend interface {
	Name() string
	Generate(ctx context.Context, req Request) (Response, error)
}

// Config selects and parameterizes a backend.
type Config struct {
	Provider        string // "gemini" or "gateway"
	Model           string
	Project         string
	Location        string
	MaxOutputTokens int
	ThinkingBudget  int
	GatewayURL      string
}

// NewBackend creates the configured model backend.
func NewBackend(ctx context.Context, cfg Config) (Backend, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "gemini":
		return newGeminiBackend(ctx, cfg)
	case "gateway":
		return newGatewayBackend(cfg)
	default:
		return nil, fmt.Errorf("unsupported model backend: %s", cfg.Provider)
	}
}
