package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds every environment-style option the agent recognizes.
// Defaults mirror the in-cluster deployment; everything is overridable.
type Config struct {
	Port string

	// Model backend selection, resolved once at startup.
	Backend  string // "gemini" or "gateway"
	Model    string
	Project  string
	Location string

	MaxOutputTokens int
	ThinkingBudget  int // 0 leaves the model default in place

	MaxConcurrentCalls int
	RequestsPerMinute  int
	CacheTTL           time.Duration

	MaxTransactionsPerPrompt int
	FastScreenDefault        bool
	FallbackOnFailure        bool

	PromptsPath            string
	PromptsGCSBucket       string
	PromptsGCSObject       string
	PromptsRefreshInterval time.Duration

	AuditDataset string
	AuditTable   string

	GatewayURL string

	TransactionHistoryURL string
	BalanceReaderURL      string
	UserServiceURL        string

	MonitorAccountID  string
	MonitorWindowDays int
	MonitorInterval   time.Duration
	MonitorUsername   string
	MonitorPassword   string
}

// Load reads the configuration from the environment.
func Load() *Config {
	return &Config{
		Port: envString("PORT", "8080"),

		Backend:  envString("AGENT_BACKEND", "gemini"),
		Model:    envString("VERTEX_MODEL", "gemini-2.5-pro"),
		Project:  envString("GOOGLE_CLOUD_PROJECT", ""),
		Location: envString("VERTEX_LOCATION", "us-central1"),

		MaxOutputTokens: envInt("MAX_OUTPUT_TOKENS", 8192),
		ThinkingBudget:  envInt("THINKING_BUDGET_TOKENS", 0),

		MaxConcurrentCalls: envInt("MAX_CONCURRENT_CALLS", 4),
		RequestsPerMinute:  envInt("REQUESTS_PER_MINUTE", 30),
		CacheTTL:           envDuration("RESULT_CACHE_TTL", 5*time.Minute),

		MaxTransactionsPerPrompt: envInt("MAX_TRANSACTIONS_PER_PROMPT", 50),
		FastScreenDefault:        envBool("FAST_SCREEN_DEFAULT", false),
		FallbackOnFailure:        envBool("FALLBACK_ON_FAILURE", true),

		PromptsPath:            envString("PROMPTS_PATH", ""),
		PromptsGCSBucket:       envString("PROMPTS_GCS_BUCKET", ""),
		PromptsGCSObject:       envString("PROMPTS_GCS_OBJECT", "prompts.yaml"),
		PromptsRefreshInterval: envDuration("PROMPTS_REFRESH_INTERVAL", 5*time.Minute),

		AuditDataset: envString("AUDIT_DATASET", ""),
		AuditTable:   envString("AUDIT_TABLE", "model_invocations"),

		GatewayURL: envString("AGENT_GATEWAY_URL", ""),

		TransactionHistoryURL: envString("TRANSACTION_HISTORY_API_URL", "http://transactionhistory:8080"),
		BalanceReaderURL:      envString("BALANCE_READER_API_URL", "http://balancereader:8080"),
		UserServiceURL:        envString("USERSERVICE_API_URL", "http://userservice:8080"),

		MonitorAccountID:  envString("MONITOR_ACCOUNT_ID", "1011226111"),
		MonitorWindowDays: envInt("MONITOR_WINDOW_DAYS", 30),
		MonitorInterval:   envDuration("MONITOR_POLL_INTERVAL", 10*time.Second),
		MonitorUsername:   envString("MONITOR_USERNAME", "testuser"),
		MonitorPassword:   envString("MONITOR_PASSWORD", "bankofanthos"),
	}
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
