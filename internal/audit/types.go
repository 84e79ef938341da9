package audit

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
)

// InvocationRecord is one model call outcome in the audit table. One row is
// written per pipeline run, whether the model answered, was rate limited out,
// or the heuristic fallback served the response.
type InvocationRecord struct {
	InvocationID string `bigquery:"invocation_id"`
	RequestID    string `bigquery:"request_id"`

	Kind    string `bigquery:"analysis_kind"`
	Backend string `bigquery:"backend"`
	Model   string `bigquery:"model_name"`

	// Outcome is one of "success", "fallback", "saturated", "error".
	Outcome      string              `bigquery:"outcome"`
	ErrorMessage bigquery.NullString `bigquery:"error_message"`

	TransactionCount int   `bigquery:"transaction_count"`
	FastScreen       bool  `bigquery:"fast_screen"`
	InputTokens      int64 `bigquery:"input_tokens"`
	OutputTokens     int64 `bigquery:"output_tokens"`

	LatencyMS int64 `bigquery:"latency_ms"`

	CreatedTS time.Time  `bigquery:"created_ts"`
	Day       civil.Date `bigquery:"day"` // partition column
}
