package audit

import "context"

// Sink records model invocation outcomes. Writes are best effort: callers
// log failures and move on, analysis responses never block on the audit path.
type Sink interface {
	// Record writes one invocation row.
	Record(ctx context.Context, rec *InvocationRecord) error

	// Recent returns the latest invocation rows, newest first.
	Recent(ctx context.Context, limit int) ([]*InvocationRecord, error)
}

// NopSink discards records. Used when no audit dataset is configured.
type NopSink struct{}

func (NopSink) Record(context.Context, *InvocationRecord) error { return nil }

func (NopSink) Recent(context.Context, int) ([]*InvocationRecord, error) { return nil, nil }
