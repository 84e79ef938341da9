package audit

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"
)

// BigQuerySink streams invocation rows into <dataset>.<table> and reads them
// back for the operational endpoint. The table is day-partitioned on the Day
// column.
type BigQuerySink struct {
	client  *bigquery.Client
	project string
	dataset string
	table   string
}

// NewBigQuerySink creates a sink writing to project.dataset.table.
func NewBigQuerySink(ctx context.Context, project, dataset, table string) (*BigQuerySink, error) {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("bigquery client: %w", err)
	}
	return &BigQuerySink{
		client:  client,
		project: project,
		dataset: dataset,
		table:   table,
	}, nil
}

// Record streams one row via the insert buffer. Streaming is fine here since
// audit rows are append-only and never updated.
func (s *BigQuerySink) Record(ctx context.Context, rec *InvocationRecord) error {
	inserter := s.client.Dataset(s.dataset).Table(s.table).Inserter()
	if err := inserter.Put(ctx, rec); err != nil {
		return fmt.Errorf("insert invocation %s: %w", rec.InvocationID, err)
	}
	return nil
}

// Recent returns the latest limit rows ordered newest first.
func (s *BigQuerySink) Recent(ctx context.Context, limit int) ([]*InvocationRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	q := s.client.Query(fmt.Sprintf(`
		SELECT *
		FROM `+"`%s.%s.%s`"+`
		ORDER BY created_ts DESC
		LIMIT %d
	`, s.project, s.dataset, s.table, limit))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}

	var rows []*InvocationRecord
	for {
		var rec InvocationRecord
		err := it.Next(&rec)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read invocation row: %w", err)
		}
		rows = append(rows, &rec)
	}
	return rows, nil
}

// Close releases the underlying client.
func (s *BigQuerySink) Close() error {
	return s.client.Close()
}
