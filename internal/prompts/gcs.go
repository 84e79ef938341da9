package prompts

import (
	"context"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
	"gopkg.in/yaml.v3"
)

// GCSSource fetches a YAML template map from a Cloud Storage object.
// It assumes Application Default Credentials are configured.
type GCSSource struct {
	client *storage.Client
	bucket string
	object string
}

// NewGCSSource wraps an existing storage client as a template source.
func NewGCSSource(client *storage.Client, bucket, object string) *GCSSource {
	return &GCSSource{client: client, bucket: bucket, object: object}
}

// Fetch downloads and parses the template object.
func (g *GCSSource) Fetch(ctx context.Context) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	r, err := g.client.Bucket(g.bucket).Object(g.object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open gs://%s/%s: %w", g.bucket, g.object, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read gs://%s/%s: %w", g.bucket, g.object, err)
	}

	parsed := map[string]string{}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("parse gs://%s/%s: %w", g.bucket, g.object, err)
	}
	return parsed, nil
}
