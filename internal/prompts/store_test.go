package prompts

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubstitute(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		vars map[string]string
		want string
	}{
		{
			name: "known placeholder",
			tmpl: "Transactions:\n{transactions}",
			vars: map[string]string{"transactions": "[]"},
			want: "Transactions:\n[]",
		},
		{
			name: "missing placeholder renders empty",
			tmpl: "Context: {account_context}!",
			vars: nil,
			want: "Context: !",
		},
		{
			name: "json braces untouched",
			tmpl: `Return {"summary": "..."} with {transactions}`,
			vars: map[string]string{"transactions": "X"},
			want: `Return {"summary": "..."} with X`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Substitute(tt.tmpl, tt.vars))
		})
	}
}

func TestRenderDefaults(t *testing.T) {
	s := NewStore("")

	out, err := s.Render(context.Background(), "budget_coach", map[string]string{
		"transactions": `[{"date":"2024-01-01"}]`,
	})
	require.NoError(t, err)
	assert.Contains(t, out, `[{"date":"2024-01-01"}]`)
	assert.NotContains(t, out, "{transactions}")
	assert.NotContains(t, out, "{account_context}")
}

func TestRenderUnknownTemplate(t *testing.T) {
	s := NewStore("")
	_, err := s.Render(context.Background(), "nope", nil)
	assert.Error(t, err)
}

func TestRenderHotReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("budget_coach: \"v1 {transactions}\"\n"), 0o644))

	s := NewStore(path)
	ctx := context.Background()

	out, err := s.Render(ctx, "budget_coach", map[string]string{"transactions": "T"})
	require.NoError(t, err)
	assert.Equal(t, "v1 T", out)

	require.NoError(t, os.WriteFile(path, []byte("budget_coach: \"v2 {transactions}\"\n"), 0o644))
	// Force a newer mtime; some filesystems have coarse resolution.
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	out, err = s.Render(ctx, "budget_coach", map[string]string{"transactions": "T"})
	require.NoError(t, err)
	assert.Equal(t, "v2 T", out)
}

func TestRenderFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte("budget_coach: \"custom\"\n"), 0o644))

	s := NewStore(path)
	out, err := s.Render(context.Background(), "fraud_detect", map[string]string{"transactions": "[]"})
	require.NoError(t, err)
	assert.Contains(t, out, "fraud analyst")
}

type staticRemote struct {
	templates map[string]string
	calls     int
}

func (r *staticRemote) Fetch(context.Context) (map[string]string, error) {
	r.calls++
	return r.templates, nil
}

func TestRenderRemoteLayering(t *testing.T) {
	remote := &staticRemote{templates: map[string]string{"spending_analyze": "remote {transactions}"}}
	s := NewStore("").WithRemote(remote, time.Hour)
	ctx := context.Background()

	out, err := s.Render(ctx, "spending_analyze", map[string]string{"transactions": "T"})
	require.NoError(t, err)
	assert.Equal(t, "remote T", out)

	// Within the refresh interval the remote is not fetched again.
	_, err = s.Render(ctx, "spending_analyze", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, remote.calls)
}
