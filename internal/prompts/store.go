// Package prompts renders named prompt templates. Templates layer three
// sources: in-code defaults, an optional GCS object refreshed on an interval,
// and an optional local YAML file reloaded whenever its mtime changes, so
// template edits are observable at the next render without a restart.
package prompts

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// placeholderRE matches {name}-style placeholders. The pattern deliberately
// requires a bare lowercase identifier so JSON braces in template bodies are
// left alone.
var placeholderRE = regexp.MustCompile(`\{[a-z][a-z0-9_]*\}`)

// remoteSource supplies templates from outside the process, e.g. GCS.
type remoteSource interface {
	Fetch(ctx context.Context) (map[string]string, error)
}

// Store resolves and renders named templates. Safe for concurrent use.
type Store struct {
	mu sync.Mutex

	path     string
	modTime  time.Time
	fromFile map[string]string

	remote       remoteSource
	refreshEvery time.Duration
	lastRefresh  time.Time
	fromRemote   map[string]string
}

// NewStore creates a template store. path may be empty, in which case only
// the defaults (and any remote source) are used.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// WithRemote attaches a remote template source refreshed at the given
// interval. Remote templates sit between the defaults and the local file.
func (s *Store) WithRemote(src remoteSource, refreshEvery time.Duration) *Store {
	s.remote = src
	s.refreshEvery = refreshEvery
	return s
}

// Render produces the fully substituted prompt for the named template.
// Unknown placeholders render as the empty string rather than failing: a
// template edit must never break a request.
func (s *Store) Render(ctx context.Context, name string, vars map[string]string) (string, error) {
	tmpl, err := s.lookup(ctx, name)
	if err != nil {
		return "", err
	}
	return Substitute(tmpl, vars), nil
}

// Substitute applies the safe substitution policy to a template string.
func Substitute(tmpl string, vars map[string]string) string {
	return placeholderRE.ReplaceAllStringFunc(tmpl, func(m string) string {
		return vars[strings.Trim(m, "{}")]
	})
}

func (s *Store) lookup(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refreshRemote(ctx)
	s.reloadFile()

	if t, ok := s.fromFile[name]; ok {
		return t, nil
	}
	if t, ok := s.fromRemote[name]; ok {
		return t, nil
	}
	if t, ok := defaults[name]; ok {
		return t, nil
	}
	return "", fmt.Errorf("prompts: unknown template %q", name)
}

// reloadFile re-reads the template file when its mtime changed. A stat per
// render is cheap at this call volume. Read or parse failures keep the last
// good set.
func (s *Store) reloadFile() {
	if s.path == "" {
		return
	}
	info, err := os.Stat(s.path)
	if err != nil {
		return
	}
	if !info.ModTime().After(s.modTime) {
		return
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	parsed := map[string]string{}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return
	}
	s.fromFile = parsed
	s.modTime = info.ModTime()
}

func (s *Store) refreshRemote(ctx context.Context) {
	if s.remote == nil {
		return
	}
	if !s.lastRefresh.IsZero() && time.Since(s.lastRefresh) < s.refreshEvery {
		return
	}
	s.lastRefresh = time.Now()

	parsed, err := s.remote.Fetch(ctx)
	if err != nil {
		return
	}
	s.fromRemote = parsed
}
