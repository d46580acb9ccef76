// Package finder answers finder queries: it parses the input, fetches the
// directory listing through the cache, scores and ranks the entries and
// wraps the best ones into result items.
package finder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/sowilo/internal/apperr"
	"github.com/starford/sowilo/internal/listing"
	"github.com/starford/sowilo/internal/match"
	"github.com/starford/sowilo/internal/metrics"
	"github.com/starford/sowilo/internal/models"
	"github.com/starford/sowilo/internal/opener"
	"github.com/starford/sowilo/internal/query"
	"github.com/starford/sowilo/internal/rank"
)

// Result is the answer to one query.
type Result struct {
	ID    string        `json:"id"`
	Query query.Query   `json:"query"`
	Dir   string        `json:"dir"`
	Items []models.Item `json:"items"`
	Took  time.Duration `json:"took"`
}

// QueryEvent describes a finished query.
type QueryEvent struct {
	ID        string
	Raw       string
	Dir       string
	Recursive bool
	Results   int
	Took      time.Duration
	Err       error
}

// Option configures a Finder.
type Option func(*Finder)

// WithLogger sets the finder logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Finder) {
		f.logger = logger
	}
}

// WithWorkers sets the number of scoring goroutines (0 = GOMAXPROCS).
func WithWorkers(n int) Option {
	return func(f *Finder) {
		f.workers = n
	}
}

// WithMetrics records query metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(f *Finder) {
		f.metrics = m
	}
}

// OnQuery registers a callback invoked after every query.
func OnQuery(fn func(QueryEvent)) Option {
	return func(f *Finder) {
		f.onQuery = fn
	}
}

// Finder runs queries below a root directory.
type Finder struct {
	root    string
	cache   *listing.Cache
	workers int
	logger  *slog.Logger
	metrics *metrics.Metrics
	onQuery func(QueryEvent)
}

// New creates a Finder whose non-rooted queries resolve against root.
func New(root string, cache *listing.Cache, opts ...Option) (*Finder, error) {
	if root == "" {
		return nil, apperr.ErrNoRoot
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("finder: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("finder: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("finder: root %s: %w", abs, apperr.ErrNotDirectory)
	}

	f := &Finder{root: abs, cache: cache}
	for _, opt := range opts {
		opt(f)
	}
	if f.logger == nil {
		f.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return f, nil
}

// Root returns the absolute search root.
func (f *Finder) Root() string {
	return f.root
}

// Resolve maps a search directory to an absolute path: rooted directories
// are taken as is, everything else is joined onto the search root.
func (f *Finder) Resolve(dir string) string {
	if strings.HasPrefix(dir, query.Sep) {
		return filepath.Clean(filepath.FromSlash(dir))
	}
	return filepath.Join(f.root, filepath.FromSlash(dir))
}

// Query runs raw and never fails: errors are logged and turn into an empty
// item list.
func (f *Finder) Query(ctx context.Context, raw string) *Result {
	res, err := f.Find(ctx, raw)
	if err != nil {
		f.logger.Warn("finder: query failed",
			slog.String("query", raw),
			slog.String("error", err.Error()))
		return &Result{
			ID:    res.ID,
			Query: res.Query,
			Dir:   res.Dir,
			Items: []models.Item{},
			Took:  res.Took,
		}
	}
	return res
}

// Find runs raw. The returned Result is never nil; on error it carries the
// parsed query and no items.
func (f *Finder) Find(ctx context.Context, raw string) (*Result, error) {
	start := time.Now()
	q := query.Parse(raw)
	res := &Result{
		ID:    uuid.NewString(),
		Query: q,
		Dir:   f.Resolve(q.Dir),
	}
	logger := f.logger.With(slog.String("query_id", res.ID))

	items, err := f.find(ctx, logger, q, res.Dir)
	res.Items = items
	res.Took = time.Since(start)

	if f.metrics != nil {
		f.metrics.RecordQuery(len(items), res.Took, err != nil)
	}
	if f.onQuery != nil {
		f.onQuery(QueryEvent{
			ID:        res.ID,
			Raw:       raw,
			Dir:       res.Dir,
			Recursive: q.Recursive,
			Results:   len(items),
			Took:      res.Took,
			Err:       err,
		})
	}
	if err != nil {
		return res, err
	}

	logger.Debug("finder: query done",
		slog.String("dir", res.Dir),
		slog.String("pattern", q.Pattern),
		slog.Bool("recursive", q.Recursive),
		slog.Int("items", len(items)),
		slog.Duration("took", res.Took))
	return res, nil
}

func (f *Finder) find(ctx context.Context, logger *slog.Logger, q query.Query, absDir string) ([]models.Item, error) {
	entries, err := f.cache.GetOrPopulate(ctx, absDir, q.Recursive)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	candidates, err := match.Score(ctx, q.Pattern, entries, f.workers)
	if err != nil {
		return nil, fmt.Errorf("finder: score: %w", err)
	}
	logger.Debug("finder: ranking", slog.Int("matched", len(candidates)), slog.Duration("took", time.Since(start)))

	start = time.Now()
	rank.Rank(candidates)
	items := buildItems(q, absDir, rank.Top(candidates))
	logger.Debug("finder: resorting", slog.Duration("took", time.Since(start)))

	return items, nil
}

func buildItems(q query.Query, absDir string, top []match.Candidate) []models.Item {
	items := make([]models.Item, len(top))
	for i, c := range top {
		items[i] = models.Item{
			Label: models.Label(c.Path, c.Score),
			Path:  c.Path,
			Score: c.Score,
			IsDir: strings.HasSuffix(c.Path, query.Sep),
			Actions: models.Actions{
				Complete: models.Action{
					Kind:      models.ActionComplete,
					SearchDir: q.Dir,
					Path:      c.Path,
				},
				Activate: models.Action{
					Kind:      models.ActionActivate,
					SearchDir: q.Dir,
					Path:      c.Path,
					AbsPath:   filepath.Join(absDir, filepath.FromSlash(c.Path)),
				},
				ParentDir: models.Action{
					Kind:      models.ActionParentDir,
					SearchDir: q.Dir,
					Pattern:   q.Pattern,
				},
			},
		}
	}
	return items
}

// Perform evaluates an action coming back from a host and carries out its
// open effects with op. The target of an activate action is recomputed from
// SearchDir and Path; a mismatching AbsPath or a Path escaping its search
// directory is rejected.
func (f *Finder) Perform(ctx context.Context, a models.Action, op opener.Opener) ([]models.Effect, error) {
	if a.Kind == models.ActionActivate {
		dir := f.Resolve(a.SearchDir)
		target := filepath.Join(dir, filepath.FromSlash(a.Path))
		rel, err := filepath.Rel(dir, target)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return nil, fmt.Errorf("finder: activate %q: %w", a.Path, apperr.ErrOutsideRoot)
		}
		if a.AbsPath != "" && filepath.Clean(a.AbsPath) != target {
			return nil, fmt.Errorf("finder: activate %q: %w", a.AbsPath, apperr.ErrOutsideRoot)
		}
		a.AbsPath = target
	}

	effects, err := a.Effects()
	if err != nil {
		return nil, err
	}
	for _, e := range effects {
		if e.Kind != models.EffectOpen {
			continue
		}
		if err := op.Open(ctx, e.Path); err != nil {
			return nil, err
		}
	}
	return effects, nil
}
