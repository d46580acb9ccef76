// Package walker lists directory contents for the finder, either one level
// deep or as a parallel recursive walk.
package walker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"
)

// Sep terminates directory entries in a listing.
const Sep = "/"

// Options tunes a Walker.
type Options struct {
	// Workers is the number of recursive walk workers (0 = GOMAXPROCS).
	Workers int
	// ShowHidden includes dot-entries in recursive walks.
	ShowHidden bool
	// Exclude lists directory names pruned from recursive walks.
	Exclude []string
	// RespectIgnore prunes paths listed in .gitignore and .ignore files
	// found below the walk root.
	RespectIgnore bool
}

// Walker lists directories on the local file system.
type Walker struct {
	opts   Options
	logger *slog.Logger
}

// New creates a Walker. A nil logger discards output.
func New(opts Options, logger *slog.Logger) *Walker {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Walker{opts: opts, logger: logger}
}

// Walk returns the entries below dir relative to dir. Directory entries end
// with Sep. Only a failure to read dir itself is returned as an error;
// unreadable entries further down are skipped.
func (w *Walker) Walk(ctx context.Context, dir string, recursive bool) ([]string, error) {
	start := time.Now()

	var (
		out []string
		err error
	)
	if recursive {
		out, err = w.recursive(ctx, dir)
	} else {
		out, err = w.flat(dir)
	}
	if err != nil {
		return nil, err
	}

	w.logger.Debug("walker: listed",
		slog.String("dir", dir),
		slog.Bool("recursive", recursive),
		slog.Int("entries", len(out)),
		slog.Duration("took", time.Since(start)))
	return out, nil
}

func (w *Walker) flat(dir string) ([]string, error) {
	entries, err := readRoot(dir)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !utf8.ValidString(name) {
			continue
		}
		if e.IsDir() {
			name += Sep
		}
		out = append(out, name)
	}
	return out, nil
}

// job is a directory waiting to be read: its absolute path, its path
// relative to the walk root (without trailing Sep) and the ignore rules
// inherited from its ancestors.
type job struct {
	abs   string
	rel   string
	rules *ignoreRules
}

func (w *Walker) rulesFor(parent *ignoreRules, abs, rel string) *ignoreRules {
	if !w.opts.RespectIgnore {
		return nil
	}
	return parent.extend(abs, splitRel(rel))
}

func (w *Walker) recursive(ctx context.Context, dir string) ([]string, error) {
	entries, err := readRoot(dir)
	if err != nil {
		return nil, err
	}

	rules := w.rulesFor(nil, dir, "")
	q := newDirQueue()
	var out []string
	for _, e := range entries {
		rel, descend, ok := w.accept(e, "", rules)
		if !ok {
			continue
		}
		out = append(out, rel)
		if descend {
			q.push(job{abs: filepath.Join(dir, e.Name()), rel: e.Name(), rules: rules})
		}
	}
	q.closeIfIdle()

	results := make(chan string, 1024)
	g, gctx := errgroup.WithContext(ctx)
	for range w.opts.Workers {
		g.Go(func() error {
			w.work(gctx, q, results)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(results)
	}()

	for p := range results {
		out = append(out, p)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// work drains the queue until it is closed. Subdirectories are pushed
// before the current job is marked done so the queue cannot close early.
func (w *Walker) work(ctx context.Context, q *dirQueue, results chan<- string) {
	for {
		j, ok := q.pop()
		if !ok {
			return
		}
		if ctx.Err() == nil {
			w.visit(ctx, q, j, results)
		}
		q.done()
	}
}

func (w *Walker) visit(ctx context.Context, q *dirQueue, j job, results chan<- string) {
	entries, err := os.ReadDir(j.abs)
	if err != nil {
		w.logger.Debug("walker: skip",
			slog.String("path", j.abs),
			slog.String("error", err.Error()))
		if len(entries) == 0 {
			return
		}
	}
	rules := w.rulesFor(j.rules, j.abs, j.rel)
	for _, e := range entries {
		rel, descend, ok := w.accept(e, j.rel, rules)
		if !ok {
			continue
		}
		select {
		case results <- rel:
		case <-ctx.Done():
			return
		}
		if descend {
			q.push(job{abs: filepath.Join(j.abs, e.Name()), rel: strings.TrimSuffix(rel, Sep), rules: rules})
		}
	}
}

// accept decides whether a recursive-walk entry is listed and whether it is
// descended into.
func (w *Walker) accept(e os.DirEntry, parentRel string, rules *ignoreRules) (rel string, descend, ok bool) {
	name := e.Name()
	if !utf8.ValidString(name) {
		return "", false, false
	}
	if !w.opts.ShowHidden && strings.HasPrefix(name, ".") {
		return "", false, false
	}
	rel = name
	if parentRel != "" {
		rel = parentRel + Sep + name
	}
	if rules.ignored(splitRel(rel), e.IsDir()) {
		return "", false, false
	}
	if !e.IsDir() {
		return rel, false, true
	}
	if slices.Contains(w.opts.Exclude, name) {
		return "", false, false
	}
	return rel + Sep, true, true
}

func readRoot(dir string) ([]os.DirEntry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil && len(entries) == 0 {
		return nil, fmt.Errorf("walker: read root %s: %w", dir, err)
	}
	return entries, nil
}
