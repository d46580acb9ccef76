// Package match scores listing entries against a fuzzy pattern in parallel.
package match

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Candidate is a listing entry that survived matching.
type Candidate struct {
	Path  string
	Score int
}

// minChunk keeps tiny listings on a single goroutine.
const minChunk = 512

// Score matches every item against pattern using up to workers goroutines
// (0 = GOMAXPROCS). Items that do not match are dropped. An empty pattern
// keeps every item with score 0. Output order follows input order.
func Score(ctx context.Context, pattern string, items []string, workers int) ([]Candidate, error) {
	p := Compile(pattern)
	if p.Empty() {
		out := make([]Candidate, len(items))
		for i, item := range items {
			out[i] = Candidate{Path: item}
		}
		return out, nil
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	size := max((len(items)+workers-1)/workers, minChunk)
	parts := make([][]Candidate, (len(items)+size-1)/size)

	g, gctx := errgroup.WithContext(ctx)
	for i := range parts {
		lo := i * size
		hi := min(lo+size, len(items))
		g.Go(func() error {
			sc := p.NewScorer()
			var out []Candidate
			for n, item := range items[lo:hi] {
				if n%1024 == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				if score, ok := sc.Score(item); ok {
					out = append(out, Candidate{Path: item, Score: score})
				}
			}
			parts[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, part := range parts {
		total += len(part)
	}
	out := make([]Candidate, 0, total)
	for _, part := range parts {
		out = append(out, part...)
	}
	return out, nil
}
