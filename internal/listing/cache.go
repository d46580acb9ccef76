// Package listing caches the most recent directory listing so that
// consecutive keystrokes in the same directory never rewalk the file system.
package listing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Walker produces the entries of a directory relative to it.
type Walker interface {
	Walk(ctx context.Context, dir string, recursive bool) ([]string, error)
}

// Listing is one cached walk result. Entries is shared between every caller
// served from the cache and must not be modified.
type Listing struct {
	Dir       string
	Recursive bool
	Entries   []string
	WalkedAt  time.Time
	Took      time.Duration
}

// Matches reports whether l can serve a query for (dir, recursive).
func (l *Listing) Matches(dir string, recursive bool) bool {
	return l.Dir == dir && l.Recursive == recursive
}

// PopulateFunc is called after a fresh listing replaced the cached one.
type PopulateFunc func(Listing)

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the cache logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

// OnPopulate registers a callback invoked for every new listing.
func OnPopulate(fn PopulateFunc) Option {
	return func(c *Cache) {
		c.onPopulate = fn
	}
}

// OnHit registers a callback invoked for every lookup served from the slot.
func OnHit(fn func()) Option {
	return func(c *Cache) {
		c.onHit = fn
	}
}

// Cache is a single-slot listing cache. A query whose (dir, recursive) key
// differs from the cached one walks again and replaces the slot wholesale;
// there is no expiry.
type Cache struct {
	walker     Walker
	logger     *slog.Logger
	onPopulate PopulateFunc
	onHit      func()

	mu      sync.RWMutex
	current *Listing

	flight  singleflight.Group
	callsMu sync.Mutex
	calls   map[string]*walkCall

	hits   atomic.Int64
	misses atomic.Int64
}

// maxRejoin bounds how often a caller restarts a walk that was cancelled
// under it.
const maxRejoin = 3

// walkCall is the context of an in-flight walk, shared by its waiters. It
// is cancelled once the last waiter gives up.
type walkCall struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// New creates an empty cache backed by walker.
func New(walker Walker, opts ...Option) *Cache {
	c := &Cache{walker: walker, calls: make(map[string]*walkCall)}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return c
}

// GetOrPopulate returns the entries of dir, walking it on a cache miss.
// Concurrent misses for the same key share one walk, which outlives any
// single cancelled caller; misses for different keys walk independently and
// the last one to finish owns the slot.
func (c *Cache) GetOrPopulate(ctx context.Context, dir string, recursive bool) ([]string, error) {
	c.mu.RLock()
	if l := c.current; l != nil && l.Matches(dir, recursive) {
		entries := l.Entries
		c.mu.RUnlock()
		c.hits.Add(1)
		c.logger.Debug("listing: hit", slog.String("dir", dir), slog.Bool("recursive", recursive))
		if c.onHit != nil {
			c.onHit()
		}
		return entries, nil
	}
	c.mu.RUnlock()

	key := dir + "\x00" + strconv.FormatBool(recursive)
	for attempt := 0; ; attempt++ {
		l, shared, err := c.join(ctx, key, dir, recursive)
		// The joined walk was cancelled because every earlier waiter left;
		// this caller is still interested, so start over.
		if err != nil && ctx.Err() == nil && errors.Is(err, context.Canceled) && attempt < maxRejoin {
			continue
		}
		if err != nil {
			return nil, err
		}
		if shared {
			c.logger.Debug("listing: shared walk", slog.String("dir", dir), slog.Bool("recursive", recursive))
		}
		return l.Entries, nil
	}
}

// join waits for the walk of key, starting it if needed. The walk runs on a
// context detached from any single caller and is cancelled only when all of
// its waiters have returned.
func (c *Cache) join(ctx context.Context, key, dir string, recursive bool) (*Listing, bool, error) {
	c.callsMu.Lock()
	call, ok := c.calls[key]
	if !ok {
		wctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		call = &walkCall{ctx: wctx, cancel: cancel}
		c.calls[key] = call
	}
	call.waiters++
	c.callsMu.Unlock()
	defer c.leave(key, call)

	ch := c.flight.DoChan(key, func() (any, error) {
		return c.populate(call.ctx, dir, recursive)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*Listing), res.Shared, nil
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (c *Cache) leave(key string, call *walkCall) {
	c.callsMu.Lock()
	defer c.callsMu.Unlock()
	call.waiters--
	if call.waiters == 0 {
		call.cancel()
		delete(c.calls, key)
	}
}

func (c *Cache) populate(ctx context.Context, dir string, recursive bool) (*Listing, error) {
	start := time.Now()
	entries, err := c.walker.Walk(ctx, dir, recursive)
	if err != nil {
		return nil, err
	}
	l := &Listing{
		Dir:       dir,
		Recursive: recursive,
		Entries:   entries,
		WalkedAt:  start,
		Took:      time.Since(start),
	}

	c.mu.Lock()
	c.current = l
	c.mu.Unlock()
	c.misses.Add(1)

	c.logger.Info("listing: populated",
		slog.String("dir", dir),
		slog.Bool("recursive", recursive),
		slog.Int("entries", len(entries)),
		slog.Duration("took", l.Took))
	if c.onPopulate != nil {
		c.onPopulate(*l)
	}
	return l, nil
}

// Current returns a copy of the cached listing, if any.
func (c *Cache) Current() (Listing, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return Listing{}, false
	}
	return *c.current, true
}

// Reset empties the slot.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
}

// Stats returns the number of cache hits and walks performed so far.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
