package listing

import (
	"context"
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// countingWalker records every walk and returns a listing derived from its key.
type countingWalker struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (w *countingWalker) Walk(_ context.Context, dir string, recursive bool) ([]string, error) {
	w.calls.Add(1)
	if w.delay > 0 {
		time.Sleep(w.delay)
	}
	if w.err != nil {
		return nil, w.err
	}
	if recursive {
		return []string{dir + "-r/", dir + "-r/file"}, nil
	}
	return []string{dir + "-flat"}, nil
}

func TestSameKeyDoesNotRewalk(t *testing.T) {
	w := &countingWalker{}
	c := New(w)
	ctx := context.Background()

	first, err := c.GetOrPopulate(ctx, "/home/u/src", false)
	if err != nil {
		t.Fatalf("GetOrPopulate: %v", err)
	}
	second, err := c.GetOrPopulate(ctx, "/home/u/src", false)
	if err != nil {
		t.Fatalf("GetOrPopulate: %v", err)
	}
	if got := w.calls.Load(); got != 1 {
		t.Errorf("walks = %d, want 1", got)
	}
	if !slices.Equal(first, second) {
		t.Errorf("second = %v, want %v", second, first)
	}
	if &first[0] != &second[0] {
		t.Error("cache hit should share the cached entries")
	}
	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("stats = (%d, %d), want (1, 1)", hits, misses)
	}
}

func TestKeyChangeWalksExactlyOnce(t *testing.T) {
	w := &countingWalker{}
	c := New(w)
	ctx := context.Background()

	steps := []struct {
		dir       string
		recursive bool
		walks     int32
	}{
		{"/a", false, 1},
		{"/a", false, 1},
		{"/a", true, 2}, // recursive flag change
		{"/a", true, 2},
		{"/b", true, 3}, // directory change
		{"/a", false, 4}, // the old key was evicted
		{"/a", false, 4},
	}
	for i, s := range steps {
		if _, err := c.GetOrPopulate(ctx, s.dir, s.recursive); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
		if got := w.calls.Load(); got != s.walks {
			t.Errorf("step %d (%s, %v): walks = %d, want %d", i, s.dir, s.recursive, got, s.walks)
		}
	}
}

func TestFailedWalkKeepsPreviousListing(t *testing.T) {
	w := &countingWalker{}
	c := New(w)
	ctx := context.Background()

	if _, err := c.GetOrPopulate(ctx, "/ok", false); err != nil {
		t.Fatal(err)
	}
	w.err = errors.New("boom")
	if _, err := c.GetOrPopulate(ctx, "/broken", false); err == nil {
		t.Fatal("expected walk error")
	}
	cur, ok := c.Current()
	if !ok || cur.Dir != "/ok" {
		t.Errorf("current = %+v, %v; want /ok listing", cur, ok)
	}
}

func TestConcurrentMissesShareOneWalk(t *testing.T) {
	w := &countingWalker{delay: 50 * time.Millisecond}
	c := New(w)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.GetOrPopulate(context.Background(), "/same", true); err != nil {
				t.Errorf("GetOrPopulate: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := w.calls.Load(); got != 1 {
		t.Errorf("walks = %d, want 1", got)
	}
}

func TestOnPopulateAndReset(t *testing.T) {
	var got []Listing
	c := New(&countingWalker{}, OnPopulate(func(l Listing) { got = append(got, l) }))
	ctx := context.Background()

	_, _ = c.GetOrPopulate(ctx, "/x", true)
	_, _ = c.GetOrPopulate(ctx, "/x", true)
	if len(got) != 1 || got[0].Dir != "/x" || !got[0].Recursive || len(got[0].Entries) != 2 {
		t.Fatalf("populate events = %+v", got)
	}

	c.Reset()
	if _, ok := c.Current(); ok {
		t.Error("Reset should empty the slot")
	}
	_, _ = c.GetOrPopulate(ctx, "/x", true)
	if len(got) != 2 {
		t.Errorf("populate events after reset = %d, want 2", len(got))
	}
}

func TestOnHitCalledForCachedLookups(t *testing.T) {
	var hits atomic.Int32
	c := New(&countingWalker{}, OnHit(func() { hits.Add(1) }))
	ctx := context.Background()

	for range 3 {
		if _, err := c.GetOrPopulate(ctx, "/srv", true); err != nil {
			t.Fatalf("GetOrPopulate: %v", err)
		}
	}
	if got := hits.Load(); got != 2 {
		t.Errorf("OnHit calls = %d, want 2", got)
	}
}

// gatedWalker blocks every walk until release is closed or ctx ends.
type gatedWalker struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func newGatedWalker() *gatedWalker {
	return &gatedWalker{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (w *gatedWalker) Walk(ctx context.Context, dir string, _ bool) ([]string, error) {
	w.calls.Add(1)
	w.started <- struct{}{}
	select {
	case <-w.release:
		return []string{dir + "-entry"}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestSharedWalkSurvivesFirstCallerCancel(t *testing.T) {
	w := newGatedWalker()
	c := New(w)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.GetOrPopulate(ctxA, "/shared", true)
		errA <- err
	}()
	<-w.started

	type result struct {
		entries []string
		err     error
	}
	resB := make(chan result, 1)
	go func() {
		entries, err := c.GetOrPopulate(context.Background(), "/shared", true)
		resB <- result{entries, err}
	}()
	// Let B join the in-flight walk before A leaves.
	time.Sleep(20 * time.Millisecond)

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Errorf("caller A: err = %v, want context.Canceled", err)
	}

	close(w.release)
	r := <-resB
	if r.err != nil {
		t.Fatalf("caller B: err = %v, want success", r.err)
	}
	if len(r.entries) != 1 || r.entries[0] != "/shared-entry" {
		t.Errorf("caller B: entries = %v", r.entries)
	}
	if cur, ok := c.Current(); !ok || cur.Dir != "/shared" {
		t.Errorf("current = %+v, %v; want /shared cached", cur, ok)
	}
	if got := w.calls.Load(); got != 1 {
		t.Errorf("walks = %d, want 1", got)
	}
}

func TestLoneCancelledWalkIsNotCached(t *testing.T) {
	w := newGatedWalker()
	c := New(w)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.GetOrPopulate(ctx, "/lone", false)
		errCh <- err
	}()
	<-w.started
	cancel()

	if err := <-errCh; !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	// The walk itself is cancelled once nobody waits for it; give it a
	// moment to unwind.
	time.Sleep(50 * time.Millisecond)
	if _, ok := c.Current(); ok {
		t.Error("cancelled walk must not populate the cache")
	}
	c.callsMu.Lock()
	pending := len(c.calls)
	c.callsMu.Unlock()
	if pending != 0 {
		t.Errorf("pending walks = %d, want 0", pending)
	}
}
