package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(100*time.Millisecond, nil)
	defer b.Close()
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients")
	}
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after unsub")
	}
}

func TestPublishListingDelivery(t *testing.T) {
	b := NewBroker(100*time.Millisecond, nil)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishListing(ListingEvent{Dir: "/home/u/src", Recursive: true, Entries: 12})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "event: listing.populated") {
			t.Errorf("missing event type in %q", s)
		}
		if !strings.Contains(s, `"dir":"/home/u/src"`) || !strings.Contains(s, `"entries":12`) {
			t.Errorf("missing data in %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishQuery_Throttle(t *testing.T) {
	b := NewBroker(500*time.Millisecond, nil)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// First query is delivered, the next keystroke inside the window is not,
	// failures always are.
	b.PublishQuery(QueryEvent{ID: "1", Query: "s"})
	b.PublishQuery(QueryEvent{ID: "2", Query: "sr"})
	b.PublishQuery(QueryEvent{ID: "3", Query: "nope/x", Error: "not found"})

	time.Sleep(50 * time.Millisecond)
	var got []string
loop:
	for {
		select {
		case msg := <-ch:
			got = append(got, string(msg))
		default:
			break loop
		}
	}

	if len(got) != 2 {
		t.Fatalf("events = %d, want 2: %q", len(got), got)
	}
	if !strings.Contains(got[0], `"id":"1"`) || !strings.Contains(got[1], `"id":"3"`) {
		t.Errorf("unexpected events %q", got)
	}
}

func TestOnSendHook(t *testing.T) {
	var (
		mu    sync.Mutex
		types []string
	)
	b := NewBroker(time.Millisecond, func(eventType string) {
		mu.Lock()
		types = append(types, eventType)
		mu.Unlock()
	})
	b.PublishListing(ListingEvent{Dir: "/x"})
	b.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(types) != 1 || types[0] != TypeListingPopulated {
		t.Errorf("sent types = %v", types)
	}
}

func TestSSEHandler(t *testing.T) {
	b := NewBroker(100*time.Millisecond, nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	req = req.WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		b.ServeHTTP(w, req)
		close(done)
	}()

	// Give handler time to subscribe.
	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client from handler")
	}

	b.PublishQuery(QueryEvent{ID: "q", Query: "src/ main", Results: 3})
	time.Sleep(50 * time.Millisecond)

	cancel()
	<-done

	body := w.Body.String()
	if !strings.Contains(body, "event: query.completed") {
		t.Errorf("handler output missing event: %q", body)
	}

	time.Sleep(50 * time.Millisecond)
	if b.ClientCount() != 0 {
		t.Errorf("client not cleaned up after disconnect")
	}
}

func TestPublishDropsOnFullBuffer(t *testing.T) {
	b := NewBroker(time.Second, nil)
	defer b.Close()
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	// Fill buffer (capacity 64) and then one more should not block.
	for range 70 {
		b.PublishListing(ListingEvent{Dir: "/x"})
	}
}

func TestCloseClosesSubscribersAndStopsOperations(t *testing.T) {
	b := NewBroker(100*time.Millisecond, nil)
	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client")
	}

	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for channel close")
	}

	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients after close")
	}

	// Should be safe no-op after close.
	b.PublishListing(ListingEvent{Dir: "/x"})
	b.PublishQuery(QueryEvent{ID: "x"})
}
