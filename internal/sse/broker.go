// Package sse implements a Server-Sent Events broker that reports cache
// refreshes and finished queries to observers.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"
)

// Event types.
const (
	TypeListingPopulated = "listing.populated"
	TypeQueryCompleted   = "query.completed"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ListingEvent is the payload of a listing.populated event.
type ListingEvent struct {
	Dir       string  `json:"dir"`
	Recursive bool    `json:"recursive"`
	Entries   int     `json:"entries"`
	TookMS    float64 `json:"took_ms"`
}

// QueryEvent is the payload of a query.completed event.
type QueryEvent struct {
	ID      string  `json:"id"`
	Query   string  `json:"query"`
	Dir     string  `json:"dir"`
	Results int     `json:"results"`
	TookMS  float64 `json:"took_ms"`
	Error   string  `json:"error,omitempty"`
}

// Broker manages SSE client connections and broadcasts events.
//
// Concurrency model: a single internal event loop (goroutine) owns mutable state
// (clients + query throttle timestamp). Public methods communicate with this loop
// through channels, so no mutexes are required.
type Broker struct {
	queryMin time.Duration
	onSend   func(eventType string)

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	queryCh       chan QueryEvent
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a new SSE broker. Successful query.completed events are
// throttled to one per queryThrottle, since every keystroke produces one.
// onSend, if non-nil, is called with the type of every broadcast event.
func NewBroker(queryThrottle time.Duration, onSend func(eventType string)) *Broker {
	if queryThrottle <= 0 {
		queryThrottle = 250 * time.Millisecond
	}

	b := &Broker{
		queryMin:      queryThrottle,
		onSend:        onSend,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		queryCh:       make(chan QueryEvent, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var lastQuery time.Time

	broadcast := func(event Event) {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return
		}
		raw := []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", event.Type, payload))

		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
		if b.onSend != nil {
			b.onSend(event.Type)
		}
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case q := <-b.queryCh:
			now := time.Now()
			if q.Error == "" && now.Sub(lastQuery) < b.queryMin {
				continue
			}
			lastQuery = now
			broadcast(Event{Type: TypeQueryCompleted, Data: q})

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// PublishListing announces a freshly walked listing.
func (b *Broker) PublishListing(e ListingEvent) {
	b.Publish(Event{Type: TypeListingPopulated, Data: e})
}

// PublishQuery announces a finished query, subject to the query throttle.
func (b *Broker) PublishQuery(e QueryEvent) {
	if b.closed.Load() {
		return
	}
	select {
	case b.queryCh <- e:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
