package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCacheCounters(t *testing.T) {
	m := New()
	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordWalk(true, 42, 3*time.Millisecond)

	if got := promtest.ToFloat64(m.cacheLookups.WithLabelValues("hit")); got != 2 {
		t.Errorf("hits = %v, want 2", got)
	}
	if got := promtest.ToFloat64(m.cacheLookups.WithLabelValues("miss")); got != 1 {
		t.Errorf("misses = %v, want 1", got)
	}
	if got := promtest.ToFloat64(m.listingEntries); got != 42 {
		t.Errorf("entries = %v, want 42", got)
	}
}

func TestQueryFailures(t *testing.T) {
	m := New()
	m.RecordQuery(10, time.Millisecond, false)
	m.RecordQuery(0, time.Millisecond, true)
	if got := promtest.ToFloat64(m.queryFailures); got != 1 {
		t.Errorf("failures = %v, want 1", got)
	}
}

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/items/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"1", "2", "3"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/items/"+id, nil))
	}

	got := promtest.ToFloat64(m.httpRequests.WithLabelValues(http.MethodGet, "/items/{id}", "418"))
	if got != 3 {
		t.Errorf("requests = %v, want 3", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.RecordWalk(false, 7, time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), "sowilo_walk_duration_seconds") {
		t.Errorf("metrics output missing walk histogram:\n%s", body)
	}
}
