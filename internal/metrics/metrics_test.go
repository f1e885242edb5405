package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Delete("/api/movies/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/movies/"+id, nil))
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("DELETE", "/api/movies/{id}", "204")); got != 3 {
		t.Fatalf("delete requests = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")); got != 1 {
		t.Fatalf("unmatched requests = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.RequestDuration); n != 2 {
		t.Fatalf("expected 2 duration series, got %d", n)
	}
}

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.MoviesCreated.Inc()
	m.UploadBytes.Add(1024)
	m.LoginResult("success")
	m.LoginResult("failure")
	m.LoginResult("failure")

	if got := testutil.ToFloat64(m.LoginAttempts.WithLabelValues("failure")); got != 2 {
		t.Fatalf("failures = %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		"cinefree_movies_created_total 1",
		"cinefree_upload_bytes_total 1024",
		`cinefree_login_attempts_total{result="success"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
