package discover

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/unpingable/atproto-labelwatch/internal/httpfetch"
)

func TestProbeEndpointAccessible(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := httpfetch.New(2 * time.Second)
	result := ProbeEndpoint(context.Background(), client, srv.URL, "did:plc:a")
	if result.NormalizedStatus != "accessible" {
		t.Fatalf("NormalizedStatus = %q, want accessible", result.NormalizedStatus)
	}
	if result.HTTPStatus == nil || *result.HTTPStatus != 200 {
		t.Fatalf("HTTPStatus = %v, want 200", result.HTTPStatus)
	}
}

func TestProbeEndpointAuthRequired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := httpfetch.New(2 * time.Second)
	result := ProbeEndpoint(context.Background(), client, srv.URL, "did:plc:a")
	if result.NormalizedStatus != "auth_required" {
		t.Fatalf("NormalizedStatus = %q, want auth_required", result.NormalizedStatus)
	}
	if result.FailureType != "http_4xx" {
		t.Fatalf("FailureType = %q, want http_4xx", result.FailureType)
	}
}

func TestProbeEndpointDownOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := httpfetch.New(2 * time.Second)
	result := ProbeEndpoint(context.Background(), client, srv.URL, "did:plc:a")
	if result.NormalizedStatus != "down" {
		t.Fatalf("NormalizedStatus = %q, want down", result.NormalizedStatus)
	}
	if result.FailureType != "http_5xx" {
		t.Fatalf("FailureType = %q, want http_5xx", result.FailureType)
	}
}

func TestProbeEndpointConnectionRefused(t *testing.T) {
	client := httpfetch.New(2 * time.Second)
	result := ProbeEndpoint(context.Background(), client, "http://127.0.0.1:1", "did:plc:a")
	if result.NormalizedStatus != "down" {
		t.Fatalf("NormalizedStatus = %q, want down", result.NormalizedStatus)
	}
	if result.FailureType == "" {
		t.Fatal("FailureType = empty, want a classification")
	}
}

func TestCounterLimiterBacksOffWhenHostIsBusy(t *testing.T) {
	limiter := NewCounterLimiter(1)
	ctx := context.Background()

	limiter.Acquire(ctx, "example.com") // first slot, no wait
	start := time.Now()
	limiter.Acquire(ctx, "example.com") // host already at capacity, sleeps 500ms
	elapsed := time.Since(start)
	if elapsed < 400*time.Millisecond {
		t.Fatalf("Acquire() returned after %v, want it to back off ~500ms when host is busy", elapsed)
	}
	limiter.Release("example.com")
	limiter.Release("example.com")
}

func TestCounterLimiterAllowsConcurrentDistinctHosts(t *testing.T) {
	limiter := NewCounterLimiter(1)
	var wg sync.WaitGroup
	start := time.Now()
	for _, host := range []string{"a.example.com", "b.example.com", "c.example.com"} {
		wg.Add(1)
		go func(h string) {
			defer wg.Done()
			limiter.Acquire(context.Background(), h)
			limiter.Release(h)
		}(host)
	}
	wg.Wait()
	if elapsed := time.Since(start); elapsed > 300*time.Millisecond {
		t.Fatalf("distinct hosts took %v, want well under the 500ms backoff window", elapsed)
	}
}
