package discover

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/unpingable/atproto-labelwatch/internal/httpfetch"
)

// ProbeEndpoint probes a labeler's queryLabels endpoint with a
// single-label, self-sourced query and classifies the outcome into
// accessible / auth_required / down, matching the original's
// string-based failure-type classification (timeout, DNS, TLS,
// connection-refused) since Go's own error wrapping for the stdlib
// HTTP transport is itself largely string-keyed for these cases.
func ProbeEndpoint(ctx context.Context, client *httpfetch.Client, endpointURL, did string) ProbeResult {
	q := url.Values{}
	q.Set("uriPatterns", "*")
	q.Set("sources", did)
	q.Set("limit", "1")

	target := strings.TrimRight(endpointURL, "/") + "/xrpc/com.atproto.label.queryLabels?" + q.Encode()

	t0 := time.Now()
	resp, err := client.Get(ctx, target)
	latency := int(time.Since(t0).Milliseconds())

	if err != nil {
		return classifyTransportError(err, latency)
	}
	defer func() { _ = resp.Body.Close() }()

	status := resp.StatusCode
	if status >= 200 && status < 300 {
		return ProbeResult{NormalizedStatus: "accessible", HTTPStatus: &status, LatencyMS: &latency}
	}
	if status == 401 || status == 403 {
		ft := "http_4xx"
		return ProbeResult{NormalizedStatus: "auth_required", HTTPStatus: &status, LatencyMS: &latency, FailureType: ft}
	}
	ft := httpStatusFailureType(status)
	return ProbeResult{NormalizedStatus: "down", HTTPStatus: &status, LatencyMS: &latency, FailureType: ft}
}

func httpStatusFailureType(status int) string {
	switch status / 100 {
	case 4:
		return "http_4xx"
	case 5:
		return "http_5xx"
	default:
		return ""
	}
}

func classifyTransportError(err error, latencyMS int) ProbeResult {
	errStr := strings.ToLower(err.Error())
	var failureType string
	switch {
	case strings.Contains(errStr, "timed out") || strings.Contains(errStr, "timeout") || strings.Contains(errStr, "context deadline exceeded"):
		failureType = "timeout"
	case strings.Contains(errStr, "no such host") || strings.Contains(errStr, "name or service not known") || strings.Contains(errStr, "getaddrinfo"):
		failureType = "dns_error"
	case strings.Contains(errStr, "tls") || strings.Contains(errStr, "certificate") || strings.Contains(errStr, "x509"):
		failureType = "tls_error"
	case strings.Contains(errStr, "connection refused"):
		failureType = "connection_refused"
	default:
		failureType = "connection_refused"
	}
	return ProbeResult{NormalizedStatus: "down", LatencyMS: &latencyMS, FailureType: failureType, Error: err.Error()}
}

// HostLimiter bounds how many probes run concurrently against a single
// hostname, so a slow or unresponsive labeler can't monopolize the
// probe worker pool.
type HostLimiter interface {
	Acquire(ctx context.Context, host string)
	Release(host string)
}

// CounterLimiter is the original's simple per-host concurrency cap: a
// probe that would exceed maxPerHost sleeps briefly before proceeding
// anyway, rather than blocking indefinitely.
type CounterLimiter struct {
	mu         sync.Mutex
	slots      map[string]int
	maxPerHost int
}

// NewCounterLimiter builds a CounterLimiter capping concurrent probes
// per host at maxPerHost.
func NewCounterLimiter(maxPerHost int) *CounterLimiter {
	return &CounterLimiter{slots: make(map[string]int), maxPerHost: maxPerHost}
}

func (l *CounterLimiter) Acquire(ctx context.Context, host string) {
	l.mu.Lock()
	busy := l.slots[host] >= l.maxPerHost
	l.mu.Unlock()
	if busy {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-ctx.Done():
		}
	}
	l.mu.Lock()
	l.slots[host]++
	l.mu.Unlock()
}

func (l *CounterLimiter) Release(host string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.slots[host] > 0 {
		l.slots[host]--
	}
}

// TokenBucketLimiter is the x/time/rate-backed alternative: each host
// gets its own token bucket rather than a bare counter, smoothing probe
// traffic instead of letting it burst right up to maxPerHost.
type TokenBucketLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

// NewTokenBucketLimiter builds a TokenBucketLimiter with rps requests
// per second and burst capacity per host.
func NewTokenBucketLimiter(rps rate.Limit, burst int) *TokenBucketLimiter {
	return &TokenBucketLimiter{limiters: make(map[string]*rate.Limiter), rps: rps, burst: burst}
}

func (l *TokenBucketLimiter) Acquire(ctx context.Context, host string) {
	l.mu.Lock()
	lim, ok := l.limiters[host]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[host] = lim
	}
	l.mu.Unlock()
	_ = lim.Wait(ctx)
}

func (l *TokenBucketLimiter) Release(string) {}
