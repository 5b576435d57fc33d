// Package scheduler drives the cooperative discovery/ingest/scan/derive/
// report cadence: a single long-lived loop that reads a monotonic clock,
// runs whichever passes are due, and sleeps until the next one is.
//
// Ported from original_source/src/labelwatch/runner.py's run_loop and
// _sleep_until (the capped-sleep pattern), supplemented with the
// discovery and derive passes spec.md §4.7 names but the on-disk
// runner.py snapshot predates.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/unpingable/atproto-labelwatch/internal/config"
	"github.com/unpingable/atproto-labelwatch/internal/derive"
	"github.com/unpingable/atproto-labelwatch/internal/discover"
	"github.com/unpingable/atproto-labelwatch/internal/ingest"
	"github.com/unpingable/atproto-labelwatch/internal/observability"
	"github.com/unpingable/atproto-labelwatch/internal/report"
	"github.com/unpingable/atproto-labelwatch/internal/rules"
	"github.com/unpingable/atproto-labelwatch/internal/store"
)

// ErrLabelerDIDsRequired is the scheduler's one unrecoverable
// configuration error: ingest requires at least one configured source,
// matching run_loop's `raise SystemExit("labeler_dids must be
// configured for ingest")`.
var ErrLabelerDIDsRequired = errors.New("scheduler: labeler_dids must be configured for ingest")

// Loop is the scheduler's tunable surface: independent pass intervals,
// plus the store/config/logger every pass shares. A zero interval
// disables that pass entirely, matching run_loop's `if interval > 0`
// gating.
type Loop struct {
	Store  *store.Store
	Config *config.Config
	Logger *slog.Logger

	// Observability records pass outcomes as counters/histograms. Nil
	// is safe: every Provider method is a no-op on a nil receiver.
	Observability *observability.Provider

	IngestInterval    time.Duration
	ScanInterval      time.Duration
	DiscoveryInterval time.Duration
	DeriveInterval    time.Duration
	ReportOutDir      string

	// MaxIterations bounds the loop for tests; 0 means run forever
	// until ctx is canceled, matching the original's `while True`.
	MaxIterations int

	// SleepCeiling caps each sleep so heartbeats stay current even when
	// every pass interval is large; defaults to 60s if zero, matching
	// _sleep_until's `min(delay, 60.0)`.
	SleepCeiling time.Duration
}

// NewFromConfig builds a Loop whose intervals come from cfg, matching
// run_loop's keyword-argument defaults one-to-one. obs may be nil; all
// Provider methods tolerate a nil receiver.
func NewFromConfig(st *store.Store, cfg *config.Config, logger *slog.Logger, obs *observability.Provider, ingestInterval, scanInterval time.Duration) *Loop {
	l := &Loop{
		Store:          st,
		Config:         cfg,
		Logger:         logger,
		Observability:  obs,
		IngestInterval: ingestInterval,
		ScanInterval:   scanInterval,
		DeriveInterval: time.Duration(cfg.DeriveIntervalMinutes) * time.Minute,
		ReportOutDir:   cfg.ReportOutDir,
	}
	if cfg.DiscoveryEnabled {
		l.DiscoveryInterval = time.Duration(cfg.DiscoveryIntervalHours) * time.Hour
	}
	return l
}

// Run executes the scheduler loop until ctx is canceled, an
// unrecoverable configuration error occurs, or MaxIterations passes
// (when non-zero) have elapsed. Any other pass-level error is logged
// and the loop continues, matching the spec's "I/O components catch at
// per-unit boundaries... the scheduler catches at pass boundaries and
// logs" propagation policy.
func (l *Loop) Run(ctx context.Context) error {
	if l.IngestInterval > 0 && len(l.Config.LabelerDIDs) == 0 {
		return ErrLabelerDIDsRequired
	}

	ceiling := l.SleepCeiling
	if ceiling <= 0 {
		ceiling = 60 * time.Second
	}

	var lastDiscovery, lastIngest, lastScan, lastDerive time.Time
	iterations := 0

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		now := time.Now()

		if l.DiscoveryInterval > 0 && now.Sub(lastDiscovery) >= l.DiscoveryInterval {
			done := l.obs().TrackPass(ctx, "discovery")
			err := l.runDiscovery(ctx)
			done(err)
			if err != nil {
				l.log().Error("discovery pass failed", "error", err)
			} else {
				l.heartbeat(ctx, "discovery")
			}
			lastDiscovery = now
			l.releaseMemory()
		}

		if l.IngestInterval > 0 && now.Sub(lastIngest) >= l.IngestInterval {
			done := l.obs().TrackPass(ctx, "ingest")
			err := l.runIngest(ctx)
			done(err)
			if err != nil {
				l.log().Error("ingest pass failed", "error", err)
			} else {
				l.heartbeat(ctx, "ingest")
			}
			lastIngest = now
			l.releaseMemory()
		}

		if l.ScanInterval > 0 && now.Sub(lastScan) >= l.ScanInterval {
			scanTime := time.Now()
			done := l.obs().TrackPass(ctx, "scan")
			err := l.runScan(ctx, scanTime)
			done(err)
			if err != nil {
				l.log().Error("scan pass failed", "error", err)
			} else {
				l.heartbeat(ctx, "scan")
				if l.ReportOutDir != "" {
					reportDone := l.obs().TrackPass(ctx, "report")
					rerr := l.runReport(ctx, scanTime)
					reportDone(rerr)
					if rerr != nil {
						l.log().Error("report pass failed", "error", rerr)
					}
				}
			}
			lastScan = now
			l.releaseMemory()
		}

		if l.DeriveInterval > 0 && now.Sub(lastDerive) >= l.DeriveInterval {
			done := l.obs().TrackPass(ctx, "derive")
			err := l.runDerive(ctx, time.Now())
			done(err)
			if err != nil {
				l.log().Error("derive pass failed", "error", err)
			} else {
				l.heartbeat(ctx, "derive")
			}
			lastDerive = now
			l.releaseMemory()
		}

		iterations++
		if l.MaxIterations > 0 && iterations >= l.MaxIterations {
			return nil
		}

		nextDiscovery := dueAt(lastDiscovery, l.DiscoveryInterval)
		nextIngest := dueAt(lastIngest, l.IngestInterval)
		nextScan := dueAt(lastScan, l.ScanInterval)
		nextDerive := dueAt(lastDerive, l.DeriveInterval)

		delay := sleepUntil(time.Now(), ceiling, nextDiscovery, nextIngest, nextScan, nextDerive)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// dueAt returns the next time a pass with the given interval is due,
// or the zero Time if the pass is disabled (interval <= 0) — the
// disabled case is excluded from the min() in sleepUntil.
func dueAt(last time.Time, interval time.Duration) time.Time {
	if interval <= 0 {
		return time.Time{}
	}
	return last.Add(interval)
}

// sleepUntil returns how long to sleep before the earliest due pass,
// with a 1-second floor and a ceiling cap — the Go analogue of
// _sleep_until's `max(1.0, next_due - now)` then `min(delay, 60.0)`.
func sleepUntil(now time.Time, ceiling time.Duration, dueTimes ...time.Time) time.Duration {
	var earliest time.Time
	for _, t := range dueTimes {
		if t.IsZero() {
			continue
		}
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
	}
	if earliest.IsZero() {
		return ceiling
	}
	delay := earliest.Sub(now)
	if delay < time.Second {
		delay = time.Second
	}
	if delay > ceiling {
		delay = ceiling
	}
	return delay
}

func (l *Loop) runDiscovery(ctx context.Context) error {
	_, err := discover.RunDiscovery(ctx, l.Store, l.Config, discover.DefaultOptions())
	return err
}

func (l *Loop) runIngest(ctx context.Context) error {
	if _, err := ingest.FromService(ctx, l.Store, l.Config); err != nil {
		return err
	}
	if l.Config.DiscoveryEnabled {
		budget := time.Duration(l.Config.MultiIngestBudgetSeconds) * time.Second
		if _, err := ingest.FromLabelers(ctx, l.Store, l.Config, budget); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loop) runScan(ctx context.Context, now time.Time) error {
	engine := rules.NewEngine(l.Store, l.Config)
	_, err := engine.Run(ctx, now)
	return err
}

func (l *Loop) runDerive(ctx context.Context, now time.Time) error {
	engine := derive.NewEngine(l.Store, l.Config)
	return engine.Run(ctx, now)
}

func (l *Loop) runReport(ctx context.Context, now time.Time) error {
	return report.Generate(ctx, l.Store, l.Config, l.ReportOutDir, now)
}

func (l *Loop) heartbeat(ctx context.Context, pass string) {
	ts := time.Now().UTC().Format(time.RFC3339Nano)
	if err := l.Store.SetMeta(ctx, "last_"+pass+"_ok_ts", ts); err != nil {
		l.log().Warn("failed to write heartbeat", "pass", pass, "error", err)
	}
}

// releaseMemory is the Go analogue of the original's "force GC, trim
// allocator" per-pass step: a process handling many short-lived
// per-labeler byte slices across a long-running loop benefits from
// giving memory back to the OS between passes rather than waiting for
// the next GC cycle.
func (l *Loop) releaseMemory() {
	runtime.GC()
	debug.FreeOSMemory()
}

func (l *Loop) log() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// obs returns l.Observability, or the zero-value pointer — TrackPass
// tolerates a nil receiver, so callers never need a nil check.
func (l *Loop) obs() *observability.Provider {
	return l.Observability
}
