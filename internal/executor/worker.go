// Package executor implements the named long-lived worker abstraction
// from §4.6: setup-then-cadence-loop workers with bounded-backoff setup
// retry and cooperative shutdown. Grounded on this module's own
// per-concern goroutine style (internal/config/reload.go's watchLoop
// select-loop) and on original_source/polaris/engine/main_executor.h's
// named-worker shape.
package executor

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInitRetryTimes bounds the number of setup attempts before a
// worker gives up and never starts its loop (§4.6 init_retry_times).
const DefaultInitRetryTimes = 3

// DefaultInitRetryBackoff is the delay between setup retries.
const DefaultInitRetryBackoff = time.Second

// Worker is one named long-lived task: an optional setup step, run
// once (with bounded retry on failure), followed by a function invoked
// on a fixed cadence until the context is cancelled.
type Worker struct {
	Name             string
	Setup            func(ctx context.Context) error
	Tick             func(ctx context.Context, nowMs int64)
	Interval         time.Duration
	InitRetryTimes   int
	InitRetryBackoff time.Duration

	logger *slog.Logger
}

// Run blocks until ctx is cancelled, retrying Setup with bounded
// backoff and then calling Tick on Interval until shutdown. It returns
// early, without ticking, if Setup exhausts its retries or Tick is nil.
// now must
// return the current time in epoch milliseconds — the clock
// abstraction's NowMs, not time.Now directly, so tests can drive it.
func (w *Worker) Run(ctx context.Context, logger *slog.Logger, now func() int64) {
	if logger == nil {
		logger = slog.Default()
	}
	w.logger = logger.With("worker", w.Name)

	if w.Setup != nil {
		if !w.runSetupWithRetry(ctx) {
			w.logger.Error("worker setup exhausted retries, not starting loop")
			return
		}
	}

	if w.Tick == nil {
		return
	}

	interval := w.Interval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.logger.Info("worker started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return
		case <-ticker.C:
			w.Tick(ctx, now())
		}
	}
}

func (w *Worker) runSetupWithRetry(ctx context.Context) bool {
	retries := w.InitRetryTimes
	if retries <= 0 {
		retries = DefaultInitRetryTimes
	}
	backoff := w.InitRetryBackoff
	if backoff <= 0 {
		backoff = DefaultInitRetryBackoff
	}

	for attempt := 1; attempt <= retries; attempt++ {
		err := w.Setup(ctx)
		if err == nil {
			return true
		}
		w.logger.Warn("worker setup failed", "attempt", attempt, "max_attempts", retries, "error", err)

		if attempt == retries {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(backoff):
		}
	}
	return false
}
