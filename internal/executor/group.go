package executor

import (
	"context"
	"log/slog"
	"sync"
)

// Group owns the lifecycle of the engine's workers: the Error-Rate
// breaker's periodic pass and the health-check scheduler (§4.6 — the
// original's MainExecutor and server-connector workers have no RPC
// layer to drive in this scope, so a Group here only ever holds these
// two). Consecutive-Error evaluation needs no worker; it runs
// synchronously from RecordCall.
type Group struct {
	logger  *slog.Logger
	now     func() int64
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	workers []*Worker
}

// NewGroup creates an empty Group. now supplies epoch-millisecond
// timestamps for each worker's Tick call.
func NewGroup(logger *slog.Logger, now func() int64) *Group {
	if logger == nil {
		logger = slog.Default()
	}
	return &Group{logger: logger, now: now}
}

// Add registers a worker. Must be called before Start.
func (g *Group) Add(w *Worker) {
	g.workers = append(g.workers, w)
}

// Start launches every registered worker in its own goroutine.
func (g *Group) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	g.cancel = cancel
	for _, w := range g.workers {
		g.wg.Add(1)
		go func(w *Worker) {
			defer g.wg.Done()
			w.Run(ctx, g.logger, g.now)
		}(w)
	}
}

// Shutdown cancels every worker and blocks until each has returned.
func (g *Group) Shutdown() {
	if g.cancel != nil {
		g.cancel()
	}
	g.wg.Wait()
}
