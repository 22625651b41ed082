package executor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestGroup_StartsAndShutsDownAllWorkers(t *testing.T) {
	var a, b atomic.Int32
	g := NewGroup(nil, func() int64 { return 0 })
	g.Add(&Worker{Name: "a", Interval: 2 * time.Millisecond, Tick: func(ctx context.Context, nowMs int64) { a.Add(1) }})
	g.Add(&Worker{Name: "b", Interval: 2 * time.Millisecond, Tick: func(ctx context.Context, nowMs int64) { b.Add(1) }})

	g.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	g.Shutdown()

	if a.Load() == 0 || b.Load() == 0 {
		t.Fatalf("expected both workers to tick, got a=%d b=%d", a.Load(), b.Load())
	}
}
