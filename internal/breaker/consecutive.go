package breaker

import (
	"sync"
	"sync/atomic"
)

// DefaultConsecutiveErrorThreshold is the number of consecutive failures
// that trips the breaker. The distilled spec does not name a default in
// its configuration table (§6); the original source's
// consecutive_error_config.h default is preserved here.
const DefaultConsecutiveErrorThreshold = 10

// ConsecutiveConfig holds the Consecutive-Error breaker's one tunable (§4.4).
type ConsecutiveConfig struct {
	Threshold int
}

// Validate normalizes an invalid threshold to the default.
func (c *ConsecutiveConfig) Validate() []string {
	if c.Threshold <= 0 {
		c.Threshold = DefaultConsecutiveErrorThreshold
		return []string{"circuit breaker config consecutiveErrorThreshold invalid, reverting to default"}
	}
	return nil
}

type consecutiveEntry struct {
	count atomic.Uint32
}

// ConsecutiveBreaker is the realtime evaluator described in §4.4,
// invoked synchronously from RecordCall. Like ErrorRateBreaker it holds
// no instance state beyond its own per-instance consecutive-failure
// counters — the state it mutates lives in the shared StatusTable.
type ConsecutiveBreaker struct {
	cfgMu sync.RWMutex
	cfg   ConsecutiveConfig
	table *StatusTable

	mu      sync.RWMutex
	entries map[string]*consecutiveEntry

	// OnTransition, if set, is called after a Closed->Open transition
	// this strategy drives, for telemetry (§10).
	OnTransition func(instanceID string, from, to State)
}

// NewConsecutiveBreaker creates the strategy.
func NewConsecutiveBreaker(cfg ConsecutiveConfig, table *StatusTable) *ConsecutiveBreaker {
	return &ConsecutiveBreaker{cfg: cfg, table: table, entries: make(map[string]*consecutiveEntry)}
}

// UpdateConfig swaps in a new threshold for subsequent OnRecord calls.
func (b *ConsecutiveBreaker) UpdateConfig(cfg ConsecutiveConfig) {
	b.cfgMu.Lock()
	b.cfg = cfg
	b.cfgMu.Unlock()
}

func (b *ConsecutiveBreaker) threshold() int {
	b.cfgMu.RLock()
	defer b.cfgMu.RUnlock()
	return b.cfg.Threshold
}

func (b *ConsecutiveBreaker) getOrCreate(instanceID string) *consecutiveEntry {
	b.mu.RLock()
	e, ok := b.entries[instanceID]
	b.mu.RUnlock()
	if ok {
		return e
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok = b.entries[instanceID]; ok {
		return e
	}
	e = &consecutiveEntry{}
	b.entries[instanceID] = e
	return e
}

// OnRecord updates the consecutive-failure counter for instanceID and,
// if it crosses the threshold while the instance is Closed, requests an
// Open transition. A losing CAS race against the Error-Rate strategy (or
// another caller) is silently dropped, per §7.
func (b *ConsecutiveBreaker) OnRecord(instanceID string, failed bool, nowMs int64) {
	e := b.getOrCreate(instanceID)

	if !failed {
		e.count.Store(0)
		return
	}

	count := e.count.Add(1)
	if count < uint32(b.threshold()) {
		return
	}
	if b.table.Translate(instanceID, Closed, Open) {
		b.table.SetLastUpdateMs(instanceID, nowMs)
		if b.OnTransition != nil {
			b.OnTransition(instanceID, Closed, Open)
		}
	}
}

// Reset clears the consecutive-failure counter for instanceID so a later
// count starts from zero. The metric store's expiration sweep does not
// call it; a force-closed instance keeps its current count.
func (b *ConsecutiveBreaker) Reset(instanceID string) {
	b.mu.RLock()
	e, ok := b.entries[instanceID]
	b.mu.RUnlock()
	if ok {
		e.count.Store(0)
	}
}
