package breaker

import (
	"sync"
	"sync/atomic"
)

// tableEntry is one instance's authoritative breaker state (§3 StatusTable
// entry). state is stored as int32 so Translate can use a single
// CompareAndSwap; half-open admission/success counters are plain atomics.
type tableEntry struct {
	state            atomic.Int32
	halfOpenAdmitted atomic.Uint32
	halfOpenSuccess  atomic.Uint32
	lastUpdateMs     atomic.Int64
}

// StatusTable is the authoritative per-instance circuit-breaker state
// (§4.2). Exactly one transition per instance per race wins — this is
// the table's contract, not its callers'. Breaker strategies and the
// health-check chain hold only a non-owning handle to a shared table;
// neither owns instance-scoped state of its own (§9).
type StatusTable struct {
	mu      sync.RWMutex
	entries map[string]*tableEntry

	// OnAdmit, if set, is called after every TryAdmitHalfOpen attempt,
	// admitted or not, for telemetry (§10's half-open
	// admission counter).
	OnAdmit func(instanceID string, admitted bool)
}

// New creates an empty StatusTable. Unknown instances default to Closed,
// matching §8 scenario 6 ("state(B) returns Closed" for a never-seen
// instance).
func New() *StatusTable {
	return &StatusTable{entries: make(map[string]*tableEntry)}
}

func (t *StatusTable) getOrCreate(instanceID string) *tableEntry {
	t.mu.RLock()
	e, ok := t.entries[instanceID]
	t.mu.RUnlock()
	if ok {
		return e
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.entries[instanceID]; ok {
		return e
	}
	e = &tableEntry{}
	e.state.Store(int32(Closed))
	t.entries[instanceID] = e
	return e
}

// State returns the current state of instanceID. Wait-free; never blocks.
// Unknown instances report Closed.
func (t *StatusTable) State(instanceID string) State {
	t.mu.RLock()
	e, ok := t.entries[instanceID]
	t.mu.RUnlock()
	if !ok {
		return Closed
	}
	return State(e.state.Load())
}

// Translate attempts the state transition from→to for instanceID,
// succeeding iff the current state equals from. Exactly one concurrent
// caller wins; the rest observe false and silently drop their attempt
// (§7: "a failed CAS transition is not an error").
func (t *StatusTable) Translate(instanceID string, from, to State) bool {
	e := t.getOrCreate(instanceID)
	ok := e.state.CompareAndSwap(int32(from), int32(to))
	if ok && to == HalfOpen {
		e.halfOpenAdmitted.Store(0)
		e.halfOpenSuccess.Store(0)
	}
	return ok
}

// TryAdmitHalfOpen atomically grants a one-shot admission to send one
// call through a HalfOpen instance, so long as fewer than limit
// admissions have been granted since the instance last entered HalfOpen
// (§4.2, §4.7); the count is not decremented when a probe completes.
// Returns false (no admission)
// when the instance is not HalfOpen or the budget is exhausted.
func (t *StatusTable) TryAdmitHalfOpen(instanceID string, limit uint32) bool {
	admitted := t.tryAdmitHalfOpen(instanceID, limit)
	if t.OnAdmit != nil {
		t.OnAdmit(instanceID, admitted)
	}
	return admitted
}

func (t *StatusTable) tryAdmitHalfOpen(instanceID string, limit uint32) bool {
	e := t.getOrCreate(instanceID)
	if State(e.state.Load()) != HalfOpen {
		return false
	}
	for {
		cur := e.halfOpenAdmitted.Load()
		if cur >= limit {
			return false
		}
		if e.halfOpenAdmitted.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// RecordHalfOpenSuccess increments the half-open success counter,
// exposed for telemetry/introspection alongside the admission budget
// (§3 StatusTable entry). The Error-Rate strategy itself evaluates
// half-open success from the metric store's bucket aggregate, not from
// this counter — see error_rate.go.
func (t *StatusTable) RecordHalfOpenSuccess(instanceID string) {
	e := t.getOrCreate(instanceID)
	e.halfOpenSuccess.Add(1)
}

// LastUpdateMs returns the timestamp of the last successful transition
// for instanceID, or 0 if unknown.
func (t *StatusTable) LastUpdateMs(instanceID string) int64 {
	t.mu.RLock()
	e, ok := t.entries[instanceID]
	t.mu.RUnlock()
	if !ok {
		return 0
	}
	return e.lastUpdateMs.Load()
}

// SetLastUpdateMs records the timestamp of the most recent transition.
// Called by the strategy that won the CAS in Translate, immediately
// after a successful call and before any "clear buckets" side effect
// of the transition (§4.3); Translate itself does not set it.
func (t *StatusTable) SetLastUpdateMs(instanceID string, nowMs int64) {
	e := t.getOrCreate(instanceID)
	e.lastUpdateMs.Store(nowMs)
}

// ForceClose unconditionally drives instanceID to Closed, regardless of
// its current state, and drops its entry. Used by the metric store's
// expiration sweep per the removal invariant in §3: "on removal, any
// non-Closed status is transitioned to Closed."
func (t *StatusTable) ForceClose(instanceID string) {
	t.mu.Lock()
	delete(t.entries, instanceID)
	t.mu.Unlock()
}

// Instances returns a snapshot of all known instance IDs.
func (t *StatusTable) Instances() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot returns a read-only view of one instance's status, for
// telemetry/introspection (§3 addition).
type Snapshot struct {
	InstanceID       string
	State            State
	HalfOpenAdmitted uint32
	HalfOpenSuccess  uint32
	LastUpdateMs     int64
}

// SnapshotOf returns the current status snapshot for instanceID.
func (t *StatusTable) SnapshotOf(instanceID string) Snapshot {
	t.mu.RLock()
	e, ok := t.entries[instanceID]
	t.mu.RUnlock()
	if !ok {
		return Snapshot{InstanceID: instanceID, State: Closed}
	}
	return Snapshot{
		InstanceID:       instanceID,
		State:            State(e.state.Load()),
		HalfOpenAdmitted: e.halfOpenAdmitted.Load(),
		HalfOpenSuccess:  e.halfOpenSuccess.Load(),
		LastUpdateMs:     e.lastUpdateMs.Load(),
	}
}
