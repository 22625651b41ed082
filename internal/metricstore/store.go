// Package metricstore implements the instance metric store: a sliding,
// time-bucketed per-instance counter of (total, errors) calls with
// bucket rotation, lock-free hot-path increments, and TTL-based eviction.
//
// Concurrency shape: a single table-level RWMutex guards the instance-id → entry
// map (shared for lookups on the hot path, exclusive only for inserting
// a new entry and the expiration sweep), while per-entry counters
// are plain atomics and a per-entry mutex serializes only the rare
// bucket-reset critical section.
package metricstore

import (
	"sync"
	"sync/atomic"
)

// bucket is one fixed-duration aggregation cell. epoch identifies which
// W-millisecond interval the counters belong to; a bucket is current
// when its stored epoch equals now/W.
type bucket struct {
	epoch  atomic.Int64
	total  atomic.Uint32
	errors atomic.Uint32
}

// entry is the per-instance sliding-window state. The store owns this
// storage outright (§4.1) — strategies and the status table never hold
// their own copy.
type entry struct {
	buckets []bucket
	mu      sync.Mutex // serializes bucket-rotation resets only

	lastAccessMs atomic.Int64
}

func newEntry(numBuckets int) *entry {
	return &entry{buckets: make([]bucket, numBuckets)}
}

// Store is the Instance Metric Store (§4.1). One Store exists per breaker
// strategy configuration (bucket width and count are fixed at construction,
// matching the C++ source's metric_bucket_time_ derivation from
// window/num_buckets at Init time).
type Store struct {
	mu            sync.RWMutex
	entries       map[string]*entry
	numBuckets    int
	bucketWidthMs int64
	expireMs      int64
}

// New creates a Store with the given bucket width, bucket count, and
// idle-entry TTL. All three are assumed already validated/defaulted by
// the caller (breaker strategy config validation, §4.3).
func New(bucketWidthMs int64, numBuckets int, expireMs int64) *Store {
	return &Store{
		entries:       make(map[string]*entry),
		numBuckets:    numBuckets,
		bucketWidthMs: bucketWidthMs,
		expireMs:      expireMs,
	}
}

// getOrCreate returns the entry for instanceID, creating it lazily via a
// shared-then-exclusive double-check so the hot path never blocks behind
// a structural insert unless one is actually needed.
func (s *Store) getOrCreate(instanceID string) *entry {
	s.mu.RLock()
	e, ok := s.entries[instanceID]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[instanceID]; ok {
		return e
	}
	e = newEntry(s.numBuckets)
	s.entries[instanceID] = e
	return e
}

// lookup returns the entry for instanceID without creating it.
func (s *Store) lookup(instanceID string) (*entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[instanceID]
	s.mu.RUnlock()
	return e, ok
}

// Record absorbs one call outcome (§4.1 record). failed marks the outcome
// as an error (Fail or Timeout per the SDK's outcome enum).
func (s *Store) Record(instanceID string, failed bool, nowMs int64) {
	e := s.getOrCreate(instanceID)
	e.lastAccessMs.Store(nowMs)

	epoch := nowMs / s.bucketWidthMs
	idx := int(epoch % int64(s.numBuckets))
	if idx < 0 {
		idx += s.numBuckets
	}
	b := &e.buckets[idx]

	if b.epoch.Load() != epoch {
		e.mu.Lock()
		if b.epoch.Load() != epoch {
			b.total.Store(0)
			b.errors.Store(0)
			b.epoch.Store(epoch)
		}
		e.mu.Unlock()
	}

	b.total.Add(1)
	if failed {
		b.errors.Add(1)
	}
}

// Aggregate sums counters across the buckets whose epoch lies strictly
// within the trailing window (now/W − N, now/W] (§4.1 aggregate). Returns
// ok=false if the instance has never been recorded.
func (s *Store) Aggregate(instanceID string, nowMs int64) (total, errors uint64, ok bool) {
	e, found := s.lookup(instanceID)
	if !found {
		return 0, 0, false
	}
	e.lastAccessMs.Store(nowMs)

	nowEpoch := nowMs / s.bucketWidthMs
	minEpoch := nowEpoch - int64(s.numBuckets)

	for i := range e.buckets {
		b := &e.buckets[i]
		epoch := b.epoch.Load()
		if epoch > minEpoch && epoch <= nowEpoch {
			total += uint64(b.total.Load())
			errors += uint64(b.errors.Load())
		}
	}
	return total, errors, true
}

// Clear zeroes all buckets of one instance, used on state transitions
// that should discard accumulated history (HalfOpen entry/exit, §4.3).
func (s *Store) Clear(instanceID string) {
	e, found := s.lookup(instanceID)
	if !found {
		return
	}
	e.mu.Lock()
	for i := range e.buckets {
		e.buckets[i].epoch.Store(0)
		e.buckets[i].total.Store(0)
		e.buckets[i].errors.Store(0)
	}
	e.mu.Unlock()
}

// Touch records a read/write touch on instanceID without changing
// counters, keeping its metric entry alive (creating it if absent)
// without recording an outcome.
func (s *Store) Touch(instanceID string, nowMs int64) {
	e := s.getOrCreate(instanceID)
	e.lastAccessMs.Store(nowMs)
}

// Expire removes entries whose lastAccessMs + expireMs <= now (§4.1
// expire). onExpire is invoked for each removed instance after the
// entry is dropped, so the caller (typically the status table) can force
// the instance back to Closed per the removal invariant in §3.
func (s *Store) Expire(nowMs int64, onExpire func(instanceID string)) int {
	var expired []string

	s.mu.RLock()
	for id, e := range s.entries {
		if e.lastAccessMs.Load()+s.expireMs <= nowMs {
			expired = append(expired, id)
		}
	}
	s.mu.RUnlock()

	if len(expired) == 0 {
		return 0
	}

	s.mu.Lock()
	// Range over a copy: removeString rewrites expired's backing array.
	for _, id := range append([]string(nil), expired...) {
		// Re-check under the write lock: another Record may have
		// touched the entry between the scan above and now.
		if e, ok := s.entries[id]; ok && e.lastAccessMs.Load()+s.expireMs <= nowMs {
			delete(s.entries, id)
		} else {
			expired = removeString(expired, id)
		}
	}
	s.mu.Unlock()

	for _, id := range expired {
		if onExpire != nil {
			onExpire(id)
		}
	}
	return len(expired)
}

// Instances returns a snapshot of all known instance IDs, used by
// periodic evaluator passes (§4.3 TimingCircuitBreak scans "for each
// instance in the metric store").
func (s *Store) Instances() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}

// Snapshot is a read-only debug/introspection view of one instance's
// raw counters (§3 addition, grounded in error_rate.cpp's
// debug dump of window totals). Unlike Aggregate, Snapshot does not
// bump lastAccessMs — a telemetry read must not keep an otherwise idle
// instance alive past its expire_ms.
func (s *Store) Snapshot(instanceID string, nowMs int64) (total, errors uint64, lastAccessMs int64, ok bool) {
	e, found := s.lookup(instanceID)
	if !found {
		return 0, 0, 0, false
	}

	nowEpoch := nowMs / s.bucketWidthMs
	minEpoch := nowEpoch - int64(s.numBuckets)

	for i := range e.buckets {
		b := &e.buckets[i]
		epoch := b.epoch.Load()
		if epoch > minEpoch && epoch <= nowEpoch {
			total += uint64(b.total.Load())
			errors += uint64(b.errors.Load())
		}
	}
	return total, errors, e.lastAccessMs.Load(), true
}

func removeString(ss []string, target string) []string {
	out := ss[:0]
	for _, s := range ss {
		if s != target {
			out = append(out, s)
		}
	}
	return out
}
