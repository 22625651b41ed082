package metricstore

import (
	"sync"
	"testing"
)

func TestStore_RecordAndAggregate(t *testing.T) {
	// window=1000ms, buckets=10 -> bucket width 100ms.
	s := New(100, 10, 60000)

	s.Record("A", false, 100)
	s.Record("A", false, 100)
	s.Record("A", true, 150)

	total, errors, ok := s.Aggregate("A", 200)
	if !ok {
		t.Fatal("expected instance A to be found")
	}
	if total != 3 || errors != 1 {
		t.Fatalf("got total=%d errors=%d, want total=3 errors=1", total, errors)
	}
}

func TestStore_AggregateUnknownInstance(t *testing.T) {
	s := New(100, 10, 60000)
	_, _, ok := s.Aggregate("ghost", 1000)
	if ok {
		t.Fatal("expected ok=false for unknown instance")
	}
}

func TestStore_BucketRotationDropsStaleEpoch(t *testing.T) {
	s := New(100, 10, 60000)

	// Fill a bucket at t=0.
	s.Record("A", false, 0)

	// Jump forward past the whole window (1000ms); the old bucket's epoch
	// is now outside the trailing window and must contribute nothing.
	total, errors, ok := s.Aggregate("A", 5000)
	if !ok {
		t.Fatal("expected instance to exist")
	}
	if total != 0 || errors != 0 {
		t.Fatalf("expected stale bucket to be excluded, got total=%d errors=%d", total, errors)
	}
}

func TestStore_BucketReuseResetsCounters(t *testing.T) {
	s := New(100, 10, 60000)

	// bucket index = epoch % 10. epoch(0) = 0, epoch(1000) = 10 -> same
	// index (0) but a different epoch, so the old counts must be wiped.
	s.Record("A", true, 0)
	s.Record("A", false, 1000)

	total, errors, ok := s.Aggregate("A", 1000)
	if !ok {
		t.Fatal("expected instance to exist")
	}
	if total != 1 || errors != 0 {
		t.Fatalf("expected reused bucket to reset, got total=%d errors=%d", total, errors)
	}
}

func TestStore_Clear(t *testing.T) {
	s := New(100, 10, 60000)
	s.Record("A", true, 0)
	s.Clear("A")

	total, errors, ok := s.Aggregate("A", 0)
	if !ok {
		t.Fatal("expected instance to still exist after Clear")
	}
	if total != 0 || errors != 0 {
		t.Fatalf("expected zeroed counters after Clear, got total=%d errors=%d", total, errors)
	}
}

func TestStore_Expire(t *testing.T) {
	s := New(100, 10, 1000)
	s.Record("A", false, 0)
	s.Record("B", false, 900)

	var expired []string
	n := s.Expire(2000, func(id string) { expired = append(expired, id) })

	if n != 2 {
		t.Fatalf("expected both instances expired, got n=%d", n)
	}
	if len(expired) != 2 {
		t.Fatalf("expected onExpire called for both instances, got %v", expired)
	}
	if _, _, ok := s.Aggregate("A", 2000); ok {
		t.Fatal("expected A to be removed from the store")
	}
}

func TestStore_ExpireSparesRecentlyTouched(t *testing.T) {
	s := New(100, 10, 1000)
	s.Record("A", false, 0)
	s.Touch("A", 1500)

	n := s.Expire(2000, nil)
	if n != 0 {
		t.Fatalf("expected recently touched instance to survive, n=%d", n)
	}
}

func TestStore_SnapshotDoesNotExtendTTL(t *testing.T) {
	s := New(100, 10, 1000)
	s.Record("A", true, 0)

	total, errors, lastAccessMs, ok := s.Snapshot("A", 100)
	if !ok {
		t.Fatal("expected instance A to be found")
	}
	if total != 1 || errors != 1 {
		t.Fatalf("got total=%d errors=%d, want total=1 errors=1", total, errors)
	}
	if lastAccessMs != 0 {
		t.Fatalf("got lastAccessMs=%d, want 0", lastAccessMs)
	}

	n := s.Expire(1000, nil)
	if n != 1 {
		t.Fatalf("expected Snapshot to leave the entry eligible for expiry, n=%d", n)
	}
}

func TestStore_SnapshotUnknownInstance(t *testing.T) {
	s := New(100, 10, 60000)
	if _, _, _, ok := s.Snapshot("ghost", 1000); ok {
		t.Fatal("expected ok=false for unknown instance")
	}
}

func TestStore_ConcurrentRecord(t *testing.T) {
	s := New(100, 10, 60000)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Record("A", i%3 == 0, int64(i))
		}(i)
	}
	wg.Wait()

	total, errors, ok := s.Aggregate("A", 900)
	if !ok {
		t.Fatal("expected instance A to exist")
	}
	if total != 50 {
		t.Fatalf("expected total=50, got %d", total)
	}
	if errors > total {
		t.Fatalf("errors (%d) must not exceed total (%d)", errors, total)
	}
}
