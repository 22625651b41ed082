package breaker

import (
	"testing"

	"github.com/polaris-governance/core/internal/metricstore"
)

// scenarioConfig builds the exact parameters for the end-to-end
// scenarios below:
// window=1000ms, buckets=10, rvt=10, err_rate=0.5, sleep=500ms, rcaho=4, scaho=3.
func scenarioConfig() ErrorRateConfig {
	return ErrorRateConfig{
		RequestVolumeThreshold:    10,
		ErrorRateThreshold:        0.5,
		MetricStatTimeWindowMs:    1000,
		NumBuckets:                10,
		SleepWindowMs:             500,
		RequestCountAfterHalfOpen: 4,
		SuccessCountAfterHalfOpen: 3,
		MetricExpiredMs:           60000,
		AutoHalfOpenEnabled:       true,
	}
}

func newScenarioBreaker() (*ErrorRateBreaker, *metricstore.Store, *StatusTable) {
	cfg := scenarioConfig()
	store := metricstore.New(cfg.BucketWidthMs(), cfg.NumBuckets, cfg.MetricExpiredMs)
	table := New()
	return NewErrorRateBreaker(cfg, store, table, nil), store, table
}

func recordN(store *metricstore.Store, instance string, n int, failed bool, atMs int64) {
	for i := 0; i < n; i++ {
		store.Record(instance, failed, atMs)
	}
}

// Scenario 1: 10 successes at t=100; pass at t=200 -> stays Closed.
func TestScenario1_SuccessesStayClosed(t *testing.T) {
	b, store, table := newScenarioBreaker()
	recordN(store, "A", 10, false, 100)
	b.Evaluate(200)
	if got := table.State("A"); got != Closed {
		t.Fatalf("state = %v, want Closed", got)
	}
}

// Scenario 2: 6 failures + 4 successes at t=300; pass at t=400 -> Closed->Open, last_update=400.
func TestScenario2_ClosedToOpen(t *testing.T) {
	b, store, table := newScenarioBreaker()
	recordN(store, "A", 6, true, 300)
	recordN(store, "A", 4, false, 300)
	b.Evaluate(400)

	if got := table.State("A"); got != Open {
		t.Fatalf("state = %v, want Open", got)
	}
	if got := table.LastUpdateMs("A"); got != 400 {
		t.Fatalf("last_update_ms = %d, want 400", got)
	}
}

// Scenario 3: pass at t=900 (== last_update 400 + sleep_window 500) ->
// Open->HalfOpen, buckets cleared.
func TestScenario3_OpenToHalfOpen(t *testing.T) {
	b, store, table := newScenarioBreaker()
	recordN(store, "A", 6, true, 300)
	recordN(store, "A", 4, false, 300)
	b.Evaluate(400)

	b.Evaluate(900)
	if got := table.State("A"); got != HalfOpen {
		t.Fatalf("state = %v, want HalfOpen", got)
	}
	total, errors, ok := store.Aggregate("A", 900)
	if !ok || total != 0 || errors != 0 {
		t.Fatalf("expected cleared buckets, got total=%d errors=%d ok=%v", total, errors, ok)
	}
}

// Scenario 4: 3 successes for A at t=900; pass at t=950 -> HalfOpen->Closed.
func TestScenario4_HalfOpenToClosed(t *testing.T) {
	b, store, table := newScenarioBreaker()
	recordN(store, "A", 6, true, 300)
	recordN(store, "A", 4, false, 300)
	b.Evaluate(400)
	b.Evaluate(900)

	recordN(store, "A", 3, false, 900)
	b.Evaluate(950)

	if got := table.State("A"); got != Closed {
		t.Fatalf("state = %v, want Closed", got)
	}
}

// Scenario 5: from Closed, 2 failures + 2 successes at t=1000 (total=4 < rvt=10);
// pass at t=1050 -> stays Closed.
func TestScenario5_BelowVolumeThresholdStaysClosed(t *testing.T) {
	b, store, table := newScenarioBreaker()
	recordN(store, "A", 2, true, 1000)
	recordN(store, "A", 2, false, 1000)
	b.Evaluate(1050)

	if got := table.State("A"); got != Closed {
		t.Fatalf("state = %v, want Closed", got)
	}
}

// Scenario 6: instance B is recorded once at t=0 and opened, then never
// accessed again; the pass at t=0+expire (60000) removes B; subsequent
// state(B) returns Closed (default).
func TestScenario6_ExpiredInstanceReportsClosed(t *testing.T) {
	b, store, table := newScenarioBreaker()
	recordN(store, "B", 1, false, 0)
	table.Translate("B", Closed, Open)

	b.Evaluate(0 + 60000)
	if got := table.State("B"); got != Closed {
		t.Fatalf("state(B) after expiry = %v, want Closed", got)
	}
	if _, _, ok := store.Aggregate("B", 60000); ok {
		t.Fatal("expected B's metric entry to be removed")
	}
}

func TestHalfOpenToOpen_OnExcessFailures(t *testing.T) {
	b, store, table := newScenarioBreaker()
	table.Translate("A", Closed, Open)
	table.Translate("A", Open, HalfOpen)
	table.SetLastUpdateMs("A", 0)

	// rcaho=4, scaho=3 -> failure budget is rcaho-scaho = 1. Two failures
	// should exceed it and trip back to Open.
	recordN(store, "A", 2, true, 10)
	b.Evaluate(20)

	if got := table.State("A"); got != Open {
		t.Fatalf("state = %v, want Open", got)
	}
}

func TestConfigValidate_InvalidValuesRevertToDefaults(t *testing.T) {
	cfg := ErrorRateConfig{
		RequestVolumeThreshold:    -1,
		ErrorRateThreshold:        1.5,
		MetricStatTimeWindowMs:    0,
		NumBuckets:                0,
		SleepWindowMs:             -5,
		RequestCountAfterHalfOpen: 0,
		SuccessCountAfterHalfOpen: 100, // > default RequestCountAfterHalfOpen
		MetricExpiredMs:           0,
	}
	warnings := cfg.Validate()
	if len(warnings) == 0 {
		t.Fatal("expected warnings for invalid config")
	}
	if cfg.RequestVolumeThreshold != DefaultRequestVolumeThreshold {
		t.Errorf("RequestVolumeThreshold = %d, want default", cfg.RequestVolumeThreshold)
	}
	if cfg.SuccessCountAfterHalfOpen != cfg.RequestCountAfterHalfOpen {
		t.Errorf("SuccessCountAfterHalfOpen should clamp to RequestCountAfterHalfOpen")
	}
}

func TestBucketWidthMs_Ceiling(t *testing.T) {
	cfg := ErrorRateConfig{MetricStatTimeWindowMs: 1000, NumBuckets: 3}
	if got := cfg.BucketWidthMs(); got != 334 {
		t.Fatalf("BucketWidthMs() = %d, want 334", got)
	}
}
