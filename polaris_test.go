package polaris

import (
	"context"
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.HealthCheck.When = "never"
	cfg.ErrorRate.RequestVolumeThreshold = 4
	cfg.ErrorRate.ErrorRateThreshold = 0.5
	cfg.Consecutive.Threshold = 3
	return cfg
}

func TestInit_RejectsNilConfig(t *testing.T) {
	if _, err := Init(context.Background(), nil, nil); err == nil {
		t.Fatal("expected an error for a nil config")
	}
}

func TestInit_RejectsUnknownLoadBalancer(t *testing.T) {
	cfg := testConfig()
	cfg.LoadBalancer = "not-a-real-strategy"
	if _, err := Init(context.Background(), cfg, nil); KindOf(err) != KindInvalidConfig {
		t.Fatalf("expected KindInvalidConfig, got %v", err)
	}
}

func TestInit_RejectsUnknownProbe(t *testing.T) {
	cfg := testConfig()
	cfg.HealthCheck.Chain = []string{"carrier-pigeon"}
	if _, err := Init(context.Background(), cfg, nil); KindOf(err) != KindInvalidConfig {
		t.Fatalf("expected KindInvalidConfig, got %v", err)
	}
}

func TestEngine_ChooseInstanceNotFoundWhenEmpty(t *testing.T) {
	e, err := Init(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer e.Shutdown()

	if _, err := e.ChooseInstance("svc-a", Criteria{}); KindOf(err) != KindInstanceNotFound {
		t.Fatalf("expected KindInstanceNotFound, got %v", err)
	}
}

func TestEngine_SyncAndChooseInstance(t *testing.T) {
	e, err := Init(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer e.Shutdown()

	e.SyncInstances("svc-a", []string{"10.0.0.1:9000", "10.0.0.2:9000"})

	inst, err := e.ChooseInstance("svc-a", Criteria{})
	if err != nil {
		t.Fatalf("ChooseInstance failed: %v", err)
	}
	if inst.ID != "10.0.0.1:9000" && inst.ID != "10.0.0.2:9000" {
		t.Fatalf("unexpected instance %q", inst.ID)
	}
}

func TestEngine_RecordCallTripsConsecutiveBreaker(t *testing.T) {
	e, err := Init(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer e.Shutdown()

	const instanceID = "10.0.0.1:9000"
	e.SyncInstances("svc-a", []string{instanceID})

	for i := 0; i < 3; i++ {
		e.RecordCall(instanceID, Fail, 10)
	}

	if got := e.State(instanceID); got != "open" {
		t.Fatalf("expected instance to be open after 3 consecutive failures, got %q", got)
	}

	if _, err := e.ChooseInstance("svc-a", Criteria{IgnoreHalfOpen: true}); KindOf(err) != KindInstanceNotFound {
		t.Fatalf("expected open instance to be excluded from selection, err=%v", err)
	}
}

func TestEngine_SnapshotReflectsRecordedCalls(t *testing.T) {
	e, err := Init(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer e.Shutdown()

	const instanceID = "10.0.0.1:9000"
	e.SyncInstances("svc-a", []string{instanceID})
	e.RecordCall(instanceID, Ok, 5)
	e.RecordCall(instanceID, Fail, 5)

	statuses := e.Snapshot("svc-a")
	if len(statuses) != 1 {
		t.Fatalf("expected 1 instance status, got %d", len(statuses))
	}
	got := statuses[0]
	if got.InstanceID != instanceID || got.Total != 2 || got.Errors != 1 {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestEngine_ServiceKeysAndRetire(t *testing.T) {
	e, err := Init(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer e.Shutdown()

	e.SyncInstances("svc-a", []string{"10.0.0.1:9000"})
	e.SyncInstances("svc-b", []string{"10.0.0.2:9000"})
	if len(e.ServiceKeys()) != 2 {
		t.Fatalf("expected 2 service keys, got %v", e.ServiceKeys())
	}

	e.SyncInstances("svc-a", nil)
	if len(e.ServiceKeys()) != 1 {
		t.Fatalf("expected svc-a to be retired, got %v", e.ServiceKeys())
	}
}

func TestEngine_RecordCallUpdatesBreakerStateGauge(t *testing.T) {
	e, err := Init(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer e.Shutdown()

	const instanceID = "10.0.0.1:9000"
	e.SyncInstances("svc-a", []string{instanceID})

	for i := 0; i < 3; i++ {
		e.RecordCall(instanceID, Fail, 10)
	}

	metric := &dto.Metric{}
	gauge, err := e.Metrics.BreakerState.GetMetricWithLabelValues(instanceID)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues failed: %v", err)
	}
	if err := gauge.Write(metric); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if metric.GetGauge().GetValue() != float64(1) {
		t.Fatalf("expected breaker_state gauge to report Open (1) after tripping, got %v", metric.GetGauge().GetValue())
	}
}

func TestEngine_MetricsAndStatusHandlersServe(t *testing.T) {
	e, err := Init(context.Background(), testConfig(), nil)
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer e.Shutdown()

	if e.MetricsHandler() == nil {
		t.Fatal("expected a non-nil metrics handler")
	}
	if e.StatusHandler() == nil {
		t.Fatal("expected a non-nil status handler")
	}
}
