package polaris

import (
	"github.com/polaris-governance/core/internal/loadbalance"
)

// RecordCall absorbs one call outcome (§6 "record_call(instance_id,
// outcome, latency_ms) - fire-and-forget"). It feeds the metric store
// (read by the Error-Rate breaker's periodic pass) and the
// Consecutive-Error breaker (evaluated synchronously, right here).
// latencyMs is accepted for parity with the documented signature; it is
// not recorded or exported, and the breaker strategies key only on outcome.
func (e *Engine) RecordCall(instanceID string, outcome Outcome, latencyMs int64) {
	nowMs := e.clk.NowMs()
	failed := outcome.failed()

	e.store.Record(instanceID, failed, nowMs)
	e.consecutive.OnRecord(instanceID, failed, nowMs)

	e.Metrics.BreakerState.WithLabelValues(instanceID).Set(float64(e.table.State(instanceID)))
}

// ChooseInstance selects one instance for serviceKey from the
// currently known instance set, applying the configured load-balancer
// adapter (§4.7, §6 "choose_instance(service_key, criteria) ->
// instance | error"). Returns KindInstanceNotFound when the available
// set is empty.
func (e *Engine) ChooseInstance(serviceKey string, criteria Criteria) (Instance, error) {
	ids := e.registry.Instances(serviceKey)
	instances := make([]loadbalance.Instance, len(ids))
	for i, id := range ids {
		instances[i] = loadbalance.Instance{ID: id}
	}

	selected, err := e.chooser.Choose(instances, loadbalance.Criteria{
		HashKey:        criteria.HashKey,
		IgnoreHalfOpen: criteria.IgnoreHalfOpen,
	})
	if err != nil {
		return Instance{}, err
	}
	return Instance{ID: selected.ID}, nil
}

// SyncInstances replaces the known instance set for serviceKey (§4.9,
// §6 supplement). An empty ids slice retires the service entirely.
// Each id must be in "host:port" form so the health-check chain can
// dial it.
func (e *Engine) SyncInstances(serviceKey string, ids []string) {
	e.registry.Sync(serviceKey, ids)
}

// ServiceKeys returns every service currently tracked by SyncInstances.
func (e *Engine) ServiceKeys() []string {
	return e.registry.ServiceKeys()
}

// Snapshot returns the current breaker state and raw metric counters
// for every instance known for serviceKey (§3/§6 introspection
// supplement). Instances with no recorded outcome yet report Closed
// and zero counters.
func (e *Engine) Snapshot(serviceKey string) []InstanceStatus {
	nowMs := e.clk.NowMs()
	ids := e.registry.Instances(serviceKey)
	out := make([]InstanceStatus, 0, len(ids))
	for _, id := range ids {
		out = append(out, e.snapshotOne(id, nowMs))
	}
	return out
}

func (e *Engine) snapshotOne(instanceID string, nowMs int64) InstanceStatus {
	st := e.table.SnapshotOf(instanceID)
	total, errors, lastAccessMs, _ := e.store.Snapshot(instanceID, nowMs)
	return InstanceStatus{
		InstanceID:   instanceID,
		State:        st.State.String(),
		Total:        total,
		Errors:       errors,
		LastUpdateMs: st.LastUpdateMs,
		LastAccessMs: lastAccessMs,
	}
}

// State returns instanceID's current circuit-breaker state without the
// metric store's counters, for callers that only need the hot-path
// fact (§4.2 "state(instance_id) -> State" is wait-free).
func (e *Engine) State(instanceID string) string {
	return e.table.State(instanceID).String()
}
