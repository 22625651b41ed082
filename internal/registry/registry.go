// Package registry implements the minimal instance-set tracking named
// in §4.9: a thin (ServiceKey, []InstanceId) map populated
// by the embedding application, standing in for the out-of-scope
// service-registry cache population component. The health-check
// chain's on_recover scheduling and the load-balancer adapters both
// need "which instances exist for this service" independent of
// whether any outcome has ever been recorded against them.
package registry

import "sync"

// Registry is a concurrency-safe set of instance IDs per service key.
type Registry struct {
	mu        sync.RWMutex
	instances map[string][]string
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{instances: make(map[string][]string)}
}

// Sync replaces the known instance set for serviceKey with ids. An
// empty ids slice clears the service's entry entirely (used by
// embedders retiring a service).
func (r *Registry) Sync(serviceKey string, ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(ids) == 0 {
		delete(r.instances, serviceKey)
		return
	}
	snapshot := make([]string, len(ids))
	copy(snapshot, ids)
	r.instances[serviceKey] = snapshot
}

// Instances returns the known instance IDs for serviceKey, or nil if
// the service is unknown.
func (r *Registry) Instances(serviceKey string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids, ok := r.instances[serviceKey]
	if !ok {
		return nil
	}
	snapshot := make([]string, len(ids))
	copy(snapshot, ids)
	return snapshot
}

// ServiceKeys returns every service currently tracked.
func (r *Registry) ServiceKeys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.instances))
	for k := range r.instances {
		keys = append(keys, k)
	}
	return keys
}
