package loadbalance

import (
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-rendezvous"

	"github.com/polaris-governance/core/internal/breaker"
)

// ConsistentHashChooser builds a rendezvous (highest-random-weight)
// hash ring lazily from the available instance set, rebuilding it
// whenever membership changes (§4.7: "hash ring ... built lazily from
// instance identities; rebuilt when membership changes").
type ConsistentHashChooser struct {
	Table      *breaker.StatusTable
	AdmitLimit uint32

	mu      sync.Mutex
	ring    *rendezvous.Rendezvous
	members []string
}

func (c *ConsistentHashChooser) Choose(instances []Instance, criteria Criteria) (Instance, error) {
	available, halfOpen := split(instances, c.Table)
	if inst, ok := tryAdmitHalfOpen(halfOpen, c.Table, criteria, c.AdmitLimit); ok {
		return inst, nil
	}
	if len(available) == 0 {
		return Instance{}, notFound("loadbalance.consistent_hash")
	}

	byID := make(map[string]Instance, len(available))
	ids := make([]string, 0, len(available))
	for _, inst := range available {
		byID[inst.ID] = inst
		ids = append(ids, inst.ID)
	}

	ring := c.ringFor(ids)
	key := strconv.FormatUint(criteria.HashKey, 10)
	return byID[ring.Lookup(key)], nil
}

func (c *ConsistentHashChooser) ringFor(ids []string) *rendezvous.Rendezvous {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ring != nil && sameMembers(c.members, ids) {
		return c.ring
	}
	c.ring = rendezvous.New(ids, xxhash.Sum64String)
	c.members = ids
	return c.ring
}

func sameMembers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return true
}
