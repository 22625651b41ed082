// Package loadbalance implements the instance-selection adapters from
// §4.7: each one excludes Open instances, admits at most one HalfOpen
// probe through the shared StatusTable's admission budget, and falls
// back to its own selection strategy over the remaining available set.
// Grounded on original_source/polaris/plugin/load_balancer/simple_hash.cpp
// for the available/half-open split and the Hash adapter's exact
// selection rule.
package loadbalance

import (
	"math/rand"
	"sync/atomic"

	"github.com/polaris-governance/core/internal/breaker"
	"github.com/polaris-governance/core/internal/errs"
)

// Instance is the minimal addressable shape adapters select over.
type Instance struct {
	ID     string
	Weight int
}

// Criteria parameterizes a single Choose call (§4.7).
type Criteria struct {
	HashKey        uint64
	IgnoreHalfOpen bool
}

// Chooser is the common contract every adapter implements:
// choose(service_instances, criteria) -> instance | NotFound.
type Chooser interface {
	Choose(instances []Instance, criteria Criteria) (Instance, error)
}

// split partitions instances into the available set (excludes Open)
// and the half-open candidate set, per the StatusTable's current view.
func split(instances []Instance, table *breaker.StatusTable) (available, halfOpen []Instance) {
	for _, inst := range instances {
		switch table.State(inst.ID) {
		case breaker.Open:
			continue
		case breaker.HalfOpen:
			halfOpen = append(halfOpen, inst)
		default:
			available = append(available, inst)
		}
	}
	return available, halfOpen
}

// tryAdmitHalfOpen attempts to route this call through one of the
// half-open candidates, honoring the shared admission budget. It
// returns ok=false if ignored, empty, or the budget is exhausted for
// every candidate, in which case the caller must fall back to normal
// selection over the available set.
func tryAdmitHalfOpen(halfOpen []Instance, table *breaker.StatusTable, criteria Criteria, admitLimit uint32) (Instance, bool) {
	if criteria.IgnoreHalfOpen || len(halfOpen) == 0 {
		return Instance{}, false
	}
	for _, inst := range halfOpen {
		if table.TryAdmitHalfOpen(inst.ID, admitLimit) {
			return inst, true
		}
	}
	return Instance{}, false
}

// notFound builds the standard InstanceNotFound error for an adapter.
func notFound(op string) error {
	return errs.New(op, errs.InstanceNotFound)
}

var sharedRand = rand.New(rand.NewSource(1))

// RandomChooser picks uniformly at random over the available set.
type RandomChooser struct {
	Table      *breaker.StatusTable
	AdmitLimit uint32
}

func (c RandomChooser) Choose(instances []Instance, criteria Criteria) (Instance, error) {
	available, halfOpen := split(instances, c.Table)
	if inst, ok := tryAdmitHalfOpen(halfOpen, c.Table, criteria, c.AdmitLimit); ok {
		return inst, nil
	}
	if len(available) == 0 {
		return Instance{}, notFound("loadbalance.random")
	}
	return available[sharedRand.Intn(len(available))], nil
}

// WeightedRandomChooser picks weight-proportionally over the available
// set. Instances with Weight <= 0 are treated as weight 1.
type WeightedRandomChooser struct {
	Table      *breaker.StatusTable
	AdmitLimit uint32
}

func (c WeightedRandomChooser) Choose(instances []Instance, criteria Criteria) (Instance, error) {
	available, halfOpen := split(instances, c.Table)
	if inst, ok := tryAdmitHalfOpen(halfOpen, c.Table, criteria, c.AdmitLimit); ok {
		return inst, nil
	}
	if len(available) == 0 {
		return Instance{}, notFound("loadbalance.weighted_random")
	}

	total := 0
	for _, inst := range available {
		total += weightOf(inst)
	}
	target := sharedRand.Intn(total)
	for _, inst := range available {
		target -= weightOf(inst)
		if target < 0 {
			return inst, nil
		}
	}
	return available[len(available)-1], nil
}

func weightOf(inst Instance) int {
	if inst.Weight <= 0 {
		return 1
	}
	return inst.Weight
}

// RoundRobinChooser cycles through the available set with a monotonic
// counter, mod the set size.
type RoundRobinChooser struct {
	Table      *breaker.StatusTable
	AdmitLimit uint32
	counter    atomic.Uint64
}

func (c *RoundRobinChooser) Choose(instances []Instance, criteria Criteria) (Instance, error) {
	available, halfOpen := split(instances, c.Table)
	if inst, ok := tryAdmitHalfOpen(halfOpen, c.Table, criteria, c.AdmitLimit); ok {
		return inst, nil
	}
	if len(available) == 0 {
		return Instance{}, notFound("loadbalance.round_robin")
	}
	idx := c.counter.Add(1) - 1
	return available[idx%uint64(len(available))], nil
}

// HashChooser implements §4.7's Hash adapter: criteria.hash_key mod
// size over the stable (input) instance order, matching
// simple_hash.cpp's SimpleHashLoadBalancer::ChooseInstance exactly.
type HashChooser struct {
	Table      *breaker.StatusTable
	AdmitLimit uint32
}

func (c HashChooser) Choose(instances []Instance, criteria Criteria) (Instance, error) {
	available, halfOpen := split(instances, c.Table)
	if inst, ok := tryAdmitHalfOpen(halfOpen, c.Table, criteria, c.AdmitLimit); ok {
		return inst, nil
	}
	if len(available) == 0 {
		return Instance{}, notFound("loadbalance.hash")
	}
	idx := criteria.HashKey % uint64(len(available))
	return available[idx], nil
}
