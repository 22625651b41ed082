package loadbalance

import (
	"testing"

	"github.com/polaris-governance/core/internal/breaker"
)

func instances(ids ...string) []Instance {
	out := make([]Instance, len(ids))
	for i, id := range ids {
		out[i] = Instance{ID: id}
	}
	return out
}

func TestSplit_ExcludesOpenIncludesHalfOpen(t *testing.T) {
	table := breaker.New()
	table.Translate("open1", breaker.Closed, breaker.Open)
	table.Translate("half1", breaker.Closed, breaker.Open)
	table.Translate("half1", breaker.Open, breaker.HalfOpen)

	available, halfOpen := split(instances("open1", "half1", "closed1"), table)

	if len(available) != 1 || available[0].ID != "closed1" {
		t.Fatalf("expected available=[closed1], got %v", available)
	}
	if len(halfOpen) != 1 || halfOpen[0].ID != "half1" {
		t.Fatalf("expected halfOpen=[half1], got %v", halfOpen)
	}
}

func TestHashChooser_ModuloOverAvailable(t *testing.T) {
	table := breaker.New()
	c := HashChooser{Table: table, AdmitLimit: 1}
	inst, err := c.Choose(instances("a", "b", "c"), Criteria{HashKey: 4})
	if err != nil {
		t.Fatal(err)
	}
	if inst.ID != "b" { // 4 % 3 == 1 -> index 1
		t.Fatalf("expected b, got %s", inst.ID)
	}
}

func TestHashChooser_EmptyAvailableIsNotFound(t *testing.T) {
	table := breaker.New()
	table.Translate("a", breaker.Closed, breaker.Open)
	c := HashChooser{Table: table, AdmitLimit: 1}
	_, err := c.Choose(instances("a"), Criteria{HashKey: 0})
	if err == nil {
		t.Fatal("expected InstanceNotFound")
	}
}

func TestRoundRobinChooser_CyclesThroughAvailable(t *testing.T) {
	table := breaker.New()
	c := &RoundRobinChooser{Table: table, AdmitLimit: 1}
	seen := map[string]int{}
	for i := 0; i < 6; i++ {
		inst, err := c.Choose(instances("a", "b", "c"), Criteria{})
		if err != nil {
			t.Fatal(err)
		}
		seen[inst.ID]++
	}
	if seen["a"] != 2 || seen["b"] != 2 || seen["c"] != 2 {
		t.Fatalf("expected even rotation, got %v", seen)
	}
}

func TestTryAdmitHalfOpen_RespectsIgnoreFlag(t *testing.T) {
	table := breaker.New()
	table.Translate("a", breaker.Closed, breaker.Open)
	table.Translate("a", breaker.Open, breaker.HalfOpen)

	c := HashChooser{Table: table, AdmitLimit: 4}
	inst, err := c.Choose(instances("a", "b"), Criteria{HashKey: 0, IgnoreHalfOpen: true})
	if err != nil {
		t.Fatal(err)
	}
	if inst.ID != "b" {
		t.Fatalf("expected fallback to available instance b, got %s", inst.ID)
	}
}

func TestTryAdmitHalfOpen_AdmitsWithinBudget(t *testing.T) {
	table := breaker.New()
	table.Translate("a", breaker.Closed, breaker.Open)
	table.Translate("a", breaker.Open, breaker.HalfOpen)

	c := HashChooser{Table: table, AdmitLimit: 1}
	inst, err := c.Choose(instances("a"), Criteria{HashKey: 0})
	if err != nil {
		t.Fatal(err)
	}
	if inst.ID != "a" {
		t.Fatalf("expected half-open admission for a, got %s", inst.ID)
	}

	// Budget of 1 is exhausted; no available fallback exists either.
	_, err = c.Choose(instances("a"), Criteria{HashKey: 0})
	if err == nil {
		t.Fatal("expected InstanceNotFound once half-open budget is exhausted")
	}
}

func TestConsistentHashChooser_StableForSameKey(t *testing.T) {
	table := breaker.New()
	c := &ConsistentHashChooser{Table: table, AdmitLimit: 1}
	first, err := c.Choose(instances("a", "b", "c"), Criteria{HashKey: 42})
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Choose(instances("a", "b", "c"), Criteria{HashKey: 42})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected stable selection, got %s then %s", first.ID, second.ID)
	}
}

func TestMaglevHashChooser_StableForSameKey(t *testing.T) {
	table := breaker.New()
	c := &MaglevHashChooser{Table: table, AdmitLimit: 1}
	first, err := c.Choose(instances("a", "b", "c"), Criteria{HashKey: 42})
	if err != nil {
		t.Fatal(err)
	}
	second, err := c.Choose(instances("a", "b", "c"), Criteria{HashKey: 42})
	if err != nil {
		t.Fatal(err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected stable selection, got %s then %s", first.ID, second.ID)
	}
}

func TestMaglevHashChooser_EveryBackendGetsAtLeastOneSlot(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	lookup := buildMaglevTable(ids, maglevTableSize)
	counts := map[string]int{}
	for _, id := range lookup {
		counts[id]++
	}
	for _, id := range ids {
		if counts[id] == 0 {
			t.Fatalf("backend %s got no slots", id)
		}
	}
}
