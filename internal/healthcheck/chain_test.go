package healthcheck

import (
	"context"
	"testing"

	"github.com/polaris-governance/core/internal/errs"
)

type stubProbe struct {
	name string
	res  DetectResult
}

func (p stubProbe) Name() string { return p.name }
func (p stubProbe) Detect(ctx context.Context, host string, port int) DetectResult {
	return p.res
}

func TestChain_AllPassReturnsOk(t *testing.T) {
	c := NewChain(
		stubProbe{name: "a", res: DetectResult{Kind: errs.Ok, DetectType: "a", ElapseMs: 5}},
		stubProbe{name: "b", res: DetectResult{Kind: errs.Ok, DetectType: "b", ElapseMs: 7}},
	)
	res := c.Detect(context.Background(), "h", 1)
	if !res.Ok() {
		t.Fatalf("expected Ok, got %v", res.Kind)
	}
	if res.ElapseMs != 12 {
		t.Fatalf("expected cumulative elapse 12, got %d", res.ElapseMs)
	}
}

func TestChain_FirstFailureStopsIteration(t *testing.T) {
	thirdRan := false
	c := NewChain(
		stubProbe{name: "a", res: DetectResult{Kind: errs.Ok, DetectType: "a", ElapseMs: 3}},
		stubProbe{name: "b", res: DetectResult{Kind: errs.NetworkFailed, DetectType: "b", ElapseMs: 4}},
		stubProbeFunc{fn: func() DetectResult {
			thirdRan = true
			return DetectResult{Kind: errs.Ok}
		}},
	)
	res := c.Detect(context.Background(), "h", 1)
	if res.Ok() {
		t.Fatal("expected failure")
	}
	if res.DetectType != "b" {
		t.Fatalf("expected failure to report probe b, got %s", res.DetectType)
	}
	if thirdRan {
		t.Fatal("expected chain to stop after first failure")
	}
}

type stubProbeFunc struct {
	fn func() DetectResult
}

func (p stubProbeFunc) Name() string { return "c" }
func (p stubProbeFunc) Detect(ctx context.Context, host string, port int) DetectResult {
	return p.fn()
}

func TestChain_EmptyChainReportsOk(t *testing.T) {
	c := NewChain()
	res := c.Detect(context.Background(), "h", 1)
	if !res.Ok() {
		t.Fatal("expected empty chain to report healthy")
	}
}
