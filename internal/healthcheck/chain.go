package healthcheck

import (
	"context"

	"github.com/polaris-governance/core/internal/errs"
)

// Chain runs its probes in order. Any probe's network failure marks the
// whole detection as failed and stops the chain immediately; a
// successful probe does not short-circuit the remaining ones, so every
// configured check must pass for the instance to be considered healthy
// (§4.5).
type Chain struct {
	probes []Prober
}

// NewChain builds a probe chain. An empty chain always reports healthy.
func NewChain(probes ...Prober) *Chain {
	return &Chain{probes: probes}
}

// Detect runs every probe in the chain against host:port, returning the
// first failing result or, if all pass, the last probe's result with
// the cumulative elapsed time.
func (c *Chain) Detect(ctx context.Context, host string, port int) DetectResult {
	if len(c.probes) == 0 {
		return DetectResult{Kind: errs.Ok, DetectType: "none"}
	}

	var total int64
	var last DetectResult
	for _, p := range c.probes {
		res := p.Detect(ctx, host, port)
		total += res.ElapseMs
		if !res.Ok() {
			res.ElapseMs = total
			return res
		}
		last = res
	}
	last.ElapseMs = total
	return last
}
