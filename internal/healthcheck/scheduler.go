package healthcheck

import (
	"context"
	"log/slog"

	"golang.org/x/time/rate"

	"github.com/polaris-governance/core/internal/breaker"
	"github.com/polaris-governance/core/internal/metricstore"
)

// When controls which instances the scheduler probes on each tick
// (§4.5 configuration key healthCheck.when).
type When string

const (
	Never     When = "never"
	Always    When = "always"
	OnRecover When = "on_recover"
)

// DefaultDetectIntervalMs is the probe cadence when unconfigured (§6).
const DefaultDetectIntervalMs = 10000

// Instance is the minimal addressable shape the scheduler needs from
// the instance registry — host and port to dial, nothing else.
type Instance struct {
	ID   string
	Host string
	Port int
}

// InstanceSource supplies the current instance set. The root package's
// registrySource adapter (engine.go) implements this over the instance
// registry; the scheduler holds no instance data of its
// own (§9's no-back-pointers design note extends to this collaborator
// too).
type InstanceSource interface {
	Instances() []Instance
}

// Config holds the scheduler's tunables.
type Config struct {
	When             When
	DetectIntervalMs int64

	// ProbeRatePerSecond bounds outbound probe issuance across all
	// instances on a tick. 0 means unlimited.
	ProbeRatePerSecond float64
}

// DefaultConfig returns the documented defaults (§6).
func DefaultConfig() Config {
	return Config{When: OnRecover, DetectIntervalMs: DefaultDetectIntervalMs}
}

// Scheduler runs the configured probe chain against the appropriate
// instance subset on each tick and records the outcome as a synthetic
// call into the shared metric store (§4.5).
type Scheduler struct {
	cfg     Config
	chain   *Chain
	source  InstanceSource
	store   *metricstore.Store
	table   *breaker.StatusTable
	logger  *slog.Logger
	limiter *rate.Limiter

	// OnProbe, if set, is called with every probe result, for telemetry
	// (§10's probe outcome/latency collectors).
	OnProbe func(result DetectResult)
}

// New creates a Scheduler. chain may be empty (always reports healthy).
// A nonzero cfg.ProbeRatePerSecond bounds how fast probeOne issues
// outbound probes across all instances on a single tick, so a large
// instance set under "always" scheduling can't open hundreds of
// sockets in a burst.
func New(cfg Config, chain *Chain, source InstanceSource, store *metricstore.Store, table *breaker.StatusTable, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.ProbeRatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.ProbeRatePerSecond), 1)
	}
	return &Scheduler{cfg: cfg, chain: chain, source: source, store: store, table: table, logger: logger, limiter: limiter}
}

// Tick runs one scheduling pass at nowMs. Eligibility follows §4.5:
// "always" probes every known instance; "on_recover" probes only
// instances currently Open; "never" probes nothing.
func (s *Scheduler) Tick(ctx context.Context, nowMs int64) {
	if s.cfg.When == Never {
		return
	}

	for _, inst := range s.source.Instances() {
		if s.cfg.When == OnRecover && s.table.State(inst.ID) != breaker.Open {
			continue
		}
		s.probeOne(ctx, inst, nowMs)
	}
}

func (s *Scheduler) probeOne(ctx context.Context, inst Instance, nowMs int64) {
	if err := s.limiter.Wait(ctx); err != nil {
		return
	}

	result := s.chain.Detect(ctx, inst.Host, inst.Port)
	failed := !result.Ok()
	s.store.Record(inst.ID, failed, nowMs)

	if s.OnProbe != nil {
		s.OnProbe(result)
	}

	if failed {
		s.logger.Warn("health probe failed", "instance", inst.ID, "detect_type", result.DetectType,
			"kind", result.Kind, "elapse_ms", result.ElapseMs)
	} else {
		s.logger.Debug("health probe ok", "instance", inst.ID, "detect_type", result.DetectType,
			"elapse_ms", result.ElapseMs)
	}
}
