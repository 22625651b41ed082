// Package polaris is the public façade of the instance-health
// governance engine (§1, §6). It wires together the metric store, the
// circuit-breaker status table, the two breaker strategies, the
// health-check chain and scheduler, the executor framework, a
// load-balancer adapter, and the instance registry behind the four
// operations §6 names: Init, RecordCall, ChooseInstance, and Shutdown,
// plus the §4.9/§6 supplements SyncInstances and Snapshot. Grounded on
// a typical gateway-style main.go wiring sequence (config load ->
// component assembly -> worker start -> signal-driven graceful
// shutdown), collapsed into a library constructor since this module
// is embedded, not run standalone.
package polaris

import (
	"log/slog"

	"github.com/polaris-governance/core/internal/breaker"
	"github.com/polaris-governance/core/internal/clock"
	"github.com/polaris-governance/core/internal/config"
	"github.com/polaris-governance/core/internal/errs"
	"github.com/polaris-governance/core/internal/executor"
	"github.com/polaris-governance/core/internal/healthcheck"
	"github.com/polaris-governance/core/internal/loadbalance"
	"github.com/polaris-governance/core/internal/metricstore"
	"github.com/polaris-governance/core/internal/registry"
	"github.com/polaris-governance/core/internal/telemetry"
)

// Config is the engine's configuration (§6's key table). It is
// produced either by LoadConfig(path) or as a Go struct literal,
// supporting both an embedder's own struct literal and a YAML file
// path.
type Config = config.Config

// LoadConfig reads, normalizes, and returns the configuration at path.
// Invalid numerics and an unknown loadBalancer/healthCheck.when value
// silently revert to their documented defaults; see cfg.Warnings.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// DefaultConfig returns a Config with every field at its documented
// default, suitable as a starting point for a Go struct literal.
func DefaultConfig() *Config {
	cfg, _ := config.LoadFromBytes([]byte("{}"))
	return cfg
}

// Outcome is the result of one RPC reported via RecordCall (§6,
// GLOSSARY "Call outcome").
type Outcome int

const (
	Ok Outcome = iota
	Fail
	Timeout
)

func (o Outcome) failed() bool {
	return o != Ok
}

// Criteria parameterizes ChooseInstance (§4.7).
type Criteria struct {
	// HashKey selects the target for Hash/ConsistentHash/MaglevHash
	// adapters; ignored by Random/WeightedRandom/RoundRobin.
	HashKey uint64
	// IgnoreHalfOpen, when set, forbids ChooseInstance from ever
	// returning a HalfOpen instance's one-shot admission.
	IgnoreHalfOpen bool
}

// Instance is the selection result returned by ChooseInstance.
type Instance struct {
	ID string
}

// InstanceStatus is the read-only per-instance introspection view
// named in §3/§6: breaker state plus the metric store's
// raw windowed counters, as of the call to Snapshot.
type InstanceStatus struct {
	InstanceID   string
	State        string
	Total        uint64
	Errors       uint64
	LastUpdateMs int64
	LastAccessMs int64
}

// Re-export the domain error kinds (§7) so embedders can
// errors.Is/errors.As against them without importing internal/errs
// directly.
type (
	ErrorKind = errs.Kind
	Error     = errs.Error
)

const (
	KindOk                = errs.Ok
	KindInvalidConfig     = errs.InvalidConfig
	KindInstanceNotFound  = errs.InstanceNotFound
	KindNetworkFailed     = errs.NetworkFailed
	KindServerError       = errs.ServerError
	KindTimeout           = errs.Timeout
	KindResourceExhausted = errs.ResourceExhausted
	KindInternal          = errs.Internal
)

// KindOf extracts the ErrorKind from err, defaulting to KindInternal
// for an unclassified error and KindOk for nil.
func KindOf(err error) ErrorKind {
	return errs.KindOf(err)
}

// Engine is one instance of the governance core (§1). An embedding
// application typically constructs exactly one Engine per process and
// calls RecordCall/ChooseInstance from many goroutines concurrently;
// Shutdown stops its workers and releases all entries.
type Engine struct {
	logger *slog.Logger
	clk    clock.Clock

	cfg      *Config
	reloader *config.Reloader

	store       *metricstore.Store
	table       *breaker.StatusTable
	errRate     *breaker.ErrorRateBreaker
	consecutive *breaker.ConsecutiveBreaker

	healthScheduler *healthcheck.Scheduler

	group    *executor.Group
	chooser  loadbalance.Chooser
	registry *registry.Registry

	Metrics *telemetry.Metrics
}

// Config returns the engine's current configuration, reflecting the
// most recent hot-reload if one occurred.
func (e *Engine) Config() *Config {
	return e.cfg
}
