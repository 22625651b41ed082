package breaker

import (
	"log/slog"
	"sync"

	"github.com/polaris-governance/core/internal/metricstore"
)

// Default config values (§6 configuration keys table), preserved exactly
// from the original error_rate.cpp so invalid config silently reverts to
// the same numbers the source used.
const (
	DefaultRequestVolumeThreshold    = 10
	DefaultErrorRateThreshold        = 0.5
	DefaultMetricStatTimeWindowMs    = 60000
	DefaultNumBuckets                = 12
	DefaultSleepWindowMs             = 30000
	DefaultRequestCountAfterHalfOpen = 10
	DefaultSuccessCountAfterHalfOpen = 8
	DefaultMetricExpiredMs           = 60000

	// staleHalfOpenMultiple guards against an instance stuck in HalfOpen
	// indefinitely — undocumented in the original source but preserved
	// as-is per §9's open question.
	staleHalfOpenMultiple = 100
)

// ErrorRateConfig holds the Error-Rate breaker's tunables (§4.3).
type ErrorRateConfig struct {
	RequestVolumeThreshold    int
	ErrorRateThreshold        float64
	MetricStatTimeWindowMs    int64
	NumBuckets                int
	SleepWindowMs             int64
	RequestCountAfterHalfOpen int
	SuccessCountAfterHalfOpen int
	MetricExpiredMs           int64
	AutoHalfOpenEnabled       bool
}

// Validate normalizes invalid values to their defaults in place, and
// returns the warnings an operator should see (§9 open question: "the
// source silently normalizes invalid config — intentional but
// unreviewed. Implementations should surface a warning.").
func (c *ErrorRateConfig) Validate() []string {
	var warnings []string
	warn := func(field string) {
		warnings = append(warnings, "circuit breaker config "+field+" invalid, reverting to default")
	}

	if c.RequestVolumeThreshold <= 0 {
		warn("requestVolumeThreshold")
		c.RequestVolumeThreshold = DefaultRequestVolumeThreshold
	}
	if c.ErrorRateThreshold <= 0 || c.ErrorRateThreshold >= 1 {
		warn("errorRateThreshold")
		c.ErrorRateThreshold = DefaultErrorRateThreshold
	}
	if c.MetricStatTimeWindowMs <= 0 {
		warn("metricStatTimeWindow")
		c.MetricStatTimeWindowMs = DefaultMetricStatTimeWindowMs
	}
	if c.NumBuckets <= 0 {
		warn("metricNumBuckets")
		c.NumBuckets = DefaultNumBuckets
	}
	if c.SleepWindowMs <= 0 {
		warn("sleepWindow")
		c.SleepWindowMs = DefaultSleepWindowMs
	}
	if c.RequestCountAfterHalfOpen <= 0 {
		warn("requestCountAfterHalfOpen")
		c.RequestCountAfterHalfOpen = DefaultRequestCountAfterHalfOpen
	}
	if c.SuccessCountAfterHalfOpen <= 0 {
		warn("successCountAfterHalfOpen")
		c.SuccessCountAfterHalfOpen = DefaultSuccessCountAfterHalfOpen
	} else if c.SuccessCountAfterHalfOpen > c.RequestCountAfterHalfOpen {
		warn("successCountAfterHalfOpen (clamped to requestCountAfterHalfOpen)")
		c.SuccessCountAfterHalfOpen = c.RequestCountAfterHalfOpen
	}
	if c.MetricExpiredMs <= 0 {
		warn("metricExpiredTime")
		c.MetricExpiredMs = DefaultMetricExpiredMs
	}
	return warnings
}

// BucketWidthMs derives the per-bucket duration, ceil(window/numBuckets),
// matching the C++ source's metric_bucket_time_ computation.
func (c *ErrorRateConfig) BucketWidthMs() int64 {
	n := int64(c.NumBuckets)
	return (c.MetricStatTimeWindowMs + n - 1) / n
}

// DefaultErrorRateConfig returns a config with every field at its
// documented default (§6).
func DefaultErrorRateConfig() ErrorRateConfig {
	return ErrorRateConfig{
		RequestVolumeThreshold:    DefaultRequestVolumeThreshold,
		ErrorRateThreshold:        DefaultErrorRateThreshold,
		MetricStatTimeWindowMs:    DefaultMetricStatTimeWindowMs,
		NumBuckets:                DefaultNumBuckets,
		SleepWindowMs:             DefaultSleepWindowMs,
		RequestCountAfterHalfOpen: DefaultRequestCountAfterHalfOpen,
		SuccessCountAfterHalfOpen: DefaultSuccessCountAfterHalfOpen,
		MetricExpiredMs:           DefaultMetricExpiredMs,
		AutoHalfOpenEnabled:       true,
	}
}

// ErrorRateBreaker is the periodic evaluator described in §4.3. It holds
// no instance-scoped state itself — just config plus non-owning handles
// to the shared Store and StatusTable, per §9's cyclic-collaborator note.
type ErrorRateBreaker struct {
	cfgMu  sync.RWMutex
	cfg    ErrorRateConfig
	store  *metricstore.Store
	table  *StatusTable
	logger *slog.Logger

	// OnTransition, if set, is called after every successful state
	// transition this strategy drives, for telemetry (§10).
	OnTransition func(instanceID string, from, to State)
	// OnExpire, if set, is called for every instance the periodic
	// expiration sweep removes.
	OnExpire func(instanceID string)
}

// NewErrorRateBreaker creates the strategy. store must have been
// constructed with BucketWidthMs/NumBuckets/MetricExpiredMs matching cfg.
func NewErrorRateBreaker(cfg ErrorRateConfig, store *metricstore.Store, table *StatusTable, logger *slog.Logger) *ErrorRateBreaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &ErrorRateBreaker{cfg: cfg, store: store, table: table, logger: logger}
}

// UpdateConfig swaps in new threshold tunables for subsequent passes.
// The metric store's bucket geometry (width/count) is fixed at
// construction and is not affected by a hot-reloaded config.
func (b *ErrorRateBreaker) UpdateConfig(cfg ErrorRateConfig) {
	b.cfgMu.Lock()
	b.cfg = cfg
	b.cfgMu.Unlock()
}

func (b *ErrorRateBreaker) snapshotCfg() ErrorRateConfig {
	b.cfgMu.RLock()
	defer b.cfgMu.RUnlock()
	return b.cfg
}

// Evaluate runs one periodic pass (TimingCircuitBreak, §4.3) over every
// instance currently tracked by the metric store, then sweeps expired
// entries. Individual instance failures are logged and skipped — the
// pass never aborts early (§7).
func (b *ErrorRateBreaker) Evaluate(nowMs int64) {
	for _, instanceID := range b.store.Instances() {
		b.evaluateInstance(instanceID, nowMs)
	}
	b.store.Expire(nowMs, func(instanceID string) {
		b.table.ForceClose(instanceID)
		b.logger.Debug("instance metric entry expired", "instance", instanceID)
		if b.OnExpire != nil {
			b.OnExpire(instanceID)
		}
	})
}

func (b *ErrorRateBreaker) evaluateInstance(instanceID string, nowMs int64) {
	switch b.table.State(instanceID) {
	case Open:
		b.evaluateOpen(instanceID, nowMs)
	case Closed:
		b.evaluateClosed(instanceID, nowMs)
	case HalfOpen:
		b.evaluateHalfOpen(instanceID, nowMs)
	}
}

func (b *ErrorRateBreaker) evaluateOpen(instanceID string, nowMs int64) {
	cfg := b.snapshotCfg()
	if !cfg.AutoHalfOpenEnabled {
		return
	}
	if b.table.LastUpdateMs(instanceID)+cfg.SleepWindowMs > nowMs {
		return
	}
	if b.table.Translate(instanceID, Open, HalfOpen) {
		b.table.SetLastUpdateMs(instanceID, nowMs)
		b.store.Clear(instanceID)
		b.logger.Info("circuit breaker transition", "instance", instanceID, "from", Open, "to", HalfOpen)
		b.notify(instanceID, Open, HalfOpen)
	}
}

func (b *ErrorRateBreaker) evaluateClosed(instanceID string, nowMs int64) {
	cfg := b.snapshotCfg()
	total, errors, ok := b.store.Aggregate(instanceID, nowMs)
	if !ok || total < uint64(cfg.RequestVolumeThreshold) {
		return
	}
	if float64(errors)/float64(total) < cfg.ErrorRateThreshold {
		return
	}
	if b.table.Translate(instanceID, Closed, Open) {
		b.table.SetLastUpdateMs(instanceID, nowMs)
		// Buckets are intentionally retained — the breaker ignores them
		// until HalfOpen (§4.3, §9 open question).
		b.logger.Info("circuit breaker transition", "instance", instanceID, "from", Closed, "to", Open,
			"total", total, "errors", errors)
		b.notify(instanceID, Closed, Open)
	}
}

func (b *ErrorRateBreaker) evaluateHalfOpen(instanceID string, nowMs int64) {
	cfg := b.snapshotCfg()
	total, errors, ok := b.store.Aggregate(instanceID, nowMs)
	if !ok {
		return
	}
	success := total - errors

	if success >= uint64(cfg.SuccessCountAfterHalfOpen) {
		if b.table.Translate(instanceID, HalfOpen, Closed) {
			b.table.SetLastUpdateMs(instanceID, nowMs)
			b.store.Clear(instanceID)
			b.logger.Info("circuit breaker transition", "instance", instanceID, "from", HalfOpen, "to", Closed)
			b.notify(instanceID, HalfOpen, Closed)
		}
		return
	}

	failureBudgetExceeded := errors > uint64(cfg.RequestCountAfterHalfOpen-cfg.SuccessCountAfterHalfOpen)
	staleProbe := b.table.LastUpdateMs(instanceID)+staleHalfOpenMultiple*cfg.SleepWindowMs <= nowMs

	if failureBudgetExceeded || staleProbe {
		if b.table.Translate(instanceID, HalfOpen, Open) {
			b.table.SetLastUpdateMs(instanceID, nowMs)
			b.store.Clear(instanceID)
			b.logger.Info("circuit breaker transition", "instance", instanceID, "from", HalfOpen, "to", Open,
				"stale_probe", staleProbe)
			b.notify(instanceID, HalfOpen, Open)
		}
	}
}

func (b *ErrorRateBreaker) notify(instanceID string, from, to State) {
	if b.OnTransition != nil {
		b.OnTransition(instanceID, from, to)
	}
}
