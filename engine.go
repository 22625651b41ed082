package polaris

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

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

// errorRatePassInterval is the Error-Rate breaker's periodic
// evaluation cadence (§4.3: "Periodic pass (cadence ~100 ms)").
const errorRatePassInterval = 100 * time.Millisecond

// minHealthCheckInterval is the floor applied to a configured
// healthCheck.interval so a misconfigured small value cannot turn
// active probing into a busy loop.
const minHealthCheckInterval = 50 * time.Millisecond

// Init constructs an Engine from cfg (§6 "init(config) -> result").
// ctx governs the Engine's background workers — cancelling it has the
// same effect as calling Shutdown, but Shutdown is the documented way
// to release resources deterministically.
func Init(ctx context.Context, cfg *Config, logger *slog.Logger) (*Engine, error) {
	if cfg == nil {
		return nil, errs.New("polaris.Init", errs.InvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	errRateCfg := cfg.ErrorRate.ToBreaker()
	table := breaker.New()
	store := metricstore.New(errRateCfg.BucketWidthMs(), errRateCfg.NumBuckets, errRateCfg.MetricExpiredMs)

	errRate := breaker.NewErrorRateBreaker(errRateCfg, store, table, logger)
	consecutive := breaker.NewConsecutiveBreaker(cfg.Consecutive.ToBreaker(), table)

	chain, err := buildHealthChain(cfg.HealthCheck)
	if err != nil {
		return nil, err
	}

	reg := registry.New()
	scheduler := healthcheck.New(cfg.HealthCheck.ToScheduler(), chain, registrySource{reg}, store, table, logger)

	chooser, err := buildChooser(cfg.LoadBalancer, table, uint32(errRateCfg.RequestCountAfterHalfOpen))
	if err != nil {
		return nil, err
	}

	metrics := telemetry.New()
	wireMetrics(metrics, errRate, consecutive, table, scheduler)

	clk := clock.Default
	group := executor.NewGroup(logger, clk.NowMs)
	group.Add(&executor.Worker{
		Name:     "error-rate-breaker",
		Interval: errorRatePassInterval,
		Tick: func(_ context.Context, nowMs int64) {
			errRate.Evaluate(nowMs)
		},
	})
	group.Add(&executor.Worker{
		Name:     "health-check-scheduler",
		Interval: healthCheckInterval(cfg.HealthCheck.IntervalMs),
		Tick: func(tickCtx context.Context, nowMs int64) {
			scheduler.Tick(tickCtx, nowMs)
		},
	})
	group.Start(ctx)

	e := &Engine{
		logger:      logger,
		clk:         clk,
		cfg:         cfg,
		store:       store,
		table:       table,
		errRate:     errRate,
		consecutive: consecutive,

		healthScheduler: scheduler,
		group:           group,
		chooser:         chooser,
		registry:        reg,

		Metrics: metrics,
	}
	return e, nil
}

// wireMetrics connects the breaker/health-check telemetry hooks to the
// engine's collectors. Kept separate from Init so the wiring itself is
// easy to read as one unit (§10).
func wireMetrics(metrics *telemetry.Metrics, errRate *breaker.ErrorRateBreaker, consecutive *breaker.ConsecutiveBreaker, table *breaker.StatusTable, scheduler *healthcheck.Scheduler) {
	onTransition := func(instanceID string, from, to breaker.State) {
		metrics.BreakerTransitions.WithLabelValues(instanceID, from.String(), to.String()).Inc()
		metrics.BreakerState.WithLabelValues(instanceID).Set(float64(to))
	}
	errRate.OnTransition = onTransition
	errRate.OnExpire = func(instanceID string) {
		metrics.MetricExpirations.Inc()
		metrics.BreakerState.DeleteLabelValues(instanceID)
	}
	consecutive.OnTransition = onTransition

	table.OnAdmit = func(instanceID string, admitted bool) {
		outcome := "rejected"
		if admitted {
			outcome = "admitted"
		}
		metrics.HalfOpenAdmissions.WithLabelValues(instanceID, outcome).Inc()
	}

	scheduler.OnProbe = func(result healthcheck.DetectResult) {
		metrics.ProbeOutcomes.WithLabelValues(result.DetectType, string(result.Kind)).Inc()
		metrics.ProbeDuration.WithLabelValues(result.DetectType).Observe(float64(result.ElapseMs) / 1000)
	}
}

// InitFromFile loads cfg from path and constructs an Engine, logging
// any normalization warnings before returning (§6).
func InitFromFile(ctx context.Context, path string, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}
	for _, w := range cfg.Warnings {
		logger.Warn("config warning", "message", w)
	}

	e, err := Init(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	reloader := config.NewReloader(path, cfg, logger)
	reloader.OnReload(func(newCfg *Config) {
		e.applyReload(newCfg)
	})
	reloader.Start()
	e.reloader = reloader
	return e, nil
}

// applyReload swaps in new breaker/consecutive tunables after a
// successful hot-reload. The metric store's bucket geometry is fixed
// at construction (§4.3's bucket_width_ms is derived once at Init), so
// a changed window/bucket count takes effect only after a restart;
// threshold-only tunables apply immediately.
func (e *Engine) applyReload(newCfg *Config) {
	e.cfg = newCfg
	e.errRate.UpdateConfig(newCfg.ErrorRate.ToBreaker())
	e.consecutive.UpdateConfig(newCfg.Consecutive.ToBreaker())
}

func healthCheckInterval(ms int64) time.Duration {
	d := time.Duration(ms) * time.Millisecond
	if d < minHealthCheckInterval {
		return minHealthCheckInterval
	}
	return d
}

func buildHealthChain(cfg config.HealthCheckConfig) (*healthcheck.Chain, error) {
	probes := make([]healthcheck.Prober, 0, len(cfg.Chain))
	for _, name := range cfg.Chain {
		switch name {
		case "tcp":
			probes = append(probes, healthcheck.TCPProbe{TimeoutMs: cfg.TimeoutMs})
		case "udp":
			send, err := hex.DecodeString(cfg.UDP.Send)
			if err != nil {
				return nil, errs.Wrap("polaris.Init", errs.InvalidConfig, err)
			}
			recv, err := hex.DecodeString(cfg.UDP.Receive)
			if err != nil {
				return nil, errs.Wrap("polaris.Init", errs.InvalidConfig, err)
			}
			probes = append(probes, healthcheck.UDPProbe{Send: send, Receive: recv, TimeoutMs: cfg.TimeoutMs})
		case "http":
			expect := make(map[int]struct{}, len(cfg.HTTP.ExpectedStatus))
			for _, code := range cfg.HTTP.ExpectedStatus {
				expect[code] = struct{}{}
			}
			probes = append(probes, healthcheck.HTTPProbe{
				Method:       cfg.HTTP.Method,
				Path:         cfg.HTTP.Path,
				TimeoutMs:    cfg.TimeoutMs,
				ExpectStatus: expect,
			})
		default:
			return nil, errs.New("polaris.Init", errs.InvalidConfig)
		}
	}
	return healthcheck.NewChain(probes...), nil
}

// buildChooser is the compile-time name -> constructor registry §9
// calls for, replacing the original source's dynamic plugin loading.
func buildChooser(name string, table *breaker.StatusTable, admitLimit uint32) (loadbalance.Chooser, error) {
	switch name {
	case "", "random":
		return loadbalance.RandomChooser{Table: table, AdmitLimit: admitLimit}, nil
	case "weighted_random":
		return loadbalance.WeightedRandomChooser{Table: table, AdmitLimit: admitLimit}, nil
	case "round_robin":
		return &loadbalance.RoundRobinChooser{Table: table, AdmitLimit: admitLimit}, nil
	case "hash":
		return loadbalance.HashChooser{Table: table, AdmitLimit: admitLimit}, nil
	case "consistent_hash":
		return &loadbalance.ConsistentHashChooser{Table: table, AdmitLimit: admitLimit}, nil
	case "maglev_hash":
		return &loadbalance.MaglevHashChooser{Table: table, AdmitLimit: admitLimit}, nil
	default:
		return nil, errs.Wrap("polaris.Init", errs.InvalidConfig, fmt.Errorf("unknown loadBalancer %q", name))
	}
}

// registrySource adapts the registry to healthcheck.InstanceSource,
// resolving each stored instance ID to a dialable (host, port) pair.
// IDs that fail to parse are skipped silently (they are never probed
// and nothing is logged) rather than aborting the whole tick (§7: no
// component blocks or aborts a pass because one instance is malformed).
type registrySource struct {
	reg *registry.Registry
}

func (s registrySource) Instances() []healthcheck.Instance {
	var out []healthcheck.Instance
	for _, key := range s.reg.ServiceKeys() {
		for _, id := range s.reg.Instances(key) {
			host, port, err := registry.SplitHostPort(id)
			if err != nil {
				continue
			}
			out = append(out, healthcheck.Instance{ID: id, Host: host, Port: port})
		}
	}
	return out
}
