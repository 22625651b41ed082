// Package config provides YAML configuration loading, validation, and
// optional hot-reload for the engine: env-var substitution,
// applyDefaults + normalize split, Warnings carried on the struct
// rather than a package-level var, adapted to this domain's own key
// table (§6).
package config

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/polaris-governance/core/internal/breaker"
	"github.com/polaris-governance/core/internal/healthcheck"
)

// Config is the top-level engine configuration (§6 key table).
type Config struct {
	ErrorRate   ErrorRateConfig   `yaml:"errorRate" json:"errorRate"`
	Consecutive ConsecutiveConfig `yaml:"consecutiveError" json:"consecutiveError"`
	HealthCheck HealthCheckConfig `yaml:"healthCheck" json:"healthCheck"`

	// LoadBalancer names the load-balancer adapter the engine's
	// ChooseInstance uses (§9's "plugin registry: config -> named
	// strategy" design note, applied to the one plugin point this
	// module actually owns). One of random, weighted_random,
	// round_robin, hash, consistent_hash, maglev_hash.
	LoadBalancer string `yaml:"loadBalancer" json:"loadBalancer"`

	// Warnings holds non-fatal config issues detected during loading.
	// Stored on the Config itself, not a package-level var, so Load is
	// safe to call concurrently from the hot-reload goroutine.
	Warnings []string `yaml:"-" json:"-"`
}

// ErrorRateConfig mirrors breaker.ErrorRateConfig's YAML-facing shape.
type ErrorRateConfig struct {
	RequestVolumeThreshold    int     `yaml:"requestVolumeThreshold" json:"requestVolumeThreshold"`
	ErrorRateThreshold        float64 `yaml:"errorRateThreshold" json:"errorRateThreshold"`
	MetricStatTimeWindowMs    int64   `yaml:"metricStatTimeWindow" json:"metricStatTimeWindow"`
	NumBuckets                int     `yaml:"metricNumBuckets" json:"metricNumBuckets"`
	SleepWindowMs             int64   `yaml:"sleepWindow" json:"sleepWindow"`
	RequestCountAfterHalfOpen int     `yaml:"requestCountAfterHalfOpen" json:"requestCountAfterHalfOpen"`
	SuccessCountAfterHalfOpen int     `yaml:"successCountAfterHalfOpen" json:"successCountAfterHalfOpen"`
	MetricExpiredMs           int64   `yaml:"metricExpiredTime" json:"metricExpiredTime"`
	AutoHalfOpenEnabled       *bool   `yaml:"autoHalfOpenEnabled" json:"autoHalfOpenEnabled"`
}

// IsAutoHalfOpenEnabled returns the configured value, defaulting to
// true when unset.
func (c ErrorRateConfig) IsAutoHalfOpenEnabled() bool {
	if c.AutoHalfOpenEnabled == nil {
		return true
	}
	return *c.AutoHalfOpenEnabled
}

// ToBreaker converts the YAML-facing shape into breaker.ErrorRateConfig.
func (c ErrorRateConfig) ToBreaker() breaker.ErrorRateConfig {
	return breaker.ErrorRateConfig{
		RequestVolumeThreshold:    c.RequestVolumeThreshold,
		ErrorRateThreshold:        c.ErrorRateThreshold,
		MetricStatTimeWindowMs:    c.MetricStatTimeWindowMs,
		NumBuckets:                c.NumBuckets,
		SleepWindowMs:             c.SleepWindowMs,
		RequestCountAfterHalfOpen: c.RequestCountAfterHalfOpen,
		SuccessCountAfterHalfOpen: c.SuccessCountAfterHalfOpen,
		MetricExpiredMs:           c.MetricExpiredMs,
		AutoHalfOpenEnabled:       c.IsAutoHalfOpenEnabled(),
	}
}

// ConsecutiveConfig mirrors breaker.ConsecutiveConfig's YAML shape.
type ConsecutiveConfig struct {
	Threshold int `yaml:"threshold" json:"threshold"`
}

func (c ConsecutiveConfig) ToBreaker() breaker.ConsecutiveConfig {
	return breaker.ConsecutiveConfig{Threshold: c.Threshold}
}

// HealthCheckConfig holds the probe chain and scheduling settings.
type HealthCheckConfig struct {
	When       string     `yaml:"when" json:"when"`
	Chain      []string   `yaml:"chain" json:"chain"`
	IntervalMs int64      `yaml:"interval" json:"interval"`
	TimeoutMs  int64      `yaml:"timeout" json:"timeout"`
	UDP        UDPConfig  `yaml:"udp" json:"udp"`
	HTTP       HTTPConfig `yaml:"http" json:"http"`

	// ProbeRatePerSecond bounds how many outbound probes the scheduler
	// issues per second across all instances on a tick, independent of
	// how many instances are eligible. 0 (the default) means unlimited.
	ProbeRatePerSecond float64 `yaml:"probeRatePerSecond" json:"probeRatePerSecond"`
}

// UDPConfig holds the UDP probe's hex payloads (§6 "UDP send/receive").
type UDPConfig struct {
	Send    string `yaml:"send" json:"send"`
	Receive string `yaml:"receive" json:"receive"`
}

// HTTPConfig holds the HTTP probe's request shape and expected status.
type HTTPConfig struct {
	Method         string `yaml:"method" json:"method"`
	Path           string `yaml:"path" json:"path"`
	ExpectedStatus []int  `yaml:"expectedStatus" json:"expectedStatus"`
}

// ToScheduler converts the YAML-facing shape into healthcheck.Config.
func (c HealthCheckConfig) ToScheduler() healthcheck.Config {
	interval := c.IntervalMs
	if interval <= 0 {
		interval = healthcheck.DefaultDetectIntervalMs
	}
	return healthcheck.Config{
		When:               healthcheck.When(c.When),
		DetectIntervalMs:   interval,
		ProbeRatePerSecond: c.ProbeRatePerSecond,
	}
}

var envVarRe = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns in s with the
// corresponding environment variable value.
func expandEnvVars(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		key := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		return match
	})
}

// Load reads and parses a YAML configuration file, applies environment
// variable substitution, normalizes invalid values to their documented
// defaults (§6: "Invalid numerics silently revert to defaults"), and
// returns the resulting warnings on cfg.Warnings.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses configuration from raw YAML bytes. Useful for
// testing and for embedders that already have config in memory.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)
	cfg.Warnings = normalize(&cfg)

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HealthCheck.When == "" {
		cfg.HealthCheck.When = string(healthcheck.OnRecover)
	}
	if len(cfg.HealthCheck.Chain) == 0 {
		cfg.HealthCheck.Chain = []string{"tcp"}
	}
	if cfg.HealthCheck.IntervalMs == 0 {
		cfg.HealthCheck.IntervalMs = healthcheck.DefaultDetectIntervalMs
	}
	if cfg.HealthCheck.TimeoutMs == 0 {
		cfg.HealthCheck.TimeoutMs = 500
	}
	if cfg.LoadBalancer == "" {
		cfg.LoadBalancer = "random"
	}
}

// validLoadBalancers is the compile-time registry of load-balancer
// adapter names this module ships (§9).
var validLoadBalancers = map[string]struct{}{
	"random":          {},
	"weighted_random": {},
	"round_robin":     {},
	"hash":            {},
	"consistent_hash": {},
	"maglev_hash":     {},
}

// normalize reverts invalid ErrorRate/Consecutive fields to their
// defaults in place and returns the accumulated warnings (§6, §9's
// open question: invalid config should surface a warning, not fail
// init). An unknown HealthCheck.When policy name likewise reverts to
// on_recover with a warning.
func normalize(cfg *Config) []string {
	breakerCfg := cfg.ErrorRate.ToBreaker()
	warnings := breakerCfg.Validate()
	cfg.ErrorRate = fromBreaker(breakerCfg)

	consecutiveCfg := cfg.Consecutive.ToBreaker()
	warnings = append(warnings, consecutiveCfg.Validate()...)
	cfg.Consecutive = ConsecutiveConfig{Threshold: consecutiveCfg.Threshold}

	switch healthcheck.When(cfg.HealthCheck.When) {
	case healthcheck.Never, healthcheck.Always, healthcheck.OnRecover:
	default:
		warnings = append(warnings, fmt.Sprintf("healthCheck.when %q invalid, reverting to on_recover", cfg.HealthCheck.When))
		cfg.HealthCheck.When = string(healthcheck.OnRecover)
	}
	if cfg.HealthCheck.IntervalMs <= 0 {
		warnings = append(warnings, "healthCheck.interval invalid, reverting to default")
		cfg.HealthCheck.IntervalMs = healthcheck.DefaultDetectIntervalMs
	}
	if cfg.HealthCheck.TimeoutMs <= 0 {
		warnings = append(warnings, "healthCheck.timeout invalid, reverting to default")
		cfg.HealthCheck.TimeoutMs = 500
	}

	if _, ok := validLoadBalancers[cfg.LoadBalancer]; !ok {
		warnings = append(warnings, fmt.Sprintf("loadBalancer %q invalid, reverting to random", cfg.LoadBalancer))
		cfg.LoadBalancer = "random"
	}

	if cfg.HealthCheck.ProbeRatePerSecond < 0 {
		warnings = append(warnings, "healthCheck.probeRatePerSecond invalid, reverting to unlimited")
		cfg.HealthCheck.ProbeRatePerSecond = 0
	}

	return warnings
}

func fromBreaker(b breaker.ErrorRateConfig) ErrorRateConfig {
	enabled := b.AutoHalfOpenEnabled
	return ErrorRateConfig{
		RequestVolumeThreshold:    b.RequestVolumeThreshold,
		ErrorRateThreshold:        b.ErrorRateThreshold,
		MetricStatTimeWindowMs:    b.MetricStatTimeWindowMs,
		NumBuckets:                b.NumBuckets,
		SleepWindowMs:             b.SleepWindowMs,
		RequestCountAfterHalfOpen: b.RequestCountAfterHalfOpen,
		SuccessCountAfterHalfOpen: b.SuccessCountAfterHalfOpen,
		MetricExpiredMs:           b.MetricExpiredMs,
		AutoHalfOpenEnabled:       &enabled,
	}
}
