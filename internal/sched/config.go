package sched

import (
	"os"
	"runtime"
	"time"

	yaml "github.com/goccy/go-yaml"

	"github.com/knightchaser/rtsched/internal/readyqueue"
)

// OverrunPolicy selects how the dispatcher reacts to a deadline overrun,
// per spec §7.
type OverrunPolicy string

const (
	OverrunWarn      OverrunPolicy = "warn"
	OverrunSkipNext  OverrunPolicy = "skip_next"
	OverrunTerminate OverrunPolicy = "terminate"
)

// Config holds the recognized configuration options of spec §6, loadable
// from YAML following the teacher's config.go defaultConfig()/clamp-on-load
// pattern.
type Config struct {
	SchedulingPolicy string        `yaml:"scheduling_policy"`
	Parallelism      int           `yaml:"parallelism"`
	PreemptQuantumMS int           `yaml:"preempt_quantum_ms"`
	WatchdogPeriodMS int           `yaml:"watchdog_period_ms"`
	OverrunPolicy    OverrunPolicy `yaml:"overrun_policy"`
}

// DefaultConfig returns the documented defaults: PRIORITY policy, hardware
// parallelism, a 10ms preempt quantum, a 1s watchdog period, and warn-only
// overrun handling.
func DefaultConfig() Config {
	return Config{
		SchedulingPolicy: "PRIORITY",
		Parallelism:      runtime.NumCPU(),
		PreemptQuantumMS: 10,
		WatchdogPeriodMS: 1000,
		OverrunPolicy:    OverrunWarn,
	}
}

// Load reads YAML from path and overrides the defaults; an empty path, or
// one that doesn't exist, yields defaults only — mirroring the teacher's
// "if config file not found, use default values" behavior.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, nil
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	cfg.clamp()
	return cfg, nil
}

func (c *Config) clamp() {
	if c.Parallelism <= 0 {
		c.Parallelism = runtime.NumCPU()
	}
	if c.PreemptQuantumMS <= 0 {
		c.PreemptQuantumMS = 10
	}
	if c.WatchdogPeriodMS <= 0 {
		c.WatchdogPeriodMS = 1000
	}
	switch c.OverrunPolicy {
	case OverrunWarn, OverrunSkipNext, OverrunTerminate:
	default:
		c.OverrunPolicy = OverrunWarn
	}
}

func (c Config) preemptQuantum() time.Duration {
	return time.Duration(c.PreemptQuantumMS) * time.Millisecond
}

func (c Config) watchdogPeriod() time.Duration {
	return time.Duration(c.WatchdogPeriodMS) * time.Millisecond
}

func (c Config) policy() (readyqueue.Policy, error) {
	return readyqueue.ParsePolicy(c.SchedulingPolicy)
}
