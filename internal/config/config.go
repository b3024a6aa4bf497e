// Package config holds the tuning knobs for the logsift engine: heartbeat
// cadence, failure-detection thresholds, and the retry budget. Defaults are
// deliberate (see Default) and a YAML file can override any subset of them,
// so the failure-detection surface is explicit configuration rather than
// magic numbers spread through the engine.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config controls the engine's timing and retry behavior.
//
// The thresholds form a ladder: a worker whose last heartbeat is older than
// UnhealthyAfter is suspect; older than FailedAfter it is declared failed
// and its work is reassigned. FailedAfter must therefore exceed
// UnhealthyAfter, and both should be multiples of HeartbeatInterval so a
// single delayed beat does not trip them.
type Config struct {
	// HeartbeatInterval is how often workers signal liveness. The
	// coordinator's health sweep runs at the same cadence.
	HeartbeatInterval time.Duration

	// UnhealthyAfter is the silence threshold after which a worker is
	// marked unhealthy (recommended: 2x the heartbeat interval).
	UnhealthyAfter time.Duration

	// FailedAfter is the silence threshold after which an unhealthy worker
	// is declared failed and recovered (recommended: 3x the interval).
	FailedAfter time.Duration

	// MaxRetries bounds how many times a task may be reassigned after
	// failures before it is marked permanently failed.
	MaxRetries int

	// DispatchTimeout bounds the assign call to a worker.
	DispatchTimeout time.Duration
}

// Default returns the recommended configuration: 5s heartbeats, unhealthy
// after two missed beats, failed after three, three retries per task.
func Default() Config {
	return Config{
		HeartbeatInterval: 5 * time.Second,
		UnhealthyAfter:    10 * time.Second,
		FailedAfter:       15 * time.Second,
		MaxRetries:        3,
		DispatchTimeout:   5 * time.Second,
	}
}

// fileConfig mirrors Config with durations as strings ("5s", "250ms"),
// the form a YAML file actually carries. Pointer fields distinguish
// "absent" from "zero" so partial files overlay cleanly.
type fileConfig struct {
	HeartbeatInterval *string `yaml:"heartbeat_interval"`
	UnhealthyAfter    *string `yaml:"unhealthy_after"`
	FailedAfter       *string `yaml:"failed_after"`
	MaxRetries        *int    `yaml:"max_retries"`
	DispatchTimeout   *string `yaml:"dispatch_timeout"`
}

// Load reads a YAML file and overlays it on the defaults. Fields absent
// from the file keep their default values. Durations are written in Go
// syntax, e.g. "5s".
func Load(path string) (Config, error) {
	c := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return c, fmt.Errorf("parse config: %w", err)
	}
	overlay := func(dst *time.Duration, src *string, name string) error {
		if src == nil {
			return nil
		}
		d, err := time.ParseDuration(*src)
		if err != nil {
			return fmt.Errorf("parse config: %s: %w", name, err)
		}
		*dst = d
		return nil
	}
	if err := overlay(&c.HeartbeatInterval, fc.HeartbeatInterval, "heartbeat_interval"); err != nil {
		return c, err
	}
	if err := overlay(&c.UnhealthyAfter, fc.UnhealthyAfter, "unhealthy_after"); err != nil {
		return c, err
	}
	if err := overlay(&c.FailedAfter, fc.FailedAfter, "failed_after"); err != nil {
		return c, err
	}
	if err := overlay(&c.DispatchTimeout, fc.DispatchTimeout, "dispatch_timeout"); err != nil {
		return c, err
	}
	if fc.MaxRetries != nil {
		c.MaxRetries = *fc.MaxRetries
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// Validate checks that the thresholds form a usable ladder.
func (c Config) Validate() error {
	if c.HeartbeatInterval <= 0 {
		return errors.New("heartbeat_interval must be positive")
	}
	if c.UnhealthyAfter < c.HeartbeatInterval {
		return errors.New("unhealthy_after must be at least the heartbeat interval")
	}
	if c.FailedAfter <= c.UnhealthyAfter {
		return errors.New("failed_after must exceed unhealthy_after")
	}
	if c.MaxRetries < 0 {
		return errors.New("max_retries must not be negative")
	}
	if c.DispatchTimeout <= 0 {
		return errors.New("dispatch_timeout must be positive")
	}
	return nil
}
