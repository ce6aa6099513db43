// Package config loads wrangle configuration.
//
// Values are layered, highest precedence first: changed CLI flags,
// WRANGLE_* environment variables, wrangle.yaml, then built-in defaults.
package config

import (
	"github.com/leapstack-labs/wrangle/internal/source"
	"github.com/leapstack-labs/wrangle/pkg/sampling"
)

// Config holds all configuration options.
type Config struct {
	Verbose     bool           `koanf:"verbose"`
	LogLevel    string         `koanf:"log_level"`
	LogFormat   string         `koanf:"log_format"`
	Output      string         `koanf:"output"`
	StatePath   string         `koanf:"state_path"`
	Namespace   string         `koanf:"namespace"`
	BatchSize   int            `koanf:"batch_size"`
	Concurrency int            `koanf:"concurrency"`
	Sampling    SamplingConfig `koanf:"sampling"`
	Source      source.Config  `koanf:"source"`
	Server      ServerConfig   `koanf:"server"`

	// File is the config file that was loaded, if any.
	File string `koanf:"-"`
}

// SamplingConfig selects how previews are drawn from a source.
type SamplingConfig struct {
	// Method is "none", "bernoulli" or "reservoir".
	Method string `koanf:"method"`

	// Fraction is the Bernoulli keep probability.
	Fraction float64 `koanf:"fraction"`

	// Limit caps the number of sampled rows, and is the reservoir size.
	// Zero means no cap; previews then show DefaultSampleLimit rows.
	Limit int `koanf:"limit"`

	// Seed makes samples reproducible.
	Seed uint64 `koanf:"seed"`
}

// Options converts the sampling settings for sampling.Apply.
func (s SamplingConfig) Options() sampling.Options {
	return sampling.Options(s)
}

// PreviewLimit is the row cap for previews.
func (s SamplingConfig) PreviewLimit() int {
	if s.Limit > 0 {
		return s.Limit
	}
	return DefaultSampleLimit
}

// ServerConfig holds HTTP service options.
type ServerConfig struct {
	Addr      string `koanf:"addr"`
	CacheSize int    `koanf:"cache_size"`
}

// Sampling methods.
const (
	SampleNone      = sampling.MethodNone
	SampleBernoulli = sampling.MethodBernoulli
	SampleReservoir = sampling.MethodReservoir
)
