package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/leapstack-labs/wrangle/internal/source"
)

var (
	outputModes = []string{"auto", "table", "json", "csv", "markdown"}
	logLevels   = []string{"debug", "info", "warn", "error"}
	logFormats  = []string{"text", "json"}
	sampleKinds = []string{SampleNone, SampleBernoulli, SampleReservoir}
)

// Validate checks option values. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains(logLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Errorf("log_level must be one of %v, got %q", logLevels, c.LogLevel))
	}
	if !slices.Contains(logFormats, c.LogFormat) {
		errs = append(errs, fmt.Errorf("log_format must be one of %v, got %q", logFormats, c.LogFormat))
	}
	if !slices.Contains(outputModes, c.Output) {
		errs = append(errs, fmt.Errorf("output must be one of %v, got %q", outputModes, c.Output))
	}
	if c.BatchSize < 0 {
		errs = append(errs, fmt.Errorf("batch_size must not be negative, got %d", c.BatchSize))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}

	s := c.Sampling
	if !slices.Contains(sampleKinds, s.Method) {
		errs = append(errs, fmt.Errorf("sampling.method must be one of %v, got %q", sampleKinds, s.Method))
	}
	if s.Fraction < 0 || s.Fraction > 1 {
		errs = append(errs, fmt.Errorf("sampling.fraction must be between [0, 1], got %v", s.Fraction))
	}
	if s.Limit < 0 {
		errs = append(errs, fmt.Errorf("sampling.limit must not be negative, got %d", s.Limit))
	}
	if s.Method == SampleReservoir && s.Limit == 0 {
		errs = append(errs, fmt.Errorf("sampling.limit is required for reservoir sampling"))
	}

	if c.Source.Driver != "" && !slices.Contains(source.Drivers(), c.Source.Driver) {
		errs = append(errs, &source.UnknownDriverError{Driver: c.Source.Driver, Available: source.Drivers()})
	}

	return errors.Join(errs...)
}
