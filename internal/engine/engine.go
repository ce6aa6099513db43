// Package engine compiles recipes and runs them over record sources.
// It handles sampling, batching and concurrent batch execution.
package engine

import (
	"log/slog"

	"github.com/leapstack-labs/wrangle/pkg/directive"
	"github.com/leapstack-labs/wrangle/pkg/pipeline"
	"github.com/leapstack-labs/wrangle/pkg/recipe"
	"github.com/leapstack-labs/wrangle/pkg/sampling"

	// Registers the built-in directives.
	_ "github.com/leapstack-labs/wrangle/pkg/directive/builtin"
)

// Default execution settings.
const (
	DefaultBatchSize   = 1000
	DefaultConcurrency = 4
)

// Engine compiles recipes through a shared cache and executes them.
// It is safe for concurrent use.
type Engine struct {
	registry    *directive.Registry
	cache       *recipe.Cache
	executor    *pipeline.Executor
	batchSize   int
	concurrency int
	sampling    sampling.Options
	logger      *slog.Logger
}

// Config holds engine configuration.
type Config struct {
	// BatchSize is the number of rows per batch. Zero uses DefaultBatchSize.
	BatchSize int
	// Concurrency bounds the number of batches in flight.
	Concurrency int
	// CacheSize bounds the compiled recipe cache.
	CacheSize int
	// Sampling is applied when Run is given no sampling options.
	Sampling sampling.Options
	// Registry resolves directives (optional, uses the built-in registry if nil)
	Registry *directive.Registry
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates an engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	registry := cfg.Registry
	if registry == nil {
		registry = directive.Default()
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	compiler := recipe.NewCompiler(recipe.WithRegistry(registry), recipe.WithLogger(logger))

	logger.Debug("initializing engine",
		"batch_size", batchSize,
		"concurrency", concurrency,
		"directives", registry.Count(),
	)

	return &Engine{
		registry:    registry,
		cache:       recipe.NewCache(compiler, cfg.CacheSize),
		executor:    pipeline.NewExecutor(logger),
		batchSize:   batchSize,
		concurrency: concurrency,
		sampling:    cfg.Sampling,
		logger:      logger,
	}
}

// Compile compiles text, reusing the result of an identical earlier compile.
func (e *Engine) Compile(text string) *recipe.Status {
	return e.cache.Compile(text)
}

// Directives lists the registered directives sorted by name.
func (e *Engine) Directives() []directive.Definition {
	return e.registry.List()
}

// CacheStats returns compile cache hits and misses.
func (e *Engine) CacheStats() (hits, misses int) {
	return e.cache.Stats()
}

// Sampling returns the default sampling options.
func (e *Engine) Sampling() sampling.Options {
	return e.sampling
}
