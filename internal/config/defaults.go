package config

// Default configuration values.
const (
	DefaultLogLevel    = "warn"
	DefaultLogFormat   = "text"
	DefaultOutput      = "auto" // table on a TTY, JSON otherwise
	DefaultStateFile   = ".wrangle/state.db"
	DefaultNamespace   = "default"
	DefaultBatchSize   = 1000
	DefaultConcurrency = 4
	DefaultSampleLimit = 100 // preview size when no limit is configured
	DefaultServerAddr  = "127.0.0.1:8080"
	DefaultCacheSize   = 128
)

// defaults returns the default values keyed as in the config file.
func defaults() map[string]any {
	return map[string]any{
		"verbose":           false,
		"log_level":         DefaultLogLevel,
		"log_format":        DefaultLogFormat,
		"output":            DefaultOutput,
		"state_path":        DefaultStateFile,
		"namespace":         DefaultNamespace,
		"batch_size":        DefaultBatchSize,
		"concurrency":       DefaultConcurrency,
		"sampling.method":   SampleNone,
		"sampling.fraction": 1.0,
		"sampling.limit":    0,
		"sampling.seed":     0,
		"source.driver":     "lines",
		"server.addr":       DefaultServerAddr,
		"server.cache_size": DefaultCacheSize,
	}
}

// ApplyDefaults fills zero values of a config built without Load.
func ApplyDefaults(c *Config) {
	if c == nil {
		return
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.Output == "" {
		c.Output = DefaultOutput
	}
	if c.StatePath == "" {
		c.StatePath = DefaultStateFile
	}
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
	if c.BatchSize == 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.Concurrency == 0 {
		c.Concurrency = DefaultConcurrency
	}
	if c.Sampling.Method == "" {
		c.Sampling.Method = SampleNone
	}
	if c.Source.Driver == "" {
		c.Source.Driver = "lines"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
	if c.Server.CacheSize == 0 {
		c.Server.CacheSize = DefaultCacheSize
	}
}

// Default returns a config with every default applied.
func Default() *Config {
	c := &Config{Sampling: SamplingConfig{Fraction: 1}}
	ApplyDefaults(c)
	return c
}
