package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes environment variables read as configuration.
const EnvPrefix = "WRANGLE_"

// maxUpwardSearchLevels limits how far up the directory tree to search for config files.
const maxUpwardSearchLevels = 10

var configNames = []string{"wrangle.yaml", "wrangle.yml"}

// sections are the nested config keys. WRANGLE_SAMPLING_FRACTION maps to
// sampling.fraction.
var sections = []string{"sampling", "source", "server"}

// flagKeys maps flag names to config keys where they differ.
var flagKeys = map[string]string{
	"state":      "state_path",
	"driver":     "source.driver",
	"input":      "source.dsn",
	"dsn":        "source.dsn",
	"query":      "source.query",
	"method":     "sampling.method",
	"fraction":   "sampling.fraction",
	"limit":      "sampling.limit",
	"seed":       "sampling.seed",
	"addr":       "server.addr",
	"cache-size": "server.cache_size",
	"option":     "source.options",
}

// loggerKey is used to store the logger in a context.
type loggerKey struct{}

// configKey is used to store the config in a context.
type configKey struct{}

// findConfigFile returns explicit, or the nearest config file found by
// walking up from dir.
func findConfigFile(explicit, dir string) string {
	if explicit != "" {
		return explicit
	}
	for i := 0; i < maxUpwardSearchLevels; i++ {
		for _, name := range configNames {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}
	return ""
}

// envKey transforms WRANGLE_SOURCE_DSN into source.dsn.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	for _, section := range sections {
		if rest, ok := strings.CutPrefix(key, section+"_"); ok {
			if opt, ok := strings.CutPrefix(rest, "options_"); ok && section == "source" {
				return "source.options." + opt
			}
			return section + "." + rest
		}
	}
	return key
}

// Load reads configuration from defaults, the config file, environment and
// changed flags. cfgFile overrides config file discovery; flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "."
	}
	used := findConfigFile(cfgFile, cwd)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", used, err)
		}
	}

	// 3. Environment variables
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags that were explicitly set
	if flags != nil {
		known := defaults()
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				key = strings.ReplaceAll(f.Name, "-", "_")
				if _, isConfig := known[key]; !isConfig {
					return "", nil
				}
			}
			if f.Value.Type() == "stringToString" {
				m, err := flags.GetStringToString(f.Name)
				if err != nil {
					return "", nil
				}
				return key, m
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = used

	cfg.Source.DSN = expandEnvVars(cfg.Source.DSN)
	cfg.Source.Password = expandEnvVars(cfg.Source.Password)
	cfg.Source.Host = expandEnvVars(cfg.Source.Host)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandEnvVars expands ${VAR} patterns with environment variable values.
// Unset variables are left as written.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		if val := os.Getenv(name); val != "" {
			return val
		}
		return match
	})
}

// NewLogger builds the process logger from the logging options.
func (c *Config) NewLogger(w io.Writer) (*slog.Logger, error) {
	level := c.LogLevel
	if c.Verbose {
		level = "debug"
	}

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch c.LogFormat {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", c.LogFormat)
	}
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}

// WithConfig returns a context carrying cfg.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext retrieves the config from the command context, or the
// defaults when none is set.
func FromContext(ctx context.Context) *Config {
	if c, ok := ctx.Value(configKey{}).(*Config); ok {
		return c
	}
	return Default()
}
