// Package source reads records from files and databases.
//
// Sources are lazy: rows are produced one at a time as they are pulled, so a
// sampler in front of a source never materializes the whole input. Drivers
// register themselves in init functions:
//
//	src, err := source.Open(ctx, source.Config{Driver: "csv", DSN: "people.csv"}, logger)
package source

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/leapstack-labs/wrangle/pkg/row"
	"github.com/leapstack-labs/wrangle/pkg/sampling"
)

// Source is a forward-only sequence of rows. When Next returns false, Err
// reports whether the sequence ended because of a failure.
type Source interface {
	sampling.Iterator[*row.Row]
	Err() error
	Close() error
}

// Config selects and configures a driver.
type Config struct {
	// Driver is the registered driver name, e.g. "csv" or "postgres".
	Driver string `koanf:"driver" json:"driver"`

	// DSN is a file path for file drivers and a connection string for
	// database drivers. Use ":memory:" for in-memory databases.
	DSN string `koanf:"dsn" json:"dsn,omitempty"`

	// Query is the statement database drivers read rows from.
	Query string `koanf:"query" json:"query,omitempty"`

	// Host, Port, Database, Username and Password build a postgres DSN when
	// DSN is empty.
	Host     string `koanf:"host" json:"host,omitempty"`
	Port     int    `koanf:"port" json:"port,omitempty"`
	Database string `koanf:"database" json:"database,omitempty"`
	Username string `koanf:"username" json:"username,omitempty"`
	Password string `koanf:"password" json:"-"`

	// Options holds driver-specific settings.
	Options map[string]string `koanf:"options" json:"options,omitempty"`
}

// Opener creates a source from config. A nil logger discards logs.
type Opener func(ctx context.Context, cfg Config, logger *slog.Logger) (Source, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Opener)
)

// Register adds a driver. Called by drivers in their init functions.
func Register(name string, open Opener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = open
}

// Drivers returns the registered driver names, sorted.
func Drivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open creates a source for cfg.Driver.
func Open(ctx context.Context, cfg Config, logger *slog.Logger) (Source, error) {
	if cfg.Driver == "" {
		return nil, fmt.Errorf("source driver not specified")
	}

	registryMu.RLock()
	open, ok := registry[cfg.Driver]
	registryMu.RUnlock()
	if !ok {
		return nil, &UnknownDriverError{Driver: cfg.Driver, Available: Drivers()}
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return open(ctx, cfg, logger.With("driver", cfg.Driver))
}

// UnknownDriverError is returned when no driver is registered under a name.
type UnknownDriverError struct {
	Driver    string
	Available []string
}

func (e *UnknownDriverError) Error() string {
	return fmt.Sprintf("unknown source driver %q (available: %v)", e.Driver, e.Available)
}

// Slice is an in-memory source.
type Slice struct {
	it sampling.Iterator[*row.Row]
}

// FromRows creates a source over rows.
func FromRows(rows []*row.Row) *Slice {
	return &Slice{it: sampling.FromSlice(rows)}
}

// Next returns the next row.
func (s *Slice) Next() (*row.Row, bool) { return s.it.Next() }

// Err always returns nil.
func (s *Slice) Err() error { return nil }

// Close is a no-op.
func (s *Slice) Close() error { return nil }
