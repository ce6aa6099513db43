package source

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/jackc/pgx/v5/stdlib"   // postgres driver
	_ "github.com/marcboeker/go-duckdb" // duckdb driver
	_ "modernc.org/sqlite"              // sqlite driver

	"github.com/leapstack-labs/wrangle/pkg/row"
)

func init() {
	Register("sqlite", sqlOpener("sqlite", func(cfg Config) string { return fileDSN(cfg.DSN) }))
	Register("duckdb", sqlOpener("duckdb", func(cfg Config) string { return fileDSN(cfg.DSN) }))
	Register("postgres", sqlOpener("pgx", buildPostgresDSN))
}

// SQL yields the result rows of a query. Column types follow the driver's
// Go values: []byte stays BYTES, time.Time is TIMESTAMP.
type SQL struct {
	db      *sql.DB
	ownsDB  bool
	rows    *sql.Rows
	columns []string
	logger  *slog.Logger
	count   int
	err     error
	done    bool
}

// NewSQL runs query on db and returns a source over its result. Closing the
// source does not close db.
func NewSQL(ctx context.Context, db *sql.DB, query string, logger *slog.Logger) (*SQL, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	if query == "" {
		return nil, fmt.Errorf("source query not specified")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	//nolint:rowserrcheck // rows.Err() is checked in Next when iteration completes
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	columns, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	logger.Debug("query started", slog.Int("columns", len(columns)))
	return &SQL{db: db, rows: rows, columns: columns, logger: logger}, nil
}

func sqlOpener(driver string, dsn func(Config) string) Opener {
	return func(ctx context.Context, cfg Config, logger *slog.Logger) (Source, error) {
		db, err := sql.Open(driver, dsn(cfg))
		if err != nil {
			return nil, fmt.Errorf("failed to open %s connection: %w", cfg.Driver, err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to ping %s: %w", cfg.Driver, err)
		}

		s, err := NewSQL(ctx, db, cfg.Query, logger)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		s.ownsDB = true
		return s, nil
	}
}

// Columns returns the result column names.
func (s *SQL) Columns() []string { return s.columns }

// Next scans the next result row.
func (s *SQL) Next() (*row.Row, bool) {
	if s.done {
		return nil, false
	}
	if !s.rows.Next() {
		s.finish(s.rows.Err())
		return nil, false
	}

	values := make([]any, len(s.columns))
	ptrs := make([]any, len(s.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		s.finish(fmt.Errorf("failed to scan row %d: %w", s.count, err))
		return nil, false
	}

	r := row.New()
	for i, name := range s.columns {
		r.Add(name, row.TypeOf(values[i]), values[i])
	}
	s.count++
	return r, true
}

func (s *SQL) finish(err error) {
	s.done = true
	if err != nil && s.err == nil {
		s.err = fmt.Errorf("failed to read query results: %w", err)
	}
	s.logger.Debug("query finished", slog.Int("rows", s.count))
}

// Err returns the first query or scan error.
func (s *SQL) Err() error { return s.err }

// Close releases the result set, and the connection when the source opened
// it.
func (s *SQL) Close() error {
	err := s.rows.Close()
	if s.ownsDB {
		if cerr := s.db.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func fileDSN(path string) string {
	if path == "" {
		return ":memory:"
	}
	return path
}

// buildPostgresDSN returns cfg.DSN, or a key=value connection string built
// from the individual fields.
func buildPostgresDSN(cfg Config) string {
	if cfg.DSN != "" {
		return cfg.DSN
	}

	host := cfg.Host
	if host == "" {
		host = "localhost"
	}
	port := cfg.Port
	if port == 0 {
		port = 5432
	}
	sslmode := "disable"
	if mode, ok := cfg.Options["sslmode"]; ok {
		sslmode = mode
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s sslmode=%s", host, port, cfg.Database, sslmode)
	if cfg.Username != "" {
		dsn += fmt.Sprintf(" user=%s", cfg.Username)
	}
	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}
	return dsn
}
