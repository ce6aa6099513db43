// Package workspace persists workspaces: named, scoped buffers of input data
// together with the recipe being built against them. It also keeps a
// registry of versioned schema specifications.
//
// Workspaces live in a namespace and are grouped by scope inside it. Every
// lookup is namespace-qualified, so identical IDs in different namespaces
// never collide.
package workspace

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // sqlite driver
)

// DefaultScope is the scope of workspaces created without one.
const DefaultScope = "default"

// ErrNotFound is returned when a workspace does not exist.
var ErrNotFound = errors.New("workspace not found")

// ErrExists is returned when creating a workspace whose ID is taken.
var ErrExists = errors.New("workspace already exists")

// ErrInvalid is returned for workspace metadata that cannot be stored.
var ErrInvalid = errors.New("invalid workspace")

// DataType describes how workspace data is interpreted.
type DataType string

// Data types.
const (
	DataText   DataType = "text"
	DataBinary DataType = "binary"
	DataCSV    DataType = "csv"
)

// Valid reports whether t is a known data type.
func (t DataType) Valid() bool {
	switch t {
	case DataText, DataBinary, DataCSV:
		return true
	}
	return false
}

// Identifier names a workspace in listings.
type Identifier struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Meta is the writable part of a workspace.
type Meta struct {
	Namespace  string            `json:"namespace"`
	ID         string            `json:"id,omitempty"`
	Name       string            `json:"name"`
	Scope      string            `json:"scope,omitempty"`
	Type       DataType          `json:"type,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// Workspace is a stored workspace.
type Workspace struct {
	Meta
	Recipe  string    `json:"recipe"`
	Data    []byte    `json:"-"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

// Store keeps workspaces in SQLite.
type Store struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// NewStore creates a store. A nil logger discards logs.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{logger: logger, now: time.Now}
}

// Open connects to the database at path. Use ":memory:" for an in-memory
// database.
func (s *Store) Open(path string) error {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if path == ":memory:" {
		dsn = ":memory:?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// Each connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	s.logger.Debug("workspace store opened", slog.String("path", path))
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Create stores a new workspace. An empty ID is generated; an empty scope is
// DefaultScope and an empty type is DataText.
func (s *Store) Create(ctx context.Context, meta Meta) (*Workspace, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if meta.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if meta.ID == "" {
		meta.ID = uuid.New().String()
	}
	if meta.Scope == "" {
		meta.Scope = DefaultScope
	}
	if meta.Type == "" {
		meta.Type = DataText
	}
	if !meta.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown data type %q", ErrInvalid, meta.Type)
	}
	if exists, err := s.Has(ctx, meta.Namespace, meta.ID); err != nil {
		return nil, err
	} else if exists {
		return nil, fmt.Errorf("%w: %s/%s", ErrExists, meta.Namespace, meta.ID)
	}
	if meta.Properties == nil {
		meta.Properties = map[string]string{}
	}

	props, err := json.Marshal(meta.Properties)
	if err != nil {
		return nil, fmt.Errorf("failed to encode properties: %w", err)
	}

	now := s.timestamp()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workspaces (namespace, id, name, scope, data_type, properties, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		meta.Namespace, meta.ID, meta.Name, meta.Scope, string(meta.Type), string(props),
		now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	s.logger.Debug("workspace created", slog.String("namespace", meta.Namespace), slog.String("id", meta.ID))
	return &Workspace{Meta: meta, Created: now, Updated: now}, nil
}

// Get returns a workspace with its data and recipe.
func (s *Store) Get(ctx context.Context, namespace, id string) (*Workspace, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	w := &Workspace{Meta: Meta{Namespace: namespace, ID: id}}
	var (
		dataType         string
		props            string
		data             []byte
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT name, scope, data_type, properties, recipe, data, created_at, updated_at
		 FROM workspaces WHERE namespace = ? AND id = ?`,
		namespace, id,
	).Scan(&w.Name, &w.Scope, &dataType, &props, &w.Recipe, &data, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(namespace, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}

	w.Type = DataType(dataType)
	w.Data = data
	w.Created = time.UnixMilli(created).UTC()
	w.Updated = time.UnixMilli(updated).UTC()
	if err := json.Unmarshal([]byte(props), &w.Properties); err != nil {
		return nil, fmt.Errorf("failed to decode properties: %w", err)
	}
	return w, nil
}

// Has reports whether a workspace exists.
func (s *Store) Has(ctx context.Context, namespace, id string) (bool, error) {
	if s.db == nil {
		return false, fmt.Errorf("database not opened")
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM workspaces WHERE namespace = ? AND id = ?`, namespace, id,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check workspace: %w", err)
	}
	return n > 0, nil
}

// List returns the workspaces of a scope ordered by creation time.
func (s *Store) List(ctx context.Context, namespace, scope string) ([]Identifier, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	if scope == "" {
		scope = DefaultScope
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name FROM workspaces WHERE namespace = ? AND scope = ? ORDER BY created_at, id`,
		namespace, scope,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := []Identifier{}
	for rows.Next() {
		var id Identifier
		if err := rows.Scan(&id.ID, &id.Name); err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdateData replaces the data of a workspace.
func (s *Store) UpdateData(ctx context.Context, namespace, id string, typ DataType, data []byte) error {
	if !typ.Valid() {
		return fmt.Errorf("unknown data type %q", typ)
	}
	return s.update(ctx, namespace, id, `data_type = ?, data = ?`, string(typ), data)
}

// UpdateRecipe replaces the recipe of a workspace.
func (s *Store) UpdateRecipe(ctx context.Context, namespace, id, recipe string) error {
	return s.update(ctx, namespace, id, `recipe = ?`, recipe)
}

// UpdateProperties replaces the properties of a workspace.
func (s *Store) UpdateProperties(ctx context.Context, namespace, id string, props map[string]string) error {
	if props == nil {
		props = map[string]string{}
	}
	encoded, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("failed to encode properties: %w", err)
	}
	return s.update(ctx, namespace, id, `properties = ?`, string(encoded))
}

func (s *Store) update(ctx context.Context, namespace, id, set string, args ...any) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}

	args = append(args, s.timestamp().UnixMilli(), namespace, id)
	res, err := s.db.ExecContext(ctx,
		`UPDATE workspaces SET `+set+`, updated_at = ? WHERE namespace = ? AND id = ?`, //nolint:gosec // set is a fixed column list
		args...,
	)
	if err != nil {
		return fmt.Errorf("failed to update workspace: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update workspace: %w", err)
	}
	if n == 0 {
		return notFound(namespace, id)
	}
	return nil
}

// Delete removes a workspace. Deleting a missing workspace is not an error.
func (s *Store) Delete(ctx context.Context, namespace, id string) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM workspaces WHERE namespace = ? AND id = ?`, namespace, id,
	); err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}
	return nil
}

// DeleteScope removes every workspace of a scope and returns how many were
// removed.
func (s *Store) DeleteScope(ctx context.Context, namespace, scope string) (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database not opened")
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM workspaces WHERE namespace = ? AND scope = ?`, namespace, scope,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete scope: %w", err)
	}
	return res.RowsAffected()
}

// timestamp truncates to the stored precision so returned values round-trip.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func notFound(namespace, id string) error {
	return fmt.Errorf("%w: %s/%s", ErrNotFound, namespace, id)
}
