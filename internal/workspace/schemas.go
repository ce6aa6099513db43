package workspace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrSchemaNotFound is returned when a schema or schema version does not
// exist.
var ErrSchemaNotFound = errors.New("schema not found")

// ErrSchemaExists is returned when registering a schema whose ID is taken.
var ErrSchemaExists = errors.New("schema already exists")

// DescriptorType is the format of a schema specification.
type DescriptorType string

// Descriptor types.
const (
	DescriptorAvro           DescriptorType = "avro"
	DescriptorProtobufDesc   DescriptorType = "protobuf-desc"
	DescriptorProtobufBinary DescriptorType = "protobuf-binary"
	DescriptorCopybook       DescriptorType = "copybook"
)

// Valid reports whether t is a known descriptor type.
func (t DescriptorType) Valid() bool {
	switch t {
	case DescriptorAvro, DescriptorProtobufDesc, DescriptorProtobufBinary, DescriptorCopybook:
		return true
	}
	return false
}

// SchemaMeta is the writable part of a schema.
type SchemaMeta struct {
	Namespace   string         `json:"namespace"`
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Type        DescriptorType `json:"type"`
}

// Schema is a registered schema and the versions uploaded for it. Current is
// the latest version, or 0 before the first upload.
type Schema struct {
	SchemaMeta
	Current  int64     `json:"current"`
	Versions []int64   `json:"versions"`
	Created  time.Time `json:"created"`
	Updated  time.Time `json:"updated"`
}

// SchemaVersion is one uploaded specification of a schema.
type SchemaVersion struct {
	SchemaID      string         `json:"id"`
	Type          DescriptorType `json:"type"`
	Version       int64          `json:"version"`
	Specification []byte         `json:"specification"`
	Created       time.Time      `json:"created"`
}

// CreateSchema registers a schema with no versions.
func (s *Store) CreateSchema(ctx context.Context, meta SchemaMeta) (*Schema, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	switch {
	case meta.ID == "":
		return nil, fmt.Errorf("%w: schema id is required", ErrInvalid)
	case meta.Name == "":
		return nil, fmt.Errorf("%w: schema name is required", ErrInvalid)
	case meta.Description == "":
		return nil, fmt.Errorf("%w: schema description is required", ErrInvalid)
	case !meta.Type.Valid():
		return nil, fmt.Errorf("%w: unknown schema type %q", ErrInvalid, meta.Type)
	}

	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM schemas WHERE namespace = ? AND id = ?`, meta.Namespace, meta.ID,
	).Scan(&n); err != nil {
		return nil, fmt.Errorf("failed to check schema: %w", err)
	}
	if n > 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrSchemaExists, meta.Namespace, meta.ID)
	}

	now := s.timestamp()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO schemas (namespace, id, name, description, type, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		meta.Namespace, meta.ID, meta.Name, meta.Description, string(meta.Type),
		now.UnixMilli(), now.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	s.logger.Debug("schema created", slog.String("namespace", meta.Namespace), slog.String("id", meta.ID))
	return &Schema{SchemaMeta: meta, Versions: []int64{}, Created: now, Updated: now}, nil
}

// GetSchema returns a schema with its version numbers in ascending order.
func (s *Store) GetSchema(ctx context.Context, namespace, id string) (*Schema, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	sc := &Schema{SchemaMeta: SchemaMeta{Namespace: namespace, ID: id}}
	var (
		typ              string
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT name, description, type, created_at, updated_at
		 FROM schemas WHERE namespace = ? AND id = ?`,
		namespace, id,
	).Scan(&sc.Name, &sc.Description, &typ, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, schemaNotFound(namespace, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schema: %w", err)
	}
	sc.Type = DescriptorType(typ)
	sc.Created = time.UnixMilli(created).UTC()
	sc.Updated = time.UnixMilli(updated).UTC()

	if sc.Versions, err = s.versions(ctx, namespace, id); err != nil {
		return nil, err
	}
	if n := len(sc.Versions); n > 0 {
		sc.Current = sc.Versions[n-1]
	}
	return sc, nil
}

// ListSchemas returns the schemas of a namespace ordered by ID.
func (s *Store) ListSchemas(ctx context.Context, namespace string) ([]SchemaMeta, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, type FROM schemas WHERE namespace = ? ORDER BY id`, namespace,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []SchemaMeta{}
	for rows.Next() {
		m := SchemaMeta{Namespace: namespace}
		var typ string
		if err := rows.Scan(&m.ID, &m.Name, &m.Description, &typ); err != nil {
			return nil, fmt.Errorf("failed to scan schema: %w", err)
		}
		m.Type = DescriptorType(typ)
		out = append(out, m)
	}
	return out, rows.Err()
}

// DeleteSchema removes a schema and all of its versions.
func (s *Store) DeleteSchema(ctx context.Context, namespace, id string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM schema_versions WHERE namespace = ? AND schema_id = ?`, namespace, id,
		); err != nil {
			return fmt.Errorf("failed to delete schema versions: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM schemas WHERE namespace = ? AND id = ?`, namespace, id)
		if err != nil {
			return fmt.Errorf("failed to delete schema: %w", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("failed to delete schema: %w", err)
		} else if n == 0 {
			return schemaNotFound(namespace, id)
		}
		return nil
	})
}

// AddVersion stores spec as the next version of a schema and returns its
// number. Version numbers start at 1 and are never reused, even after the
// latest version is deleted.
func (s *Store) AddVersion(ctx context.Context, namespace, id string, spec []byte) (int64, error) {
	if len(spec) == 0 {
		return 0, fmt.Errorf("%w: schema specification is empty", ErrInvalid)
	}

	var version int64
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx,
			`SELECT next_version FROM schemas WHERE namespace = ? AND id = ?`, namespace, id,
		).Scan(&version)
		if errors.Is(err, sql.ErrNoRows) {
			return schemaNotFound(namespace, id)
		}
		if err != nil {
			return fmt.Errorf("failed to read schema: %w", err)
		}

		now := s.timestamp().UnixMilli()
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schema_versions (namespace, schema_id, version, specification, created_at)
			 VALUES (?, ?, ?, ?, ?)`,
			namespace, id, version, spec, now,
		); err != nil {
			return fmt.Errorf("failed to add schema version: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE schemas SET next_version = ?, updated_at = ? WHERE namespace = ? AND id = ?`,
			version+1, now, namespace, id,
		); err != nil {
			return fmt.Errorf("failed to update schema: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Debug("schema version added",
		slog.String("namespace", namespace), slog.String("id", id), slog.Int64("version", version))
	return version, nil
}

// GetVersion returns one version of a schema.
func (s *Store) GetVersion(ctx context.Context, namespace, id string, version int64) (*SchemaVersion, error) {
	return s.getVersion(ctx, namespace, id,
		`AND v.version = ?`, version)
}

// LatestVersion returns the highest version of a schema.
func (s *Store) LatestVersion(ctx context.Context, namespace, id string) (*SchemaVersion, error) {
	return s.getVersion(ctx, namespace, id,
		`ORDER BY v.version DESC LIMIT 1`)
}

func (s *Store) getVersion(ctx context.Context, namespace, id, clause string, args ...any) (*SchemaVersion, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}

	v := &SchemaVersion{SchemaID: id}
	var (
		typ     string
		created int64
	)
	args = append([]any{namespace, id}, args...)
	err := s.db.QueryRowContext(ctx,
		`SELECT s.type, v.version, v.specification, v.created_at
		 FROM schema_versions v JOIN schemas s ON s.namespace = v.namespace AND s.id = v.schema_id
		 WHERE v.namespace = ? AND v.schema_id = ? `+clause, //nolint:gosec // clause is a fixed suffix
		args...,
	).Scan(&typ, &v.Version, &v.Specification, &created)
	if errors.Is(err, sql.ErrNoRows) {
		if len(args) > 2 {
			return nil, fmt.Errorf("%w: %s/%s version %v", ErrSchemaNotFound, namespace, id, args[2])
		}
		return nil, fmt.Errorf("%w: %s/%s has no versions", ErrSchemaNotFound, namespace, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get schema version: %w", err)
	}
	v.Type = DescriptorType(typ)
	v.Created = time.UnixMilli(created).UTC()
	return v, nil
}

// ListVersions returns the version numbers of a schema in ascending order.
func (s *Store) ListVersions(ctx context.Context, namespace, id string) ([]int64, error) {
	sc, err := s.GetSchema(ctx, namespace, id)
	if err != nil {
		return nil, err
	}
	return sc.Versions, nil
}

// DeleteVersion removes one version of a schema.
func (s *Store) DeleteVersion(ctx context.Context, namespace, id string, version int64) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM schema_versions WHERE namespace = ? AND schema_id = ? AND version = ?`,
		namespace, id, version,
	)
	if err != nil {
		return fmt.Errorf("failed to delete schema version: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete schema version: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s/%s version %d", ErrSchemaNotFound, namespace, id, version)
	}
	return nil
}

func (s *Store) versions(ctx context.Context, namespace, id string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version FROM schema_versions WHERE namespace = ? AND schema_id = ? ORDER BY version`,
		namespace, id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list schema versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []int64{}
	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan schema version: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// inTx runs fn in a transaction, committing when it returns nil.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func schemaNotFound(namespace, id string) error {
	return fmt.Errorf("%w: %s/%s", ErrSchemaNotFound, namespace, id)
}
