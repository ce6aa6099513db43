package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/wrangle/internal/testutil"
	"github.com/leapstack-labs/wrangle/pkg/row"
	"github.com/leapstack-labs/wrangle/pkg/sampling"
)

func TestLines(t *testing.T) {
	src := NewLines(strings.NewReader("first\r\nsecond\n\nlast"), "")
	rows, err := ReadAll(context.Background(), src)
	require.NoError(t, err)
	require.Len(t, rows, 4)

	for i, want := range []string{"first", "second", "", "last"} {
		v, ok := rows[i].Get(BodyColumn)
		require.True(t, ok)
		assert.Equal(t, want, v, "line %d", i)
	}
	assert.NoError(t, src.Close())
}

func TestCSV(t *testing.T) {
	tests := []struct {
		name  string
		input string
		opts  CSVOptions
		names [][]string
	}{
		{
			name:  "header",
			input: "id,name\n1,ada\n2,grace\n",
			names: [][]string{{"id", "name"}, {"id", "name"}},
		},
		{
			name:  "no header",
			input: "1,ada\n",
			opts:  CSVOptions{NoHeader: true},
			names: [][]string{{"col_1", "col_2"}},
		},
		{
			name:  "ragged records",
			input: "a;b\n1;2;3\n",
			opts:  CSVOptions{Delimiter: ';'},
			names: [][]string{{"a", "b", "col_3"}},
		},
		{
			name:  "header only",
			input: "a,b\n",
			names: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := ReadAll(context.Background(), NewCSV(strings.NewReader(tt.input), tt.opts))
			require.NoError(t, err)
			require.Len(t, rows, len(tt.names))
			for i, names := range tt.names {
				assert.Equal(t, names, rows[i].Names())
			}
		})
	}
}

func TestCSV_Error(t *testing.T) {
	src := NewCSV(strings.NewReader("a,b\n\"unterminated,2\n"), CSVOptions{})
	rows, err := ReadAll(context.Background(), src)
	assert.Empty(t, rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read csv")

	_, ok := src.Next()
	assert.False(t, ok, "source stays exhausted after an error")
}

func TestOpen_Files(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "people.csv")
	require.NoError(t, os.WriteFile(path, []byte("name|age\nada|36\n"), 0o600))

	ctx := context.Background()
	logger := testutil.NewTestLogger(t)

	src, err := Open(ctx, Config{Driver: "csv", DSN: path, Options: map[string]string{"delimiter": "|"}}, logger)
	require.NoError(t, err)
	rows, err := ReadAll(ctx, src)
	require.NoError(t, err)
	require.NoError(t, src.Close())
	require.Len(t, rows, 1)
	v, _ := rows[0].Get("age")
	assert.Equal(t, "36", v)

	src, err = Open(ctx, Config{Driver: "lines", DSN: path, Options: map[string]string{"column": "raw"}}, logger)
	require.NoError(t, err)
	rows, err = ReadAll(ctx, src)
	require.NoError(t, err)
	require.NoError(t, src.Close())
	assert.Len(t, rows, 2)
	assert.Equal(t, []string{"raw"}, rows[0].Names())

	_, err = Open(ctx, Config{Driver: "csv", DSN: filepath.Join(dir, "missing.csv")}, logger)
	assert.Error(t, err)

	_, err = Open(ctx, Config{Driver: "csv", DSN: path, Options: map[string]string{"delimiter": "||"}}, logger)
	assert.Error(t, err)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "parquet"}, nil)
	var ude *UnknownDriverError
	require.True(t, errors.As(err, &ude))
	assert.Equal(t, "parquet", ude.Driver)
	assert.Contains(t, ude.Available, "csv")
	assert.Contains(t, ude.Available, "postgres")

	_, err = Open(context.Background(), Config{}, nil)
	assert.Error(t, err)
}

func TestOpen_SQLite(t *testing.T) {
	ctx := context.Background()
	src, err := Open(ctx, Config{
		Driver: "sqlite",
		DSN:    ":memory:",
		Query:  "SELECT 1 AS id, 'ada' AS name, NULL AS note",
	}, testutil.NewTestLogger(t))
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	rows, err := ReadAll(ctx, src)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"id", "name", "note"}, rows[0].Names())
	assert.Equal(t, row.TypeInt, rows[0].Column(0).Type)
	assert.Equal(t, row.TypeString, rows[0].Column(1).Type)
	assert.Equal(t, row.TypeNull, rows[0].Column(2).Type)
}

func TestSQL(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(mock sqlmock.Sqlmock)
		wantRows  int
		expectErr string
	}{
		{
			name: "all rows",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT id, name FROM people").WillReturnRows(
					sqlmock.NewRows([]string{"id", "name"}).
						AddRow(int64(1), "ada").
						AddRow(int64(2), "grace"),
				)
			},
			wantRows: 2,
		},
		{
			name: "row error",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery("SELECT id, name FROM people").WillReturnRows(
					sqlmock.NewRows([]string{"id", "name"}).
						AddRow(int64(1), "ada").
						AddRow(int64(2), "grace").
						RowError(1, assert.AnError),
				)
			},
			wantRows:  1,
			expectErr: "failed to read query results",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer func() { _ = db.Close() }()
			tt.setupMock(mock)

			src, err := NewSQL(context.Background(), db, "SELECT id, name FROM people", nil)
			require.NoError(t, err)
			assert.Equal(t, []string{"id", "name"}, src.Columns())

			rows, err := ReadAll(context.Background(), src)
			assert.Len(t, rows, tt.wantRows)
			if tt.expectErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectErr)
				assert.ErrorIs(t, err, assert.AnError)
			} else {
				require.NoError(t, err)
				v, _ := rows[1].Get("name")
				assert.Equal(t, "grace", v)
				assert.Equal(t, row.TypeInt, rows[0].Column(0).Type)
			}
			require.NoError(t, src.Close())
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSQL_QueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()
	mock.ExpectQuery("SELECT").WillReturnError(assert.AnError)

	_, err = NewSQL(context.Background(), db, "SELECT 1", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to execute query")

	_, err = NewSQL(context.Background(), nil, "SELECT 1", nil)
	assert.Error(t, err)
	_, err = NewSQL(context.Background(), db, "", nil)
	assert.Error(t, err)
}

func TestBuildPostgresDSN(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected string
	}{
		{
			name:     "explicit dsn",
			config:   Config{DSN: "postgres://u@h/db", Host: "ignored"},
			expected: "postgres://u@h/db",
		},
		{
			name:     "fields",
			config:   Config{Host: "db.example.com", Port: 5433, Database: "analytics", Username: "analyst", Password: "pw"},
			expected: "host=db.example.com port=5433 dbname=analytics sslmode=disable user=analyst password=pw",
		},
		{
			name:     "defaults",
			config:   Config{Database: "mydb", Options: map[string]string{"sslmode": "require"}},
			expected: "host=localhost port=5432 dbname=mydb sslmode=require",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, buildPostgresDSN(tt.config))
		})
	}
}

func TestBatches(t *testing.T) {
	rows := make([]*row.Row, 7)
	for i := range rows {
		rows[i] = row.Of("n", i)
	}

	batches, err := Batches(context.Background(), FromRows(rows), 3)
	require.NoError(t, err)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[2], 1)

	batches, err = Batches(context.Background(), FromRows(rows[:6]), 3)
	require.NoError(t, err)
	assert.Len(t, batches, 2, "no trailing empty batch")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = ReadBatch(ctx, sampling.FromSlice(rows), 2)
	assert.ErrorIs(t, err, context.Canceled)
}
