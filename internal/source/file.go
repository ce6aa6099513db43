package source

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/leapstack-labs/wrangle/pkg/row"
)

// BodyColumn is the column line sources store each line in.
const BodyColumn = "body"

func init() {
	Register("lines", openLines)
	Register("csv", openCSV)
}

// Lines yields one row per line of text, with the line in a single column.
type Lines struct {
	scanner *bufio.Scanner
	closer  io.Closer
	column  string
	err     error
}

// NewLines reads lines from r into column. An empty column uses BodyColumn.
func NewLines(r io.Reader, column string) *Lines {
	if column == "" {
		column = BodyColumn
	}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	l := &Lines{scanner: scanner, column: column}
	if c, ok := r.(io.Closer); ok {
		l.closer = c
	}
	return l
}

func openLines(_ context.Context, cfg Config, logger *slog.Logger) (Source, error) {
	f, err := openFile(cfg.DSN)
	if err != nil {
		return nil, err
	}
	logger.Debug("reading lines", slog.String("path", cfg.DSN))
	return NewLines(f, cfg.Options["column"]), nil
}

// Next returns the next line as a row.
func (l *Lines) Next() (*row.Row, bool) {
	if l.err != nil || !l.scanner.Scan() {
		if l.err == nil {
			l.err = l.scanner.Err()
		}
		return nil, false
	}
	return row.Of(l.column, strings.TrimSuffix(l.scanner.Text(), "\r")), true
}

// Err returns the first read error.
func (l *Lines) Err() error { return l.err }

// Close closes the underlying reader when it is closable.
func (l *Lines) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// CSVOptions configures a CSV source.
type CSVOptions struct {
	// Delimiter separates fields. Zero means ','.
	Delimiter rune

	// NoHeader treats the first record as data and names columns col_1,
	// col_2, and so on.
	NoHeader bool
}

// CSV yields one row per record. All values are strings.
type CSV struct {
	reader *csv.Reader
	closer io.Closer
	header []string
	opts   CSVOptions
	err    error
	done   bool
}

// NewCSV reads records from r.
func NewCSV(r io.Reader, opts CSVOptions) *CSV {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	reader.FieldsPerRecord = -1
	c := &CSV{reader: reader, opts: opts}
	if cl, ok := r.(io.Closer); ok {
		c.closer = cl
	}
	return c
}

func openCSV(_ context.Context, cfg Config, logger *slog.Logger) (Source, error) {
	var opts CSVOptions
	if d := cfg.Options["delimiter"]; d != "" {
		if utf8.RuneCountInString(d) != 1 {
			return nil, fmt.Errorf("csv delimiter must be a single character, got %q", d)
		}
		opts.Delimiter, _ = utf8.DecodeRuneInString(d)
	}
	opts.NoHeader = cfg.Options["header"] == "false"

	f, err := openFile(cfg.DSN)
	if err != nil {
		return nil, err
	}
	logger.Debug("reading csv", slog.String("path", cfg.DSN), slog.Bool("header", !opts.NoHeader))
	return NewCSV(f, opts), nil
}

// Next returns the next record as a row.
func (c *CSV) Next() (*row.Row, bool) {
	if c.done {
		return nil, false
	}

	if c.header == nil && !c.opts.NoHeader {
		header, err := c.reader.Read()
		if err != nil {
			return c.fail(err)
		}
		c.header = header
	}

	record, err := c.reader.Read()
	if err != nil {
		return c.fail(err)
	}

	r := row.New()
	for i, v := range record {
		r.Add(c.name(i), row.TypeString, v)
	}
	return r, true
}

func (c *CSV) name(i int) string {
	if i < len(c.header) {
		return c.header[i]
	}
	return fmt.Sprintf("col_%d", i+1)
}

func (c *CSV) fail(err error) (*row.Row, bool) {
	c.done = true
	if !errors.Is(err, io.EOF) {
		c.err = fmt.Errorf("failed to read csv: %w", err)
	}
	return nil, false
}

// Err returns the first read error.
func (c *CSV) Err() error { return c.err }

// Close closes the underlying reader when it is closable.
func (c *CSV) Close() error {
	if c.closer != nil {
		return c.closer.Close()
	}
	return nil
}

func openFile(path string) (*os.File, error) {
	if path == "" {
		return nil, fmt.Errorf("source path not specified")
	}
	f, err := os.Open(path) //nolint:gosec // G304: path is provided by the user
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	return f, nil
}
