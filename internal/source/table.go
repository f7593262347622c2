// Package source reads raw article records from tabular files.
package source

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for paths no reader understands
var ErrUnsupportedFormat = errors.New("unsupported source format")

// Record maps a column name to the cell value of one row
type Record map[string]string

// Table is a parsed source file. Columns keeps header order.
type Table struct {
	Path     string
	Encoding string
	Columns  []string
	Records  []Record
}

func (t *Table) Len() int {
	return len(t.Records)
}

// Values returns one column, row by row
func (t *Table) Values(column string) []string {
	values := make([]string, len(t.Records))
	for i, rec := range t.Records {
		values[i] = rec[column]
	}
	return values
}

// Reader loads one source path into a Table
type Reader interface {
	Read(ctx context.Context, path string) (*Table, error)
}

// Options tunes the readers built by Open
type Options struct {
	Encoding         string // declared encoding; empty means detect
	FallbackEncoding string // used when the bytes are not valid UTF-8
}

var nullLike = map[string]struct{}{
	"nan": {}, "NaN": {}, "null": {}, "NULL": {}, "None": {}, "<NA>": {}, "NA": {}, "N/A": {},
}

// IsMissing reports whether a cell carries no value
func IsMissing(v string) bool {
	v = strings.TrimSpace(v)
	if v == "" {
		return true
	}
	_, ok := nullLike[v]
	return ok
}

// ReaderFor picks a reader from the path's extension; directories are read
// as collections of JSON files.
func ReaderFor(path string, opts Options) (Reader, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return &JSONReader{}, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".tsv", ".txt":
		return &CSVReader{Encoding: opts.Encoding, FallbackEncoding: opts.FallbackEncoding}, nil
	case ".json", ".jsonl", ".ndjson":
		return &JSONReader{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Discover lists the data files directly inside dir in name order
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".csv", ".tsv", ".json", ".jsonl", ".ndjson":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	return paths, nil
}

// Open reads path with the reader matching its format. http(s) URLs are
// downloaded first.
func Open(ctx context.Context, path string, opts Options) (*Table, error) {
	if IsRemote(path) {
		return defaultFetcher.Fetch(ctx, path, opts)
	}
	reader, err := ReaderFor(path, opts)
	if err != nil {
		return nil, err
	}
	return reader.Read(ctx, path)
}
