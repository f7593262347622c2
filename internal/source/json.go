package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// JSONReader reads a JSON array of objects, JSON lines, a single object, or
// a directory of .json files. Nested values are kept as compact JSON text.
type JSONReader struct{}

func (r *JSONReader) Read(ctx context.Context, path string) (*Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	table := &Table{Path: path, Encoding: "utf-8"}
	columns := newColumnSet()

	if !info.IsDir() {
		if err := readJSONFile(ctx, path, table, columns); err != nil {
			return nil, err
		}
		table.Columns = columns.names
		return table, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", path, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := readJSONFile(ctx, filepath.Join(path, entry.Name()), table, columns); err != nil {
			return nil, err
		}
	}
	table.Columns = columns.names
	return table, nil
}

// Parse reads one JSON document already in memory; path labels the table
func (r *JSONReader) Parse(ctx context.Context, path string, data []byte) (*Table, error) {
	table := &Table{Path: path, Encoding: "utf-8"}
	columns := newColumnSet()
	if err := parseJSON(ctx, path, data, table, columns); err != nil {
		return nil, err
	}
	table.Columns = columns.names
	return table, nil
}

func readJSONFile(ctx context.Context, path string, table *Table, columns *columnSet) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return parseJSON(ctx, path, data, table, columns)
}

func parseJSON(ctx context.Context, path string, data []byte, table *Table, columns *columnSet) error {
	data = bytes.TrimPrefix(data, utf8BOM)
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}

	if trimmed[0] == '[' {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if _, err := dec.Token(); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		for dec.More() {
			if err := ctx.Err(); err != nil {
				return err
			}
			keys, rec, err := decodeObject(dec)
			if err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
			columns.add(keys)
			table.Records = append(table.Records, rec)
		}
		return nil
	}

	// one object per line; a single pretty-printed object also decodes here
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		keys, rec, err := decodeObject(dec)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		columns.add(keys)
		table.Records = append(table.Records, rec)
	}
}

// decodeObject reads one JSON object, keeping key order
func decodeObject(dec *json.Decoder) ([]string, Record, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, nil, fmt.Errorf("expected object, got %v", tok)
	}

	var keys []string
	rec := make(Record)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, nil, fmt.Errorf("expected key, got %v", tok)
		}

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, nil, err
		}
		if _, dup := rec[key]; !dup {
			keys = append(keys, key)
		}
		rec[key] = cellText(value)
	}
	if _, err := dec.Token(); err != nil {
		return nil, nil, err
	}
	return keys, rec, nil
}

func cellText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return strings.TrimSpace(string(raw))
	}
	return compact.String()
}

type columnSet struct {
	names []string
	seen  map[string]struct{}
}

func newColumnSet() *columnSet {
	return &columnSet{seen: make(map[string]struct{})}
}

func (c *columnSet) add(keys []string) {
	for _, k := range keys {
		if _, ok := c.seen[k]; ok {
			continue
		}
		c.seen[k] = struct{}{}
		c.names = append(c.names, k)
	}
}
