package source

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"
)

const (
	defaultFallbackEncoding = "iso-8859-1"
	ctxCheckInterval        = 512
)

var (
	utf8BOM    = []byte{0xEF, 0xBB, 0xBF}
	delimiters = []rune{',', '\t', ';', '|'}
)

// CSVReader parses delimited text files. The delimiter is sniffed from the
// header line; bytes that are not valid UTF-8 are decoded with the fallback
// encoding instead.
type CSVReader struct {
	Encoding         string
	FallbackEncoding string
}

func (r *CSVReader) Read(ctx context.Context, path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return r.Parse(ctx, path, raw)
}

// Parse reads delimited text already in memory; path labels the table
func (r *CSVReader) Parse(ctx context.Context, path string, raw []byte) (*Table, error) {
	data, encoding, err := r.decode(raw)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	table, err := parseDelimited(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	table.Path = path
	table.Encoding = encoding
	return table, nil
}

// decode returns UTF-8 text and the name of the encoding that produced it
func (r *CSVReader) decode(raw []byte) ([]byte, string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)

	declared := strings.ToLower(strings.TrimSpace(r.Encoding))
	if declared != "" && declared != "utf-8" && declared != "utf8" {
		data, err := decodeWith(declared, raw)
		return data, declared, err
	}
	if utf8.Valid(raw) {
		return raw, "utf-8", nil
	}

	// undeclared, or declared UTF-8 and the bytes disagree
	fallback := r.FallbackEncoding
	if fallback == "" {
		fallback = defaultFallbackEncoding
	}
	data, err := decodeWith(fallback, raw)
	return data, fallback, err
}

func decodeWith(name string, raw []byte) ([]byte, error) {
	enc, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	return enc.NewDecoder().Bytes(raw)
}

func parseDelimited(ctx context.Context, data []byte) (*Table, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffDelimiter(data)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, err
	}
	columns := headerNames(header)

	table := &Table{Columns: columns}
	for row := 0; ; row++ {
		if row%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if blankRow(fields) {
			continue
		}

		rec := make(Record, len(columns))
		for i, col := range columns {
			if i < len(fields) {
				rec[col] = fields[i]
			} else {
				rec[col] = ""
			}
		}
		table.Records = append(table.Records, rec)
	}
	return table, nil
}

// sniffDelimiter picks the candidate that occurs most often, outside quotes,
// on the first line. Comma wins ties and empty input.
func sniffDelimiter(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}

	counts := make(map[rune]int, len(delimiters))
	quoted := false
	for _, r := range string(line) {
		if r == '"' {
			quoted = !quoted
			continue
		}
		if !quoted {
			counts[r]++
		}
	}

	best := delimiters[0]
	for _, d := range delimiters[1:] {
		if counts[d] > counts[best] {
			best = d
		}
	}
	return best
}

// headerNames trims header cells, names blank ones by position and
// disambiguates duplicates with a numeric suffix.
func headerNames(header []string) []string {
	columns := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			name = "column_" + strconv.Itoa(i)
		}
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n+1)
		} else {
			seen[name] = 0
		}
		columns[i] = name
	}
	return columns
}

func blankRow(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
