package ingest

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSchema marks a source whose columns cannot be mapped to a document
var ErrSchema = errors.New("schema error")

// SchemaError names the source and the columns it offered
type SchemaError struct {
	Source  string
	Columns []string
	Reason  string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s (columns: %s)", e.Source, e.Reason, strings.Join(e.Columns, ", "))
}

func (e *SchemaError) Unwrap() error {
	return ErrSchema
}
