package engine

import (
	"time"

	"github.com/knowledge-engine/newsir/internal/corpus"
	"github.com/knowledge-engine/newsir/internal/ingest"
	"github.com/knowledge-engine/newsir/internal/translate"
)

// Stats describes one successful build
type Stats struct {
	BuildID        string            `json:"build_id"`
	BuiltAt        time.Time         `json:"built_at"`
	Duration       time.Duration     `json:"duration_ns"`
	DocumentCount  int               `json:"document_count"`
	VocabularySize int               `json:"vocabulary_size"`
	MatrixShape    [2]int            `json:"matrix_shape"`
	NonZero        int               `json:"non_zero"`
	Categories     map[string]int    `json:"categories"`
	Sources        map[string]int    `json:"sources"`
	Corpus         corpus.Report     `json:"corpus"`
	Translation    *translate.Report `json:"translation,omitempty"`
	Inputs         []SourceStats     `json:"inputs"`
	SourceErrors   []string          `json:"source_errors,omitempty"`
}

// SourceStats is what became of one input file
type SourceStats struct {
	Path     string                `json:"path"`
	Label    string                `json:"label,omitempty"`
	Encoding string                `json:"encoding,omitempty"`
	Rows     int                   `json:"rows"`
	Mapping  *ingest.ColumnMapping `json:"mapping,omitempty"`
	Error    string                `json:"error,omitempty"`
}

// Status is the getStats view of the published index
type Status struct {
	Initialized    bool           `json:"initialized"`
	DocumentCount  int            `json:"document_count"`
	VocabularySize int            `json:"vocabulary_size"`
	MatrixShape    [2]int         `json:"matrix_shape"`
	BuildID        string         `json:"build_id,omitempty"`
	BuiltAt        time.Time      `json:"built_at,omitzero"`
	Categories     map[string]int `json:"categories,omitempty"`
	Sources        map[string]int `json:"sources,omitempty"`
}
