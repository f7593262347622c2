// Package ingest maps heterogeneous source tables onto one canonical
// document shape.
package ingest

import (
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/knowledge-engine/newsir/internal/config"
	"github.com/knowledge-engine/newsir/internal/source"
)

// Fill-ins for fields a source does not provide
const (
	NoTitle         = "No Title"
	GeneralCategory = "General"
	UnknownSource   = "Unknown"
)

// ColumnRules lists candidate column names per field, highest priority first
type ColumnRules struct {
	Text     []string
	Title    []string
	Category []string
	Source   []string
}

func RulesFromConfig(cfg config.ReconcileConfig) ColumnRules {
	return ColumnRules{
		Text:     cfg.TextColumns,
		Title:    cfg.TitleColumns,
		Category: cfg.CategoryColumns,
		Source:   cfg.SourceColumns,
	}
}

// ColumnMapping is the outcome of column detection for one table.
// Empty names mean the field is absent.
type ColumnMapping struct {
	Content  string `json:"content"`
	Title    string `json:"title,omitempty"`
	Category string `json:"category,omitempty"`
	Source   string `json:"source,omitempty"`
	// ByType is set when Content was chosen by the value-type fallback
	ByType bool `json:"by_type,omitempty"`
}

// Candidate is a canonical document before normalization and id assignment
type Candidate struct {
	Title    string
	Content  string
	Category string
	Source   string
	Origin   string // source path
	Row      int    // 0-based row within Origin
}

// LabeledTable pairs a table with the label its documents should carry
type LabeledTable struct {
	Table *source.Table
	Label string
}

type Reconciler struct {
	rules ColumnRules
	log   *logrus.Entry
}

func NewReconciler(rules ColumnRules, log *logrus.Entry) *Reconciler {
	return &Reconciler{
		rules: rules,
		log:   log.WithField("component", "reconciler"),
	}
}

// Detect chooses the content, title, category and source columns
func (r *Reconciler) Detect(table *source.Table) (ColumnMapping, error) {
	var m ColumnMapping
	if len(table.Columns) == 0 {
		return m, &SchemaError{Source: table.Path, Reason: "no columns"}
	}

	m.Content = matchColumn(table, r.rules.Text)
	if m.Content == "" {
		m.Content = matchColumn(table, r.rules.Title)
	}
	if m.Content == "" {
		m.Content = firstTextColumn(table)
		m.ByType = m.Content != ""
	}
	if m.Content == "" {
		return m, &SchemaError{
			Source:  table.Path,
			Columns: table.Columns,
			Reason:  "no text-bearing column",
		}
	}

	m.Title = matchColumn(table, r.rules.Title, m.Content)
	m.Category = matchColumn(table, r.rules.Category, m.Content, m.Title)
	m.Source = matchColumn(table, r.rules.Source, m.Content, m.Title, m.Category)
	return m, nil
}

// Reconcile converts every row of table into a Candidate. A non-empty label
// overrides any source column.
func (r *Reconciler) Reconcile(table *source.Table, label string) ([]Candidate, error) {
	m, err := r.Detect(table)
	if err != nil {
		return nil, err
	}
	r.log.WithFields(logrus.Fields{
		"path":     table.Path,
		"content":  m.Content,
		"title":    m.Title,
		"category": m.Category,
		"source":   m.Source,
		"rows":     table.Len(),
	}).Debug("Columns mapped")

	candidates := make([]Candidate, 0, table.Len())
	for i, rec := range table.Records {
		c := Candidate{
			Content:  cell(rec, m.Content, ""),
			Title:    cell(rec, m.Title, NoTitle),
			Category: cell(rec, m.Category, GeneralCategory),
			Source:   strings.TrimSpace(label),
			Origin:   table.Path,
			Row:      i,
		}
		if c.Source == "" {
			c.Source = cell(rec, m.Source, UnknownSource)
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

// ReconcileAll reconciles each table independently and concatenates the
// results in input order. A failing table contributes an error and no rows.
func (r *Reconciler) ReconcileAll(tables []LabeledTable) ([]Candidate, []error) {
	var (
		all  []Candidate
		errs []error
	)
	for _, lt := range tables {
		candidates, err := r.Reconcile(lt.Table, lt.Label)
		if err != nil {
			r.log.WithError(err).Warn("Skipping source")
			errs = append(errs, err)
			continue
		}
		all = append(all, candidates...)
	}
	return all, errs
}

// cell reads one field, flattening markup; missing values become fill
func cell(rec source.Record, column, fill string) string {
	if column == "" {
		return fill
	}
	v := rec[column]
	if source.IsMissing(v) {
		return fill
	}
	v = strings.TrimSpace(v)
	if source.HasMarkup(v) {
		v = source.StripMarkup(v)
	}
	if v == "" {
		return fill
	}
	return v
}

// matchColumn returns the header matching a candidate name. Every name is
// tried exactly (case-insensitive) before any is tried as a substring, and
// a substring hit must not be a mostly numeric column such as article_id.
func matchColumn(table *source.Table, names []string, exclude ...string) string {
	usable := func(col string) bool {
		for _, e := range exclude {
			if e != "" && e == col {
				return false
			}
		}
		return true
	}

	var wanted []string
	for _, name := range names {
		if name = strings.ToLower(strings.TrimSpace(name)); name != "" {
			wanted = append(wanted, name)
		}
	}

	for _, name := range wanted {
		for _, col := range table.Columns {
			if usable(col) && strings.ToLower(col) == name {
				return col
			}
		}
	}
	for _, name := range wanted {
		for _, col := range table.Columns {
			if usable(col) && strings.Contains(strings.ToLower(col), name) && !numericColumn(table, col) {
				return col
			}
		}
	}
	return ""
}

// firstTextColumn returns the first column whose present values are mostly
// non-numeric
func firstTextColumn(table *source.Table) string {
	for _, col := range table.Columns {
		if present, textual := textCounts(table, col); present > 0 && textual*2 > present {
			return col
		}
	}
	return ""
}

// numericColumn reports whether most present values of col parse as numbers
func numericColumn(table *source.Table, col string) bool {
	present, textual := textCounts(table, col)
	return present > 0 && textual*2 <= present
}

func textCounts(table *source.Table, col string) (present, textual int) {
	for _, rec := range table.Records {
		v := rec[col]
		if source.IsMissing(v) {
			continue
		}
		present++
		if _, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err != nil {
			textual++
		}
	}
	return present, textual
}
