// Package corpus normalizes reconciled candidates into the immutable,
// densely numbered document set an index is built from.
package corpus

import (
	"context"
	"errors"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/knowledge-engine/newsir/internal/ingest"
	"github.com/knowledge-engine/newsir/internal/normalize"
)

// ErrEmptyCorpus means no candidate produced a single term
var ErrEmptyCorpus = errors.New("empty corpus: no document has indexable terms")

const chunkSize = 256

// Document is a canonical document with its normalized terms
type Document struct {
	ID       int      `json:"id"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Source   string   `json:"source"`
	Tokens   []string `json:"-"`
}

// Corpus is read-only once built
type Corpus struct {
	docs []Document
}

func (c *Corpus) Len() int {
	return len(c.docs)
}

// Document looks a document up by id
func (c *Corpus) Document(id int) (Document, bool) {
	if id < 0 || id >= len(c.docs) {
		return Document{}, false
	}
	return c.docs[id], true
}

// Documents returns the backing slice; callers must not modify it
func (c *Corpus) Documents() []Document {
	return c.docs
}

func (c *Corpus) CategoryCounts() map[string]int {
	return c.countBy(func(d Document) string { return d.Category })
}

func (c *Corpus) SourceCounts() map[string]int {
	return c.countBy(func(d Document) string { return d.Source })
}

// Categories lists distinct categories in lexical order
func (c *Corpus) Categories() []string {
	return sortedKeys(c.CategoryCounts())
}

func (c *Corpus) countBy(key func(Document) string) map[string]int {
	counts := make(map[string]int)
	for _, d := range c.docs {
		counts[key(d)]++
	}
	return counts
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Report summarizes one build
type Report struct {
	Input           int `json:"input"`
	Retained        int `json:"retained"`
	DroppedEmpty    int `json:"dropped_empty"`
	StemmerWarnings int `json:"stemmer_warnings"`
}

// Normalizer is the part of normalize.Normalizer the builder needs
type Normalizer interface {
	Normalize(text string) normalize.Result
}

type Builder struct {
	normalizer Normalizer
	workers    int
	log        *logrus.Entry
}

func NewBuilder(normalizer Normalizer, workers int, log *logrus.Entry) *Builder {
	if workers < 1 {
		workers = 1
	}
	return &Builder{
		normalizer: normalizer,
		workers:    workers,
		log:        log.WithField("component", "corpus"),
	}
}

// Build normalizes every candidate's content, drops those left without
// terms and numbers the survivors 0..n-1 in input order.
func (b *Builder) Build(ctx context.Context, candidates []ingest.Candidate) (*Corpus, Report, error) {
	report := Report{Input: len(candidates)}
	results := make([]normalize.Result, len(candidates))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for start := 0; start < len(candidates); start += chunkSize {
		end := min(start+chunkSize, len(candidates))
		g.Go(func() error {
			for i := start; i < end; i++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = b.normalizer.Normalize(candidates[i].Content)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, report, err
	}

	docs := make([]Document, 0, len(candidates))
	for i, c := range candidates {
		res := results[i]
		report.StemmerWarnings += len(res.Warnings)
		for _, w := range res.Warnings {
			b.log.WithFields(logrus.Fields{"origin": c.Origin, "row": c.Row}).Debug(w)
		}
		if res.Empty() {
			report.DroppedEmpty++
			continue
		}
		docs = append(docs, Document{
			ID:       len(docs),
			Title:    c.Title,
			Content:  c.Content,
			Category: c.Category,
			Source:   c.Source,
			Tokens:   res.Tokens,
		})
	}
	report.Retained = len(docs)

	b.log.WithFields(logrus.Fields{
		"input":            report.Input,
		"documents":        report.Retained,
		"dropped":          report.DroppedEmpty,
		"stemmer_warnings": report.StemmerWarnings,
	}).Info("Corpus built")

	if len(docs) == 0 {
		return nil, report, ErrEmptyCorpus
	}
	return &Corpus{docs: docs}, report, nil
}
