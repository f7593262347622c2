// Package search builds the TF-IDF vector space over a corpus and ranks
// documents against free-text queries.
package search

import (
	"errors"
	"strings"

	"github.com/RoaringBitmap/roaring"

	"github.com/knowledge-engine/newsir/internal/config"
	"github.com/knowledge-engine/newsir/internal/corpus"
)

// ErrEmptyVocabulary means every term was pruned by the index thresholds
var ErrEmptyVocabulary = errors.New("empty vocabulary: every term was pruned")

// IndexConfig bounds the vocabulary and sets the n-gram range
type IndexConfig struct {
	MaxVocabularySize         int     // 0 = unlimited
	MinDocumentFrequency      int     // terms in fewer documents are dropped
	MaxDocumentFrequencyRatio float64 // terms in more than ratio·N documents are dropped; 1 disables
	NgramMin                  int
	NgramMax                  int
}

func DefaultIndexConfig() IndexConfig {
	return IndexConfig{
		MinDocumentFrequency:      1,
		MaxDocumentFrequencyRatio: 1.0,
		NgramMin:                  1,
		NgramMax:                  1,
	}
}

func IndexConfigFrom(cfg config.IndexConfig) IndexConfig {
	return IndexConfig{
		MaxVocabularySize:         cfg.MaxVocabularySize,
		MinDocumentFrequency:      cfg.MinDocumentFrequency,
		MaxDocumentFrequencyRatio: cfg.MaxDocumentFrequencyRatio,
		NgramMin:                  cfg.NgramMin,
		NgramMax:                  cfg.NgramMax,
	}
}

// Index is the immutable document-term matrix plus posting bitmaps.
// It is safe for concurrent readers.
type Index struct {
	cfg     IndexConfig
	docs    []corpus.Document
	vocab   *vocabulary
	vectors [][]Entry
	nnz     int

	// postings[col] holds the documents with a non-zero weight in col
	postings []*roaring.Bitmap
	// lowercased field value → documents
	categories map[string]*roaring.Bitmap
	sources    map[string]*roaring.Bitmap
}

// BuildIndex fits the vocabulary on docs and weighs every document.
// Document ids must equal their position in docs.
func BuildIndex(docs []corpus.Document, cfg IndexConfig) (*Index, error) {
	if cfg.NgramMax < 1 {
		cfg.NgramMax = 1
	}

	counts := make([]map[string]int, len(docs))
	ordered := make([][]string, len(docs))
	for i, d := range docs {
		ordered[i] = expandTerms(d.Tokens, cfg.NgramMin, cfg.NgramMax)
		counts[i] = termCounts(ordered[i])
	}

	vocab := fitVocabulary(counts, ordered, cfg)
	if len(vocab.terms) == 0 {
		return nil, ErrEmptyVocabulary
	}

	ix := &Index{
		cfg:        cfg,
		docs:       docs,
		vocab:      vocab,
		vectors:    make([][]Entry, len(docs)),
		postings:   make([]*roaring.Bitmap, len(vocab.terms)),
		categories: make(map[string]*roaring.Bitmap),
		sources:    make(map[string]*roaring.Bitmap),
	}
	for col := range ix.postings {
		ix.postings[col] = roaring.NewBitmap()
	}

	for i, d := range docs {
		vec := vocab.weigh(counts[i])
		ix.vectors[i] = vec
		ix.nnz += len(vec)
		for _, e := range vec {
			ix.postings[e.Column].Add(uint32(i))
		}
		addTo(ix.categories, d.Category, i)
		addTo(ix.sources, d.Source, i)
	}
	for _, bm := range ix.postings {
		bm.RunOptimize()
	}
	return ix, nil
}

func addTo(field map[string]*roaring.Bitmap, value string, doc int) {
	key := strings.ToLower(value)
	bm, ok := field[key]
	if !ok {
		bm = roaring.NewBitmap()
		field[key] = bm
	}
	bm.Add(uint32(doc))
}

// Len is the number of indexed documents
func (ix *Index) Len() int {
	return len(ix.docs)
}

func (ix *Index) VocabularySize() int {
	return len(ix.vocab.terms)
}

// Shape is the (documents, terms) size of the matrix
func (ix *Index) Shape() (int, int) {
	return len(ix.docs), len(ix.vocab.terms)
}

// NonZero counts stored weights
func (ix *Index) NonZero() int {
	return ix.nnz
}

func (ix *Index) Config() IndexConfig {
	return ix.cfg
}

// Column returns the matrix column of term
func (ix *Index) Column(term string) (int, bool) {
	col, ok := ix.vocab.columns[term]
	return col, ok
}

// IDF returns the inverse document frequency of term
func (ix *Index) IDF(term string) (float64, bool) {
	col, ok := ix.vocab.columns[term]
	if !ok {
		return 0, false
	}
	return ix.vocab.idf[col], true
}

// DocumentFrequency returns how many documents contain term
func (ix *Index) DocumentFrequency(term string) int {
	col, ok := ix.vocab.columns[term]
	if !ok {
		return 0
	}
	return ix.vocab.df[col]
}

// Terms lists the vocabulary in column order
func (ix *Index) Terms() []string {
	return append([]string(nil), ix.vocab.terms...)
}

// Vector returns a copy of a document's unit vector
func (ix *Index) Vector(id int) []Entry {
	if id < 0 || id >= len(ix.vectors) {
		return nil
	}
	return append([]Entry(nil), ix.vectors[id]...)
}

func (ix *Index) Document(id int) (corpus.Document, bool) {
	if id < 0 || id >= len(ix.docs) {
		return corpus.Document{}, false
	}
	return ix.docs[id], true
}

// vectorize projects tokens onto the fitted space
func (ix *Index) vectorize(tokens []string) []Entry {
	return ix.vocab.weigh(termCounts(expandTerms(tokens, ix.cfg.NgramMin, ix.cfg.NgramMax)))
}

// matching returns the documents sharing at least one weighted column with vec
func (ix *Index) matching(vec []Entry) *roaring.Bitmap {
	bms := make([]*roaring.Bitmap, len(vec))
	for i, e := range vec {
		bms[i] = ix.postings[e.Column]
	}
	return roaring.FastOr(bms...)
}

// filtered returns the documents passing f, or nil when f is empty
func (ix *Index) filtered(f Filters) *roaring.Bitmap {
	var result *roaring.Bitmap
	if f.Category != "" {
		result = containing(ix.categories, f.Category)
	}
	if f.Source != "" {
		bm := containing(ix.sources, f.Source)
		if result == nil {
			result = bm
		} else {
			result = roaring.And(result, bm)
		}
	}
	return result
}

// containing unions the bitmaps of every value containing needle,
// case-insensitively
func containing(field map[string]*roaring.Bitmap, needle string) *roaring.Bitmap {
	needle = strings.ToLower(needle)
	var hits []*roaring.Bitmap
	for value, bm := range field {
		if strings.Contains(value, needle) {
			hits = append(hits, bm)
		}
	}
	return roaring.FastOr(hits...)
}
