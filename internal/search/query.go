package search

import (
	"errors"
	"sort"
	"strings"

	"github.com/knowledge-engine/newsir/internal/normalize"
)

// ErrEmptyQuery means the query normalized to no terms
var ErrEmptyQuery = errors.New("query has no searchable terms")

// All requests every qualifying document
const All = -1

// DefaultMinScore is the similarity a result must exceed
const DefaultMinScore = 0.001

// Filters restrict results by case-insensitive substring match.
// Empty fields do not filter.
type Filters struct {
	Category string `json:"category,omitempty"`
	Source   string `json:"source,omitempty"`
}

func (f Filters) IsZero() bool {
	return strings.TrimSpace(f.Category) == "" && strings.TrimSpace(f.Source) == ""
}

// Result is one ranked document
type Result struct {
	ID       int     `json:"id"`
	Title    string  `json:"title"`
	Content  string  `json:"content"`
	Category string  `json:"category"`
	Source   string  `json:"source"`
	Score    float64 `json:"score"`
	Rank     int     `json:"rank"`
}

// Normalizer is the query-side view of normalize.Normalizer
type Normalizer interface {
	Normalize(text string) normalize.Result
}

// Searcher ranks the documents of one Index. It must be given the same
// normalizer the indexed corpus was built with.
type Searcher struct {
	index      *Index
	normalizer Normalizer
	minScore   float64
}

func NewSearcher(index *Index, normalizer Normalizer, minScore float64) *Searcher {
	return &Searcher{index: index, normalizer: normalizer, minScore: minScore}
}

func (s *Searcher) Index() *Index {
	return s.index
}

// Terms returns the normalized form of query
func (s *Searcher) Terms(query string) []string {
	return s.normalizer.Normalize(query).Tokens
}

// Search ranks documents by cosine similarity to query. Filters narrow the
// candidates before the top-K cut; topK <= 0 returns every document above
// the score threshold. No match is an empty result, not an error.
func (s *Searcher) Search(query string, topK int, filters Filters) ([]Result, error) {
	tokens := s.Terms(query)
	if len(tokens) == 0 {
		return nil, ErrEmptyQuery
	}

	qvec := s.index.vectorize(tokens)
	if len(qvec) == 0 {
		return []Result{}, nil
	}

	candidates := s.index.matching(qvec)
	filters.Category = strings.TrimSpace(filters.Category)
	filters.Source = strings.TrimSpace(filters.Source)
	if allowed := s.index.filtered(filters); allowed != nil {
		candidates.And(allowed)
	}

	type scored struct {
		id    int
		score float64
	}
	hits := make([]scored, 0, candidates.GetCardinality())
	it := candidates.Iterator()
	for it.HasNext() {
		id := int(it.Next())
		score := min(dot(qvec, s.index.vectors[id]), 1)
		if score <= s.minScore {
			continue
		}
		hits = append(hits, scored{id: id, score: score})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].id < hits[j].id
	})
	if topK > 0 && len(hits) > topK {
		hits = hits[:topK]
	}

	results := make([]Result, len(hits))
	for i, h := range hits {
		d := s.index.docs[h.id]
		results[i] = Result{
			ID:       d.ID,
			Title:    d.Title,
			Content:  d.Content,
			Category: d.Category,
			Source:   d.Source,
			Score:    h.score,
			Rank:     i + 1,
		}
	}
	return results, nil
}
