package search

import (
	"math"
	"sort"
	"strings"
)

// Entry is one non-zero component of a sparse vector
type Entry struct {
	Column int
	Weight float64
}

// expandTerms returns the unigrams followed by the contiguous n-grams of
// length max(2, ngramMin)..ngramMax, joined by a space.
func expandTerms(tokens []string, ngramMin, ngramMax int) []string {
	terms := make([]string, 0, len(tokens))
	terms = append(terms, tokens...)
	for n := max(2, ngramMin); n <= ngramMax; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			terms = append(terms, strings.Join(tokens[i:i+n], " "))
		}
	}
	return terms
}

func termCounts(terms []string) map[string]int {
	counts := make(map[string]int, len(terms))
	for _, t := range terms {
		counts[t]++
	}
	return counts
}

// vocabulary is the fitted term space
type vocabulary struct {
	columns map[string]int
	terms   []string // by column
	df      []int    // by column
	idf     []float64
}

type termStat struct {
	term      string
	df        int
	firstSeen int
}

// fitVocabulary applies the document-frequency thresholds and the size cap,
// then assigns columns in lexical term order.
func fitVocabulary(docTerms []map[string]int, orderedTerms [][]string, cfg IndexConfig) *vocabulary {
	n := len(docTerms)
	stats := make(map[string]*termStat)
	seen := 0
	for i, counts := range docTerms {
		for _, t := range orderedTerms[i] {
			if _, ok := stats[t]; !ok {
				stats[t] = &termStat{term: t, firstSeen: seen}
				seen++
			}
		}
		for t := range counts {
			stats[t].df++
		}
	}

	minDF := max(cfg.MinDocumentFrequency, 1)
	maxDF := float64(n)
	if cfg.MaxDocumentFrequencyRatio > 0 && cfg.MaxDocumentFrequencyRatio < 1 {
		maxDF = cfg.MaxDocumentFrequencyRatio * float64(n)
	}

	kept := make([]*termStat, 0, len(stats))
	for _, s := range stats {
		if s.df < minDF || float64(s.df) > maxDF {
			continue
		}
		kept = append(kept, s)
	}

	if cfg.MaxVocabularySize > 0 && len(kept) > cfg.MaxVocabularySize {
		sort.Slice(kept, func(i, j int) bool {
			if kept[i].df != kept[j].df {
				return kept[i].df > kept[j].df
			}
			return kept[i].firstSeen < kept[j].firstSeen
		})
		kept = kept[:cfg.MaxVocabularySize]
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].term < kept[j].term })

	v := &vocabulary{
		columns: make(map[string]int, len(kept)),
		terms:   make([]string, len(kept)),
		df:      make([]int, len(kept)),
		idf:     make([]float64, len(kept)),
	}
	for col, s := range kept {
		v.columns[s.term] = col
		v.terms[col] = s.term
		v.df[col] = s.df
		v.idf[col] = smoothIDF(n, s.df)
	}
	return v
}

// smoothIDF is ln((1+N)/(1+df)); a term present in every document weighs 0
func smoothIDF(n, df int) float64 {
	return math.Log(float64(1+n) / float64(1+df))
}

// weigh turns term counts into an L2-normalized tf·idf vector sorted by
// column. Terms outside the vocabulary and zero weights are skipped.
func (v *vocabulary) weigh(counts map[string]int) []Entry {
	vec := make([]Entry, 0, len(counts))
	for t, tf := range counts {
		col, ok := v.columns[t]
		if !ok {
			continue
		}
		if w := float64(tf) * v.idf[col]; w != 0 {
			vec = append(vec, Entry{Column: col, Weight: w})
		}
	}
	if len(vec) == 0 {
		return nil
	}

	// summing in column order keeps scores bit-for-bit reproducible
	sort.Slice(vec, func(i, j int) bool { return vec[i].Column < vec[j].Column })
	var norm float64
	for _, e := range vec {
		norm += e.Weight * e.Weight
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i].Weight /= norm
	}
	return vec
}

// dot is the inner product of two column-sorted sparse vectors
func dot(a, b []Entry) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Column == b[j].Column:
			sum += a[i].Weight * b[j].Weight
			i++
			j++
		case a[i].Column < b[j].Column:
			i++
		default:
			j++
		}
	}
	return sum
}
