package search_test

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledge-engine/newsir/internal/config"
	"github.com/knowledge-engine/newsir/internal/corpus"
	"github.com/knowledge-engine/newsir/internal/normalize"
	"github.com/knowledge-engine/newsir/internal/search"
)

type article struct {
	content  string
	category string
	source   string
}

func plainNormalizer(t *testing.T) *normalize.Normalizer {
	t.Helper()
	stopwords, err := normalize.NewStopwords([]string{"id"}, nil)
	require.NoError(t, err)
	return normalize.New(normalize.Options{Stopwords: stopwords, MinTokenLength: 3, KeepDigits: true})
}

func documents(n *normalize.Normalizer, articles ...article) []corpus.Document {
	docs := make([]corpus.Document, len(articles))
	for i, a := range articles {
		docs[i] = corpus.Document{
			ID:       i,
			Title:    a.content,
			Content:  a.content,
			Category: a.category,
			Source:   a.source,
			Tokens:   n.Tokens(a.content),
		}
	}
	return docs
}

func newsArticles() []article {
	return []article{
		{"Gempa mengguncang Jakarta pagi ini", "Bencana", "Indonesia News"},
		{"Banjir melanda Jakarta Utara", "Bencana", "Indonesia News"},
		{"Gempa kecil terasa di Bandung", "Bencana", "Indonesia News"},
		{"Harga cabai naik di pasar", "Ekonomi", "Indonesia News"},
		{"Timnas menang melawan Vietnam", "Olahraga", "BBC News"},
	}
}

func newSearcher(t *testing.T, n *normalize.Normalizer, cfg search.IndexConfig, articles ...article) *search.Searcher {
	t.Helper()
	ix, err := search.BuildIndex(documents(n, articles...), cfg)
	require.NoError(t, err)
	return search.NewSearcher(ix, n, search.DefaultMinScore)
}

func ids(results []search.Result) []int {
	out := make([]int, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func TestSearchGempaJakarta(t *testing.T) {
	n, err := normalize.NewFromConfig(config.Default().Normalizer)
	require.NoError(t, err)
	s := newSearcher(t, n, search.IndexConfigFrom(config.Default().Index), newsArticles()...)

	results, err := s.Search("gempa jakarta", 10, search.Filters{})
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, 0, results[0].ID)
	assert.Equal(t, "Gempa mengguncang Jakarta pagi ini", results[0].Content)
	assert.ElementsMatch(t, []int{1, 2}, ids(results[1:]))
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.InDelta(t, results[1].Score, results[2].Score, 1e-12)
	for i, r := range results {
		assert.Equal(t, i+1, r.Rank)
		assert.Greater(t, r.Score, search.DefaultMinScore)
		assert.LessOrEqual(t, r.Score, 1.0)
	}

	ln2, ln3 := math.Log(2), math.Log(3)
	assert.InDelta(t, ln2/math.Sqrt(ln2*ln2+ln3*ln3), results[0].Score, 1e-9)
}

func TestIndexIDF(t *testing.T) {
	n := plainNormalizer(t)
	ix, err := search.BuildIndex(documents(n, newsArticles()...), search.DefaultIndexConfig())
	require.NoError(t, err)

	idf, ok := ix.IDF("gempa")
	require.True(t, ok)
	assert.InDelta(t, math.Log(6.0/3.0), idf, 1e-12)
	assert.Equal(t, 2, ix.DocumentFrequency("gempa"))

	idf, ok = ix.IDF("vietnam")
	require.True(t, ok)
	assert.InDelta(t, math.Log(6.0/2.0), idf, 1e-12)

	_, ok = ix.IDF("tsunami")
	assert.False(t, ok)
	assert.Equal(t, 0, ix.DocumentFrequency("tsunami"))
}

func TestIndexTermInEveryDocumentWeighsZero(t *testing.T) {
	n := plainNormalizer(t)
	ix, err := search.BuildIndex(documents(n,
		article{content: "berita gempa"},
		article{content: "berita banjir"},
	), search.DefaultIndexConfig())
	require.NoError(t, err)

	idf, ok := ix.IDF("berita")
	require.True(t, ok)
	assert.Equal(t, 0.0, idf)

	s := search.NewSearcher(ix, n, search.DefaultMinScore)
	results, err := s.Search("berita", search.All, search.Filters{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestIndexShapeAndUnitVectors(t *testing.T) {
	n := plainNormalizer(t)
	ix, err := search.BuildIndex(documents(n, newsArticles()...), search.DefaultIndexConfig())
	require.NoError(t, err)

	rows, cols := ix.Shape()
	assert.Equal(t, 5, rows)
	assert.Equal(t, ix.VocabularySize(), cols)
	assert.Equal(t, 5, ix.Len())

	terms := ix.Terms()
	assert.IsNonDecreasing(t, terms, "columns follow lexical term order")
	for col, term := range terms {
		got, ok := ix.Column(term)
		require.True(t, ok)
		assert.Equal(t, col, got)
	}

	nnz := 0
	for id := 0; id < rows; id++ {
		vec := ix.Vector(id)
		nnz += len(vec)
		var norm float64
		for _, e := range vec {
			norm += e.Weight * e.Weight
		}
		assert.InDelta(t, 1.0, norm, 1e-9)
	}
	assert.Equal(t, nnz, ix.NonZero())
	assert.Nil(t, ix.Vector(99))
}

func TestIndexDocumentFrequencyThresholds(t *testing.T) {
	n := plainNormalizer(t)
	fruit := []article{
		{content: "apel jeruk"},
		{content: "apel mangga"},
		{content: "apel durian"},
		{content: "salak jeruk"},
	}

	cfg := search.DefaultIndexConfig()
	cfg.MinDocumentFrequency = 2
	ix, err := search.BuildIndex(documents(n, fruit...), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"apel", "jeruk"}, ix.Terms())

	cfg = search.DefaultIndexConfig()
	cfg.MaxDocumentFrequencyRatio = 0.5
	ix, err = search.BuildIndex(documents(n, fruit...), cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"durian", "jeruk", "mangga", "salak"}, ix.Terms())
}

func TestIndexMaxVocabularySize(t *testing.T) {
	n := plainNormalizer(t)
	docs := documents(n,
		article{content: "jeruk apel"},
		article{content: "apel mangga"},
		article{content: "mangga salak"},
		article{content: "durian"},
	)

	cfg := search.DefaultIndexConfig()
	cfg.MaxVocabularySize = 2
	ix, err := search.BuildIndex(docs, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"apel", "mangga"}, ix.Terms())

	cfg.MaxVocabularySize = 3
	ix, err = search.BuildIndex(docs, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"apel", "jeruk", "mangga"}, ix.Terms(), "df ties keep the first-seen term")
}

func TestIndexNgrams(t *testing.T) {
	n := plainNormalizer(t)
	cfg := search.DefaultIndexConfig()
	cfg.NgramMax = 2
	s := newSearcher(t, n, cfg,
		article{content: "gempa bumi jakarta"},
		article{content: "bumi gempa bandung"},
		article{content: "harga pangan"},
	)

	_, ok := s.Index().Column("gempa bumi")
	assert.True(t, ok)
	_, ok = s.Index().Column("bumi gempa")
	assert.True(t, ok)

	results, err := s.Search("gempa bumi", search.All, search.Filters{})
	require.NoError(t, err)
	require.Equal(t, []int{0, 1}, ids(results))
	assert.Greater(t, results[0].Score, results[1].Score, "phrase match ranks higher")
}

func TestIndexEmptyVocabulary(t *testing.T) {
	n := plainNormalizer(t)
	cfg := search.DefaultIndexConfig()
	cfg.MinDocumentFrequency = 5

	_, err := search.BuildIndex(documents(n, article{content: "gempa"}, article{content: "banjir"}), cfg)
	assert.True(t, errors.Is(err, search.ErrEmptyVocabulary))

	_, err = search.BuildIndex(nil, search.DefaultIndexConfig())
	assert.ErrorIs(t, err, search.ErrEmptyVocabulary)
}

func TestSearchEmptyQuery(t *testing.T) {
	s := newSearcher(t, plainNormalizer(t), search.DefaultIndexConfig(), newsArticles()...)

	for _, q := range []string{"", "   ", "!!!", "yang dan di", "ab"} {
		results, err := s.Search(q, 10, search.Filters{})
		assert.ErrorIs(t, err, search.ErrEmptyQuery, q)
		assert.Nil(t, results)
	}
}

func TestSearchTiesOrderedByID(t *testing.T) {
	s := newSearcher(t, plainNormalizer(t), search.DefaultIndexConfig(),
		article{content: "banjir bandung"},
		article{content: "gempa jakarta"},
		article{content: "banjir bandung"},
	)

	results, err := s.Search("banjir", search.All, search.Filters{})
	require.NoError(t, err)
	require.Equal(t, []int{0, 2}, ids(results))
	assert.Equal(t, results[0].Score, results[1].Score)
	assert.Equal(t, []int{1, 2}, []int{results[0].Rank, results[1].Rank})
}

func TestSearchUnknownTerms(t *testing.T) {
	s := newSearcher(t, plainNormalizer(t), search.DefaultIndexConfig(), newsArticles()...)

	results, err := s.Search("tsunami aceh", 10, search.Filters{})
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)

	results, err = s.Search("tsunami gempa", 10, search.Filters{})
	require.NoError(t, err)
	assert.Equal(t, []int{0, 2}, ids(results))
}

func TestSearchFiltersApplyBeforeTopK(t *testing.T) {
	s := newSearcher(t, plainNormalizer(t), search.DefaultIndexConfig(),
		article{"jakarta jakarta banjir", "Bencana", "Indonesia News"},
		article{"jakarta macet panjang", "Lalu Lintas", "BBC News"},
		article{"harga naik", "Ekonomi", "BBC News"},
	)

	results, err := s.Search("jakarta", 1, search.Filters{})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, ids(results))

	results, err = s.Search("jakarta", 1, search.Filters{Category: "lalu"})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, ids(results))
	assert.Equal(t, 1, results[0].Rank)

	results, err = s.Search("jakarta", search.All, search.Filters{Source: "bbc"})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, ids(results))

	results, err = s.Search("jakarta", search.All, search.Filters{Category: "bencana", Source: "BBC"})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = s.Search("jakarta", search.All, search.Filters{Category: "olahraga"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchFilterCorrectness(t *testing.T) {
	s := newSearcher(t, plainNormalizer(t), search.DefaultIndexConfig(), newsArticles()...)

	results, err := s.Search("gempa jakarta banjir harga timnas", search.All, search.Filters{Category: "BENCANA"})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, "Bencana", r.Category)
	}

	results, err = s.Search("gempa jakarta banjir harga timnas", search.All, search.Filters{Source: "  news "})
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

func TestSearchThreshold(t *testing.T) {
	n := plainNormalizer(t)
	ix, err := search.BuildIndex(documents(n, newsArticles()...), search.DefaultIndexConfig())
	require.NoError(t, err)

	all, err := search.NewSearcher(ix, n, 0).Search("gempa jakarta", search.All, search.Filters{})
	require.NoError(t, err)
	require.Len(t, all, 3)

	strict := search.NewSearcher(ix, n, all[1].Score)
	results, err := strict.Search("gempa jakarta", search.All, search.Filters{})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, ids(results), "scores equal to the threshold are excluded")
}

func TestSearchTopKMonotonic(t *testing.T) {
	s := newSearcher(t, plainNormalizer(t), search.DefaultIndexConfig(), newsArticles()...)
	query := "gempa jakarta banjir harga"

	all, err := s.Search(query, search.All, search.Filters{})
	require.NoError(t, err)
	unbounded, err := s.Search(query, 0, search.Filters{})
	require.NoError(t, err)
	assert.Equal(t, all, unbounded)

	for k := 1; k <= len(all)+1; k++ {
		results, err := s.Search(query, k, search.Filters{})
		require.NoError(t, err)
		assert.Equal(t, all[:min(k, len(all))], results, "top %d", k)
	}
}

func TestSearchDeterministicAndConcurrent(t *testing.T) {
	s := newSearcher(t, plainNormalizer(t), search.DefaultIndexConfig(), newsArticles()...)
	want, err := s.Search("gempa jakarta", 10, search.Filters{})
	require.NoError(t, err)

	var wg sync.WaitGroup
	got := make([][]search.Result, 16)
	for i := range got {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i], _ = s.Search("gempa jakarta", 10, search.Filters{})
		}(i)
	}
	wg.Wait()

	for _, results := range got {
		assert.Equal(t, want, results)
	}
}

func TestSearchSymmetry(t *testing.T) {
	articles := newsArticles()
	s := newSearcher(t, plainNormalizer(t), search.DefaultIndexConfig(), articles...)

	for id, a := range articles {
		results, err := s.Search(a.content, search.All, search.Filters{})
		require.NoError(t, err)
		require.NotEmpty(t, results)
		assert.Equal(t, id, results[0].ID)
		assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	}
}
