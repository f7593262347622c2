package engine_test

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/knowledge-engine/newsir/internal/config"
	"github.com/knowledge-engine/newsir/internal/corpus"
	"github.com/knowledge-engine/newsir/internal/engine"
	"github.com/knowledge-engine/newsir/internal/ingest"
	"github.com/knowledge-engine/newsir/internal/search"
	"github.com/knowledge-engine/newsir/internal/translate"
)

func quietLog() *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logrus.NewEntry(logger)
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newEngine(t *testing.T, opts ...engine.Option) *engine.Engine {
	t.Helper()
	cfg := config.Default()
	cfg.Corpus.DataDir = ""
	e, err := engine.NewEngine(cfg, quietLog(), opts...)
	require.NoError(t, err)
	return e
}

func TestSearchBeforeInitialize(t *testing.T) {
	e := newEngine(t)

	_, err := e.Search("gempa", 10, search.Filters{})
	assert.ErrorIs(t, err, engine.ErrNotInitialized)

	_, ok := e.GetDocument(0)
	assert.False(t, ok)
	assert.False(t, e.GetStats().Initialized)
	assert.Nil(t, e.LastBuild())
}

func TestInitializeWithoutSources(t *testing.T) {
	e := newEngine(t)
	_, err := e.Initialize(context.Background(), nil)
	assert.ErrorIs(t, err, engine.ErrNoSources)
}

func TestEndToEnd(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "news.csv", "content\ngempa bumi melanda jakarta\nharga saham naik hari ini\n")

	e := newEngine(t)
	stats, err := e.Initialize(context.Background(), []config.SourceConfig{{Path: path}})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DocumentCount)
	assert.NotEmpty(t, stats.BuildID)

	results, err := e.Search("gempa jakarta", 10, search.Filters{})
	require.NoError(t, err)
	require.Len(t, results, 1, "the second document shares no terms")
	assert.Equal(t, 0, results[0].ID)
	assert.Equal(t, 1, results[0].Rank)
	assert.InDelta(t, 1/math.Sqrt2, results[0].Score, 1e-9)

	assert.Equal(t, []string{"gempa", "jakarta"}, e.ProcessedQuery("Gempa, Jakarta!"))

	doc, ok := e.GetDocument(0)
	require.True(t, ok)
	assert.Equal(t, "gempa bumi melanda jakarta", doc.Content)
	assert.Equal(t, ingest.NoTitle, doc.Title)
	assert.Equal(t, ingest.UnknownSource, doc.Source)

	_, ok = e.GetDocument(2)
	assert.False(t, ok)

	status := e.GetStats()
	assert.True(t, status.Initialized)
	assert.Equal(t, 2, status.DocumentCount)
	assert.Equal(t, status.VocabularySize, status.MatrixShape[1])
	assert.Equal(t, 2, status.MatrixShape[0])
	assert.Equal(t, map[string]int{ingest.GeneralCategory: 2}, status.Categories)
}

func TestSchemaDrift(t *testing.T) {
	dir := t.TempDir()
	indo := writeFile(t, dir, "indo.csv", "Judul,Content\n"+
		"Gempa Jakarta,Gempa mengguncang Jakarta pagi ini\n"+
		"Harga cabai,Harga cabai naik di pasar induk\n")
	bbc := writeFile(t, dir, "bbc.tsv", "title\tbody\n"+
		"Storm hits\tA storm hit the coast overnight\n")

	e := newEngine(t)
	stats, err := e.Initialize(context.Background(), []config.SourceConfig{
		{Path: indo, Label: "Indonesia News"},
		{Path: bbc, Label: "BBC News"},
	})
	require.NoError(t, err)
	require.Empty(t, stats.SourceErrors)
	assert.Equal(t, 3, stats.DocumentCount)
	assert.Equal(t, map[string]int{"Indonesia News": 2, "BBC News": 1}, stats.Sources)

	require.Len(t, stats.Inputs, 2)
	require.NotNil(t, stats.Inputs[0].Mapping)
	assert.Equal(t, ingest.ColumnMapping{Content: "Content", Title: "Judul"}, *stats.Inputs[0].Mapping)
	require.NotNil(t, stats.Inputs[1].Mapping)
	assert.Equal(t, ingest.ColumnMapping{Content: "body", Title: "title"}, *stats.Inputs[1].Mapping)

	doc, ok := e.GetDocument(0)
	require.True(t, ok)
	assert.Equal(t, corpus.Document{
		ID:       0,
		Title:    "Gempa Jakarta",
		Content:  "Gempa mengguncang Jakarta pagi ini",
		Category: ingest.GeneralCategory,
		Source:   "Indonesia News",
	}, withoutTokens(doc))

	doc, ok = e.GetDocument(2)
	require.True(t, ok)
	assert.Equal(t, "Storm hits", doc.Title)
	assert.Equal(t, "BBC News", doc.Source)

	results, err := e.Search("storm", 10, search.Filters{Source: "bbc"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].ID)

	results, err = e.Search("storm", 10, search.Filters{Source: "indonesia"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func withoutTokens(d corpus.Document) corpus.Document {
	d.Tokens = nil
	return d
}

func TestSourceFailuresAreIsolated(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.csv", "title,content\nBanjir,Banjir merendam ratusan rumah warga\n")
	numeric := writeFile(t, dir, "numbers.csv", "id,count\n1,2\n3,4\n")

	e := newEngine(t)
	stats, err := e.Initialize(context.Background(), []config.SourceConfig{
		{Path: good},
		{Path: filepath.Join(dir, "missing.csv")},
		{Path: numeric},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentCount)
	assert.Len(t, stats.SourceErrors, 2)

	require.Len(t, stats.Inputs, 3)
	assert.Empty(t, stats.Inputs[0].Error)
	assert.NotEmpty(t, stats.Inputs[1].Error)
	assert.NotEmpty(t, stats.Inputs[2].Error)
	assert.Nil(t, stats.Inputs[2].Mapping)
}

func TestEmptyCorpus(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "empty.csv", "content\nyang dan\ndi ke\n")

	e := newEngine(t)
	_, err := e.Initialize(context.Background(), []config.SourceConfig{{Path: path}})
	require.Error(t, err)
	assert.ErrorIs(t, err, corpus.ErrEmptyCorpus)
	assert.False(t, e.IsInitialized())
}

func TestFailedRebuildKeepsPreviousIndex(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.csv", "content\ngempa bumi melanda jakarta\nharga saham naik hari ini\n")
	empty := writeFile(t, dir, "empty.csv", "content\nyang dan\n")

	e := newEngine(t)
	first, err := e.Initialize(context.Background(), []config.SourceConfig{{Path: good}})
	require.NoError(t, err)

	_, err = e.Initialize(context.Background(), []config.SourceConfig{{Path: empty}})
	require.ErrorIs(t, err, corpus.ErrEmptyCorpus)

	assert.Equal(t, first.BuildID, e.GetStats().BuildID)
	results, err := e.Search("gempa", 10, search.Filters{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 0, results[0].ID)
}

func TestRebuildReplacesIndex(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "first.csv", "content\ngempa bumi melanda jakarta\nharga saham naik hari ini\n")
	second := writeFile(t, dir, "second.csv", "content\nbanjir merendam bekasi\nharga emas turun tajam\n")

	e := newEngine(t)
	_, err := e.Initialize(context.Background(), []config.SourceConfig{{Path: first}})
	require.NoError(t, err)
	_, err = e.Initialize(context.Background(), []config.SourceConfig{{Path: second}})
	require.NoError(t, err)

	results, err := e.Search("gempa", 10, search.Filters{})
	require.NoError(t, err)
	assert.Empty(t, results)

	results, err = e.Search("banjir", 10, search.Filters{})
	require.NoError(t, err)
	require.Len(t, results, 1)
}

func TestSearchDuringRebuild(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "news.csv", "content\n"+
		"gempa bumi melanda jakarta\n"+
		"harga saham naik hari ini\n"+
		"gempa susulan terasa di bandung\n")

	e := newEngine(t)
	sources := []config.SourceConfig{{Path: path}}
	_, err := e.Initialize(context.Background(), sources)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				results, err := e.Search("gempa", 10, search.Filters{})
				if !assert.NoError(t, err) {
					return
				}
				assert.Len(t, results, 2)
			}
		}()
	}
	for range 5 {
		_, err := e.Initialize(context.Background(), sources)
		require.NoError(t, err)
	}
	wg.Wait()
}

func TestConfiguredSourcesResolveAgainstDataDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "news.csv", "content\ngempa bumi melanda jakarta\nharga saham naik hari ini\n")

	cfg := config.Default()
	cfg.Corpus.DataDir = dir
	cfg.Corpus.Sources = []config.SourceConfig{{Path: "news.csv", Label: "Lokal"}}
	e, err := engine.NewEngine(cfg, quietLog())
	require.NoError(t, err)

	stats, err := e.Initialize(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Lokal": 2}, stats.Sources)
}

func TestDiscoversDataDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.csv", "content\ngempa bumi melanda jakarta\n")
	writeFile(t, dir, "b.jsonl", `{"title":"Saham","content":"harga saham naik hari ini"}`+"\n")
	writeFile(t, dir, "README.md", "not data")

	cfg := config.Default()
	cfg.Corpus.DataDir = dir
	e, err := engine.NewEngine(cfg, quietLog())
	require.NoError(t, err)

	require.Len(t, e.DefaultSources(), 2)
	stats, err := e.Initialize(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.DocumentCount)

	doc, ok := e.GetDocument(1)
	require.True(t, ok)
	assert.Equal(t, "Saham", doc.Title)
}

type fixedTranslator map[string]string

func (f fixedTranslator) Translate(_ context.Context, texts []string, _ string) ([]string, error) {
	out := make([]string, len(texts))
	for i, text := range texts {
		translated, ok := f[text]
		if !ok {
			return nil, errors.New("unknown text")
		}
		out[i] = translated
	}
	return out, nil
}

func (fixedTranslator) Name() string { return "fixed" }

type langByText map[string]string

func (d langByText) Detect(text string) (string, bool) {
	lang, ok := d[text]
	return lang, ok
}

func TestInitializeTranslatesForeignContent(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "mixed.csv", "content\nStorm hits Jakarta\ngempa bumi melanda bandung\n")

	pipeline := translate.NewPipeline(
		fixedTranslator{"Storm hits Jakarta": "Badai melanda Jakarta"},
		langByText{"Storm hits Jakarta": "en", "gempa bumi melanda bandung": "id"},
		translate.Options{TargetLanguage: "id"},
		quietLog(),
	)
	e := newEngine(t, engine.WithTranslator(pipeline))

	stats, err := e.Initialize(context.Background(), []config.SourceConfig{{Path: path}})
	require.NoError(t, err)
	require.NotNil(t, stats.Translation)
	assert.Equal(t, 1, stats.Translation.Translated)

	results, err := e.Search("badai", 10, search.Filters{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Badai melanda Jakarta", results[0].Content)
}
