package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/knowledge-engine/newsir/internal/config"
	"github.com/knowledge-engine/newsir/internal/corpus"
	"github.com/knowledge-engine/newsir/internal/ingest"
	"github.com/knowledge-engine/newsir/internal/normalize"
	"github.com/knowledge-engine/newsir/internal/search"
	"github.com/knowledge-engine/newsir/internal/source"
	"github.com/knowledge-engine/newsir/internal/translate"
)

var (
	// ErrNotInitialized is returned by queries before the first successful build
	ErrNotInitialized = errors.New("search index not initialized")
	// ErrNoSources means Initialize had nothing to read
	ErrNoSources = errors.New("no corpus sources configured")
)

// LoadFunc reads one source file into a table
type LoadFunc func(ctx context.Context, path string, opts source.Options) (*source.Table, error)

// Engine owns the published index and rebuilds it on request.
// Searches read an immutable snapshot and never wait for a build.
type Engine struct {
	Config *config.Config
	Logger *logrus.Entry

	normalizer *normalize.Normalizer
	reconciler *ingest.Reconciler
	builder    *corpus.Builder
	translator *translate.Pipeline
	load       LoadFunc

	buildMu sync.Mutex
	current atomic.Pointer[snapshot]
}

// snapshot is everything one build produced; it is never mutated
type snapshot struct {
	corpus   *corpus.Corpus
	searcher *search.Searcher
	stats    *Stats
}

// Option customizes an Engine
type Option func(*Engine)

// WithTranslator enables translation of foreign-language content at build time
func WithTranslator(p *translate.Pipeline) Option {
	return func(e *Engine) { e.translator = p }
}

// WithLoader replaces the file reader
func WithLoader(load LoadFunc) Option {
	return func(e *Engine) { e.load = load }
}

func NewEngine(cfg *config.Config, logger *logrus.Entry, opts ...Option) (*Engine, error) {
	normalizer, err := normalize.NewFromConfig(cfg.Normalizer)
	if err != nil {
		return nil, fmt.Errorf("normalizer: %w", err)
	}

	e := &Engine{
		Config:     cfg,
		Logger:     logger.WithField("component", "engine"),
		normalizer: normalizer,
		reconciler: ingest.NewReconciler(ingest.RulesFromConfig(cfg.Reconcile), logger),
		builder:    corpus.NewBuilder(normalizer, cfg.Corpus.Workers, logger),
		load:       source.Open,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Initialize reads, reconciles and indexes sources and publishes the
// result. Empty sources means the configured ones, or failing that every
// data file in the data directory. On failure the previously published
// index keeps serving.
func (e *Engine) Initialize(ctx context.Context, sources []config.SourceConfig) (*Stats, error) {
	if len(sources) == 0 {
		sources = e.DefaultSources()
	}
	if len(sources) == 0 {
		return nil, ErrNoSources
	}

	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	started := time.Now()
	log := e.Logger.WithField("sources", len(sources))
	log.Info("Building index")

	tables, loadErrs := e.loadSources(ctx, sources)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		labeled   []ingest.LabeledTable
		perSource []SourceStats
		srcErrs   []error
	)
	for i, src := range sources {
		st := SourceStats{Path: src.Path, Label: src.Label}
		if loadErrs[i] != nil {
			st.Error = loadErrs[i].Error()
			srcErrs = append(srcErrs, loadErrs[i])
			perSource = append(perSource, st)
			continue
		}
		st.Encoding = tables[i].Encoding
		st.Rows = tables[i].Len()
		if m, err := e.reconciler.Detect(tables[i]); err == nil {
			st.Mapping = &m
		} else {
			st.Error = err.Error()
		}
		perSource = append(perSource, st)
		labeled = append(labeled, ingest.LabeledTable{Table: tables[i], Label: src.Label})
	}

	candidates, schemaErrs := e.reconciler.ReconcileAll(labeled)
	srcErrs = append(srcErrs, schemaErrs...)

	var translation *translate.Report
	if e.translator != nil && len(candidates) > 0 {
		translation = e.translateCandidates(ctx, candidates)
	}

	c, report, err := e.builder.Build(ctx, candidates)
	if err != nil {
		log.WithError(err).Error("Build failed; keeping previous index")
		return nil, errors.Join(fmt.Errorf("build corpus: %w", err), errors.Join(srcErrs...))
	}

	ix, err := search.BuildIndex(c.Documents(), search.IndexConfigFrom(e.Config.Index))
	if err != nil {
		log.WithError(err).Error("Build failed; keeping previous index")
		return nil, fmt.Errorf("build index: %w", err)
	}

	rows, cols := ix.Shape()
	stats := &Stats{
		BuildID:        uuid.NewString(),
		BuiltAt:        time.Now().UTC(),
		Duration:       time.Since(started),
		DocumentCount:  c.Len(),
		VocabularySize: ix.VocabularySize(),
		MatrixShape:    [2]int{rows, cols},
		NonZero:        ix.NonZero(),
		Categories:     c.CategoryCounts(),
		Sources:        c.SourceCounts(),
		Corpus:         report,
		Translation:    translation,
		Inputs:         perSource,
	}
	for _, err := range srcErrs {
		stats.SourceErrors = append(stats.SourceErrors, err.Error())
	}

	e.current.Store(&snapshot{
		corpus:   c,
		searcher: search.NewSearcher(ix, e.normalizer, e.Config.Search.MinScore),
		stats:    stats,
	})

	log.WithFields(logrus.Fields{
		"build_id":   stats.BuildID,
		"documents":  stats.DocumentCount,
		"vocabulary": stats.VocabularySize,
		"dropped":    report.DroppedEmpty,
		"failed":     len(srcErrs),
		"took":       stats.Duration.Round(time.Millisecond),
	}).Info("Index published")
	return stats, nil
}

// DefaultSources returns the configured sources or the data directory listing
func (e *Engine) DefaultSources() []config.SourceConfig {
	if len(e.Config.Corpus.Sources) > 0 {
		return e.Config.Corpus.Sources
	}
	if e.Config.Corpus.DataDir == "" {
		return nil
	}
	paths, err := source.Discover(e.Config.Corpus.DataDir)
	if err != nil {
		e.Logger.WithError(err).Debug("No data directory to discover")
		return nil
	}
	sources := make([]config.SourceConfig, len(paths))
	for i, path := range paths {
		sources[i] = config.SourceConfig{Path: path}
	}
	return sources
}

// loadSources reads every source concurrently. Results and errors are
// indexed like sources.
func (e *Engine) loadSources(ctx context.Context, sources []config.SourceConfig) ([]*source.Table, []error) {
	tables := make([]*source.Table, len(sources))
	errs := make([]error, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.Config.Corpus.Workers, 1))
	for i, src := range sources {
		g.Go(func() error {
			path := e.resolvePath(src.Path)
			encoding := src.Encoding
			if encoding == "" {
				encoding = e.Config.Corpus.Encoding
			}
			table, err := e.load(gctx, path, source.Options{
				Encoding:         encoding,
				FallbackEncoding: e.Config.Corpus.FallbackEncoding,
			})
			if err != nil {
				errs[i] = fmt.Errorf("source %s: %w", src.Path, err)
				e.Logger.WithError(err).WithField("path", path).Warn("Failed to read source")
				return nil
			}
			e.Logger.WithFields(logrus.Fields{
				"path":     path,
				"rows":     table.Len(),
				"encoding": table.Encoding,
			}).Debug("Source loaded")
			tables[i] = table
			return nil
		})
	}
	_ = g.Wait()
	return tables, errs
}

// resolvePath falls back to the data directory for relative paths that do
// not exist as given
func (e *Engine) resolvePath(path string) string {
	if filepath.IsAbs(path) || source.IsRemote(path) || e.Config.Corpus.DataDir == "" {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return filepath.Join(e.Config.Corpus.DataDir, path)
}

func (e *Engine) translateCandidates(ctx context.Context, candidates []ingest.Candidate) *translate.Report {
	contents := make([]string, len(candidates))
	for i, c := range candidates {
		contents[i] = c.Content
	}
	translated, report := e.translator.Run(ctx, contents)
	for i := range candidates {
		candidates[i].Content = translated[i]
	}
	return &report
}

// Search ranks the published index against query
func (e *Engine) Search(query string, topK int, filters search.Filters) ([]search.Result, error) {
	snap := e.current.Load()
	if snap == nil {
		return nil, ErrNotInitialized
	}
	return snap.searcher.Search(query, topK, filters)
}

// ProcessedQuery returns the terms query normalizes to
func (e *Engine) ProcessedQuery(query string) []string {
	return e.normalizer.Tokens(query)
}

// GetDocument looks a document up in the published corpus
func (e *Engine) GetDocument(id int) (corpus.Document, bool) {
	snap := e.current.Load()
	if snap == nil {
		return corpus.Document{}, false
	}
	return snap.corpus.Document(id)
}

// Categories lists the distinct categories of the published corpus
func (e *Engine) Categories() []string {
	snap := e.current.Load()
	if snap == nil {
		return nil
	}
	return snap.corpus.Categories()
}

// LastBuild returns the stats of the published build, or nil
func (e *Engine) LastBuild() *Stats {
	snap := e.current.Load()
	if snap == nil {
		return nil
	}
	return snap.stats
}

func (e *Engine) GetStats() Status {
	snap := e.current.Load()
	if snap == nil {
		return Status{}
	}
	s := snap.stats
	return Status{
		Initialized:    true,
		DocumentCount:  s.DocumentCount,
		VocabularySize: s.VocabularySize,
		MatrixShape:    s.MatrixShape,
		BuildID:        s.BuildID,
		BuiltAt:        s.BuiltAt,
		Categories:     s.Categories,
		Sources:        s.Sources,
	}
}

func (e *Engine) IsInitialized() bool {
	return e.current.Load() != nil
}
