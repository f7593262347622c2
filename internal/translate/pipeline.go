package translate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// Options tunes a Pipeline
type Options struct {
	TargetLanguage string
	BatchSize      int
	Timeout        time.Duration // per batch; 0 means no deadline
	RatePerSecond  float64       // batch starts per second; 0 means unpaced
}

// Report counts what a Run did
type Report struct {
	Texts      int `json:"texts"`
	Candidates int `json:"candidates"` // detected as another language
	Translated int `json:"translated"`
	Fallbacks  int `json:"fallbacks"` // kept untranslated after a failure
	Batches    int `json:"batches"`
	Failed     int `json:"failed_batches"`
}

// Pipeline detects which texts need translation and sends them in paced,
// deadline-bounded batches. A failed batch keeps its original text.
type Pipeline struct {
	translator Translator
	detector   Detector
	opts       Options
	limiter    *rate.Limiter
	log        *logrus.Entry
}

func NewPipeline(translator Translator, detector Detector, opts Options, log *logrus.Entry) *Pipeline {
	if opts.BatchSize < 1 {
		opts.BatchSize = 10
	}
	opts.TargetLanguage = strings.ToLower(opts.TargetLanguage)

	limit := rate.Inf
	if opts.RatePerSecond > 0 {
		limit = rate.Limit(opts.RatePerSecond)
	}
	return &Pipeline{
		translator: translator,
		detector:   detector,
		opts:       opts,
		limiter:    rate.NewLimiter(limit, 1),
		log:        log.WithFields(logrus.Fields{"component": "translate", "translator": translator.Name()}),
	}
}

// Run returns texts with every foreign-language entry translated where
// possible. It never fails; a canceled ctx leaves the remainder untouched.
func (p *Pipeline) Run(ctx context.Context, texts []string) ([]string, Report) {
	out := append([]string(nil), texts...)
	report := Report{Texts: len(texts)}

	var pending []int
	for i, text := range texts {
		lang, ok := p.detector.Detect(text)
		if ok && lang != p.opts.TargetLanguage {
			pending = append(pending, i)
		}
	}
	report.Candidates = len(pending)

	for start := 0; start < len(pending); start += p.opts.BatchSize {
		batch := pending[start:min(start+p.opts.BatchSize, len(pending))]
		report.Batches++

		translated, err := p.translateBatch(ctx, texts, batch)
		if err != nil {
			report.Failed++
			report.Fallbacks += len(batch)
			p.log.WithError(err).WithField("batch", report.Batches).Warn("Keeping original text")
			if ctx.Err() != nil {
				report.Fallbacks += len(pending) - start - len(batch)
				break
			}
			continue
		}
		for j, idx := range batch {
			if strings.TrimSpace(translated[j]) == "" {
				report.Fallbacks++
				continue
			}
			out[idx] = translated[j]
			report.Translated++
		}
	}

	p.log.WithFields(logrus.Fields{
		"candidates": report.Candidates,
		"translated": report.Translated,
		"fallbacks":  report.Fallbacks,
	}).Info("Translation finished")
	return out, report
}

func (p *Pipeline) translateBatch(ctx context.Context, texts []string, batch []int) ([]string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTranslation, err)
	}

	bctx := ctx
	if p.opts.Timeout > 0 {
		var cancel context.CancelFunc
		bctx, cancel = context.WithTimeout(ctx, p.opts.Timeout)
		defer cancel()
	}

	in := make([]string, len(batch))
	for j, idx := range batch {
		in[j] = texts[idx]
	}

	type outcome struct {
		texts []string
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		translated, err := p.translator.Translate(bctx, in, p.opts.TargetLanguage)
		done <- outcome{translated, err}
	}()

	var translated []string
	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTranslation, res.err)
		}
		translated = res.texts
	case <-bctx.Done():
		// the translator ignored its deadline; abandon it
		return nil, fmt.Errorf("%w: %w", ErrTranslation, bctx.Err())
	}
	if len(translated) != len(in) {
		return nil, fmt.Errorf("%w: got %d results for %d texts", ErrTranslation, len(translated), len(in))
	}
	return translated, nil
}
