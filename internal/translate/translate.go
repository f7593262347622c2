// Package translate brings article text into one working language before
// indexing. Failures never block a build: untranslated text is kept.
package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/sirupsen/logrus"

	"github.com/knowledge-engine/newsir/internal/config"
	"github.com/knowledge-engine/newsir/internal/provider"
)

// ErrTranslation wraps every recovered translation failure
var ErrTranslation = errors.New("translation failed")

// Translator translates a batch of texts into targetLang (ISO 639-1).
// The output has one entry per input, in order.
type Translator interface {
	Translate(ctx context.Context, texts []string, targetLang string) ([]string, error)
	Name() string
}

// Detector identifies the ISO 639-1 language of a text. ok is false when
// the language cannot be determined.
type Detector interface {
	Detect(text string) (lang string, ok bool)
}

// WhatlangDetector detects languages with trigram profiles
type WhatlangDetector struct {
	Options whatlanggo.Options
	// MinConfidence below which a detection is reported as unknown
	MinConfidence float64
}

func (d WhatlangDetector) Detect(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return "", false
	}
	info := whatlanggo.DetectWithOptions(text, d.Options)
	if info.Lang < 0 || info.Confidence < d.MinConfidence {
		return "", false
	}
	code := info.Lang.Iso6391()
	return code, code != ""
}

// NewTranslator builds the configured backend. A DeepL backend without an
// API key yields a nil translator and no error: translation stays off.
func NewTranslator(cfg config.TranslationConfig, llm config.LLMConfig) (Translator, error) {
	switch strings.ToLower(cfg.Provider) {
	case "deepl", "":
		if cfg.APIKey == "" {
			return nil, nil
		}
		return NewDeepL(cfg.APIKey, cfg.BaseURL), nil
	case "llm":
		p, err := provider.New(llm)
		if err != nil {
			return nil, err
		}
		return NewLLM(p), nil
	default:
		return nil, fmt.Errorf("unknown translation provider %q", cfg.Provider)
	}
}

// NewFromConfig returns nil when translation is disabled or unconfigured
func NewFromConfig(cfg config.TranslationConfig, llm config.LLMConfig, log *logrus.Entry) (*Pipeline, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	translator, err := NewTranslator(cfg, llm)
	if err != nil {
		return nil, err
	}
	if translator == nil {
		log.WithField("component", "translate").Warn("Translation enabled but no API key configured; continuing without it")
		return nil, nil
	}
	return NewPipeline(translator, WhatlangDetector{}, Options{
		TargetLanguage: cfg.TargetLanguage,
		BatchSize:      cfg.BatchSize,
		Timeout:        cfg.Timeout.Std(),
		RatePerSecond:  cfg.RatePerSecond,
	}, log), nil
}
