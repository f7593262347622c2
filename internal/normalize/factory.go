package normalize

import (
	"fmt"

	"github.com/knowledge-engine/newsir/internal/config"
)

// NewFromConfig assembles the normalizer shared by indexing and querying
func NewFromConfig(cfg config.NormalizerConfig) (*Normalizer, error) {
	stopwords, err := NewStopwords(cfg.StopwordLanguages, cfg.ExtraStopwords)
	if err != nil {
		return nil, fmt.Errorf("stopwords: %w", err)
	}
	stemmer, err := NewStemmer(cfg.Language)
	if err != nil {
		return nil, err
	}
	return New(Options{
		Stopwords:      stopwords,
		Stemmer:        stemmer,
		MinTokenLength: cfg.MinTokenLength,
		KeepDigits:     cfg.KeepDigits,
	}), nil
}
