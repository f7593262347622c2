package translate

import (
	"context"
	"fmt"

	"github.com/knowledge-engine/newsir/internal/provider"
)

// LLM translates through a language-model provider
type LLM struct {
	provider provider.LLMProvider
}

func NewLLM(p provider.LLMProvider) *LLM {
	return &LLM{provider: p}
}

func (l *LLM) Name() string {
	return "llm:" + l.provider.Name()
}

func (l *LLM) Translate(ctx context.Context, texts []string, targetLang string) ([]string, error) {
	out, err := l.provider.Translate(ctx, texts, targetLang)
	if err != nil {
		return nil, err
	}
	if len(out) != len(texts) {
		return nil, fmt.Errorf("%s returned %d translations for %d texts", l.Name(), len(out), len(texts))
	}
	return out, nil
}
