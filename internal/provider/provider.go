package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/knowledge-engine/newsir/internal/config"
)

// LLMProvider translates batches of text through a language model. Each
// backend shapes the request its API needs.
type LLMProvider interface {
	Translate(ctx context.Context, texts []string, targetLang string) ([]string, error)
	Name() string
}

// ErrTruncated means the model stopped at its output limit
var ErrTruncated = errors.New("reply truncated at the output token limit")

// New builds the provider named in cfg
func New(cfg config.LLMConfig) (LLMProvider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "ollama", "":
		return NewOllamaProvider(cfg.BaseURL, cfg.Model), nil
	case "openai":
		return NewOpenAIProvider(cfg.BaseURL, cfg.Model, cfg.APIKey), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}

const translatorRole = "You are a professional news translator. Keep names, numbers and places unchanged and never add commentary."

// translationSchema constrains replies to {"translations": [...]}
var translationSchema = json.RawMessage(`{
	"type": "object",
	"properties": {"translations": {"type": "array", "items": {"type": "string"}}},
	"required": ["translations"],
	"additionalProperties": false
}`)

// BuildTranslationPrompt lists texts as numbered items, one per line
func BuildTranslationPrompt(texts []string, targetLang string) string {
	var b strings.Builder
	b.WriteString("Translate each numbered item into the language with ISO code \"")
	b.WriteString(targetLang)
	b.WriteString("\". Answer with a JSON object whose \"translations\" array holds one string per item, in order.\n\n")
	for i, text := range texts {
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(strings.Join(strings.Fields(text), " "))
		b.WriteByte('\n')
	}
	return b.String()
}

// replyBudget estimates the output tokens a translation of texts needs
func replyBudget(texts []string) int {
	n := 0
	for _, text := range texts {
		n += len(text)
	}
	return n/2 + 64*len(texts) + 256
}

// ParseTranslations reads a translation reply. The JSON form is expected;
// models that ignore the format and answer with numbered lines are
// accepted too. Exactly want non-empty items must come back.
func ParseTranslations(reply string, want int) ([]string, error) {
	var doc struct {
		Translations []string `json:"translations"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(reply)), &doc); err != nil {
		return ParseNumberedLines(reply, want)
	}
	if len(doc.Translations) != want {
		return nil, fmt.Errorf("reply has %d of %d translations", len(doc.Translations), want)
	}
	for i, text := range doc.Translations {
		if doc.Translations[i] = strings.TrimSpace(text); doc.Translations[i] == "" {
			return nil, fmt.Errorf("translation %d is empty", i+1)
		}
	}
	return doc.Translations, nil
}

var numberedLine = regexp.MustCompile(`^\s*(\d+)[.)]\s*(.*)$`)

// ParseNumberedLines reads a reply of numbered items. Every item 1..want
// must be present.
func ParseNumberedLines(reply string, want int) ([]string, error) {
	out := make([]string, want)
	found := 0
	for _, line := range strings.Split(reply, "\n") {
		m := numberedLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > want || out[n-1] != "" {
			continue
		}
		if text := strings.TrimSpace(m[2]); text != "" {
			out[n-1] = text
			found++
		}
	}
	if found != want {
		return nil, fmt.Errorf("reply has %d of %d numbered items", found, want)
	}
	return out, nil
}

// statusError reads a short excerpt of a failed response body
func statusError(name string, resp *http.Response) error {
	excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s returned status %d: %s", name, resp.StatusCode, strings.TrimSpace(string(excerpt)))
}
