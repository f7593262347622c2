package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the configuration for the news retrieval service
type Config struct {
	Server      ServerConfig      `toml:"server"`
	Corpus      CorpusConfig      `toml:"corpus"`
	Normalizer  NormalizerConfig  `toml:"normalizer"`
	Reconcile   ReconcileConfig   `toml:"reconcile"`
	Index       IndexConfig       `toml:"index"`
	Search      SearchConfig      `toml:"search"`
	Translation TranslationConfig `toml:"translation"`
	LLM         LLMConfig         `toml:"llm"`
}

type ServerConfig struct {
	Addr     string `toml:"addr"`
	LogLevel string `toml:"log_level"`
}

// SourceConfig names one corpus file and the label its documents carry
type SourceConfig struct {
	Path     string `toml:"path" json:"path"`
	Label    string `toml:"label" json:"label"`
	Encoding string `toml:"encoding" json:"encoding,omitempty"`
}

// CorpusConfig holds ingestion settings
type CorpusConfig struct {
	Sources          []SourceConfig `toml:"sources"`
	DataDir          string         `toml:"data_dir"`
	Encoding         string         `toml:"encoding"`
	FallbackEncoding string         `toml:"fallback_encoding"`
	AutoInit         bool           `toml:"auto_init"`
	Workers          int            `toml:"workers"`
}

// NormalizerConfig selects the lexicons and the stemmer
type NormalizerConfig struct {
	Language          string   `toml:"language"`
	StopwordLanguages []string `toml:"stopword_languages"`
	ExtraStopwords    []string `toml:"extra_stopwords"`
	MinTokenLength    int      `toml:"min_token_length"`
	KeepDigits        bool     `toml:"keep_digits"`
}

// ReconcileConfig holds the ordered column-name candidates used for schema detection
type ReconcileConfig struct {
	TextColumns     []string `toml:"text_columns"`
	TitleColumns    []string `toml:"title_columns"`
	CategoryColumns []string `toml:"category_columns"`
	SourceColumns   []string `toml:"source_columns"`
}

// IndexConfig controls vocabulary pruning and n-gram expansion
type IndexConfig struct {
	MaxVocabularySize         int     `toml:"max_vocabulary_size"`
	MinDocumentFrequency      int     `toml:"min_document_frequency"`
	MaxDocumentFrequencyRatio float64 `toml:"max_document_frequency_ratio"`
	NgramMin                  int     `toml:"ngram_min"`
	NgramMax                  int     `toml:"ngram_max"`
}

type SearchConfig struct {
	DefaultTopK int     `toml:"default_top_k"`
	MaxTopK     int     `toml:"max_top_k"`
	MinScore    float64 `toml:"min_score"`
}

// TranslationConfig configures the optional ingestion-time translation step
type TranslationConfig struct {
	Enabled        bool     `toml:"enabled"`
	Provider       string   `toml:"provider"`
	TargetLanguage string   `toml:"target_language"`
	BatchSize      int      `toml:"batch_size"`
	Timeout        Duration `toml:"timeout"`
	RatePerSecond  float64  `toml:"rate_per_second"`
	APIKey         string   `toml:"api_key"`
	BaseURL        string   `toml:"base_url"`
}

// Duration decodes from strings such as "45s" in config files
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std converts to time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

type LLMConfig struct {
	Provider string `toml:"provider"`
	BaseURL  string `toml:"base_url"`
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:     ":8080",
			LogLevel: "info",
		},
		Corpus: CorpusConfig{
			DataDir:          "./data",
			Encoding:         "",
			FallbackEncoding: "iso-8859-1",
			AutoInit:         true,
			Workers:          4,
		},
		Normalizer: NormalizerConfig{
			Language:          "indonesian",
			StopwordLanguages: []string{"id", "en"},
			MinTokenLength:    3,
			KeepDigits:        true,
		},
		Reconcile: ReconcileConfig{
			TextColumns:     []string{"content", "text", "article", "body", "news", "isi", "berita", "description", "translated"},
			TitleColumns:    []string{"title", "judul", "headline"},
			CategoryColumns: []string{"category", "kategori", "topic", "label"},
			SourceColumns:   []string{"source", "sumber", "publisher"},
		},
		Index: IndexConfig{
			MaxVocabularySize:         20000,
			MinDocumentFrequency:      1,
			MaxDocumentFrequencyRatio: 1.0,
			NgramMin:                  1,
			NgramMax:                  1,
		},
		Search: SearchConfig{
			DefaultTopK: 10,
			MaxTopK:     1000,
			MinScore:    0.001,
		},
		Translation: TranslationConfig{
			Enabled:        false,
			Provider:       "deepl",
			TargetLanguage: "id",
			BatchSize:      10,
			Timeout:        Duration(60 * time.Second),
			RatePerSecond:  3,
		},
		LLM: LLMConfig{
			Provider: "ollama",
			Model:    "qwen3:1.7b",
		},
	}
}

// Load loads configuration from environment variables with defaults
func Load() *Config {
	cfg := Default()
	applyEnv(cfg)
	return cfg
}

// LoadFile loads configuration with priority: defaults -> TOML file -> environment
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Server.Addr = GetStringEnv("SERVER_ADDR", cfg.Server.Addr)
	cfg.Server.LogLevel = GetStringEnv("LOG_LEVEL", cfg.Server.LogLevel)

	if sources := ParseSources(os.Getenv("CORPUS_SOURCES")); len(sources) > 0 {
		cfg.Corpus.Sources = sources
	}
	cfg.Corpus.DataDir = GetStringEnv("CORPUS_DATA_DIR", cfg.Corpus.DataDir)
	cfg.Corpus.Encoding = GetStringEnv("CORPUS_ENCODING", cfg.Corpus.Encoding)
	cfg.Corpus.FallbackEncoding = GetStringEnv("CORPUS_FALLBACK_ENCODING", cfg.Corpus.FallbackEncoding)
	cfg.Corpus.AutoInit = GetBoolEnv("CORPUS_AUTO_INIT", cfg.Corpus.AutoInit)
	cfg.Corpus.Workers = GetIntEnv("CORPUS_WORKERS", cfg.Corpus.Workers)

	cfg.Normalizer.Language = GetStringEnv("NORMALIZER_LANGUAGE", cfg.Normalizer.Language)
	cfg.Normalizer.StopwordLanguages = GetListEnv("NORMALIZER_STOPWORDS", cfg.Normalizer.StopwordLanguages)
	cfg.Normalizer.ExtraStopwords = GetListEnv("NORMALIZER_EXTRA_STOPWORDS", cfg.Normalizer.ExtraStopwords)
	cfg.Normalizer.MinTokenLength = GetIntEnv("NORMALIZER_MIN_TOKEN_LENGTH", cfg.Normalizer.MinTokenLength)
	cfg.Normalizer.KeepDigits = GetBoolEnv("NORMALIZER_KEEP_DIGITS", cfg.Normalizer.KeepDigits)

	cfg.Reconcile.TextColumns = GetListEnv("RECONCILE_TEXT_COLUMNS", cfg.Reconcile.TextColumns)
	cfg.Reconcile.TitleColumns = GetListEnv("RECONCILE_TITLE_COLUMNS", cfg.Reconcile.TitleColumns)
	cfg.Reconcile.CategoryColumns = GetListEnv("RECONCILE_CATEGORY_COLUMNS", cfg.Reconcile.CategoryColumns)
	cfg.Reconcile.SourceColumns = GetListEnv("RECONCILE_SOURCE_COLUMNS", cfg.Reconcile.SourceColumns)

	cfg.Index.MaxVocabularySize = GetIntEnv("INDEX_MAX_VOCABULARY", cfg.Index.MaxVocabularySize)
	cfg.Index.MinDocumentFrequency = GetIntEnv("INDEX_MIN_DF", cfg.Index.MinDocumentFrequency)
	cfg.Index.MaxDocumentFrequencyRatio = GetFloatEnv("INDEX_MAX_DF_RATIO", cfg.Index.MaxDocumentFrequencyRatio)
	cfg.Index.NgramMin = GetIntEnv("INDEX_NGRAM_MIN", cfg.Index.NgramMin)
	cfg.Index.NgramMax = GetIntEnv("INDEX_NGRAM_MAX", cfg.Index.NgramMax)

	cfg.Search.DefaultTopK = GetIntEnv("SEARCH_DEFAULT_TOP_K", cfg.Search.DefaultTopK)
	cfg.Search.MaxTopK = GetIntEnv("SEARCH_MAX_TOP_K", cfg.Search.MaxTopK)
	cfg.Search.MinScore = GetFloatEnv("SEARCH_MIN_SCORE", cfg.Search.MinScore)

	cfg.Translation.Enabled = GetBoolEnv("TRANSLATION_ENABLED", cfg.Translation.Enabled)
	cfg.Translation.Provider = GetStringEnv("TRANSLATION_PROVIDER", cfg.Translation.Provider)
	cfg.Translation.TargetLanguage = GetStringEnv("TRANSLATION_TARGET_LANGUAGE", cfg.Translation.TargetLanguage)
	cfg.Translation.BatchSize = GetIntEnv("TRANSLATION_BATCH_SIZE", cfg.Translation.BatchSize)
	cfg.Translation.Timeout = Duration(GetDurationEnv("TRANSLATION_TIMEOUT", time.Duration(cfg.Translation.Timeout)))
	cfg.Translation.RatePerSecond = GetFloatEnv("TRANSLATION_RATE_PER_SECOND", cfg.Translation.RatePerSecond)
	cfg.Translation.APIKey = GetStringEnv("DEEPL_API_KEY", cfg.Translation.APIKey)
	cfg.Translation.BaseURL = GetStringEnv("TRANSLATION_BASE_URL", cfg.Translation.BaseURL)

	cfg.LLM.Provider = GetStringEnv("LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.BaseURL = GetStringEnv("LLM_BASE_URL", cfg.LLM.BaseURL)
	cfg.LLM.Model = GetStringEnv("LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.APIKey = GetStringEnv("LLM_API_KEY", cfg.LLM.APIKey)
}

// Validate rejects settings that cannot produce a usable index
func (c *Config) Validate() error {
	var errs []error
	if c.Index.NgramMin < 1 || c.Index.NgramMax < c.Index.NgramMin {
		errs = append(errs, fmt.Errorf("invalid ngram range (%d, %d)", c.Index.NgramMin, c.Index.NgramMax))
	}
	if c.Index.MaxDocumentFrequencyRatio <= 0 || c.Index.MaxDocumentFrequencyRatio > 1 {
		errs = append(errs, fmt.Errorf("max document frequency ratio %v outside (0, 1]", c.Index.MaxDocumentFrequencyRatio))
	}
	if c.Index.MinDocumentFrequency < 1 {
		errs = append(errs, fmt.Errorf("min document frequency must be at least 1, got %d", c.Index.MinDocumentFrequency))
	}
	if c.Index.MaxVocabularySize < 0 {
		errs = append(errs, fmt.Errorf("max vocabulary size must not be negative"))
	}
	if c.Normalizer.MinTokenLength < 0 {
		errs = append(errs, fmt.Errorf("min token length must not be negative"))
	}
	if c.Search.MinScore < 0 {
		errs = append(errs, fmt.Errorf("min score must not be negative"))
	}
	if c.Translation.Enabled && c.Translation.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("translation batch size must be positive"))
	}
	return errors.Join(errs...)
}

// ParseSources parses "path=label,path2=label2" into source configs.
// A bare path gets an empty label.
func ParseSources(value string) []SourceConfig {
	var sources []SourceConfig
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		path, label, _ := strings.Cut(part, "=")
		sources = append(sources, SourceConfig{
			Path:  strings.TrimSpace(path),
			Label: strings.TrimSpace(label),
		})
	}
	return sources
}

func GetStringEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func GetIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func GetFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func GetBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func GetDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// GetListEnv reads a comma-separated list, dropping empty items
func GetListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
