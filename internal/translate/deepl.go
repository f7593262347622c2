package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	deeplFreeURL = "https://api-free.deepl.com/v2/translate"
	deeplProURL  = "https://api.deepl.com/v2/translate"
)

// DeepL calls the DeepL v2 translate endpoint
type DeepL struct {
	APIKey  string
	BaseURL string
	Client  *http.Client
}

// NewDeepL picks the free endpoint for ":fx" keys unless baseURL is set
func NewDeepL(apiKey, baseURL string) *DeepL {
	if baseURL == "" {
		baseURL = deeplProURL
		if strings.HasSuffix(apiKey, ":fx") {
			baseURL = deeplFreeURL
		}
	}
	return &DeepL{APIKey: apiKey, BaseURL: baseURL, Client: http.DefaultClient}
}

func (d *DeepL) Name() string {
	return "deepl"
}

func (d *DeepL) Translate(ctx context.Context, texts []string, targetLang string) ([]string, error) {
	form := url.Values{}
	for _, text := range texts {
		form.Add("text", text)
	}
	form.Set("target_lang", strings.ToUpper(targetLang))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "DeepL-Auth-Key "+d.APIKey)

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("deepl returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	var result struct {
		Translations []struct {
			DetectedSourceLanguage string `json:"detected_source_language"`
			Text                   string `json:"text"`
		} `json:"translations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if len(result.Translations) != len(texts) {
		return nil, fmt.Errorf("deepl returned %d translations for %d texts", len(result.Translations), len(texts))
	}

	out := make([]string, len(texts))
	for i, t := range result.Translations {
		out[i] = t.Text
	}
	return out, nil
}
