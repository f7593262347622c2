package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"
)

// DefaultMaxBytes caps a remote download
const DefaultMaxBytes = 256 << 20

// ErrTooLarge is returned when a remote source exceeds the download cap
var ErrTooLarge = errors.New("remote source too large")

// IsRemote reports whether a source path is an http(s) URL
func IsRemote(p string) bool {
	lower := strings.ToLower(p)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// Fetcher downloads remote datasets and parses them like local files
type Fetcher struct {
	client   *http.Client
	MaxBytes int64
}

func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		MaxBytes: DefaultMaxBytes,
	}
}

var defaultFetcher = NewFetcher(5 * time.Minute)

// Fetch downloads rawURL and parses it by the URL's extension, or by the
// response Content-Type when the extension says nothing
func (f *Fetcher) Fetch(ctx context.Context, rawURL string, opts Options) (*Table, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "newsir/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: received non-200 status code: %d", rawURL, resp.StatusCode)
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if int64(len(raw)) > limit {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrTooLarge, rawURL, limit)
	}

	switch remoteFormat(rawURL, resp.Header.Get("Content-Type")) {
	case "csv":
		reader := &CSVReader{Encoding: opts.Encoding, FallbackEncoding: opts.FallbackEncoding}
		return reader.Parse(ctx, rawURL, raw)
	case "json":
		return (&JSONReader{}).Parse(ctx, rawURL, raw)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, rawURL)
	}
}

func remoteFormat(rawURL, contentType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		switch strings.ToLower(path.Ext(u.Path)) {
		case ".csv", ".tsv", ".txt":
			return "csv"
		case ".json", ".jsonl", ".ndjson":
			return "json"
		}
	}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch mediaType {
	case "text/csv", "text/tab-separated-values", "text/plain":
		return "csv"
	case "application/json", "application/x-ndjson", "application/jsonl":
		return "json"
	}
	return ""
}
