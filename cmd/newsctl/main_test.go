package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		sourceArgs = nil
		searchJSON = false
	})
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func writeNews(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "news.csv")
	require.NoError(t, os.WriteFile(path, []byte("Judul,Content\n"+
		"Gempa Jakarta,gempa bumi melanda jakarta\n"+
		"Saham,harga saham naik hari ini\n"), 0o644))
	return path
}

func TestSearchCommand(t *testing.T) {
	path := writeNews(t)

	out := run(t, "search", "--source", path+"=Indonesia News", "gempa", "jakarta")
	assert.Contains(t, out, "Query terms: gempa jakarta")
	assert.Contains(t, out, "[1] Gempa Jakarta (70.7%)")
	assert.NotContains(t, out, "Saham")
}

func TestStatsCommand(t *testing.T) {
	path := writeNews(t)

	out := run(t, "stats", "--source", path+"=Indonesia News")

	var stats struct {
		DocumentCount int            `json:"document_count"`
		Sources       map[string]int `json:"sources"`
		Inputs        []struct {
			Path    string `json:"path"`
			Rows    int    `json:"rows"`
			Mapping struct {
				Content string `json:"content"`
				Title   string `json:"title"`
			} `json:"mapping"`
		} `json:"inputs"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats), out)
	assert.Equal(t, 2, stats.DocumentCount)
	assert.Equal(t, map[string]int{"Indonesia News": 2}, stats.Sources)
	require.Len(t, stats.Inputs, 1)
	assert.Equal(t, path, stats.Inputs[0].Path)
	assert.Equal(t, 2, stats.Inputs[0].Rows)
	assert.Equal(t, "Content", stats.Inputs[0].Mapping.Content)
	assert.Equal(t, "Judul", stats.Inputs[0].Mapping.Title)
}

func TestSchemaCommand(t *testing.T) {
	path := writeNews(t)
	numbers := filepath.Join(t.TempDir(), "numbers.csv")
	require.NoError(t, os.WriteFile(numbers, []byte("id,views\n1,20\n2,3.5\n"), 0o644))
	missing := filepath.Join(t.TempDir(), "missing.csv")

	out := run(t, "schema", path, numbers, missing)

	assert.Contains(t, out, path+" (2 rows, utf-8)")
	assert.Contains(t, out, "content:  Content (by name)")
	assert.Contains(t, out, "title:    Judul")
	assert.Contains(t, out, `category: (none, "General")`)

	assert.Contains(t, out, numbers+" (2 rows, utf-8)")
	assert.Contains(t, out, "no text-bearing column")

	assert.Contains(t, out, missing+": ")
}
