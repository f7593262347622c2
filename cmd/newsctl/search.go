package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/knowledge-engine/newsir/internal/search"
)

var (
	searchTopK     int
	searchAll      bool
	searchCategory string
	searchSource   string
	searchJSON     bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Rank documents against a query",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchAll, "all", false, "return every result above the score threshold")
	searchCmd.Flags().StringVar(&searchCategory, "category", "", "keep documents whose category contains this text")
	searchCmd.Flags().StringVar(&searchSource, "source-filter", "", "keep documents whose source contains this text")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	eng, _, err := buildEngine(cmd.Context(), cmd)
	if err != nil {
		return err
	}

	topK := searchTopK
	if searchAll {
		topK = search.All
	}
	results, err := eng.Search(query, topK, search.Filters{Category: searchCategory, Source: searchSource})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		data, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Query terms: %s\n", strings.Join(eng.ProcessedQuery(query), " "))
	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No results found.")
		return nil
	}
	for _, r := range results {
		fmt.Fprintf(cmd.OutOrStdout(), "[%d] %s (%.1f%%)\n", r.Rank, r.Title, min(r.Score*100, 100))
		fmt.Fprintf(cmd.OutOrStdout(), "    id=%d category=%s source=%s\n", r.ID, r.Category, r.Source)
		fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", snippet(r.Content, 160))
	}
	return nil
}

func snippet(text string, limit int) string {
	runes := []rune(strings.Join(strings.Fields(text), " "))
	if len(runes) <= limit {
		return string(runes)
	}
	return string(runes[:limit]) + "..."
}
