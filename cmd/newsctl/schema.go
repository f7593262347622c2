package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/knowledge-engine/newsir/internal/ingest"
	"github.com/knowledge-engine/newsir/internal/source"
)

var schemaCmd = &cobra.Command{
	Use:   "schema [file...]",
	Short: "Show which columns each file maps to title, content, category and source",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSchema,
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}

func runSchema(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	reconciler := ingest.NewReconciler(ingest.RulesFromConfig(cfg.Reconcile), newLogger(cmd))
	opts := source.Options{Encoding: cfg.Corpus.Encoding, FallbackEncoding: cfg.Corpus.FallbackEncoding}

	for _, path := range args {
		table, err := source.Open(cmd.Context(), path, opts)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", path, err)
			continue
		}
		encoding := table.Encoding
		if encoding == "" {
			encoding = "utf-8"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%d rows, %s)\n", path, table.Len(), encoding)
		m, err := reconciler.Detect(table)
		if err != nil {
			fmt.Fprintf(cmd.OutOrStdout(), "  %v\n", err)
			continue
		}
		how := "by name"
		if m.ByType {
			how = "by value type"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "  content:  %s (%s)\n", m.Content, how)
		fmt.Fprintf(cmd.OutOrStdout(), "  title:    %s\n", orFill(m.Title, ingest.NoTitle))
		fmt.Fprintf(cmd.OutOrStdout(), "  category: %s\n", orFill(m.Category, ingest.GeneralCategory))
		fmt.Fprintf(cmd.OutOrStdout(), "  source:   %s\n", orFill(m.Source, "label or "+ingest.UnknownSource))
	}
	return nil
}

func orFill(column, fill string) string {
	if column == "" {
		return "(none, \"" + fill + "\")"
	}
	return column
}
