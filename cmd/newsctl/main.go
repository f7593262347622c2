package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/knowledge-engine/newsir/internal/config"
	"github.com/knowledge-engine/newsir/internal/engine"
	"github.com/knowledge-engine/newsir/internal/translate"
)

var (
	configPath string
	sourceArgs []string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "newsctl",
	Short: "Build and query a news retrieval index from the command line",
	Long: `newsctl reads news datasets (CSV, TSV, JSON), reconciles their columns,
builds a TF-IDF index in memory and answers queries against it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("NEWSIR_CONFIG"), "path to a TOML config file")
	rootCmd.PersistentFlags().StringArrayVarP(&sourceArgs, "source", "s", nil, "data file as path or path=label (repeatable)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log build progress to stderr")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadFile(configPath)
	if err != nil {
		return nil, err
	}
	if len(sourceArgs) > 0 {
		cfg.Corpus.Sources = config.ParseSources(strings.Join(sourceArgs, ","))
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command) *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetOutput(io.Discard)
	if verbose {
		logger.SetOutput(cmd.ErrOrStderr())
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger.WithField("service", "newsctl")
}

// buildEngine loads the configured sources and returns a ready engine
func buildEngine(ctx context.Context, cmd *cobra.Command) (*engine.Engine, *engine.Stats, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log := newLogger(cmd)

	var opts []engine.Option
	pipeline, err := translate.NewFromConfig(cfg.Translation, cfg.LLM, log)
	if err != nil {
		return nil, nil, err
	}
	if pipeline != nil {
		opts = append(opts, engine.WithTranslator(pipeline))
	}

	eng, err := engine.NewEngine(cfg, log, opts...)
	if err != nil {
		return nil, nil, err
	}
	stats, err := eng.Initialize(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build index: %w", err)
	}
	return eng, stats, nil
}
