package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"github.com/knowledge-engine/newsir/internal/api"
	"github.com/knowledge-engine/newsir/internal/config"
	"github.com/knowledge-engine/newsir/internal/engine"
	"github.com/knowledge-engine/newsir/internal/translate"
)

func main() {
	configPath := flag.StringP("config", "c", os.Getenv("NEWSIR_CONFIG"), "path to a TOML config file")
	addr := flag.String("addr", "", "listen address (overrides server.addr)")
	noInit := flag.Bool("no-init", false, "skip building the index at startup")
	flag.Parse()

	// Setup Logging
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	entry := logger.WithField("service", "newsir-api")

	// 1. Config
	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		entry.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if level, err := logrus.ParseLevel(cfg.Server.LogLevel); err == nil {
		logger.SetLevel(level)
	} else {
		entry.Warnf("Unknown log level %q, using info", cfg.Server.LogLevel)
	}

	entry.Info("Starting news retrieval API service")

	// 2. Translation (optional)
	var opts []engine.Option
	pipeline, err := translate.NewFromConfig(cfg.Translation, cfg.LLM, entry)
	if err != nil {
		entry.Fatalf("Failed to initialize translation: %v", err)
	}
	if pipeline != nil {
		opts = append(opts, engine.WithTranslator(pipeline))
	}

	// 3. Engine
	eng, err := engine.NewEngine(cfg, entry, opts...)
	if err != nil {
		entry.Fatalf("Failed to initialize engine: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Initial build; searches answer 503 until it lands
	if cfg.Corpus.AutoInit && !*noInit {
		go func() {
			if _, err := eng.Initialize(ctx, nil); err != nil {
				entry.WithError(err).Warn("Initial build failed; POST /api/v1/init to retry")
			}
		}()
	}

	// 5. API Server
	server := api.NewServer(eng, entry)
	errc := make(chan error, 1)
	go func() { errc <- server.Start(cfg.Server.Addr) }()

	select {
	case err := <-errc:
		if err != nil {
			entry.Fatal(err)
		}
	case <-ctx.Done():
		entry.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			entry.WithError(err).Error("Shutdown failed")
		}
	}
}
