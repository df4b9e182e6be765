// Copyright 2026 The Tides Agent Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package main provides the entry point for the tides agent: an HTTP
// coordinator that resolves incoming requests to the owning service and
// dispatches them.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/mpazaryna/tides-lab-sub004/internal/api"
	"github.com/mpazaryna/tides-lab-sub004/internal/config"
	"github.com/mpazaryna/tides-lab-sub004/internal/genai"
	"github.com/mpazaryna/tides-lab-sub004/internal/logging"
	"github.com/mpazaryna/tides-lab-sub004/internal/metrics"
	"github.com/mpazaryna/tides-lab-sub004/internal/resolver"
	"github.com/mpazaryna/tides-lab-sub004/internal/store"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func init() {
	logging.SetupBaseLogger()
}

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}
	if err := logging.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogsDir); err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	log.Infof("Starting tides agent %s (%s, built %s)", Version, Commit, BuildDate)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	agentMetrics := metrics.New()

	res, watcher, err := buildResolver(cfg, agentMetrics)
	if err != nil {
		log.Fatalf("Failed to build resolver: %v", err)
	}
	if watcher != nil {
		defer func() { _ = watcher.Close() }()
	}

	var records store.RecordStore
	if cfg.Store.Enabled {
		tideStore, err := store.NewTideStore(store.Options{
			Endpoint:         cfg.Store.Endpoint,
			AccessKey:        cfg.Store.AccessKey,
			SecretKey:        cfg.Store.SecretKey,
			Bucket:           cfg.Store.Bucket,
			UseSSL:           cfg.Store.UseSSL,
			PrimaryPrefix:    cfg.Store.PrimaryPrefix,
			FallbackPrefixes: cfg.Store.FallbackPrefixes,
		})
		if err != nil {
			log.Fatalf("Failed to connect to record store: %v", err)
		}
		records = tideStore
		log.Infof("Record store connected at %s/%s", cfg.Store.Endpoint, cfg.Store.Bucket)
	} else {
		log.Info("Record store disabled, service handlers run store-less")
	}

	server := api.New(cfg, res, records, agentMetrics)
	if err := server.Run(ctx); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	log.Info("Shutdown complete")
}

// buildResolver assembles the resolution pipeline from configuration:
// optional operator rules with hot reload and the optional classifier.
func buildResolver(cfg *config.Config, m *metrics.Metrics) (*resolver.Resolver, *resolver.RulesWatcher, error) {
	opts := resolver.Options{
		ConfidenceThreshold: cfg.Resolver.ConfidenceThreshold,
	}

	if cfg.Resolver.Classifier.Enabled {
		client := genai.NewClient(
			cfg.Resolver.Classifier.BaseURL,
			cfg.Resolver.Classifier.APIKey,
			cfg.Resolver.Classifier.Model,
		)
		gen := &countedGenerator{gen: client, metrics: m}
		opts.Classifier = resolver.NewClassifier(gen, cfg.Resolver.Classifier.PromptBudget)
		log.Infof("Classifier fallback enabled with model %s", cfg.Resolver.Classifier.Model)
	}

	if cfg.Resolver.RulesFile == "" {
		return resolver.New(opts), nil, nil
	}

	custom, err := resolver.LoadCustomRules(cfg.Resolver.RulesFile)
	if err != nil {
		return nil, nil, err
	}
	opts.Custom = custom

	res := resolver.New(opts)
	watcher, err := resolver.WatchRules(cfg.Resolver.RulesFile, custom, res.RefreshAmbiguousPhrases)
	if err != nil {
		// A broken watcher is not fatal; rules just stop hot reloading.
		log.WithError(err).Warn("Rules file watcher unavailable")
		return res, nil, nil
	}
	return res, watcher, nil
}

// countedGenerator feeds the classifier fallback counter on every model call.
type countedGenerator struct {
	gen     resolver.Generator
	metrics *metrics.Metrics
}

func (g *countedGenerator) Generate(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	out, err := g.gen.Generate(ctx, prompt, maxTokens, temperature)
	if err != nil {
		g.metrics.ClassifierFallbacksTotal.WithLabelValues("failed").Inc()
		return "", err
	}
	g.metrics.ClassifierFallbacksTotal.WithLabelValues("classified").Inc()
	return out, nil
}
