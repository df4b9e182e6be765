// Copyright 2026 The Tides Agent Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the agent. It handles
// loading and parsing the YAML configuration file and provides structured
// access to server, resolver, classifier, and record store settings.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	// Host is the network host/interface on which the API server will bind.
	// Default is empty ("") to bind all interfaces. Use "127.0.0.1" for
	// local-only access.
	Host string `yaml:"host"`
	// Port is the network port on which the API server will listen.
	Port int `yaml:"port"`

	// Debug enables or disables debug-level logging.
	Debug bool `yaml:"debug"`

	// LoggingToFile controls whether application logs are written to rotating
	// files or stdout.
	LoggingToFile bool `yaml:"logging-to-file"`

	// LogsDir is the directory that receives rotated log files when
	// LoggingToFile is enabled.
	LogsDir string `yaml:"logs-dir"`

	// APIKeys lists the keys accepted on incoming requests. Empty disables
	// authentication.
	APIKeys []string `yaml:"api-keys"`

	// Resolver configures the intent resolution pipeline.
	Resolver ResolverConfig `yaml:"resolver"`

	// Store configures the tide record object store.
	Store StoreConfig `yaml:"store"`
}

// ResolverConfig controls intent resolution behavior.
type ResolverConfig struct {
	// ConfidenceThreshold is the minimum confidence required to auto-route.
	ConfidenceThreshold int `yaml:"confidence-threshold"`

	// RulesFile points at an optional YAML file of operator-defined routing
	// rules, hot-reloaded on change. Empty disables custom rules.
	RulesFile string `yaml:"rules-file"`

	// Classifier configures the optional model-backed fallback.
	Classifier ClassifierConfig `yaml:"classifier"`
}

// ClassifierConfig holds the language model settings for the classification
// fallback. Disabled by default; resolution is fully deterministic without it.
type ClassifierConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base-url"`
	APIKey  string `yaml:"api-key"`
	Model   string `yaml:"model"`

	// PromptBudget caps the tokens spent on request text in the prompt.
	PromptBudget int `yaml:"prompt-budget"`
}

// StoreConfig holds the S3-compatible object store settings for tide records.
type StoreConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access-key"`
	SecretKey string `yaml:"secret-key"`
	Bucket    string `yaml:"bucket"`
	UseSSL    bool   `yaml:"use-ssl"`

	// PrimaryPrefix is the object key prefix where new records live.
	PrimaryPrefix string `yaml:"primary-prefix"`

	// FallbackPrefixes are older key layouts still consulted on reads.
	FallbackPrefixes []string `yaml:"fallback-prefixes"`
}

// LoadConfig reads YAML from configFile into a Config.
func LoadConfig(configFile string) (*Config, error) {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Set defaults before unmarshal so that absent keys keep defaults.
	var cfg Config
	cfg.Host = ""
	cfg.Port = 8317
	cfg.LoggingToFile = false
	cfg.LogsDir = "./logs"
	cfg.Resolver.ConfidenceThreshold = 50
	cfg.Resolver.Classifier.Model = "gpt-4o-mini"
	cfg.Resolver.Classifier.PromptBudget = 256
	cfg.Store.UseSSL = true
	cfg.Store.PrimaryPrefix = "tides"

	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port: %d", cfg.Port)
	}
	if cfg.Resolver.ConfidenceThreshold < 0 || cfg.Resolver.ConfidenceThreshold > 100 {
		return nil, fmt.Errorf("invalid confidence threshold: %d", cfg.Resolver.ConfidenceThreshold)
	}
	if cfg.Resolver.Classifier.Enabled && cfg.Resolver.Classifier.BaseURL == "" {
		return nil, fmt.Errorf("classifier enabled but base-url is empty")
	}
	if cfg.Store.Enabled && (cfg.Store.Endpoint == "" || cfg.Store.Bucket == "") {
		return nil, fmt.Errorf("store enabled but endpoint or bucket is empty")
	}

	return &cfg, nil
}
