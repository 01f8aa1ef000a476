package config

import (
	"fmt"
	"time"

	"github.com/vietddude/faultline/internal/alerting/digest"
	"github.com/vietddude/faultline/internal/alerting/router"
	"github.com/vietddude/faultline/internal/boundary"
	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/core/worker"
	"github.com/vietddude/faultline/internal/infra/channel"
	redisclient "github.com/vietddude/faultline/internal/infra/redis"
	"github.com/vietddude/faultline/internal/infra/storage/postgres"
	"github.com/vietddude/faultline/internal/infra/storage/sqlite"
	"github.com/vietddude/faultline/internal/redaction"
	"github.com/vietddude/faultline/internal/retry"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig        `yaml:"server"`
	Logging   LoggingConfig       `yaml:"logging"`
	Catalog   CatalogConfig       `yaml:"catalog"`
	Redis     redisclient.Config  `yaml:"redis"`
	Database  postgres.Config     `yaml:"database"`
	Sink      SinkConfig          `yaml:"sink"`
	Router    router.Config       `yaml:"router"`
	Digest    digest.Config       `yaml:"digest"`
	Retry     retry.Config        `yaml:"retry"`
	Redaction RedactionConfig     `yaml:"redaction"`
	Channels  ChannelsConfig      `yaml:"channels"`
	Problem   boundary.Config     `yaml:"problem"`
	Retention RetentionConfig     `yaml:"retention"`
	Pruner    worker.PrunerConfig `yaml:"pruner"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// CatalogConfig points at the catalog source file.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// Sink drivers.
const (
	SinkPostgres = "postgres"
	SinkSQLite   = "sqlite"
	SinkMemory   = "memory"
)

// SinkConfig selects the occurrence sink.
type SinkConfig struct {
	Driver string        `yaml:"driver"` // postgres, sqlite, memory
	SQLite sqlite.Config `yaml:"sqlite"`
}

// RuleConfig is one classification rule.
type RuleConfig struct {
	Pattern string `yaml:"pattern"`
	Class   string `yaml:"class"` // public, internal, secret
}

// RedactionConfig adds rules to, or replaces, the built-in set.
type RedactionConfig struct {
	Rules           []RuleConfig `yaml:"rules"`
	DisableDefaults bool         `yaml:"disable_defaults"`
}

// ChannelsConfig holds the alert destinations.
type ChannelsConfig struct {
	Paging channel.Config `yaml:"paging"`
	Chat   channel.Config `yaml:"chat"`
	Digest channel.Config `yaml:"digest"`
}

// RetentionConfig is the occurrence TTL per severity, optionally per group.
type RetentionConfig struct {
	Minor     time.Duration                       `yaml:"minor"`
	Major     time.Duration                       `yaml:"major"`
	Critical  time.Duration                       `yaml:"critical"`
	Overrides map[string]map[string]time.Duration `yaml:"overrides"`
}

// Compile builds the configured redaction rules.
func (c RedactionConfig) Compile() (*redaction.Rules, error) {
	var rules []redaction.Rule
	if !c.DisableDefaults {
		rules = append(rules, redaction.DefaultRules()...)
	}
	for i, r := range c.Rules {
		class, err := domain.ParseClassification(r.Class)
		if err != nil {
			return nil, fmt.Errorf("redaction.rules[%d]: %w", i, err)
		}
		rules = append(rules, redaction.Rule{Pattern: r.Pattern, Class: class})
	}
	return redaction.Compile(rules)
}

// Policy converts the retention settings.
func (c RetentionConfig) Policy() (domain.RetentionPolicy, error) {
	policy := domain.RetentionPolicy{
		Default: map[domain.Severity]time.Duration{
			domain.SeverityMinor:    c.Minor,
			domain.SeverityMajor:    c.Major,
			domain.SeverityCritical: c.Critical,
		},
	}
	if len(c.Overrides) == 0 {
		return policy, nil
	}

	policy.Overrides = make(map[domain.Group]map[domain.Severity]time.Duration, len(c.Overrides))
	for g, bySeverity := range c.Overrides {
		group := domain.Group(g)
		if !group.Valid() {
			return policy, fmt.Errorf("retention.overrides: unknown group %q", g)
		}
		policy.Overrides[group] = make(map[domain.Severity]time.Duration, len(bySeverity))
		for s, ttl := range bySeverity {
			sev, err := domain.ParseSeverity(s)
			if err != nil {
				return policy, fmt.Errorf("retention.overrides.%s: %w", g, err)
			}
			policy.Overrides[group][sev] = ttl
		}
	}
	return policy, nil
}
