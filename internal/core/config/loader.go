package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/faultline/internal/alerting/digest"
	"github.com/vietddude/faultline/internal/alerting/router"
	"github.com/vietddude/faultline/internal/boundary"
	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/retry"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML content, expanding environment variables first, and
// applies defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *AppConfig {
	var cfg AppConfig
	cfg.applyDefaults()
	return &cfg
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ShutdownTimeout <= 0 {
		c.Server.ShutdownTimeout = 15 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = "catalog.yaml"
	}

	if c.Sink.Driver == "" {
		switch {
		case c.Database.URL != "":
			c.Sink.Driver = SinkPostgres
		case c.Sink.SQLite.Path != "":
			c.Sink.Driver = SinkSQLite
		default:
			c.Sink.Driver = SinkMemory
		}
	}

	rd := router.DefaultConfig()
	if c.Router.Cooldown <= 0 {
		c.Router.Cooldown = rd.Cooldown
	}
	if c.Router.StateTTL <= 0 {
		c.Router.StateTTL = rd.StateTTL
	}
	// negative delivers inline
	if c.Router.Workers == 0 {
		c.Router.Workers = rd.Workers
	}
	if c.Router.QueueSize <= 0 {
		c.Router.QueueSize = rd.QueueSize
	}
	if c.Router.DeliveryTimeout <= 0 {
		c.Router.DeliveryTimeout = rd.DeliveryTimeout
	}

	dd := digest.DefaultConfig()
	if c.Digest.Interval <= 0 {
		c.Digest.Interval = dd.Interval
	}
	if c.Digest.LockTTL <= 0 {
		c.Digest.LockTTL = dd.LockTTL
	}
	if c.Digest.StopTimeout <= 0 {
		c.Digest.StopTimeout = dd.StopTimeout
	}

	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = retry.DefaultConfig.MaxAttempts
	}
	if c.Retry.InitialDelay <= 0 {
		c.Retry.InitialDelay = retry.DefaultConfig.InitialDelay
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = retry.DefaultConfig.MaxDelay
	}
	if c.Retry.JitterPercent == 0 {
		c.Retry.JitterPercent = retry.DefaultConfig.JitterPercent
	}

	bd := boundary.DefaultConfig()
	if c.Problem.TypeBaseURI == "" {
		c.Problem.TypeBaseURI = bd.TypeBaseURI
	}
	if c.Problem.GenericMessage == "" {
		c.Problem.GenericMessage = bd.GenericMessage
	}
	if c.Problem.SinkTimeout <= 0 {
		c.Problem.SinkTimeout = bd.SinkTimeout
	}

	rp := domain.DefaultRetentionPolicy()
	if c.Retention.Minor <= 0 {
		c.Retention.Minor = rp.Default[domain.SeverityMinor]
	}
	if c.Retention.Major <= 0 {
		c.Retention.Major = rp.Default[domain.SeverityMajor]
	}
	if c.Retention.Critical <= 0 {
		c.Retention.Critical = rp.Default[domain.SeverityCritical]
	}

	if c.Pruner.Interval <= 0 {
		c.Pruner.Interval = time.Hour
	}

	if c.Channels.Digest.Type == "" && c.Channels.Digest.URL == "" {
		c.Channels.Digest = c.Channels.Chat
	}
}

func (c *AppConfig) validate() error {
	switch c.Sink.Driver {
	case SinkPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("sink.driver postgres requires database.url")
		}
	case SinkSQLite:
		if c.Sink.SQLite.Path == "" {
			return fmt.Errorf("sink.driver sqlite requires sink.sqlite.path")
		}
	case SinkMemory:
	default:
		return fmt.Errorf("unknown sink.driver %q", c.Sink.Driver)
	}

	if _, err := c.Redaction.Compile(); err != nil {
		return fmt.Errorf("invalid redaction rules: %w", err)
	}
	if _, err := c.Retention.Policy(); err != nil {
		return err
	}
	return nil
}
