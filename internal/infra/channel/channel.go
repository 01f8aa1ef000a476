// Package channel delivers alert messages to chat and paging systems.
package channel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/vietddude/faultline/internal/core/domain"
)

// Channel delivers one alert message.
type Channel interface {
	Name() string
	Deliver(ctx context.Context, msg domain.AlertMessage) error
}

// Config selects and configures a channel.
type Config struct {
	Type          string            `yaml:"type"` // webhook, nats or log
	URL           string            `yaml:"url"`
	Headers       map[string]string `yaml:"headers"`
	Timeout       time.Duration     `yaml:"timeout"`
	Subject       string            `yaml:"subject"`
	Stream        string            `yaml:"stream"`
	RatePerMinute int               `yaml:"rate_per_minute"`
	Burst         int               `yaml:"burst"`
}

// New builds the channel described by cfg.
func New(name string, cfg Config) (Channel, error) {
	var ch Channel
	switch cfg.Type {
	case "webhook":
		if cfg.URL == "" {
			return nil, fmt.Errorf("channel %s: webhook url is required", name)
		}
		ch = NewWebhook(name, cfg.URL, cfg.Headers, cfg.Timeout)
	case "nats":
		n, err := NewNATS(name, NATSConfig{URL: cfg.URL, Subject: cfg.Subject, Stream: cfg.Stream})
		if err != nil {
			return nil, err
		}
		ch = n
	case "", "log":
		ch = NewLog(name)
	default:
		return nil, fmt.Errorf("channel %s: unknown type %q", name, cfg.Type)
	}

	if cfg.RatePerMinute > 0 {
		ch = RateLimited(ch, cfg.RatePerMinute, cfg.Burst)
	}
	return ch, nil
}

// Close releases resources held by ch, if any.
func Close(ch Channel) error {
	if c, ok := ch.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// -----------------------------------------------------------------------------
// Log channel
// -----------------------------------------------------------------------------

// LogChannel writes alerts to the process log. Used in development.
type LogChannel struct {
	name string
}

func NewLog(name string) *LogChannel {
	return &LogChannel{name: name}
}

func (c *LogChannel) Name() string { return c.name }

func (c *LogChannel) Deliver(ctx context.Context, msg domain.AlertMessage) error {
	slog.Warn("Alert", "channel", c.name, "kind", msg.Kind, "severity", msg.Severity,
		"error_id", msg.ErrorID, "fingerprint", msg.Fingerprint, "text", msg.Text())
	return nil
}

// -----------------------------------------------------------------------------
// Rate limiting
// -----------------------------------------------------------------------------

type rateLimited struct {
	Channel
	limiter *rate.Limiter
}

// RateLimited caps deliveries on ch to perMinute, with the given burst.
func RateLimited(ch Channel, perMinute, burst int) Channel {
	if burst <= 0 {
		burst = 1
	}
	return &rateLimited{
		Channel: ch,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
	}
}

func (r *rateLimited) Deliver(ctx context.Context, msg domain.AlertMessage) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait on %s: %w", r.Name(), err)
	}
	return r.Channel.Deliver(ctx, msg)
}

func (r *rateLimited) Close() error {
	return Close(r.Channel)
}
