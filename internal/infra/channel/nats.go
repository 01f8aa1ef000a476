package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/vietddude/faultline/internal/core/domain"
)

// NATSConfig configures a JetStream alert publisher.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	Stream  string `yaml:"stream"`
}

// NATSChannel publishes alerts to <subject>.<kind>.<severity> on JetStream.
type NATSChannel struct {
	name    string
	conn    *nats.Conn
	js      jetstream.JetStream
	subject string
}

// NewNATS connects and ensures the stream exists.
func NewNATS(name string, cfg NATSConfig) (*NATSChannel, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.Subject == "" {
		cfg.Subject = "faultline.alerts"
	}
	if cfg.Stream == "" {
		cfg.Stream = "FAULTLINE_ALERTS"
	}

	conn, err := nats.Connect(cfg.URL, nats.Name("faultline-"+name))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     cfg.Stream,
		Subjects: []string{cfg.Subject + ".>"},
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ensure stream %s: %w", cfg.Stream, err)
	}

	slog.Info("NATS alert channel initialized", "channel", name, "url", cfg.URL, "subject", cfg.Subject)

	return &NATSChannel{name: name, conn: conn, js: js, subject: cfg.Subject}, nil
}

func (c *NATSChannel) Name() string { return c.name }

// Deliver publishes msg and waits for the stream ack.
func (c *NATSChannel) Deliver(ctx context.Context, msg domain.AlertMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	subject := fmt.Sprintf("%s.%s.%s", c.subject, msg.Kind, msg.Severity)
	if _, err := c.js.Publish(ctx, subject, data, jetstream.WithMsgID(msgID(msg))); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}
	return nil
}

// Close drains the connection.
func (c *NATSChannel) Close() error {
	return c.conn.Drain()
}

// msgID lets JetStream drop duplicates when a retry re-publishes the same
// alert.
func msgID(msg domain.AlertMessage) string {
	return fmt.Sprintf("%s-%s-%d", msg.Fingerprint, msg.Kind, msg.CreatedAt.UnixNano())
}
