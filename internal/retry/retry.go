// Package retry runs operations under the retry strategy the catalog declares
// for the error they raise.
package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	goretry "github.com/sethvargo/go-retry"

	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/fault"
	"github.com/vietddude/faultline/internal/metrics"
)

// Config defines the safe retry policy.
type Config struct {
	MaxAttempts   int           `yaml:"max_attempts"`
	InitialDelay  time.Duration `yaml:"initial_delay"`
	MaxDelay      time.Duration `yaml:"max_delay"`
	JitterPercent uint64        `yaml:"jitter_percent"`
}

// DefaultConfig provides sensible defaults.
var DefaultConfig = Config{
	MaxAttempts:   4,
	InitialDelay:  200 * time.Millisecond,
	MaxDelay:      10 * time.Second,
	JitterPercent: 20,
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultConfig.MaxAttempts
	}
	if c.InitialDelay <= 0 {
		c.InitialDelay = DefaultConfig.InitialDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultConfig.MaxDelay
	}
	if c.JitterPercent > 100 {
		c.JitterPercent = 100
	}
	if c.MaxDelay < c.InitialDelay {
		c.MaxDelay = c.InitialDelay
	}
	return c
}

// Options are caller assertions about the operation.
type Options struct {
	// Idempotent asserts the operation can run more than once with the same
	// effect. Strategy idempotent retries only when this is set.
	Idempotent bool
}

// Resolver resolves error ids to definitions.
type Resolver interface {
	Resolve(id string) (domain.ErrorDefinition, error)
}

// Helper retries operations according to catalog strategies.
type Helper struct {
	catalog Resolver
	cfg     Config
}

// New creates a Helper.
func New(catalog Resolver, cfg Config) *Helper {
	return &Helper{catalog: catalog, cfg: cfg.withDefaults()}
}

// Strategy returns the effective strategy after a failure. The id of the
// fault in err wins over errorID; an idempotent strategy without the caller's
// assertion degrades to none.
func (h *Helper) Strategy(errorID string, err error, opts Options) domain.RetryStrategy {
	id := fault.ID(err)
	if id == "" {
		id = errorID
	}
	def, _ := h.catalog.Resolve(id)

	switch def.RetryStrategy {
	case domain.RetrySafe:
		return domain.RetrySafe
	case domain.RetryIdempotent:
		if opts.Idempotent {
			return domain.RetryIdempotent
		}
		slog.Debug("Idempotent retry not asserted, running once", "error_id", id)
		return domain.RetryNone
	default:
		return domain.RetryNone
	}
}

func (h *Helper) backoff() goretry.Backoff {
	b := goretry.NewExponential(h.cfg.InitialDelay)
	if h.cfg.JitterPercent > 0 {
		b = goretry.WithJitterPercent(h.cfg.JitterPercent, b)
	}
	b = goretry.WithCappedDuration(h.cfg.MaxDelay, b)
	return goretry.WithMaxRetries(uint64(h.cfg.MaxAttempts-1), b)
}

// Do runs op, retrying per the catalog strategy for the error it raises.
func Do[T any](ctx context.Context, h *Helper, errorID string, op func(context.Context) (T, error), opts Options) (T, error) {
	var result T
	attempts := 0

	err := goretry.Do(ctx, h.backoff(), func(ctx context.Context) error {
		attempts++
		v, err := op(ctx)
		if err == nil {
			result = v
			return nil
		}

		strategy := h.Strategy(errorID, err, opts)
		if strategy == domain.RetryNone {
			return err
		}
		if attempts < h.cfg.MaxAttempts {
			metrics.RetryAttempts.WithLabelValues(string(strategy)).Inc()
		}
		return goretry.RetryableError(err)
	})
	if err != nil {
		var zero T
		if attempts > 1 {
			return zero, fmt.Errorf("failed after %d attempts: %w", attempts, err)
		}
		return zero, err
	}
	return result, nil
}

// Run is Do for operations without a result.
func (h *Helper) Run(ctx context.Context, errorID string, op func(context.Context) error, opts Options) error {
	_, err := Do(ctx, h, errorID, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, opts)
	return err
}

// MaxAttempts returns the configured attempt limit for safe retries.
func (h *Helper) MaxAttempts() int {
	return h.cfg.MaxAttempts
}
