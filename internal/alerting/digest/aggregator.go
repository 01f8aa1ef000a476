// Package digest periodically drains the minor-severity buckets and emits
// one summarised message per fingerprint.
package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/infra/channel"
	"github.com/vietddude/faultline/internal/infra/storage"
	"github.com/vietddude/faultline/internal/logfields"
	"github.com/vietddude/faultline/internal/metrics"
	"github.com/vietddude/faultline/internal/retry"
)

const leaderName = "digest-flush"

// ErrNotDue is returned by FlushIfDue when another instance already flushed
// the current window.
var ErrNotDue = errors.New("digest window already flushed")

// Config holds aggregator settings.
type Config struct {
	Interval    time.Duration `yaml:"interval"`
	LockTTL     time.Duration `yaml:"lock_ttl"`
	StopTimeout time.Duration `yaml:"stop_timeout"`
}

// DefaultConfig flushes once a day.
func DefaultConfig() Config {
	return Config{
		Interval:    24 * time.Hour,
		LockTTL:     5 * time.Minute,
		StopTimeout: 30 * time.Second,
	}
}

// Store is the bucket store plus the cross-instance lock.
type Store interface {
	storage.DigestStore
	storage.LeaderLock
}

// Definitions looks up catalog entries.
type Definitions interface {
	Lookup(id string) (domain.ErrorDefinition, bool)
}

// Result summarises one flush.
type Result struct {
	Buckets     int
	Occurrences int64
	Failed      int
}

// Aggregator is the single periodic flush task.
type Aggregator struct {
	cfg     Config
	store   Store
	ch      channel.Channel
	defs    Definitions
	retry   *retry.Helper
	owner   string
	logger  *slog.Logger
	now     func() time.Time
	flushMu sync.Mutex

	scheduler gocron.Scheduler
}

// New creates an aggregator delivering digests to ch.
func New(cfg Config, store Store, ch channel.Channel, defs Definitions, retrier *retry.Helper) *Aggregator {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = def.StopTimeout
	}

	owner := uuid.NewString()
	return &Aggregator{
		cfg:    cfg,
		store:  store,
		ch:     ch,
		defs:   defs,
		retry:  retrier,
		owner:  owner,
		logger: slog.Default().With("component", "digest", "owner", owner),
		now:    time.Now,
	}
}

// Start schedules the periodic flush.
func (a *Aggregator) Start(ctx context.Context) error {
	s, err := gocron.NewScheduler(gocron.WithStopTimeout(a.cfg.StopTimeout))
	if err != nil {
		return fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(a.cfg.Interval),
		gocron.NewTask(a.scheduledFlush),
		gocron.WithName(leaderName),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("failed to create digest job: %w", err)
	}

	a.scheduler = s
	s.Start()
	a.logger.Info("Digest aggregator started", "interval", a.cfg.Interval)
	return nil
}

// Stop waits for an in-flight flush to finish, up to the stop timeout.
func (a *Aggregator) Stop(ctx context.Context) error {
	if a.scheduler == nil {
		return nil
	}
	a.logger.Info("Stopping digest aggregator")

	done := make(chan error, 1)
	go func() { done <- a.scheduler.Shutdown() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Aggregator) scheduledFlush() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.LockTTL)
	defer cancel()

	res, err := a.FlushIfDue(ctx)
	switch {
	case errors.Is(err, storage.ErrLeaderHeld):
		a.logger.Debug("Another instance is flushing digests")
	case errors.Is(err, ErrNotDue):
		a.logger.Debug("Digest window already flushed")
	case err != nil:
		a.logger.Error("Digest flush failed", "error", err)
	case res.Buckets > 0:
		a.logger.Info("Digest flushed", "buckets", res.Buckets, "occurrences", res.Occurrences, "failed", res.Failed)
	}
}

// Flush drains every bucket and delivers one digest per fingerprint. Only the
// leader instance flushes; others get storage.ErrLeaderHeld.
func (a *Aggregator) Flush(ctx context.Context) (Result, error) {
	return a.flush(ctx, 0)
}

// FlushIfDue flushes only when no instance has flushed within the last
// interval. Every instance runs its own schedule, so without the shared
// record each one would send a digest per interval.
func (a *Aggregator) FlushIfDue(ctx context.Context) (Result, error) {
	// tolerate scheduler jitter between instances
	return a.flush(ctx, a.cfg.Interval-a.cfg.Interval/10)
}

func (a *Aggregator) flush(ctx context.Context, minGap time.Duration) (Result, error) {
	a.flushMu.Lock()
	defer a.flushMu.Unlock()

	ok, err := a.store.AcquireLeader(ctx, leaderName, a.owner, a.cfg.LockTTL)
	if err != nil {
		return Result{}, fmt.Errorf("failed to acquire digest lock: %w", err)
	}
	if !ok {
		return Result{}, storage.ErrLeaderHeld
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := a.store.ReleaseLeader(releaseCtx, leaderName, a.owner); err != nil {
			a.logger.Warn("Failed to release digest lock", "error", err)
		}
	}()

	due, err := a.store.ClaimFlush(ctx, a.now(), minGap)
	if err != nil {
		return Result{}, fmt.Errorf("failed to claim digest window: %w", err)
	}
	if !due {
		return Result{}, ErrNotDue
	}

	buckets, err := a.store.DrainDigests(ctx)
	var res Result
	for _, b := range buckets {
		if derr := a.deliver(ctx, b); derr != nil {
			res.Failed++
			continue
		}
		res.Buckets++
		res.Occurrences += b.Count
	}
	if err != nil {
		return res, fmt.Errorf("failed to drain digests: %w", err)
	}
	return res, nil
}

func (a *Aggregator) deliver(ctx context.Context, b domain.DigestBucket) error {
	msg := a.message(b)

	err := a.retry.Run(ctx, domain.DeliveryExhaustedID, func(ctx context.Context) error {
		return a.ch.Deliver(ctx, msg)
	}, retry.Options{})
	if err == nil {
		metrics.AlertsSent.WithLabelValues(a.ch.Name(), string(domain.AlertDigest)).Inc()
		metrics.DigestBucketsFlushed.Inc()
		metrics.DigestOccurrencesFlushed.Add(float64(b.Count))
		return nil
	}

	metrics.AlertDeliveryFailures.WithLabelValues(a.ch.Name()).Inc()
	a.logger.Error("Digest delivery failed, requeueing bucket",
		logfields.Fingerprint, b.Fingerprint, "count", b.Count, "error", err)

	requeueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if rerr := a.store.Requeue(requeueCtx, b); rerr != nil {
		metrics.StateStoreErrors.WithLabelValues("requeue").Inc()
		a.logger.Error("Failed to requeue digest bucket", logfields.Fingerprint, b.Fingerprint, "error", rerr)
	}
	return err
}

func (a *Aggregator) message(b domain.DigestBucket) domain.AlertMessage {
	msg := domain.AlertMessage{
		Kind:        domain.AlertDigest,
		Severity:    domain.SeverityMinor,
		Fingerprint: b.Fingerprint,
		Count:       b.Count,
		WindowStart: b.WindowStart,
		Sample:      b.Sample,
		CreatedAt:   a.now(),
	}
	if b.Sample != nil {
		msg.ErrorID = b.Sample.ErrorID
		msg.TenantID = b.Sample.TenantID
		if b.Sample.Severity != "" {
			msg.Severity = b.Sample.Severity
		}
		if def, ok := a.defs.Lookup(b.Sample.ErrorID); ok {
			msg.RunbookRef = def.RunbookRef
		}
	}
	return msg
}
