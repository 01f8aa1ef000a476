package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/vietddude/faultline/internal/metrics"
)

// PrunerConfig controls how often expired occurrences are removed.
type PrunerConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Expirer is implemented by every storage.OccurrenceRepository.
type Expirer interface {
	DeleteExpired(ctx context.Context, t time.Time) (int64, error)
}

// Pruner deletes occurrences whose retention has ended.
type Pruner struct {
	cfg       PrunerConfig
	repo      Expirer
	now       func() time.Time
	logger    *slog.Logger
	scheduler gocron.Scheduler
}

// NewPruner creates a new Pruner worker. A zero interval defaults to hourly.
func NewPruner(cfg PrunerConfig, repo Expirer) *Pruner {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	return &Pruner{
		cfg:    cfg,
		repo:   repo,
		now:    time.Now,
		logger: slog.Default().With("component", "pruner"),
	}
}

// Start prunes once immediately and then on every interval.
func (p *Pruner) Start(ctx context.Context) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(p.cfg.Interval),
		gocron.NewTask(func() {
			runCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
			defer cancel()
			_, _ = p.Prune(runCtx)
		}),
		gocron.WithName("occurrence-pruner"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("failed to create prune job: %w", err)
	}

	p.scheduler = s
	s.Start()
	return nil
}

// Stop waits for a running prune to finish.
func (p *Pruner) Stop() error {
	if p.scheduler == nil {
		return nil
	}
	return p.scheduler.Shutdown()
}

// Prune deletes everything that expired before now.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	n, err := p.repo.DeleteExpired(ctx, p.now())
	if err != nil {
		p.logger.Error("Failed to prune occurrences", "error", err)
		return 0, err
	}
	if n > 0 {
		metrics.OccurrencesPruned.Add(float64(n))
		p.logger.Info("Pruned expired occurrences", "count", n)
	}
	return n, nil
}
