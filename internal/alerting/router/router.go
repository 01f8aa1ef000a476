// Package router decides, per occurrence, whether to page, notify chat,
// suppress, or accumulate into a digest. Dedup state lives in a shared
// store so the decision is correct across instances.
package router

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/infra/channel"
	"github.com/vietddude/faultline/internal/infra/storage"
	"github.com/vietddude/faultline/internal/logfields"
	"github.com/vietddude/faultline/internal/metrics"
	"github.com/vietddude/faultline/internal/retry"
)

// Config holds router settings.
type Config struct {
	Cooldown        time.Duration `yaml:"cooldown"`
	StateTTL        time.Duration `yaml:"state_ttl"`
	Workers         int           `yaml:"workers"`
	QueueSize       int           `yaml:"queue_size"`
	DeliveryTimeout time.Duration `yaml:"delivery_timeout"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Cooldown:        15 * time.Minute,
		StateTTL:        24 * time.Hour,
		Workers:         4,
		QueueSize:       256,
		DeliveryTimeout: 30 * time.Second,
	}
}

// Input is one occurrence together with its resolved definition.
type Input struct {
	Definition domain.ErrorDefinition
	Occurrence domain.Occurrence
}

// Router is the alert routing state machine.
type Router struct {
	cfg        Config
	states     storage.FingerprintStateStore
	digests    storage.DigestStore
	paging     channel.Channel
	chat       channel.Channel
	retry      *retry.Helper
	dispatcher *Dispatcher
	logger     *slog.Logger
	now        func() time.Time

	// OnDeliveryFailure is called after an alert exhausted its retries and
	// fell back to the digest path.
	OnDeliveryFailure func(ctx context.Context, err *DeliveryError, occ domain.Occurrence)
}

// New creates a Router. paging receives critical alerts and chat receives
// major ones.
func New(
	cfg Config,
	states storage.FingerprintStateStore,
	digests storage.DigestStore,
	paging, chat channel.Channel,
	retrier *retry.Helper,
	dispatcher *Dispatcher,
) *Router {
	def := DefaultConfig()
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.StateTTL < cfg.Cooldown {
		cfg.StateTTL = max(def.StateTTL, cfg.Cooldown)
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = def.DeliveryTimeout
	}
	if dispatcher == nil {
		dispatcher = NewDispatcher(0, 0)
	}

	return &Router{
		cfg:        cfg,
		states:     states,
		digests:    digests,
		paging:     paging,
		chat:       chat,
		retry:      retrier,
		dispatcher: dispatcher,
		logger:     slog.Default().With("component", "router"),
		now:        time.Now,
	}
}

// SetClock overrides the time source.
func (r *Router) SetClock(now func() time.Time) {
	r.now = now
}

type routeFunc func(ctx context.Context, in Input, now time.Time) (Decision, error)

// Route applies one occurrence. The state transition is committed before
// any delivery starts, and delivery never runs under a store lock.
func (r *Router) Route(ctx context.Context, in Input) (Decision, error) {
	route := domain.MatchSeverity(in.Definition.Severity,
		func() routeFunc { return r.toDigest },
		func() routeFunc { return r.alertVia(r.chat, ActionChat) },
		func() routeFunc { return r.alertVia(r.paging, ActionPage) },
	)
	return route(ctx, in, r.now())
}

func (r *Router) toDigest(ctx context.Context, in Input, now time.Time) (Decision, error) {
	if err := r.digests.AddToDigest(ctx, in.Occurrence, now); err != nil {
		metrics.StateStoreErrors.WithLabelValues("add_digest").Inc()
		return Decision{Action: ActionDigest, From: StateDigesting, To: StateDigesting}, err
	}
	return Decision{Action: ActionDigest, From: StateDigesting, To: StateDigesting}, nil
}

func (r *Router) alertVia(ch channel.Channel, action Action) routeFunc {
	return func(ctx context.Context, in Input, now time.Time) (Decision, error) {
		occ := in.Occurrence

		obs, err := r.states.Observe(ctx, occ.Fingerprint, now, r.cfg.Cooldown, r.cfg.StateTTL)
		if err != nil {
			// Fail open.
			metrics.StateStoreErrors.WithLabelValues("observe").Inc()
			r.logger.Error("State store unavailable, alerting without dedup",
				logfields.Fingerprint, occ.Fingerprint, "error", err)
			obs = domain.Observation{Alert: true}
		}

		if !obs.Alert {
			metrics.AlertsSuppressed.WithLabelValues(string(in.Definition.Severity)).Inc()
			return Decision{Action: ActionSuppress, From: StateAlerting, To: StateAlerting}, nil
		}

		msg := domain.AlertMessage{
			Kind:        domain.AlertImmediate,
			Severity:    in.Definition.Severity,
			ErrorID:     in.Definition.ID,
			Fingerprint: occ.Fingerprint,
			TenantID:    occ.TenantID,
			RunbookRef:  in.Definition.RunbookRef,
			Suppressed:  obs.Suppressed,
			Sample:      &occ,
			CreatedAt:   now,
		}

		deliverCtx := context.WithoutCancel(ctx)
		r.dispatcher.Submit(func(workerCtx context.Context) {
			ctx, cancel := mergeCancel(deliverCtx, workerCtx)
			defer cancel()
			r.deliver(ctx, ch, msg, occ)
		})

		return Decision{Action: action, From: StateCold, To: StateAlerting, Suppressed: obs.Suppressed}, nil
	}
}

func (r *Router) deliver(ctx context.Context, ch channel.Channel, msg domain.AlertMessage, occ domain.Occurrence) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.DeliveryTimeout)
	defer cancel()

	err := r.retry.Run(ctx, domain.DeliveryExhaustedID, func(ctx context.Context) error {
		return ch.Deliver(ctx, msg)
	}, retry.Options{})
	if err == nil {
		metrics.AlertsSent.WithLabelValues(ch.Name(), string(msg.Kind)).Inc()
		r.logger.Info("Alert delivered",
			logfields.Channel, ch.Name(),
			logfields.ErrorID, msg.ErrorID,
			logfields.Fingerprint, msg.Fingerprint,
			"suppressed", msg.Suppressed)
		return
	}

	derr := &DeliveryError{Channel: ch.Name(), ErrorID: msg.ErrorID, Fingerprint: msg.Fingerprint, Err: err}
	metrics.AlertDeliveryFailures.WithLabelValues(ch.Name()).Inc()
	r.logger.Error("Alert delivery failed, falling back to digest", "error", derr)

	// The delivery deadline may already have passed.
	fallbackCtx, cancelFallback := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancelFallback()

	if err := r.digests.AddToDigest(fallbackCtx, occ, r.now()); err != nil {
		metrics.StateStoreErrors.WithLabelValues("add_digest").Inc()
		r.logger.Error("Digest fallback failed", logfields.Fingerprint, occ.Fingerprint, "error", err)
	}
	if r.OnDeliveryFailure != nil {
		r.OnDeliveryFailure(fallbackCtx, derr, occ)
	}
}

// State reports the current state of a fingerprint.
func (r *Router) State(ctx context.Context, fingerprint string, sev domain.Severity) (State, domain.FingerprintState, error) {
	now := r.now()
	st, found, err := r.states.State(ctx, fingerprint, now)
	if err != nil {
		return "", st, err
	}
	return StateOf(sev, st, found, now), st, nil
}

// Close drains pending deliveries.
func (r *Router) Close(ctx context.Context) error {
	return r.dispatcher.Close(ctx)
}

// mergeCancel keeps values from parent and cancellation from worker.
func mergeCancel(parent, worker context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(worker, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}
