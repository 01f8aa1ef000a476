package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/faultline/internal/alerting/digest"
	"github.com/vietddude/faultline/internal/alerting/router"
	"github.com/vietddude/faultline/internal/boundary"
	"github.com/vietddude/faultline/internal/catalog"
	"github.com/vietddude/faultline/internal/core/config"
	"github.com/vietddude/faultline/internal/core/worker"
	"github.com/vietddude/faultline/internal/health"
	"github.com/vietddude/faultline/internal/infra/channel"
	"github.com/vietddude/faultline/internal/infra/storage"
	"github.com/vietddude/faultline/internal/infra/storage/memory"
	"github.com/vietddude/faultline/internal/retry"
)

const healthCacheTTL = 5 * time.Second

// Service wires the catalog, boundary, router, digest aggregator and pruner
// and manages their lifecycle.
type Service struct {
	cfg          *config.AppConfig
	catalog      *catalog.Catalog
	sink         *Sink
	states       *StateStore
	channels     []channel.Channel
	router       *router.Router
	handler      *boundary.Handler
	aggregator   *digest.Aggregator
	pruner       *worker.Pruner
	monitor      *health.Monitor
	healthServer *health.Server
	log          *slog.Logger
}

// NewService builds every component. A catalog that fails to load is fatal.
func NewService(ctx context.Context, cfg *config.AppConfig) (*Service, error) {
	cat, err := catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	slog.Info("Catalog loaded", "path", cfg.Catalog.Path, "definitions", cat.Len())

	rules, err := cfg.Redaction.Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile redaction rules: %w", err)
	}
	retention, err := cfg.Retention.Policy()
	if err != nil {
		return nil, err
	}

	mem := memory.NewMemoryStorage()
	sink, err := OpenSink(ctx, cfg, mem)
	if err != nil {
		return nil, err
	}
	states := OpenStateStore(cfg, mem)

	s := &Service{
		cfg:     cfg,
		catalog: cat,
		sink:    sink,
		states:  states,
		log:     slog.Default().With("component", "service"),
	}

	paging, err := s.openChannel("paging", cfg.Channels.Paging)
	if err != nil {
		s.closeResources()
		return nil, err
	}
	chat, err := s.openChannel("chat", cfg.Channels.Chat)
	if err != nil {
		s.closeResources()
		return nil, err
	}
	digestCh, err := s.openChannel("digest", cfg.Channels.Digest)
	if err != nil {
		s.closeResources()
		return nil, err
	}

	retrier := retry.New(cat, cfg.Retry)
	dispatcher := router.NewDispatcher(cfg.Router.Workers, cfg.Router.QueueSize)
	s.router = router.New(cfg.Router, states, states, paging, chat, retrier, dispatcher)
	s.handler = boundary.New(cfg.Problem, cat, rules, sink.Repo, s.router, retention)
	s.router.OnDeliveryFailure = s.handler.DeliveryFailed

	s.aggregator = digest.New(cfg.Digest, states, digestCh, cat, retrier)
	s.pruner = worker.NewPruner(cfg.Pruner, sink.Repo)

	s.monitor = health.NewMonitor(healthCacheTTL,
		health.Check{Name: "sink", Critical: true, Run: sink.Repo.Health},
		health.Check{Name: "state_store", Run: states.Ping},
	)
	s.healthServer = health.NewServer(s.monitor, cat, cfg.Server.Port)

	return s, nil
}

func (s *Service) openChannel(name string, cfg channel.Config) (channel.Channel, error) {
	ch, err := channel.New(name, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s channel: %w", name, err)
	}
	s.channels = append(s.channels, ch)
	return ch, nil
}

// Catalog returns the loaded catalog.
func (s *Service) Catalog() *catalog.Catalog { return s.catalog }

// Boundary returns the handler business HTTP and gRPC servers mount.
func (s *Service) Boundary() *boundary.Handler { return s.handler }

// Aggregator returns the digest aggregator.
func (s *Service) Aggregator() *digest.Aggregator { return s.aggregator }

// Occurrences returns the occurrence repository backing the sink.
func (s *Service) Occurrences() storage.OccurrenceRepository { return s.sink.Repo }

// Monitor exposes the health checks, mainly for the status command.
func (s *Service) Monitor() *health.Monitor { return s.monitor }

// Start starts the background components and the operations server.
func (s *Service) Start(ctx context.Context) error {
	go func() {
		if err := s.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("Health server failed", "error", err)
		}
	}()
	s.log.Info("Operations server listening", "port", s.cfg.Server.Port)

	if s.sink.Postgres != nil {
		s.sink.Postgres.StartMetricsCollector(ctx)
	}

	if err := s.aggregator.Start(ctx); err != nil {
		return err
	}
	if err := s.pruner.Start(ctx); err != nil {
		return err
	}
	return nil
}

// Stop shuts down in reverse order: no new requests, finish the in-flight
// digest flush, drain pending deliveries, then close connections.
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("Stopping faultline...")

	var errs []error
	if err := s.healthServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("health server: %w", err))
	}
	if err := s.aggregator.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("digest aggregator: %w", err))
	}
	if err := s.pruner.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("pruner: %w", err))
	}
	if err := s.router.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("router: %w", err))
	}
	s.closeResources()

	return errors.Join(errs...)
}

func (s *Service) closeResources() {
	for _, ch := range s.channels {
		if err := channel.Close(ch); err != nil {
			s.log.Warn("Failed to close channel", "channel", ch.Name(), "error", err)
		}
	}
	if err := s.states.Close(); err != nil {
		s.log.Warn("Failed to close Redis", "error", err)
	}
	if err := s.sink.Close(); err != nil {
		s.log.Warn("Failed to close sink", "error", err)
	}
}
