// Package boundary turns a raised fault into a wire response at the outermost
// layer of a request. It is the only place where severity and user visibility
// are decided, always from the catalog.
package boundary

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/faultline/internal/alerting/router"
	"github.com/vietddude/faultline/internal/catalog"
	"github.com/vietddude/faultline/internal/core/domain"
	"github.com/vietddude/faultline/internal/fault"
	"github.com/vietddude/faultline/internal/fingerprint"
	"github.com/vietddude/faultline/internal/infra/storage"
	"github.com/vietddude/faultline/internal/logfields"
	"github.com/vietddude/faultline/internal/metrics"
	"github.com/vietddude/faultline/internal/redaction"
)

// Config holds wire response settings.
type Config struct {
	TypeBaseURI    string        `yaml:"type_base_uri"`
	GenericMessage string        `yaml:"generic_message"`
	SinkTimeout    time.Duration `yaml:"sink_timeout"`
}

// DefaultConfig returns the default wire settings.
func DefaultConfig() Config {
	return Config{
		TypeBaseURI:    "urn:problem-type:",
		GenericMessage: domain.DefaultGenericMessage,
		SinkTimeout:    5 * time.Second,
	}
}

// Router receives every occurrence after it has been persisted.
type Router interface {
	Route(ctx context.Context, in router.Input) (router.Decision, error)
}

// RequestContext is what the boundary needs to know about the inbound call.
type RequestContext struct {
	Method         string
	Path           string
	CorrelationID  string
	TenantID       string
	AcceptLanguage string
	Instance       string
}

// Handler is the boundary pipeline.
type Handler struct {
	cfg          Config
	catalog      *catalog.Catalog
	fingerprints *fingerprint.Engine
	rules        *redaction.Rules
	sink         storage.OccurrenceSink
	router       Router
	retention    domain.RetentionPolicy
	logger       *slog.Logger
	now          func() time.Time
}

// New creates a Handler. A nil rules set uses redaction.Default and a nil
// router disables alerting.
func New(
	cfg Config,
	cat *catalog.Catalog,
	rules *redaction.Rules,
	sink storage.OccurrenceSink,
	rt Router,
	retention domain.RetentionPolicy,
) *Handler {
	def := DefaultConfig()
	if cfg.TypeBaseURI == "" {
		cfg.TypeBaseURI = def.TypeBaseURI
	}
	if cfg.GenericMessage == "" {
		cfg.GenericMessage = def.GenericMessage
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = def.SinkTimeout
	}
	if rules == nil {
		rules = redaction.Default()
	}

	return &Handler{
		cfg:          cfg,
		catalog:      cat,
		fingerprints: fingerprint.New(),
		rules:        rules,
		sink:         sink,
		router:       rt,
		retention:    retention,
		logger:       slog.Default().With("component", "boundary"),
		now:          time.Now,
	}
}

// SetClock overrides the time source.
func (h *Handler) SetClock(now func() time.Time) {
	h.now = now
}

// Handle records err as an occurrence, routes it for alerting and returns
// the wire response. It never fails: sink and router problems are logged.
func (h *Handler) Handle(ctx context.Context, err error, req RequestContext) WireResponse {
	start := time.Now()
	defer func() { metrics.HandleDuration.Observe(time.Since(start).Seconds()) }()

	if err == nil {
		err = fault.New(domain.UnknownErrorID, "boundary called without an error")
	}

	rawID := fault.ID(err)
	if rawID == "" {
		rawID = domain.UnknownErrorID
	}

	def, rerr := h.catalog.Resolve(rawID)
	if rerr != nil {
		metrics.UnknownErrorIDs.Inc()
		h.logger.Warn("Unknown error id, using fallback definition",
			logfields.ErrorID, rawID, "fallback", def.ID, "error", rerr)
	}

	fields := fault.CollectFields(err)
	correlationID := firstNonEmpty(req.CorrelationID, fields.String(fault.KeyCorrelationID), fault.CorrelationID(ctx))
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	tenantID := firstNonEmpty(fields.String(fault.KeyTenantID), req.TenantID, fault.TenantID(ctx))

	fp := h.fingerprints.Compute(rawID, req.Path, req.Method, tenantID)
	redacted := h.rules.Redact(fields)

	now := h.now()
	occ := domain.Occurrence{
		ID:              uuid.NewString(),
		Fingerprint:     fp,
		ErrorID:         def.ID,
		Group:           def.Group,
		Severity:        def.Severity,
		TenantID:        tenantID,
		CorrelationID:   correlationID,
		RedactedContext: redacted.Stored,
		CreatedAt:       now,
		ExpiresAt:       now.Add(h.retention.TTL(def.Group, def.Severity)),
	}

	h.log(ctx, err, rawID, def, occ)
	h.persist(ctx, occ)
	metrics.OccurrencesTotal.WithLabelValues(def.ID, string(def.Severity)).Inc()

	if h.router != nil {
		if _, err := h.router.Route(ctx, router.Input{Definition: def, Occurrence: occ}); err != nil {
			h.logger.Error("Alert routing failed",
				logfields.ErrorID, def.ID, logfields.Fingerprint, fp, "error", err)
		}
	}

	return h.response(def, occ, redacted.Public, req)
}

func (h *Handler) persist(ctx context.Context, occ domain.Occurrence) {
	if h.sink == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.cfg.SinkTimeout)
	defer cancel()

	if err := h.sink.Append(ctx, occ); err != nil {
		metrics.SinkFailures.Inc()
		h.logger.Error("Failed to persist occurrence",
			logfields.ErrorID, occ.ErrorID,
			logfields.Fingerprint, occ.Fingerprint,
			logfields.CorrelationID, occ.CorrelationID,
			"error", err)
	}
}

// log writes the occurrence with the stored view of the context. Secrets only
// ever travel in context fields, never in the internal message.
func (h *Handler) log(ctx context.Context, err error, rawID string, def domain.ErrorDefinition, occ domain.Occurrence) {
	level := domain.MatchSeverity(def.Severity,
		func() slog.Level { return slog.LevelInfo },
		func() slog.Level { return slog.LevelWarn },
		func() slog.Level { return slog.LevelError },
	)

	attrs := []any{
		logfields.ErrorID, def.ID,
		logfields.Severity, def.Severity,
		logfields.Fingerprint, occ.Fingerprint,
		logfields.CorrelationID, occ.CorrelationID,
		logfields.TenantID, occ.TenantID,
		"context", occ.RedactedContext,
		"message", internalMessage(err),
	}
	if rawID != def.ID {
		attrs = append(attrs, "raised_id", rawID)
	}
	h.logger.Log(ctx, level, "Error occurrence", attrs...)
}

func (h *Handler) response(def domain.ErrorDefinition, occ domain.Occurrence, public map[string]any, req RequestContext) WireResponse {
	instance := req.Instance
	if instance == "" {
		instance = req.Path
	}
	title := http.StatusText(def.HTTPStatus)
	if title == "" {
		title = "Error"
	}

	return WireResponse{
		Type:          h.cfg.TypeBaseURI + strings.ToLower(def.ID),
		Title:         title,
		Status:        def.HTTPStatus,
		Detail:        h.detail(def, req.AcceptLanguage),
		Instance:      instance,
		ErrorID:       def.ID,
		CorrelationID: occ.CorrelationID,
		TenantID:      occ.TenantID,
		Fingerprint:   occ.Fingerprint,
		public:        public,
	}
}

// detail returns the catalog text for user visible definitions and the
// generic message otherwise.
func (h *Handler) detail(def domain.ErrorDefinition, acceptLanguage string) string {
	msgs := h.catalog.Messages()
	if def.UserVisible {
		if text, ok := msgs.Resolve(def.UserMessageKey, acceptLanguage); ok {
			return text
		}
		h.logger.Warn("Missing user message", logfields.ErrorID, def.ID, "key", def.UserMessageKey)
	}
	if text, ok := msgs.Resolve(domain.GenericMessageKey, acceptLanguage); ok {
		return text
	}
	return h.cfg.GenericMessage
}

// DeliveryFailed records an exhausted alert delivery as its own occurrence.
// It has the signature of router.Router.OnDeliveryFailure.
func (h *Handler) DeliveryFailed(ctx context.Context, derr *router.DeliveryError, occ domain.Occurrence) {
	err := fault.Wrap(derr, domain.DeliveryExhaustedID, "alert delivery exhausted").
		With("channel", derr.Channel).
		With("alertErrorId", derr.ErrorID).
		With("alertFingerprint", derr.Fingerprint)
	if occ.TenantID != "" {
		err.With(fault.KeyTenantID, occ.TenantID)
	}

	h.Handle(ctx, err, RequestContext{
		Method:        "DELIVER",
		Path:          "/channels/" + derr.Channel,
		CorrelationID: occ.CorrelationID,
	})
}

func internalMessage(err error) string {
	var fe *fault.Error
	if errors.As(err, &fe) {
		msg := fe.Message
		if fe.Cause != nil {
			msg = strings.TrimPrefix(msg+": "+fe.Cause.Error(), ": ")
		}
		return msg
	}
	return err.Error()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
