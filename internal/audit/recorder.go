package audit

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"trialgate/internal/audit/metrics"
	"trialgate/pkg/requestcontext"
)

// Publisher mirrors audit entries to an external sink (Kafka). Optional.
type Publisher interface {
	Publish(ctx context.Context, entry Entry) error
}

// Recorder is the single write path for audit entries. It fills in identity
// and client metadata from the request context, persists the entry, and
// mirrors it to the publisher when one is configured.
//
// Record never returns an error: the operation being audited must not fail
// because auditing did. Failures are logged and counted instead.
type Recorder struct {
	store     Store
	publisher Publisher
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithPublisher mirrors recorded entries to the given publisher.
func WithPublisher(p Publisher) Option {
	return func(r *Recorder) { r.publisher = p }
}

// WithLogger sets the logger used for failure reporting.
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Recorder) { r.metrics = m }
}

// NewRecorder creates a Recorder backed by the given store.
func NewRecorder(store Store, opts ...Option) *Recorder {
	r := &Recorder{
		store:   store,
		logger:  slog.Default(),
		metrics: metrics.NewForTesting(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record persists an audit entry, filling ID, timestamp, and client metadata
// from the context when the entry does not already carry them.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = requestcontext.Now(ctx)
	}
	if entry.IPAddress == "" {
		entry.IPAddress = requestcontext.ClientIP(ctx)
	}
	if entry.UserAgent == "" {
		entry.UserAgent = requestcontext.UserAgent(ctx)
	}
	if entry.Device == "" && entry.UserAgent != "" {
		entry.Device = ParseUserAgent(entry.UserAgent)
	}
	if entry.Details == nil {
		entry.Details = map[string]any{}
	}

	if !entry.Action.Valid() {
		r.logger.ErrorContext(ctx, "audit entry dropped - unknown action",
			"action", entry.Action,
			"request_id", requestcontext.RequestID(ctx),
		)
		r.metrics.WriteFailures.Inc()
		return
	}

	if err := r.store.Append(ctx, entry); err != nil {
		r.logger.ErrorContext(ctx, "audit write failed",
			"action", entry.Action,
			"user_id", entry.UserID,
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		r.metrics.WriteFailures.Inc()
	} else {
		r.metrics.EntriesRecorded.WithLabelValues(string(entry.Action)).Inc()
	}

	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, entry); err != nil {
			r.logger.WarnContext(ctx, "audit publish failed",
				"action", entry.Action,
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			r.metrics.PublishFailures.Inc()
		}
	}
}

// List returns audit entries matching the filter, newest first.
func (r *Recorder) List(ctx context.Context, filter Filter) ([]Entry, error) {
	return r.store.List(ctx, filter)
}
