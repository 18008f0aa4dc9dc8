package datapoint

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"trialgate/internal/datapoint/metrics"
	"trialgate/internal/datapoint/models"
	pmodels "trialgate/internal/participant/models"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/platform/sentinel"
	"trialgate/pkg/requestcontext"
)

// Store is the data point persistence the service needs.
type Store interface {
	Create(ctx context.Context, dp *models.DataPoint) error
	ListByParticipant(ctx context.Context, participantID id.ParticipantID) ([]*models.DataPoint, error)
	ListByTrial(ctx context.Context, trialID id.TrialID, filter models.Filter) ([]*models.DataPoint, error)
}

// ParticipantStore resolves participant codes at ingestion.
type ParticipantStore interface {
	GetByCode(ctx context.Context, code string) (*pmodels.Participant, error)
}

// Service ingests observational data and serves trial-level summaries. Data
// points never carry assignment information, so these reads bypass the
// blinding gate entirely.
type Service struct {
	store        Store
	participants ParticipantStore
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store Store, participants ParticipantStore, opts ...Option) *Service {
	s := &Service{
		store:        store,
		participants: participants,
		logger:       slog.Default(),
		metrics:      metrics.NewForTesting(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IngestResult is the classification outcome returned to the submitter.
type IngestResult struct {
	ID       id.DataPointID  `json:"id"`
	IsAlert  bool            `json:"isAlert"`
	Severity models.Severity `json:"severity"`
}

// Ingest validates, classifies, and persists one observation. The trial ID is
// denormalized from the participant so trial-level queries never need a join.
func (s *Service) Ingest(ctx context.Context, participantCode, typeName string, raw json.RawMessage) (*IngestResult, error) {
	participant, err := s.participants.GetByCode(ctx, participantCode)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.Rejected.Inc()
			return nil, dErrors.New(dErrors.CodeNotFound, "participant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load participant")
	}

	typ, err := models.ParseType(typeName)
	if err != nil {
		s.metrics.Rejected.Inc()
		return nil, err
	}
	payload, err := models.ParsePayload(typ, raw)
	if err != nil {
		s.metrics.Rejected.Inc()
		return nil, err
	}

	isAlert, severity := Classify(payload)

	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	dp := &models.DataPoint{
		ID:            id.DataPointID(uuid.New()),
		ParticipantID: participant.ID,
		TrialID:       participant.TrialID,
		Type:          typ,
		Payload:       raw,
		Timestamp:     requestcontext.Now(ctx),
		IsAlert:       isAlert,
		Severity:      severity,
	}
	if err := s.store.Create(ctx, dp); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store data point")
	}

	s.metrics.Ingested.WithLabelValues(string(typ)).Inc()
	if isAlert {
		s.metrics.Alerts.WithLabelValues(string(severity)).Inc()
		s.logger.InfoContext(ctx, "alert data point ingested",
			"trial_id", participant.TrialID,
			"participant_code", participantCode,
			"type", typ,
			"severity", severity,
			"request_id", requestcontext.RequestID(ctx),
		)
	}

	return &IngestResult{ID: dp.ID, IsAlert: isAlert, Severity: severity}, nil
}

// ListOptions narrows a participant's data point listing.
type ListOptions struct {
	Type  models.Type
	Limit int
}

const defaultListLimit = 100

// ListByParticipant returns a participant's data points, newest first.
func (s *Service) ListByParticipant(ctx context.Context, participantID id.ParticipantID, opts ListOptions) ([]*models.DataPoint, error) {
	points, err := s.store.ListByParticipant(ctx, participantID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list data points")
	}
	if opts.Type != "" {
		filtered := make([]*models.DataPoint, 0, len(points))
		for _, dp := range points {
			if dp.Type == opts.Type {
				filtered = append(filtered, dp)
			}
		}
		points = filtered
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(points) > limit {
		points = points[:limit]
	}
	return points, nil
}

// AlertSummary is the trial-level alert overview.
type AlertSummary struct {
	Total              int                     `json:"total"`
	Last24Hours        int                     `json:"last24Hours"`
	BySeverity         map[models.Severity]int `json:"bySeverity"`
	UniqueParticipants int                     `json:"uniqueParticipants"`
	Alerts             []*models.DataPoint     `json:"alerts"`
}

// Alerts summarizes a trial's alert-flagged data points. A non-empty severity
// narrows both the list and the summary counts.
func (s *Service) Alerts(ctx context.Context, trialID id.TrialID, severity models.Severity) (*AlertSummary, error) {
	alerts, err := s.store.ListByTrial(ctx, trialID, models.Filter{AlertsOnly: true})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list alerts")
	}
	if severity != "" {
		filtered := make([]*models.DataPoint, 0, len(alerts))
		for _, a := range alerts {
			if a.Severity == severity {
				filtered = append(filtered, a)
			}
		}
		alerts = filtered
	}

	now := requestcontext.Now(ctx)
	summary := &AlertSummary{
		Total:      len(alerts),
		BySeverity: map[models.Severity]int{},
		Alerts:     alerts,
	}
	participants := map[id.ParticipantID]struct{}{}
	for _, a := range alerts {
		summary.BySeverity[a.Severity]++
		participants[a.ParticipantID] = struct{}{}
		if now.Sub(a.Timestamp) <= 24*time.Hour {
			summary.Last24Hours++
		}
	}
	summary.UniqueParticipants = len(participants)
	return summary, nil
}

// DailyCount is one day of ingestion activity.
type DailyCount struct {
	Date   string `json:"date"`
	Count  int    `json:"count"`
	Alerts int    `json:"alerts"`
}

// AggregatedData is the 30-day trial activity rollup.
type AggregatedData struct {
	TrialID              id.TrialID              `json:"trialId"`
	TotalDataPoints      int                     `json:"totalDataPoints"`
	ByType               map[models.Type]int     `json:"byType"`
	AlertCount           int                     `json:"alertCount"`
	AlertsByType         map[models.Type]int     `json:"alertsByType"`
	SeverityDistribution map[models.Severity]int `json:"severityDistribution"`
	DailyActivity        []DailyCount            `json:"dailyActivity"`
}

// Aggregate rolls up the trial's last 30 days of data. The rollup carries no
// assignment information and is safe to serve while the trial is blinded.
func (s *Service) Aggregate(ctx context.Context, trialID id.TrialID) (*AggregatedData, error) {
	now := requestcontext.Now(ctx)
	since := now.AddDate(0, 0, -30)

	points, err := s.store.ListByTrial(ctx, trialID, models.Filter{Since: since})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to aggregate data points")
	}

	agg := &AggregatedData{
		TrialID:              trialID,
		TotalDataPoints:      len(points),
		ByType:               map[models.Type]int{},
		AlertsByType:         map[models.Type]int{},
		SeverityDistribution: map[models.Severity]int{},
	}
	daily := map[string]int{}
	dailyAlerts := map[string]int{}
	for _, dp := range points {
		day := dp.Timestamp.Format("2006-01-02")
		agg.ByType[dp.Type]++
		daily[day]++
		if dp.IsAlert {
			agg.AlertCount++
			agg.AlertsByType[dp.Type]++
			agg.SeverityDistribution[dp.Severity]++
			dailyAlerts[day]++
		}
	}

	// Every day of the window appears, zeroes included, oldest first.
	for day := range 31 {
		date := since.AddDate(0, 0, day).Format("2006-01-02")
		agg.DailyActivity = append(agg.DailyActivity, DailyCount{
			Date:   date,
			Count:  daily[date],
			Alerts: dailyAlerts[date],
		})
	}
	return agg, nil
}
