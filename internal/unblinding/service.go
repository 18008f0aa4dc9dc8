// Package unblinding implements the one-way reveal workflow. It is the only
// code path allowed to flip an isUnblinded flag or return a real treatment
// assignment; everything else in the system serves blinded views.
//
// Every request, denied or granted, leaves exactly one audit entry. A reveal
// that cannot be accounted for is a blinding-integrity incident, so the audit
// trail records the denials too.
package unblinding

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"trialgate/internal/audit"
	pmodels "trialgate/internal/participant/models"
	tmodels "trialgate/internal/trial/models"
	"trialgate/internal/unblinding/metrics"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/platform/sentinel"
	"trialgate/pkg/requestcontext"
)

// StudyConfirmationPhrase must be echoed verbatim to unblind an entire study.
// The phrase is a deliberate speed bump: study unblinding is irreversible and
// ends the trial's scientific blind for every participant at once.
const StudyConfirmationPhrase = "UNBLIND STUDY"

const (
	minParticipantReason = 10
	minStudyReason       = 20
)

// ParticipantStore is the participant persistence the workflow needs.
type ParticipantStore interface {
	Get(ctx context.Context, participantID id.ParticipantID) (*pmodels.Participant, error)
	Update(ctx context.Context, p *pmodels.Participant) error
	CountByTrial(ctx context.Context, trialID id.TrialID) (int, error)
	UnblindAll(ctx context.Context, trialID id.TrialID, now time.Time, by id.UserID) (int, error)
}

// TrialStore is the trial persistence the workflow needs.
type TrialStore interface {
	Get(ctx context.Context, trialID id.TrialID) (*tmodels.Trial, error)
	Update(ctx context.Context, t *tmodels.Trial) error
}

// AuditRecorder is the audit sink. Recording is best-effort; see audit.Recorder.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Service runs the unblinding workflow.
type Service struct {
	participants ParticipantStore
	trials       TrialStore
	recorder     AuditRecorder
	logger       *slog.Logger
	metrics      *metrics.Metrics
	tracer       trace.Tracer
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

func New(participants ParticipantStore, trials TrialStore, recorder AuditRecorder, opts ...Option) *Service {
	s := &Service{
		participants: participants,
		trials:       trials,
		recorder:     recorder,
		logger:       slog.Default(),
		metrics:      metrics.NewForTesting(),
		tracer:       otel.Tracer("trialgate/internal/unblinding"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ParticipantResult is the reveal payload for a single participant.
type ParticipantResult struct {
	ParticipantCode     string                      `json:"participantCode"`
	AssignedGroup       int                         `json:"assignedGroup"`
	TreatmentAssignment tmodels.TreatmentAssignment `json:"treatmentAssignment"`
}

// StudyTrial identifies the unblinded trial in a StudyResult.
type StudyTrial struct {
	ID          id.TrialID `json:"id"`
	Title       string     `json:"title"`
	UnblindedAt time.Time  `json:"unblindedAt"`
	UnblindedBy id.UserID  `json:"unblindedBy"`
}

// StudyCounts breaks down the participant cascade.
type StudyCounts struct {
	Total            int `json:"total"`
	AlreadyUnblinded int `json:"alreadyUnblinded"`
	NewlyUnblinded   int `json:"newlyUnblinded"`
}

// StudyResult is the reveal payload for a study-wide unblind.
type StudyResult struct {
	Trial            StudyTrial                    `json:"trial"`
	Participants     StudyCounts                   `json:"participants"`
	TreatmentMapping []tmodels.TreatmentAssignment `json:"treatmentMapping"`
}

// UnblindParticipant reveals one participant's assignment. Checks run in a
// fixed order: reason length, participant existence, not already unblinded,
// owning trial not in draft.
func (s *Service) UnblindParticipant(ctx context.Context, participantID id.ParticipantID, reason string) (*ParticipantResult, error) {
	deny := func(reasonLabel string, err error) (*ParticipantResult, error) {
		s.metrics.Denied.WithLabelValues("participant", reasonLabel).Inc()
		s.auditParticipant(ctx, nil, &participantID, false, map[string]any{
			"reason": strings.TrimSpace(reason),
			"denied": reasonLabel,
		})
		return nil, err
	}

	if len(strings.TrimSpace(reason)) < minParticipantReason {
		return deny("reason_too_short",
			dErrors.New(dErrors.CodeValidation, "reason must be at least 10 characters"))
	}

	participant, err := s.participants.Get(ctx, participantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return deny("participant_not_found", dErrors.New(dErrors.CodeNotFound, "participant not found"))
		}
		return deny("store_error", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load participant"))
	}

	if err := participant.CanUnblind(); err != nil {
		return deny("already_unblinded", err)
	}

	trial, err := s.trials.Get(ctx, participant.TrialID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return deny("trial_not_found", dErrors.New(dErrors.CodeNotFound, "trial not found"))
		}
		return deny("store_error", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load trial"))
	}
	if trial.Status == tmodels.StatusDraft {
		return deny("trial_draft",
			dErrors.New(dErrors.CodeInvalidState, "cannot unblind a participant of a draft trial"))
	}

	actor := requestcontext.UserID(ctx)
	now := requestcontext.Now(ctx)
	participant.ApplyUnblind(now, actor)
	if err := s.participants.Update(ctx, participant); err != nil {
		return deny("store_error", dErrors.Wrap(err, dErrors.CodeInternal, "failed to unblind participant"))
	}

	s.metrics.ParticipantUnblinds.Inc()
	s.logger.InfoContext(ctx, "participant unblinded",
		"participant_id", participantID,
		"trial_id", participant.TrialID,
		"user_id", actor,
		"request_id", requestcontext.RequestID(ctx),
	)
	// Success detail is the complete reveal record: this entry is the
	// authoritative account of who learned the assignment and why.
	s.auditParticipant(ctx, &participant.TrialID, &participantID, true, map[string]any{
		"reason":          strings.TrimSpace(reason),
		"participantCode": participant.ParticipantCode,
		"trialTitle":      trial.Title,
		"assignedGroup":   participant.AssignedGroup,
	})

	return &ParticipantResult{
		ParticipantCode:     participant.ParticipantCode,
		AssignedGroup:       participant.AssignedGroup,
		TreatmentAssignment: s.assignmentFor(trial, participant.AssignedGroup),
	}, nil
}

// UnblindStudy reveals every assignment in a trial at once. Checks run in a
// fixed order: reason length, confirmation phrase, trial existence, not
// already unblinded, not in draft. The cascade skips participants who were
// already individually unblinded so their original reveal metadata survives.
func (s *Service) UnblindStudy(ctx context.Context, trialID id.TrialID, reason, confirmation string) (*StudyResult, error) {
	ctx, span := s.tracer.Start(ctx, "unblinding.UnblindStudy",
		trace.WithAttributes(attribute.String("trial.id", trialID.String())))
	defer span.End()

	result, err := s.unblindStudy(ctx, trialID, reason, confirmation)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	return result, err
}

func (s *Service) unblindStudy(ctx context.Context, trialID id.TrialID, reason, confirmation string) (*StudyResult, error) {
	deny := func(reasonLabel string, err error) (*StudyResult, error) {
		s.metrics.Denied.WithLabelValues("study", reasonLabel).Inc()
		s.auditStudy(ctx, &trialID, false, map[string]any{
			"reason": strings.TrimSpace(reason),
			"denied": reasonLabel,
		})
		return nil, err
	}

	if len(strings.TrimSpace(reason)) < minStudyReason {
		return deny("reason_too_short",
			dErrors.New(dErrors.CodeValidation, "reason must be at least 20 characters"))
	}
	if confirmation != StudyConfirmationPhrase {
		return deny("confirmation_mismatch",
			dErrors.New(dErrors.CodeValidation, `confirmation must be exactly "UNBLIND STUDY"`))
	}

	trial, err := s.trials.Get(ctx, trialID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return deny("trial_not_found", dErrors.New(dErrors.CodeNotFound, "trial not found"))
		}
		return deny("store_error", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load trial"))
	}

	if err := trial.CanUnblind(); err != nil {
		switch {
		case dErrors.HasCode(err, dErrors.CodeAlreadyUnblinded):
			return deny("already_unblinded", err)
		default:
			return deny("trial_draft", err)
		}
	}

	actor := requestcontext.UserID(ctx)
	now := requestcontext.Now(ctx)
	trial.ApplyUnblind(now, actor)
	if err := s.trials.Update(ctx, trial); err != nil {
		return deny("store_error", dErrors.Wrap(err, dErrors.CodeInternal, "failed to unblind trial"))
	}

	newly, err := s.participants.UnblindAll(ctx, trialID, now, actor)
	if err != nil {
		// The trial flag is already flipped; report the cascade failure
		// rather than pretending the unblind did not happen.
		return deny("store_error", dErrors.Wrap(err, dErrors.CodeInternal, "failed to unblind participants"))
	}
	total, err := s.participants.CountByTrial(ctx, trialID)
	if err != nil {
		return deny("store_error", dErrors.Wrap(err, dErrors.CodeInternal, "failed to count participants"))
	}

	s.metrics.StudyUnblinds.Inc()
	s.logger.InfoContext(ctx, "study unblinded",
		"trial_id", trialID,
		"total_participants", total,
		"newly_unblinded", newly,
		"user_id", actor,
		"request_id", requestcontext.RequestID(ctx),
	)
	// The success entry carries the full mapping: it is the durable record
	// of what each group actually was.
	s.auditStudy(ctx, &trialID, true, map[string]any{
		"reason":            strings.TrimSpace(reason),
		"trialTitle":        trial.Title,
		"totalParticipants": total,
		"alreadyUnblinded":  total - newly,
		"newlyUnblinded":    newly,
		"treatmentMapping":  trial.TreatmentMapping(),
	})

	return &StudyResult{
		Trial: StudyTrial{
			ID:          trialID,
			Title:       trial.Title,
			UnblindedAt: now,
			UnblindedBy: actor,
		},
		Participants: StudyCounts{
			Total:            total,
			AlreadyUnblinded: total - newly,
			NewlyUnblinded:   newly,
		},
		TreatmentMapping: trial.TreatmentMapping(),
	}, nil
}

func (s *Service) assignmentFor(trial *tmodels.Trial, group int) tmodels.TreatmentAssignment {
	mapping := trial.TreatmentMapping()
	if group >= 0 && group < len(mapping) {
		return mapping[group]
	}
	return tmodels.TreatmentAssignment{Group: group, Name: tmodels.BlindedGroupLabel(group)}
}

func (s *Service) auditParticipant(ctx context.Context, trialID *id.TrialID, participantID *id.ParticipantID, success bool, details map[string]any) {
	details["success"] = success
	s.recorder.Record(ctx, audit.Entry{
		UserID:        requestcontext.UserID(ctx),
		Action:        audit.ActionParticipantUnblinded,
		TrialID:       trialID,
		ParticipantID: participantID,
		Details:       details,
	})
}

func (s *Service) auditStudy(ctx context.Context, trialID *id.TrialID, success bool, details map[string]any) {
	details["success"] = success
	s.recorder.Record(ctx, audit.Entry{
		UserID:  requestcontext.UserID(ctx),
		Action:  audit.ActionTrialUnblinded,
		TrialID: trialID,
		Details: details,
	})
}
