package enrollment

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"trialgate/internal/audit"
	"trialgate/internal/enrollment/metrics"
	pmodels "trialgate/internal/participant/models"
	tmodels "trialgate/internal/trial/models"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/platform/sentinel"
	"trialgate/pkg/requestcontext"
)

// Store is the participant persistence the enrollment path needs.
type Store interface {
	Create(ctx context.Context, p *pmodels.Participant) error
	CodeExists(ctx context.Context, code string) (bool, error)
	CountByTrial(ctx context.Context, trialID id.TrialID) (int, error)
}

// TrialStore loads the trial being enrolled into.
type TrialStore interface {
	Get(ctx context.Context, trialID id.TrialID) (*tmodels.Trial, error)
}

// AuditRecorder is the audit sink. Recording is best-effort; see audit.Recorder.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Service enrolls participants. Preconditions are checked in a fixed order:
// the trial must exist, be active, and have capacity, and the participant
// code must be unique. Capacity counts every enrollment ever made, withdrawn
// included; slots are not recycled.
type Service struct {
	store      Store
	trials     TrialStore
	recorder   AuditRecorder
	locker     TrialLocker
	randomizer *Randomizer
	codegen    *CodeGenerator
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithLocker sets the trial locker. Defaults to the in-process locker;
// multi-instance deployments pass the Redis locker.
func WithLocker(l TrialLocker) Option {
	return func(s *Service) { s.locker = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(store Store, trials TrialStore, recorder AuditRecorder, opts ...Option) *Service {
	s := &Service{
		store:      store,
		trials:     trials,
		recorder:   recorder,
		locker:     NewMemoryLocker(),
		randomizer: NewRandomizer(),
		codegen:    NewCodeGenerator(),
		logger:     slog.Default(),
		metrics:    metrics.NewForTesting(),
		tracer:     otel.Tracer("trialgate/internal/enrollment"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enroll admits one participant into the trial and returns the blinded view.
// The assignment is made here and never surfaces in the response; only the
// unblinding workflow can reveal it.
func (s *Service) Enroll(ctx context.Context, trialID id.TrialID) (pmodels.BlindedParticipant, error) {
	ctx, span := s.tracer.Start(ctx, "enrollment.Enroll",
		trace.WithAttributes(attribute.String("trial.id", trialID.String())))
	defer span.End()

	blinded, err := s.enroll(ctx, trialID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
		return pmodels.BlindedParticipant{}, err
	}
	return blinded, nil
}

func (s *Service) enroll(ctx context.Context, trialID id.TrialID) (pmodels.BlindedParticipant, error) {
	var none pmodels.BlindedParticipant

	trial, err := s.trials.Get(ctx, trialID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			s.metrics.Rejections.WithLabelValues("trial_not_found").Inc()
			return none, dErrors.New(dErrors.CodeNotFound, "trial not found")
		}
		return none, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load trial")
	}

	if !trial.IsActive() {
		s.metrics.Rejections.WithLabelValues("trial_not_active").Inc()
		return none, dErrors.New(dErrors.CodeInvalidState, "trial is not accepting enrollment")
	}

	// The lock covers the count-then-insert window so parallel enrollments
	// cannot both pass the capacity check on the last open slot.
	release, err := s.locker.Acquire(ctx, trialID)
	if err != nil {
		return none, err
	}
	defer release()

	count, err := s.store.CountByTrial(ctx, trialID)
	if err != nil {
		return none, dErrors.Wrap(err, dErrors.CodeInternal, "failed to count enrollment")
	}
	if count >= trial.TargetEnrollment {
		s.metrics.Rejections.WithLabelValues("capacity").Inc()
		return none, dErrors.New(dErrors.CodeCapacityExceeded, "trial has reached its target enrollment")
	}

	now := requestcontext.Now(ctx)
	code, err := s.codegen.GenerateUnique(ctx, now, func(ctx context.Context, candidate string) (bool, error) {
		taken, err := s.store.CodeExists(ctx, candidate)
		if err == nil && taken {
			s.metrics.CodeCollisions.Inc()
		}
		return taken, err
	})
	if err != nil {
		return none, err
	}

	group, err := s.randomizer.Assign(trial.NormalizedRatio())
	if err != nil {
		return none, err
	}

	participant := &pmodels.Participant{
		ID:              id.ParticipantID(uuid.New()),
		TrialID:         trialID,
		ParticipantCode: code,
		AssignedGroup:   group,
		Status:          pmodels.StatusEnrolled,
		EnrolledAt:      now,
		UpdatedAt:       now,
	}
	if err := s.store.Create(ctx, participant); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return none, dErrors.New(dErrors.CodeConflict, "participant code is already taken")
		}
		return none, dErrors.Wrap(err, dErrors.CodeInternal, "failed to enroll participant")
	}

	s.metrics.Enrollments.Inc()
	s.logger.InfoContext(ctx, "participant enrolled",
		"trial_id", trialID,
		"participant_code", code,
		"request_id", requestcontext.RequestID(ctx),
	)

	// The audit entry deliberately omits the assignment.
	s.recorder.Record(ctx, audit.Entry{
		UserID:        requestcontext.UserID(ctx),
		Action:        audit.ActionParticipantEnrolled,
		TrialID:       &trialID,
		ParticipantID: &participant.ID,
		Details: map[string]any{
			"participantCode": code,
		},
	})

	return participant.Blinded(), nil
}
