// Package service implements participant reads and withdrawal, applying the
// blinding gate: listings are always blinded, and a single read reveals the
// assignment only for a participant who has already been unblinded through
// the unblinding workflow.
package service

import (
	"context"
	"errors"
	"log/slog"

	"trialgate/internal/audit"
	"trialgate/internal/participant/models"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/platform/sentinel"
	"trialgate/pkg/requestcontext"
)

// Store is the persistence interface the service needs.
type Store interface {
	Get(ctx context.Context, participantID id.ParticipantID) (*models.Participant, error)
	ListByTrial(ctx context.Context, trialID id.TrialID) ([]*models.Participant, error)
	Update(ctx context.Context, p *models.Participant) error
}

// AuditRecorder is the audit sink. Recording is best-effort; see audit.Recorder.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Service orchestrates participant operations.
type Service struct {
	store    Store
	recorder AuditRecorder
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(store Store, recorder AuditRecorder, opts ...Option) *Service {
	s := &Service{
		store:    store,
		recorder: recorder,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns one participant through the blinding gate. The returned value
// is the full record only when the participant is already unblinded;
// otherwise it is the structurally blinded view. Callers hand the result
// straight to JSON serialization.
func (s *Service) Get(ctx context.Context, participantID id.ParticipantID) (any, error) {
	p, err := s.load(ctx, participantID)
	if err != nil {
		return nil, err
	}
	if p.IsUnblinded {
		return p, nil
	}
	return p.Blinded(), nil
}

// ListByTrial returns a trial's participants, always blinded. Study-wide
// unblinding does not change listings; reveals go through explicit reads.
func (s *Service) ListByTrial(ctx context.Context, trialID id.TrialID) ([]models.BlindedParticipant, error) {
	participants, err := s.store.ListByTrial(ctx, trialID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list participants")
	}
	blinded := make([]models.BlindedParticipant, len(participants))
	for i, p := range participants {
		blinded[i] = p.Blinded()
	}
	return blinded, nil
}

// Withdraw marks a participant withdrawn. The enrollment slot is not
// recycled; withdrawn participants still count toward trial capacity.
func (s *Service) Withdraw(ctx context.Context, participantID id.ParticipantID) (models.BlindedParticipant, error) {
	var none models.BlindedParticipant

	p, err := s.load(ctx, participantID)
	if err != nil {
		return none, err
	}
	if err := p.CanWithdraw(); err != nil {
		return none, err
	}

	p.ApplyWithdraw(requestcontext.Now(ctx))
	if err := s.store.Update(ctx, p); err != nil {
		return none, dErrors.Wrap(err, dErrors.CodeInternal, "failed to withdraw participant")
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:        requestcontext.UserID(ctx),
		Action:        audit.ActionParticipantWithdrawn,
		TrialID:       &p.TrialID,
		ParticipantID: &p.ID,
		Details: map[string]any{
			"participantCode": p.ParticipantCode,
		},
	})

	return p.Blinded(), nil
}

func (s *Service) load(ctx context.Context, participantID id.ParticipantID) (*models.Participant, error) {
	p, err := s.store.Get(ctx, participantID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "participant not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load participant")
	}
	return p, nil
}
