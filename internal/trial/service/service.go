// Package service implements trial lifecycle operations: creation, listing,
// metadata updates, and caller-driven status transitions. Unblinding is NOT
// here; that belongs exclusively to the unblinding workflow.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"trialgate/internal/audit"
	"trialgate/internal/trial/models"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/platform/sentinel"
	"trialgate/pkg/requestcontext"
)

// Store is the persistence interface the service needs.
type Store interface {
	Create(ctx context.Context, t *models.Trial) error
	Get(ctx context.Context, trialID id.TrialID) (*models.Trial, error)
	List(ctx context.Context) ([]*models.Trial, error)
	Update(ctx context.Context, t *models.Trial) error
}

// AuditRecorder is the audit sink. Recording is best-effort; see audit.Recorder.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Service orchestrates trial operations.
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

// CreateInput carries validated trial creation fields.
type CreateInput struct {
	Title              string
	Description        string
	Arms               []models.Arm
	RandomizationRatio []int
	TargetEnrollment   int
}

// Create builds a draft trial. A missing target defaults to 100 and a missing
// ratio defaults to equal weights, one per arm.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Trial, error) {
	actor := requestcontext.UserID(ctx)
	now := requestcontext.Now(ctx)

	target := input.TargetEnrollment
	if target == 0 {
		target = 100
	}
	ratio := input.RandomizationRatio
	if len(ratio) == 0 {
		ratio = make([]int, len(input.Arms))
		for i := range ratio {
			ratio[i] = 1
		}
	}

	trial, err := models.NewTrial(id.TrialID(uuid.New()), input.Title, input.Description,
		input.Arms, ratio, target, actor, now)
	if err != nil {
		return nil, err
	}

	if err := s.store.Create(ctx, trial); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create trial")
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:  actor,
		Action:  audit.ActionTrialCreated,
		TrialID: &trial.ID,
		Details: map[string]any{
			"title":            trial.Title,
			"arms":             len(trial.Arms),
			"targetEnrollment": trial.TargetEnrollment,
		},
	})

	return trial, nil
}

// Get returns one trial.
func (s *Service) Get(ctx context.Context, trialID id.TrialID) (*models.Trial, error) {
	trial, err := s.store.Get(ctx, trialID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "trial not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load trial")
	}
	return trial, nil
}

// List returns all trials, newest first.
func (s *Service) List(ctx context.Context) ([]*models.Trial, error) {
	trials, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list trials")
	}
	return trials, nil
}

// ChangeStatus applies a caller-driven lifecycle transition.
func (s *Service) ChangeStatus(ctx context.Context, trialID id.TrialID, target models.Status) (*models.Trial, error) {
	trial, err := s.Get(ctx, trialID)
	if err != nil {
		return nil, err
	}

	if err := trial.CanChangeStatusTo(target); err != nil {
		return nil, err
	}

	from := trial.Status
	trial.ApplyStatus(target, requestcontext.Now(ctx))

	if err := s.store.Update(ctx, trial); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update trial status")
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:  requestcontext.UserID(ctx),
		Action:  audit.ActionTrialStatusChanged,
		TrialID: &trial.ID,
		Details: map[string]any{
			"from": string(from),
			"to":   string(target),
		},
	})

	return trial, nil
}

// UpdateInput carries optional metadata changes; nil fields are left untouched.
type UpdateInput struct {
	Title            *string
	Description      *string
	TargetEnrollment *int
}

// Update edits trial metadata. Arms and ratio are immutable once created;
// enrollment correctness depends on the arm indexes staying stable.
func (s *Service) Update(ctx context.Context, trialID id.TrialID, input UpdateInput) (*models.Trial, error) {
	trial, err := s.Get(ctx, trialID)
	if err != nil {
		return nil, err
	}

	changed := map[string]any{}
	if input.Title != nil {
		if *input.Title == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "title is required")
		}
		trial.Title = *input.Title
		changed["title"] = *input.Title
	}
	if input.Description != nil {
		trial.Description = *input.Description
		changed["description"] = true
	}
	if input.TargetEnrollment != nil {
		if *input.TargetEnrollment <= 0 {
			return nil, dErrors.New(dErrors.CodeValidation, "targetEnrollment must be positive")
		}
		trial.TargetEnrollment = *input.TargetEnrollment
		changed["targetEnrollment"] = *input.TargetEnrollment
	}
	if len(changed) == 0 {
		return trial, nil
	}

	trial.UpdatedAt = requestcontext.Now(ctx)
	if err := s.store.Update(ctx, trial); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update trial")
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID:  requestcontext.UserID(ctx),
		Action:  audit.ActionTrialUpdated,
		TrialID: &trial.ID,
		Details: changed,
	})

	return trial, nil
}
