// Package service implements account registration and login.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"trialgate/internal/audit"
	jwttoken "trialgate/internal/jwt_token"
	"trialgate/internal/user/models"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	"trialgate/pkg/platform/sentinel"
	"trialgate/pkg/requestcontext"
)

const (
	minPasswordLength = 8
	accessTokenTTL    = 12 * time.Hour
)

// Store is the persistence interface the service needs.
type Store interface {
	Create(ctx context.Context, u *models.User) error
	Get(ctx context.Context, userID id.UserID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// AuditRecorder is the audit sink. Recording is best-effort; see audit.Recorder.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Service handles registration and login.
type Service struct {
	store    Store
	tokens   *jwttoken.JWTService
	recorder AuditRecorder
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(store Store, tokens *jwttoken.JWTService, recorder AuditRecorder, opts ...Option) *Service {
	s := &Service{
		store:    store,
		tokens:   tokens,
		recorder: recorder,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates an account and returns it with a fresh access token.
func (s *Service) Register(ctx context.Context, email, name, password, role string) (*models.User, string, error) {
	parsedRole, err := models.ParseRole(role)
	if err != nil {
		return nil, "", err
	}
	if len(password) < minPasswordLength {
		return nil, "", dErrors.New(dErrors.CodeValidation, "password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	user, err := models.NewUser(id.UserID(uuid.New()), email, name, parsedRole,
		string(hash), requestcontext.Now(ctx))
	if err != nil {
		return nil, "", err
	}

	if err := s.store.Create(ctx, user); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, "", dErrors.New(dErrors.CodeConflict, "email is already registered")
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
	}

	token, err := s.tokens.GenerateAccessToken(uuid.UUID(user.ID), string(user.Role), accessTokenTTL)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID: user.ID,
		Action: audit.ActionUserCreated,
		Details: map[string]any{
			"email": user.Email,
			"role":  string(user.Role),
		},
	})

	return user, token, nil
}

// Login verifies credentials and returns the account with an access token.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, string, error) {
	invalid := dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")

	user, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, "", invalid
		}
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to load user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "failed login attempt",
			"email", email,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, "", invalid
	}

	token, err := s.tokens.GenerateAccessToken(uuid.UUID(user.ID), string(user.Role), accessTokenTTL)
	if err != nil {
		return nil, "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}

	s.recorder.Record(ctx, audit.Entry{
		UserID: user.ID,
		Action: audit.ActionUserLogin,
		Details: map[string]any{
			"email": user.Email,
		},
	})

	return user, token, nil
}
