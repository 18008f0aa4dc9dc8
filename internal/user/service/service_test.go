package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"trialgate/internal/audit"
	auditmemory "trialgate/internal/audit/store/memory"
	jwttoken "trialgate/internal/jwt_token"
	userstore "trialgate/internal/user/store/user"
	dErrors "trialgate/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	store      *userstore.MemoryStore
	auditStore *auditmemory.Store
	service    *Service
	ctx        context.Context
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.store = userstore.NewMemory()
	s.auditStore = auditmemory.New()
	tokens := jwttoken.NewJWTService("test-signing-key", "trialgate", "trialgate")
	s.service = New(s.store, tokens, audit.NewRecorder(s.auditStore))
	s.ctx = context.Background()
}

func (s *ServiceSuite) TestRegister() {
	user, token, err := s.service.Register(s.ctx, "dr.chen@example.org", "Dr. Chen", "correct-horse", "investigator")
	s.Require().NoError(err)
	s.NotEmpty(token)
	s.Equal("dr.chen@example.org", user.Email)
	s.NotEqual("correct-horse", user.PasswordHash)

	entries, err := s.auditStore.List(s.ctx, audit.Filter{Action: audit.ActionUserCreated})
	s.Require().NoError(err)
	s.Len(entries, 1)
}

func (s *ServiceSuite) TestRegisterValidation() {
	cases := []struct {
		name     string
		email    string
		userName string
		password string
		role     string
	}{
		{"bad email", "not-an-email", "Dr. Chen", "correct-horse", "admin"},
		{"short password", "dr.chen@example.org", "Dr. Chen", "short", "admin"},
		{"unknown role", "dr.chen@example.org", "Dr. Chen", "correct-horse", "superuser"},
		{"missing name", "dr.chen@example.org", "", "correct-horse", "admin"},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			_, _, err := s.service.Register(s.ctx, tc.email, tc.userName, tc.password, tc.role)
			s.Require().Error(err)
			s.True(dErrors.HasCode(err, dErrors.CodeValidation))
		})
	}
}

func (s *ServiceSuite) TestRegisterDuplicateEmail() {
	_, _, err := s.service.Register(s.ctx, "dr.chen@example.org", "Dr. Chen", "correct-horse", "admin")
	s.Require().NoError(err)

	_, _, err = s.service.Register(s.ctx, "DR.CHEN@example.org", "Imposter", "correct-horse", "admin")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeConflict))
}

func (s *ServiceSuite) TestLogin() {
	registered, _, err := s.service.Register(s.ctx, "dr.chen@example.org", "Dr. Chen", "correct-horse", "admin")
	s.Require().NoError(err)

	user, token, err := s.service.Login(s.ctx, "dr.chen@example.org", "correct-horse")
	s.Require().NoError(err)
	s.Equal(registered.ID, user.ID)
	s.NotEmpty(token)

	entries, err := s.auditStore.List(s.ctx, audit.Filter{Action: audit.ActionUserLogin})
	s.Require().NoError(err)
	s.Len(entries, 1)
}

func (s *ServiceSuite) TestLoginRejectsBadCredentials() {
	_, _, err := s.service.Register(s.ctx, "dr.chen@example.org", "Dr. Chen", "correct-horse", "admin")
	s.Require().NoError(err)

	_, _, err = s.service.Login(s.ctx, "dr.chen@example.org", "wrong-password")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	_, _, wrongEmail := s.service.Login(s.ctx, "nobody@example.org", "correct-horse")
	s.Require().Error(wrongEmail)
	s.True(dErrors.HasCode(wrongEmail, dErrors.CodeUnauthorized))

	// The two failures are indistinguishable.
	s.Equal(err.Error(), wrongEmail.Error())
}
