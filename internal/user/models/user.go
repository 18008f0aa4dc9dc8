// Package models defines user accounts and roles.
package models

import (
	"net/mail"
	"time"

	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
)

// Role controls what a user may do. Admins manage trials and run unblinds;
// investigators operate enrollment and data review.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleInvestigator Role = "investigator"
)

// ParseRole validates an external role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleInvestigator:
		return Role(s), nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "role must be one of admin, investigator")
}

// User is an account. PasswordHash never crosses the JSON boundary.
type User struct {
	ID           id.UserID `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	Role         Role      `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
}

// NewUser validates and constructs an account. The caller hashes the password.
func NewUser(userID id.UserID, email, name string, role Role, passwordHash string, now time.Time) (*User, error) {
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, "email is not valid")
	}
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "name is required")
	}
	return &User{
		ID:           userID,
		Email:        email,
		Name:         name,
		Role:         role,
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}, nil
}
