package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"trialgate/internal/platform/postgres"
	"trialgate/internal/user/models"
	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/sentinel"
)

// PostgresStore persists user accounts in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const userColumns = `id, email, name, role, password_hash, created_at`

func (s *PostgresStore) Create(ctx context.Context, u *models.User) error {
	query := `INSERT INTO users (` + userColumns + `) VALUES ($1, LOWER($2), $3, $4, $5, $6)`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(u.ID), u.Email, u.Name, string(u.Role), u.PasswordHash, u.CreatedAt)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, userID id.UserID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return s.queryOne(ctx, query, uuid.UUID(userID))
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = LOWER($1)`
	return s.queryOne(ctx, query, email)
}

func (s *PostgresStore) queryOne(ctx context.Context, query string, arg any) (*models.User, error) {
	var u models.User
	var userID uuid.UUID
	var role string
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&userID, &u.Email, &u.Name, &role, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.ID = id.UserID(userID)
	u.Role = models.Role(role)
	return &u, nil
}
