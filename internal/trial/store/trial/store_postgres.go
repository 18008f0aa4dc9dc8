package trial

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"trialgate/internal/trial/models"
	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/sentinel"
	txcontext "trialgate/pkg/platform/tx"
)

// PostgresStore persists trials in PostgreSQL.
// Pure I/O: all lifecycle and blinding rules live in the services.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) exec(ctx context.Context) execer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const trialColumns = `id, title, description, status, arms, randomization_ratio, target_enrollment,
	is_unblinded, unblinded_at, unblinded_by, created_by, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, t *models.Trial) error {
	arms, ratio, err := marshalArms(t)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO trials (` + trialColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = s.exec(ctx).ExecContext(ctx, query,
		uuid.UUID(t.ID), t.Title, t.Description, string(t.Status), arms, ratio,
		t.TargetEnrollment, t.IsUnblinded, t.UnblindedAt, nullableUser(t.UnblindedBy),
		uuid.UUID(t.CreatedBy), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create trial: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, trialID id.TrialID) (*models.Trial, error) {
	query := `SELECT ` + trialColumns + ` FROM trials WHERE id = $1`
	t, err := scanTrial(s.exec(ctx).QueryRowContext(ctx, query, uuid.UUID(trialID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get trial: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*models.Trial, error) {
	query := `SELECT ` + trialColumns + ` FROM trials ORDER BY created_at DESC`
	rows, err := s.exec(ctx).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list trials: %w", err)
	}
	defer rows.Close()

	var trials []*models.Trial
	for rows.Next() {
		t, err := scanTrial(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trial: %w", err)
		}
		trials = append(trials, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trials: %w", err)
	}
	return trials, nil
}

func (s *PostgresStore) Update(ctx context.Context, t *models.Trial) error {
	arms, ratio, err := marshalArms(t)
	if err != nil {
		return err
	}
	query := `
		UPDATE trials
		SET title = $2, description = $3, status = $4, arms = $5, randomization_ratio = $6,
			target_enrollment = $7, is_unblinded = $8, unblinded_at = $9, unblinded_by = $10,
			updated_at = $11
		WHERE id = $1
	`
	result, err := s.exec(ctx).ExecContext(ctx, query,
		uuid.UUID(t.ID), t.Title, t.Description, string(t.Status), arms, ratio,
		t.TargetEnrollment, t.IsUnblinded, t.UnblindedAt, nullableUser(t.UnblindedBy),
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update trial: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update trial rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func marshalArms(t *models.Trial) ([]byte, []byte, error) {
	arms, err := json.Marshal(t.Arms)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal arms: %w", err)
	}
	ratio, err := json.Marshal(t.RandomizationRatio)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal ratio: %w", err)
	}
	return arms, ratio, nil
}

func nullableUser(u *id.UserID) any {
	if u == nil {
		return nil
	}
	return uuid.UUID(*u)
}

type trialRow interface {
	Scan(dest ...any) error
}

func scanTrial(row trialRow) (*models.Trial, error) {
	var t models.Trial
	var trialID, createdBy uuid.UUID
	var status string
	var arms, ratio []byte
	var unblindedAt sql.NullTime
	var unblindedBy uuid.NullUUID

	if err := row.Scan(&trialID, &t.Title, &t.Description, &status, &arms, &ratio,
		&t.TargetEnrollment, &t.IsUnblinded, &unblindedAt, &unblindedBy,
		&createdBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}

	t.ID = id.TrialID(trialID)
	t.CreatedBy = id.UserID(createdBy)
	t.Status = models.Status(status)
	if err := json.Unmarshal(arms, &t.Arms); err != nil {
		return nil, fmt.Errorf("unmarshal arms: %w", err)
	}
	if err := json.Unmarshal(ratio, &t.RandomizationRatio); err != nil {
		return nil, fmt.Errorf("unmarshal ratio: %w", err)
	}
	if unblindedAt.Valid {
		t.UnblindedAt = &unblindedAt.Time
	}
	if unblindedBy.Valid {
		by := id.UserID(unblindedBy.UUID)
		t.UnblindedBy = &by
	}
	return &t, nil
}
