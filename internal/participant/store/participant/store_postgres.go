package participant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trialgate/internal/participant/models"
	"trialgate/internal/platform/postgres"
	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/sentinel"
	txcontext "trialgate/pkg/platform/tx"
)

// PostgresStore persists participants in PostgreSQL. The unique index on
// participant_code is the authoritative uniqueness guarantee; the generator's
// existence check only reduces collision retries.
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

// exec joins a context-carried transaction when one is present, so the
// study-wide unblind cascade commits atomically.
func (s *PostgresStore) exec(ctx context.Context) execer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const participantColumns = `id, trial_id, participant_code, assigned_group, status,
	is_unblinded, unblinded_at, unblinded_by, enrolled_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, p *models.Participant) error {
	query := `
		INSERT INTO participants (` + participantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	var unblindedBy any
	if p.UnblindedBy != nil {
		unblindedBy = uuid.UUID(*p.UnblindedBy)
	}
	_, err := s.exec(ctx).ExecContext(ctx, query,
		uuid.UUID(p.ID), uuid.UUID(p.TrialID), p.ParticipantCode, p.AssignedGroup,
		string(p.Status), p.IsUnblinded, p.UnblindedAt, unblindedBy, p.EnrolledAt, p.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create participant: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, participantID id.ParticipantID) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE id = $1`
	return s.queryOne(ctx, query, uuid.UUID(participantID))
}

func (s *PostgresStore) GetByCode(ctx context.Context, code string) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE participant_code = $1`
	return s.queryOne(ctx, query, code)
}

func (s *PostgresStore) queryOne(ctx context.Context, query string, arg any) (*models.Participant, error) {
	p, err := scanParticipant(s.exec(ctx).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get participant: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) CodeExists(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := s.exec(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM participants WHERE participant_code = $1)`, code).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check participant code: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListByTrial(ctx context.Context, trialID id.TrialID) ([]*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE trial_id = $1 ORDER BY enrolled_at`
	rows, err := s.exec(ctx).QueryContext(ctx, query, uuid.UUID(trialID))
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var out []*models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CountByTrial(ctx context.Context, trialID id.TrialID) (int, error) {
	var count int
	err := s.exec(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM participants WHERE trial_id = $1`, uuid.UUID(trialID)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count participants: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Update(ctx context.Context, p *models.Participant) error {
	query := `
		UPDATE participants
		SET status = $2, is_unblinded = $3, unblinded_at = $4, unblinded_by = $5, updated_at = $6
		WHERE id = $1
	`
	var unblindedBy any
	if p.UnblindedBy != nil {
		unblindedBy = uuid.UUID(*p.UnblindedBy)
	}
	result, err := s.exec(ctx).ExecContext(ctx, query,
		uuid.UUID(p.ID), string(p.Status), p.IsUnblinded, p.UnblindedAt, unblindedBy, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update participant: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update participant rows affected: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// UnblindAll flips isUnblinded on every still-blinded participant of the
// trial in one statement and returns how many rows changed.
func (s *PostgresStore) UnblindAll(ctx context.Context, trialID id.TrialID, now time.Time, by id.UserID) (int, error) {
	query := `
		UPDATE participants
		SET is_unblinded = TRUE, unblinded_at = $2, unblinded_by = $3, updated_at = $2
		WHERE trial_id = $1 AND is_unblinded = FALSE
	`
	result, err := s.exec(ctx).ExecContext(ctx, query, uuid.UUID(trialID), now, uuid.UUID(by))
	if err != nil {
		return 0, fmt.Errorf("unblind participants: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("unblind participants rows affected: %w", err)
	}
	return int(affected), nil
}

type participantRow interface {
	Scan(dest ...any) error
}

func scanParticipant(row participantRow) (*models.Participant, error) {
	var p models.Participant
	var participantID, trialID uuid.UUID
	var status string
	var unblindedAt sql.NullTime
	var unblindedBy uuid.NullUUID

	if err := row.Scan(&participantID, &trialID, &p.ParticipantCode, &p.AssignedGroup,
		&status, &p.IsUnblinded, &unblindedAt, &unblindedBy, &p.EnrolledAt, &p.UpdatedAt); err != nil {
		return nil, err
	}

	p.ID = id.ParticipantID(participantID)
	p.TrialID = id.TrialID(trialID)
	p.Status = models.Status(status)
	if unblindedAt.Valid {
		p.UnblindedAt = &unblindedAt.Time
	}
	if unblindedBy.Valid {
		by := id.UserID(unblindedBy.UUID)
		p.UnblindedBy = &by
	}
	return &p, nil
}
