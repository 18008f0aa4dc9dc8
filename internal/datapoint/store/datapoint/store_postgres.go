package datapoint

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"trialgate/internal/datapoint/models"
	"trialgate/internal/platform/postgres"
	id "trialgate/pkg/domain"
	"trialgate/pkg/platform/sentinel"
)

// PostgresStore persists data points in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const dataPointColumns = `id, participant_id, trial_id, type, payload, recorded_at, is_alert, severity`

func (s *PostgresStore) Create(ctx context.Context, dp *models.DataPoint) error {
	query := `
		INSERT INTO data_points (` + dataPointColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(dp.ID), uuid.UUID(dp.ParticipantID), uuid.UUID(dp.TrialID),
		string(dp.Type), []byte(dp.Payload), dp.Timestamp, dp.IsAlert, string(dp.Severity),
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("create data point: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByParticipant(ctx context.Context, participantID id.ParticipantID) ([]*models.DataPoint, error) {
	query := `SELECT ` + dataPointColumns + ` FROM data_points WHERE participant_id = $1 ORDER BY recorded_at DESC`
	return s.list(ctx, query, uuid.UUID(participantID))
}

// ListByTrial applies the optional filters in SQL. Empty filter fields are
// neutralized with the $n = '' / $n IS NULL pattern so one query serves all
// combinations.
func (s *PostgresStore) ListByTrial(ctx context.Context, trialID id.TrialID, filter models.Filter) ([]*models.DataPoint, error) {
	query := `
		SELECT ` + dataPointColumns + `
		FROM data_points
		WHERE trial_id = $1
		  AND ($2 = '' OR type = $2)
		  AND (NOT $3 OR is_alert)
		  AND ($4::timestamptz IS NULL OR recorded_at >= $4)
		ORDER BY recorded_at DESC
	`
	var since any
	if !filter.Since.IsZero() {
		since = filter.Since
	}
	return s.list(ctx, query, uuid.UUID(trialID), string(filter.Type), filter.AlertsOnly, since)
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.DataPoint, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list data points: %w", err)
	}
	defer rows.Close()

	var out []*models.DataPoint
	for rows.Next() {
		dp, err := scanDataPoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan data point: %w", err)
		}
		out = append(out, dp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate data points: %w", err)
	}
	return out, nil
}

type dataPointRow interface {
	Scan(dest ...any) error
}

func scanDataPoint(row dataPointRow) (*models.DataPoint, error) {
	var dp models.DataPoint
	var pointID, participantID, trialID uuid.UUID
	var typ, severity string
	var payload []byte

	if err := row.Scan(&pointID, &participantID, &trialID, &typ, &payload,
		&dp.Timestamp, &dp.IsAlert, &severity); err != nil {
		return nil, err
	}

	dp.ID = id.DataPointID(pointID)
	dp.ParticipantID = id.ParticipantID(participantID)
	dp.TrialID = id.TrialID(trialID)
	dp.Type = models.Type(typ)
	dp.Severity = models.Severity(severity)
	dp.Payload = payload
	return &dp, nil
}
