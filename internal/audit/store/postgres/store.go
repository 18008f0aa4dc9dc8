// Package postgres persists audit entries. The table is append-only; there is
// deliberately no update or delete path.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"trialgate/internal/audit"
	id "trialgate/pkg/domain"
)

// Store implements audit.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("marshal audit details: %w", err)
	}

	var trialID, participantID any
	if entry.TrialID != nil {
		trialID = entry.TrialID.String()
	}
	if entry.ParticipantID != nil {
		participantID = entry.ParticipantID.String()
	}

	query := `
		INSERT INTO audit_log (id, user_id, action, details, ip_address, user_agent, device, trial_id, participant_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.db.ExecContext(ctx, query,
		entry.ID,
		uuid.UUID(entry.UserID),
		string(entry.Action),
		details,
		entry.IPAddress,
		entry.UserAgent,
		entry.Device,
		trialID,
		participantID,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	query := `
		SELECT id, user_id, action, details, ip_address, user_agent, device, trial_id, participant_id, created_at
		FROM audit_log
		WHERE ($1 = '' OR action = $1)
		  AND ($2::uuid IS NULL OR trial_id = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	var trialID any
	if !filter.TrialID.IsNil() {
		trialID = filter.TrialID.String()
	}

	rows, err := s.db.QueryContext(ctx, query, string(filter.Action), trialID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}

type entryRow interface {
	Scan(dest ...any) error
}

func scanEntry(row entryRow) (*audit.Entry, error) {
	var entry audit.Entry
	var userID uuid.UUID
	var action string
	var details []byte
	var trialID, participantID sql.NullString

	if err := row.Scan(&entry.ID, &userID, &action, &details,
		&entry.IPAddress, &entry.UserAgent, &entry.Device,
		&trialID, &participantID, &entry.Timestamp); err != nil {
		return nil, err
	}

	entry.UserID = id.UserID(userID)
	entry.Action = audit.Action(action)
	if err := json.Unmarshal(details, &entry.Details); err != nil {
		return nil, fmt.Errorf("unmarshal audit details: %w", err)
	}
	if trialID.Valid {
		parsed, err := id.ParseTrialID(trialID.String)
		if err != nil {
			return nil, err
		}
		entry.TrialID = &parsed
	}
	if participantID.Valid {
		parsed, err := id.ParseParticipantID(participantID.String)
		if err != nil {
			return nil, err
		}
		entry.ParticipantID = &parsed
	}
	return &entry, nil
}
