package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"trialgate/internal/unblinding"
	unblindinghandler "trialgate/internal/unblinding/handler"
	id "trialgate/pkg/domain"
	dErrors "trialgate/pkg/domain-errors"
	txcontext "trialgate/pkg/platform/tx"
)

const defaultUnblindTxTimeout = 10 * time.Second

// unblindPostgresTx wraps the unblinding service so the study-wide reveal
// (trial flag plus the participant cascade) commits or rolls back as one
// transaction. Audit writes go through a separate connection and survive a
// rollback, so denied attempts stay on record.
type unblindPostgresTx struct {
	db      *sql.DB
	inner   unblindinghandler.Service
	timeout time.Duration
}

func newUnblindPostgresTx(db *sql.DB, inner unblindinghandler.Service) *unblindPostgresTx {
	return &unblindPostgresTx{db: db, inner: inner}
}

func (t *unblindPostgresTx) UnblindParticipant(ctx context.Context, participantID id.ParticipantID, reason string) (*unblinding.ParticipantResult, error) {
	return t.inner.UnblindParticipant(ctx, participantID, reason)
}

func (t *unblindPostgresTx) UnblindStudy(ctx context.Context, trialID id.TrialID, reason, confirmation string) (*unblinding.StudyResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultUnblindTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin unblind transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	result, err := t.inner.UnblindStudy(txcontext.WithTx(ctx, tx), trialID, reason, confirmation)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit unblind transaction: %w", err)
	}
	return result, nil
}
