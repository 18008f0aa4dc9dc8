package postgres

// Schema is the full DDL for the service. Applied by integration tests and by
// operators bootstrapping a fresh database; production migrations run outside
// this binary.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
    id            UUID PRIMARY KEY,
    email         TEXT NOT NULL UNIQUE,
    name          TEXT NOT NULL,
    role          TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS trials (
    id                  UUID PRIMARY KEY,
    title               TEXT NOT NULL,
    description         TEXT NOT NULL DEFAULT '',
    status              TEXT NOT NULL,
    arms                JSONB NOT NULL,
    randomization_ratio JSONB NOT NULL,
    target_enrollment   INTEGER NOT NULL,
    is_unblinded        BOOLEAN NOT NULL DEFAULT FALSE,
    unblinded_at        TIMESTAMPTZ,
    unblinded_by        UUID,
    created_by          UUID NOT NULL,
    created_at          TIMESTAMPTZ NOT NULL,
    updated_at          TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS participants (
    id               UUID PRIMARY KEY,
    trial_id         UUID NOT NULL REFERENCES trials (id),
    participant_code TEXT NOT NULL UNIQUE,
    assigned_group   INTEGER NOT NULL,
    status           TEXT NOT NULL,
    is_unblinded     BOOLEAN NOT NULL DEFAULT FALSE,
    unblinded_at     TIMESTAMPTZ,
    unblinded_by     UUID,
    enrolled_at      TIMESTAMPTZ NOT NULL,
    updated_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_participants_trial ON participants (trial_id);

CREATE TABLE IF NOT EXISTS data_points (
    id             UUID PRIMARY KEY,
    participant_id UUID NOT NULL REFERENCES participants (id),
    trial_id       UUID NOT NULL REFERENCES trials (id),
    type           TEXT NOT NULL,
    payload        JSONB NOT NULL,
    is_alert       BOOLEAN NOT NULL,
    severity       TEXT NOT NULL,
    recorded_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_data_points_trial ON data_points (trial_id, recorded_at);
CREATE INDEX IF NOT EXISTS idx_data_points_participant ON data_points (participant_id);

CREATE TABLE IF NOT EXISTS audit_log (
    id             UUID PRIMARY KEY,
    user_id        UUID NOT NULL,
    action         TEXT NOT NULL,
    details        JSONB NOT NULL,
    ip_address     TEXT NOT NULL DEFAULT '',
    user_agent     TEXT NOT NULL DEFAULT '',
    device         TEXT NOT NULL DEFAULT '',
    trial_id       UUID,
    participant_id UUID,
    created_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_log_trial ON audit_log (trial_id, created_at);
CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log (action, created_at);
`
