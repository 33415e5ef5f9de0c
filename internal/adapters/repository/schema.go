package repository

import (
	"context"
	"database/sql"
)

// Schema creates every table the pulse service reads or writes. It is
// idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS users (
	id             VARCHAR(36) PRIMARY KEY,
	email          VARCHAR(255) NOT NULL UNIQUE,
	is_active      BOOLEAN NOT NULL DEFAULT TRUE,
	is_deceased    BOOLEAN NOT NULL DEFAULT FALSE,
	last_active_at TIMESTAMPTZ,
	fcm_token      TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS monitoring_policies (
	user_id                  VARCHAR(36) PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
	threshold_hours          INT NOT NULL DEFAULT 12 CHECK (threshold_hours BETWEEN 1 AND 168),
	quiet_start              TIME NOT NULL DEFAULT '23:00',
	quiet_end                TIME NOT NULL DEFAULT '07:00',
	escalation_enabled       BOOLEAN NOT NULL DEFAULT TRUE,
	escalation_delay_minutes INT NOT NULL DEFAULT 60 CHECK (escalation_delay_minutes BETWEEN 0 AND 1440),
	is_active                BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS pulse_events (
	id                   VARCHAR(36) PRIMARY KEY,
	user_id              VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	status               VARCHAR(16) NOT NULL,
	stage                VARCHAR(16) NOT NULL,
	created_at           TIMESTAMPTZ NOT NULL,
	soft_check_sent_at   TIMESTAMPTZ,
	guardian_notified_at TIMESTAMPTZ,
	resolved_at          TIMESTAMPTZ,
	resolved_by          VARCHAR(36),
	resolution_method    VARCHAR(32)
);

-- At most one OPEN event per user, whatever the callers do.
CREATE UNIQUE INDEX IF NOT EXISTS pulse_events_one_open
	ON pulse_events (user_id) WHERE status = 'open';
CREATE INDEX IF NOT EXISTS pulse_events_user_created
	ON pulse_events (user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS guardians (
	id          VARCHAR(36) PRIMARY KEY,
	ward_id     VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	guardian_id VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	alias       VARCHAR(100),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CONSTRAINT guardians_pair_unique UNIQUE (ward_id, guardian_id),
	CONSTRAINT guardians_not_self CHECK (ward_id <> guardian_id)
);

CREATE TABLE IF NOT EXISTS activity_signals (
	id          VARCHAR(36) PRIMARY KEY,
	user_id     VARCHAR(36) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
	signal_type VARCHAR(32) NOT NULL,
	timestamp   TIMESTAMPTZ NOT NULL,
	device_info VARCHAR(255)
);
CREATE INDEX IF NOT EXISTS activity_signals_user_ts
	ON activity_signals (user_id, timestamp DESC);

CREATE TABLE IF NOT EXISTS outbox_events (
	id             VARCHAR(36) PRIMARY KEY,
	aggregate_type VARCHAR(50) NOT NULL,
	aggregate_id   VARCHAR(36) NOT NULL,
	event_type     VARCHAR(50) NOT NULL,
	payload        JSONB NOT NULL,
	created_at     TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	processed_at   TIMESTAMP
);

CREATE OR REPLACE FUNCTION notify_outbox_insert()
RETURNS TRIGGER AS $$
BEGIN
	PERFORM pg_notify('outbox_channel', NEW.id::text);
	RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS outbox_notify_trigger ON outbox_events;
CREATE TRIGGER outbox_notify_trigger
AFTER INSERT ON outbox_events
FOR EACH ROW
EXECUTE FUNCTION notify_outbox_insert();
`

// Migrate applies Schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, Schema)
	return err
}
