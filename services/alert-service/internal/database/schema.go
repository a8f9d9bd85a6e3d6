package database

// schemaSQL is idempotent. The (rule_name, triggered_at DESC) index serves the cooldown lookup.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS alerts (
	id             UUID PRIMARY KEY,
	rule_name      TEXT        NOT NULL,
	service_name   TEXT        NULL,
	severity       TEXT        NULL,
	count          BIGINT      NOT NULL,
	threshold      INTEGER     NOT NULL,
	window_seconds INTEGER     NOT NULL,
	message        TEXT        NOT NULL,
	triggered_at   TIMESTAMPTZ NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_alerts_rule_name_triggered_at ON alerts (rule_name, triggered_at DESC);
CREATE INDEX IF NOT EXISTS idx_alerts_triggered_at ON alerts (triggered_at DESC);
`
