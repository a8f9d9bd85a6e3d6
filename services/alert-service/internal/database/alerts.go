package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const alertColumns = `id, rule_name, service_name, severity, count, threshold, window_seconds, message, triggered_at, created_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(s rowScanner) (*Alert, error) {
	var a Alert
	var service, severity sql.NullString
	if err := s.Scan(
		&a.ID,
		&a.RuleName,
		&service,
		&severity,
		&a.Count,
		&a.Threshold,
		&a.WindowSeconds,
		&a.Message,
		&a.TriggeredAt,
		&a.CreatedAt,
	); err != nil {
		return nil, err
	}
	a.ServiceName = service.String
	a.Severity = severity.String
	return &a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// SaveAlert inserts a new alert. ID and CreatedAt are filled in when empty.
func (db *DB) SaveAlert(ctx context.Context, alert *Alert) error {
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := db.conn.ExecContext(ctx, query,
		alert.ID,
		alert.RuleName,
		nullString(alert.ServiceName),
		nullString(alert.Severity),
		alert.Count,
		alert.Threshold,
		alert.WindowSeconds,
		alert.Message,
		alert.TriggeredAt,
		alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save alert for rule %s: %w", alert.RuleName, err)
	}
	return nil
}

// MostRecentAlert returns the latest alert for ruleName triggered strictly after since,
// or nil when there is none.
func (db *DB) MostRecentAlert(ctx context.Context, ruleName string, since time.Time) (*Alert, error) {
	query := `
		SELECT ` + alertColumns + `
		FROM alerts
		WHERE rule_name = $1 AND triggered_at > $2
		ORDER BY triggered_at DESC
		LIMIT 1
	`
	alert, err := scanAlert(db.conn.QueryRowContext(ctx, query, ruleName, since))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find recent alert for rule %s: %w", ruleName, err)
	}
	return alert, nil
}

// ListAlerts returns alerts newest first, optionally filtered by rule name.
func (db *DB) ListAlerts(ctx context.Context, ruleName *string, limit, offset int) (*AlertListResult, error) {
	where := ""
	args := []any{}
	if ruleName != nil {
		where = "WHERE rule_name = $1"
		args = append(args, *ruleName)
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM alerts ` + where
	if err := db.conn.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count alerts: %w", err)
	}

	n := len(args)
	query := fmt.Sprintf(`
		SELECT %s
		FROM alerts
		%s
		ORDER BY triggered_at DESC
		LIMIT $%d OFFSET $%d
	`, alertColumns, where, n+1, n+2)
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	alerts := []*Alert{}
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}

	return &AlertListResult{
		Alerts: alerts,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	}, nil
}
