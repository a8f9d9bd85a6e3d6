package database

import "time"

// Alert is a fired threshold alert. Rows are append-only.
type Alert struct {
	ID            string    `json:"id"`
	RuleName      string    `json:"rule_name"`
	ServiceName   string    `json:"service_name,omitempty"`
	Severity      string    `json:"severity,omitempty"`
	Count         int64     `json:"count"`
	Threshold     int       `json:"threshold"`
	WindowSeconds int       `json:"window_seconds"`
	Message       string    `json:"message"`
	TriggeredAt   time.Time `json:"triggered_at"`
	CreatedAt     time.Time `json:"created_at"`
}

// AlertListResult contains paginated alert results.
type AlertListResult struct {
	Alerts []*Alert `json:"alerts"`
	Total  int64    `json:"total"`
	Limit  int      `json:"limit"`
	Offset int      `json:"offset"`
}
