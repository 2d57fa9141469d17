package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stackspy/stackspy/internal/alerts"
)

// AlertFilter narrows alert history queries. Zero values mean "no filter".
type AlertFilter struct {
	ToolID         string
	Severity       alerts.Severity
	Unacknowledged bool
	Limit          int
}

// SaveAlert persists a fired alert
func (s *SQLiteStorage) SaveAlert(ctx context.Context, alert *alerts.Alert) error {
	changes, err := json.Marshal(alert.Changes)
	if err != nil {
		return fmt.Errorf("failed to marshal changes: %w", err)
	}
	metadata, err := json.Marshal(alert.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	channels, err := json.Marshal(alert.Channels)
	if err != nil {
		return fmt.Errorf("failed to marshal channels: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alerts (id, tool_id, tool_name, alert_type, severity, title, message, changes, metadata, created_at, channels, acknowledged_by, acknowledged_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, alert.ID, alert.ToolID, alert.ToolName, alert.AlertType, string(alert.Severity),
		alert.Title, alert.Message, string(changes), string(metadata),
		alert.CreatedAt, string(channels), alert.AcknowledgedBy, nullableTime(alert.AcknowledgedAt))
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// GetAlert retrieves an alert by ID
func (s *SQLiteStorage) GetAlert(ctx context.Context, id string) (*alerts.Alert, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tool_id, tool_name, alert_type, severity, title, message, changes, metadata, created_at, channels, acknowledged_by, acknowledged_at
		FROM alerts WHERE id = ?
	`, id)

	alert, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("alert not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	return alert, nil
}

// ListAlerts returns alert history matching the filter, newest first
func (s *SQLiteStorage) ListAlerts(ctx context.Context, filter AlertFilter) ([]*alerts.Alert, error) {
	query := `
		SELECT id, tool_id, tool_name, alert_type, severity, title, message, changes, metadata, created_at, channels, acknowledged_by, acknowledged_at
		FROM alerts WHERE 1=1`
	var args []interface{}

	if filter.ToolID != "" {
		query += " AND tool_id = ?"
		args = append(args, filter.ToolID)
	}
	if filter.Severity != "" {
		query += " AND severity = ?"
		args = append(args, string(filter.Severity))
	}
	if filter.Unacknowledged {
		query += " AND acknowledged_at IS NULL"
	}
	query += " ORDER BY created_at DESC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var out []*alerts.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		out = append(out, alert)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}
	return out, nil
}

// AcknowledgeAlert marks an alert as acknowledged by a user
func (s *SQLiteStorage) AcknowledgeAlert(ctx context.Context, id, user string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET acknowledged_by = ?, acknowledged_at = ?
		WHERE id = ? AND acknowledged_at IS NULL
	`, user, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("alert not found or already acknowledged: %s", id)
	}
	return nil
}

// SaveRule upserts an alert rule definition
func (s *SQLiteStorage) SaveRule(ctx context.Context, rule *alerts.AlertRule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("invalid rule: %w", err)
	}
	if rule.ID == "" {
		return fmt.Errorf("rule id is required")
	}

	changeTypes, err := json.Marshal(rule.ChangeTypes)
	if err != nil {
		return fmt.Errorf("failed to marshal change types: %w", err)
	}
	priorities, err := json.Marshal(rule.ToolPriorities)
	if err != nil {
		return fmt.Errorf("failed to marshal priorities: %w", err)
	}
	channels, err := json.Marshal(rule.Channels)
	if err != nil {
		return fmt.Errorf("failed to marshal channels: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO alert_rules (id, name, change_types, severity_threshold, tool_priorities, cooldown_ns, channels, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			change_types = excluded.change_types,
			severity_threshold = excluded.severity_threshold,
			tool_priorities = excluded.tool_priorities,
			cooldown_ns = excluded.cooldown_ns,
			channels = excluded.channels,
			is_active = excluded.is_active
	`, rule.ID, rule.Name, string(changeTypes), string(rule.SeverityThreshold),
		string(priorities), int64(rule.Cooldown), string(channels), boolToInt(rule.Active))
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

// ListRules returns all stored alert rules ordered by name
func (s *SQLiteStorage) ListRules(ctx context.Context) ([]*alerts.AlertRule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, change_types, severity_threshold, tool_priorities, cooldown_ns, channels, is_active
		FROM alert_rules ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var rules []*alerts.AlertRule
	for rows.Next() {
		var rule alerts.AlertRule
		var changeTypes, priorities, channels string
		var severity string
		var cooldownNS int64
		var active int

		if err := rows.Scan(&rule.ID, &rule.Name, &changeTypes, &severity,
			&priorities, &cooldownNS, &channels, &active); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}

		if err := json.Unmarshal([]byte(changeTypes), &rule.ChangeTypes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal change types: %w", err)
		}
		if err := json.Unmarshal([]byte(priorities), &rule.ToolPriorities); err != nil {
			return nil, fmt.Errorf("failed to unmarshal priorities: %w", err)
		}
		if err := json.Unmarshal([]byte(channels), &rule.Channels); err != nil {
			return nil, fmt.Errorf("failed to unmarshal channels: %w", err)
		}
		rule.SeverityThreshold = alerts.Severity(severity)
		rule.Cooldown = time.Duration(cooldownNS)
		rule.Active = active != 0
		rules = append(rules, &rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rules: %w", err)
	}
	return rules, nil
}

func scanAlert(row scanner) (*alerts.Alert, error) {
	var alert alerts.Alert
	var severity string
	var changes, metadata, channels sql.NullString
	var ackAt sql.NullTime

	err := row.Scan(&alert.ID, &alert.ToolID, &alert.ToolName, &alert.AlertType,
		&severity, &alert.Title, &alert.Message, &changes, &metadata,
		&alert.CreatedAt, &channels, &alert.AcknowledgedBy, &ackAt)
	if err != nil {
		return nil, err
	}

	alert.Severity = alerts.Severity(severity)
	if changes.Valid && changes.String != "" {
		if err := json.Unmarshal([]byte(changes.String), &alert.Changes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal changes: %w", err)
		}
	}
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &alert.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}
	if channels.Valid && channels.String != "" {
		if err := json.Unmarshal([]byte(channels.String), &alert.Channels); err != nil {
			return nil, fmt.Errorf("failed to unmarshal channels: %w", err)
		}
	}
	if ackAt.Valid {
		t := ackAt.Time
		alert.AcknowledgedAt = &t
	}
	return &alert, nil
}
