package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/stackspy/stackspy/internal/types"
)

// CreateTool inserts a new tracked tool
func (s *SQLiteStorage) CreateTool(ctx context.Context, tool *types.Tool) error {
	if err := tool.Validate(); err != nil {
		return fmt.Errorf("invalid tool: %w", err)
	}

	snapshot, err := marshalSnapshot(tool.Snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tools (id, name, url, category, priority, paused, last_analyzed_at, snapshot, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, tool.ID, tool.Name, tool.URL, tool.Category, string(tool.Priority),
		boolToInt(tool.Paused), nullableTime(tool.LastAnalyzedAt), snapshot,
		tool.CreatedAt, tool.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert tool: %w", err)
	}
	return nil
}

// GetTool retrieves a tool by ID
func (s *SQLiteStorage) GetTool(ctx context.Context, id string) (*types.Tool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, url, category, priority, paused, last_analyzed_at, snapshot, created_at, updated_at
		FROM tools WHERE id = ?
	`, id)

	tool, err := scanTool(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("tool not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tool: %w", err)
	}
	return tool, nil
}

// ListTools returns all tracked tools ordered by name
func (s *SQLiteStorage) ListTools(ctx context.Context) ([]*types.Tool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, url, category, priority, paused, last_analyzed_at, snapshot, created_at, updated_at
		FROM tools ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	defer rows.Close()

	return collectTools(rows)
}

// ListDueTools returns unpaused tools in the given tier whose last analysis
// is older than the cutoff. Tools never analyzed are always due.
func (s *SQLiteStorage) ListDueTools(ctx context.Context, tier types.Priority, olderThan time.Time) ([]*types.Tool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, url, category, priority, paused, last_analyzed_at, snapshot, created_at, updated_at
		FROM tools
		WHERE priority = ? AND paused = 0
		  AND (last_analyzed_at IS NULL OR last_analyzed_at < ?)
		ORDER BY last_analyzed_at ASC
	`, string(tier), olderThan)
	if err != nil {
		return nil, fmt.Errorf("failed to list due tools: %w", err)
	}
	defer rows.Close()

	return collectTools(rows)
}

// SetToolPaused flips the paused flag for a tool
func (s *SQLiteStorage) SetToolPaused(ctx context.Context, id string, paused bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE tools SET paused = ?, updated_at = ? WHERE id = ?
	`, boolToInt(paused), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update tool: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("tool not found: %s", id)
	}
	return nil
}

// UpdateToolSnapshot stores a fresh extraction and stamps the analysis time
func (s *SQLiteStorage) UpdateToolSnapshot(ctx context.Context, id string, snapshot *types.Snapshot, analyzedAt time.Time) error {
	data, err := marshalSnapshot(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE tools SET snapshot = ?, last_analyzed_at = ?, updated_at = ? WHERE id = ?
	`, data, analyzedAt, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update snapshot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("tool not found: %s", id)
	}
	return nil
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan code
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTool(row scanner) (*types.Tool, error) {
	var tool types.Tool
	var priority string
	var paused int
	var lastAnalyzed sql.NullTime
	var snapshot sql.NullString

	err := row.Scan(&tool.ID, &tool.Name, &tool.URL, &tool.Category, &priority,
		&paused, &lastAnalyzed, &snapshot, &tool.CreatedAt, &tool.UpdatedAt)
	if err != nil {
		return nil, err
	}

	tool.Priority = types.Priority(priority)
	tool.Paused = paused != 0
	if lastAnalyzed.Valid {
		t := lastAnalyzed.Time
		tool.LastAnalyzedAt = &t
	}
	if snapshot.Valid && snapshot.String != "" {
		var snap types.Snapshot
		if err := json.Unmarshal([]byte(snapshot.String), &snap); err != nil {
			return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		tool.Snapshot = &snap
	}
	return &tool, nil
}

func collectTools(rows *sql.Rows) ([]*types.Tool, error) {
	var tools []*types.Tool
	for rows.Next() {
		tool, err := scanTool(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tool: %w", err)
		}
		tools = append(tools, tool)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tools: %w", err)
	}
	return tools, nil
}

// marshalSnapshot JSON-encodes a snapshot, returning NULL for nil
func marshalSnapshot(snap *types.Snapshot) (interface{}, error) {
	if snap == nil {
		return nil, nil
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
