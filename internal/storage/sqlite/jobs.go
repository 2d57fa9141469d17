package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/stackspy/stackspy/internal/types"
)

// SaveJob upserts a batch job. The scheduler persists jobs at enqueue time
// and again at every terminal transition, so upsert semantics keep the
// stored row current.
func (s *SQLiteStorage) SaveJob(ctx context.Context, job *types.BatchJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("invalid job: %w", err)
	}

	toolIDs, err := json.Marshal(job.ToolIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal tool ids: %w", err)
	}
	var results interface{}
	if len(job.Results) > 0 {
		data, err := json.Marshal(job.Results)
		if err != nil {
			return fmt.Errorf("failed to marshal results: %w", err)
		}
		results = string(data)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO jobs (id, tool_ids, priority, job_type, status, created_at, started_at, completed_at, results, error, progress)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			results = excluded.results,
			error = excluded.error,
			progress = excluded.progress
	`, job.ID, string(toolIDs), string(job.Priority), string(job.Type), string(job.Status),
		job.CreatedAt, nullableTime(job.StartedAt), nullableTime(job.CompletedAt),
		results, job.Error, job.Progress)
	if err != nil {
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID
func (s *SQLiteStorage) GetJob(ctx context.Context, id string) (*types.BatchJob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tool_ids, priority, job_type, status, created_at, started_at, completed_at, results, error, progress
		FROM jobs WHERE id = ?
	`, id)

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

// ListRecentJobs returns the most recently created jobs, newest first
func (s *SQLiteStorage) ListRecentJobs(ctx context.Context, limit int) ([]*types.BatchJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tool_ids, priority, job_type, status, created_at, started_at, completed_at, results, error, progress
		FROM jobs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*types.BatchJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}
	return jobs, nil
}

func scanJob(row scanner) (*types.BatchJob, error) {
	var job types.BatchJob
	var toolIDs string
	var priority, jobType, status string
	var startedAt, completedAt sql.NullTime
	var results sql.NullString

	err := row.Scan(&job.ID, &toolIDs, &priority, &jobType, &status,
		&job.CreatedAt, &startedAt, &completedAt, &results, &job.Error, &job.Progress)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(toolIDs), &job.ToolIDs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tool ids: %w", err)
	}
	job.Priority = types.Priority(priority)
	job.Type = types.JobType(jobType)
	job.Status = types.JobStatus(status)
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	if results.Valid && strings.TrimSpace(results.String) != "" {
		if err := json.Unmarshal([]byte(results.String), &job.Results); err != nil {
			return nil, fmt.Errorf("failed to unmarshal results: %w", err)
		}
	}
	return &job, nil
}
