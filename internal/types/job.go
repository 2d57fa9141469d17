package types

import (
	"fmt"
	"time"
)

// JobStatus represents the current state of a batch job
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// IsValid checks if the job status value is valid
func (s JobStatus) IsValid() bool {
	switch s {
	case JobPending, JobRunning, JobCompleted, JobFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the status is a final state
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobType categorizes how a batch job was created
type JobType string

const (
	JobScheduled  JobType = "scheduled"
	JobManual     JobType = "manual"
	JobTriggered  JobType = "triggered"
	JobBulkImport JobType = "bulk_import"
)

// IsValid checks if the job type value is valid
func (t JobType) IsValid() bool {
	switch t {
	case JobScheduled, JobManual, JobTriggered, JobBulkImport:
		return true
	}
	return false
}

// ToolResult is the per-tool outcome recorded inside a running job.
// Per-tool failures are recorded here and never abort the batch.
type ToolResult struct {
	ToolID     string            `json:"tool_id"`
	OK         bool              `json:"ok"`
	Changes    []ChangeDetection `json:"changes,omitempty"`
	Error      string            `json:"error,omitempty"`
	DurationMS int64             `json:"duration_ms"`
}

// BatchJob is a unit of scheduled work analyzing one or more tools.
// ToolIDs is never mutated after creation. Field mutation is confined to
// the worker executing the job and the scheduler's completion path, both
// under the scheduler's lock.
type BatchJob struct {
	ID          string       `json:"id"`
	ToolIDs     []string     `json:"tool_ids"`
	Priority    Priority     `json:"priority"`
	Type        JobType      `json:"job_type"`
	Status      JobStatus    `json:"status"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Results     []ToolResult `json:"results,omitempty"`
	Error       string       `json:"error,omitempty"`
	Progress    float64      `json:"progress"`
}

// Validate checks if the job has valid field values
func (j *BatchJob) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job id is required")
	}
	if len(j.ToolIDs) == 0 {
		return fmt.Errorf("job must contain at least one tool id")
	}
	if !j.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", j.Priority)
	}
	if !j.Type.IsValid() {
		return fmt.Errorf("invalid job type: %s", j.Type)
	}
	if !j.Status.IsValid() {
		return fmt.Errorf("invalid status: %s", j.Status)
	}
	return nil
}

// Clone returns a deep copy safe to hand to callers outside the
// scheduler's lock.
func (j *BatchJob) Clone() *BatchJob {
	cp := *j
	cp.ToolIDs = append([]string(nil), j.ToolIDs...)
	cp.Results = append([]ToolResult(nil), j.Results...)
	if j.StartedAt != nil {
		t := *j.StartedAt
		cp.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// SucceededCount returns the number of per-tool results that succeeded
func (j *BatchJob) SucceededCount() int {
	n := 0
	for _, r := range j.Results {
		if r.OK {
			n++
		}
	}
	return n
}

// FailedCount returns the number of per-tool results that failed
func (j *BatchJob) FailedCount() int {
	return len(j.Results) - j.SucceededCount()
}
