package types

import (
	"fmt"
	"strings"
	"time"
)

// Priority represents a service class for both tracked tools and batch jobs.
// Lower rank means served first: urgent work jumps the queue, maintenance
// work trades latency for throughput.
type Priority string

const (
	PriorityUrgent      Priority = "urgent"
	PriorityHigh        Priority = "high"
	PriorityNormal      Priority = "normal"
	PriorityLow         Priority = "low"
	PriorityMaintenance Priority = "maintenance"
)

// IsValid checks if the priority value is valid
func (p Priority) IsValid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow, PriorityMaintenance:
		return true
	}
	return false
}

// Rank returns the numeric ordering of a priority. Lower is served first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 3
	case PriorityMaintenance:
		return 4
	default:
		return 5
	}
}

// Priorities lists all priority tiers in rank order (urgent first).
func Priorities() []Priority {
	return []Priority{
		PriorityUrgent,
		PriorityHigh,
		PriorityNormal,
		PriorityLow,
		PriorityMaintenance,
	}
}

// Tool represents a tracked software tool under competitive monitoring
type Tool struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	URL            string     `json:"url"`
	Category       string     `json:"category,omitempty"`
	Priority       Priority   `json:"priority"`
	Paused         bool       `json:"paused"`
	LastAnalyzedAt *time.Time `json:"last_analyzed_at,omitempty"`
	Snapshot       *Snapshot  `json:"snapshot,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Validate checks if the tool has valid field values
func (t *Tool) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if strings.TrimSpace(t.URL) == "" {
		return fmt.Errorf("url is required")
	}
	if !t.Priority.IsValid() {
		return fmt.Errorf("invalid priority: %s", t.Priority)
	}
	return nil
}

// Snapshot holds the most recently extracted field values for a tool.
// Diffing the previous snapshot against a fresh extraction produces the
// tool's change set.
type Snapshot struct {
	Version     string   `json:"version,omitempty"`
	Price       string   `json:"price,omitempty"`
	Features    []string `json:"features,omitempty"`
	Description string   `json:"description,omitempty"`
}

// ChangeType categorizes a detected difference between two snapshots
type ChangeType string

const (
	ChangeAdded       ChangeType = "added"
	ChangeRemoved     ChangeType = "removed"
	ChangeModified    ChangeType = "modified"
	ChangeVersionBump ChangeType = "version_bump"
	ChangePriceChange ChangeType = "price_change"
)

// IsValid checks if the change type value is valid
func (c ChangeType) IsValid() bool {
	switch c {
	case ChangeAdded, ChangeRemoved, ChangeModified, ChangeVersionBump, ChangePriceChange:
		return true
	}
	return false
}

// ChangeDetection represents one detected difference for a tool.
// Immutable once produced by an analysis run.
type ChangeDetection struct {
	Type        ChangeType `json:"change_type"`
	FieldName   string     `json:"field_name"`
	OldValue    string     `json:"old_value,omitempty"`
	NewValue    string     `json:"new_value,omitempty"`
	Confidence  float64    `json:"confidence"`
	Summary     string     `json:"summary"`
	ImpactScore int        `json:"impact_score"`
}

// CurationResult is the outcome of one analysis run for one tool
type CurationResult struct {
	ToolID          string            `json:"tool_id"`
	ToolName        string            `json:"tool_name"`
	ChangesDetected []ChangeDetection `json:"changes_detected"`
	AnalyzedAt      time.Time         `json:"analyzed_at"`
}

// HasChanges reports whether the analysis detected any differences
func (r *CurationResult) HasChanges() bool {
	return len(r.ChangesDetected) > 0
}
