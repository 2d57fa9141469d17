// Package alerts implements the change-driven alert decision engine:
// rule evaluation with cooldowns, severity scoring, and channel fan-out.
package alerts

import (
	"fmt"
	"strings"
	"time"

	"github.com/stackspy/stackspy/internal/types"
)

// Severity is the ordinal alert severity: info < low < medium < high < critical
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// IsValid checks if the severity value is valid
func (s Severity) IsValid() bool {
	switch s {
	case SeverityInfo, SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Rank returns the numeric ordering of a severity. Higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityInfo:
		return 0
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	default:
		return -1
	}
}

// AtLeast reports whether s meets or exceeds the threshold
func (s Severity) AtLeast(threshold Severity) bool {
	return s.Rank() >= threshold.Rank()
}

// Channel is a notification delivery target
type Channel string

const (
	ChannelConsole Channel = "console"
	ChannelEmail   Channel = "email"
	ChannelChat    Channel = "chat"
	ChannelWebhook Channel = "webhook"
	ChannelStore   Channel = "store"
)

// IsValid checks if the channel value is valid
func (c Channel) IsValid() bool {
	switch c {
	case ChannelConsole, ChannelEmail, ChannelChat, ChannelWebhook, ChannelStore:
		return true
	}
	return false
}

// Alert is an immutable notification synthesized by the rule engine when a
// rule matches a change set. Delivered once per channel; persisted for
// audit and history.
type Alert struct {
	ID             string                 `json:"id"`
	ToolID         string                 `json:"tool_id"`
	ToolName       string                 `json:"tool_name"`
	AlertType      string                 `json:"alert_type"`
	Severity       Severity               `json:"severity"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	Changes        []string               `json:"changes,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	Channels       []Channel              `json:"channels"`
	AcknowledgedBy string                 `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time             `json:"acknowledged_at,omitempty"`
}

// AlertRule is a configured predicate mapping change sets to
// notifications. Cooldown is enforced per (rule, tool) pair: the second
// matching event inside the window is suppressed, not queued.
type AlertRule struct {
	ID                string             `json:"rule_id" yaml:"id"`
	Name              string             `json:"name" yaml:"name"`
	ChangeTypes       []types.ChangeType `json:"change_types" yaml:"change_types"`
	SeverityThreshold Severity           `json:"severity_threshold" yaml:"severity_threshold"`
	ToolPriorities    []types.Priority   `json:"tool_priorities,omitempty" yaml:"tool_priorities,omitempty"`
	Cooldown          time.Duration      `json:"cooldown" yaml:"cooldown"`
	Channels          []Channel          `json:"channels" yaml:"channels"`
	Active            bool               `json:"is_active" yaml:"active"`
}

// Validate rejects malformed rules at creation time
func (r *AlertRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("rule name is required")
	}
	if len(r.ChangeTypes) == 0 {
		return fmt.Errorf("rule %q must watch at least one change type", r.Name)
	}
	for _, ct := range r.ChangeTypes {
		if !ct.IsValid() {
			return fmt.Errorf("rule %q has invalid change type: %s", r.Name, ct)
		}
	}
	if !r.SeverityThreshold.IsValid() {
		return fmt.Errorf("rule %q has invalid severity threshold: %s", r.Name, r.SeverityThreshold)
	}
	for _, p := range r.ToolPriorities {
		if !p.IsValid() {
			return fmt.Errorf("rule %q has invalid tool priority filter: %s", r.Name, p)
		}
	}
	if r.Cooldown < 0 {
		return fmt.Errorf("rule %q cooldown cannot be negative (got %v)", r.Name, r.Cooldown)
	}
	if len(r.Channels) == 0 {
		return fmt.Errorf("rule %q must target at least one channel", r.Name)
	}
	for _, ch := range r.Channels {
		if !ch.IsValid() {
			return fmt.Errorf("rule %q has invalid channel: %s", r.Name, ch)
		}
	}
	return nil
}

// watchesType reports whether the rule's change-type filter admits ct
func (r *AlertRule) watchesType(ct types.ChangeType) bool {
	for _, want := range r.ChangeTypes {
		if want == ct {
			return true
		}
	}
	return false
}

// matchesTool applies the rule's tool filters. An empty priority list
// admits every tool.
func (r *AlertRule) matchesTool(tool *types.Tool) bool {
	if len(r.ToolPriorities) == 0 {
		return true
	}
	for _, p := range r.ToolPriorities {
		if tool.Priority == p {
			return true
		}
	}
	return false
}
