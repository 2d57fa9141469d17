package alerts

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stackspy/stackspy/internal/types"
	"go.uber.org/zap"
)

// Engine evaluates detected change sets against the configured alert
// rules. Rules fire independently: no deduplication happens across rules,
// and each rule tracks its own per-(rule, tool) cooldown.
type Engine struct {
	bands SeverityBands
	log   *zap.SugaredLogger

	mu        sync.Mutex
	rules     []*AlertRule
	lastFired map[string]time.Time

	// now is swappable for cooldown tests
	now func() time.Time
}

// NewEngine creates a rule engine with the given severity bands
func NewEngine(bands SeverityBands, log *zap.SugaredLogger) (*Engine, error) {
	if err := bands.Validate(); err != nil {
		return nil, fmt.Errorf("invalid severity bands: %w", err)
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{
		bands:     bands,
		log:       log,
		lastFired: make(map[string]time.Time),
		now:       time.Now,
	}, nil
}

// AddRule validates and registers a rule. Rules without an id get one.
func (e *Engine) AddRule(rule *AlertRule) error {
	if err := rule.Validate(); err != nil {
		return fmt.Errorf("invalid alert rule: %w", err)
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule)
	return nil
}

// Rules returns a copy of the registered rules
func (e *Engine) Rules() []*AlertRule {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*AlertRule, len(e.rules))
	for i, r := range e.rules {
		cp := *r
		out[i] = &cp
	}
	return out
}

// Evaluate runs every active rule against the tool's change set and
// returns the alerts that fire. The cooldown timestamp for a (rule, tool)
// pair advances only when an alert is actually emitted.
func (e *Engine) Evaluate(tool *types.Tool, changes []types.ChangeDetection) []*Alert {
	if len(changes) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.now()
	var alerts []*Alert

	for _, rule := range e.rules {
		if !rule.Active {
			continue
		}
		if !rule.matchesTool(tool) {
			continue
		}

		matching := e.matchingChanges(rule, changes)
		if len(matching) == 0 {
			continue
		}

		key := cooldownKey(rule.ID, tool.ID)
		if last, ok := e.lastFired[key]; ok && now.Sub(last) < rule.Cooldown {
			e.log.Debugw("alert suppressed by cooldown",
				"rule", rule.Name, "tool_id", tool.ID,
				"remaining", rule.Cooldown-now.Sub(last))
			continue
		}

		alert := e.buildAlert(rule, tool, matching, now)
		e.lastFired[key] = now
		alerts = append(alerts, alert)
	}

	return alerts
}

// matchingChanges filters a change set down to what the rule admits: the
// change type must be watched and the derived severity must meet the
// rule's threshold.
func (e *Engine) matchingChanges(rule *AlertRule, changes []types.ChangeDetection) []types.ChangeDetection {
	var matching []types.ChangeDetection
	for _, change := range changes {
		if !rule.watchesType(change.Type) {
			continue
		}
		if !e.bands.SeverityFor(change).AtLeast(rule.SeverityThreshold) {
			continue
		}
		matching = append(matching, change)
	}
	return matching
}

// buildAlert synthesizes one alert aggregating the matching changes.
// Severity is the highest-severity matching change.
func (e *Engine) buildAlert(rule *AlertRule, tool *types.Tool, matching []types.ChangeDetection, now time.Time) *Alert {
	summaries := make([]string, 0, len(matching))
	for _, change := range matching {
		summaries = append(summaries, change.Summary)
	}

	title := fmt.Sprintf("%s: %d change(s) detected", tool.Name, len(matching))
	if len(matching) == 1 {
		title = fmt.Sprintf("%s: %s", tool.Name, matching[0].Summary)
	}

	return &Alert{
		ID:        uuid.New().String(),
		ToolID:    tool.ID,
		ToolName:  tool.Name,
		AlertType: string(matching[0].Type),
		Severity:  e.bands.maxSeverity(matching),
		Title:     title,
		Message:   strings.Join(summaries, "\n"),
		Changes:   summaries,
		Metadata: map[string]interface{}{
			"rule_id":      rule.ID,
			"rule_name":    rule.Name,
			"change_count": len(matching),
		},
		CreatedAt: now,
		Channels:  append([]Channel(nil), rule.Channels...),
	}
}

func cooldownKey(ruleID, toolID string) string {
	return ruleID + "|" + toolID
}
