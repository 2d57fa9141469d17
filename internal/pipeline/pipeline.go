// Package pipeline glues the monitoring scheduler to the alert engine:
// job results flow through debounce and batch-summary policies before rule
// evaluation and channel fan-out.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stackspy/stackspy/internal/alerts"
	"github.com/stackspy/stackspy/internal/types"
	"go.uber.org/zap"
)

// ToolGetter resolves tool metadata for rule evaluation
type ToolGetter interface {
	GetTool(ctx context.Context, id string) (*types.Tool, error)
}

// Config holds integration policy knobs
type Config struct {
	// DebounceWindow coalesces rapid change events for the same tool:
	// the first event in a window evaluates immediately, followers are
	// deferred to the end of the window
	// Default: 1 minute
	DebounceWindow time.Duration

	// BatchThreshold is the number of changed tools in a single job above
	// which one summary alert is emitted instead of per-tool alerts
	// Default: 10
	BatchThreshold int

	// SummaryChannels are the delivery targets for batch summary alerts
	// Default: console + store
	SummaryChannels []alerts.Channel
}

// DefaultConfig returns default integration policy
func DefaultConfig() *Config {
	return &Config{
		DebounceWindow:  time.Minute,
		BatchThreshold:  10,
		SummaryChannels: []alerts.Channel{alerts.ChannelConsole, alerts.ChannelStore},
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.DebounceWindow < 0 {
		return fmt.Errorf("debounce window cannot be negative (got %v)", c.DebounceWindow)
	}
	if c.BatchThreshold <= 0 {
		return fmt.Errorf("batch threshold must be positive (got %d)", c.BatchThreshold)
	}
	return nil
}

// Manager wires scheduler output into the alert engine. It is registered
// with the scheduler as an explicit completion callback.
type Manager struct {
	cfg        *Config
	engine     *alerts.Engine
	dispatcher *alerts.Dispatcher
	tools      ToolGetter
	log        *zap.SugaredLogger

	mu        sync.Mutex
	lastEvent map[string]time.Time
	deferred  map[string][]types.ChangeDetection
	timers    map[string]*time.Timer
	closed    bool

	now func() time.Time
}

// NewManager creates an integration manager
func NewManager(cfg *Config, engine *alerts.Engine, dispatcher *alerts.Dispatcher, tools ToolGetter, log *zap.SugaredLogger) (*Manager, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline config: %w", err)
	}
	if engine == nil {
		return nil, fmt.Errorf("alert engine is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("alert dispatcher is required")
	}
	if tools == nil {
		return nil, fmt.Errorf("tool getter is required")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manager{
		cfg:        cfg,
		engine:     engine,
		dispatcher: dispatcher,
		tools:      tools,
		log:        log,
		lastEvent:  make(map[string]time.Time),
		deferred:   make(map[string][]types.ChangeDetection),
		timers:     make(map[string]*time.Timer),
		now:        time.Now,
	}, nil
}

// Close cancels pending debounce flushes
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for id, timer := range m.timers {
		timer.Stop()
		delete(m.timers, id)
	}
}

// HandleJobComplete is the scheduler completion callback. Jobs touching
// more changed tools than the batch threshold produce one summary alert;
// everything else is evaluated per tool through the debounce policy.
func (m *Manager) HandleJobComplete(job *types.BatchJob) {
	changed := make(map[string][]types.ChangeDetection)
	for _, result := range job.Results {
		if result.OK && len(result.Changes) > 0 {
			changed[result.ToolID] = result.Changes
		}
	}
	if len(changed) == 0 {
		return
	}

	if len(changed) > m.cfg.BatchThreshold {
		m.dispatchSummary(job, changed)
		return
	}

	ctx := context.Background()
	for toolID, changes := range changed {
		m.HandleChanges(ctx, toolID, changes)
	}
}

// HandleChanges applies the debounce window and runs rule evaluation for
// one tool's change set. The first event within a window evaluates
// immediately; later ones are coalesced and flushed when the window ends.
func (m *Manager) HandleChanges(ctx context.Context, toolID string, changes []types.ChangeDetection) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	now := m.now()
	last, seen := m.lastEvent[toolID]
	if !seen || now.Sub(last) >= m.cfg.DebounceWindow {
		m.lastEvent[toolID] = now
		m.mu.Unlock()
		m.evaluate(ctx, toolID, changes)
		return
	}

	// Inside the window: defer to the end of it
	m.deferred[toolID] = append(m.deferred[toolID], changes...)
	if _, armed := m.timers[toolID]; !armed {
		remaining := m.cfg.DebounceWindow - now.Sub(last)
		m.timers[toolID] = time.AfterFunc(remaining, func() {
			m.flushDeferred(toolID)
		})
	}
	m.mu.Unlock()

	m.log.Debugw("change event debounced", "tool_id", toolID, "changes", len(changes))
}

// flushDeferred evaluates the coalesced changes for a tool at the end of
// its debounce window
func (m *Manager) flushDeferred(toolID string) {
	m.mu.Lock()
	changes := m.deferred[toolID]
	delete(m.deferred, toolID)
	delete(m.timers, toolID)
	if m.closed || len(changes) == 0 {
		m.mu.Unlock()
		return
	}
	m.lastEvent[toolID] = m.now()
	m.mu.Unlock()

	m.evaluate(context.Background(), toolID, changes)
}

// evaluate resolves tool metadata, runs the rules, and dispatches whatever
// fires
func (m *Manager) evaluate(ctx context.Context, toolID string, changes []types.ChangeDetection) {
	tool, err := m.tools.GetTool(ctx, toolID)
	if err != nil {
		m.log.Warnw("cannot evaluate alerts for unknown tool",
			"tool_id", toolID, "error", err)
		return
	}

	fired := m.engine.Evaluate(tool, changes)
	for _, alert := range fired {
		m.dispatcher.Dispatch(ctx, alert)
	}
	if len(fired) > 0 {
		m.log.Infow("alerts fired", "tool_id", toolID, "count", len(fired))
	}
}

// dispatchSummary emits a single alert summarizing a large batch instead
// of one alert per tool
func (m *Manager) dispatchSummary(job *types.BatchJob, changed map[string][]types.ChangeDetection) {
	totalChanges := 0
	lines := make([]string, 0, len(changed))
	for toolID, changes := range changed {
		totalChanges += len(changes)
		lines = append(lines, fmt.Sprintf("%s: %d change(s)", toolID, len(changes)))
	}

	alert := &alerts.Alert{
		ID:        uuid.New().String(),
		AlertType: "batch_summary",
		Severity:  alerts.SeverityMedium,
		Title:     fmt.Sprintf("Batch job detected changes across %d tools", len(changed)),
		Message:   fmt.Sprintf("Job %s produced %d changes across %d tools.", job.ID, totalChanges, len(changed)),
		Changes:   lines,
		Metadata: map[string]interface{}{
			"job_id":     job.ID,
			"tool_count": len(changed),
		},
		CreatedAt: m.now(),
		Channels:  append([]alerts.Channel(nil), m.cfg.SummaryChannels...),
	}

	m.dispatcher.Dispatch(context.Background(), alert)
	m.log.Infow("batch summary alert dispatched",
		"job_id", job.ID, "tools", len(changed), "changes", totalChanges)
}
