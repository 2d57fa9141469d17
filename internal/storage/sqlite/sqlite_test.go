package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stackspy/stackspy/internal/alerts"
	"github.com/stackspy/stackspy/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testTool(id string, tier types.Priority) *types.Tool {
	now := time.Now()
	return &types.Tool{
		ID:        id,
		Name:      "Tool " + id,
		URL:       "https://example.com/" + id,
		Priority:  tier,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestToolRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	tool := testTool("t1", types.PriorityHigh)
	tool.Category = "ci"
	tool.Snapshot = &types.Snapshot{
		Version:  "1.2.3",
		Price:    "$10/mo",
		Features: []string{"builds", "caching"},
	}
	require.NoError(t, s.CreateTool(ctx, tool))

	got, err := s.GetTool(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, tool.Name, got.Name)
	assert.Equal(t, types.PriorityHigh, got.Priority)
	require.NotNil(t, got.Snapshot)
	assert.Equal(t, "1.2.3", got.Snapshot.Version)
	assert.Equal(t, []string{"builds", "caching"}, got.Snapshot.Features)
	assert.Nil(t, got.LastAnalyzedAt)
}

func TestGetToolNotFound(t *testing.T) {
	s := newTestStorage(t)
	_, err := s.GetTool(context.Background(), "missing")
	assert.Error(t, err)
}

func TestListDueTools(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	// Never analyzed: always due
	require.NoError(t, s.CreateTool(ctx, testTool("fresh", types.PriorityNormal)))

	// Analyzed long ago: due
	stale := testTool("stale", types.PriorityNormal)
	old := time.Now().Add(-48 * time.Hour)
	stale.LastAnalyzedAt = &old
	require.NoError(t, s.CreateTool(ctx, stale))

	// Analyzed recently: not due
	recent := testTool("recent", types.PriorityNormal)
	justNow := time.Now().Add(-time.Minute)
	recent.LastAnalyzedAt = &justNow
	require.NoError(t, s.CreateTool(ctx, recent))

	// Wrong tier: excluded
	require.NoError(t, s.CreateTool(ctx, testTool("other-tier", types.PriorityLow)))

	// Paused: excluded even when stale
	paused := testTool("paused", types.PriorityNormal)
	paused.LastAnalyzedAt = &old
	require.NoError(t, s.CreateTool(ctx, paused))
	require.NoError(t, s.SetToolPaused(ctx, "paused", true))

	due, err := s.ListDueTools(ctx, types.PriorityNormal, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	ids := make([]string, len(due))
	for i, tool := range due {
		ids[i] = tool.ID
	}
	assert.ElementsMatch(t, []string{"fresh", "stale"}, ids)
}

func TestUpdateToolSnapshot(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	require.NoError(t, s.CreateTool(ctx, testTool("t1", types.PriorityNormal)))

	analyzedAt := time.Now()
	snap := &types.Snapshot{Version: "2.0.0"}
	require.NoError(t, s.UpdateToolSnapshot(ctx, "t1", snap, analyzedAt))

	got, err := s.GetTool(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, got.Snapshot)
	assert.Equal(t, "2.0.0", got.Snapshot.Version)
	require.NotNil(t, got.LastAnalyzedAt)

	err = s.UpdateToolSnapshot(ctx, "missing", snap, analyzedAt)
	assert.Error(t, err)
}

func TestJobRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	job := &types.BatchJob{
		ID:        "job-1",
		ToolIDs:   []string{"t1", "t2"},
		Priority:  types.PriorityUrgent,
		Type:      types.JobTriggered,
		Status:    types.JobPending,
		CreatedAt: time.Now(),
	}
	require.NoError(t, s.SaveJob(ctx, job))

	// Terminal update via upsert
	started := time.Now()
	completed := started.Add(time.Second)
	job.Status = types.JobCompleted
	job.StartedAt = &started
	job.CompletedAt = &completed
	job.Progress = 1.0
	job.Results = []types.ToolResult{
		{ToolID: "t1", OK: true, DurationMS: 120},
		{ToolID: "t2", OK: false, Error: "fetch failed", DurationMS: 80},
	}
	require.NoError(t, s.SaveJob(ctx, job))

	got, err := s.GetJob(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, types.JobCompleted, got.Status)
	assert.Equal(t, []string{"t1", "t2"}, got.ToolIDs)
	require.Len(t, got.Results, 2)
	assert.True(t, got.Results[0].OK)
	assert.Equal(t, "fetch failed", got.Results[1].Error)
	require.NotNil(t, got.CompletedAt)
}

func TestListRecentJobs(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		job := &types.BatchJob{
			ID:        string(rune('a' + i)),
			ToolIDs:   []string{"t1"},
			Priority:  types.PriorityNormal,
			Type:      types.JobScheduled,
			Status:    types.JobPending,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		require.NoError(t, s.SaveJob(ctx, job))
	}

	jobs, err := s.ListRecentJobs(ctx, 3)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	assert.Equal(t, "e", jobs[0].ID)
	assert.Equal(t, "d", jobs[1].ID)
}

func TestAlertRoundTripAndAck(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	alert := &alerts.Alert{
		ID:        "a1",
		ToolID:    "t1",
		ToolName:  "Tool t1",
		AlertType: "version_bump",
		Severity:  alerts.SeverityHigh,
		Title:     "version changed",
		Message:   "1.0.0 -> 2.0.0",
		Changes:   []string{"version changed from 1.0.0 to 2.0.0"},
		Metadata:  map[string]interface{}{"rule_name": "major bumps"},
		CreatedAt: time.Now(),
		Channels:  []alerts.Channel{alerts.ChannelConsole, alerts.ChannelStore},
	}
	require.NoError(t, s.SaveAlert(ctx, alert))

	got, err := s.GetAlert(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, alerts.SeverityHigh, got.Severity)
	assert.Equal(t, "major bumps", got.Metadata["rule_name"])
	assert.Nil(t, got.AcknowledgedAt)

	require.NoError(t, s.AcknowledgeAlert(ctx, "a1", "alice"))
	got, err = s.GetAlert(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.AcknowledgedBy)
	require.NotNil(t, got.AcknowledgedAt)

	// Second ack is rejected
	assert.Error(t, s.AcknowledgeAlert(ctx, "a1", "bob"))
}

func TestListAlertsFilter(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	mk := func(id, toolID string, sev alerts.Severity) *alerts.Alert {
		return &alerts.Alert{
			ID: id, ToolID: toolID, AlertType: "modified",
			Severity: sev, Title: id, CreatedAt: time.Now(),
			Channels: []alerts.Channel{alerts.ChannelStore},
		}
	}
	require.NoError(t, s.SaveAlert(ctx, mk("a1", "t1", alerts.SeverityLow)))
	require.NoError(t, s.SaveAlert(ctx, mk("a2", "t1", alerts.SeverityHigh)))
	require.NoError(t, s.SaveAlert(ctx, mk("a3", "t2", alerts.SeverityHigh)))
	require.NoError(t, s.AcknowledgeAlert(ctx, "a2", "alice"))

	byTool, err := s.ListAlerts(ctx, AlertFilter{ToolID: "t1"})
	require.NoError(t, err)
	assert.Len(t, byTool, 2)

	bySev, err := s.ListAlerts(ctx, AlertFilter{Severity: alerts.SeverityHigh})
	require.NoError(t, err)
	assert.Len(t, bySev, 2)

	unacked, err := s.ListAlerts(ctx, AlertFilter{Unacknowledged: true})
	require.NoError(t, err)
	assert.Len(t, unacked, 2)
}

func TestRuleRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	rule := &alerts.AlertRule{
		ID:                "r1",
		Name:              "price watch",
		ChangeTypes:       []types.ChangeType{types.ChangePriceChange},
		SeverityThreshold: alerts.SeverityMedium,
		ToolPriorities:    []types.Priority{types.PriorityUrgent, types.PriorityHigh},
		Cooldown:          time.Hour,
		Channels:          []alerts.Channel{alerts.ChannelEmail, alerts.ChannelStore},
		Active:            true,
	}
	require.NoError(t, s.SaveRule(ctx, rule))

	// Upsert updates in place
	rule.Cooldown = 2 * time.Hour
	rule.Active = false
	require.NoError(t, s.SaveRule(ctx, rule))

	rules, err := s.ListRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "price watch", rules[0].Name)
	assert.Equal(t, 2*time.Hour, rules[0].Cooldown)
	assert.False(t, rules[0].Active)
	assert.Equal(t, []types.ChangeType{types.ChangePriceChange}, rules[0].ChangeTypes)
}
