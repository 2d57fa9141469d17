package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stackspy/stackspy/internal/alerts"
	"github.com/stackspy/stackspy/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	monitorCfg, err := cfg.Monitor.ToMonitorConfig()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, monitorCfg.TickInterval)
	assert.Equal(t, 3, monitorCfg.MaxConcurrentJobs)

	curationCfg, err := cfg.Curation.ToCurationConfig()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, curationCfg.Intervals[types.PriorityNormal])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
database:
  path: /tmp/test.db
monitor:
  tick_interval: 10s
  discovery_interval: 2m
  max_concurrent_jobs: 5
  chunk_sizes:
    normal: 8
  delays:
    normal: 1s
curation:
  intervals:
    urgent: 1h
    maintenance: 14d
alerts:
  debounce_window: 30s
  batch_threshold: 20
  rules:
    - name: price watch
      change_types: [price_change]
      severity_threshold: medium
      cooldown: 2h
      channels: [console, store]
  channels:
    chat_webhook: https://chat.example.com/hook
    webhook_urls:
      - https://hooks.example.com/a
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)

	monitorCfg, err := cfg.Monitor.ToMonitorConfig()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, monitorCfg.TickInterval)
	assert.Equal(t, 2*time.Minute, monitorCfg.DiscoveryInterval)
	assert.Equal(t, 5, monitorCfg.MaxConcurrentJobs)
	assert.Equal(t, 8, monitorCfg.ChunkSizes[types.PriorityNormal])
	assert.Equal(t, time.Second, monitorCfg.Delays[types.PriorityNormal])
	// Unspecified tiers keep defaults
	assert.Equal(t, 1, monitorCfg.ChunkSizes[types.PriorityUrgent])

	curationCfg, err := cfg.Curation.ToCurationConfig()
	require.NoError(t, err)
	assert.Equal(t, time.Hour, curationCfg.Intervals[types.PriorityUrgent])
	assert.Equal(t, 14*24*time.Hour, curationCfg.Intervals[types.PriorityMaintenance])

	window, err := cfg.Alerts.DebounceWindowDuration()
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, window)
	assert.Equal(t, 20, cfg.Alerts.BatchThreshold)

	require.Len(t, cfg.Alerts.Rules, 1)
	rule, err := cfg.Alerts.Rules[0].ToRule()
	require.NoError(t, err)
	assert.Equal(t, "price watch", rule.Name)
	// Name-derived id is stable across reloads so persisting upserts
	assert.Equal(t, "config-price-watch", rule.ID)
	assert.Equal(t, 2*time.Hour, rule.Cooldown)
	assert.Equal(t, alerts.SeverityMedium, rule.SeverityThreshold)
	assert.True(t, rule.Active)

	assert.Equal(t, "https://chat.example.com/hook", cfg.Alerts.Channels.ChatWebhook)
	assert.Len(t, cfg.Alerts.Channels.WebhookURLs, 1)
}

func TestRuleExplicitlyDisabled(t *testing.T) {
	path := writeConfig(t, `
alerts:
  rules:
    - name: disabled rule
      change_types: [modified]
      severity_threshold: low
      channels: [console]
      active: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	rule, err := cfg.Alerts.Rules[0].ToRule()
	require.NoError(t, err)
	assert.False(t, rule.Active)
}

func TestInvalidRuleRejected(t *testing.T) {
	path := writeConfig(t, `
alerts:
  rules:
    - name: bad rule
      change_types: [explosion]
      severity_threshold: low
      channels: [console]
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	_, err = cfg.Alerts.Rules[0].ToRule()
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STACKSPY_SMTP_PASSWORD", "secret")
	t.Setenv("STACKSPY_CHAT_WEBHOOK", "https://env.example.com/hook")

	path := writeConfig(t, `
alerts:
  channels:
    email:
      host: smtp.example.com
      port: 587
      from: alerts@example.com
      to: [team@example.com]
    chat_webhook: https://file.example.com/hook
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "secret", cfg.Alerts.Channels.Email.Password)
	assert.Equal(t, "https://env.example.com/hook", cfg.Alerts.Channels.ChatWebhook)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"30s", 30 * time.Second},
		{"1h30m", 90 * time.Minute},
		{"1d", 24 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
	}
	for _, tt := range tests {
		got, err := parseDuration(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := parseDuration("sevendays")
	assert.Error(t, err)
	_, err = parseDuration("xd")
	assert.Error(t, err)
}

func TestInvalidDurationsSurface(t *testing.T) {
	path := writeConfig(t, `
monitor:
  tick_interval: fast
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	_, err = cfg.Monitor.ToMonitorConfig()
	assert.Error(t, err)
}
