// Package config loads the stackspy configuration file: monitor tuning,
// curation cadence, alert rules, and channel credentials.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stackspy/stackspy/internal/alerts"
	"github.com/stackspy/stackspy/internal/curation"
	"github.com/stackspy/stackspy/internal/monitor"
	"github.com/stackspy/stackspy/internal/types"
	"gopkg.in/yaml.v3"
)

// Config is the YAML configuration file layout
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Curation CurationConfig `yaml:"curation"`
	Alerts   AlertsConfig   `yaml:"alerts"`
}

// DatabaseConfig selects the SQLite database file
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// MonitorConfig tunes the scheduling loop. All durations accept Go
// duration syntax plus a "d" suffix for days.
type MonitorConfig struct {
	TickInterval      string                    `yaml:"tick_interval,omitempty"`
	DiscoveryInterval string                    `yaml:"discovery_interval,omitempty"`
	MaxConcurrentJobs int                       `yaml:"max_concurrent_jobs,omitempty"`
	HistoryLimit      int                       `yaml:"history_limit,omitempty"`
	ShutdownGrace     string                    `yaml:"shutdown_grace,omitempty"`
	ChunkSizes        map[types.Priority]int    `yaml:"chunk_sizes,omitempty"`
	Delays            map[types.Priority]string `yaml:"delays,omitempty"`
}

// CurationConfig tunes the per-tier re-analysis cadence
type CurationConfig struct {
	Intervals map[types.Priority]string `yaml:"intervals,omitempty"`
}

// AlertsConfig holds rule definitions, severity bands, pipeline policy,
// and channel settings
type AlertsConfig struct {
	SeverityBands  *alerts.SeverityBands `yaml:"severity_bands,omitempty"`
	DebounceWindow string                `yaml:"debounce_window,omitempty"`
	BatchThreshold int                   `yaml:"batch_threshold,omitempty"`
	Rules          []RuleConfig          `yaml:"rules"`
	Channels       ChannelsConfig        `yaml:"channels"`
}

// RuleConfig is an alert rule in the YAML file
type RuleConfig struct {
	ID                string             `yaml:"id,omitempty"`
	Name              string             `yaml:"name"`
	ChangeTypes       []types.ChangeType `yaml:"change_types"`
	SeverityThreshold alerts.Severity    `yaml:"severity_threshold"`
	ToolPriorities    []types.Priority   `yaml:"tool_priorities,omitempty"`
	Cooldown          string             `yaml:"cooldown,omitempty"`
	Channels          []alerts.Channel   `yaml:"channels"`
	Active            *bool              `yaml:"active,omitempty"`
}

// ChannelsConfig holds per-channel delivery settings. Credentials may be
// supplied via environment variables instead (STACKSPY_SMTP_PASSWORD,
// STACKSPY_CHAT_WEBHOOK).
type ChannelsConfig struct {
	Email       *alerts.EmailConfig `yaml:"email,omitempty"`
	ChatWebhook string              `yaml:"chat_webhook,omitempty"`
	WebhookURLs []string            `yaml:"webhook_urls,omitempty"`
}

// Load reads and parses the configuration file. A missing path returns
// defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if pw := os.Getenv("STACKSPY_SMTP_PASSWORD"); pw != "" && c.Alerts.Channels.Email != nil {
		c.Alerts.Channels.Email.Password = pw
	}
	if url := os.Getenv("STACKSPY_CHAT_WEBHOOK"); url != "" {
		c.Alerts.Channels.ChatWebhook = url
	}
}

// ToMonitorConfig converts the YAML monitor section to the scheduler's
// config, starting from defaults
func (c *MonitorConfig) ToMonitorConfig() (*monitor.Config, error) {
	cfg := monitor.DefaultConfig()

	var err error
	if c.TickInterval != "" {
		if cfg.TickInterval, err = parseDuration(c.TickInterval); err != nil {
			return nil, fmt.Errorf("invalid tick_interval: %w", err)
		}
	}
	if c.DiscoveryInterval != "" {
		if cfg.DiscoveryInterval, err = parseDuration(c.DiscoveryInterval); err != nil {
			return nil, fmt.Errorf("invalid discovery_interval: %w", err)
		}
	}
	if c.ShutdownGrace != "" {
		if cfg.ShutdownGrace, err = parseDuration(c.ShutdownGrace); err != nil {
			return nil, fmt.Errorf("invalid shutdown_grace: %w", err)
		}
	}
	if c.MaxConcurrentJobs > 0 {
		cfg.MaxConcurrentJobs = c.MaxConcurrentJobs
	}
	if c.HistoryLimit > 0 {
		cfg.HistoryLimit = c.HistoryLimit
	}
	for tier, size := range c.ChunkSizes {
		cfg.ChunkSizes[tier] = size
	}
	for tier, raw := range c.Delays {
		delay, err := parseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid delay for tier %s: %w", tier, err)
		}
		cfg.Delays[tier] = delay
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToCurationConfig converts the YAML curation section, starting from
// defaults
func (c *CurationConfig) ToCurationConfig() (*curation.Config, error) {
	cfg := curation.DefaultConfig()
	for tier, raw := range c.Intervals {
		interval, err := parseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid curation interval for tier %s: %w", tier, err)
		}
		cfg.Intervals[tier] = interval
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ToRule converts a YAML rule definition to a validated AlertRule.
// Rules are active unless explicitly disabled.
func (r *RuleConfig) ToRule() (*alerts.AlertRule, error) {
	rule := &alerts.AlertRule{
		ID:                r.ID,
		Name:              r.Name,
		ChangeTypes:       r.ChangeTypes,
		SeverityThreshold: r.SeverityThreshold,
		ToolPriorities:    r.ToolPriorities,
		Channels:          r.Channels,
		Active:            true,
	}
	if r.Active != nil {
		rule.Active = *r.Active
	}
	if r.Cooldown != "" {
		cooldown, err := parseDuration(r.Cooldown)
		if err != nil {
			return nil, fmt.Errorf("rule %q has invalid cooldown: %w", r.Name, err)
		}
		rule.Cooldown = cooldown
	}
	// A stable name-derived id lets restarts upsert the persisted rule
	// instead of duplicating it
	if rule.ID == "" {
		rule.ID = "config-" + strings.ReplaceAll(strings.ToLower(strings.TrimSpace(r.Name)), " ", "-")
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

// DebounceWindowDuration parses the debounce window, defaulting to 1m
func (a *AlertsConfig) DebounceWindowDuration() (time.Duration, error) {
	if a.DebounceWindow == "" {
		return time.Minute, nil
	}
	return parseDuration(a.DebounceWindow)
}

// parseDuration parses Go duration syntax plus a "d" suffix for days
// (e.g. "7d", "30m", "1h30m")
func parseDuration(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil {
			return 0, fmt.Errorf("invalid day duration %q", s)
		}
		return time.Duration(days) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	return d, nil
}
