package monitor

import (
	"fmt"
	"time"

	"github.com/stackspy/stackspy/internal/types"
)

// Config holds scheduler configuration
type Config struct {
	// TickInterval is the cadence of the scheduling control loop
	// Default: 30 seconds
	TickInterval time.Duration

	// DiscoveryInterval is how often the scheduler asks the curator for
	// tools due for re-analysis. Checked as "time since last discovery
	// run >= interval" at each tick, so a late tick never skips a run.
	// Default: 5 minutes
	DiscoveryInterval time.Duration

	// DisableDiscovery turns off the periodic discovery pass. Used for
	// one-shot runs that only drain explicitly enqueued jobs.
	DisableDiscovery bool

	// MaxConcurrentJobs bounds how many jobs may be running at once
	// Default: 3
	MaxConcurrentJobs int

	// HistoryLimit caps the completed-jobs history; oldest completed
	// jobs are evicted first
	// Default: 100
	HistoryLimit int

	// ShutdownGrace is how long Stop waits for in-flight jobs before
	// giving up on them
	// Default: 30 seconds
	ShutdownGrace time.Duration

	// ErrorBackoff is the extra sleep after a tick fails
	// Default: 2x TickInterval
	ErrorBackoff time.Duration

	// ChunkSizes is the per-tier batch size used when discovery results
	// are split into jobs. Urgent chunks are size 1 for latency;
	// maintenance chunks are large for throughput.
	ChunkSizes map[types.Priority]int

	// Delays is the per-tier minimum delay between processed items,
	// enforced by the Governor once per tool, not once per job
	Delays map[types.Priority]time.Duration
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() *Config {
	return &Config{
		TickInterval:      30 * time.Second,
		DiscoveryInterval: 5 * time.Minute,
		MaxConcurrentJobs: 3,
		HistoryLimit:      100,
		ShutdownGrace:     30 * time.Second,
		ErrorBackoff:      60 * time.Second,
		ChunkSizes: map[types.Priority]int{
			types.PriorityUrgent:      1,
			types.PriorityHigh:        3,
			types.PriorityNormal:      5,
			types.PriorityLow:         10,
			types.PriorityMaintenance: 25,
		},
		Delays: map[types.Priority]time.Duration{
			types.PriorityUrgent:      0,
			types.PriorityHigh:        500 * time.Millisecond,
			types.PriorityNormal:      2 * time.Second,
			types.PriorityLow:         5 * time.Second,
			types.PriorityMaintenance: 10 * time.Second,
		},
	}
}

// Validate checks the configuration for invalid values
func (c *Config) Validate() error {
	if c.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive (got %v)", c.TickInterval)
	}
	if c.DiscoveryInterval <= 0 {
		return fmt.Errorf("discovery interval must be positive (got %v)", c.DiscoveryInterval)
	}
	if c.MaxConcurrentJobs <= 0 {
		return fmt.Errorf("max concurrent jobs must be positive (got %d)", c.MaxConcurrentJobs)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be positive (got %d)", c.HistoryLimit)
	}
	if c.ShutdownGrace < 0 {
		return fmt.Errorf("shutdown grace cannot be negative (got %v)", c.ShutdownGrace)
	}
	for tier, size := range c.ChunkSizes {
		if !tier.IsValid() {
			return fmt.Errorf("invalid priority tier in chunk sizes: %s", tier)
		}
		if size <= 0 {
			return fmt.Errorf("chunk size for tier %s must be positive (got %d)", tier, size)
		}
	}
	for tier, delay := range c.Delays {
		if !tier.IsValid() {
			return fmt.Errorf("invalid priority tier in delays: %s", tier)
		}
		if delay < 0 {
			return fmt.Errorf("delay for tier %s cannot be negative (got %v)", tier, delay)
		}
	}
	return nil
}

// chunkSize returns the configured batch size for a tier, defaulting to 5
func (c *Config) chunkSize(tier types.Priority) int {
	if size, ok := c.ChunkSizes[tier]; ok {
		return size
	}
	return 5
}
