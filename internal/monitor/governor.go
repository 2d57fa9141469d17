package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/stackspy/stackspy/internal/types"
	"golang.org/x/time/rate"
)

// Governor throttles per-tool analysis calls by priority class. Urgent
// items pass immediately; lower tiers wait out a minimum delay between
// items so the collaborator API never sees bursty traffic.
type Governor struct {
	limiters map[types.Priority]*rate.Limiter
}

// NewGovernor builds per-priority limiters from the configured minimum
// delay between items. A zero delay means unlimited.
func NewGovernor(delays map[types.Priority]time.Duration) (*Governor, error) {
	limiters := make(map[types.Priority]*rate.Limiter, len(delays))
	for tier, delay := range delays {
		if !tier.IsValid() {
			return nil, fmt.Errorf("invalid priority tier: %s", tier)
		}
		if delay < 0 {
			return nil, fmt.Errorf("delay for tier %s cannot be negative (got %v)", tier, delay)
		}
		if delay == 0 {
			limiters[tier] = rate.NewLimiter(rate.Inf, 1)
			continue
		}
		limiters[tier] = rate.NewLimiter(rate.Every(delay), 1)
	}
	return &Governor{limiters: limiters}, nil
}

// Throttle blocks until the tier's limiter admits one item, or the context
// is canceled. Applied once per processed item, not once per job.
func (g *Governor) Throttle(ctx context.Context, tier types.Priority) error {
	limiter, ok := g.limiters[tier]
	if !ok {
		// Unknown tiers are not throttled
		return nil
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("throttle wait canceled for tier %s: %w", tier, err)
	}
	return nil
}
