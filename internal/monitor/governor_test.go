package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stackspy/stackspy/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGovernorUrgentNotThrottled(t *testing.T) {
	g, err := NewGovernor(map[types.Priority]time.Duration{
		types.PriorityUrgent: 0,
	})
	require.NoError(t, err)

	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, g.Throttle(context.Background(), types.PriorityUrgent))
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestGovernorEnforcesDelay(t *testing.T) {
	g, err := NewGovernor(map[types.Priority]time.Duration{
		types.PriorityLow: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, g.Throttle(ctx, types.PriorityLow))

	start := time.Now()
	require.NoError(t, g.Throttle(ctx, types.PriorityLow))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestGovernorUnknownTierPasses(t *testing.T) {
	g, err := NewGovernor(nil)
	require.NoError(t, err)
	assert.NoError(t, g.Throttle(context.Background(), types.PriorityNormal))
}

func TestGovernorCanceledContext(t *testing.T) {
	g, err := NewGovernor(map[types.Priority]time.Duration{
		types.PriorityLow: time.Hour,
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, g.Throttle(ctx, types.PriorityLow))

	// Second call would wait an hour; cancellation unblocks it
	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.Error(t, g.Throttle(ctx, types.PriorityLow))
}

func TestGovernorRejectsInvalidConfig(t *testing.T) {
	_, err := NewGovernor(map[types.Priority]time.Duration{
		types.Priority("extreme"): time.Second,
	})
	assert.Error(t, err)

	_, err = NewGovernor(map[types.Priority]time.Duration{
		types.PriorityLow: -time.Second,
	})
	assert.Error(t, err)
}
