package monitor

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stackspy/stackspy/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memJobStore is an in-memory JobStore
type memJobStore struct {
	mu     sync.Mutex
	jobs   map[string]*types.BatchJob
	paused map[string]bool
}

func newMemJobStore() *memJobStore {
	return &memJobStore{
		jobs:   make(map[string]*types.BatchJob),
		paused: make(map[string]bool),
	}
}

func (m *memJobStore) SaveJob(ctx context.Context, job *types.BatchJob) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.jobs[job.ID] = job.Clone()
	return nil
}

func (m *memJobStore) GetJob(ctx context.Context, id string) (*types.BatchJob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job not found: %s", id)
	}
	return job.Clone(), nil
}

func (m *memJobStore) SetToolPaused(ctx context.Context, id string, paused bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.paused[id] = paused
	return nil
}

// discoveringCurator returns canned due tools per tier
type discoveringCurator struct {
	fakeCurator
	mu  sync.Mutex
	due map[types.Priority][]string
}

func (c *discoveringCurator) DiscoverDueTools(ctx context.Context, tier types.Priority) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	tools := c.due[tier]
	delete(c.due, tier)
	return tools, nil
}

func fastConfig() *Config {
	cfg := DefaultConfig()
	cfg.TickInterval = 10 * time.Millisecond
	cfg.DiscoveryInterval = 20 * time.Millisecond
	cfg.ShutdownGrace = time.Second
	for tier := range cfg.Delays {
		cfg.Delays[tier] = 0
	}
	return cfg
}

func TestSchedulerJobRoundTrip(t *testing.T) {
	store := newMemJobStore()
	curator := &fakeCurator{}
	s, err := NewScheduler(fastConfig(), store, curator, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	defer s.Stop(ctx)

	job, err := s.EnqueueAnalysis(ctx, []string{"t1", "t2"}, types.PriorityHigh, types.JobManual)
	require.NoError(t, err)
	assert.Equal(t, types.JobPending, job.Status)

	final, err := s.AwaitJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobCompleted, final.Status)
	assert.Equal(t, 2, final.SucceededCount())
	require.NotNil(t, final.StartedAt)
	require.NotNil(t, final.CompletedAt)
	assert.Equal(t, float64(100), final.Progress)

	// Persisted terminal state survives the scheduler
	stored, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobCompleted, stored.Status)
}

func TestSchedulerDiscoveryEnqueuesChunks(t *testing.T) {
	store := newMemJobStore()
	curator := &discoveringCurator{
		due: map[types.Priority][]string{
			types.PriorityUrgent: {"u1", "u2"},
			types.PriorityNormal: {"n1", "n2", "n3"},
		},
	}
	cfg := fastConfig()
	cfg.ChunkSizes[types.PriorityUrgent] = 1
	cfg.ChunkSizes[types.PriorityNormal] = 2
	s, err := NewScheduler(cfg, store, curator, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	defer s.Stop(ctx)

	// Urgent: 2 jobs of 1 tool; normal: 2 jobs (2 + 1 tools)
	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		done := 0
		for _, job := range store.jobs {
			if job.Status == types.JobCompleted {
				done++
			}
		}
		return done == 4
	}, 5*time.Second, 10*time.Millisecond)
}

func TestSchedulerCompletionCallback(t *testing.T) {
	store := newMemJobStore()
	s, err := NewScheduler(fastConfig(), store, &fakeCurator{}, nil)
	require.NoError(t, err)

	got := make(chan *types.BatchJob, 1)
	s.OnJobComplete(func(job *types.BatchJob) { got <- job })

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	defer s.Stop(ctx)

	job, err := s.EnqueueAnalysis(ctx, []string{"t1"}, types.PriorityNormal, types.JobManual)
	require.NoError(t, err)

	select {
	case cb := <-got:
		assert.Equal(t, job.ID, cb.ID)
		assert.True(t, cb.Status.IsTerminal())
	case <-time.After(5 * time.Second):
		t.Fatal("completion callback never fired")
	}
}

func TestSchedulerPausedToolSkipped(t *testing.T) {
	store := newMemJobStore()
	curator := &fakeCurator{}
	s, err := NewScheduler(fastConfig(), store, curator, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.PauseTool(ctx, "t2"))
	require.NoError(t, s.Start(ctx))
	defer s.Stop(ctx)

	job, err := s.EnqueueAnalysis(ctx, []string{"t1", "t2"}, types.PriorityNormal, types.JobManual)
	require.NoError(t, err)

	final, err := s.AwaitJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, final.SucceededCount())
	assert.Equal(t, 1, final.FailedCount())
	assert.True(t, store.paused["t2"])

	require.NoError(t, s.ResumeTool(ctx, "t2"))
	assert.False(t, store.paused["t2"])
}

func TestSchedulerStats(t *testing.T) {
	store := newMemJobStore()
	s, err := NewScheduler(fastConfig(), store, &fakeCurator{}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	defer s.Stop(ctx)

	job, err := s.EnqueueAnalysis(ctx, []string{"t1"}, types.PriorityNormal, types.JobManual)
	require.NoError(t, err)
	_, err = s.AwaitJob(ctx, job.ID)
	require.NoError(t, err)

	stats := s.Stats()
	assert.Equal(t, int64(1), stats.CompletedTotal)
	assert.Equal(t, int64(0), stats.FailedTotal)
}

func TestSchedulerDoubleStartRejected(t *testing.T) {
	store := newMemJobStore()
	s, err := NewScheduler(fastConfig(), store, &fakeCurator{}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	assert.Error(t, s.Start(ctx))
	require.NoError(t, s.Stop(ctx))
	assert.Error(t, s.Stop(ctx))
}

func TestSchedulerStartContextCancelLeavesJobsTheGrace(t *testing.T) {
	store := newMemJobStore()
	curator := &fakeCurator{delay: 50 * time.Millisecond}
	cfg := fastConfig()
	cfg.ShutdownGrace = 2 * time.Second
	s, err := NewScheduler(cfg, store, curator, nil)
	require.NoError(t, err)

	done := make(chan *types.BatchJob, 1)
	s.OnJobComplete(func(job *types.BatchJob) { done <- job })

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))

	job, err := s.EnqueueAnalysis(context.Background(),
		[]string{"t1", "t2", "t3"}, types.PriorityNormal, types.JobManual)
	require.NoError(t, err)

	// Cancel the start context mid-batch, as a signal handler would
	require.Eventually(t, func() bool {
		return curator.calls.Load() > 0
	}, 2*time.Second, 5*time.Millisecond)
	cancel()

	require.NoError(t, s.Stop(context.Background()))

	select {
	case final := <-done:
		assert.Equal(t, job.ID, final.ID)
		assert.Equal(t, types.JobCompleted, final.Status)
		assert.Equal(t, 3, final.SucceededCount())
	default:
		t.Fatal("in-flight job was killed instead of finishing within the grace")
	}
}

func TestSchedulerConcurrentStopSafe(t *testing.T) {
	store := newMemJobStore()
	s, err := NewScheduler(fastConfig(), store, &fakeCurator{}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		go func() { errs <- s.Stop(context.Background()) }()
	}

	failures := 0
	for i := 0; i < 2; i++ {
		if <-errs != nil {
			failures++
		}
	}
	assert.Equal(t, 1, failures)
}

func TestSchedulerRestart(t *testing.T) {
	store := newMemJobStore()
	s, err := NewScheduler(fastConfig(), store, &fakeCurator{}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	require.NoError(t, s.Stop(ctx))

	require.NoError(t, s.Start(ctx))
	defer s.Stop(ctx)

	job, err := s.EnqueueAnalysis(ctx, []string{"t1"}, types.PriorityNormal, types.JobManual)
	require.NoError(t, err)
	final, err := s.AwaitJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, types.JobCompleted, final.Status)
}

func TestSchedulerHistoryPruned(t *testing.T) {
	store := newMemJobStore()
	cfg := fastConfig()
	cfg.HistoryLimit = 3
	s, err := NewScheduler(cfg, store, &fakeCurator{}, nil)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	defer s.Stop(ctx)

	for i := 0; i < 6; i++ {
		job, err := s.EnqueueAnalysis(ctx, []string{fmt.Sprintf("t%d", i)}, types.PriorityNormal, types.JobManual)
		require.NoError(t, err)
		_, err = s.AwaitJob(ctx, job.ID)
		require.NoError(t, err)
	}

	// History stays bounded; evicted jobs remain queryable via the store
	require.Eventually(t, func() bool {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return len(s.history) <= 3
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int64(6), s.Stats().CompletedTotal)
}
