// Package monitor implements the competitive monitoring core: a priority
// job queue, a bounded worker pool, per-priority throttling, and the
// scheduling control loop that ties them to the curation collaborator.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stackspy/stackspy/internal/curation"
	"github.com/stackspy/stackspy/internal/types"
	"go.uber.org/zap"
)

// JobStore is the slice of the storage layer the scheduler needs
type JobStore interface {
	SaveJob(ctx context.Context, job *types.BatchJob) error
	GetJob(ctx context.Context, id string) (*types.BatchJob, error)
	SetToolPaused(ctx context.Context, id string, paused bool) error
}

// Stats is a point-in-time summary of the monitoring loop
type Stats struct {
	Running         int                    `json:"running"`
	Pending         int                    `json:"pending"`
	QueueDepths     map[types.Priority]int `json:"queue_depths"`
	CompletedTotal  int64                  `json:"completed_total"`
	FailedTotal     int64                  `json:"failed_total"`
	PausedTools     int                    `json:"paused_tools"`
	LastDiscoveryAt *time.Time             `json:"last_discovery_at,omitempty"`
	UptimeSeconds   int64                  `json:"uptime_seconds"`
}

// CompletionFunc is invoked after a job reaches a terminal state. The job
// passed in is a private copy.
type CompletionFunc func(job *types.BatchJob)

// Scheduler owns the priority queue, the active-jobs map, and the bounded
// completed history. The control loop is sequential; job bodies run
// concurrently in the worker pool. The queue and the job maps each have
// their own lock so a blocked job body never stalls enqueueing.
type Scheduler struct {
	cfg     *Config
	queue   *PriorityJobQueue
	pool    *WorkerPool
	curator curation.Curator
	store   JobStore
	log     *zap.SugaredLogger

	// mu guards active, history, paused, counters, and job field mutation
	mu             sync.RWMutex
	active         map[string]*types.BatchJob
	history        []*types.BatchJob
	paused         map[string]bool
	completedCount int64
	failedCount    int64
	callbacks      []CompletionFunc

	lastDiscovery time.Time
	startedAt     time.Time

	jobCtx    context.Context
	jobCancel context.CancelFunc

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewScheduler creates a scheduler. Store and curator are required.
func NewScheduler(cfg *Config, store JobStore, curator curation.Curator, log *zap.SugaredLogger) (*Scheduler, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scheduler config: %w", err)
	}
	if store == nil {
		return nil, fmt.Errorf("job store is required")
	}
	if curator == nil {
		return nil, fmt.Errorf("curator is required")
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	governor, err := NewGovernor(cfg.Delays)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit config: %w", err)
	}

	s := &Scheduler{
		cfg:     cfg,
		queue:   NewPriorityJobQueue(),
		curator: curator,
		store:   store,
		log:     log,
		active:  make(map[string]*types.BatchJob),
		paused:  make(map[string]bool),
	}
	s.pool = NewWorkerPool(cfg.MaxConcurrentJobs, governor, curator, log)
	return s, nil
}

// OnJobComplete registers a callback invoked with a copy of every job that
// reaches a terminal state. Register before Start.
func (s *Scheduler) OnJobComplete(fn CompletionFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callbacks = append(s.callbacks, fn)
}

// Start begins the scheduling control loop. The context governs the tick
// loop only; job bodies run on an independent context so that canceling
// the start context (a signal handler, typically) still leaves in-flight
// jobs the shutdown grace granted by Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	s.runMu.Lock()
	if s.running {
		s.runMu.Unlock()
		return fmt.Errorf("scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.runMu.Unlock()

	s.mu.Lock()
	s.startedAt = time.Now()
	s.mu.Unlock()
	s.jobCtx, s.jobCancel = context.WithCancel(context.Background())

	go s.loop(ctx, stopCh, doneCh)
	s.log.Infow("scheduler started",
		"tick_interval", s.cfg.TickInterval,
		"discovery_interval", s.cfg.DiscoveryInterval,
		"max_concurrent_jobs", s.cfg.MaxConcurrentJobs)
	return nil
}

// Stop gracefully stops the scheduler: no new ticks, in-flight jobs get
// the configured grace period, then the pool's context is canceled.
// Flipping running before the close makes concurrent Stop calls safe:
// only the first one closes the channel.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.runMu.Lock()
	if !s.running {
		s.runMu.Unlock()
		return fmt.Errorf("scheduler is not running")
	}
	s.running = false
	stopCh, doneCh := s.stopCh, s.doneCh
	s.runMu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
	case <-ctx.Done():
		return ctx.Err()
	}

	if !s.pool.Wait(s.cfg.ShutdownGrace) {
		s.log.Warnw("grace period expired, forcing job shutdown",
			"grace", s.cfg.ShutdownGrace, "running", s.pool.RunningCount())
		s.jobCancel()
		s.pool.Wait(s.cfg.ShutdownGrace)
	} else {
		s.jobCancel()
	}

	s.log.Infow("scheduler stopped")
	return nil
}

// IsRunning returns whether the control loop is active
func (s *Scheduler) IsRunning() bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.running
}

// loop runs the scheduling ticks until stopped. A failing tick is logged
// and followed by an extra backoff sleep; it never kills the loop.
func (s *Scheduler) loop(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	// First pass runs immediately rather than waiting a full tick
	if err := s.tick(ctx); err != nil {
		s.log.Errorw("scheduler tick failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if err := s.tick(ctx); err != nil {
				s.log.Errorw("scheduler tick failed", "error", err)
				select {
				case <-time.After(s.cfg.ErrorBackoff):
				case <-ctx.Done():
					return
				case <-stopCh:
					return
				}
			}
		}
	}
}

// tick performs one pass of the control loop: discovery when due,
// promotion while capacity allows, history pruning.
func (s *Scheduler) tick(ctx context.Context) error {
	s.mu.RLock()
	discoveryDue := !s.cfg.DisableDiscovery && time.Since(s.lastDiscovery) >= s.cfg.DiscoveryInterval
	s.mu.RUnlock()

	if discoveryDue {
		if err := s.runDiscovery(ctx); err != nil {
			return fmt.Errorf("discovery failed: %w", err)
		}
		s.mu.Lock()
		s.lastDiscovery = time.Now()
		s.mu.Unlock()
	}

	s.promote()
	s.pruneHistory()
	return nil
}

// runDiscovery asks the curator for due tools per tier and enqueues one
// scheduled job per chunk
func (s *Scheduler) runDiscovery(ctx context.Context) error {
	for _, tier := range types.Priorities() {
		toolIDs, err := s.curator.DiscoverDueTools(ctx, tier)
		if err != nil {
			return fmt.Errorf("tier %s: %w", tier, err)
		}

		toolIDs = s.filterPaused(toolIDs)
		if len(toolIDs) == 0 {
			continue
		}

		chunkSize := s.cfg.chunkSize(tier)
		for start := 0; start < len(toolIDs); start += chunkSize {
			end := start + chunkSize
			if end > len(toolIDs) {
				end = len(toolIDs)
			}
			if _, err := s.EnqueueAnalysis(ctx, toolIDs[start:end], tier, types.JobScheduled); err != nil {
				s.log.Warnw("failed to enqueue discovered chunk",
					"tier", tier, "size", end-start, "error", err)
			}
		}
		s.log.Debugw("discovery enqueued tools", "tier", tier, "count", len(toolIDs))
	}
	return nil
}

// promote drains the queue into the worker pool while below capacity
func (s *Scheduler) promote() {
	for {
		if !s.pool.TryAcquire() {
			return
		}
		job := s.queue.Dequeue()
		if job == nil {
			s.pool.Release()
			return
		}
		s.markRunning(job)
		s.pool.Start(s.jobCtx, job, s)
	}
}

// EnqueueAnalysis creates a pending batch job and inserts it into the
// priority queue. The job record is persisted immediately so its status is
// queryable before it runs.
func (s *Scheduler) EnqueueAnalysis(ctx context.Context, toolIDs []string, priority types.Priority, jobType types.JobType) (*types.BatchJob, error) {
	job := &types.BatchJob{
		ID:        uuid.New().String(),
		ToolIDs:   append([]string(nil), toolIDs...),
		Priority:  priority,
		Type:      jobType,
		Status:    types.JobPending,
		CreatedAt: time.Now(),
	}
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("invalid job: %w", err)
	}

	s.queue.Enqueue(job)
	s.persistJob(job)

	s.log.Infow("job enqueued",
		"job_id", job.ID, "priority", priority, "type", jobType, "tools", len(toolIDs))
	return job.Clone(), nil
}

// TriggerImmediate enqueues a single-tool urgent job
func (s *Scheduler) TriggerImmediate(ctx context.Context, toolID string) (*types.BatchJob, error) {
	return s.EnqueueAnalysis(ctx, []string{toolID}, types.PriorityUrgent, types.JobTriggered)
}

// JobStatus returns a copy of the job with the given id, checking active
// jobs, the completed history, and finally the persistent store.
func (s *Scheduler) JobStatus(ctx context.Context, id string) (*types.BatchJob, error) {
	s.mu.RLock()
	if job, ok := s.active[id]; ok {
		defer s.mu.RUnlock()
		return job.Clone(), nil
	}
	for _, job := range s.history {
		if job.ID == id {
			defer s.mu.RUnlock()
			return job.Clone(), nil
		}
	}
	s.mu.RUnlock()

	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("job %s not found: %w", id, err)
	}
	return job, nil
}

// AwaitJob blocks until the job reaches a terminal state or the context is
// canceled, then returns its final record
func (s *Scheduler) AwaitJob(ctx context.Context, id string) (*types.BatchJob, error) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		job, err := s.JobStatus(ctx, id)
		if err != nil {
			return nil, err
		}
		if job.Status.IsTerminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Stats returns a snapshot of monitoring state
func (s *Scheduler) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var lastDiscovery *time.Time
	if !s.lastDiscovery.IsZero() {
		t := s.lastDiscovery
		lastDiscovery = &t
	}

	var uptime int64
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	return Stats{
		Running:         s.pool.RunningCount(),
		Pending:         s.queue.Len(),
		QueueDepths:     s.queue.Depths(),
		CompletedTotal:  s.completedCount,
		FailedTotal:     s.failedCount,
		PausedTools:     len(s.paused),
		LastDiscoveryAt: lastDiscovery,
		UptimeSeconds:   uptime,
	}
}

// PauseTool stops future scheduling of a tool. In-flight jobs still finish;
// there is no mid-job cancellation.
func (s *Scheduler) PauseTool(ctx context.Context, toolID string) error {
	s.mu.Lock()
	s.paused[toolID] = true
	s.mu.Unlock()

	if err := s.store.SetToolPaused(ctx, toolID, true); err != nil {
		return fmt.Errorf("failed to persist pause for %s: %w", toolID, err)
	}
	s.log.Infow("tool monitoring paused", "tool_id", toolID)
	return nil
}

// ResumeTool re-enables scheduling of a tool
func (s *Scheduler) ResumeTool(ctx context.Context, toolID string) error {
	s.mu.Lock()
	delete(s.paused, toolID)
	s.mu.Unlock()

	if err := s.store.SetToolPaused(ctx, toolID, false); err != nil {
		return fmt.Errorf("failed to persist resume for %s: %w", toolID, err)
	}
	s.log.Infow("tool monitoring resumed", "tool_id", toolID)
	return nil
}

func (s *Scheduler) filterPaused(toolIDs []string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	filtered := toolIDs[:0:0]
	for _, id := range toolIDs {
		if !s.paused[id] {
			filtered = append(filtered, id)
		}
	}
	return filtered
}

// markRunning transitions a job from pending to running and registers it
// in the active-jobs map
func (s *Scheduler) markRunning(job *types.BatchJob) {
	s.mu.Lock()
	now := time.Now()
	job.Status = types.JobRunning
	job.StartedAt = &now
	s.active[job.ID] = job
	s.mu.Unlock()

	s.persistJob(job)
}

// recordResult appends a per-tool outcome and updates progress. Called by
// the worker; the lock is held only for the mutation, never across
// collaborator I/O.
func (s *Scheduler) recordResult(job *types.BatchJob, result types.ToolResult, progress float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.Results = append(job.Results, result)
	job.Progress = progress
}

// completeJob transitions a job to completed and retires it
func (s *Scheduler) completeJob(job *types.BatchJob) {
	s.mu.Lock()
	now := time.Now()
	job.Status = types.JobCompleted
	job.CompletedAt = &now
	job.Progress = 100
	s.completedCount++
	s.retireLocked(job)
	s.mu.Unlock()

	s.finishJob(job)
}

// failJob transitions a job to failed with the given error
func (s *Scheduler) failJob(job *types.BatchJob, errMsg string) {
	s.mu.Lock()
	now := time.Now()
	job.Status = types.JobFailed
	job.Error = errMsg
	job.CompletedAt = &now
	s.failedCount++
	s.retireLocked(job)
	s.mu.Unlock()

	s.log.Warnw("job failed", "job_id", job.ID, "error", errMsg)
	s.finishJob(job)
}

// retireLocked moves a job from the active map into the completed history.
// Caller holds s.mu.
func (s *Scheduler) retireLocked(job *types.BatchJob) {
	delete(s.active, job.ID)
	s.history = append(s.history, job)
}

// finishJob persists the terminal job record and notifies completion
// callbacks with a private copy. Runs outside the scheduler lock.
func (s *Scheduler) finishJob(job *types.BatchJob) {
	s.persistJob(job)

	s.mu.RLock()
	callbacks := append([]CompletionFunc(nil), s.callbacks...)
	clone := job.Clone()
	s.mu.RUnlock()

	for _, fn := range callbacks {
		fn(clone)
	}

	s.log.Infow("job finished",
		"job_id", job.ID, "status", job.Status,
		"succeeded", job.SucceededCount(), "failed", job.FailedCount())
}

// pruneHistory evicts the oldest completed jobs beyond the retention cap.
// History is appended in completion order, so the front is oldest.
func (s *Scheduler) pruneHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if excess := len(s.history) - s.cfg.HistoryLimit; excess > 0 {
		s.history = append([]*types.BatchJob(nil), s.history[excess:]...)
	}
}

// isPaused implements tracker for the worker pool
func (s *Scheduler) isPaused(toolID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.paused[toolID]
}

// persistJob writes the job record, logging persistence failures instead
// of surfacing them: the in-memory state stays authoritative.
func (s *Scheduler) persistJob(job *types.BatchJob) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.mu.RLock()
	clone := job.Clone()
	s.mu.RUnlock()

	if err := s.store.SaveJob(ctx, clone); err != nil {
		s.log.Warnw("failed to persist job", "job_id", clone.ID, "error", err)
	}
}
