package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stackspy/stackspy/internal/curation"
	"github.com/stackspy/stackspy/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// tracker receives job state transitions from the pool. The scheduler
// implements it; tests substitute their own.
type tracker interface {
	recordResult(job *types.BatchJob, result types.ToolResult, progress float64)
	completeJob(job *types.BatchJob)
	failJob(job *types.BatchJob, errMsg string)
	isPaused(toolID string) bool
}

// WorkerPool runs job bodies concurrently, bounded by a weighted
// semaphore so the count of running jobs never exceeds the configured
// maximum.
type WorkerPool struct {
	sem      *semaphore.Weighted
	governor *Governor
	curator  curation.Curator
	log      *zap.SugaredLogger

	wg      sync.WaitGroup
	running atomic.Int64
}

// NewWorkerPool creates a pool admitting at most maxConcurrent jobs
func NewWorkerPool(maxConcurrent int, governor *Governor, curator curation.Curator, log *zap.SugaredLogger) *WorkerPool {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &WorkerPool{
		sem:      semaphore.NewWeighted(int64(maxConcurrent)),
		governor: governor,
		curator:  curator,
		log:      log,
	}
}

// TryAcquire reserves a job slot without blocking. The caller must either
// Start a job or Release the slot.
func (p *WorkerPool) TryAcquire() bool {
	return p.sem.TryAcquire(1)
}

// Release returns an unused job slot
func (p *WorkerPool) Release() {
	p.sem.Release(1)
}

// RunningCount returns the number of jobs currently executing
func (p *WorkerPool) RunningCount() int {
	return int(p.running.Load())
}

// Start executes the job body in its own goroutine. The caller must hold a
// slot from TryAcquire; the slot is released when the job reaches a
// terminal state.
func (p *WorkerPool) Start(ctx context.Context, job *types.BatchJob, tr tracker) {
	p.wg.Add(1)
	p.running.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.running.Add(-1)
		defer p.sem.Release(1)
		p.run(ctx, job, tr)
	}()
}

// Wait blocks until all in-flight jobs finish or the grace period elapses.
// Returns true if everything drained in time.
func (p *WorkerPool) Wait(grace time.Duration) bool {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(grace):
		return false
	}
}

// run is the per-job body: process ToolIDs strictly in order, throttling
// each item by the job's priority and recording a per-tool outcome. A
// failing tool is logged and recorded, never fatal to the batch; only a
// canceled context or a panic fails the whole job.
func (p *WorkerPool) run(ctx context.Context, job *types.BatchJob, tr tracker) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Errorw("job body panicked", "job_id", job.ID, "panic", r)
			tr.failJob(job, fmt.Sprintf("panic: %v", r))
		}
	}()

	total := len(job.ToolIDs)
	for i, toolID := range job.ToolIDs {
		progress := float64(i+1) / float64(total) * 100

		if tr.isPaused(toolID) {
			tr.recordResult(job, types.ToolResult{
				ToolID: toolID,
				OK:     false,
				Error:  "monitoring paused",
			}, progress)
			continue
		}

		// The only throttle error is context cancellation, which is
		// unrecoverable for the rest of the batch.
		if err := p.governor.Throttle(ctx, job.Priority); err != nil {
			tr.failJob(job, err.Error())
			return
		}

		start := time.Now()
		result, err := p.curator.AnalyzeTool(ctx, toolID)
		elapsed := time.Since(start)

		if err != nil {
			if ctx.Err() != nil {
				tr.failJob(job, fmt.Sprintf("job interrupted at %s: %v", toolID, ctx.Err()))
				return
			}
			p.log.Warnw("tool analysis failed",
				"job_id", job.ID, "tool_id", toolID, "error", err)
			tr.recordResult(job, types.ToolResult{
				ToolID:     toolID,
				OK:         false,
				Error:      err.Error(),
				DurationMS: elapsed.Milliseconds(),
			}, progress)
			continue
		}

		tr.recordResult(job, types.ToolResult{
			ToolID:     toolID,
			OK:         true,
			Changes:    result.ChangesDetected,
			DurationMS: elapsed.Milliseconds(),
		}, progress)
	}

	tr.completeJob(job)
}
