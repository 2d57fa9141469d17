package monitor

import (
	"container/heap"
	"sync"

	"github.com/stackspy/stackspy/internal/types"
)

// PriorityJobQueue orders pending batch jobs by priority rank, FIFO within
// a tier. Safe for concurrent producers and consumers: every operation
// takes the queue lock, so a job is never reported twice or lost.
type PriorityJobQueue struct {
	mu    sync.Mutex
	items jobHeap
	seq   uint64
}

// NewPriorityJobQueue creates an empty queue
func NewPriorityJobQueue() *PriorityJobQueue {
	q := &PriorityJobQueue{}
	heap.Init(&q.items)
	return q
}

// Enqueue inserts a job. O(log n).
func (q *PriorityJobQueue) Enqueue(job *types.BatchJob) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.seq++
	heap.Push(&q.items, &queueItem{job: job, rank: job.Priority.Rank(), seq: q.seq})
}

// Dequeue removes and returns the highest-priority pending job, or nil if
// the queue is empty. Ties within a tier break by enqueue order.
func (q *PriorityJobQueue) Dequeue() *types.BatchJob {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.items.Len() == 0 {
		return nil
	}
	item := heap.Pop(&q.items).(*queueItem)
	return item.job
}

// Len returns the current pending count
func (q *PriorityJobQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// Depths returns the pending count per priority tier
func (q *PriorityJobQueue) Depths() map[types.Priority]int {
	q.mu.Lock()
	defer q.mu.Unlock()

	depths := make(map[types.Priority]int)
	for _, item := range q.items {
		depths[item.job.Priority]++
	}
	return depths
}

type queueItem struct {
	job  *types.BatchJob
	rank int
	seq  uint64
}

type jobHeap []*queueItem

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].rank != h[j].rank {
		return h[i].rank < h[j].rank
	}
	return h[i].seq < h[j].seq
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x interface{}) {
	*h = append(*h, x.(*queueItem))
}

func (h *jobHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}
