package scheduler

import (
	"container/heap"
	"context"
	"sync"
	"time"
)

// DefaultQueueSize mirrors the Python original's queue_size=50.
const DefaultQueueSize = 50

// DefaultEnqueueWait bounds how long a producer blocks when the queue is
// full before the chunk is dropped and counted.
const DefaultEnqueueWait = 100 * time.Millisecond

// seq breaks ties between chunks of equal priority so the heap stays
// FIFO within a class instead of reordering them arbitrarily.
type queueItem struct {
	chunk AudioChunk
	seq   uint64
}

type priorityHeap []queueItem

func (h priorityHeap) Len() int { return len(h) }
func (h priorityHeap) Less(i, j int) bool {
	if h[i].chunk.Priority != h[j].chunk.Priority {
		return h[i].chunk.Priority < h[j].chunk.Priority
	}
	return h[i].seq < h[j].seq
}
func (h priorityHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *priorityHeap) Push(x any)   { *h = append(*h, x.(queueItem)) }
func (h *priorityHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Queue is a bounded, priority-ordered, multi-producer single-consumer
// queue of AudioChunks. Realtime chunks always drain ahead of Buffered or
// Batch ones queued earlier; within a class, FIFO order is preserved.
type Queue struct {
	capacity int
	mu       sync.Mutex
	notEmpty *sync.Cond
	heap     priorityHeap
	nextSeq  uint64
	closed   bool
}

func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	q := &Queue{capacity: capacity}
	q.notEmpty = sync.NewCond(&q.mu)
	heap.Init(&q.heap)
	return q
}

// Enqueue adds chunk to the queue, blocking up to wait for room if the
// queue is full. It reports false (without adding the chunk) if the wait
// expires or the queue has been closed — the caller is expected to count
// this as a drop.
func (q *Queue) Enqueue(chunk AudioChunk, wait time.Duration) bool {
	deadline := time.Now().Add(wait)
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.heap) >= q.capacity && !q.closed {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}
		waited := waitCondWithTimeout(q.notEmpty, remaining)
		if !waited {
			return false
		}
	}
	if q.closed {
		return false
	}

	heap.Push(&q.heap, queueItem{chunk: chunk, seq: q.nextSeq})
	q.nextSeq++
	q.notEmpty.Signal()
	return true
}

// Dequeue blocks until a chunk is available, ctx is canceled, or the queue
// is closed and drained.
func (q *Queue) Dequeue(ctx context.Context) (AudioChunk, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.heap) == 0 {
		if q.closed {
			return AudioChunk{}, false
		}
		if ctx.Err() != nil {
			return AudioChunk{}, false
		}
		waitCondWithTimeout(q.notEmpty, 50*time.Millisecond)
	}
	item := heap.Pop(&q.heap).(queueItem)
	q.notEmpty.Signal()
	return item.chunk, true
}

// DrainOne is a non-blocking Dequeue used to fill a batch window: it
// returns immediately with ok=false if nothing is queued right now.
func (q *Queue) DrainOne() (AudioChunk, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.heap) == 0 {
		return AudioChunk{}, false
	}
	item := heap.Pop(&q.heap).(queueItem)
	q.notEmpty.Signal()
	return item.chunk, true
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.heap)
}

// Close wakes any blocked producers/consumers; Dequeue returns ok=false
// once the queue has been drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.notEmpty.Broadcast()
}

// waitCondWithTimeout waits on cond for up to d, returning false if it
// timed out. sync.Cond has no native timeout, so a timer goroutine
// broadcasts to wake the waiter; this is the standard workaround.
func waitCondWithTimeout(cond *sync.Cond, d time.Duration) bool {
	timedOut := make(chan struct{})
	timer := time.AfterFunc(d, func() {
		close(timedOut)
		cond.Broadcast()
	})
	cond.Wait()
	stillTicking := timer.Stop()
	if !stillTicking {
		select {
		case <-timedOut:
			return false
		default:
			return true
		}
	}
	return true
}
