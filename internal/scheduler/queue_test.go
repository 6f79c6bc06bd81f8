package scheduler

import (
	"context"
	"testing"
	"time"
)

func TestQueueDequeuesHighestPriorityFirst(t *testing.T) {
	q := NewQueue(10)
	q.Enqueue(AudioChunk{ClientID: "c", ChunkID: "batch-1", Priority: PriorityBatch}, time.Second)
	q.Enqueue(AudioChunk{ClientID: "c", ChunkID: "buffered-1", Priority: PriorityBuffered}, time.Second)
	q.Enqueue(AudioChunk{ClientID: "c", ChunkID: "realtime-1", Priority: PriorityRealtime}, time.Second)

	ctx := context.Background()
	first, ok := q.Dequeue(ctx)
	if !ok || first.ChunkID != "realtime-1" {
		t.Fatalf("expected realtime-1 first, got %+v (ok=%v)", first, ok)
	}
	second, ok := q.Dequeue(ctx)
	if !ok || second.ChunkID != "buffered-1" {
		t.Fatalf("expected buffered-1 second, got %+v (ok=%v)", second, ok)
	}
	third, ok := q.Dequeue(ctx)
	if !ok || third.ChunkID != "batch-1" {
		t.Fatalf("expected batch-1 third, got %+v (ok=%v)", third, ok)
	}
}

func TestQueuePreservesFIFOWithinPriorityClass(t *testing.T) {
	q := NewQueue(10)
	for i := 0; i < 3; i++ {
		q.Enqueue(AudioChunk{ChunkID: string(rune('a' + i)), Priority: PriorityBuffered}, time.Second)
	}

	ctx := context.Background()
	want := []string{"a", "b", "c"}
	for _, w := range want {
		got, ok := q.Dequeue(ctx)
		if !ok || got.ChunkID != w {
			t.Fatalf("expected %q, got %+v (ok=%v)", w, got, ok)
		}
	}
}

func TestQueueEnqueueDropsWhenFullAndWaitExpires(t *testing.T) {
	q := NewQueue(1)
	if !q.Enqueue(AudioChunk{ChunkID: "first"}, time.Second) {
		t.Fatal("expected the first enqueue on an empty queue to succeed")
	}
	if q.Enqueue(AudioChunk{ChunkID: "second"}, 20*time.Millisecond) {
		t.Fatal("expected the second enqueue to be dropped while the queue stays full")
	}
}

func TestQueueEnqueueUnblocksWhenRoomFrees(t *testing.T) {
	q := NewQueue(1)
	q.Enqueue(AudioChunk{ChunkID: "first"}, time.Second)

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.DrainOne()
	}()

	if !q.Enqueue(AudioChunk{ChunkID: "second"}, time.Second) {
		t.Fatal("expected the enqueue to succeed once room freed up")
	}
}

func TestQueueCloseUnblocksDequeue(t *testing.T) {
	q := NewQueue(1)
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue(context.Background())
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("expected Dequeue to report ok=false after Close on an empty queue")
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not unblock after Close")
	}
}

func TestQueueDequeueRespectsContextCancel(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue(ctx)
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case ok := <-done:
		if ok {
			t.Error("expected Dequeue to report ok=false after context cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("Dequeue did not unblock after context cancellation")
	}
}
