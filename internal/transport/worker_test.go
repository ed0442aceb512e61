package transport

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestWorkerRunsPostedClosuresInOrder(t *testing.T) {
	w := NewWorker(context.Background(), 8)
	defer w.Close()

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		i := i
		wg.Add(1)
		if !w.Post(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			wg.Done()
		}) {
			t.Fatalf("Post(%d) returned false", i)
		}
	}
	wg.Wait()
	mu.Lock()
	defer mu.Unlock()
	for i, v := range order {
		if v != i {
			t.Fatalf("order = %v, want sequential 0..4", order)
		}
	}
}

func TestWorkerCloseStopsProcessing(t *testing.T) {
	w := NewWorker(context.Background(), 1)
	w.Close()
	if w.Post(func() {}) {
		t.Fatalf("Post succeeded after Close")
	}
}

func TestWorkerCloseIsIdempotent(t *testing.T) {
	w := NewWorker(context.Background(), 1)
	w.Close()
	w.Close()
}

func TestWorkerParentCancellationStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	w := NewWorker(ctx, 1)
	cancel()
	time.Sleep(10 * time.Millisecond)
	if w.Post(func() {}) {
		t.Fatalf("Post accepted after parent context cancellation")
	}
}
