package transport

import (
	"context"
	"sync"
	"sync/atomic"
)

// Worker serializes all mutation of one link's framer/deframer/mux state
// onto a single goroutine, fed by a bounded queue of posted closures.
// ByteStream completions, link-up/link-down notifications, and API calls
// all funnel through Post so that nothing touches protocol state from more
// than one goroutine, generalized from a single-purpose fan-in worker into
// "run one closure".
type Worker struct {
	mu     sync.Mutex
	ch     chan func()
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed atomic.Bool
}

// NewWorker starts a worker with a queue of the given depth. Closing parent
// stops the worker the same as calling Close.
func NewWorker(parent context.Context, queueLen int) *Worker {
	ctx, cancel := context.WithCancel(parent)
	w := &Worker{
		ch:     make(chan func(), queueLen),
		ctx:    ctx,
		cancel: cancel,
	}
	w.wg.Add(1)
	go w.loop()
	go func() {
		<-ctx.Done()
		w.closed.Store(true)
	}()
	return w
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case fn, ok := <-w.ch:
			if !ok {
				return
			}
			fn()
		case <-w.ctx.Done():
			return
		}
	}
}

// Post enqueues fn to run on the worker goroutine. It reports false (and
// drops fn) if the worker has been closed or its queue is full; callers
// that cannot tolerate drops should size queueLen for worst-case event
// volume (one outstanding write completion, one outstanding read
// completion, one link event).
func (w *Worker) Post(fn func()) bool {
	if w.closed.Load() {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed.Load() {
		return false
	}
	select {
	case w.ch <- fn:
		return true
	default:
		return false
	}
}

// Close stops the worker and waits for the loop goroutine to exit. Closures
// still queued when Close is called may or may not run.
func (w *Worker) Close() {
	if w.closed.Swap(true) {
		return
	}
	w.cancel()
	w.mu.Lock()
	close(w.ch)
	w.mu.Unlock()
	w.wg.Wait()
}
