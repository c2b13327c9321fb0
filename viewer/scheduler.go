package viewer

import (
	"sync"
	"time"
)

// FrameID identifies a requested frame callback. The zero value never
// refers to a request.
type FrameID uint64

// Scheduler runs callbacks at the next display refresh. RequestFrame must
// be safe to call from any goroutine.
type Scheduler interface {
	RequestFrame(fn func()) FrameID
	CancelFrame(id FrameID)
}

// FrameQueue is a Scheduler pumped by its host: each call to RunFrame is
// one refresh.
type FrameQueue struct {
	mu    sync.Mutex
	next  FrameID
	order []FrameID
	live  map[FrameID]func()
}

func NewFrameQueue() *FrameQueue {
	return &FrameQueue{live: make(map[FrameID]func())}
}

func (q *FrameQueue) RequestFrame(fn func()) FrameID {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.next++
	q.order = append(q.order, q.next)
	q.live[q.next] = fn
	return q.next
}

// CancelFrame drops a pending request. Unknown or already-run ids are
// ignored.
func (q *FrameQueue) CancelFrame(id FrameID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.live, id)
}

// Pending returns the number of callbacks waiting for the next frame.
func (q *FrameQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.live)
}

// RunFrame runs every callback requested before the call and returns how
// many ran. Callbacks requested while running wait for the next frame, and
// a callback cancelled by an earlier one in the same frame is skipped.
func (q *FrameQueue) RunFrame() int {
	q.mu.Lock()
	batch := q.order
	q.order = nil
	q.mu.Unlock()

	ran := 0
	for _, id := range batch {
		q.mu.Lock()
		fn, ok := q.live[id]
		delete(q.live, id)
		q.mu.Unlock()
		if !ok {
			continue
		}
		fn()
		ran++
	}
	return ran
}

// TickerScheduler pumps a FrameQueue from its own goroutine at a fixed
// interval, for hosts without a display refresh callback.
type TickerScheduler struct {
	*FrameQueue
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func NewTickerScheduler(interval time.Duration) *TickerScheduler {
	s := &TickerScheduler{
		FrameQueue: NewFrameQueue(),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
	go s.run(interval)
	return s
}

func (s *TickerScheduler) run(interval time.Duration) {
	defer close(s.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.RunFrame()
		case <-s.stop:
			return
		}
	}
}

// Stop halts the ticker and waits for an in-flight frame to finish. It is
// safe to call more than once.
func (s *TickerScheduler) Stop() {
	s.once.Do(func() { close(s.stop) })
	<-s.done
}
