package trader

import (
	"container/heap"
	"sync"
	"time"

	"solana-launch-sniper/internal/models"
)

type sellEntry struct {
	at  time.Time
	pos *models.Position
}

type sellHeap []sellEntry

func (h sellHeap) Len() int            { return len(h) }
func (h sellHeap) Less(i, j int) bool  { return h[i].at.Before(h[j].at) }
func (h sellHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *sellHeap) Push(x interface{}) { *h = append(*h, x.(sellEntry)) }

func (h *sellHeap) Pop() interface{} {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// sellScheduler holds positions waiting out their sell delay and fires a
// callback when each becomes due. One goroutine and one timer serve any
// number of pending sells; nothing blocks per position.
type sellScheduler struct {
	mu      sync.Mutex
	pending sellHeap
	wake    chan struct{}
	done    chan struct{}
	fire    func(*models.Position)
}

func newSellScheduler(fire func(*models.Position)) *sellScheduler {
	s := &sellScheduler{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
		fire: fire,
	}
	go s.run()
	return s
}

// Schedule queues pos to fire at the given time. Times in the past fire
// immediately.
func (s *sellScheduler) Schedule(at time.Time, pos *models.Position) {
	s.mu.Lock()
	heap.Push(&s.pending, sellEntry{at: at, pos: pos})
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *sellScheduler) Stop() {
	close(s.done)
}

// Flush fires every pending entry immediately, regardless of its due time.
// Used during forced shutdown so positions do not wait out their timers.
func (s *sellScheduler) Flush() {
	for {
		s.mu.Lock()
		if s.pending.Len() == 0 {
			s.mu.Unlock()
			return
		}
		e := heap.Pop(&s.pending).(sellEntry)
		s.mu.Unlock()

		s.fire(e.pos)
	}
}

func (s *sellScheduler) run() {
	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		s.mu.Lock()
		var wait time.Duration
		hasNext := s.pending.Len() > 0
		if hasNext {
			wait = time.Until(s.pending[0].at)
		}
		s.mu.Unlock()

		if hasNext && wait <= 0 {
			s.fireDue()
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		if hasNext {
			timer.Reset(wait)
		}

		if hasNext {
			select {
			case <-s.done:
				return
			case <-s.wake:
			case <-timer.C:
			}
		} else {
			select {
			case <-s.done:
				return
			case <-s.wake:
			}
		}
	}
}

func (s *sellScheduler) fireDue() {
	now := time.Now()
	for {
		s.mu.Lock()
		if s.pending.Len() == 0 || s.pending[0].at.After(now) {
			s.mu.Unlock()
			return
		}
		e := heap.Pop(&s.pending).(sellEntry)
		s.mu.Unlock()

		s.fire(e.pos)
	}
}
