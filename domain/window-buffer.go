package domain

import (
	"sync"
	"time"

	"github.com/gammazero/deque"
)

type Sample[T any] struct {
	EventTime time.Time
	Value     T
}

// WindowBuffer is a time-ordered buffer that retains samples whose age
// relative to the wall clock does not exceed the window. Eviction only pops
// from the front.
type WindowBuffer[T any] struct {
	mu     sync.RWMutex
	window time.Duration
	items  deque.Deque[Sample[T]]
}

func NewWindowBuffer[T any](window time.Duration) *WindowBuffer[T] {
	return &WindowBuffer[T]{window: window}
}

func (b *WindowBuffer[T]) Window() time.Duration {
	return b.window
}

// Push appends a sample and evicts expired ones. Samples older than the
// newest buffered sample are rejected so the buffer stays sorted.
func (b *WindowBuffer[T]) Push(eventTime time.Time, value T, now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.items.Len() > 0 && eventTime.Before(b.items.Back().EventTime) {
		return false
	}

	b.items.PushBack(Sample[T]{EventTime: eventTime, Value: value})
	b.evict(now)

	return true
}

func (b *WindowBuffer[T]) evict(now time.Time) {
	for b.items.Len() > 0 && now.Sub(b.items.Front().EventTime) > b.window {
		b.items.PopFront()
	}
}

func (b *WindowBuffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.items.Len()
}

// Snapshot returns a copy of the buffered samples, oldest first.
func (b *WindowBuffer[T]) Snapshot() []Sample[T] {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]Sample[T], b.items.Len())
	for i := range out {
		out[i] = b.items.At(i)
	}

	return out
}
