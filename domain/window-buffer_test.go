package domain

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowBuffer_EvictsFromFront(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	b := NewWindowBuffer[int](10 * time.Second)

	for i := 0; i < 30; i++ {
		now := start.Add(time.Duration(i) * time.Second)
		require.True(t, b.Push(now, i, now))

		for _, s := range b.Snapshot() {
			assert.LessOrEqual(t, now.Sub(s.EventTime), 10*time.Second, "sample %d outlived the window", s.Value)
		}
	}

	samples := b.Snapshot()
	assert.Len(t, samples, 11)
	assert.Equal(t, 19, samples[0].Value)
	assert.Equal(t, 29, samples[len(samples)-1].Value)
}

func TestWindowBuffer_RejectsOutOfOrder(t *testing.T) {
	now := time.Unix(100, 0)
	b := NewWindowBuffer[string](time.Minute)

	assert.True(t, b.Push(now, "a", now))
	assert.True(t, b.Push(now, "b", now), "equal timestamps keep insertion order")
	assert.False(t, b.Push(now.Add(-time.Second), "c", now))
	assert.Equal(t, 2, b.Len())

	samples := b.Snapshot()
	assert.Equal(t, "b", samples[len(samples)-1].Value)
}

func TestWindowBuffer_EvictsFromFrontOnPush(t *testing.T) {
	start := time.Unix(100, 0)
	b := NewWindowBuffer[int](5 * time.Second)
	b.Push(start, 1, start)
	b.Push(start.Add(2*time.Second), 2, start)

	b.Push(start.Add(5*time.Second), 3, start.Add(5*time.Second))
	assert.Equal(t, 3, b.Len(), "age equal to the window is kept")

	b.Push(start.Add(6*time.Second), 4, start.Add(6*time.Second))
	assert.Equal(t, 3, b.Len())
	assert.Equal(t, 2, b.Snapshot()[0].Value)

	b.Push(start.Add(time.Hour), 5, start.Add(time.Hour))
	require.Equal(t, 1, b.Len())
	assert.Equal(t, 5, b.Snapshot()[0].Value)
}

func TestWindowBuffer_SnapshotIsACopy(t *testing.T) {
	now := time.Unix(100, 0)
	b := NewWindowBuffer[int](time.Minute)
	b.Push(now, 1, now)

	snap := b.Snapshot()
	snap[0].Value = 42

	assert.Equal(t, 1, b.Snapshot()[0].Value)
}

func TestWindowBuffer_ConcurrentReaders(t *testing.T) {
	start := time.Unix(100, 0)
	b := NewWindowBuffer[int](50 * time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			ts := start.Add(time.Duration(i) * time.Millisecond)
			b.Push(ts, i, ts)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			samples := b.Snapshot()
			for j := 1; j < len(samples); j++ {
				assert.False(t, samples[j].EventTime.Before(samples[j-1].EventTime))
			}
		}
	}()
	wg.Wait()
}
