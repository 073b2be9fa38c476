package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/shellsync/internal/record"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestClock_StartsAtStart(t *testing.T) {
	clock := NewClock(epoch, time.Second)
	assert.Equal(t, epoch, clock.Peek())
	assert.Equal(t, epoch, clock.Now())
}

func TestClock_StepsMonotonically(t *testing.T) {
	clock := NewClock(epoch, time.Second)

	assert.Equal(t, epoch, clock.Now())
	assert.Equal(t, epoch.Add(time.Second), clock.Now())
	assert.Equal(t, epoch.Add(2*time.Second), clock.Now())
	assert.Equal(t, epoch.Add(3*time.Second), clock.Peek())
}

func TestClock_DefaultStep(t *testing.T) {
	clock := NewClock(epoch, 0)
	clock.Now()
	assert.Equal(t, epoch.Add(time.Millisecond), clock.Now())
}

func TestClock_Reset(t *testing.T) {
	clock := NewClock(epoch, time.Second)
	clock.Now()
	clock.Now()

	clock.Reset()
	assert.Equal(t, epoch, clock.Now())
}

func TestClock_ThreadSafe(t *testing.T) {
	clock := NewClock(epoch, time.Nanosecond)
	const numGoroutines = 50
	const callsPerGoroutine = 100

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	results := make([][]time.Time, numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		results[i] = make([]time.Time, callsPerGoroutine)
		go func(idx int) {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				results[idx][j] = clock.Now()
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, times := range results {
		for _, ts := range times {
			require.False(t, seen[ts.UnixNano()], "duplicate timestamp %v", ts)
			seen[ts.UnixNano()] = true
		}
	}
	assert.Len(t, seen, numGoroutines*callsPerGoroutine)
}

func TestHostID(t *testing.T) {
	h1, h2 := HostID(1), HostID(2)

	_, err := record.ParseHostID(string(h1))
	require.NoError(t, err)
	assert.Equal(t, record.HostID("00000000-0000-7000-8000-000000000001"), h1)
	assert.Less(t, string(h1), string(h2))
}
