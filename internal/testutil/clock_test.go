package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixedClock_DefaultsToReferenceTime(t *testing.T) {
	clock := NewFixedClock(time.Time{})
	assert.Equal(t, ReferenceTime, clock.Now())
	assert.Equal(t, time.Wednesday, clock.Now().Weekday())
}

func TestFixedClock_IsFrozen(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewFixedClock(start)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start, clock.Now())
}

func TestFixedClock_AdvanceAndSet(t *testing.T) {
	clock := NewFixedClock(ReferenceTime)

	clock.Advance(24 * time.Hour)
	assert.Equal(t, ReferenceTime.Add(24*time.Hour), clock.Now())

	other := time.Date(2030, 6, 1, 12, 0, 0, 0, time.UTC)
	clock.Set(other)
	assert.Equal(t, other, clock.Now())
}

func TestFixedClock_ThreadSafe(t *testing.T) {
	clock := NewFixedClock(ReferenceTime)

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			clock.Advance(time.Second)
			_ = clock.Now()
		}()
	}
	wg.Wait()

	assert.Equal(t, ReferenceTime.Add(50*time.Second), clock.Now())
}
