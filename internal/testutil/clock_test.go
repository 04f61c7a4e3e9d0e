package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeTime_DefaultsToEpoch(t *testing.T) {
	clock := NewFakeTime(time.Time{})
	assert.Equal(t, Epoch, clock.Now())
}

func TestFakeTime_SleepAdvancesAndRecords(t *testing.T) {
	clock := NewFakeTime(Epoch)

	require.NoError(t, clock.Sleep(context.Background(), time.Second))
	require.NoError(t, clock.Sleep(context.Background(), 2*time.Second))

	assert.Equal(t, Epoch.Add(3*time.Second), clock.Now())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, clock.Sleeps())
}

func TestFakeTime_SleepCancelled(t *testing.T) {
	clock := NewFakeTime(Epoch)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := clock.Sleep(ctx, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Epoch, clock.Now(), "cancelled sleep does not advance")
	assert.Empty(t, clock.Sleeps())
}

func TestFakeTime_AdvanceIsNotASleep(t *testing.T) {
	clock := NewFakeTime(Epoch)
	clock.Advance(time.Hour)

	assert.Equal(t, Epoch.Add(time.Hour), clock.Now())
	assert.Empty(t, clock.Sleeps())
}

func TestFakeTime_ThreadSafe(t *testing.T) {
	clock := NewFakeTime(Epoch)
	const goroutines = 50

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			_ = clock.Sleep(context.Background(), time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Len(t, clock.Sleeps(), goroutines)
	assert.Equal(t, Epoch.Add(goroutines*time.Millisecond), clock.Now())
}
