package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLoopImmediateFirstPass(t *testing.T) {
	api := newFakeAPI()
	api.noToken = true

	eng, st := newTestEngine(t, api)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		RunLoop(ctx, eng, time.Hour, testLogger(t))
	}()

	// The first pass runs immediately, not after the interval.
	require.Eventually(t, func() bool {
		runs, err := st.RecentRuns(context.Background(), 1)
		return err == nil && len(runs) == 1
	}, 5*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop after cancellation")
	}
}

func TestSleepUntilCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	ok := sleepUntil(ctx, time.Now().Add(time.Hour))
	assert.False(t, ok)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSleepUntilDeadlinePassed(t *testing.T) {
	assert.True(t, sleepUntil(context.Background(), time.Now().Add(-time.Second)))
}
