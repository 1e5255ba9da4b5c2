package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T) *Loop {
	t.Helper()

	l := NewLoop(16)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l
}

func TestLoop_DoRunsInOrder(t *testing.T) {
	l := startLoop(t)

	var got []int
	for i := range 5 {
		require.NoError(t, l.Post(func() { got = append(got, i) }))
	}
	require.NoError(t, l.Do(context.Background(), func() {}))

	assert.Equal(t, []int{0, 1, 2, 3, 4}, got)
}

func TestLoop_OnceFiresOnLoop(t *testing.T) {
	l := startLoop(t)

	fired := make(chan struct{})
	tm := l.Once(10*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("timer did not fire")
	}
	assert.False(t, tm.Pending())
	assert.False(t, tm.Stop())
}

func TestLoop_StoppedTimerNeverRuns(t *testing.T) {
	l := startLoop(t)

	var fired atomic.Bool
	tm := l.Once(20*time.Millisecond, func() { fired.Store(true) })
	require.True(t, tm.Stop())

	time.Sleep(60 * time.Millisecond)
	require.NoError(t, l.Do(context.Background(), func() {}))
	assert.False(t, fired.Load())
}

func TestLoop_RepeatCount(t *testing.T) {
	l := startLoop(t)

	var n atomic.Int32
	tm := l.Repeat(5*time.Millisecond, 3, func() { n.Add(1) })

	require.Eventually(t, func() bool { return n.Load() == 3 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !tm.Pending() }, time.Second, 5*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(3), n.Load())
}

func TestLoop_PanicDoesNotKillLoop(t *testing.T) {
	l := startLoop(t)

	require.NoError(t, l.Post(func() { panic("boom") }))

	ran := false
	require.NoError(t, l.Do(context.Background(), func() { ran = true }))
	assert.True(t, ran)
}

func TestLoop_PostAfterStop(t *testing.T) {
	l := NewLoop(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = l.Run(ctx)

	assert.ErrorIs(t, l.Post(func() {}), ErrLoopClosed)
}
