package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrLoopClosed is returned when work is posted to a loop that has stopped.
var ErrLoopClosed = errors.New("scheduler loop closed")

// DefaultQueueSize is the default capacity of the loop's work queue.
const DefaultQueueSize = 1024

// Loop executes posted work sequentially on a single goroutine (the one calling Run).
// Timers are armed with time.AfterFunc and post their callbacks onto the loop.
type Loop struct {
	queue   chan func()
	done    chan struct{}
	once    sync.Once
	running atomic.Bool
}

// NewLoop creates a loop with the given queue capacity (<=0 uses DefaultQueueSize).
func NewLoop(queueSize int) *Loop {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Loop{
		queue: make(chan func(), queueSize),
		done:  make(chan struct{}),
	}
}

// Now returns time.Now().
func (l *Loop) Now() time.Time { return time.Now() }

// Run executes posted work until ctx is canceled.
// Work still queued at cancellation is discarded.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return fmt.Errorf("scheduler loop already running")
	}
	defer l.once.Do(func() { close(l.done) })

	slog.Info("scheduler loop started", "queue", cap(l.queue))

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler loop stopping")
			return ctx.Err()
		case fn := <-l.queue:
			l.exec(fn)
		}
	}
}

// Post enqueues fn for execution on the loop. Safe for concurrent use.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrLoopClosed
	default:
	}

	select {
	case l.queue <- fn:
		return nil
	case <-l.done:
		return ErrLoopClosed
	}
}

// Do posts fn and waits until it has run on the loop or ctx is done.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Once implements Scheduler.
func (l *Loop) Once(delay time.Duration, fn func()) Timer {
	lt := &loopTimer{}
	lt.mu.Lock()
	lt.t = time.AfterFunc(delay, func() {
		l.postFiring(lt, func() {
			if lt.state.CompareAndSwap(timerPending, timerDone) {
				fn()
			}
		})
	})
	lt.mu.Unlock()
	return lt
}

// Repeat implements Scheduler.
func (l *Loop) Repeat(interval time.Duration, count int, fn func()) Timer {
	lt := &loopTimer{}
	var armed int // guarded by lt.mu

	var fire func()
	fire = func() {
		lt.mu.Lock()
		armed++
		last := count > 0 && armed >= count
		if !last && lt.state.Load() == timerPending {
			lt.t = time.AfterFunc(interval, fire)
		}
		lt.mu.Unlock()

		l.postFiring(lt, func() {
			if lt.state.Load() != timerPending {
				return
			}
			if last {
				lt.state.CompareAndSwap(timerPending, timerDone)
			}
			fn()
		})
	}

	lt.mu.Lock()
	lt.t = time.AfterFunc(interval, fire)
	lt.mu.Unlock()
	return lt
}

func (l *Loop) postFiring(lt *loopTimer, fn func()) {
	if err := l.Post(fn); err != nil {
		// Loop is gone: nothing can observe the timer anymore.
		lt.state.CompareAndSwap(timerPending, timerStopped)
	}
}

func (l *Loop) exec(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("scheduler loop task panicked", "panic", r)
		}
	}()
	fn()
}

// loopTimer is the Timer handle returned by Loop.
type loopTimer struct {
	mu    sync.Mutex
	t     *time.Timer
	state atomic.Int32
}

func (lt *loopTimer) Stop() bool {
	if !lt.state.CompareAndSwap(timerPending, timerStopped) {
		return false
	}
	lt.mu.Lock()
	if lt.t != nil {
		lt.t.Stop()
	}
	lt.mu.Unlock()
	return true
}

func (lt *loopTimer) Pending() bool {
	return lt.state.Load() == timerPending
}
