package scheduler

import (
	"sync"
	"time"
)

// Manual is a deterministic Scheduler driven by Advance. Time only moves when the
// caller advances it; due timers fire in deadline order (ties in creation order).
// Used by tests and replay tools.
type Manual struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers []*manualTimer
}

// NewManual creates a Manual scheduler starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the virtual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Once implements Scheduler.
func (m *Manual) Once(delay time.Duration, fn func()) Timer {
	return m.add(delay, 0, 1, fn)
}

// Repeat implements Scheduler.
func (m *Manual) Repeat(interval time.Duration, count int, fn func()) Timer {
	return m.add(interval, interval, count, fn)
}

func (m *Manual) add(delay, interval time.Duration, count int, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	t := &manualTimer{
		owner:    m,
		due:      m.now.Add(delay),
		interval: interval,
		count:    count,
		seq:      m.seq,
		fn:       fn,
	}
	m.timers = append(m.timers, t)
	return t
}

// Advance moves virtual time forward by d, firing every timer that becomes due.
// Callbacks run on the calling goroutine and may schedule or stop timers.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	m.mu.Unlock()

	for {
		m.mu.Lock()
		next := m.nextDueLocked(target)
		if next == nil {
			m.now = target
			m.compactLocked()
			m.mu.Unlock()
			return
		}

		m.now = next.due
		next.fired++
		if next.interval > 0 && (next.count == 0 || next.fired < next.count) {
			m.seq++
			next.seq = m.seq
			next.due = next.due.Add(next.interval)
		} else {
			next.state = timerDone
		}
		fn := next.fn
		m.mu.Unlock()

		fn()
	}
}

// PendingCount returns the number of timers that may still fire.
func (m *Manual) PendingCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, t := range m.timers {
		if t.state == timerPending {
			n++
		}
	}
	return n
}

func (m *Manual) nextDueLocked(target time.Time) *manualTimer {
	var best *manualTimer
	for _, t := range m.timers {
		if t.state != timerPending || t.due.After(target) {
			continue
		}
		if best == nil || t.due.Before(best.due) || (t.due.Equal(best.due) && t.seq < best.seq) {
			best = t
		}
	}
	return best
}

func (m *Manual) compactLocked() {
	alive := m.timers[:0]
	for _, t := range m.timers {
		if t.state == timerPending {
			alive = append(alive, t)
		}
	}
	for i := len(alive); i < len(m.timers); i++ {
		m.timers[i] = nil
	}
	m.timers = alive
}

type manualTimer struct {
	owner    *Manual
	due      time.Time
	interval time.Duration
	count    int
	fired    int
	seq      uint64
	state    int32 // guarded by owner.mu
	fn       func()
}

func (t *manualTimer) Stop() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	if t.state != timerPending {
		return false
	}
	t.state = timerStopped
	return true
}

func (t *manualTimer) Pending() bool {
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	return t.state == timerPending
}
