// MIT License
//
// Copyright (c) 2022-2026 GoAkt Team
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

// Package clocktest provides a manually driven clock for deterministic tests.
package clocktest

import (
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// ManualClock only moves when Advance is called. Timer callbacks run
// synchronously on the goroutine calling Advance, in deadline order.
type ManualClock struct {
	mu     sync.Mutex
	now    time.Time
	seq    uint64
	timers map[*manualTimer]struct{}
}

// NewManualClock creates a ManualClock set at start
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{
		now:    start,
		timers: make(map[*manualTimer]struct{}),
	}
}

// Now returns the current manual time
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Since returns the time elapsed since t
func (c *ManualClock) Since(t time.Time) time.Duration {
	return c.Now().Sub(t)
}

// AfterFunc registers f to run once the clock has advanced by d
func (c *ManualClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	timer := &manualTimer{clock: c, fn: f, ch: make(chan time.Time, 1)}
	c.armLocked(timer, d)
	return timer
}

// Pending returns the number of armed timers
func (c *ManualClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

// Advance moves the clock forward by d, firing every timer that falls due,
// including timers armed by callbacks fired during the same call.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	target := c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		next := c.earliestLocked(target)
		if next == nil {
			c.now = target
			c.mu.Unlock()
			return
		}

		if next.deadline.After(c.now) {
			c.now = next.deadline
		}
		delete(c.timers, next)
		now := c.now
		c.mu.Unlock()

		if next.fn != nil {
			next.fn()
			continue
		}

		select {
		case next.ch <- now:
		default:
		}
	}
}

func (c *ManualClock) earliestLocked(target time.Time) *manualTimer {
	var earliest *manualTimer
	for timer := range c.timers {
		if timer.deadline.After(target) {
			continue
		}
		if earliest == nil ||
			timer.deadline.Before(earliest.deadline) ||
			(timer.deadline.Equal(earliest.deadline) && timer.seq < earliest.seq) {
			earliest = timer
		}
	}
	return earliest
}

func (c *ManualClock) armLocked(timer *manualTimer, d time.Duration) {
	c.seq++
	timer.seq = c.seq
	timer.deadline = c.now.Add(d)
	c.timers[timer] = struct{}{}
}

type manualTimer struct {
	clock    *ManualClock
	deadline time.Time
	seq      uint64
	fn       func()
	ch       chan time.Time
}

var _ clock.Timer = (*manualTimer)(nil)

func (t *manualTimer) C() <-chan time.Time {
	return t.ch
}

func (t *manualTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	_, active := t.clock.timers[t]
	delete(t.clock.timers, t)
	return active
}

func (t *manualTimer) Reset(d time.Duration) bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	_, active := t.clock.timers[t]
	t.clock.armLocked(t, d)
	return active
}
