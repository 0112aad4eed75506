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

// Package countdown schedules a countdown until a time in the future, with
// regular notifications on intervals along the way.
package countdown

import (
	"context"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/tochemey/looper/dispatch"
	"github.com/tochemey/looper/errors"
	"github.com/tochemey/looper/internal/validation"
	"github.com/tochemey/looper/log"
)

// tickTag is the tag of the messages driving the countdown
const tickTag = 1

// Timer counts down to a deadline and calls its tick function every interval.
//
// The calls to the tick and finish functions are made from dispatch context,
// one at a time. Ticks are corrected for the time spent in the tick function:
// a tick that takes longer than the interval skips the ticks it overlapped.
// When less than one interval is left the timer waits for the deadline
// without ticking.
type Timer struct {
	mu sync.Mutex

	total    time.Duration
	interval time.Duration
	onTick   func(remaining time.Duration)
	onFinish func()

	mailbox *dispatch.Mailbox
	clock   dispatch.Clock
	logger  log.Logger
	handler *dispatch.Handler

	stopAt    time.Time
	cancelled *atomic.Bool
	running   *atomic.Bool
}

// New creates a Timer finishing total after Start, ticking every interval
func New(total, interval time.Duration, opts ...Option) (*Timer, error) {
	t := &Timer{
		total:     total,
		interval:  interval,
		logger:    log.DefaultLogger,
		cancelled: atomic.NewBool(false),
		running:   atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt.Apply(t)
	}

	if err := validation.New(validation.AllErrors()).
		AddValidator(validation.NewPositiveDurationValidator("total", total, true)).
		AddValidator(validation.NewPositiveDurationValidator("interval", interval, false)).
		AddAssertion(t.logger != nil, "logger is required").
		Validate(); err != nil {
		return nil, errors.NewErrInvalidOptions(err)
	}

	if t.mailbox == nil {
		mailboxOpts := []dispatch.MailboxOption{dispatch.WithLogger(t.logger)}
		if t.clock != nil {
			mailboxOpts = append(mailboxOpts, dispatch.WithClock(t.clock))
		}
		mailbox, err := dispatch.NewMailbox(mailboxOpts...)
		if err != nil {
			return nil, err
		}
		t.mailbox = mailbox
	}

	handler, err := dispatch.NewHandler(
		dispatch.WithMailbox(t.mailbox),
		dispatch.WithHandleFunc(t.handle),
	)
	if err != nil {
		return nil, err
	}
	t.handler = handler
	t.clock = t.mailbox.Clock()
	return t, nil
}

// Start starts the countdown. A zero total finishes right away.
func (t *Timer) Start() error {
	if !t.running.CompareAndSwap(false, true) {
		return errors.ErrTimerRunning
	}
	t.cancelled.Store(false)

	if t.total <= 0 {
		t.running.Store(false)
		t.finish()
		return nil
	}

	t.mu.Lock()
	t.stopAt = t.clock.Now().Add(t.total)
	t.mu.Unlock()

	if err := t.handler.SendEmpty(tickTag); err != nil {
		t.running.Store(false)
		return err
	}
	return nil
}

// Cancel stops the countdown and calls the finish function
func (t *Timer) Cancel() {
	t.cancelled.Store(true)
	t.handler.RemoveMessages(tickTag, nil)
	t.running.Store(false)
	t.finish()
}

// IsCancelled reports whether Cancel was called since the last Start
func (t *Timer) IsCancelled() bool {
	return t.cancelled.Load()
}

// IsRunning reports whether the countdown is in progress
func (t *Timer) IsRunning() bool {
	return t.running.Load()
}

// Handler returns the handler driving the countdown
func (t *Timer) Handler() *dispatch.Handler {
	return t.handler
}

func (t *Timer) handle(_ context.Context, h *dispatch.Handler, msg *dispatch.Message) bool {
	if msg.Tag != tickTag {
		return false
	}

	if t.cancelled.Load() {
		return true
	}

	t.mu.Lock()
	stopAt := t.stopAt
	t.mu.Unlock()

	now := t.clock.Now()
	left := stopAt.Sub(now)
	switch {
	case left <= 0:
		t.running.Store(false)
		t.finish()
		return true
	case left < t.interval:
		return h.SendEmptyDelayed(tickTag, left) == nil
	default:
		if t.onTick != nil {
			t.onTick(left)
		}

		delay := now.Add(t.interval).Sub(t.clock.Now())
		for delay < 0 {
			delay += t.interval
		}
		return h.SendEmptyDelayed(tickTag, delay) == nil
	}
}

func (t *Timer) finish() {
	if t.onFinish != nil {
		t.onFinish()
	}
}
