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

package dispatch

import (
	"context"
	"sync"

	"github.com/Workiva/go-datastructures/queue"
	"go.uber.org/atomic"

	"github.com/tochemey/looper/errors"
)

// wakeBatch is the number of coalesced wake signals consumed per drain
const wakeBatch = 64

// Looper drives one Mailbox from a dedicated goroutine. While it runs,
// senders only signal the loop instead of dispatching inline.
type Looper struct {
	mu      sync.Mutex
	mailbox *Mailbox
	signals *atomic.Pointer[queue.Queue]
	running *atomic.Bool
	done    chan struct{}
}

// NewLooper creates a Looper for mailbox
func NewLooper(mailbox *Mailbox) *Looper {
	return &Looper{
		mailbox: mailbox,
		signals: atomic.NewPointer[queue.Queue](nil),
		running: atomic.NewBool(false),
	}
}

// Start attaches the looper to its mailbox and starts the loop.
// ctx is the parent of every dispatch context and does not stop the loop.
func (l *Looper) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.mailbox == nil {
		return errors.NewErrInvalidArgument("mailbox is required")
	}

	if l.running.Load() {
		return errors.ErrLooperRunning
	}

	if err := l.mailbox.attach(l); err != nil {
		return err
	}

	signals := queue.New(1)
	l.signals.Store(signals)
	l.done = make(chan struct{})
	l.running.Store(true)

	go l.loop(context.WithoutCancel(ctx), signals, l.done)

	l.mailbox.Logger().Debug("looper started")
	// pick up the backlog
	l.wake()
	return nil
}

// Stop stops the loop, waits for the running drain to finish and detaches
// from the mailbox, which then drains inline again. When ctx ends first the
// looper is detached anyway and ctx.Err() is returned.
func (l *Looper) Stop(ctx context.Context) error {
	l.mu.Lock()
	if !l.running.Load() {
		l.mu.Unlock()
		return errors.ErrLooperNotRunning
	}

	l.running.Store(false)
	if signals := l.signals.Swap(nil); signals != nil {
		signals.Dispose()
	}

	var err error
	select {
	case <-l.done:
	case <-ctx.Done():
		err = ctx.Err()
	}

	l.mailbox.detach(l)
	l.mu.Unlock()

	l.mailbox.Logger().Debug("looper stopped")
	l.mailbox.schedule()
	return err
}

// IsRunning reports whether the loop is running
func (l *Looper) IsRunning() bool {
	return l.running.Load()
}

func (l *Looper) loop(ctx context.Context, signals *queue.Queue, done chan struct{}) {
	defer close(done)
	for {
		if _, err := signals.Get(wakeBatch); err != nil {
			return
		}
		l.mailbox.drain(ctx)
	}
}

// wake signals the loop. Signals sent while stopped are dropped.
func (l *Looper) wake() {
	if signals := l.signals.Load(); signals != nil {
		_ = signals.Put(struct{}{})
	}
}
