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
	"math"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/tochemey/looper/errors"
)

const (
	// WaiterError tags the completion message of a task that failed.
	// The error is carried as the message attachment. The default completion
	// of a successful task also has tag 0, so check for failure with
	// IsWaiterFailure rather than by comparing the tag.
	WaiterError = 0x00000000
	// WaiterTimeout is set as Arg1 of the completion message when the deadline elapsed
	WaiterTimeout = 0xffffffff
)

// IsWaiterFailure reports whether msg is the completion of a task that
// returned an error or panicked, that is a WaiterError message whose
// attachment is the error.
func IsWaiterFailure(msg *Message) bool {
	if msg == nil || msg.Tag != WaiterError {
		return false
	}
	_, ok := msg.Attachment.(error)
	return ok
}

// WaitForever makes a sync waiter poll its task until it completes
const WaitForever time.Duration = math.MaxInt64

// WaitMode tells how a SyncWaiter waits for completion
type WaitMode int

const (
	// TimeoutMode runs the task once and gives up at the deadline
	TimeoutMode WaitMode = iota
	// PollMode runs the task again on every schedule tick until it completes
	PollMode
)

// Task is the work wrapped by a SyncWaiter. The task completes the wait by
// calling waiter.NotifyDone, typically with a result message. Returning an
// error completes the wait with a WaiterError message.
type Task interface {
	Run(ctx context.Context, waiter *SyncWaiter, attachment any) error
}

// TaskFunc adapts a function to Task
type TaskFunc func(ctx context.Context, waiter *SyncWaiter, attachment any) error

// Run calls f
func (f TaskFunc) Run(ctx context.Context, waiter *SyncWaiter, attachment any) error {
	return f(ctx, waiter, attachment)
}

// SyncWaiter posts a task to a Handler and lets the caller block until the
// task reports completion or its deadline elapses. The task always runs in
// dispatch context, never on the waiting goroutine. A completion message is
// delivered to the handler when the wait ends.
type SyncWaiter struct {
	mu sync.Mutex

	task         Task
	handler      *Handler
	mode         WaitMode
	timeout      time.Duration
	scheduleTime time.Duration
	attachment   any

	started  bool
	done     bool
	timedOut bool
	err      error
	timer    clock.Timer
	doneCh   chan struct{}
}

var _ Callback = (*SyncWaiter)(nil)

// NewSyncWaiter wraps task
func NewSyncWaiter(task Task) *SyncWaiter {
	return &SyncWaiter{
		task:   task,
		doneCh: make(chan struct{}),
	}
}

// PostAndWait posts the waiter on h and blocks until completion, timeout or ctx
// cancellation. A finite positive timeout selects TimeoutMode. Otherwise the
// task is polled every scheduleTime, or the handler schedule time when
// scheduleTime is not positive.
//
// It reports whether the task completed without error or timeout. Cancelling
// ctx abandons the wait without delivering a completion message.
func (w *SyncWaiter) PostAndWait(ctx context.Context, h *Handler, timeout, scheduleTime time.Duration, attachment any) (bool, error) {
	if h == nil {
		return false, errors.NewErrInvalidArgument("handler is required")
	}

	w.mu.Lock()
	if w.task == nil {
		w.mu.Unlock()
		return false, errors.NewErrInvalidArgument("task is required")
	}

	if w.started || w.handler != nil {
		w.mu.Unlock()
		return false, errors.ErrAlreadyInUse
	}

	w.handler = h
	w.timeout = timeout
	w.attachment = attachment
	w.scheduleTime = scheduleTime
	w.mode = TimeoutMode
	if timeout <= 0 || timeout == WaitForever {
		w.mode = PollMode
		if scheduleTime <= 0 {
			w.scheduleTime = h.ScheduleTime()
		}
	}
	done := w.doneCh
	w.mu.Unlock()

	h.waiters.Add(w)
	if err := h.Post(w, attachment); err != nil {
		h.waiters.Remove(w)
		w.abandon()
		return false, err
	}

	select {
	case <-done:
		w.mu.Lock()
		defer w.mu.Unlock()
		return !w.timedOut && w.err == nil, nil
	case <-ctx.Done():
		w.abandon()
		return false, ctx.Err()
	}
}

// Run is invoked when the waiter is dispatched. It arms the deadline on the
// first run and, in PollMode, runs the task and re-arms the poll tick.
func (w *SyncWaiter) Run(ctx context.Context, h *Handler, attachment any) bool {
	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		return true
	}

	first := !w.started
	w.started = true
	if first && w.mode == TimeoutMode {
		w.timer = h.clock().AfterFunc(w.timeout, w.expire)
	}
	mode := w.mode
	w.mu.Unlock()

	if first || mode == PollMode {
		if err := w.runTask(ctx, attachment); err != nil {
			w.fail(err)
			return true
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.done && mode == PollMode {
		w.timer = h.clock().AfterFunc(w.scheduleTime, w.poll)
	}
	return true
}

// NotifyDone completes the wait and delivers msg, or a default completion
// message when msg is nil, to the handler. Arg1 is set to WaiterTimeout when
// the deadline elapsed. Only the first call has an effect.
func (w *SyncWaiter) NotifyDone(msg *Message) {
	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		if msg != nil {
			_ = msg.Recycle()
		}
		return
	}

	w.done = true
	w.stopTimerLocked()
	h := w.handler
	timedOut := w.timedOut
	attachment := w.attachment
	w.mu.Unlock()

	if h != nil {
		h.waiters.Remove(w)
		h.RemoveCallbacks(w, nil)

		if msg == nil {
			msg = h.ObtainMessage(WithAttachment(attachment))
		}

		if timedOut {
			msg.Arg1 = WaiterTimeout
		}

		if err := h.Send(msg); err != nil {
			h.logger.Debugf("%s could not deliver waiter completion: %v", h, err)
		}
	}

	close(w.doneCh)
}

// Reset re-arms the waiter with task so it can be posted again.
// A pending wait is abandoned.
func (w *SyncWaiter) Reset(task Task) {
	w.abandon()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.task = task
	w.handler = nil
	w.mode = TimeoutMode
	w.timeout = 0
	w.scheduleTime = 0
	w.attachment = nil
	w.started = false
	w.done = false
	w.timedOut = false
	w.err = nil
	w.doneCh = make(chan struct{})
}

// IsDone reports whether the wait has ended
func (w *SyncWaiter) IsDone() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

// IsTimedOut reports whether the deadline elapsed before completion
func (w *SyncWaiter) IsTimedOut() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.timedOut
}

// Err returns the task failure, if any
func (w *SyncWaiter) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Mode returns the wait mode chosen by PostAndWait
func (w *SyncWaiter) Mode() WaitMode {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.mode
}

// Done is closed when the wait ends
func (w *SyncWaiter) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doneCh
}

// runInline runs the task on the calling goroutine
func (w *SyncWaiter) runInline(ctx context.Context, h *Handler, attachment any) bool {
	w.mu.Lock()
	w.handler = h
	w.attachment = attachment
	w.started = true
	w.mu.Unlock()

	if err := w.runTask(ctx, attachment); err != nil {
		w.mu.Lock()
		w.err = err
		w.mu.Unlock()
		return false
	}
	return true
}

func (w *SyncWaiter) runTask(ctx context.Context, attachment any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.NewPanicErrorFromRecovered(r)
		}
	}()
	return w.task.Run(ctx, w, attachment)
}

func (w *SyncWaiter) expire() {
	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		return
	}
	w.timedOut = true
	w.mu.Unlock()
	w.NotifyDone(nil)
}

func (w *SyncWaiter) poll() {
	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		return
	}
	h := w.handler
	attachment := w.attachment
	w.mu.Unlock()

	if err := h.Post(w, attachment); err != nil {
		w.fail(err)
	}
}

func (w *SyncWaiter) fail(err error) {
	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		return
	}
	w.err = err
	h := w.handler
	w.mu.Unlock()

	if h == nil {
		w.NotifyDone(nil)
		return
	}
	w.NotifyDone(h.ObtainMessage(WithTag(WaiterError), WithAttachment(err)))
}

// abandon ends the wait without a completion message
func (w *SyncWaiter) abandon() {
	w.mu.Lock()
	if w.done {
		w.mu.Unlock()
		return
	}
	w.done = true
	w.stopTimerLocked()
	h := w.handler
	w.mu.Unlock()

	if h != nil {
		h.waiters.Remove(w)
		h.RemoveCallbacks(w, nil)
	}
	close(w.doneCh)
}

func (w *SyncWaiter) stopTimerLocked() {
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
}
