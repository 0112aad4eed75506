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

package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyInUse is returned when a message that is still owned by a mailbox
	// is enqueued or recycled again.
	ErrAlreadyInUse = errors.New("message is already in use")

	// ErrIllegalBarrier is returned when a barrier (a message without a target) is
	// enqueued on a mailbox that is not allowed to quit.
	ErrIllegalBarrier = errors.New("mailbox is not allowed to quit")

	// ErrDead is returned when a message is sent to a mailbox that is quitting.
	// The message has been recycled and dropped.
	ErrDead = errors.New("sending message to a handler on a dead mailbox")

	// ErrQuitNotAllowed is returned when Quit is called on a mailbox created without quit permission.
	ErrQuitNotAllowed = errors.New("mailbox not allowed to quit")

	// ErrNoQueue is returned when a handler that is not bound to any mailbox is asked to send a message.
	ErrNoQueue = errors.New("handler has no mailbox")

	// ErrInvalidArgument is returned when an operation receives a missing or out of range argument.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrLooperRunning is returned when a looper is started twice or a second looper
	// tries to drive an already attached mailbox.
	ErrLooperRunning = errors.New("looper is already running")

	// ErrLooperNotRunning is returned when stopping a looper that has not been started.
	ErrLooperNotRunning = errors.New("looper is not running")

	// ErrUnboundMessenger is returned when a messenger without a binder handler is used.
	ErrUnboundMessenger = errors.New("messenger is not bound to a handler")

	// ErrSchedulerNotStarted is returned when scheduling messages before the scheduler is started.
	ErrSchedulerNotStarted = errors.New("scheduler has not started")

	// ErrTimerRunning is returned when starting a countdown timer that is already counting.
	ErrTimerRunning = errors.New("countdown timer is already running")
)

// NewErrInvalidArgument wraps ErrInvalidArgument with the given reason
func NewErrInvalidArgument(reason string) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, reason)
}

// NewErrInvalidOptions wraps ErrInvalidArgument around an options validation failure
func NewErrInvalidOptions(err error) error {
	return errors.Join(ErrInvalidArgument, err)
}

// PanicError wraps a value recovered from a panicking callback, task or message handler
type PanicError struct {
	err error
}

// enforce compilation error
var _ error = (*PanicError)(nil)

// NewPanicError creates an instance of PanicError
func NewPanicError(err error) *PanicError {
	return &PanicError{err}
}

// NewPanicErrorFromRecovered builds a PanicError from any value returned by recover()
func NewPanicErrorFromRecovered(r any) *PanicError {
	if err, ok := r.(error); ok {
		return NewPanicError(err)
	}
	return NewPanicError(fmt.Errorf("%v", r))
}

// Error implements the standard error interface
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.err)
}

// Unwrap returns the recovered error
func (e *PanicError) Unwrap() error {
	return e.err
}
