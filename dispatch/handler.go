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
	"fmt"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"go.uber.org/atomic"

	"github.com/tochemey/looper/errors"
	"github.com/tochemey/looper/internal/validation"
	"github.com/tochemey/looper/log"
)

// Handler binds one logical actor to a Mailbox. It turns posts and sends into
// queued messages and routes dispatched messages to callbacks, a bound
// MessageHandler or its handle function, in that order.
type Handler struct {
	id             string
	mailbox        *Mailbox
	mailboxSet     bool
	messageHandler MessageHandler
	handleFunc     func(ctx context.Context, h *Handler, msg *Message) bool
	unhandled      UnhandledHook
	asynchronous   bool
	scheduleTime   *atomic.Duration
	messenger      *Messenger
	broadcaster    *Broadcaster
	logger         log.Logger
	waiters        mapset.Set[*SyncWaiter]
}

// NewHandler creates a Handler. Unless WithMailbox is given, the handler gets a
// private mailbox with default settings.
func NewHandler(opts ...HandlerOption) (*Handler, error) {
	h := &Handler{
		id:           uuid.NewString(),
		asynchronous: true,
		scheduleTime: atomic.NewDuration(DefaultScheduleTime),
		broadcaster:  DefaultBroadcaster(),
		waiters:      mapset.NewSet[*SyncWaiter](),
	}

	for _, opt := range opts {
		opt.Apply(h)
	}

	if err := validation.New().
		AddValidator(validation.NewPositiveDurationValidator("schedule time", h.scheduleTime.Load(), false)).
		AddAssertion(h.broadcaster != nil, "broadcaster is required").
		Validate(); err != nil {
		return nil, errors.NewErrInvalidOptions(err)
	}

	if !h.mailboxSet {
		mailbox, err := NewMailbox()
		if err != nil {
			return nil, err
		}
		h.mailbox = mailbox
	}

	logger := log.DefaultLogger
	if h.mailbox != nil {
		logger = h.mailbox.Logger()
	}
	h.logger = logger.With("handler", h.id)

	if h.messenger == nil {
		h.messenger = NewMessenger(nil)
	}
	h.messenger.SetBinder(h)
	return h, nil
}

// ID returns the handler identifier
func (h *Handler) ID() string {
	return h.id
}

// Mailbox returns the bound mailbox, nil when unbound
func (h *Handler) Mailbox() *Mailbox {
	return h.mailbox
}

// Messenger returns the messenger bound to the handler
func (h *Handler) Messenger() *Messenger {
	return h.messenger
}

// Broadcaster returns the broadcaster used by Publish and Subscribe
func (h *Handler) Broadcaster() *Broadcaster {
	return h.broadcaster
}

// ScheduleTime returns the default sync waiter poll interval
func (h *Handler) ScheduleTime() time.Duration {
	return h.scheduleTime.Load()
}

// SetScheduleTime sets the default poll interval. A non-positive interval restores DefaultScheduleTime.
func (h *Handler) SetScheduleTime(interval time.Duration) {
	if interval <= 0 {
		interval = DefaultScheduleTime
	}
	h.scheduleTime.Store(interval)
}

// PendingWaiters returns the number of sync waiters not yet completed
func (h *Handler) PendingWaiters() int {
	return h.waiters.Cardinality()
}

// ObtainMessage returns a message from the mailbox pool targeting h unless
// another target is given.
func (h *Handler) ObtainMessage(opts ...MessageOption) *Message {
	msg := h.pool().Obtain(opts...)
	if msg.target == nil {
		msg.target = h
	}
	return msg
}

// Post runs cb as soon as possible
func (h *Handler) Post(cb Callback, attachment any) error {
	return h.PostDelayed(cb, 0, attachment)
}

// PostAtFront runs cb ahead of every time ordered message
func (h *Handler) PostAtFront(cb Callback, attachment any) error {
	msg, err := h.callbackMessage(cb, attachment)
	if err != nil {
		return err
	}
	return h.SendAtFront(msg)
}

// PostAtTime runs cb at the given time
func (h *Handler) PostAtTime(cb Callback, at time.Time, attachment any) error {
	msg, err := h.callbackMessage(cb, attachment)
	if err != nil {
		return err
	}
	return h.SendAtTime(msg, at)
}

// PostDelayed runs cb once delay has elapsed
func (h *Handler) PostDelayed(cb Callback, delay time.Duration, attachment any) error {
	msg, err := h.callbackMessage(cb, attachment)
	if err != nil {
		return err
	}
	return h.SendDelayed(msg, delay)
}

// Send enqueues msg as soon as possible
func (h *Handler) Send(msg *Message) error {
	return h.SendDelayed(msg, 0)
}

// SendAtFront enqueues msg as a synchronous message, ahead of the time ordered chain
func (h *Handler) SendAtFront(msg *Message) error {
	return h.enqueue(msg, time.Time{}, true)
}

// SendAtTime enqueues msg due at the given time
func (h *Handler) SendAtTime(msg *Message, at time.Time) error {
	return h.enqueue(msg, at, false)
}

// SendDelayed enqueues msg due after delay. A negative delay counts as zero.
func (h *Handler) SendDelayed(msg *Message, delay time.Duration) error {
	if delay < 0 {
		delay = 0
	}
	return h.SendAtTime(msg, h.clock().Now().Add(delay))
}

// SendEmpty sends a message carrying only tag
func (h *Handler) SendEmpty(tag int) error {
	return h.Send(h.ObtainMessage(WithTag(tag)))
}

// SendEmptyAtFront sends a synchronous message carrying only tag
func (h *Handler) SendEmptyAtFront(tag int) error {
	return h.SendAtFront(h.ObtainMessage(WithTag(tag)))
}

// SendEmptyAtTime sends a message carrying only tag, due at the given time
func (h *Handler) SendEmptyAtTime(tag int, at time.Time) error {
	return h.SendAtTime(h.ObtainMessage(WithTag(tag)), at)
}

// SendEmptyDelayed sends a message carrying only tag, due after delay
func (h *Handler) SendEmptyDelayed(tag int, delay time.Duration) error {
	return h.SendDelayed(h.ObtainMessage(WithTag(tag)), delay)
}

// Dispatch routes msg: its callback first, then the bound MessageHandler,
// then the handle function. Without any of them the message is unhandled.
func (h *Handler) Dispatch(ctx context.Context, msg *Message) bool {
	if msg == nil {
		return false
	}

	switch {
	case msg.callback != nil:
		return msg.callback.Run(ctx, h, msg.Attachment)
	case h.messageHandler != nil:
		return h.messageHandler.HandleMessage(ctx, h, msg)
	case h.handleFunc != nil:
		return h.handleFunc(ctx, h, msg)
	default:
		return false
	}
}

// HasMessages reports whether a message tagged tag is pending
func (h *Handler) HasMessages(tag int, attachment any) bool {
	if h.mailbox == nil {
		return false
	}
	return h.mailbox.HasMessages(h, tag, attachment)
}

// HasCallbacks reports whether cb is pending
func (h *Handler) HasCallbacks(cb Callback, attachment any) bool {
	if h.mailbox == nil {
		return false
	}
	return h.mailbox.HasCallbacks(h, cb, attachment)
}

// RemoveMessages cancels pending messages tagged tag
func (h *Handler) RemoveMessages(tag int, attachment any) int {
	if h.mailbox == nil {
		return 0
	}
	return h.mailbox.RemoveMessages(h, tag, attachment)
}

// RemoveCallbacks cancels pending posts of cb
func (h *Handler) RemoveCallbacks(cb Callback, attachment any) int {
	if h.mailbox == nil {
		return 0
	}
	return h.mailbox.RemoveCallbacks(h, cb, attachment)
}

// RemoveAll cancels pending messages and callbacks carrying attachment, every one when nil
func (h *Handler) RemoveAll(attachment any) int {
	if h.mailbox == nil {
		return 0
	}
	return h.mailbox.RemoveAll(h, attachment)
}

// Publish fans msg out to the handlers subscribed to its tag
func (h *Handler) Publish(msg *Message) error {
	return h.broadcaster.Publish(msg)
}

// Subscribe receives messages published under senderTag, re-tagged as targetTag
func (h *Handler) Subscribe(senderTag, targetTag int) error {
	return h.broadcaster.Subscribe(senderTag, h, targetTag)
}

// Unsubscribe removes one subscription made with Subscribe
func (h *Handler) Unsubscribe(senderTag, targetTag int) bool {
	return h.broadcaster.Unsubscribe(senderTag, h, targetTag)
}

// RunWithDeadline runs task on the handler and returns once it has completed
// or timeout has elapsed. It reports whether the task completed without error
// or timeout.
//
// A zero timeout, or a call made from a dispatch running on the same mailbox,
// runs task inline. WaitForever is never run inline from another goroutine:
// it always selects PollMode and polls task every scheduleTime until it
// completes, falling back to the handler schedule time when scheduleTime is
// not positive.
func (h *Handler) RunWithDeadline(ctx context.Context, task Task, timeout, scheduleTime time.Duration, attachment any) (bool, error) {
	if task == nil {
		return false, errors.NewErrInvalidArgument("task is required")
	}

	if timeout < 0 {
		return false, errors.NewErrInvalidArgument("timeout must be non-negative")
	}

	waiter := NewSyncWaiter(task)
	if timeout == 0 || IsDispatching(ctx, h.mailbox) {
		return waiter.runInline(ctx, h, attachment), nil
	}
	return waiter.PostAndWait(ctx, h, timeout, scheduleTime, attachment)
}

// MessageName returns the callback type or the hexadecimal tag of msg
func (h *Handler) MessageName(msg *Message) string {
	if msg == nil {
		return "<nil>"
	}
	if msg.callback != nil {
		return fmt.Sprintf("%T", msg.callback)
	}
	return fmt.Sprintf("0x%x", msg.Tag)
}

// String returns the handler description
func (h *Handler) String() string {
	if h == nil {
		return "Handler(<nil>)"
	}
	return fmt.Sprintf("Handler(%s)", h.id)
}

func (h *Handler) enqueue(msg *Message, at time.Time, atFront bool) error {
	if msg == nil {
		return errors.NewErrInvalidArgument("message is required")
	}

	if h.mailbox == nil {
		h.logger.Warnf("%s cannot send %s: %v", h, h.MessageName(msg), errors.ErrNoQueue)
		// a message owned by another mailbox is left alone
		if !msg.InUse() {
			msg.recycleUnchecked()
		}
		return errors.ErrNoQueue
	}

	return h.mailbox.enqueue(msg, at, h, !atFront && h.asynchronous)
}

func (h *Handler) onUnhandled(ctx context.Context, msg *Message) {
	h.logger.Debugf("%s left %s unhandled", h, h.MessageName(msg))
	if h.unhandled != nil {
		h.unhandled(ctx, h, msg)
	}
}

func (h *Handler) callbackMessage(cb Callback, attachment any) (*Message, error) {
	if cb == nil {
		return nil, errors.NewErrInvalidArgument("callback is required")
	}
	return h.ObtainMessage(WithCallback(cb), WithAttachment(attachment)), nil
}

func (h *Handler) pool() *Pool {
	if h.mailbox == nil {
		return DefaultPool()
	}
	return h.mailbox.pool
}

func (h *Handler) clock() Clock {
	if h.mailbox == nil {
		return defaultClock
	}
	return h.mailbox.clock
}
