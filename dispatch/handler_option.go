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
	"time"
)

// DefaultScheduleTime is the poll interval used by sync waiters when none is given
const DefaultScheduleTime = 200 * time.Millisecond

// HandlerOption configures a Handler
type HandlerOption interface {
	// Apply sets the Option value of a config.
	Apply(*Handler)
}

var _ HandlerOption = HandlerOptionFunc(nil)

// HandlerOptionFunc implements the HandlerOption interface.
type HandlerOptionFunc func(*Handler)

// Apply applies the option
func (f HandlerOptionFunc) Apply(h *Handler) {
	f(h)
}

// WithMailbox binds the handler to mailbox. Several handlers may share one mailbox.
// A nil mailbox leaves the handler unbound: every send fails with ErrNoQueue.
func WithMailbox(mailbox *Mailbox) HandlerOption {
	return HandlerOptionFunc(func(h *Handler) {
		h.mailbox = mailbox
		h.mailboxSet = true
	})
}

// WithMessageHandler binds an object handling tagged messages
func WithMessageHandler(handler MessageHandler) HandlerOption {
	return HandlerOptionFunc(func(h *Handler) {
		h.messageHandler = handler
	})
}

// WithHandleFunc sets the fallback used when no MessageHandler is bound
func WithHandleFunc(fn func(ctx context.Context, h *Handler, msg *Message) bool) HandlerOption {
	return HandlerOptionFunc(func(h *Handler) {
		h.handleFunc = fn
	})
}

// WithUnhandledHook sets the hook called for messages reported as unhandled
func WithUnhandledHook(hook UnhandledHook) HandlerOption {
	return HandlerOptionFunc(func(h *Handler) {
		h.unhandled = hook
	})
}

// WithAsynchronous sets the asynchronous flag given to sent messages. Default true.
// A synchronous handler has every message dispatched ahead of the time ordered chain.
func WithAsynchronous(asynchronous bool) HandlerOption {
	return HandlerOptionFunc(func(h *Handler) {
		h.asynchronous = asynchronous
	})
}

// WithScheduleTime sets the default sync waiter poll interval. Default 200ms.
func WithScheduleTime(interval time.Duration) HandlerOption {
	return HandlerOptionFunc(func(h *Handler) {
		h.scheduleTime.Store(interval)
	})
}

// WithMessenger binds messenger to the handler
func WithMessenger(messenger *Messenger) HandlerOption {
	return HandlerOptionFunc(func(h *Handler) {
		h.messenger = messenger
	})
}

// WithBroadcaster sets the broadcaster used by Publish and Subscribe.
// Default is the process wide DefaultBroadcaster.
func WithBroadcaster(broadcaster *Broadcaster) HandlerOption {
	return HandlerOptionFunc(func(h *Handler) {
		h.broadcaster = broadcaster
	})
}
