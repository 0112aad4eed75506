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
	"reflect"
)

// Callback is a unit of work posted to a Handler. Run receives the dispatching
// handler and the attachment given when posting, and reports whether the
// message was handled.
//
// Callbacks are matched by value when queried or removed, so only comparable
// implementations (typically pointers) can be found again. Function adapters
// such as CallbackFunc never match.
type Callback interface {
	Run(ctx context.Context, h *Handler, attachment any) bool
}

// CallbackFunc adapts a function to Callback
type CallbackFunc func(ctx context.Context, h *Handler, attachment any) bool

// Run calls f
func (f CallbackFunc) Run(ctx context.Context, h *Handler, attachment any) bool {
	return f(ctx, h, attachment)
}

// MessageHandler handles tagged messages dispatched to a Handler
type MessageHandler interface {
	HandleMessage(ctx context.Context, h *Handler, msg *Message) bool
}

// MessageHandlerFunc adapts a function to MessageHandler
type MessageHandlerFunc func(ctx context.Context, h *Handler, msg *Message) bool

// HandleMessage calls f
func (f MessageHandlerFunc) HandleMessage(ctx context.Context, h *Handler, msg *Message) bool {
	return f(ctx, h, msg)
}

// UnhandledHook is invoked after a message was dispatched but not handled
type UnhandledHook func(ctx context.Context, h *Handler, msg *Message)

// IdleWatcher is asked to run whenever its mailbox has no ready work.
// Returning false unregisters the watcher.
type IdleWatcher interface {
	QueueIdle(ctx context.Context) bool
}

// IdleWatcherFunc adapts a function to IdleWatcher
type IdleWatcherFunc func(ctx context.Context) bool

// QueueIdle calls f
func (f IdleWatcherFunc) QueueIdle(ctx context.Context) bool {
	return f(ctx)
}

// sameValue reports whether a and b hold the same comparable value
func sameValue(a, b any) (same bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}

	// structs holding non comparable interface values still panic on ==
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}

// attachmentMatches treats a nil wanted attachment as a wildcard
func attachmentMatches(want, got any) bool {
	if want == nil {
		return true
	}
	return sameValue(want, got)
}
