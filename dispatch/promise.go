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

	"github.com/tochemey/looper/errors"
	"github.com/tochemey/looper/future"
)

// Executor computes a deferred value in dispatch context. It must call
// exactly one of resolve or reject, now or later. A panic rejects the promise.
type Executor[T any] func(ctx context.Context, attachment any, resolve func(T), reject func(error))

// Promise posts execute on h and returns a Future completed by it
func Promise[T any](h *Handler, execute Executor[T], attachment any) future.Future[T] {
	return promise(h, execute, func(cb Callback) error {
		return h.Post(cb, attachment)
	})
}

// PromiseAtFront posts execute ahead of every time ordered message
func PromiseAtFront[T any](h *Handler, execute Executor[T], attachment any) future.Future[T] {
	return promise(h, execute, func(cb Callback) error {
		return h.PostAtFront(cb, attachment)
	})
}

// PromiseAtTime posts execute to run at the given time
func PromiseAtTime[T any](h *Handler, execute Executor[T], at time.Time, attachment any) future.Future[T] {
	return promise(h, execute, func(cb Callback) error {
		return h.PostAtTime(cb, at, attachment)
	})
}

// PromiseDelayed posts execute to run after delay
func PromiseDelayed[T any](h *Handler, execute Executor[T], delay time.Duration, attachment any) future.Future[T] {
	return promise(h, execute, func(cb Callback) error {
		return h.PostDelayed(cb, delay, attachment)
	})
}

func promise[T any](h *Handler, execute Executor[T], post func(Callback) error) future.Future[T] {
	completer := future.NewCompleter[T]()
	if h == nil || execute == nil {
		completer.Failure(errors.NewErrInvalidArgument("handler and executor are required"))
		return completer.Future()
	}

	resolve := func(value T) { completer.Success(value) }
	reject := func(err error) { completer.Failure(err) }

	cb := CallbackFunc(func(ctx context.Context, _ *Handler, attachment any) (handled bool) {
		defer func() {
			if r := recover(); r != nil {
				completer.Failure(errors.NewPanicErrorFromRecovered(r))
				handled = false
			}
		}()
		execute(ctx, attachment, resolve, reject)
		return true
	})

	if err := post(cb); err != nil {
		completer.Failure(err)
	}
	return completer.Future()
}
