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
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/looper/errors"
)

func TestPromise(t *testing.T) {
	ctx := context.Background()

	t.Run("resolves in dispatch context", func(t *testing.T) {
		mailbox, _ := newManualMailbox(t)
		h, _ := newRecordingHandler(t, mailbox)

		fut := Promise(h, func(ctx context.Context, attachment any, resolve func(int), _ func(error)) {
			assert.True(t, IsDispatching(ctx, mailbox))
			assert.Equal(t, "token", attachment)
			resolve(42)
		}, "token")

		value, err := fut.Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, 42, value)
	})
	t.Run("rejects", func(t *testing.T) {
		mailbox, _ := newManualMailbox(t)
		h, _ := newRecordingHandler(t, mailbox)

		failure := stderrors.New("failed")
		_, err := Promise(h, func(_ context.Context, _ any, _ func(string), reject func(error)) {
			reject(failure)
		}, nil).Await(ctx)
		require.ErrorIs(t, err, failure)
	})
	t.Run("a panic rejects", func(t *testing.T) {
		mailbox, _ := newManualMailbox(t)
		h, _ := newRecordingHandler(t, mailbox)

		_, err := PromiseAtFront(h, func(context.Context, any, func(int), func(error)) {
			panic("boom")
		}, nil).Await(ctx)

		var panicErr *errors.PanicError
		require.ErrorAs(t, err, &panicErr)
	})
	t.Run("delayed", func(t *testing.T) {
		mailbox, clk := newManualMailbox(t)
		h, _ := newRecordingHandler(t, mailbox)

		execute := func(_ context.Context, _ any, resolve func(time.Time), _ func(error)) {
			resolve(clk.Now())
		}
		delayed := PromiseDelayed(h, execute, time.Second, nil)
		atTime := PromiseAtTime(h, execute, epoch.Add(2*time.Second), nil)

		select {
		case <-delayed.Done():
			t.Fatal("delayed promise resolved early")
		default:
		}

		clk.Advance(2 * time.Second)

		value, err := delayed.Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, epoch.Add(time.Second), value)

		value, err = atTime.Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, epoch.Add(2*time.Second), value)
	})
	t.Run("resolves later from another dispatch", func(t *testing.T) {
		mailbox, clk := newManualMailbox(t)
		h, _ := newRecordingHandler(t, mailbox)

		fut := Promise(h, func(_ context.Context, _ any, resolve func(string), _ func(error)) {
			require.NoError(t, h.PostDelayed(CallbackFunc(func(context.Context, *Handler, any) bool {
				resolve("later")
				return true
			}), time.Second, nil))
		}, nil)

		clk.Advance(time.Second)
		value, err := fut.Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, "later", value)
	})
	t.Run("invalid arguments", func(t *testing.T) {
		_, err := Promise[int](nil, nil, nil).Await(ctx)
		require.ErrorIs(t, err, errors.ErrInvalidArgument)
	})
	t.Run("unbound handler", func(t *testing.T) {
		h, err := NewHandler(WithMailbox(nil))
		require.NoError(t, err)

		_, err = Promise(h, func(_ context.Context, _ any, resolve func(int), _ func(error)) {
			resolve(1)
		}, nil).Await(ctx)
		require.ErrorIs(t, err, errors.ErrNoQueue)
	})
	t.Run("await honours the context", func(t *testing.T) {
		mailbox, _ := newManualMailbox(t)
		h, _ := newRecordingHandler(t, mailbox)

		fut := PromiseDelayed(h, func(_ context.Context, _ any, resolve func(int), _ func(error)) {
			resolve(1)
		}, time.Hour, nil)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := fut.Await(cancelled)
		require.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, h.RemoveAll(nil))
	})
}
