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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/tochemey/looper/errors"
)

type countingWatcher struct {
	calls *atomic.Int32
	keep  bool
}

func (w *countingWatcher) QueueIdle(context.Context) bool {
	w.calls.Inc()
	return w.keep
}

func TestMailbox(t *testing.T) {
	t.Run("with invalid options", func(t *testing.T) {
		mailbox, err := NewMailbox(WithClock(nil))
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrInvalidArgument)
		assert.Nil(t, mailbox)
	})
	t.Run("enqueue requires a message", func(t *testing.T) {
		mailbox, _ := newManualMailbox(t)
		require.ErrorIs(t, mailbox.Enqueue(nil, time.Time{}), errors.ErrInvalidArgument)
	})
	t.Run("dispatches by due time with ties in insertion order", func(t *testing.T) {
		mailbox, clk := newManualMailbox(t)
		h, rec := newRecordingHandler(t, mailbox)

		require.NoError(t, h.SendEmptyDelayed(1, 30*time.Millisecond))
		require.NoError(t, h.SendEmptyDelayed(2, 10*time.Millisecond))
		require.NoError(t, h.SendEmptyDelayed(3, 20*time.Millisecond))
		require.NoError(t, h.SendEmptyDelayed(4, 10*time.Millisecond))

		assert.Zero(t, rec.Len())
		assert.Equal(t, 4, mailbox.Len())
		assert.True(t, mailbox.IsIdle())

		clk.Advance(10 * time.Millisecond)
		assert.Equal(t, []int{2, 4}, rec.Tags())

		clk.Advance(20 * time.Millisecond)
		assert.Equal(t, []int{2, 4, 3, 1}, rec.Tags())
		assert.Zero(t, mailbox.Len())
		assert.Zero(t, clk.Pending())
	})
	t.Run("a message due now or in the past is dispatched inline", func(t *testing.T) {
		mailbox, _ := newManualMailbox(t)
		h, rec := newRecordingHandler(t, mailbox)

		require.NoError(t, h.SendEmpty(1))
		require.NoError(t, h.SendEmptyAtTime(2, epoch.Add(-time.Hour)))
		require.NoError(t, h.SendEmptyDelayed(3, -time.Second))
		assert.Equal(t, []int{1, 2, 3}, rec.Tags())
	})
	t.Run("wake-ups are armed once per due time", func(t *testing.T) {
		mailbox, clk := newManualMailbox(t)
		h, rec := newRecordingHandler(t, mailbox)

		for tag := 0; tag < 5; tag++ {
			require.NoError(t, h.SendEmptyDelayed(tag, time.Second))
		}
		assert.Equal(t, 1, clk.Pending())

		clk.Advance(time.Second)
		assert.Equal(t, []int{0, 1, 2, 3, 4}, rec.Tags())
		assert.Zero(t, clk.Pending())
	})
	t.Run("a message in use cannot be enqueued twice", func(t *testing.T) {
		mailbox, _ := newManualMailbox(t)
		h, _ := newRecordingHandler(t, mailbox)

		msg := h.ObtainMessage(WithTag(1))
		require.NoError(t, h.SendDelayed(msg, time.Minute))
		require.ErrorIs(t, h.SendDelayed(msg, time.Minute), errors.ErrAlreadyInUse)
		require.ErrorIs(t, h.Send(msg), errors.ErrAlreadyInUse)
		assert.Equal(t, 1, mailbox.Len())
	})
	t.Run("barrier on a mailbox not allowed to quit", func(t *testing.T) {
		mailbox, _ := newManualMailbox(t, WithQuitAllowed(false))
		barrier := mailbox.Pool().Obtain()
		require.ErrorIs(t, mailbox.Enqueue(barrier, time.Time{}), errors.ErrIllegalBarrier)
		require.ErrorIs(t, mailbox.Quit(true), errors.ErrQuitNotAllowed)
		require.ErrorIs(t, mailbox.Quit(false), errors.ErrQuitNotAllowed)
		assert.False(t, mailbox.IsQuitting())
	})
	t.Run("barrier seals the mailbox and pending messages still drain", func(t *testing.T) {
		pool := NewPool(4)
		mailbox, clk := newManualMailbox(t, WithPool(pool))
		h, rec := newRecordingHandler(t, mailbox)

		require.NoError(t, h.SendEmptyDelayed(1, 10*time.Millisecond))
		require.NoError(t, mailbox.Enqueue(pool.Obtain(), time.Time{}))
		assert.True(t, mailbox.IsQuitting())
		assert.Equal(t, 1, mailbox.Len())

		late := h.ObtainMessage(WithTag(2))
		require.ErrorIs(t, h.Send(late), errors.ErrDead)
		assert.False(t, late.InUse())
		assert.Nil(t, late.Target())

		clk.Advance(10 * time.Millisecond)
		assert.Equal(t, []int{1}, rec.Tags())
		assert.Zero(t, mailbox.Len())
	})
	t.Run("quit drops every pending message", func(t *testing.T) {
		mailbox, clk := newManualMailbox(t)
		h, rec := newRecordingHandler(t, mailbox)

		require.NoError(t, h.SendEmptyDelayed(1, time.Second))
		require.NoError(t, h.SendEmptyDelayed(2, 2*time.Second))
		require.NoError(t, h.SendEmptyDelayed(3, 3*time.Second))
		require.Equal(t, 3, mailbox.Len())

		require.NoError(t, mailbox.Quit(false))
		assert.Zero(t, mailbox.Len())
		assert.Zero(t, clk.Pending())
		require.ErrorIs(t, h.SendEmpty(4), errors.ErrDead)

		// quitting twice is a no-op
		require.NoError(t, mailbox.Quit(false))

		clk.Advance(5 * time.Second)
		assert.Zero(t, rec.Len())
	})
	t.Run("safe quit keeps messages already due", func(t *testing.T) {
		mailbox, clk := newManualMailbox(t)
		h, rec := newRecordingHandler(t, mailbox)

		var lateErr error
		quit := CallbackFunc(func(_ context.Context, h *Handler, _ any) bool {
			require.NoError(t, h.SendEmpty(2))
			require.NoError(t, h.SendEmptyDelayed(3, time.Second))
			require.NoError(t, h.Mailbox().Quit(true))
			lateErr = h.SendEmpty(4)
			return true
		})
		require.NoError(t, h.Post(quit, nil))

		assert.ErrorIs(t, lateErr, errors.ErrDead)
		assert.Equal(t, []int{2}, rec.Tags())

		clk.Advance(2 * time.Second)
		assert.Equal(t, []int{2}, rec.Tags())
		assert.Zero(t, mailbox.Len())
	})
	t.Run("messages sent at front dispatch before the chain", func(t *testing.T) {
		mailbox, _ := newManualMailbox(t)
		h, rec := newRecordingHandler(t, mailbox)

		seed := CallbackFunc(func(_ context.Context, h *Handler, _ any) bool {
			require.NoError(t, h.SendEmpty(1))
			require.NoError(t, h.SendEmptyAtFront(2))
			require.NoError(t, h.SendEmpty(3))
			require.NoError(t, h.SendEmptyAtFront(4))
			return true
		})
		require.NoError(t, h.Post(seed, nil))
		assert.Equal(t, []int{2, 4, 1, 3}, rec.Tags())
	})
	t.Run("synchronous handlers bypass due times", func(t *testing.T) {
		mailbox, clk := newManualMailbox(t)
		h, rec := newRecordingHandler(t, mailbox, WithAsynchronous(false))

		require.NoError(t, h.SendEmptyDelayed(1, time.Hour))
		assert.Equal(t, []int{1}, rec.Tags())
		assert.Zero(t, clk.Pending())
	})
	t.Run("handlers sharing a mailbox", func(t *testing.T) {
		mailbox, clk := newManualMailbox(t)
		first, firstRec := newRecordingHandler(t, mailbox)
		second, secondRec := newRecordingHandler(t, mailbox)

		require.NoError(t, first.SendEmptyDelayed(1, time.Second))
		require.NoError(t, second.SendEmptyDelayed(1, time.Second))
		require.NoError(t, second.SendEmptyDelayed(2, time.Second))

		assert.Equal(t, 2, second.RemoveAll(nil))
		assert.True(t, first.HasMessages(1, nil))
		assert.False(t, second.HasMessages(1, nil))

		clk.Advance(time.Second)
		assert.Equal(t, []int{1}, firstRec.Tags())
		assert.Zero(t, secondRec.Len())
	})
}

func TestMailboxQueries(t *testing.T) {
	t.Run("tagged messages", func(t *testing.T) {
		mailbox, _ := newManualMailbox(t)
		h, _ := newRecordingHandler(t, mailbox)

		require.NoError(t, h.SendDelayed(h.ObtainMessage(WithTag(1), WithAttachment("a")), time.Second))
		require.NoError(t, h.SendDelayed(h.ObtainMessage(WithTag(1), WithAttachment("b")), time.Second))
		require.NoError(t, h.SendDelayed(h.ObtainMessage(WithTag(2)), time.Second))

		assert.True(t, h.HasMessages(1, nil))
		assert.True(t, h.HasMessages(1, "b"))
		assert.False(t, h.HasMessages(1, "c"))
		assert.False(t, h.HasMessages(3, nil))
		assert.False(t, mailbox.HasMessages(nil, 1, nil))

		assert.Equal(t, 1, h.RemoveMessages(1, "a"))
		assert.Equal(t, 1, h.RemoveMessages(1, nil))
		assert.Zero(t, h.RemoveMessages(1, nil))
		assert.True(t, h.HasMessages(2, nil))
		assert.Equal(t, 1, h.RemoveAll(nil))
		assert.Zero(t, mailbox.Len())
	})
	t.Run("callbacks", func(t *testing.T) {
		mailbox, clk := newManualMailbox(t)
		h, _ := newRecordingHandler(t, mailbox)

		cb := new(pointerCallback)
		other := new(pointerCallback)
		fn := CallbackFunc(func(context.Context, *Handler, any) bool { return true })

		require.NoError(t, h.PostDelayed(cb, time.Second, "token"))
		require.NoError(t, h.PostDelayed(fn, time.Second, nil))

		assert.True(t, h.HasCallbacks(cb, nil))
		assert.True(t, h.HasCallbacks(cb, "token"))
		assert.False(t, h.HasCallbacks(cb, "other"))
		assert.False(t, h.HasCallbacks(other, nil))
		assert.False(t, h.HasCallbacks(fn, nil))
		assert.False(t, h.HasCallbacks(nil, nil))
		// callbacks never match tag queries
		assert.False(t, h.HasMessages(0, nil))

		assert.Zero(t, h.RemoveCallbacks(fn, nil))
		assert.Equal(t, 1, h.RemoveCallbacks(cb, nil))
		assert.Equal(t, 1, mailbox.Len())

		clk.Advance(time.Second)
		assert.Zero(t, cb.Runs())
		assert.Zero(t, mailbox.Len())
	})
	t.Run("remove all by attachment", func(t *testing.T) {
		mailbox, _ := newManualMailbox(t)
		h, _ := newRecordingHandler(t, mailbox)

		require.NoError(t, h.PostDelayed(new(pointerCallback), time.Second, "x"))
		require.NoError(t, h.SendDelayed(h.ObtainMessage(WithTag(9), WithAttachment("x")), time.Second))
		require.NoError(t, h.SendDelayed(h.ObtainMessage(WithTag(9), WithAttachment("y")), time.Second))

		assert.Equal(t, 2, h.RemoveAll("x"))
		assert.True(t, h.HasMessages(9, "y"))
	})
}

func TestMailboxIdleWatchers(t *testing.T) {
	mailbox, _ := newManualMailbox(t)
	h, _ := newRecordingHandler(t, mailbox)

	keep := &countingWatcher{calls: atomic.NewInt32(0), keep: true}
	once := &countingWatcher{calls: atomic.NewInt32(0)}
	panicking := IdleWatcherFunc(func(context.Context) bool { panic("boom") })

	require.NoError(t, mailbox.AddIdleWatcher(keep))
	require.NoError(t, mailbox.AddIdleWatcher(once))
	require.NoError(t, mailbox.AddIdleWatcher(panicking))
	require.ErrorIs(t, mailbox.AddIdleWatcher(nil), errors.ErrInvalidArgument)

	require.NoError(t, h.SendEmpty(1))
	assert.EqualValues(t, 1, keep.calls.Load())
	assert.EqualValues(t, 1, once.calls.Load())

	require.NoError(t, h.SendEmpty(2))
	assert.EqualValues(t, 2, keep.calls.Load())
	assert.EqualValues(t, 1, once.calls.Load())

	assert.True(t, mailbox.RemoveIdleWatcher(keep))
	assert.False(t, mailbox.RemoveIdleWatcher(once))
	require.NoError(t, h.SendEmpty(3))
	assert.EqualValues(t, 2, keep.calls.Load())

	require.NoError(t, mailbox.Quit(false))
	require.ErrorIs(t, mailbox.AddIdleWatcher(keep), errors.ErrDead)
}

func TestMailboxRecoversFromPanics(t *testing.T) {
	mailbox, _ := newManualMailbox(t, WithMetrics(noop.NewMeterProvider().Meter("test")))

	var unhandled []int
	h, err := NewHandler(
		WithMailbox(mailbox),
		WithHandleFunc(func(_ context.Context, _ *Handler, msg *Message) bool {
			switch msg.Tag {
			case 1:
				panic("boom")
			case 2:
				return false
			default:
				return true
			}
		}),
		WithUnhandledHook(func(_ context.Context, _ *Handler, msg *Message) {
			unhandled = append(unhandled, msg.Tag)
		}),
	)
	require.NoError(t, err)

	require.NoError(t, h.SendEmpty(1))
	require.NoError(t, h.SendEmpty(2))
	require.NoError(t, h.SendEmpty(3))

	assert.Equal(t, []int{1, 2}, unhandled)
	assert.Zero(t, mailbox.Len())
	assert.True(t, mailbox.IsIdle())
}

func TestMailboxConcurrentSenders(t *testing.T) {
	const (
		senders  = 8
		messages = 100
	)

	mailbox := newRealMailbox(t)
	inFlight := atomic.NewInt32(0)
	maxInFlight := atomic.NewInt32(0)
	dispatched := atomic.NewInt32(0)

	h, err := NewHandler(
		WithMailbox(mailbox),
		WithHandleFunc(func(context.Context, *Handler, *Message) bool {
			current := inFlight.Inc()
			for {
				seen := maxInFlight.Load()
				if current <= seen || maxInFlight.CompareAndSwap(seen, current) {
					break
				}
			}
			dispatched.Inc()
			inFlight.Dec()
			return true
		}),
	)
	require.NoError(t, err)

	group, _ := errgroup.WithContext(context.Background())
	for sender := 0; sender < senders; sender++ {
		sender := sender
		group.Go(func() error {
			for i := 0; i < messages; i++ {
				if err := h.SendEmpty(sender*messages + i); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, group.Wait())

	assert.EqualValues(t, senders*messages, dispatched.Load())
	assert.EqualValues(t, 1, maxInFlight.Load())
	assert.Zero(t, mailbox.Len())
}
