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

	"github.com/tochemey/looper/errors"
)

func TestBroadcaster(t *testing.T) {
	t.Run("publish re-tags a copy per subscriber", func(t *testing.T) {
		mailbox, _ := newManualMailbox(t)
		broadcaster := NewBroadcaster()
		a, recA := newRecordingHandler(t, mailbox, WithBroadcaster(broadcaster))
		b, recB := newRecordingHandler(t, mailbox, WithBroadcaster(broadcaster))
		c, recC := newRecordingHandler(t, mailbox, WithBroadcaster(broadcaster))

		require.NoError(t, broadcaster.Subscribe(5, a, 50))
		require.NoError(t, broadcaster.Subscribe(5, b, 51))
		require.NoError(t, broadcaster.Subscribe(6, c, 60))

		msg := c.ObtainMessage(WithTag(5), WithArgs(1, 2), WithPayload(map[string]any{"k": "v"}))
		require.NoError(t, broadcaster.Publish(msg))

		require.Len(t, recA.Messages(), 1)
		assert.Equal(t, 50, recA.Messages()[0].Tag)
		assert.Equal(t, 1, recA.Messages()[0].Arg1)
		assert.Equal(t, 2, recA.Messages()[0].Arg2)
		assert.Equal(t, map[string]any{"k": "v"}, recA.Messages()[0].Payload)
		assert.Equal(t, []int{51}, recB.Tags())
		assert.Zero(t, recC.Len())

		// the published message stays with the caller
		assert.False(t, msg.InUse())
		assert.Equal(t, 5, msg.Tag)
		require.NoError(t, msg.Recycle())
	})
	t.Run("unsubscribe", func(t *testing.T) {
		mailbox, _ := newManualMailbox(t)
		broadcaster := NewBroadcaster()
		a, recA := newRecordingHandler(t, mailbox, WithBroadcaster(broadcaster))
		b, recB := newRecordingHandler(t, mailbox, WithBroadcaster(broadcaster))

		require.NoError(t, a.Subscribe(5, 50))
		require.NoError(t, b.Subscribe(5, 51))
		assert.True(t, a.Unsubscribe(5, 50))
		assert.False(t, a.Unsubscribe(5, 50))
		assert.False(t, a.Unsubscribe(7, 50))

		require.NoError(t, a.Publish(a.ObtainMessage(WithTag(5))))
		assert.Zero(t, recA.Len())
		assert.Equal(t, []int{51}, recB.Tags())

		assert.True(t, b.Unsubscribe(5, 51))
		assert.Zero(t, broadcaster.Len())
		assert.Empty(t, broadcaster.Tags())
	})
	t.Run("registrations stay sorted by tag", func(t *testing.T) {
		mailbox, _ := newManualMailbox(t)
		broadcaster := NewBroadcaster()
		h, rec := newRecordingHandler(t, mailbox, WithBroadcaster(broadcaster))

		for _, tag := range []int{9, -3, 4, 12, 0, 4, 7} {
			require.NoError(t, broadcaster.Subscribe(tag, h, tag*10))
		}
		assert.Equal(t, []int{-3, 0, 4, 7, 9, 12}, broadcaster.Tags())
		assert.Equal(t, 6, broadcaster.Len())

		assert.True(t, broadcaster.Unsubscribe(7, h, 70))
		require.NoError(t, broadcaster.Subscribe(8, h, 80))
		assert.Equal(t, []int{-3, 0, 4, 8, 9, 12}, broadcaster.Tags())

		// every remaining tag is still found after the removal and insertion
		for _, tag := range broadcaster.Tags() {
			require.NoError(t, broadcaster.Publish(h.ObtainMessage(WithTag(tag))))
		}
		assert.Equal(t, []int{-30, 0, 40, 40, 80, 90, 120}, rec.Tags())
	})
	t.Run("duplicate subscriptions deliver twice", func(t *testing.T) {
		mailbox, _ := newManualMailbox(t)
		broadcaster := NewBroadcaster()
		h, rec := newRecordingHandler(t, mailbox, WithBroadcaster(broadcaster))

		require.NoError(t, broadcaster.Subscribe(1, h, 10))
		require.NoError(t, broadcaster.Subscribe(1, h, 10))
		assert.Equal(t, []Subscription{{Target: h, Tag: 10}, {Target: h, Tag: 10}}, broadcaster.Subscriptions(1))

		require.NoError(t, broadcaster.Publish(h.ObtainMessage(WithTag(1))))
		assert.Equal(t, []int{10, 10}, rec.Tags())
	})
	t.Run("publishing without subscribers is a no-op", func(t *testing.T) {
		mailbox, _ := newManualMailbox(t)
		broadcaster := NewBroadcaster()
		h, rec := newRecordingHandler(t, mailbox, WithBroadcaster(broadcaster))

		require.NoError(t, broadcaster.Publish(h.ObtainMessage(WithTag(1))))
		require.NoError(t, broadcaster.Subscribe(2, h, 20))
		require.NoError(t, broadcaster.Publish(h.ObtainMessage(WithTag(1))))
		assert.Zero(t, rec.Len())
		assert.Nil(t, broadcaster.Subscriptions(1))
	})
	t.Run("delivery failures are aggregated", func(t *testing.T) {
		live, _ := newManualMailbox(t)
		deadPool := NewPool(4)
		dead, _ := newManualMailbox(t, WithPool(deadPool))
		broadcaster := NewBroadcaster()
		alive, rec := newRecordingHandler(t, live, WithBroadcaster(broadcaster))
		gone, _ := newRecordingHandler(t, dead, WithBroadcaster(broadcaster))
		unbound, err := NewHandler(WithMailbox(nil), WithBroadcaster(broadcaster))
		require.NoError(t, err)
		require.NoError(t, dead.Quit(false))

		require.NoError(t, broadcaster.Subscribe(1, gone, 10))
		require.NoError(t, broadcaster.Subscribe(1, alive, 11))
		require.NoError(t, broadcaster.Subscribe(1, unbound, 12))

		err = broadcaster.Publish(alive.ObtainMessage(WithTag(1)))
		require.ErrorIs(t, err, errors.ErrDead)
		require.ErrorIs(t, err, errors.ErrNoQueue)
		assert.Equal(t, []int{11}, rec.Tags())
		// the copy rejected by the dead mailbox went back to its pool
		assert.Equal(t, 1, deadPool.Size())
	})
	t.Run("delayed subscribers receive copies on their own mailbox", func(t *testing.T) {
		mailbox, clk := newManualMailbox(t)
		broadcaster := NewBroadcaster()
		h, rec := newRecordingHandler(t, mailbox, WithBroadcaster(broadcaster))
		publisher, _ := newRecordingHandler(t, mailbox, WithBroadcaster(broadcaster))
		require.NoError(t, h.Subscribe(3, 30))

		relay := CallbackFunc(func(_ context.Context, _ *Handler, _ any) bool {
			require.NoError(t, publisher.Messenger().Publish(publisher.ObtainMessage(WithTag(3))))
			return true
		})
		require.NoError(t, publisher.PostDelayed(relay, time.Second, nil))

		clk.Advance(time.Second)
		messages := rec.Messages()
		require.Len(t, messages, 1)
		assert.Equal(t, 30, messages[0].Tag)
		assert.Same(t, publisher, messages[0].ReplyTo)
	})
	t.Run("invalid arguments", func(t *testing.T) {
		broadcaster := NewBroadcaster()
		require.ErrorIs(t, broadcaster.Subscribe(1, nil, 1), errors.ErrInvalidArgument)
		require.ErrorIs(t, broadcaster.Publish(nil), errors.ErrInvalidArgument)
	})
}
