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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tochemey/looper/errors"
)

func TestMessenger(t *testing.T) {
	t.Run("unbound", func(t *testing.T) {
		messenger := NewMessenger(nil)
		msg := NewPool(1).Obtain(WithTag(1))
		require.ErrorIs(t, messenger.Send(msg), errors.ErrUnboundMessenger)
		require.ErrorIs(t, messenger.SendTo(msg), errors.ErrUnboundMessenger)
		require.ErrorIs(t, messenger.Publish(msg), errors.ErrUnboundMessenger)
		require.ErrorIs(t, messenger.Subscribe(1, 2), errors.ErrUnboundMessenger)
		require.ErrorIs(t, messenger.Unsubscribe(1, 2), errors.ErrUnboundMessenger)
	})
	t.Run("bound through the handler", func(t *testing.T) {
		mailbox, _ := newManualMailbox(t)
		messenger := NewMessenger(nil)
		h, rec := newRecordingHandler(t, mailbox, WithMessenger(messenger))
		assert.Same(t, messenger, h.Messenger())
		assert.Same(t, h, messenger.Binder())

		require.NoError(t, messenger.Send(h.ObtainMessage(WithTag(1))))
		assert.Equal(t, []int{1}, rec.Tags())
	})
	t.Run("send to another handler replies to the binder", func(t *testing.T) {
		mailbox, _ := newManualMailbox(t)
		client, clientRec := newRecordingHandler(t, mailbox)
		server, serverRec := newRecordingHandler(t, mailbox)

		request := client.ObtainMessage(WithTag(7), WithTarget(server))
		require.NoError(t, client.Messenger().SendTo(request))

		messages := serverRec.Messages()
		require.Len(t, messages, 1)
		assert.Equal(t, 7, messages[0].Tag)
		assert.Same(t, client, messages[0].ReplyTo)
		assert.Zero(t, clientRec.Len())
		assert.False(t, request.InUse())

		require.NoError(t, client.Messenger().SendTo(client.ObtainMessage(WithTag(8))))
		assert.Equal(t, []int{8}, clientRec.Tags())
		require.ErrorIs(t, client.Messenger().SendTo(nil), errors.ErrInvalidArgument)
	})
	t.Run("subscriptions", func(t *testing.T) {
		mailbox, _ := newManualMailbox(t)
		h, rec := newRecordingHandler(t, mailbox)

		require.NoError(t, h.Messenger().Subscribe(1, 10))
		require.NoError(t, h.Messenger().Publish(h.ObtainMessage(WithTag(1))))
		require.NoError(t, h.Messenger().Unsubscribe(1, 10))
		require.NoError(t, h.Messenger().Publish(h.ObtainMessage(WithTag(1))))

		messages := rec.Messages()
		require.Len(t, messages, 1)
		assert.Equal(t, 10, messages[0].Tag)
		assert.Same(t, h, messages[0].ReplyTo)
	})
}
