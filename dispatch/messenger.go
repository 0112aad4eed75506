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
	"sync"

	"github.com/tochemey/looper/errors"
)

// Messenger sends on behalf of a binder handler so replies find their way back
type Messenger struct {
	mu     sync.RWMutex
	binder *Handler
}

// NewMessenger creates a Messenger bound to binder, which may be nil
func NewMessenger(binder *Handler) *Messenger {
	return &Messenger{binder: binder}
}

// Binder returns the bound handler
func (x *Messenger) Binder() *Handler {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.binder
}

// SetBinder binds the messenger to h
func (x *Messenger) SetBinder(h *Handler) {
	x.mu.Lock()
	x.binder = h
	x.mu.Unlock()
}

// Send sends msg to the binder
func (x *Messenger) Send(msg *Message) error {
	binder := x.Binder()
	if binder == nil {
		return errors.ErrUnboundMessenger
	}
	return binder.Send(msg)
}

// SendTo delivers msg to its target. When the target is another handler, a
// copy replying to the binder is sent instead and msg stays with the caller.
func (x *Messenger) SendTo(msg *Message) error {
	binder := x.Binder()
	if binder == nil {
		return errors.ErrUnboundMessenger
	}

	if msg == nil {
		return errors.NewErrInvalidArgument("message is required")
	}

	target := msg.Target()
	if target == nil || target == binder {
		return binder.Send(msg)
	}

	copied := target.pool().ObtainCopy(msg)
	copied.ReplyTo = binder
	return target.Send(copied)
}

// Publish broadcasts msg through the binder. ReplyTo defaults to the binder.
func (x *Messenger) Publish(msg *Message) error {
	binder := x.Binder()
	if binder == nil {
		return errors.ErrUnboundMessenger
	}

	if msg != nil && msg.ReplyTo == nil {
		msg.ReplyTo = binder
	}
	return binder.Publish(msg)
}

// Subscribe subscribes the binder to senderTag, re-tagged as targetTag
func (x *Messenger) Subscribe(senderTag, targetTag int) error {
	binder := x.Binder()
	if binder == nil {
		return errors.ErrUnboundMessenger
	}
	return binder.Subscribe(senderTag, targetTag)
}

// Unsubscribe removes one binder subscription
func (x *Messenger) Unsubscribe(senderTag, targetTag int) error {
	binder := x.Binder()
	if binder == nil {
		return errors.ErrUnboundMessenger
	}
	binder.Unsubscribe(senderTag, targetTag)
	return nil
}
