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
	"fmt"
	"strings"
	"time"

	"github.com/tochemey/looper/errors"
)

const (
	flagInUse uint32 = 1 << iota
	flagAsynchronous
)

// Message is a pooled, mutable unit of scheduled work.
//
// A Message either carries a Callback, which takes dispatch priority, or a Tag
// interpreted by the target Handler. Once sent, a Message belongs to the Mailbox
// until it has been dispatched or removed and must not be touched by the sender.
// A Message without target is a barrier: it marks its Mailbox as quitting and
// is never dispatched.
type Message struct {
	// Tag is the user defined "what" code
	Tag int
	// Arg1 and Arg2 are small integer arguments
	Arg1 int
	Arg2 int
	// Payload is arbitrary key/value data. It is deep copied by ObtainCopy and CopyFrom.
	Payload map[string]any
	// Attachment is an opaque object reference. Callbacks receive it as their token.
	Attachment any
	// ReplyTo is an optional handler responses should be routed to
	ReplyTo *Handler

	when     time.Time
	flags    uint32
	seq      int64
	target   *Handler
	callback Callback
	pool     *Pool
	pooled   bool
}

// MessageOption sets a Message field on obtain
type MessageOption func(*Message)

// WithTag sets the message tag
func WithTag(tag int) MessageOption {
	return func(m *Message) { m.Tag = tag }
}

// WithArgs sets both integer arguments
func WithArgs(arg1, arg2 int) MessageOption {
	return func(m *Message) {
		m.Arg1 = arg1
		m.Arg2 = arg2
	}
}

// WithPayload sets the payload. The map is used as is.
func WithPayload(payload map[string]any) MessageOption {
	return func(m *Message) { m.Payload = payload }
}

// WithAttachment sets the attachment
func WithAttachment(attachment any) MessageOption {
	return func(m *Message) { m.Attachment = attachment }
}

// WithReplyTo sets the reply handler
func WithReplyTo(h *Handler) MessageOption {
	return func(m *Message) { m.ReplyTo = h }
}

// WithTarget sets the owning handler
func WithTarget(h *Handler) MessageOption {
	return func(m *Message) { m.target = h }
}

// WithCallback sets the callback run on dispatch
func WithCallback(cb Callback) MessageOption {
	return func(m *Message) { m.callback = cb }
}

// When returns the due time. The zero time means as soon as possible.
func (m *Message) When() time.Time {
	return m.when
}

// Target returns the owning handler, nil for a barrier
func (m *Message) Target() *Handler {
	return m.target
}

// Callback returns the callback, if any
func (m *Message) Callback() Callback {
	return m.callback
}

// InUse reports whether the message is owned by a mailbox
func (m *Message) InUse() bool {
	return m.flags&flagInUse != 0
}

// IsAsynchronous reports whether the message is ordered by due time.
// Synchronous messages skip the time ordered chain.
func (m *Message) IsAsynchronous() bool {
	return m.flags&flagAsynchronous != 0
}

// SetAsynchronous sets the asynchronous flag
func (m *Message) SetAsynchronous(asynchronous bool) {
	if asynchronous {
		m.flags |= flagAsynchronous
		return
	}
	m.flags &^= flagAsynchronous
}

// IsBarrier reports whether the message has no target
func (m *Message) IsBarrier() bool {
	return m.target == nil
}

// CopyFrom overwrites the routable fields of m with those of other.
// The payload is deep copied and the in-use state is never carried over.
func (m *Message) CopyFrom(other *Message) {
	if other == nil {
		return
	}
	m.Tag = other.Tag
	m.Arg1 = other.Arg1
	m.Arg2 = other.Arg2
	m.Payload = clonePayload(other.Payload)
	m.Attachment = other.Attachment
	m.ReplyTo = other.ReplyTo
	m.target = other.target
	m.callback = other.callback
	m.flags = other.flags &^ flagInUse
}

// Recycle returns the message to its pool. It fails with ErrAlreadyInUse
// while a mailbox still owns the message.
func (m *Message) Recycle() error {
	if m.InUse() {
		return fmt.Errorf("%s cannot be recycled: %w", m, errors.ErrAlreadyInUse)
	}
	m.recycleUnchecked()
	return nil
}

func (m *Message) markInUse() {
	m.flags |= flagInUse
}

// recycleUnchecked clears every field and offers the message back to its pool
func (m *Message) recycleUnchecked() {
	if m.pooled {
		return
	}
	pool := m.pool
	*m = Message{pool: pool}
	if pool != nil {
		pool.put(m)
	}
}

// String renders the message for diagnostics
func (m *Message) String() string {
	var sb strings.Builder
	sb.WriteString("Message{")
	if !m.when.IsZero() {
		sb.WriteString("when: " + m.when.UTC().Format(time.RFC3339Nano))
	} else {
		sb.WriteString("when: asap")
	}
	switch {
	case m.target == nil:
		sb.WriteString(", barrier")
	case m.callback != nil:
		fmt.Fprintf(&sb, ", callback: %T", m.callback)
	default:
		fmt.Fprintf(&sb, ", tag: 0x%x", m.Tag)
	}
	if m.Arg1 != 0 {
		fmt.Fprintf(&sb, ", arg1: %d", m.Arg1)
	}
	if m.Arg2 != 0 {
		fmt.Fprintf(&sb, ", arg2: %d", m.Arg2)
	}
	if m.Attachment != nil {
		fmt.Fprintf(&sb, ", attachment: %v", m.Attachment)
	}
	if len(m.Payload) > 0 {
		fmt.Fprintf(&sb, ", payload: %v", m.Payload)
	}
	sb.WriteString("}")
	return sb.String()
}

func clonePayload(payload map[string]any) map[string]any {
	if payload == nil {
		return nil
	}
	clone := make(map[string]any, len(payload))
	for key, value := range payload {
		clone[key] = cloneValue(value)
	}
	return clone
}

func cloneValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return clonePayload(v)
	case []any:
		clone := make([]any, len(v))
		for i, item := range v {
			clone[i] = cloneValue(item)
		}
		return clone
	default:
		return value
	}
}
