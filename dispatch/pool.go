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

// DefaultPoolCapacity is the number of recycled messages a pool retains
const DefaultPoolCapacity = 50

var defaultPool = NewPool(DefaultPoolCapacity)

// DefaultPool returns the process wide message pool
func DefaultPool() *Pool {
	return defaultPool
}

// Pool is a bounded free list of messages. Messages recycled while the pool
// is full are left to the garbage collector.
type Pool struct {
	messages chan *Message
}

// NewPool creates a pool retaining at most capacity messages.
// A non-positive capacity falls back to DefaultPoolCapacity.
func NewPool(capacity int) *Pool {
	if capacity <= 0 {
		capacity = DefaultPoolCapacity
	}
	return &Pool{messages: make(chan *Message, capacity)}
}

// Obtain returns a cleared message, reused when possible, with opts applied
func (p *Pool) Obtain(opts ...MessageOption) *Message {
	var msg *Message
	select {
	case msg = <-p.messages:
		msg.pooled = false
	default:
		msg = &Message{}
	}
	msg.pool = p
	for _, opt := range opts {
		opt(msg)
	}
	return msg
}

// ObtainCopy returns a message carrying the routable fields of template:
// tag, arguments, a deep copy of the payload, attachment, reply handler,
// target and callback. Due time and in-use state are never copied.
func (p *Pool) ObtainCopy(template *Message) *Message {
	msg := p.Obtain()
	if template == nil {
		return msg
	}
	msg.Tag = template.Tag
	msg.Arg1 = template.Arg1
	msg.Arg2 = template.Arg2
	msg.Payload = clonePayload(template.Payload)
	msg.Attachment = template.Attachment
	msg.ReplyTo = template.ReplyTo
	msg.target = template.target
	msg.callback = template.callback
	return msg
}

// Size returns the number of idle messages held by the pool
func (p *Pool) Size() int {
	return len(p.messages)
}

// Capacity returns the maximum number of idle messages
func (p *Pool) Capacity() int {
	return cap(p.messages)
}

func (p *Pool) put(msg *Message) {
	msg.pooled = true
	select {
	case p.messages <- msg:
	default:
		msg.pooled = false
	}
}
