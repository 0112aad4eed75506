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
	otelmetric "go.opentelemetry.io/otel/metric"

	"github.com/tochemey/looper/log"
)

// MailboxOption configures a Mailbox
type MailboxOption interface {
	// Apply sets the Option value of a config.
	Apply(*Mailbox)
}

var _ MailboxOption = MailboxOptionFunc(nil)

// MailboxOptionFunc implements the MailboxOption interface.
type MailboxOptionFunc func(*Mailbox)

// Apply applies the option
func (f MailboxOptionFunc) Apply(m *Mailbox) {
	f(m)
}

// WithQuitAllowed sets whether the mailbox accepts barriers and Quit. Default true.
func WithQuitAllowed(allowed bool) MailboxOption {
	return MailboxOptionFunc(func(m *Mailbox) {
		m.quitAllowed = allowed
	})
}

// WithPool sets the message pool used to obtain and recycle messages
func WithPool(pool *Pool) MailboxOption {
	return MailboxOptionFunc(func(m *Mailbox) {
		m.pool = pool
	})
}

// WithClock sets the timer facility
func WithClock(clock Clock) MailboxOption {
	return MailboxOptionFunc(func(m *Mailbox) {
		m.clock = clock
	})
}

// WithLogger sets the logger
func WithLogger(logger log.Logger) MailboxOption {
	return MailboxOptionFunc(func(m *Mailbox) {
		m.logger = logger
	})
}

// WithMetrics records mailbox activity with instruments created from meter
func WithMetrics(meter otelmetric.Meter) MailboxOption {
	return MailboxOptionFunc(func(m *Mailbox) {
		m.meter = meter
	})
}
