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

package countdown

import (
	"time"

	"github.com/tochemey/looper/dispatch"
	"github.com/tochemey/looper/log"
)

// Option configures a Timer
type Option interface {
	// Apply sets the Option value of a config.
	Apply(*Timer)
}

var _ Option = OptionFunc(nil)

// OptionFunc implements the Option interface.
type OptionFunc func(*Timer)

// Apply applies the option
func (f OptionFunc) Apply(t *Timer) {
	f(t)
}

// WithOnTick sets the function called on every tick with the time left
func WithOnTick(onTick func(remaining time.Duration)) Option {
	return OptionFunc(func(t *Timer) {
		t.onTick = onTick
	})
}

// WithOnFinish sets the function called once the countdown is over or cancelled
func WithOnFinish(onFinish func()) Option {
	return OptionFunc(func(t *Timer) {
		t.onFinish = onFinish
	})
}

// WithMailbox runs the timer on mailbox instead of a private one
func WithMailbox(mailbox *dispatch.Mailbox) Option {
	return OptionFunc(func(t *Timer) {
		t.mailbox = mailbox
	})
}

// WithClock sets the clock of the private mailbox. It is ignored with WithMailbox.
func WithClock(clock dispatch.Clock) Option {
	return OptionFunc(func(t *Timer) {
		t.clock = clock
	})
}

// WithLogger sets the logger of the private mailbox
func WithLogger(logger log.Logger) Option {
	return OptionFunc(func(t *Timer) {
		t.logger = logger
	})
}
