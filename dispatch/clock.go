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

	"k8s.io/utils/clock"
)

// Clock is the timer facility driving due times, wake-ups and waiter deadlines
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) clock.Timer
}

var defaultClock Clock = clock.RealClock{}

type dispatchKey struct{}

// withDispatching marks ctx as running inside a dispatch of mailbox
func withDispatching(ctx context.Context, mailbox *Mailbox) context.Context {
	return context.WithValue(ctx, dispatchKey{}, mailbox)
}

// IsDispatching reports whether ctx belongs to a dispatch running on mailbox
func IsDispatching(ctx context.Context, mailbox *Mailbox) bool {
	if ctx == nil || mailbox == nil {
		return false
	}
	current, ok := ctx.Value(dispatchKey{}).(*Mailbox)
	return ok && current == mailbox
}
