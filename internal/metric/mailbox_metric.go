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

package metric

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

// MailboxMetric defines the mailbox instrumentation
type MailboxMetric struct {
	// Specifies the total number of messages accepted by the mailbox
	enqueuedCount metric.Int64Counter
	// Specifies the total number of messages handed to a handler
	dispatchedCount metric.Int64Counter
	// Specifies the total number of messages a handler did not handle
	unhandledCount metric.Int64Counter
	// Specifies the total number of messages dropped by quit, removal or a dead mailbox
	droppedCount metric.Int64Counter
	// Specifies the total number of recovered dispatch panics
	panicCount metric.Int64Counter
}

// NewMailboxMetric creates an instance of MailboxMetric
func NewMailboxMetric(meter metric.Meter) (*MailboxMetric, error) {
	mailboxMetric := new(MailboxMetric)
	var err error

	if mailboxMetric.enqueuedCount, err = meter.Int64Counter(
		"mailbox_enqueued_count",
		metric.WithDescription("Total number of messages enqueued"),
	); err != nil {
		return nil, fmt.Errorf("failed to create enqueuedCount instrument, %w", err)
	}

	if mailboxMetric.dispatchedCount, err = meter.Int64Counter(
		"mailbox_dispatched_count",
		metric.WithDescription("Total number of messages dispatched"),
	); err != nil {
		return nil, fmt.Errorf("failed to create dispatchedCount instrument, %w", err)
	}

	if mailboxMetric.unhandledCount, err = meter.Int64Counter(
		"mailbox_unhandled_count",
		metric.WithDescription("Total number of messages left unhandled"),
	); err != nil {
		return nil, fmt.Errorf("failed to create unhandledCount instrument, %w", err)
	}

	if mailboxMetric.droppedCount, err = meter.Int64Counter(
		"mailbox_dropped_count",
		metric.WithDescription("Total number of messages dropped without dispatch"),
	); err != nil {
		return nil, fmt.Errorf("failed to create droppedCount instrument, %w", err)
	}

	if mailboxMetric.panicCount, err = meter.Int64Counter(
		"mailbox_panic_count",
		metric.WithDescription("Total number of recovered panics during dispatch"),
	); err != nil {
		return nil, fmt.Errorf("failed to create panicCount instrument, %w", err)
	}

	return mailboxMetric, nil
}

// EnqueuedCount returns the enqueued messages counter
func (x *MailboxMetric) EnqueuedCount() metric.Int64Counter {
	return x.enqueuedCount
}

// DispatchedCount returns the dispatched messages counter
func (x *MailboxMetric) DispatchedCount() metric.Int64Counter {
	return x.dispatchedCount
}

// UnhandledCount returns the unhandled messages counter
func (x *MailboxMetric) UnhandledCount() metric.Int64Counter {
	return x.unhandledCount
}

// DroppedCount returns the dropped messages counter
func (x *MailboxMetric) DroppedCount() metric.Int64Counter {
	return x.droppedCount
}

// PanicCount returns the recovered panics counter
func (x *MailboxMetric) PanicCount() metric.Int64Counter {
	return x.panicCount
}
