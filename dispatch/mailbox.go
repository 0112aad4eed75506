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
	"container/heap"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	otelmetric "go.opentelemetry.io/otel/metric"
	"k8s.io/utils/clock"

	"github.com/tochemey/looper/errors"
	"github.com/tochemey/looper/internal/metric"
	"github.com/tochemey/looper/internal/validation"
	"github.com/tochemey/looper/log"
)

// Mailbox is a time ordered queue of messages shared by one or more handlers.
//
// Without a Looper attached, the goroutine that enqueues a ready message drains
// the mailbox inline. At most one goroutine dispatches at any time. Messages
// due in the future are picked up by a timer armed once per distinct due time.
type Mailbox struct {
	mu sync.Mutex

	id       string
	chain    chain
	front    []*Message
	seq      int64
	waiters  map[int64]clock.Timer
	watchers []*idleEntry

	quitAllowed bool
	quitting    bool
	draining    bool
	looper      *Looper

	pool   *Pool
	clock  Clock
	logger log.Logger
	meter  otelmetric.Meter
	metric *metric.MailboxMetric
}

type idleEntry struct {
	watcher IdleWatcher
}

// NewMailbox creates a Mailbox. By default it allows quitting, uses the
// process wide message pool and the real clock.
func NewMailbox(opts ...MailboxOption) (*Mailbox, error) {
	m := &Mailbox{
		id:          uuid.NewString(),
		waiters:     make(map[int64]clock.Timer),
		quitAllowed: true,
		pool:        DefaultPool(),
		clock:       defaultClock,
		logger:      log.DefaultLogger,
	}

	for _, opt := range opts {
		opt.Apply(m)
	}

	if err := validation.New(validation.FailFast()).
		AddAssertion(m.pool != nil, "pool is required").
		AddAssertion(m.clock != nil, "clock is required").
		AddAssertion(m.logger != nil, "logger is required").
		Validate(); err != nil {
		return nil, errors.NewErrInvalidOptions(err)
	}

	if m.meter != nil {
		mailboxMetric, err := metric.NewMailboxMetric(m.meter)
		if err != nil {
			return nil, err
		}
		m.metric = mailboxMetric
	}

	m.logger = m.logger.With("mailbox", m.id)
	return m, nil
}

// ID returns the mailbox identifier
func (m *Mailbox) ID() string {
	return m.id
}

// Pool returns the message pool
func (m *Mailbox) Pool() *Pool {
	return m.pool
}

// Clock returns the timer facility
func (m *Mailbox) Clock() Clock {
	return m.clock
}

// Logger returns the mailbox logger
func (m *Mailbox) Logger() log.Logger {
	return m.logger
}

// Enqueue hands msg to the mailbox, due at when. The zero time means as soon
// as possible. Synchronous messages are dispatched ahead of the time ordered
// chain regardless of when.
//
// It fails with ErrAlreadyInUse when msg is already owned by a mailbox and with
// ErrIllegalBarrier when msg has no target while quitting is not allowed.
// On a quitting mailbox msg is recycled and ErrDead is returned.
func (m *Mailbox) Enqueue(msg *Message, when time.Time) error {
	if msg == nil {
		return errors.NewErrInvalidArgument("message is required")
	}
	return m.enqueue(msg, when, nil, false)
}

// enqueue validates and inserts msg. When target is set it becomes the owner
// of msg together with the asynchronous flag, under the mailbox lock.
func (m *Mailbox) enqueue(msg *Message, when time.Time, target *Handler, asynchronous bool) error {
	m.mu.Lock()
	if msg.InUse() || !msg.when.IsZero() {
		m.mu.Unlock()
		return fmt.Errorf("%s: %w", msg, errors.ErrAlreadyInUse)
	}

	if target != nil {
		msg.target = target
		msg.SetAsynchronous(asynchronous)
	}

	if msg.target == nil && !m.quitAllowed {
		m.mu.Unlock()
		return errors.ErrIllegalBarrier
	}

	if m.quitting {
		m.mu.Unlock()
		m.logger.Debugf("dropping %s sent to %s on a dead mailbox", msg, msg.target)
		m.recordDropped(1)
		msg.recycleUnchecked()
		return errors.ErrDead
	}

	if msg.target == nil {
		m.quitting = true
		m.logger.Info("barrier received, mailbox is quitting")
	}

	msg.markInUse()
	msg.when = when
	m.seq++

	if msg.target != nil && !msg.IsAsynchronous() {
		msg.seq = m.seq
		m.front = append(m.front, msg)
	} else {
		msg.seq = m.seq
		if when.IsZero() {
			msg.seq = -m.seq
		}
		heap.Push(&m.chain, msg)
	}
	m.mu.Unlock()

	m.recordEnqueued()
	m.schedule()
	return nil
}

// Quit stops the mailbox from accepting messages. With safe set, messages
// already due are kept and still dispatched while future ones are dropped.
// Otherwise every pending message is dropped. Idle watchers are released in
// both cases. Quit fails with ErrQuitNotAllowed when quitting is not allowed
// and is a no-op on a quitting mailbox.
func (m *Mailbox) Quit(safe bool) error {
	m.mu.Lock()
	if !m.quitAllowed {
		m.mu.Unlock()
		return errors.ErrQuitNotAllowed
	}

	if m.quitting {
		m.mu.Unlock()
		return nil
	}

	m.quitting = true
	var dropped []*Message
	if safe {
		now := m.clock.Now()
		dropped = m.chain.filter(func(msg *Message) bool {
			return msg.when.After(now)
		})
	} else {
		dropped = m.chain.filter(func(*Message) bool { return true })
		dropped = append(dropped, m.front...)
		clear(m.front)
		m.front = m.front[:0]
	}

	for _, timer := range m.waiters {
		timer.Stop()
	}
	clear(m.waiters)
	m.watchers = nil
	m.mu.Unlock()

	for _, msg := range dropped {
		msg.recycleUnchecked()
	}
	m.recordDropped(len(dropped))
	m.logger.Infof("mailbox quit (safe=%t), %d message(s) dropped", safe, len(dropped))

	m.schedule()
	return nil
}

// IsQuitting reports whether the mailbox stopped accepting messages
func (m *Mailbox) IsQuitting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.quitting
}

// IsIdle reports whether nothing is ready to be dispatched
func (m *Mailbox) IsIdle() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.front) > 0 {
		return false
	}
	head := m.chain.peek()
	return head == nil || head.when.After(m.clock.Now())
}

// Len returns the number of pending messages
func (m *Mailbox) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.front) + len(m.chain)
}

// AddIdleWatcher registers a watcher asked to run whenever nothing is ready
func (m *Mailbox) AddIdleWatcher(watcher IdleWatcher) error {
	if watcher == nil {
		return errors.NewErrInvalidArgument("idle watcher is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.quitting {
		return errors.ErrDead
	}
	m.watchers = append(m.watchers, &idleEntry{watcher: watcher})
	return nil
}

// RemoveIdleWatcher unregisters the first registration of watcher.
// Watchers that are not comparable can only unregister themselves.
func (m *Mailbox) RemoveIdleWatcher(watcher IdleWatcher) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, entry := range m.watchers {
		if sameValue(entry.watcher, watcher) {
			m.watchers = slices.Delete(m.watchers, i, i+1)
			return true
		}
	}
	return false
}

// HasMessages reports whether a tagged message for h is pending.
// A nil attachment matches any attachment.
func (m *Mailbox) HasMessages(h *Handler, tag int, attachment any) bool {
	if h == nil {
		return false
	}
	return m.has(matchTag(h, tag, attachment))
}

// HasCallbacks reports whether cb is pending for h
func (m *Mailbox) HasCallbacks(h *Handler, cb Callback, attachment any) bool {
	if h == nil || cb == nil {
		return false
	}
	return m.has(matchCallback(h, cb, attachment))
}

// RemoveMessages drops pending tagged messages for h and returns how many were removed
func (m *Mailbox) RemoveMessages(h *Handler, tag int, attachment any) int {
	if h == nil {
		return 0
	}
	return m.remove(matchTag(h, tag, attachment))
}

// RemoveCallbacks drops pending posts of cb for h
func (m *Mailbox) RemoveCallbacks(h *Handler, cb Callback, attachment any) int {
	if h == nil || cb == nil {
		return 0
	}
	return m.remove(matchCallback(h, cb, attachment))
}

// RemoveAll drops every pending message and callback of h carrying attachment.
// A nil attachment removes everything for h.
func (m *Mailbox) RemoveAll(h *Handler, attachment any) int {
	if h == nil {
		return 0
	}
	return m.remove(func(msg *Message) bool {
		return msg.target == h && attachmentMatches(attachment, msg.Attachment)
	})
}

func (m *Mailbox) has(match func(*Message) bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.ContainsFunc(m.front, match) || slices.ContainsFunc(m.chain, match)
}

func (m *Mailbox) remove(match func(*Message) bool) int {
	m.mu.Lock()
	removed := m.chain.filter(match)
	kept := m.front[:0]
	for _, msg := range m.front {
		if match(msg) {
			removed = append(removed, msg)
			continue
		}
		kept = append(kept, msg)
	}
	clear(m.front[len(kept):])
	m.front = kept
	m.mu.Unlock()

	for _, msg := range removed {
		msg.recycleUnchecked()
	}
	m.recordDropped(len(removed))
	return len(removed)
}

func matchTag(h *Handler, tag int, attachment any) func(*Message) bool {
	return func(msg *Message) bool {
		return msg.target == h &&
			msg.callback == nil &&
			msg.Tag == tag &&
			attachmentMatches(attachment, msg.Attachment)
	}
}

func matchCallback(h *Handler, cb Callback, attachment any) func(*Message) bool {
	return func(msg *Message) bool {
		return msg.target == h &&
			msg.callback != nil &&
			sameValue(msg.callback, cb) &&
			attachmentMatches(attachment, msg.Attachment)
	}
}

// schedule either wakes the attached looper or drains inline
func (m *Mailbox) schedule() {
	m.mu.Lock()
	looper := m.looper
	m.mu.Unlock()

	if looper != nil {
		looper.wake()
		return
	}
	m.drain(context.Background())
}

// drain dispatches ready messages until none is left. A concurrent caller
// returns immediately and its messages are picked up by the running drain.
func (m *Mailbox) drain(ctx context.Context) {
	m.mu.Lock()
	if m.draining {
		m.mu.Unlock()
		return
	}
	m.draining = true
	m.mu.Unlock()

	ctx = withDispatching(ctx, m)
	for {
		msg, watchers := m.pull()
		if msg == nil {
			m.notifyIdle(ctx, watchers)
			return
		}
		m.dispatch(ctx, msg)
	}
}

// pull returns the next ready message. When there is none it releases the
// drain and returns the idle watchers to notify.
func (m *Mailbox) pull() (*Message, []*idleEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg := m.nextReadyLocked(m.clock.Now()); msg != nil {
		return msg, nil
	}
	m.draining = false
	return nil, slices.Clone(m.watchers)
}

// nextReadyLocked pops the synchronous lane first, then the chain head when due.
// A future head arms one wake-up timer per distinct due time.
func (m *Mailbox) nextReadyLocked(now time.Time) *Message {
	if len(m.front) > 0 {
		msg := m.front[0]
		m.front[0] = nil
		m.front = m.front[1:]
		return msg
	}

	head := m.chain.peek()
	if head == nil {
		return nil
	}

	if !head.when.After(now) {
		return heap.Pop(&m.chain).(*Message)
	}

	m.armWaiterLocked(head.when, now)
	return nil
}

func (m *Mailbox) armWaiterLocked(when, now time.Time) {
	key := when.UnixNano()
	if _, ok := m.waiters[key]; ok {
		return
	}
	m.waiters[key] = m.clock.AfterFunc(when.Sub(now), func() {
		m.mu.Lock()
		delete(m.waiters, key)
		m.mu.Unlock()
		m.schedule()
	})
}

func (m *Mailbox) notifyIdle(ctx context.Context, watchers []*idleEntry) {
	for _, entry := range watchers {
		if m.queueIdle(ctx, entry) {
			continue
		}
		m.mu.Lock()
		if i := slices.Index(m.watchers, entry); i >= 0 {
			m.watchers = slices.Delete(m.watchers, i, i+1)
		}
		m.mu.Unlock()
	}
}

func (m *Mailbox) queueIdle(ctx context.Context, entry *idleEntry) (keep bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Errorf("idle watcher %T panicked: %v", entry.watcher, errors.NewPanicErrorFromRecovered(r))
			keep = false
		}
	}()
	return entry.watcher.QueueIdle(ctx)
}

// dispatch hands msg to its target and recycles it. Barriers are recycled
// without dispatch.
func (m *Mailbox) dispatch(ctx context.Context, msg *Message) bool {
	target := msg.target
	if target == nil {
		msg.recycleUnchecked()
		return false
	}

	handled := m.invoke(ctx, func() bool {
		return target.Dispatch(ctx, msg)
	}, target, msg)

	if !handled {
		m.recordUnhandled()
		m.invoke(ctx, func() bool {
			target.onUnhandled(ctx, msg)
			return true
		}, target, msg)
	}

	msg.recycleUnchecked()
	return handled
}

func (m *Mailbox) invoke(ctx context.Context, fn func() bool, target *Handler, msg *Message) (handled bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Errorf("%s panicked while dispatching %s: %v", target, target.MessageName(msg), errors.NewPanicErrorFromRecovered(r))
			m.recordPanic(ctx)
			handled = false
		}
	}()
	m.recordDispatched(ctx)
	return fn()
}

func (m *Mailbox) attach(l *Looper) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.looper != nil && m.looper != l {
		return errors.ErrLooperRunning
	}
	m.looper = l
	return nil
}

func (m *Mailbox) detach(l *Looper) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.looper == l {
		m.looper = nil
	}
}

func (m *Mailbox) recordEnqueued() {
	if m.metric != nil {
		m.metric.EnqueuedCount().Add(context.Background(), 1)
	}
}

func (m *Mailbox) recordDispatched(ctx context.Context) {
	if m.metric != nil {
		m.metric.DispatchedCount().Add(ctx, 1)
	}
}

func (m *Mailbox) recordUnhandled() {
	if m.metric != nil {
		m.metric.UnhandledCount().Add(context.Background(), 1)
	}
}

func (m *Mailbox) recordPanic(ctx context.Context) {
	if m.metric != nil {
		m.metric.PanicCount().Add(ctx, 1)
	}
}

func (m *Mailbox) recordDropped(n int) {
	if m.metric != nil && n > 0 {
		m.metric.DroppedCount().Add(context.Background(), int64(n))
	}
}
