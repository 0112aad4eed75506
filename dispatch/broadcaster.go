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
	"slices"
	"sync"

	"github.com/google/btree"
	"go.uber.org/multierr"

	"github.com/tochemey/looper/errors"
)

const registrationDegree = 8

var defaultBroadcaster = NewBroadcaster()

// DefaultBroadcaster returns the process wide broadcaster
func DefaultBroadcaster() *Broadcaster {
	return defaultBroadcaster
}

// Subscription is one subscriber of a publisher tag, with the tag its copies carry
type Subscription struct {
	Target *Handler
	Tag    int
}

type registration struct {
	tag           int
	subscriptions []Subscription
}

// Broadcaster maps publisher tags to ordered subscriber lists. Registrations
// are kept sorted by tag with at most one registration per tag.
type Broadcaster struct {
	mu            sync.RWMutex
	registrations *btree.BTreeG[*registration]
}

// NewBroadcaster creates an empty Broadcaster
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		registrations: btree.NewG(registrationDegree, func(a, b *registration) bool {
			return a.tag < b.tag
		}),
	}
}

// Subscribe registers subscriber for messages published under publisherTag.
// Copies delivered to subscriber are re-tagged with remappedTag. Registering
// the same pair twice delivers twice.
func (b *Broadcaster) Subscribe(publisherTag int, subscriber *Handler, remappedTag int) error {
	if subscriber == nil {
		return errors.NewErrInvalidArgument("subscriber is required")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	reg, ok := b.registrations.Get(&registration{tag: publisherTag})
	if !ok {
		reg = &registration{tag: publisherTag}
		b.registrations.ReplaceOrInsert(reg)
	}
	reg.subscriptions = append(reg.subscriptions, Subscription{Target: subscriber, Tag: remappedTag})
	return nil
}

// Unsubscribe removes the first registration of (subscriber, remappedTag)
// under publisherTag and reports whether one was found.
func (b *Broadcaster) Unsubscribe(publisherTag int, subscriber *Handler, remappedTag int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	reg, ok := b.registrations.Get(&registration{tag: publisherTag})
	if !ok {
		return false
	}

	index := slices.Index(reg.subscriptions, Subscription{Target: subscriber, Tag: remappedTag})
	if index < 0 {
		return false
	}

	reg.subscriptions = slices.Delete(reg.subscriptions, index, index+1)
	if len(reg.subscriptions) == 0 {
		b.registrations.Delete(reg)
	}
	return true
}

// Publish sends every subscriber of msg.Tag its own copy of msg re-tagged
// with the subscribed tag. msg itself is left untouched and remains owned by
// the caller. A tag nobody subscribed to is a no-op.
func (b *Broadcaster) Publish(msg *Message) error {
	if msg == nil {
		return errors.NewErrInvalidArgument("message is required")
	}

	subscriptions := b.Subscriptions(msg.Tag)

	var err error
	for _, subscription := range subscriptions {
		copied := subscription.Target.pool().ObtainCopy(msg)
		copied.Tag = subscription.Tag
		// a rejected copy has already been recycled by Send
		if sendErr := subscription.Target.Send(copied); sendErr != nil {
			err = multierr.Append(err, sendErr)
		}
	}
	return err
}

// Subscriptions returns the subscribers of publisherTag in registration order
func (b *Broadcaster) Subscriptions(publisherTag int) []Subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	reg, ok := b.registrations.Get(&registration{tag: publisherTag})
	if !ok {
		return nil
	}
	return slices.Clone(reg.subscriptions)
}

// Tags returns the publisher tags with at least one subscriber, ascending
func (b *Broadcaster) Tags() []int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	tags := make([]int, 0, b.registrations.Len())
	b.registrations.Ascend(func(reg *registration) bool {
		tags = append(tags, reg.tag)
		return true
	})
	return tags
}

// Len returns the number of publisher tags registered
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.registrations.Len()
}
