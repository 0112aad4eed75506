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

package future

import (
	"context"
	"sync"
)

// Future represents a value which may or may not currently be available,
// but will be available at some point, or an error if that value
// could not be made available.
//
// Example usage:
//
//	fut := future.New(func() (int, error) {
//	    return compute(), nil
//	})
//
//	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
//	defer cancel()
//
//	value, err := fut.Await(ctx)
type Future[T any] interface {
	// Await blocks until the Future is completed or context is canceled and
	// returns either a result or an error. A canceled wait does not complete the Future.
	Await(ctx context.Context) (T, error)
	// Done is closed once the Future has completed.
	Done() <-chan struct{}
}

// New runs task in its own goroutine and returns a Future completed with its outcome.
func New[T any](task func() (T, error)) Future[T] {
	completer := NewCompleter[T]()
	go func() {
		value, err := task()
		if err != nil {
			completer.Failure(err)
			return
		}
		completer.Success(value)
	}()
	return completer.Future()
}

type future[T any] struct {
	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

var _ Future[any] = (*future[any])(nil)

// Await blocks until the Future is completed or ctx is done.
func (x *future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-x.done:
		return x.value, x.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done returns a channel closed on completion
func (x *future[T]) Done() <-chan struct{} {
	return x.done
}

func (x *future[T]) complete(value T, err error) bool {
	completed := false
	x.once.Do(func() {
		x.value = value
		x.err = err
		completed = true
		close(x.done)
	})
	return completed
}

// Completer is a writable, single-assignment container which completes a Future.
// Only the first call to Success or Failure has an effect.
type Completer[T any] struct {
	future *future[T]
}

// NewCompleter creates a Completer with a pending Future
func NewCompleter[T any]() *Completer[T] {
	return &Completer[T]{
		future: &future[T]{done: make(chan struct{})},
	}
}

// Success completes the underlying Future with a value.
// It returns false when the Future was already completed.
func (c *Completer[T]) Success(value T) bool {
	return c.future.complete(value, nil)
}

// Failure fails the underlying Future with an error.
// It returns false when the Future was already completed.
func (c *Completer[T]) Failure(err error) bool {
	var zero T
	return c.future.complete(zero, err)
}

// Future returns the underlying Future.
func (c *Completer[T]) Future() Future[T] {
	return c.future
}
