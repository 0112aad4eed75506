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

import "container/heap"

// chain keeps asynchronous messages ordered by due time, then by sequence.
// Messages due "as soon as possible" carry a negative sequence so the most
// recent one sits at the head.
type chain []*Message

var _ heap.Interface = (*chain)(nil)

func (c chain) Len() int {
	return len(c)
}

func (c chain) Less(i, j int) bool {
	if c[i].when.Equal(c[j].when) {
		return c[i].seq < c[j].seq
	}
	return c[i].when.Before(c[j].when)
}

func (c chain) Swap(i, j int) {
	c[i], c[j] = c[j], c[i]
}

func (c *chain) Push(x any) {
	*c = append(*c, x.(*Message))
}

func (c *chain) Pop() any {
	old := *c
	n := len(old)
	msg := old[n-1]
	old[n-1] = nil
	*c = old[:n-1]
	return msg
}

func (c chain) peek() *Message {
	if len(c) == 0 {
		return nil
	}
	return c[0]
}

// filter removes every message matching drop and returns them.
func (c *chain) filter(drop func(*Message) bool) []*Message {
	var removed []*Message
	kept := (*c)[:0]
	for _, msg := range *c {
		if drop(msg) {
			removed = append(removed, msg)
			continue
		}
		kept = append(kept, msg)
	}
	for i := len(kept); i < len(*c); i++ {
		(*c)[i] = nil
	}
	*c = kept
	if len(removed) > 0 {
		heap.Init(c)
	}
	return removed
}
