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
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tochemey/looper/errors"
)

const (
	fieldState      = "state"
	fieldTag        = "tag"
	fieldArg1       = "arg1"
	fieldArg2       = "arg2"
	fieldPayload    = "payload"
	fieldAttachment = "attachment"
	fieldWhen       = "when"
)

// Serialize encodes the message as a JSON object holding its state flags,
// tag, arguments, payload, attachment and due time in unix milliseconds.
// The attachment is omitted when it is not representable as JSON.
// Target, reply handler and callback are process local and never encoded.
func (m *Message) Serialize() ([]byte, error) {
	fields := map[string]any{
		fieldState: int64(m.flags),
		fieldTag:   int64(m.Tag),
		fieldArg1:  int64(m.Arg1),
		fieldArg2:  int64(m.Arg2),
	}

	if !m.when.IsZero() {
		fields[fieldWhen] = m.when.UnixMilli()
	}

	if m.Payload != nil {
		fields[fieldPayload] = m.Payload
	}

	encoded, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	if m.Attachment != nil {
		if value, err := structpb.NewValue(m.Attachment); err == nil {
			encoded.Fields[fieldAttachment] = value
		}
	}

	return protojson.Marshal(encoded)
}

// Deserialize overwrites the tag, arguments, payload, attachment and asynchronous
// flag of m from data produced by Serialize. The in-use flag and due time are
// never restored so the decoded message can be sent right away.
// JSON numbers inside payload and attachment decode as float64.
func (m *Message) Deserialize(data []byte) error {
	if m.InUse() {
		return fmt.Errorf("%s cannot be overwritten: %w", m, errors.ErrAlreadyInUse)
	}

	decoded := new(structpb.Struct)
	if err := protojson.Unmarshal(data, decoded); err != nil {
		return fmt.Errorf("failed to decode message: %w", err)
	}

	fields := decoded.AsMap()
	m.Tag = intField(fields, fieldTag)
	m.Arg1 = intField(fields, fieldArg1)
	m.Arg2 = intField(fields, fieldArg2)
	m.SetAsynchronous(uint32(intField(fields, fieldState))&flagAsynchronous != 0)
	m.when = time.Time{}

	m.Payload = nil
	if payload, ok := fields[fieldPayload].(map[string]any); ok {
		m.Payload = payload
	}

	m.Attachment = fields[fieldAttachment]
	return nil
}

func intField(fields map[string]any, key string) int {
	value, ok := fields[key].(float64)
	if !ok || math.IsNaN(value) {
		return 0
	}
	return int(value)
}
