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

package validation

import (
	"errors"
	"fmt"
	"time"
)

type booleanValidator struct {
	ok      bool
	message string
}

// NewBooleanValidator returns a Validator failing with message when ok is false
func NewBooleanValidator(ok bool, message string) Validator {
	return booleanValidator{ok: ok, message: message}
}

func (v booleanValidator) Validate() error {
	if !v.ok {
		return errors.New(v.message)
	}
	return nil
}

type durationValidator struct {
	name      string
	value     time.Duration
	allowZero bool
}

// NewPositiveDurationValidator fails when value is negative, or zero unless allowZero is set
func NewPositiveDurationValidator(name string, value time.Duration, allowZero bool) Validator {
	return durationValidator{name: name, value: value, allowZero: allowZero}
}

func (v durationValidator) Validate() error {
	switch {
	case v.value < 0:
		return fmt.Errorf("%s must not be negative, got %s", v.name, v.value)
	case v.value == 0 && !v.allowZero:
		return fmt.Errorf("%s must be positive", v.name)
	default:
		return nil
	}
}
