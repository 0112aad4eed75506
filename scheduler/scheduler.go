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

// Package scheduler delivers copies of a message to a Handler later, on a
// fixed interval or on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/reugn/go-quartz/job"
	quartzlogger "github.com/reugn/go-quartz/logger"
	"github.com/reugn/go-quartz/quartz"
	"go.uber.org/atomic"

	"github.com/tochemey/looper/dispatch"
	"github.com/tochemey/looper/errors"
	"github.com/tochemey/looper/internal/validation"
	"github.com/tochemey/looper/log"
)

// Scheduler fires messages at handlers from outside their mailbox.
// Every schedule is identified by a caller chosen reference used to cancel it.
//
// Unlike Handler.SendDelayed, schedules live in the scheduler and survive
// RemoveMessages on the handler. Each firing sends a fresh copy of the
// template message.
type Scheduler struct {
	// helps lock concurrent access
	mu sync.Mutex

	quartzScheduler quartz.Scheduler
	started         *atomic.Bool
	logger          log.Logger
	stopTimeout     time.Duration
}

// New creates a Scheduler. It must be started before scheduling.
func New(opts ...Option) (*Scheduler, error) {
	// the quartz logs are noise next to ours
	quartzScheduler, err := quartz.NewStdScheduler(quartz.WithLogger(quartzlogger.NewSimpleLogger(nil, quartzlogger.LevelOff)))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	s := &Scheduler{
		quartzScheduler: quartzScheduler,
		started:         atomic.NewBool(false),
		logger:          log.DefaultLogger,
		stopTimeout:     DefaultStopTimeout,
	}

	for _, opt := range opts {
		opt.Apply(s)
	}

	if err := validation.New(validation.FailFast()).
		AddAssertion(s.logger != nil, "logger is required").
		AddValidator(validation.NewPositiveDurationValidator("stop timeout", s.stopTimeout, false)).
		Validate(); err != nil {
		return nil, errors.NewErrInvalidOptions(err)
	}
	return s, nil
}

// Start starts the scheduler
func (x *Scheduler) Start(ctx context.Context) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.logger.Info("starting messages scheduler...")
	x.quartzScheduler.Start(ctx)
	x.started.Store(x.quartzScheduler.IsStarted())
	x.logger.Info("messages scheduler started")
}

// Stop drops every schedule and waits for running jobs, at most the stop timeout
func (x *Scheduler) Stop(ctx context.Context) {
	if !x.started.Load() {
		return
	}

	x.logger.Info("stopping messages scheduler...")
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.quartzScheduler.Clear(); err != nil {
		x.logger.Warnf("failed to clear scheduled messages: %v", err)
	}
	x.quartzScheduler.Stop()
	x.started.Store(x.quartzScheduler.IsStarted())

	ctx, cancel := context.WithTimeout(ctx, x.stopTimeout)
	defer cancel()
	x.quartzScheduler.Wait(ctx)

	x.logger.Info("messages scheduler stopped")
}

// IsStarted reports whether the scheduler is running
func (x *Scheduler) IsStarted() bool {
	return x.started.Load()
}

// ScheduleOnce sends a copy of template to h once delay has elapsed
func (x *Scheduler) ScheduleOnce(h *dispatch.Handler, template *dispatch.Message, delay time.Duration, reference string) error {
	if err := validation.NewPositiveDurationValidator("delay", delay, true).Validate(); err != nil {
		return errors.NewErrInvalidArgument(err.Error())
	}
	return x.schedule(h, template, reference, func() (quartz.Trigger, error) {
		return quartz.NewRunOnceTrigger(delay), nil
	})
}

// Schedule sends a copy of template to h every interval
func (x *Scheduler) Schedule(h *dispatch.Handler, template *dispatch.Message, interval time.Duration, reference string) error {
	if err := validation.NewPositiveDurationValidator("interval", interval, false).Validate(); err != nil {
		return errors.NewErrInvalidArgument(err.Error())
	}
	return x.schedule(h, template, reference, func() (quartz.Trigger, error) {
		return quartz.NewSimpleTrigger(interval), nil
	})
}

// ScheduleWithCron sends a copy of template to h on every firing of the cron
// expression, evaluated in the local time zone.
func (x *Scheduler) ScheduleWithCron(h *dispatch.Handler, template *dispatch.Message, cronExpression string, reference string) error {
	return x.schedule(h, template, reference, func() (quartz.Trigger, error) {
		trigger, err := quartz.NewCronTriggerWithLoc(cronExpression, time.Now().Location())
		if err != nil {
			x.logger.Error(fmt.Errorf("failed to schedule message: %w", err))
			return nil, errors.NewErrInvalidArgument(err.Error())
		}
		return trigger, nil
	})
}

// Cancel removes the schedule registered under reference
func (x *Scheduler) Cancel(reference string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.started.Load() {
		return errors.ErrSchedulerNotStarted
	}

	if err := x.quartzScheduler.DeleteJob(quartz.NewJobKey(reference)); err != nil {
		return fmt.Errorf("failed to cancel %s: %w", reference, err)
	}
	return nil
}

// References returns the references of the pending schedules, sorted
func (x *Scheduler) References() []string {
	x.mu.Lock()
	defer x.mu.Unlock()

	keys, err := x.quartzScheduler.GetJobKeys()
	if err != nil {
		x.logger.Warnf("failed to list scheduled messages: %v", err)
		return nil
	}

	references := make([]string, 0, len(keys))
	for _, key := range keys {
		references = append(references, key.Name())
	}
	slices.Sort(references)
	return references
}

func (x *Scheduler) schedule(h *dispatch.Handler, template *dispatch.Message, reference string, newTrigger func() (quartz.Trigger, error)) error {
	if err := validation.New(validation.FailFast()).
		AddAssertion(h != nil, "handler is required").
		AddAssertion(template != nil, "message is required").
		AddAssertion(reference != "", "reference is required").
		Validate(); err != nil {
		return errors.NewErrInvalidArgument(err.Error())
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if !x.started.Load() {
		return errors.ErrSchedulerNotStarted
	}

	key := quartz.NewJobKey(reference)
	if _, err := x.quartzScheduler.GetScheduledJob(key); err == nil {
		return errors.NewErrInvalidArgument(fmt.Sprintf("reference %s is already scheduled", reference))
	}

	trigger, err := newTrigger()
	if err != nil {
		return err
	}

	// the caller keeps ownership of template
	private := new(dispatch.Message)
	private.CopyFrom(template)

	detail := quartz.NewJobDetail(job.NewFunctionJob[bool](func(context.Context) (bool, error) {
		err := deliver(h, private)
		if err != nil {
			x.logger.Warnf("failed to deliver scheduled message %s to %s: %v", reference, h, err)
		}
		return err == nil, err
	}), key)
	return x.quartzScheduler.ScheduleJob(detail, trigger)
}

func deliver(h *dispatch.Handler, template *dispatch.Message) error {
	msg := h.ObtainMessage()
	msg.CopyFrom(template)
	// a rejected message has already been recycled by Send
	return h.Send(msg)
}
