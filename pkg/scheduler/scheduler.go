// Package scheduler debounces layer update requests.
//
// With a zero delay every request reconciles synchronously. With a positive
// delay the scheduler is a two-state machine:
//
//	idle  --request-->  armed   (timer started, fires after the delay)
//	armed --request-->  armed   (coalesced; the timer is not reset)
//	armed --fire----->  idle    (then one reconciliation runs)
//
// The fired callback returns to idle before it reconciles, under the same
// mutex a request takes. A request that lands before that point is covered
// by the reconciliation that follows; one that lands after arms a new timer.
// A pending change is therefore always followed by a reconciliation.
//
// An armed timer cannot be cancelled. [Scheduler.Close] stops new timers
// from arming and waits for one that is already running.
package scheduler

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/geoviewer/pkg/errors"
	"github.com/matzehuels/geoviewer/pkg/observability"
)

// ReconcileFunc recomputes the rendered layer set and pushes it to the widget.
type ReconcileFunc func(ctx context.Context) error

// Scheduler coalesces bursts of update requests into one reconciliation.
type Scheduler struct {
	delay     time.Duration
	reconcile ReconcileFunc
	logger    *log.Logger

	mu     sync.Mutex
	armed  bool
	closed bool
	wg     sync.WaitGroup
}

// New creates a scheduler. A negative delay is treated as zero and a nil
// logger discards output.
func New(delay time.Duration, reconcile ReconcileFunc, logger *log.Logger) *Scheduler {
	if delay < 0 {
		delay = 0
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Scheduler{delay: delay, reconcile: reconcile, logger: logger}
}

// Delay returns the debounce window.
func (s *Scheduler) Delay() time.Duration { return s.delay }

// Pending reports whether a timer is armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.armed
}

// Request asks for a reconciliation.
//
// With a zero delay it reconciles before returning and reports its error.
// Otherwise it returns immediately; errors of the deferred reconciliation are
// logged and sent to the scheduler hooks. Requests after Close fail with
// PRECONDITION.
func (s *Scheduler) Request(ctx context.Context) error {
	if s.delay == 0 {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return errors.New(errors.ErrCodePrecondition, "layer update scheduler is closed")
		}
		observability.Scheduler().OnRequest(ctx, false)
		return s.run(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New(errors.ErrCodePrecondition, "layer update scheduler is closed")
	}
	if s.armed {
		s.logger.Debug("Layer update already scheduled")
		observability.Scheduler().OnRequest(ctx, true)
		return nil
	}
	s.armed = true
	s.wg.Add(1)
	fireCtx := context.WithoutCancel(ctx)
	time.AfterFunc(s.delay, func() { s.fire(fireCtx) })
	s.logger.Debugf("Layer update scheduled in %s", s.delay)
	observability.Scheduler().OnRequest(ctx, false)
	return nil
}

func (s *Scheduler) fire(ctx context.Context) {
	defer s.wg.Done()

	s.mu.Lock()
	s.armed = false
	s.mu.Unlock()

	err := s.run(ctx)
	if err != nil {
		s.logger.Errorf("Layer update failed: %v", err)
	}
	observability.Scheduler().OnFire(ctx, s.delay, err)
}

// run calls the reconcile function, turning a panic into an error.
func (s *Scheduler) run(ctx context.Context) (err error) {
	if s.reconcile == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(errors.ErrCodeInternal, "layer update panicked: %v", r)
		}
	}()
	if err := s.reconcile(ctx); err != nil {
		return fmt.Errorf("reconcile layers: %w", err)
	}
	return nil
}

// Close stops new timers from arming and waits for an armed timer to fire
// and finish its reconciliation.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}
