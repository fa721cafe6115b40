package cycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/your-org/krw-btc-cycle-bot/internal/alert"
	"github.com/your-org/krw-btc-cycle-bot/pkg/logger"
)

// Default loop timing.
const (
	DefaultInterval     = 4 * time.Hour
	DefaultErrorBackoff = 5 * time.Minute
)

// CycleRunner runs a single cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context, trigger Trigger) (*Report, error)
}

// RunState is the toggle state shared by the control surface and the loop.
// Only a Scheduler mutates it, under its own lock.
type RunState struct {
	active atomic.Bool
	cancel context.CancelFunc
	done   chan struct{}
}

// NewRunState returns an inactive state.
func NewRunState() *RunState {
	return &RunState{}
}

// Active reports whether a loop is running.
func (s *RunState) Active() bool {
	return s.active.Load()
}

// Scheduler owns the cycle loop: at most one loop goroutine exists at a time.
type Scheduler struct {
	runner       CycleRunner
	state        *RunState
	notifier     alert.Notifier
	interval     time.Duration
	errorBackoff time.Duration

	mu sync.Mutex
}

// NewScheduler creates a Scheduler. Zero durations fall back to the defaults.
func NewScheduler(runner CycleRunner, state *RunState, notifier alert.Notifier, interval, errorBackoff time.Duration) *Scheduler {
	if state == nil {
		state = NewRunState()
	}
	if notifier == nil {
		notifier = alert.NewNoOpNotifier()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	if errorBackoff <= 0 {
		errorBackoff = DefaultErrorBackoff
	}
	return &Scheduler{
		runner:       runner,
		state:        state,
		notifier:     notifier,
		interval:     interval,
		errorBackoff: errorBackoff,
	}
}

// IsActive reports whether the loop is running.
func (s *Scheduler) IsActive() bool {
	return s.state.Active()
}

// Start launches the loop. It returns false if a loop is already running.
// The loop also stops when ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked(ctx)
}

// Stop cancels the loop and waits for it to exit. A cycle already executing
// finishes first; a pending sleep is cut short. It returns false if no loop was running.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

// Toggle flips between running and stopped and returns the new state.
func (s *Scheduler) Toggle(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.cancel != nil {
		s.stopLocked()
		return false
	}
	return s.startLocked(ctx)
}

func (s *Scheduler) startLocked(ctx context.Context) bool {
	if s.state.cancel != nil {
		return false
	}
	if ctx.Err() != nil {
		logger.Warnf("Trading loop not started: %v", ctx.Err())
		return false
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.state.cancel = cancel
	s.state.done = done
	s.state.active.Store(true)

	go s.loop(loopCtx, done)
	logger.Infof("Trading loop started (interval=%s, error backoff=%s).", s.interval, s.errorBackoff)
	return true
}

func (s *Scheduler) stopLocked() bool {
	if s.state.cancel == nil {
		return false
	}
	s.state.cancel()
	<-s.state.done
	s.state.cancel = nil
	s.state.done = nil
	s.state.active.Store(false)
	logger.Info("Trading loop stopped.")
	return true
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		if ctx.Err() != nil {
			return
		}

		wait := s.interval
		_, err := s.runner.RunCycle(ctx, TriggerScheduled)
		switch {
		case err == nil:
		case ctx.Err() != nil && errors.Is(err, ctx.Err()):
			return
		default:
			logger.Errorf("Error in trading cycle: %v. Retrying in %s.", err, s.errorBackoff)
			if nerr := s.notifier.Send(fmt.Sprintf("trading cycle failed, retrying in %s: %v", s.errorBackoff, err)); nerr != nil {
				logger.Warnf("Failed to queue alert: %v", nerr)
			}
			wait = s.errorBackoff
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}
