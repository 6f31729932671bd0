// Package scheduler runs a task on a fixed interval.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/database64128/dnspod-ddns/tslog"
)

// Task is one unit of scheduled work. A returned error is logged and otherwise ignored.
type Task func(ctx context.Context) error

// Scheduler runs a [Task] immediately when started and then once per interval,
// until stopped. Ticks never overlap: a tick that runs longer than the interval
// delays the next one.
//
// The zero value is not usable. Use [New].
type Scheduler struct {
	interval time.Duration
	task     Task
	logger   *tslog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a new stopped [Scheduler].
func New(interval time.Duration, task Task, logger *tslog.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		task:     task,
		logger:   logger,
	}
}

// Interval returns the interval between ticks.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

// Running returns whether the scheduler is started.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Start starts the scheduler. It returns false without doing anything
// if the scheduler is already running.
func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go s.run(ctx, done)
	return true
}

// Stop stops the scheduler and waits for an in-flight tick to return.
// It returns false without doing anything if the scheduler is not running.
//
// Stop must not be called from within the task.
func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return false
	}
	cancel()
	<-done
	return true
}

func (s *Scheduler) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)

	s.logger.Info("Started scheduler", slog.Duration("interval", s.interval))
	defer s.logger.Info("Stopped scheduler")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := s.runTask(ctx); err != nil {
		s.logger.Warn("Scheduled task failed", tslog.Err(err))
	}
}

// runTask converts a panicking task into an error so that it cannot take the scheduler down.
func (s *Scheduler) runTask(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return s.task(ctx)
}
