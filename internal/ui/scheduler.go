package ui

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
)

// ErrSchedulerClosed is returned by Schedule after Close.
var ErrSchedulerClosed = errors.New("ui: scheduler closed")

// workEvent carries a closure through the tcell event queue so it runs
// on the UI goroutine.
type workEvent struct {
	when time.Time
	fn   func()
}

func (e *workEvent) When() time.Time { return e.when }

// quitEvent asks the UI loop to exit.
type quitEvent struct {
	when time.Time
}

func (e *quitEvent) When() time.Time { return e.when }

// Scheduler posts work onto the tcell event loop. It satisfies the
// bus's host scheduler contract: once closed, every Schedule call fails
// so bridged deliveries are dropped instead of running off-thread.
type Scheduler struct {
	screen tcell.Screen
	closed atomic.Bool
}

// NewScheduler creates a scheduler posting to screen.
func NewScheduler(screen tcell.Screen) *Scheduler {
	return &Scheduler{screen: screen}
}

// Schedule posts fn to the UI event loop.
func (s *Scheduler) Schedule(fn func()) error {
	if s.closed.Load() {
		return ErrSchedulerClosed
	}
	if err := s.screen.PostEvent(&workEvent{when: time.Now(), fn: fn}); err != nil {
		return fmt.Errorf("post ui event: %w", err)
	}
	return nil
}

// Close marks the scheduler closed. Work already in the tcell queue
// still runs; new Schedule calls fail.
func (s *Scheduler) Close() {
	s.closed.Store(true)
}
