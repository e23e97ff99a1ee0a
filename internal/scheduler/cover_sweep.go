// Package scheduler runs periodic background jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// CoverSweeper re-attempts cover resolution for every coverless book.
type CoverSweeper interface {
	ResolveMissingCovers(ctx context.Context) (int, error)
}

// CoverSweepScheduler periodically retries cover resolution for books that
// came in while Google Books was down or before rendering was available.
type CoverSweepScheduler struct {
	sweeper  CoverSweeper
	schedule string

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

// NewCoverSweepScheduler creates a scheduler for the missing-covers sweep.
// An empty schedule disables it.
func NewCoverSweepScheduler(sweeper CoverSweeper, schedule string) *CoverSweepScheduler {
	return &CoverSweepScheduler{
		sweeper:  sweeper,
		schedule: schedule,
		cron:     cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow))),
	}
}

// Start begins the scheduler if a schedule is configured.
func (s *CoverSweepScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if s.schedule == "" {
		log.Printf("Cover sweep scheduler: disabled")
		return nil
	}

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		s.runSweep()
	})
	if err != nil {
		return fmt.Errorf("invalid cover sweep schedule '%s': %w", s.schedule, err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	log.Printf("Cover sweep scheduler: started with schedule '%s'", s.schedule)

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop gracefully stops the scheduler, waiting for a running sweep to
// finish.
func (s *CoverSweepScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	s.isRunning = false
	if s.cancelFunc != nil {
		// Release the context watcher started in Start; its own Stop call
		// becomes a no-op.
		s.cancelFunc()
		s.cancelFunc = nil
	}

	log.Printf("Cover sweep scheduler: stopped")
}

// RunNow triggers an immediate sweep.
func (s *CoverSweepScheduler) RunNow() {
	go s.runSweep()
}

// IsRunning returns whether the scheduler is active.
func (s *CoverSweepScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime returns when the next sweep will occur.
func (s *CoverSweepScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (s *CoverSweepScheduler) runSweep() {
	log.Printf("Cover sweep: starting")
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	attached, err := s.sweeper.ResolveMissingCovers(ctx)
	if err != nil {
		log.Printf("Cover sweep: failed after %v: %v", time.Since(startTime), err)
		return
	}
	log.Printf("Cover sweep: attached %d covers in %v", attached, time.Since(startTime))
}
