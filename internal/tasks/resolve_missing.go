package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// CoverSweeper re-attempts cover resolution across the whole catalog.
type CoverSweeper interface {
	ResolveMissingCovers(ctx context.Context) (int, error)
}

// ResolveMissingCoversTask sweeps every coverless book and retries
// resolution. Scheduled nightly and also available on demand from the
// admin endpoints.
type ResolveMissingCoversTask struct{}

// Config returns the queue configuration for the catalog-wide cover sweep.
func (t ResolveMissingCoversTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "resolve_missing_covers",
		MaxAttempts: 2,
		Backoff:     5 * time.Minute,
		Timeout:     30 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// ResolveMissingCoversProcessor creates a processor function for
// ResolveMissingCoversTask.
func ResolveMissingCoversProcessor(sweeper CoverSweeper) backlite.QueueProcessor[ResolveMissingCoversTask] {
	return func(ctx context.Context, task ResolveMissingCoversTask) error {
		if sweeper == nil {
			return fmt.Errorf("cover sweeper not configured")
		}

		attached, err := sweeper.ResolveMissingCovers(ctx)
		if err != nil {
			return fmt.Errorf("cover sweep: %w", err)
		}

		log.Printf("[TASK] Cover sweep finished, attached %d covers", attached)
		return nil
	}
}

// NewResolveMissingCoversQueue creates a backlite queue for the cover sweep.
func NewResolveMissingCoversQueue(sweeper CoverSweeper) backlite.Queue {
	return backlite.NewQueue(ResolveMissingCoversProcessor(sweeper))
}
