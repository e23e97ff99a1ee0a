package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// CoverResolver resolves and attaches a cover for a single book.
type CoverResolver interface {
	ResolveCover(ctx context.Context, bookID uint) (bool, error)
}

// ResolveCoverTask attempts cover resolution for one book. Enqueued after
// uploads that committed without a cover, so a slow or flaky Google Books
// lookup never holds up the upload response.
type ResolveCoverTask struct {
	BookID uint `json:"book_id"`
}

// Config returns the queue configuration for cover resolution tasks.
func (t ResolveCoverTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "resolve_cover",
		MaxAttempts: 3,
		Backoff:     30 * time.Second,
		Timeout:     1 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// ResolveCoverProcessor creates a processor function for ResolveCoverTask.
func ResolveCoverProcessor(resolver CoverResolver) backlite.QueueProcessor[ResolveCoverTask] {
	return func(ctx context.Context, task ResolveCoverTask) error {
		if resolver == nil {
			return fmt.Errorf("cover resolver not configured")
		}

		attached, err := resolver.ResolveCover(ctx, task.BookID)
		if err != nil {
			return fmt.Errorf("resolve cover for book %d: %w", task.BookID, err)
		}

		if attached {
			log.Printf("[TASK] Attached cover to book %d", task.BookID)
		} else {
			log.Printf("[TASK] No cover found for book %d", task.BookID)
		}
		return nil
	}
}

// NewResolveCoverQueue creates a backlite queue for cover resolution tasks.
func NewResolveCoverQueue(resolver CoverResolver) backlite.Queue {
	return backlite.NewQueue(ResolveCoverProcessor(resolver))
}
