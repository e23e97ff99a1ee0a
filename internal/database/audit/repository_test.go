package audit

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kitabu-club/kitabu/internal/entities"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.AuditEvent{}))
	return NewRepository(db)
}

func logEvent(t *testing.T, repo *Repository, userID uint, eventType entities.AuditEventType, action string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, repo.LogEvent(&entities.AuditEvent{
		UserID:    userID,
		EventType: eventType,
		Action:    action,
		Status:    entities.AuditStatusSuccess,
		CreatedAt: createdAt,
	}))
}

func TestRepository_LogEvent(t *testing.T) {
	t.Run("stamps the creation time when missing", func(t *testing.T) {
		repo := setupTestRepo(t)

		event := &entities.AuditEvent{
			UserID:    1,
			EventType: entities.AuditEventUpload,
			Action:    "book_upload",
			Status:    entities.AuditStatusSuccess,
		}
		require.NoError(t, repo.LogEvent(event))
		assert.False(t, event.CreatedAt.IsZero())
	})

	t.Run("keeps an explicit creation time", func(t *testing.T) {
		repo := setupTestRepo(t)

		stamped := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		event := &entities.AuditEvent{
			UserID:    1,
			EventType: entities.AuditEventSignup,
			Action:    "signup",
			CreatedAt: stamped,
		}
		require.NoError(t, repo.LogEvent(event))
		assert.True(t, event.CreatedAt.Equal(stamped))
	})
}

func TestRepository_GetEvents(t *testing.T) {
	t.Run("returns most recent first", func(t *testing.T) {
		repo := setupTestRepo(t)

		base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		logEvent(t, repo, 1, entities.AuditEventUpload, "first", base)
		logEvent(t, repo, 1, entities.AuditEventUpload, "second", base.Add(time.Hour))

		events, total, err := repo.GetEvents(0, 50, 0)
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		require.Len(t, events, 2)
		assert.Equal(t, "second", events[0].Action)
	})

	t.Run("filters by user", func(t *testing.T) {
		repo := setupTestRepo(t)

		now := time.Now()
		logEvent(t, repo, 1, entities.AuditEventUpload, "mine", now)
		logEvent(t, repo, 2, entities.AuditEventUpload, "theirs", now)

		events, total, err := repo.GetEvents(1, 50, 0)
		require.NoError(t, err)
		assert.EqualValues(t, 1, total)
		require.Len(t, events, 1)
		assert.Equal(t, "mine", events[0].Action)
	})

	t.Run("paginates with the total count intact", func(t *testing.T) {
		repo := setupTestRepo(t)

		base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
		for i := 0; i < 5; i++ {
			logEvent(t, repo, 1, entities.AuditEventUpload, fmt.Sprintf("event-%d", i), base.Add(time.Duration(i)*time.Minute))
		}

		events, total, err := repo.GetEvents(0, 2, 2)
		require.NoError(t, err)
		assert.EqualValues(t, 5, total)
		require.Len(t, events, 2)
		assert.Equal(t, "event-2", events[0].Action)
	})
}

func TestRepository_GetEventsByType(t *testing.T) {
	repo := setupTestRepo(t)

	now := time.Now()
	logEvent(t, repo, 1, entities.AuditEventUpload, "book_upload", now)
	logEvent(t, repo, 1, entities.AuditEventFulfillment, "request_fulfill_upload", now)

	events, total, err := repo.GetEventsByType(entities.AuditEventFulfillment, 50, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, events, 1)
	assert.Equal(t, "request_fulfill_upload", events[0].Action)
}

func TestRepository_DeleteOldEvents(t *testing.T) {
	repo := setupTestRepo(t)

	now := time.Now()
	logEvent(t, repo, 1, entities.AuditEventUpload, "stale", now.Add(-48*time.Hour))
	logEvent(t, repo, 1, entities.AuditEventUpload, "fresh", now)

	deleted, err := repo.DeleteOldEvents(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	events, total, err := repo.GetEvents(0, 50, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, events, 1)
	assert.Equal(t, "fresh", events[0].Action)
}
