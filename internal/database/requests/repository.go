// Package requests provides database operations for the book request
// lifecycle.
//
// Status transitions are expressed as conditional updates so that two
// actors racing to resolve the same request cannot clobber each other: the
// status precondition is part of the UPDATE itself, never a previously read
// value.
package requests

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/kitabu-club/kitabu/internal/entities"
)

var (
	ErrTitleRequired      = errors.New("requested title is required")
	ErrProfileRequired    = errors.New("requester profile is required")
	ErrAlreadyResolved    = errors.New("request is no longer pending")
	ErrRequesterNotActive = errors.New("requester profile is not active")
)

// Repository handles all book request database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new requests repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create records a new request in PENDING with no catalog link.
func (r *Repository) Create(profileID uint, title, author string) (*entities.BookRequest, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if profileID == 0 {
		return nil, ErrProfileRequired
	}

	var profile entities.Profile
	if err := r.db.First(&profile, profileID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProfileRequired
		}
		return nil, fmt.Errorf("failed to look up requester: %w", err)
	}
	if !profile.IsActive {
		return nil, ErrRequesterNotActive
	}

	request := &entities.BookRequest{
		ProfileID: profileID,
		Title:     title,
		Author:    strings.TrimSpace(author),
		Status:    entities.RequestStatusPending,
	}

	if err := r.db.Create(request).Error; err != nil {
		return nil, err
	}
	return request, nil
}

// GetByID retrieves a request with its requester and linked book.
func (r *Repository) GetByID(id uint) (*entities.BookRequest, error) {
	var request entities.BookRequest
	err := r.db.Preload("Profile").Preload("Book").First(&request, id).Error
	if err != nil {
		return nil, err
	}
	return &request, nil
}

// ListAll retrieves every request in ascending creation order, the
// canonical collection view.
func (r *Repository) ListAll() ([]entities.BookRequest, error) {
	var requests []entities.BookRequest
	err := r.db.Preload("Profile").Preload("Book").
		Order("requested_at ASC").Find(&requests).Error
	return requests, err
}

// ListForProfile retrieves a member's own requests, newest first.
func (r *Repository) ListForProfile(profileID uint) ([]entities.BookRequest, error) {
	var requests []entities.BookRequest
	err := r.db.Preload("Book").Where("profile_id = ?", profileID).
		Order("requested_at DESC").Find(&requests).Error
	return requests, err
}

// ListByStatus retrieves requests filtered by status, ascending creation
// order.
func (r *Repository) ListByStatus(status entities.RequestStatus) ([]entities.BookRequest, error) {
	var requests []entities.BookRequest
	err := r.db.Preload("Profile").Preload("Book").
		Where("status = ?", status).
		Order("requested_at ASC").Find(&requests).Error
	return requests, err
}

// Fulfill links a request to a catalog entry and moves it to FULFILLED in
// one conditional update. PENDING and CONTACT requests are eligible:
// accepting CONTACT here is deliberate, matching the bulk admin sweep, so
// a request the admin already reached out about can still be closed by an
// upload. The status guard is inside the statement, so a request fulfilled
// concurrently by someone else comes back as ErrAlreadyResolved instead of
// being overwritten.
func (r *Repository) Fulfill(requestID, bookID uint, now time.Time) error {
	result := r.db.Model(&entities.BookRequest{}).
		Where("id = ? AND status IN ?", requestID,
			[]entities.RequestStatus{entities.RequestStatusPending, entities.RequestStatusContact}).
		Updates(map[string]any{
			"status":       entities.RequestStatusFulfilled,
			"book_id":      bookID,
			"fulfilled_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.resolveConflict(requestID)
	}
	return nil
}

// MarkRejected moves a PENDING request to REJECTED, appending an optional
// note.
func (r *Repository) MarkRejected(requestID uint, note string) error {
	return r.transitionFromPending(requestID, entities.RequestStatusRejected, note)
}

// MarkContact flags a PENDING request as needing requester contact.
func (r *Repository) MarkContact(requestID uint, note string) error {
	return r.transitionFromPending(requestID, entities.RequestStatusContact, note)
}

func (r *Repository) transitionFromPending(requestID uint, next entities.RequestStatus, note string) error {
	updates := map[string]any{"status": next}
	if note != "" {
		updates["admin_notes"] = gorm.Expr("admin_notes || ?", "\n"+note)
	}
	result := r.db.Model(&entities.BookRequest{}).
		Where("id = ? AND status = ?", requestID, entities.RequestStatusPending).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return r.resolveConflict(requestID)
	}
	return nil
}

// resolveConflict distinguishes "no such request" from "request already
// left PENDING" after a conditional update matched zero rows.
func (r *Repository) resolveConflict(requestID uint) error {
	var request entities.BookRequest
	if err := r.db.First(&request, requestID).Error; err != nil {
		return err
	}
	return fmt.Errorf("%w (status %s)", ErrAlreadyResolved, request.Status)
}

// BulkMarkFulfilled marks the given requests FULFILLED, stamps the
// fulfilment time and appends an audit line to the notes. Only rows still
// in PENDING or CONTACT are touched; the filter is part of the single
// UPDATE statement, so requests resolved between selection and update are
// skipped rather than corrupted. Returns the number of rows actually
// updated.
func (r *Repository) BulkMarkFulfilled(requestIDs []uint, now time.Time) (int64, error) {
	if len(requestIDs) == 0 {
		return 0, nil
	}

	auditLine := fmt.Sprintf("\nAutomatically marked fulfilled by admin on %s.", now.Format("2006-01-02"))

	result := r.db.Model(&entities.BookRequest{}).
		Where("id IN ? AND status IN ?", requestIDs,
			[]entities.RequestStatus{entities.RequestStatusPending, entities.RequestStatusContact}).
		Updates(map[string]any{
			"status":       entities.RequestStatusFulfilled,
			"fulfilled_at": now,
			"admin_notes":  gorm.Expr("admin_notes || ?", auditLine),
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
