package entities

import (
	"errors"
	"fmt"
	"time"
)

// RequestStatus is the lifecycle state of a book request. PENDING is the
// only non-terminal state: once a request is fulfilled, rejected or flagged
// for contact it never returns to PENDING.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "PENDING"
	RequestStatusFulfilled RequestStatus = "FULFILLED"
	RequestStatusRejected  RequestStatus = "REJECTED"
	RequestStatusContact   RequestStatus = "CONTACT"
)

var ErrInvalidTransition = errors.New("invalid request status transition")

// Valid reports whether s is a known status value.
func (s RequestStatus) Valid() bool {
	switch s {
	case RequestStatusPending, RequestStatusFulfilled, RequestStatusRejected, RequestStatusContact:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
// CONTACT is special: it is terminal for individual workflows but may still
// be swept to FULFILLED by the bulk admin action.
func (s RequestStatus) Terminal() bool {
	return s == RequestStatusFulfilled || s == RequestStatusRejected
}

// CanTransitionTo validates a status transition. Only PENDING may move to a
// terminal state, and CONTACT may additionally move to FULFILLED (the bulk
// admin sweep). Everything else is rejected with ErrInvalidTransition.
func (s RequestStatus) CanTransitionTo(next RequestStatus) error {
	if !next.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, next)
	}
	switch {
	case s == RequestStatusPending && next != RequestStatusPending:
		return nil
	case s == RequestStatusContact && next == RequestStatusFulfilled:
		return nil
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
}

// BookRequest records a member's ask for a book. Title and author are
// captured as free text so the record stays self-describing even when the
// request is never linked to a catalog entry.
type BookRequest struct {
	ID          uint          `gorm:"primaryKey" json:"id"`
	ProfileID   uint          `gorm:"index" json:"profile_id"`
	Profile     Profile       `gorm:"foreignKey:ProfileID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`
	BookID      *uint         `gorm:"index" json:"book_id,omitempty"`
	Book        *Book         `gorm:"foreignKey:BookID;constraint:OnDelete:SET NULL" json:"book,omitempty"`
	Title       string        `gorm:"size:200" json:"title"`
	Author      string        `gorm:"size:100" json:"author,omitempty"`
	Status      RequestStatus `gorm:"size:10;default:PENDING;index" json:"status"`
	RequestedAt time.Time     `gorm:"autoCreateTime;index" json:"requested_at"`
	FulfilledAt *time.Time    `json:"fulfilled_at,omitempty"`
	AdminNotes  string        `gorm:"type:text" json:"admin_notes,omitempty"`
}

// Describe returns the human-readable book reference, preferring the linked
// catalog entry over the free-text fields.
func (r *BookRequest) Describe() string {
	if r.Book != nil {
		return fmt.Sprintf("%s by %s", r.Book.Title, r.Book.Author)
	}
	if r.Author != "" {
		return fmt.Sprintf("%s by %s", r.Title, r.Author)
	}
	return r.Title
}

// ContactLink builds a WhatsApp deep link for contacting the requester
// about this request.
func (r *BookRequest) ContactLink() string {
	message := fmt.Sprintf("Hello %s, regarding your request for the book: '%s'.", r.Profile.WhatsAppName, r.Title)
	return r.Profile.WhatsAppLink(message)
}
