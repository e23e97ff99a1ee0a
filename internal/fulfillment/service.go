// Package fulfillment implements the book request lifecycle: members file
// requests, and admins (or other members) resolve them by uploading the
// requested book, rejecting, or flagging the requester for contact.
package fulfillment

import (
	"context"
	"fmt"
	"time"

	"github.com/kitabu-club/kitabu/internal/catalog"
	"github.com/kitabu-club/kitabu/internal/entities"
)

// RequestStore is the request persistence interface the service depends
// on. Transitions are conditional updates; see the requests repository.
type RequestStore interface {
	Create(profileID uint, title, author string) (*entities.BookRequest, error)
	GetByID(id uint) (*entities.BookRequest, error)
	ListAll() ([]entities.BookRequest, error)
	ListForProfile(profileID uint) ([]entities.BookRequest, error)
	ListByStatus(status entities.RequestStatus) ([]entities.BookRequest, error)
	Fulfill(requestID, bookID uint, now time.Time) error
	MarkRejected(requestID uint, note string) error
	MarkContact(requestID uint, note string) error
	BulkMarkFulfilled(requestIDs []uint, now time.Time) (int64, error)
}

// Uploader creates catalog entries from uploads. Satisfied by
// catalog.Service.
type Uploader interface {
	CreateBook(ctx context.Context, input catalog.CreateBookInput) (*entities.Book, error)
}

// Service handles request lifecycle operations.
type Service struct {
	requests RequestStore
	uploader Uploader
	now      func() time.Time
}

// NewService creates a fulfillment service.
func NewService(requests RequestStore, uploader Uploader) *Service {
	return &Service{
		requests: requests,
		uploader: uploader,
		now:      time.Now,
	}
}

// Create files a new request for the given profile. The request starts in
// PENDING with no catalog link.
func (s *Service) Create(ctx context.Context, profileID uint, title, author string) (*entities.BookRequest, error) {
	return s.requests.Create(profileID, title, author)
}

// FulfillViaUpload creates a catalog entry from the upload and links it to
// the request in one FULFILLED transition. The request must still be
// PENDING; the status check happens inside the update itself, so a
// concurrently resolved request yields ErrAlreadyResolved and the freshly
// uploaded book simply remains in the catalog unlinked.
func (s *Service) FulfillViaUpload(ctx context.Context, requestID uint, input catalog.CreateBookInput) (*entities.BookRequest, *entities.Book, error) {
	request, err := s.requests.GetByID(requestID)
	if err != nil {
		return nil, nil, err
	}
	if err := request.Status.CanTransitionTo(entities.RequestStatusFulfilled); err != nil {
		return nil, nil, err
	}

	book, err := s.uploader.CreateBook(ctx, input)
	if err != nil {
		return nil, nil, fmt.Errorf("create catalog entry: %w", err)
	}

	if err := s.requests.Fulfill(requestID, book.ID, s.now()); err != nil {
		return nil, book, err
	}

	request, err = s.requests.GetByID(requestID)
	if err != nil {
		return nil, book, err
	}
	return request, book, nil
}

// FulfillWithExisting links a request to a book already in the catalog.
func (s *Service) FulfillWithExisting(ctx context.Context, requestID, bookID uint) (*entities.BookRequest, error) {
	if err := s.requests.Fulfill(requestID, bookID, s.now()); err != nil {
		return nil, err
	}
	return s.requests.GetByID(requestID)
}

// Reject marks a PENDING request as REJECTED with an optional note.
func (s *Service) Reject(ctx context.Context, requestID uint, note string) error {
	return s.requests.MarkRejected(requestID, note)
}

// RequireContact flags a PENDING request as needing requester contact.
func (s *Service) RequireContact(ctx context.Context, requestID uint, note string) error {
	return s.requests.MarkContact(requestID, note)
}

// BulkMarkFulfilled marks the given requests FULFILLED in a single
// conditional update; only PENDING and CONTACT rows are touched. Returns
// the number of requests actually updated.
func (s *Service) BulkMarkFulfilled(ctx context.Context, requestIDs []uint) (int64, error) {
	return s.requests.BulkMarkFulfilled(requestIDs, s.now())
}

// Request returns a single request with its requester and linked book.
func (s *Service) Request(ctx context.Context, requestID uint) (*entities.BookRequest, error) {
	return s.requests.GetByID(requestID)
}

// MyRequests returns a member's own requests, newest first.
func (s *Service) MyRequests(ctx context.Context, profileID uint) ([]entities.BookRequest, error) {
	return s.requests.ListForProfile(profileID)
}

// CommunityRequests returns all requests in ascending creation order.
func (s *Service) CommunityRequests(ctx context.Context) ([]entities.BookRequest, error) {
	return s.requests.ListAll()
}

// RequestsByStatus returns requests filtered by lifecycle state.
func (s *Service) RequestsByStatus(ctx context.Context, status entities.RequestStatus) ([]entities.BookRequest, error) {
	return s.requests.ListByStatus(status)
}
