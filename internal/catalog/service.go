// Package catalog implements the book catalog workflows: uploading books,
// serving downloads, and the two-phase cover enrichment that runs after an
// upload commits.
package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kitabu-club/kitabu/internal/covers"
	"github.com/kitabu-club/kitabu/internal/entities"
	"github.com/kitabu-club/kitabu/internal/storage"
)

var ErrFileRequired = errors.New("book file is required")

// BookStore is the catalog persistence interface the service depends on.
type BookStore interface {
	Create(book *entities.Book) error
	GetByID(id uint) (*entities.Book, error)
	ListAvailable() ([]entities.Book, error)
	Search(query string) ([]entities.Book, error)
	ListMissingCovers() ([]entities.Book, error)
	UpdateCover(id uint, coverKey string) error
	IncrementViewCount(id uint) error
	IncrementDownloadCount(id uint) error
}

// CoverResolver produces a cover image for a book, best-effort.
type CoverResolver interface {
	Resolve(ctx context.Context, book *entities.Book) (*covers.Cover, bool)
}

// CreateBookInput carries everything needed to add a book to the catalog.
type CreateBookInput struct {
	Title         string
	Author        string
	ISBN          string
	PublishedDate *time.Time
	Filename      string // Original upload filename; its extension is kept
	File          []byte
	Cover         []byte // Optional; when set, cover resolution is skipped
	CoverType     string // Content type of the supplied cover
}

// Service handles catalog operations.
type Service struct {
	books    BookStore
	files    storage.FileStore
	resolver CoverResolver
}

// NewService creates a catalog service. resolver may be nil, which
// disables cover enrichment entirely.
func NewService(books BookStore, files storage.FileStore, resolver CoverResolver) *Service {
	return &Service{
		books:    books,
		files:    files,
		resolver: resolver,
	}
}

// CreateBook stores the uploaded file, persists the catalog entry and then
// attempts cover enrichment. The enrichment is strictly two-phase: the
// base record is committed first and only the cover field is written
// afterwards, so a failed enrichment can never roll back or block the
// upload itself.
func (s *Service) CreateBook(ctx context.Context, input CreateBookInput) (*entities.Book, error) {
	if len(input.File) == 0 {
		return nil, ErrFileRequired
	}

	ext := strings.ToLower(filepath.Ext(input.Filename))
	fileKey := fmt.Sprintf("books/files/%s%s", uuid.New().String(), ext)

	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.files.Put(ctx, fileKey, bytes.NewReader(input.File), int64(len(input.File)), contentType); err != nil {
		return nil, fmt.Errorf("store book file: %w", err)
	}

	book := &entities.Book{
		Title:         input.Title,
		Author:        input.Author,
		FileKey:       fileKey,
		PublishedDate: input.PublishedDate,
		IsAvailable:   true,
	}
	if isbn := strings.TrimSpace(input.ISBN); isbn != "" {
		book.ISBN = &isbn
	}

	if len(input.Cover) > 0 {
		coverKey, err := s.storeCover(ctx, input.Cover, input.CoverType)
		if err != nil {
			s.discard(ctx, fileKey)
			return nil, fmt.Errorf("store cover: %w", err)
		}
		book.CoverKey = coverKey
	}

	if err := s.books.Create(book); err != nil {
		// A rejected upload must leave nothing behind in the store.
		s.discard(ctx, fileKey, book.CoverKey)
		return nil, err
	}

	// Phase two: enrichment. Only runs when no cover was supplied, and
	// only ever writes the cover field.
	if !book.HasCover() {
		s.EnrichCover(ctx, book)
	}

	return book, nil
}

// EnrichCover attempts to resolve and attach a cover for a persisted book.
// Failures are logged and swallowed; the book is simply left coverless.
// Returns true when a cover was attached.
func (s *Service) EnrichCover(ctx context.Context, book *entities.Book) bool {
	if s.resolver == nil || book.HasCover() {
		return false
	}

	cover, ok := s.resolver.Resolve(ctx, book)
	if !ok {
		return false
	}

	coverKey, err := s.storeCover(ctx, cover.Data, cover.ContentType)
	if err != nil {
		log.Printf("Failed to store resolved cover for book %d: %v", book.ID, err)
		return false
	}

	if err := s.books.UpdateCover(book.ID, coverKey); err != nil {
		log.Printf("Failed to attach cover to book %d: %v", book.ID, err)
		s.discard(ctx, coverKey)
		return false
	}

	book.CoverKey = coverKey
	log.Printf("Attached %s cover to book %d (%s)", cover.Source, book.ID, book.Title)
	return true
}

func (s *Service) storeCover(ctx context.Context, data []byte, contentType string) (string, error) {
	ext := ".jpg"
	if contentType == "image/png" {
		ext = ".png"
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}
	coverKey := fmt.Sprintf("books/covers/%s%s", uuid.New().String(), ext)
	if err := s.files.Put(ctx, coverKey, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", err
	}
	return coverKey, nil
}

// discard best-effort removes stored objects left over from a failed
// operation.
func (s *Service) discard(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.files.Delete(ctx, key); err != nil {
			log.Printf("Failed to remove stored object %s: %v", key, err)
		}
	}
}

// GetBook retrieves a catalog entry and records the view.
func (s *Service) GetBook(ctx context.Context, id uint) (*entities.Book, error) {
	book, err := s.books.GetByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.books.IncrementViewCount(id); err != nil {
		log.Printf("Failed to record view for book %d: %v", id, err)
	}
	return book, nil
}

// ListBooks returns the available catalog, optionally filtered by a search
// query.
func (s *Service) ListBooks(ctx context.Context, query string) ([]entities.Book, error) {
	if strings.TrimSpace(query) != "" {
		return s.books.Search(query)
	}
	return s.books.ListAvailable()
}

// Download fetches the book file bytes and records the download.
func (s *Service) Download(ctx context.Context, id uint) (*entities.Book, []byte, error) {
	book, err := s.books.GetByID(id)
	if err != nil {
		return nil, nil, err
	}

	data, err := storage.ReadAll(ctx, s.files, book.FileKey)
	if err != nil {
		return nil, nil, fmt.Errorf("read book file: %w", err)
	}

	if err := s.books.IncrementDownloadCount(id); err != nil {
		log.Printf("Failed to record download for book %d: %v", id, err)
	}
	return book, data, nil
}

// CoverImage fetches the stored cover bytes for a book.
func (s *Service) CoverImage(ctx context.Context, id uint) ([]byte, string, error) {
	book, err := s.books.GetByID(id)
	if err != nil {
		return nil, "", err
	}
	if !book.HasCover() {
		return nil, "", storage.ErrNotFound
	}

	data, err := storage.ReadAll(ctx, s.files, book.CoverKey)
	if err != nil {
		return nil, "", err
	}

	contentType := mime.TypeByExtension(filepath.Ext(book.CoverKey))
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return data, contentType, nil
}

// ResolveCover attempts cover resolution for a single book by ID. Returns
// whether a cover was attached; a book that already has one is a no-op.
func (s *Service) ResolveCover(ctx context.Context, bookID uint) (bool, error) {
	book, err := s.books.GetByID(bookID)
	if err != nil {
		return false, err
	}
	return s.EnrichCover(ctx, book), nil
}

// ResolveMissingCovers re-attempts cover resolution for every coverless
// book. Used by the background sweep.
func (s *Service) ResolveMissingCovers(ctx context.Context) (attached int, err error) {
	booksMissing, err := s.books.ListMissingCovers()
	if err != nil {
		return 0, fmt.Errorf("list books missing covers: %w", err)
	}

	for i := range booksMissing {
		select {
		case <-ctx.Done():
			return attached, ctx.Err()
		default:
		}
		if s.EnrichCover(ctx, &booksMissing[i]) {
			attached++
		}
	}
	return attached, nil
}
