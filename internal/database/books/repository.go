// Package books provides database operations for the book catalog.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	book, err := repo.GetByID(123)
package books

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/kitabu-club/kitabu/internal/entities"
)

var (
	ErrTitleRequired   = errors.New("title is required")
	ErrAuthorRequired  = errors.New("author is required")
	ErrFileKeyRequired = errors.New("file key is required")
	ErrISBNTaken       = errors.New("a book with this ISBN already exists")
)

// Repository handles all catalog database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create persists a new catalog entry. The file key is required up front
// and never changes afterwards; the cover key may be attached later via
// UpdateCover.
func (r *Repository) Create(book *entities.Book) error {
	book.Title = strings.TrimSpace(book.Title)
	book.Author = strings.TrimSpace(book.Author)
	if book.Title == "" {
		return ErrTitleRequired
	}
	if book.Author == "" {
		return ErrAuthorRequired
	}
	if book.FileKey == "" {
		return ErrFileKeyRequired
	}

	if book.ISBN != nil && *book.ISBN != "" {
		if _, err := r.GetByISBN(*book.ISBN); err == nil {
			return ErrISBNTaken
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check existing ISBN: %w", err)
		}
	} else {
		book.ISBN = nil
	}

	return r.db.Create(book).Error
}

// GetByID retrieves a catalog entry by ID.
func (r *Repository) GetByID(id uint) (*entities.Book, error) {
	var book entities.Book
	err := r.db.First(&book, id).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// GetByISBN retrieves a catalog entry by ISBN.
func (r *Repository) GetByISBN(isbn string) (*entities.Book, error) {
	var book entities.Book
	err := r.db.Where("isbn = ?", isbn).First(&book).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// ListAvailable retrieves all available books, newest first.
func (r *Repository) ListAvailable() ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.Where("is_available = ?", true).Order("created_at DESC").Find(&books).Error
	return books, err
}

// Search finds books by title or author (case-insensitive partial match).
func (r *Repository) Search(query string) ([]entities.Book, error) {
	var books []entities.Book
	pattern := "%" + strings.TrimSpace(query) + "%"
	err := r.db.
		Where("is_available = ?", true).
		Where("LOWER(title) LIKE LOWER(?) OR LOWER(author) LIKE LOWER(?)", pattern, pattern).
		Order("created_at DESC").
		Find(&books).Error
	return books, err
}

// ListMissingCovers retrieves books without a cover image, for the
// background re-resolution sweep.
func (r *Repository) ListMissingCovers() ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.Where("cover_key = '' OR cover_key IS NULL").Find(&books).Error
	return books, err
}

// UpdateCover attaches a cover image key to an existing entry. Only the
// cover field is written: cover resolution runs after the entry is already
// persisted and must not touch anything else.
func (r *Repository) UpdateCover(id uint, coverKey string) error {
	result := r.db.Model(&entities.Book{}).Where("id = ?", id).Update("cover_key", coverKey)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SetAvailability toggles whether the book shows up in the catalog.
func (r *Repository) SetAvailability(id uint, available bool) error {
	result := r.db.Model(&entities.Book{}).Where("id = ?", id).Update("is_available", available)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementViewCount bumps the view counter atomically.
func (r *Repository) IncrementViewCount(id uint) error {
	return r.db.Model(&entities.Book{}).Where("id = ?", id).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error
}

// IncrementDownloadCount bumps the download counter atomically.
func (r *Repository) IncrementDownloadCount(id uint) error {
	return r.db.Model(&entities.Book{}).Where("id = ?", id).
		UpdateColumn("download_count", gorm.Expr("download_count + 1")).Error
}

// SetPublishedDate records the publication date when it becomes known.
func (r *Repository) SetPublishedDate(id uint, date time.Time) error {
	return r.db.Model(&entities.Book{}).Where("id = ?", id).
		Update("published_date", date).Error
}
