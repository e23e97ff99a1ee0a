package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/kitabu-club/kitabu/internal/catalog"
	"github.com/kitabu-club/kitabu/internal/database/audit"
	"github.com/kitabu-club/kitabu/internal/database/books"
	"github.com/kitabu-club/kitabu/internal/entities"
	"github.com/kitabu-club/kitabu/internal/storage"
	"github.com/kitabu-club/kitabu/internal/utils"
)

// maxUploadSize bounds book uploads (50 MiB).
const maxUploadSize = 50 << 20

type BooksController struct {
	catalog *catalog.Service
	audit   *audit.Repository
}

func NewBooksController(service *catalog.Service, auditRepo *audit.Repository) *BooksController {
	return &BooksController{
		catalog: service,
		audit:   auditRepo,
	}
}

// GetAllBooks lists the available catalog, optionally filtered by a search
// query over title and author.
func (controller *BooksController) GetAllBooks(c *gin.Context) {
	query := c.Query("q")

	items, err := controller.catalog.ListBooks(c.Request.Context(), query)
	if err != nil {
		respondInternalError(c, err, "list books")
		return
	}
	c.IndentedJSON(http.StatusOK, gin.H{"books": items, "count": len(items)})
}

// GetBook returns a single catalog entry and counts the view.
func (controller *BooksController) GetBook(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, err := controller.catalog.GetBook(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			respondNotFound(c, "book")
			return
		}
		respondInternalError(c, err, "get book")
		return
	}
	c.IndentedJSON(http.StatusOK, book)
}

// Upload adds a book to the catalog from a multipart form. The file field
// is required; a cover image may be supplied to skip cover resolution.
func (controller *BooksController) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)

	input, err := parseBookForm(c)
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	book, err := controller.catalog.CreateBook(c.Request.Context(), *input)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrFileRequired),
			errors.Is(err, books.ErrTitleRequired),
			errors.Is(err, books.ErrAuthorRequired):
			respondBadRequest(c, err.Error())
		case errors.Is(err, books.ErrISBNTaken):
			respondError(c, http.StatusConflict, err.Error())
		default:
			respondInternalError(c, err, "upload book")
		}
		return
	}

	logAuditEvent(c, controller.audit, entities.AuditEventUpload, "book_upload",
		fmt.Sprintf("Uploaded %q", book.Title), "book", book.ID)
	respondCreated(c, book)
}

// Download streams the stored book file and counts the download.
func (controller *BooksController) Download(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	book, data, err := controller.catalog.Download(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, storage.ErrNotFound) {
			respondNotFound(c, "book")
			return
		}
		respondInternalError(c, err, "download book")
		return
	}

	filename := utils.SanitizeFilename(book.Title)
	if dot := strings.LastIndex(book.FileKey, "."); dot >= 0 {
		filename += strings.ToLower(book.FileKey[dot:])
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// Cover serves the stored cover image for a book.
func (controller *BooksController) Cover(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	data, contentType, err := controller.catalog.CoverImage(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, storage.ErrNotFound) {
			respondNotFound(c, "cover")
			return
		}
		respondInternalError(c, err, "get cover")
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.Data(http.StatusOK, contentType, data)
}

// parseBookForm builds a catalog input from the multipart upload form.
func parseBookForm(c *gin.Context) (*catalog.CreateBookInput, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return nil, errors.New("book file is required")
	}
	if utils.BookExtension(fileHeader.Filename) == "" {
		return nil, errors.New("unsupported file type")
	}
	fileData, err := readMultipartFile(fileHeader)
	if err != nil {
		return nil, err
	}

	input := catalog.CreateBookInput{
		Title:    c.PostForm("title"),
		Author:   c.PostForm("author"),
		ISBN:     c.PostForm("isbn"),
		Filename: fileHeader.Filename,
		File:     fileData,
	}

	if published := c.PostForm("published_date"); published != "" {
		t, err := time.Parse("2006-01-02", published)
		if err != nil {
			return nil, errors.New("published_date must be YYYY-MM-DD")
		}
		input.PublishedDate = &t
	}

	// Optional cover image
	if coverHeader, err := c.FormFile("cover"); err == nil {
		coverData, err := readMultipartFile(coverHeader)
		if err != nil {
			return nil, err
		}
		input.Cover = coverData
		input.CoverType = coverHeader.Header.Get("Content-Type")
	}

	return &input, nil
}

func readMultipartFile(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
