// Package covers acquires cover images for catalog entries on a
// best-effort basis: first from the Google Books API, then by rendering
// the first page of an uploaded PDF. No failure in here ever propagates to
// the caller; the worst outcome is a book without a cover.
package covers

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kitabu-club/kitabu/internal/entities"
	"github.com/kitabu-club/kitabu/internal/storage"
)

// MetadataSearcher finds cover candidates for a title/author pair.
type MetadataSearcher interface {
	Search(ctx context.Context, title, author string) ([]VolumeCandidate, error)
}

// Cover is a resolved cover image, staged in memory. Persisting it is the
// caller's job: the book record is committed before resolution starts, and
// a failed resolution must never touch it.
type Cover struct {
	Data        []byte
	ContentType string
	Source      string // "googlebooks" or "rendered"
}

// Resolver attempts to populate covers for books that lack one.
type Resolver struct {
	searcher   MetadataSearcher
	renderer   PageRenderer // nil when the deployment has no rendering capability
	files      storage.FileStore
	httpClient *http.Client
	dpi        int
}

// NewResolver creates a cover resolver. renderer may be nil, which
// disables the PDF fallback.
func NewResolver(searcher MetadataSearcher, renderer PageRenderer, files storage.FileStore, fetchTimeout time.Duration, dpi int) *Resolver {
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	if dpi <= 0 {
		dpi = 150
	}
	return &Resolver{
		searcher:   searcher,
		renderer:   renderer,
		files:      files,
		httpClient: &http.Client{Timeout: fetchTimeout},
		dpi:        dpi,
	}
}

// Resolve tries to produce a cover for the book. It never returns an
// error: every external call is fault-isolated, and any failure simply
// yields (nil, false).
func (r *Resolver) Resolve(ctx context.Context, book *entities.Book) (*Cover, bool) {
	if strings.TrimSpace(book.Title) == "" {
		return nil, false
	}

	if cover, ok := r.resolveFromMetadata(ctx, book); ok {
		return cover, true
	}

	return r.resolveFromDocument(ctx, book)
}

// resolveFromMetadata searches the metadata service and downloads the
// thumbnail of the first candidate whose author list matches.
func (r *Resolver) resolveFromMetadata(ctx context.Context, book *entities.Book) (*Cover, bool) {
	candidates, err := r.searcher.Search(ctx, book.Title, book.Author)
	if err != nil {
		log.Printf("Cover lookup failed for %q: %v", book.Title, err)
		return nil, false
	}

	// First-match-wins: candidates are scanned in the order the service
	// ranked them, and the first author match is accepted even if a later
	// candidate would match more precisely.
	candidate := firstAuthorMatch(candidates, book.Author)
	if candidate == nil {
		return nil, false
	}

	thumbURL := candidate.BestThumbnailURL()
	if thumbURL == "" {
		return nil, false
	}

	data, contentType, err := r.fetchImage(ctx, thumbURL)
	if err != nil {
		log.Printf("Cover download failed for %q: %v", book.Title, err)
		return nil, false
	}

	return &Cover{Data: data, ContentType: contentType, Source: "googlebooks"}, true
}

// firstAuthorMatch returns the first candidate whose author list contains
// the stored author as a case-insensitive substring. The stored author is
// trimmed and lower-cased; an empty stored author matches any candidate.
func firstAuthorMatch(candidates []VolumeCandidate, author string) *VolumeCandidate {
	want := strings.ToLower(strings.TrimSpace(author))
	for i := range candidates {
		for _, listed := range candidates[i].Authors {
			if strings.Contains(strings.ToLower(listed), want) {
				return &candidates[i]
			}
		}
	}
	return nil
}

func (r *Resolver) fetchImage(ctx context.Context, imageURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", "Kitabu/1.0")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/jpeg"
	}
	return data, contentType, nil
}

// resolveFromDocument renders page one of the stored file when it is a
// PDF and a renderer is available. The file is read back from durable
// storage: the upload is committed before resolution runs.
func (r *Resolver) resolveFromDocument(ctx context.Context, book *entities.Book) (*Cover, bool) {
	if r.renderer == nil {
		return nil, false
	}
	if !strings.HasSuffix(strings.ToLower(book.FileKey), ".pdf") {
		return nil, false
	}

	document, err := storage.ReadAll(ctx, r.files, book.FileKey)
	if err != nil {
		log.Printf("Cover render: could not read file %q: %v", book.FileKey, err)
		return nil, false
	}

	rendered, err := r.renderer.RenderFirstPage(ctx, document, r.dpi)
	if err != nil {
		log.Printf("Cover render failed for %q: %v", book.Title, err)
		return nil, false
	}

	return &Cover{Data: rendered, ContentType: "image/png", Source: "rendered"}, true
}
