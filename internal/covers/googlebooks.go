package covers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// VolumeCandidate is one search result from the metadata service, in the
// order the service ranked it.
type VolumeCandidate struct {
	Title             string
	Authors           []string
	ThumbnailURL      string
	SmallThumbnailURL string
}

// BestThumbnailURL returns the larger thumbnail variant when both exist.
func (v *VolumeCandidate) BestThumbnailURL() string {
	if v.ThumbnailURL != "" {
		return v.ThumbnailURL
	}
	return v.SmallThumbnailURL
}

// GoogleBooksClient searches the Google Books volumes API for cover
// candidates. The service is treated as unreliable: timeouts and
// non-success responses are ordinary failures for the caller to absorb.
type GoogleBooksClient struct {
	httpClient *http.Client
	baseURL    string
}

// NewGoogleBooksClient creates a Google Books API client with a bounded
// per-call timeout.
func NewGoogleBooksClient(baseURL string, timeout time.Duration) *GoogleBooksClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &GoogleBooksClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
	}
}

// Search looks up volumes by title and author, returning candidates in the
// order the service ranked them.
func (c *GoogleBooksClient) Search(ctx context.Context, title, author string) ([]VolumeCandidate, error) {
	if title == "" {
		return nil, fmt.Errorf("title is required")
	}

	q := fmt.Sprintf("intitle:%s", title)
	if author != "" {
		q += fmt.Sprintf("+inauthor:%s", author)
	}

	searchURL := fmt.Sprintf("%s?q=%s&maxResults=10", c.baseURL, url.QueryEscape(q))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Kitabu/1.0 (https://github.com/kitabu-club/kitabu)")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search volumes: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result volumesResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	candidates := make([]VolumeCandidate, 0, len(result.Items))
	for _, item := range result.Items {
		candidates = append(candidates, VolumeCandidate{
			Title:             item.VolumeInfo.Title,
			Authors:           item.VolumeInfo.Authors,
			ThumbnailURL:      normalizeThumbnailURL(item.VolumeInfo.ImageLinks.Thumbnail),
			SmallThumbnailURL: normalizeThumbnailURL(item.VolumeInfo.ImageLinks.SmallThumbnail),
		})
	}
	return candidates, nil
}

// normalizeThumbnailURL upgrades the API's http:// image links to https.
func normalizeThumbnailURL(u string) string {
	if strings.HasPrefix(u, "http://") {
		return "https://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

// Google Books API response types (internal)

type volumesResult struct {
	TotalItems int          `json:"totalItems"`
	Items      []volumeItem `json:"items"`
}

type volumeItem struct {
	ID         string     `json:"id"`
	VolumeInfo volumeInfo `json:"volumeInfo"`
}

type volumeInfo struct {
	Title      string     `json:"title"`
	Authors    []string   `json:"authors"`
	ImageLinks imageLinks `json:"imageLinks"`
}

type imageLinks struct {
	SmallThumbnail string `json:"smallThumbnail"`
	Thumbnail      string `json:"thumbnail"`
}
