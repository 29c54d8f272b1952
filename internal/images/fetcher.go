package images

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/isbn"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/pages"
)

const (
	// OpenLibraryCoversURL serves cover images by ISBN
	OpenLibraryCoversURL = "https://covers.openlibrary.org"

	// DefaultMaxBytes caps a downloaded page image
	DefaultMaxBytes = 10 << 20

	// Open Library sometimes answers with a tiny placeholder instead of a 404
	placeholderBytes = 1000
)

// Fetcher retrieves page images over HTTP
type Fetcher struct {
	HTTPClient *http.Client
	CoversURL  string
	MaxBytes   int64
}

// NewFetcher creates a new image fetcher
func NewFetcher() *Fetcher {
	return &Fetcher{
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		CoversURL: OpenLibraryCoversURL,
		MaxBytes:  DefaultMaxBytes,
	}
}

// IsURL reports whether s names an http(s) resource rather than a local file
func IsURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Fetch downloads one page image
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*pages.Upload, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image request returned status %d", resp.StatusCode)
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("image exceeds %d bytes", limit)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("image is empty")
	}

	contentType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	name := "page"
	if u, err := url.Parse(rawURL); err == nil && path.Base(u.Path) != "/" && path.Base(u.Path) != "." {
		name = path.Base(u.Path)
	}

	slog.Debug("Fetched image", "url", rawURL, "bytes", len(data), "content_type", contentType)
	return &pages.Upload{Filename: name, ContentType: contentType, Data: data}, nil
}

// OpenLibraryCover downloads the large cover image Open Library holds for an ISBN
func (f *Fetcher) OpenLibraryCover(ctx context.Context, value string) (*pages.Upload, error) {
	normalized := isbn.Normalize(value)
	if normalized == "" {
		return nil, fmt.Errorf("invalid ISBN: %s", value)
	}

	// default=false makes Open Library return 404 instead of a blank image
	coverURL := fmt.Sprintf("%s/b/isbn/%s-L.jpg?default=false", strings.TrimRight(f.CoversURL, "/"), normalized)
	upload, err := f.Fetch(ctx, coverURL)
	if err != nil {
		return nil, fmt.Errorf("no Open Library cover for ISBN %s: %w", normalized, err)
	}

	if len(upload.Data) < placeholderBytes {
		return nil, fmt.Errorf("cover image too small (likely placeholder)")
	}
	upload.Filename = normalized + "_cover.jpg"

	slog.Info("Downloaded cover image", "isbn", normalized, "bytes", len(upload.Data))
	return upload, nil
}
