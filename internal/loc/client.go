package loc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/bookanalyzer/internal/config"
	"github.com/lehigh-university-libraries/bookanalyzer/internal/models"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Cache stores search results keyed by query and limit.
// Implementations must be safe for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]models.SubjectHeading, bool)
	Set(ctx context.Context, key string, subjects []models.SubjectHeading)
}

// Client talks to the Library of Congress search and authority APIs
type Client struct {
	baseURL     string
	lccnBaseURL string
	httpClient  *http.Client
	cache       Cache
}

// NewClient creates a client. cache may be nil.
func NewClient(cfg config.LOCConfig, cache Cache) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		lccnBaseURL: strings.TrimRight(cfg.LCCNBaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cache: cache,
	}
}

// Search returns LCSH subject headings matching query, in service rank order
func (c *Client) Search(ctx context.Context, query string, limit int) ([]models.SubjectHeading, error) {
	return c.SearchAuthority(ctx, LCSH, query, limit)
}

// SearchAuthority searches a single authority vocabulary
func (c *Client) SearchAuthority(ctx context.Context, authority, query string, limit int) ([]models.SubjectHeading, error) {
	a, ok := LookupAuthority(authority)
	if !ok {
		return nil, fmt.Errorf("unknown authority %q", authority)
	}

	key := cacheKey(a.Code, query, limit)
	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, key); ok {
			slog.Debug("Search cache hit", "authority", a.Code, "query", query, "limit", limit)
			return cached, nil
		}
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("fo", "json")
	params.Set("c", a.Collection)
	params.Set("count", strconv.Itoa(limit))
	endpoint := c.baseURL + "/search?" + params.Encode()

	var resp searchResponse
	if err := c.getJSON(ctx, "search", endpoint, &resp); err != nil {
		return nil, err
	}

	subjects := make([]models.SubjectHeading, 0, len(resp.Results))
	for _, item := range resp.Results {
		subjects = append(subjects, item.toSubject())
	}

	if c.cache != nil {
		c.cache.Set(ctx, key, subjects)
	}
	return subjects, nil
}

// GetDetails fetches the full authority record for a subject id
func (c *Client) GetDetails(ctx context.Context, id string) (*models.SubjectHeading, error) {
	endpoint := c.baseURL + "/authorities/subjects/" + url.PathEscape(id) + "?fo=json"

	var rec detailsResponse
	if err := c.getJSON(ctx, "details", endpoint, &rec); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, fmt.Errorf("subject %s: %w", id, ErrNotFound)
		}
		return nil, err
	}

	s := rec.toSubject(id)
	return &s, nil
}

func (c *Client) getJSON(ctx context.Context, op, endpoint string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &ServiceError{Op: op, URL: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &ServiceError{Op: op, URL: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("%s", strings.TrimSpace(string(body)))}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return &ServiceError{Op: op, URL: endpoint, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

func isStatus(err error, code int) bool {
	var se *ServiceError
	return errors.As(err, &se) && se.StatusCode == code
}

func cacheKey(authority, query string, limit int) string {
	return fmt.Sprintf("search:%s:%s:%d", authority, query, limit)
}
