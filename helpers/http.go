package helpers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	mathrand "math/rand"
	"mime"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/net/html/charset"

	"sjsage522/listingwatcher/logger"
	apperrors "sjsage522/listingwatcher/pkg/errors"
	"sjsage522/listingwatcher/services/cache"
)

// fetchFailed is the cause reported to users for every transport failure
const fetchFailed = "could not get response"

// HTTP header configurations
var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
	}

	referers = []string{
		"https://www.google.com/",
		"https://www.bing.com/",
		"https://duckduckgo.com/",
	}

	// Content types accepted as a listing page
	textTypes = []string{"application/xhtml+xml", "application/xml"}
)

// PageFetcher retrieves the raw body of a listing page
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Fetcher performs a single GET per call with browser-like headers. When a
// cache is set, a rate-limited host is blocked for blockTime and further
// fetches against it fail without a request.
type Fetcher struct {
	client    *http.Client
	cacheSvc  cache.CacheService
	blockTime time.Duration
}

// NewFetcher creates a fetcher. cacheSvc may be nil.
func NewFetcher(timeout time.Duration, cacheSvc cache.CacheService, blockTime time.Duration) *Fetcher {
	return &Fetcher{
		// The default client follows redirects
		client:    &http.Client{Timeout: timeout},
		cacheSvc:  cacheSvc,
		blockTime: blockTime,
	}
}

// Fetch sends an HTTP GET request with randomized headers and returns the
// body converted to UTF-8. Every failure is a fetch ScanError.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	blockKey := rateLimitKey(rawURL)
	if f.cacheSvc != nil && blockKey != "" {
		if _, err := f.cacheSvc.Get(blockKey); err == nil {
			return nil, apperrors.NewFetch("", fetchFailed, fmt.Errorf("%s is blocked for %s after rate limiting", blockKey, f.blockTime))
		}
	}

	body, err := f.fetchWithRandomHeaders(ctx, rawURL)
	if err != nil {
		var rl *rateLimitedError
		if f.cacheSvc != nil && blockKey != "" && errors.As(err, &rl) {
			if cerr := f.cacheSvc.Set(blockKey, []byte(rl.retryAfter), f.blockTime); cerr != nil {
				logger.ForCache().Warn().Err(cerr).Str("key", blockKey).Msg("Failed to record rate limit block")
			}
		}
		return nil, apperrors.NewFetch("", fetchFailed, err)
	}
	return body, nil
}

type rateLimitedError struct {
	retryAfter string
}

func (e *rateLimitedError) Error() string {
	return fmt.Sprintf("rate limited; retry after %s", e.retryAfter)
}

func (f *Fetcher) fetchWithRandomHeaders(ctx context.Context, rawURL string) ([]byte, error) {
	// Create a new random number generator for header selection
	rnd := mathrand.New(mathrand.NewSource(time.Now().UnixNano()))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	// Set browser-like headers
	req.Header.Set("User-Agent", userAgents[rnd.Intn(len(userAgents))])
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "he-IL,he;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("referer", referers[rnd.Intn(len(referers))])
	req.Header.Set("Pragma", "no-cache")
	req.Header.Set("upgrade-insecure-requests", "1")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "cross-site")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	defer resp.Body.Close()

	// Check for rate limiting
	if slices.Contains([]int{http.StatusTooManyRequests, 430}, resp.StatusCode) {
		return nil, &rateLimitedError{retryAfter: resp.Header.Get("Retry-After")}
	}

	// Challenge pages often come with 403/503, so the body still goes to the
	// extractor to be classified
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn("fetch %s returned status %d", rawURL, resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(bodyBytes)
	}
	if !isTextContent(contentType) {
		return nil, fmt.Errorf("fetch %s non-text response: %s", rawURL, contentType)
	}

	// Determine the encoding from Content-Type header and body content
	encoding, name, _ := charset.DetermineEncoding(bodyBytes, contentType)
	if strings.EqualFold(name, "utf-8") {
		return bodyBytes, nil
	}

	// Convert to UTF-8 if necessary
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, encoding.NewDecoder().Reader(bytes.NewReader(bodyBytes))); err != nil {
		return nil, fmt.Errorf("failed to read converted UTF-8 body: %w", err)
	}
	return buf.Bytes(), nil
}

func isTextContent(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.HasPrefix(mediaType, "text/") || slices.Contains(textTypes, mediaType)
}

// rateLimitKey builds the cache key that blocks a host. Memcache keys may not
// contain spaces or control characters, which a parsed host never does.
func rateLimitKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return "rate_limited:" + u.Host
}
