// Package fetch scrapes the readable body text of article pages.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const (
	// MaxContentChars caps extracted text before it is handed to the
	// summariser.
	MaxContentChars = 10000
	minContentChars = 100
	maxBodyBytes    = 5 << 20
	defaultRetries  = 2
)

// ErrNoContent means the page was fetched but had no extractable text.
var ErrNoContent = errors.New("no extractable content")

// ContentFetcher fetches full article text via HTTP + readability extraction.
// A domain that answers with an HTTP error is not contacted again by the
// same fetcher.
type ContentFetcher struct {
	client  *http.Client
	retries int
	backoff time.Duration

	mu            sync.Mutex
	failedDomains map[string]struct{}
}

// NewContentFetcher creates a new content fetcher.
func NewContentFetcher(timeout time.Duration) *ContentFetcher {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &ContentFetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		retries:       defaultRetries,
		backoff:       time.Second,
		failedDomains: make(map[string]struct{}),
	}
}

// Fetch returns the readable text of articleURL, truncated to
// MaxContentChars.
func (f *ContentFetcher) Fetch(ctx context.Context, articleURL string) (string, error) {
	u, err := url.Parse(articleURL)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("invalid article URL %q", articleURL)
	}
	domain := strings.ToLower(u.Host)

	if f.domainFailed(domain) {
		return "", fmt.Errorf("skipping %s: earlier HTTP error from %s", articleURL, domain)
	}

	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(f.backoff * time.Duration(1<<(attempt-1))):
			}
		}

		text, err := f.fetchOnce(ctx, u)
		if err == nil {
			return text, nil
		}
		lastErr = err

		var he *httpError
		if errors.As(err, &he) {
			f.markFailed(domain)
			log.Printf("HTTP error for %s, skipping remaining from %s", articleURL, domain)
			return "", err
		}
		if errors.Is(err, ErrNoContent) || ctx.Err() != nil {
			return "", err
		}
		log.Printf("Attempt %d failed to fetch %s: %v", attempt+1, articleURL, err)
	}
	return "", lastErr
}

func (f *ContentFetcher) fetchOnce(ctx context.Context, u *url.URL) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "topicwatch/1.0 (news monitor)")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", &httpError{code: resp.StatusCode}
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxBodyBytes), u)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoContent, err)
	}

	text := strings.Join(strings.Fields(article.TextContent), " ")
	if len(text) <= minContentChars {
		return "", ErrNoContent
	}
	return Truncate(text, MaxContentChars), nil
}

// Truncate cuts s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func (f *ContentFetcher) domainFailed(domain string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, failed := f.failedDomains[domain]
	return failed
}

func (f *ContentFetcher) markFailed(domain string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failedDomains[domain] = struct{}{}
}

type httpError struct {
	code int
}

func (e *httpError) Error() string {
	return fmt.Sprintf("HTTP %d %s", e.code, http.StatusText(e.code))
}
