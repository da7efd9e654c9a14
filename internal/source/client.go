// Package source fetches documents from public text mirrors with per-attempt
// timeouts, bounded retries and an optional content-addressed page cache.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/FocuswithJustin/biblesync/core/cas"
	bserrors "github.com/FocuswithJustin/biblesync/core/errors"
	"github.com/FocuswithJustin/biblesync/internal/logging"
)

// Defaults for Options.
const (
	DefaultTimeout     = 20 * time.Second
	DefaultRetries     = 5
	DefaultBackoff     = 350 * time.Millisecond
	DefaultConcurrency = 5
	DefaultUserAgent   = "biblesync/1.0"
)

// maxBodySize caps a single fetched document.
const maxBodySize = 32 << 20

// HTTPError represents a non-2xx HTTP response.
type HTTPError struct {
	StatusCode int
	Status     string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP error: %s", e.Status)
}

// IsNotFound returns true if this is a 404 error.
func (e *HTTPError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// Options configure a Client.
type Options struct {
	// Timeout bounds each attempt.
	Timeout time.Duration

	// Retries is the total number of attempts.
	Retries int

	// Backoff is multiplied by the attempt number between attempts.
	Backoff time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// Cache, when set, serves repeat fetches without touching the network.
	Cache *cas.Store

	// Check rejects a 2xx body that is not a real document, such as a
	// bot-verification page. A rejected body is retried.
	Check func(body []byte) error

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// Client downloads source documents.
type Client struct {
	httpClient *http.Client
	opts       Options
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client, filling zero options with defaults.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Retries <= 0 {
		opts.Retries = DefaultRetries
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Transport: logging.NewTransport(nil)}
	}
	return &Client{httpClient: client, opts: opts, sleep: sleepContext}
}

// Document is one fetched page.
type Document struct {
	URL      string `json:"url"`
	Body     []byte `json:"-"`
	BLAKE3   string `json:"blake3"`
	Cached   bool   `json:"cached"`
	Attempts int    `json:"attempts"`
}

// Text returns the body as a string.
func (d *Document) Text() string {
	return string(d.Body)
}

// Get fetches url, retrying failures with linear backoff. A 404 is returned
// at once. The returned error is a *errors.FetchError.
func (c *Client) Get(ctx context.Context, url string) (*Document, error) {
	if url == "" {
		return nil, &bserrors.FetchError{URL: url, Err: fmt.Errorf("empty URL")}
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, &bserrors.FetchError{URL: url, Err: fmt.Errorf("unsupported URL scheme")}
	}

	if c.opts.Cache != nil {
		if body, ref, err := c.opts.Cache.GetRef(url); err == nil {
			logging.DebugContext(ctx, "source cache hit", "url", url, "blake3", ref.BLAKE3)
			return &Document{URL: url, Body: body, BLAKE3: ref.BLAKE3, Cached: true}, nil
		} else if !errors.Is(err, cas.ErrRefNotFound) {
			logging.WarnContext(ctx, "source cache unreadable", "url", url, "error", err)
		}
	}

	var lastErr error
	attempt := 0
	for attempt < c.opts.Retries {
		attempt++
		body, err := c.fetchOnce(ctx, url)
		if err == nil {
			doc := &Document{URL: url, Body: body, BLAKE3: cas.Hash(body), Attempts: attempt}
			c.store(ctx, doc)
			return doc, nil
		}
		lastErr = err

		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.IsNotFound() {
			break
		}
		if ctx.Err() != nil || attempt >= c.opts.Retries {
			break
		}
		logging.DebugContext(ctx, "source fetch retry", "url", url, "attempt", attempt, "error", err)
		if err := c.sleep(ctx, c.opts.Backoff*time.Duration(attempt)); err != nil {
			lastErr = err
			break
		}
	}
	return nil, &bserrors.FetchError{URL: url, Attempts: attempt, Err: lastErr}
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if c.opts.Check != nil {
		if err := c.opts.Check(data); err != nil {
			return nil, err
		}
	}
	return data, nil
}

func (c *Client) store(ctx context.Context, doc *Document) {
	if c.opts.Cache == nil {
		return
	}
	if _, err := c.opts.Cache.PutRef(doc.URL, doc.Body); err != nil {
		logging.WarnContext(ctx, "source cache write failed", "url", doc.URL, "error", err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// RejectBotPages is a Check that refuses interstitial pages some mirrors
// serve in place of content.
func RejectBotPages(body []byte) error {
	head := body
	if len(head) > 2048 {
		head = head[:2048]
	}
	s := string(head)
	for _, marker := range []string{"Just a moment...", "Attention Required!", "Target URL returned error 403"} {
		if strings.Contains(s, marker) {
			return fmt.Errorf("source returned a bot-verification page")
		}
	}
	return nil
}
