// Package transport moves bytes for a single remote object, classifying
// failures so callers can tell "remote object absent or denied" from
// everything else.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"
)

// ErrNotFound marks a transport failure caused by the remote object
// being absent or denied, as opposed to a network or I/O problem.
var ErrNotFound = errors.New("remote object not found")

var commonUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/16.5.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:109.0) Gecko/20100101 Firefox/115.0",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/113.0.0.0 Safari/537.36",
}

// RandomUserAgent returns one of a small set of realistic browser user
// agents.
func RandomUserAgent() string {
	return commonUserAgents[rand.Intn(len(commonUserAgents))]
}

// DefaultClient builds an http.Client with a timeout sized for archive
// objects.
func DefaultClient() *http.Client {
	return &http.Client{Timeout: 120 * time.Second}
}

// HTTP fetches remote objects over plain HTTP(S).
type HTTP struct {
	Client    *http.Client
	UserAgent func() string
}

// New returns an HTTP transport with default client and user-agent
// rotation.
func New() *HTTP {
	return &HTTP{Client: DefaultClient(), UserAgent: RandomUserAgent}
}

// Fetch streams the object at url into dst and returns the byte count.
// HTTP 403/404/410 map to ErrNotFound; any other failure (bad status,
// network error, write error) is returned as a plain transport error.
func (t *HTTP) Fetch(ctx context.Context, url string, dst io.Writer) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", t.UserAgent())
	req.Header.Set("Accept", "application/octet-stream,*/*")

	resp, err := t.Client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http do request for %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden, http.StatusNotFound, http.StatusGone:
		return 0, fmt.Errorf("fetch %s: %s: %w", url, resp.Status, ErrNotFound)
	default:
		// Read a little of the body for context on the error.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("bad status '%s' fetching %s: %s", resp.Status, url, string(snippet))
	}

	n, err := io.Copy(dst, resp.Body)
	if err != nil {
		return n, fmt.Errorf("read body from %s: %w", url, err)
	}
	return n, nil
}
