// Package httphelper contains small helpers shared by the HTTP clients.
package httphelper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Version is the version reported in [UserAgent].
const Version = "1.2.0"

// UserAgent is the stable client identifier attached to every outgoing request.
const UserAgent = "dnspod-ddns/" + Version + " (github.com/database64128/dnspod-ddns)"

// ErrBodyTooLarge is returned by [ReadBody] when the body exceeds the limit.
var ErrBodyTooLarge = errors.New("response body too large")

// NewFormRequest creates a new HTTP request with the given
// method, url, and values encoded as form. Content-Type is
// set to application/x-www-form-urlencoded.
func NewFormRequest(ctx context.Context, method, url string, values url.Values) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, strings.NewReader(values.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", UserAgent)
	return req, nil
}

// NewGetRequest creates a new GET request with the client identifier set
// and caching disabled.
func NewGetRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Cache-Control", "no-cache")
	return req, nil
}

// ReadBody reads at most limit bytes from r.
// It returns [ErrBodyTooLarge] along with the truncated body if r has more.
func ReadBody(r io.Reader, limit int64) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return b, err
	}
	if int64(len(b)) > limit {
		return b[:limit], ErrBodyTooLarge
	}
	return b, nil
}
