package ipapi

import (
	"context"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/database64128/dnspod-ddns/internal/httphelper"
	"github.com/database64128/dnspod-ddns/producer"
)

const (
	// LookupTimeout bounds a single request to an IP address API.
	LookupTimeout = 10 * time.Second

	maxBodySize = 64 << 10
)

// TextIPv4Source obtains the public IPv4 address from a text-based IP address API.
//
// TextIPv4Source implements [producer.Source].
type TextIPv4Source struct {
	client *http.Client
	url    string
}

// NewTextIPv4Source creates a new [TextIPv4Source].
//
//   - If client is nil, [http.DefaultClient] is used.
//   - If url is empty, it defaults to "https://api.ipify.org".
func NewTextIPv4Source(client *http.Client, url string) *TextIPv4Source {
	if client == nil {
		client = http.DefaultClient
	}
	if url == "" {
		url = "https://api.ipify.org"
	}
	return &TextIPv4Source{client: client, url: url}
}

var _ producer.Source = (*TextIPv4Source)(nil)

// URL returns the URL of the IP address API.
func (s *TextIPv4Source) URL() string {
	return s.url
}

// Snapshot returns the current public IPv4 address.
//
// Snapshot implements [producer.Source.Snapshot].
func (s *TextIPv4Source) Snapshot(ctx context.Context) (netip.Addr, error) {
	ctx, cancel := context.WithTimeout(ctx, LookupTimeout)
	defer cancel()

	addr, err := s.get(ctx)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to get IP address: %w", err)
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("not an IPv4 address: %s", addr)
	}
	return addr, nil
}

// get retrieves the public IP address from the API.
func (s *TextIPv4Source) get(ctx context.Context) (netip.Addr, error) {
	req, err := httphelper.NewGetRequest(ctx, s.url)
	if err != nil {
		return netip.Addr{}, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to send request: %w", err)
	}

	body, err := httphelper.ReadBody(resp.Body, maxBodySize)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return netip.Addr{}, fmt.Errorf("unexpected status code %d: %q", resp.StatusCode, body)
	}
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to read response body: %w", err)
	}

	text := strings.TrimSpace(string(body))
	addr, err := netip.ParseAddr(text)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("failed to parse IP address from %q: %w", text, err)
	}
	return addr.Unmap(), nil
}
