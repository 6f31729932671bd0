// Package ipapi discovers the public IPv4 address through plain-text IP echo services.
package ipapi

import (
	"net/http"

	"github.com/database64128/dnspod-ddns/tslog"
)

// DefaultURLs is the built-in priority list of IP echo services.
var DefaultURLs = []string{
	"https://ipv4.icanhazip.com",
	"https://api.ipify.org",
	"https://ipv4.ident.me",
	"https://ip.3322.net",
	"https://myip.ipip.net",
}

// NewTextFallback creates a [Fallback] of [TextIPv4Source]s for urls.
// If urls is empty, [DefaultURLs] is used.
func NewTextFallback(client *http.Client, urls []string, logger *tslog.Logger) *Fallback {
	if len(urls) == 0 {
		urls = DefaultURLs
	}
	endpoints := make([]Endpoint, len(urls))
	for i, u := range urls {
		src := NewTextIPv4Source(client, u)
		endpoints[i] = Endpoint{Name: src.URL(), Source: src}
	}
	return NewFallback(endpoints, logger)
}
