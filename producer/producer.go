// Package producer provides the interface implemented by public IPv4 address sources.
package producer

import (
	"context"
	"net/netip"
)

// Source represents an observable, ever-changing public IPv4 address.
type Source interface {
	// Snapshot returns the current IPv4 address.
	// The address MUST NOT be an IPv4-mapped IPv6 address.
	Snapshot(ctx context.Context) (netip.Addr, error)
}

// SourceFunc adapts a function to [Source].
type SourceFunc func(ctx context.Context) (netip.Addr, error)

// Snapshot implements [Source.Snapshot].
func (f SourceFunc) Snapshot(ctx context.Context) (netip.Addr, error) {
	return f(ctx)
}
