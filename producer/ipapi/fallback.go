package ipapi

import (
	"context"
	"log/slog"
	"net/netip"

	"github.com/database64128/dnspod-ddns/producer"
	"github.com/database64128/dnspod-ddns/tslog"
)

// Endpoint names a source for logging.
type Endpoint struct {
	Name   string
	Source producer.Source
}

// Fallback queries an ordered list of sources and returns the first valid IPv4 address.
// The order is a priority list: later sources are only contacted when every earlier one failed.
type Fallback struct {
	endpoints []Endpoint
	logger    *tslog.Logger
}

// NewFallback creates a new [Fallback] over the given endpoints.
func NewFallback(endpoints []Endpoint, logger *tslog.Logger) *Fallback {
	return &Fallback{endpoints: endpoints, logger: logger}
}

// Len returns the number of endpoints.
func (f *Fallback) Len() int {
	return len(f.endpoints)
}

// Discover returns the public IPv4 address reported by the first endpoint that answers with one.
// It returns false when every endpoint failed or ctx is done; the individual failures are logged.
func (f *Fallback) Discover(ctx context.Context) (netip.Addr, bool) {
	for _, ep := range f.endpoints {
		if ctx.Err() != nil {
			f.logger.Warn("Stopped IP discovery", tslog.Err(ctx.Err()))
			return netip.Addr{}, false
		}

		f.logger.Debug("Querying IP address API", slog.String("endpoint", ep.Name))

		addr, err := ep.Source.Snapshot(ctx)
		if err != nil {
			f.logger.Warn("Failed to get IP address from endpoint",
				slog.String("endpoint", ep.Name),
				tslog.Err(err),
			)
			continue
		}
		if !addr.Is4() {
			f.logger.Warn("Endpoint returned a non-IPv4 address",
				slog.String("endpoint", ep.Name),
				tslog.Addr("addr", addr),
			)
			continue
		}

		f.logger.Info("Discovered public IP address",
			slog.String("endpoint", ep.Name),
			tslog.Addr("ip", addr),
		)
		return addr, true
	}

	f.logger.Error("All IP address APIs failed", tslog.Int("endpoints", len(f.endpoints)))
	return netip.Addr{}, false
}
