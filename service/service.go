// Package service provides the DDNS reconciliation engine.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/database64128/dnspod-ddns/internal/broadcaster"
	"github.com/database64128/dnspod-ddns/internal/scheduler"
	"github.com/database64128/dnspod-ddns/producer/ipapi"
	"github.com/database64128/dnspod-ddns/provider"
	"github.com/database64128/dnspod-ddns/provider/dnspod"
	"github.com/database64128/dnspod-ddns/tslog"
	"golang.org/x/sync/singleflight"
)

// recordType is the only record type the engine manages.
const recordType = "A"

// Discoverer finds the current public IPv4 address.
//
// [*ipapi.Fallback] implements Discoverer.
type Discoverer interface {
	// Discover returns the public IPv4 address, or false if it cannot be determined.
	Discover(ctx context.Context) (netip.Addr, bool)
}

// RecordClient is the part of the DNS provider API the engine uses.
//
// [*dnspod.Client] implements RecordClient.
type RecordClient interface {
	ListRecords(ctx context.Context, domain, recordType, subDomain string) (dnspod.RecordSet, error)
	UpdateRecord(ctx context.Context, req *dnspod.UpdateRecordRequest) (dnspod.ModifiedRecord, error)
	CreateRecord(ctx context.Context, req *dnspod.CreateRecordRequest) bool
}

var (
	_ Discoverer   = (*ipapi.Fallback)(nil)
	_ RecordClient = (*dnspod.Client)(nil)
)

// NewEngine creates an [Engine] that discovers the IP address through the configured
// IP address APIs and manages the record through the DNSPod API.
//
// If client is nil, [http.DefaultClient] is used.
func (c Config) NewEngine(client *http.Client, logger *tslog.Logger) (*Engine, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = tslog.Discard()
	}
	discoverer := ipapi.NewTextFallback(client, c.IPURLs, logger.WithAttrs(slog.String("component", "ipapi")))
	recordClient := dnspod.NewClient(client, c.Token, "", logger.WithAttrs(slog.String("component", "dnspod")))
	return New(c, discoverer, recordClient, logger)
}

// passState is a state of the reconciliation state machine.
type passState uint

const (
	passStateDiscoverIP passState = iota
	passStateCompareLastKnown
	passStateFetchRecords
	passStateCreateIfMissing
	passStateMatchRecord
	passStateCompareValue
	passStateUpdateIfChanged
)

// pass holds what one reconciliation pass has learned so far.
type pass struct {
	state   passState
	ip      netip.Addr
	records []dnspod.Record
	record  dnspod.Record
	created bool
}

// Engine keeps one DNS record in sync with the public IP address.
//
// Passes run either through [Engine.Update] or on the auto-update timer.
// Concurrent passes are collapsed into one. A pass runs under the engine's own
// context, so it outlives the caller that started it and ends on [Engine.Close].
type Engine struct {
	config     Config
	discoverer Discoverer
	client     RecordClient
	logger     *tslog.Logger
	scheduler  *scheduler.Scheduler
	results    *broadcaster.Broadcaster[Result]
	group      singleflight.Group

	mu          sync.Mutex
	lastKnownIP netip.Addr

	// passCtx is canceled by Close.
	passCtx    context.Context
	cancelPass context.CancelFunc

	// autoMu serializes timer starts with Close.
	autoMu    sync.Mutex
	closed    atomic.Bool
	closeOnce sync.Once
}

// New validates cfg and creates a new [Engine]. If cfg is invalid, the returned
// error is a [*ConfigError] listing every violated rule.
//
// If cfg enables auto-update, the timer is started before New returns.
func New(cfg Config, discoverer Discoverer, client RecordClient, logger *tslog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = tslog.Discard()
	}

	e := &Engine{
		config:     cfg.clone(),
		discoverer: discoverer,
		client:     client,
		logger:     logger.WithAttrs(slog.String("record", cfg.FQDN())),
		results:    broadcaster.New[Result](),
	}
	e.passCtx, e.cancelPass = context.WithCancel(context.Background())
	e.scheduler = scheduler.New(e.config.Interval(), e.scheduledUpdate, e.logger)

	if e.config.EnableAutoUpdate {
		e.StartAutoUpdate()
	}
	return e, nil
}

// Config returns a copy of the engine's configuration.
func (e *Engine) Config() Config {
	return e.config.clone()
}

// LastKnownIP returns the IP address confirmed by the last successful pass,
// or the zero value if no pass has succeeded yet.
func (e *Engine) LastKnownIP() netip.Addr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastKnownIP
}

func (e *Engine) setLastKnownIP(ip netip.Addr) {
	e.mu.Lock()
	e.lastKnownIP = ip
	e.mu.Unlock()
}

// Update runs one reconciliation pass and returns its result.
//
// If a pass is already in progress, Update waits for it and returns its result
// instead of starting another one. If ctx is done first, Update returns a failed
// result wrapping [provider.ErrCanceled] or [provider.ErrTimeout]; the pass itself
// keeps running for the other callers.
func (e *Engine) Update(ctx context.Context) Result {
	if e.closed.Load() {
		return e.fail(netip.Addr{}, ErrEngineClosed)
	}
	ch := e.group.DoChan("update", func() (any, error) {
		return e.safePass(e.passCtx), nil
	})
	select {
	case res := <-ch:
		if res.Shared {
			e.logger.Debug("Joined in-flight pass")
		}
		return res.Val.(Result)
	case <-ctx.Done():
		return e.fail(netip.Addr{}, provider.ClassifyRequestError(ctx, ctx.Err()))
	}
}

// safePass runs a pass and turns a panic into a failed result.
func (e *Engine) safePass(ctx context.Context) (r Result) {
	defer func() {
		if v := recover(); v != nil {
			r = e.fail(netip.Addr{}, fmt.Errorf("pass panicked: %v", v))
		}
	}()
	return e.runPass(ctx)
}

// runPass drives the reconciliation state machine to a result.
func (e *Engine) runPass(ctx context.Context) Result {
	e.logger.Info("Starting pass")

	p := pass{state: passStateDiscoverIP}

	for {
		switch p.state {
		case passStateDiscoverIP:
			ip, ok := e.discoverer.Discover(ctx)
			if !ok {
				return e.fail(netip.Addr{}, ErrDiscoveryExhausted)
			}
			e.logger.Info("Got public IP address", tslog.Addr("ip", ip))
			p.ip = ip
			p.state = passStateCompareLastKnown

		case passStateCompareLastKnown:
			if p.ip == e.LastKnownIP() {
				e.logger.Info("IP address unchanged since last pass, skipping", tslog.Addr("ip", p.ip))
				return e.succeed(&p, false, "IP address unchanged")
			}
			p.state = passStateFetchRecords

		case passStateFetchRecords:
			set, err := e.client.ListRecords(ctx, e.config.Domain, recordType, e.config.SubDomain)
			if err != nil {
				return e.fail(p.ip, err)
			}
			e.logger.Info("Fetched records", tslog.Int("count", len(set.Records)))

			p.records = set.Records
			switch {
			case len(p.records) > 0:
				p.state = passStateMatchRecord
			case e.config.AutoCreateRecord && !p.created:
				p.state = passStateCreateIfMissing
			default:
				return e.fail(p.ip, e.noMatchingRecordError())
			}

		case passStateCreateIfMissing:
			e.logger.Info("No record found, creating one", tslog.Addr("ip", p.ip))
			if !e.client.CreateRecord(ctx, &dnspod.CreateRecordRequest{
				Domain:     e.config.Domain,
				SubDomain:  e.config.SubDomain,
				RecordType: recordType,
				RecordLine: e.config.RecordLine,
				Value:      p.ip.String(),
				TTL:        e.config.TTL,
			}) {
				return e.fail(p.ip, fmt.Errorf("%w for %s", ErrAutoCreateFailed, e.config.FQDN()))
			}
			p.created = true
			p.state = passStateFetchRecords

		case passStateMatchRecord:
			record, ok := e.matchRecord(p.records)
			if !ok {
				return e.fail(p.ip, e.noMatchingRecordError())
			}
			e.logger.Info("Matched record",
				slog.String("record_id", record.ID.String()),
				slog.String("value", record.Value),
				slog.String("line", record.Line),
			)
			p.record = record
			p.state = passStateCompareValue

		case passStateCompareValue:
			if recordHoldsIP(&p.record, p.ip) {
				e.logger.Info("Record already holds the current IP address", tslog.Addr("ip", p.ip))
				e.setLastKnownIP(p.ip)
				return e.succeed(&p, false, "DNS record already up to date")
			}
			p.state = passStateUpdateIfChanged

		case passStateUpdateIfChanged:
			if _, err := e.client.UpdateRecord(ctx, &dnspod.UpdateRecordRequest{
				Domain:     e.config.Domain,
				RecordID:   p.record.ID.String(),
				SubDomain:  e.config.SubDomain,
				RecordLine: p.record.Line,
				RecordType: recordType,
				Value:      p.ip.String(),
				TTL:        e.config.TTL,
			}); err != nil {
				return e.fail(p.ip, err)
			}
			e.setLastKnownIP(p.ip)
			e.logger.Info("Updated record",
				slog.String("record_id", p.record.ID.String()),
				slog.String("old", p.record.Value),
				tslog.Addr("new", p.ip),
			)
			return e.succeed(&p, true, fmt.Sprintf("updated %s: %s -> %s", e.config.FQDN(), p.record.Value, p.ip))

		default:
			panic("unreachable")
		}
	}
}

func (e *Engine) noMatchingRecordError() error {
	return fmt.Errorf("%w for sub-domain %q of %s", ErrNoMatchingRecord, e.config.SubDomain, e.config.Domain)
}

func (e *Engine) succeed(p *pass, changed bool, msg string) Result {
	r := Result{
		Success:  true,
		Message:  msg,
		IP:       p.ip,
		Changed:  changed,
		RecordID: p.record.ID.String(),
		Time:     time.Now(),
	}
	if changed {
		r.OldIP = p.record.Value
	}
	return r
}

func (e *Engine) fail(ip netip.Addr, err error) Result {
	e.logger.Error("Pass failed", tslog.Err(err))
	return Result{
		Message: err.Error(),
		IP:      ip,
		Time:    time.Now(),
		Err:     err,
	}
}

// matchRecord returns the first record with the configured host label, type A,
// and a line accepted by [Engine.lineMatches].
func (e *Engine) matchRecord(records []dnspod.Record) (dnspod.Record, bool) {
	for _, r := range records {
		if r.Name == e.config.SubDomain && r.Type == recordType && e.lineMatches(r.Line) {
			return r, true
		}
	}
	return dnspod.Record{}, false
}

// lineMatches reports whether a record on line is eligible.
// An empty or default configured line accepts any line.
func (e *Engine) lineMatches(line string) bool {
	switch e.config.RecordLine {
	case "", dnspod.DefaultLine:
		return true
	default:
		return line == e.config.RecordLine
	}
}

func recordHoldsIP(r *dnspod.Record, ip netip.Addr) bool {
	if addr, err := netip.ParseAddr(r.Value); err == nil {
		return addr.Unmap() == ip
	}
	return r.Value == ip.String()
}

// MatchedRecord fetches the records and returns the one the engine manages,
// without deciding on or performing an update.
func (e *Engine) MatchedRecord(ctx context.Context) (dnspod.Record, bool) {
	set, err := e.client.ListRecords(ctx, e.config.Domain, recordType, e.config.SubDomain)
	if err != nil {
		e.logger.Error("Failed to fetch records", tslog.Err(err))
		return dnspod.Record{}, false
	}
	return e.matchRecord(set.Records)
}

// Results returns a channel that receives the result of every scheduled pass.
// Only the latest unreceived result is kept. The channel is closed by [Engine.Close].
func (e *Engine) Results() <-chan Result {
	return e.results.Subscribe()
}

func (e *Engine) scheduledUpdate(ctx context.Context) error {
	r := e.Update(ctx)
	if ctx.Err() != nil {
		// Stopped while waiting.
		return nil
	}
	e.results.Broadcast(r)
	return r.Err
}

// StartAutoUpdate starts the auto-update timer. The first pass runs immediately.
// Starting a running timer does nothing.
func (e *Engine) StartAutoUpdate() {
	e.autoMu.Lock()
	defer e.autoMu.Unlock()
	if e.closed.Load() {
		return
	}
	if e.scheduler.Start() {
		e.logger.Info("Started auto-update", slog.Duration("interval", e.scheduler.Interval()))
	}
}

// StopAutoUpdate stops the auto-update timer and waits for an in-flight scheduled pass.
// Stopping a stopped timer does nothing.
func (e *Engine) StopAutoUpdate() {
	if e.scheduler.Stop() {
		e.logger.Info("Stopped auto-update")
	}
}

// AutoUpdateRunning returns whether the auto-update timer is running.
func (e *Engine) AutoUpdateRunning() bool {
	return e.scheduler.Running()
}

// Close stops the auto-update timer, waits for it, and releases idle connections
// of the provider client. It is safe to call Close more than once, and on a nil engine.
func (e *Engine) Close() error {
	if e == nil {
		return nil
	}
	e.closeOnce.Do(func() {
		e.autoMu.Lock()
		e.closed.Store(true)
		if e.scheduler != nil {
			e.scheduler.Stop()
		}
		e.autoMu.Unlock()
		e.cancelPass()
		e.results.Close()
		if c, ok := e.client.(interface{ CloseIdleConnections() }); ok {
			c.CloseIdleConnections()
		}
		e.logger.Info("Closed engine")
	})
	return nil
}
