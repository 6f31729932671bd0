package service

import (
	"errors"
	"net/netip"
	"time"
)

// Failure kinds reported through [Result.Err] in addition to those of the provider package.
var (
	ErrDiscoveryExhausted = errors.New("cannot determine public IP")
	ErrNoMatchingRecord   = errors.New("no matching A record")
	ErrAutoCreateFailed   = errors.New("auto-create failed")
	ErrEngineClosed       = errors.New("engine is closed")
)

// Result is the outcome of one reconciliation pass.
type Result struct {
	// Success is true if the record holds the current IP address when the pass ends.
	Success bool

	// Message is a human-readable description of the outcome.
	Message string

	// IP is the discovered public IP address. It is the zero value if discovery failed.
	IP netip.Addr

	// Changed is true if the pass updated the record.
	Changed bool

	// RecordID is the ID of the matched record, if the pass got that far.
	RecordID string

	// OldIP is the value the record held before an update.
	OldIP string

	// Time is when the pass finished.
	Time time.Time

	// Err is the reason of a failed pass, nil on success.
	Err error
}
