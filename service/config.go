package service

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/database64128/dnspod-ddns/provider/dnspod"
	"golang.org/x/net/idna"
)

const (
	// DefaultTTL is the record TTL used when none is configured.
	DefaultTTL = 600

	// DefaultUpdateInterval is the auto-update interval in minutes used when none is configured.
	DefaultUpdateInterval = 5

	// MaxTTL is the largest TTL the provider accepts, one week.
	MaxTTL = 604800
)

// Errors reported by [Config.Validate], one per violated rule.
var (
	ErrTokenEmpty       = errors.New("token must not be empty")
	ErrTokenFormat      = errors.New(`token must be in the form "ID,Token"`)
	ErrDomainEmpty      = errors.New("domain must not be empty")
	ErrDomainInvalid    = errors.New("domain is not a valid domain name")
	ErrSubDomainEmpty   = errors.New("sub-domain must not be empty")
	ErrTTLOutOfRange    = fmt.Errorf("TTL must be between 1 and %d", MaxTTL)
	ErrIntervalTooSmall = errors.New("update interval must be greater than 0")
	ErrIPURLInvalid     = errors.New("IP address API URL must be an absolute http or https URL")
)

// Config is the configuration of an [Engine]. The engine keeps its own copy;
// changing a Config after passing it to [New] has no effect on the engine.
type Config struct {
	// Token is the DNSPod API token in the form "ID,Token".
	Token string `json:"token" yaml:"token"`

	// Domain is the zone that holds the record, e.g. "example.com".
	Domain string `json:"domain" yaml:"domain"`

	// SubDomain is the host label of the record, e.g. "home" or "@".
	SubDomain string `json:"sub_domain" yaml:"sub_domain"`

	// RecordLine is the route selector of the record.
	// The default line "默认" matches records on any line.
	RecordLine string `json:"record_line" yaml:"record_line"`

	// TTL is the record TTL in seconds, between 1 and 604800.
	TTL int `json:"ttl" yaml:"ttl"`

	// UpdateInterval is the auto-update interval in minutes.
	UpdateInterval int `json:"update_interval" yaml:"update_interval"`

	// EnableAutoUpdate starts the auto-update timer when the engine is created.
	EnableAutoUpdate bool `json:"enable_auto_update" yaml:"enable_auto_update"`

	// AutoCreateRecord creates the record when the listing has none.
	AutoCreateRecord bool `json:"auto_create_record" yaml:"auto_create_record"`

	// IPURLs is the priority list of IP address APIs.
	// If empty, the built-in list is used.
	IPURLs []string `json:"ip_urls,omitempty" yaml:"ip_urls,omitempty"`
}

// DefaultConfig returns a [Config] with the optional fields set to their defaults.
func DefaultConfig() Config {
	return Config{
		RecordLine:     dnspod.DefaultLine,
		TTL:            DefaultTTL,
		UpdateInterval: DefaultUpdateInterval,
	}
}

// Interval returns the auto-update interval.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.UpdateInterval) * time.Minute
}

// FQDN returns the fully qualified name of the managed record.
func (c *Config) FQDN() string {
	if c.SubDomain == "@" {
		return c.Domain
	}
	return c.SubDomain + "." + c.Domain
}

func (c Config) clone() Config {
	c.IPURLs = slices.Clone(c.IPURLs)
	return c
}

// ConfigError lists every rule a [Config] violates.
type ConfigError struct {
	Errs []error
}

// Error implements [error].
func (e *ConfigError) Error() string {
	var sb strings.Builder
	sb.WriteString("invalid configuration: ")
	for i, err := range e.Errs {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Unwrap returns the individual rule violations.
func (e *ConfigError) Unwrap() []error {
	return e.Errs
}

// Validate checks every rule and returns a [*ConfigError] listing all violations,
// or nil if the configuration is valid.
func (c *Config) Validate() error {
	var errs []error

	token := strings.TrimSpace(c.Token)
	if token == "" {
		errs = append(errs, ErrTokenEmpty)
	} else if id, secret, ok := strings.Cut(token, ","); !ok || strings.TrimSpace(id) == "" || strings.TrimSpace(secret) == "" {
		errs = append(errs, ErrTokenFormat)
	}

	domain := strings.TrimSpace(c.Domain)
	if domain == "" {
		errs = append(errs, ErrDomainEmpty)
	} else if _, err := idna.Lookup.ToASCII(domain); err != nil {
		errs = append(errs, fmt.Errorf("%w: %q: %w", ErrDomainInvalid, c.Domain, err))
	}

	if strings.TrimSpace(c.SubDomain) == "" {
		errs = append(errs, ErrSubDomainEmpty)
	}

	if c.TTL < 1 || c.TTL > MaxTTL {
		errs = append(errs, fmt.Errorf("%w, got %d", ErrTTLOutOfRange, c.TTL))
	}

	if c.UpdateInterval < 1 {
		errs = append(errs, fmt.Errorf("%w, got %d", ErrIntervalTooSmall, c.UpdateInterval))
	}

	for _, rawURL := range c.IPURLs {
		u, err := url.Parse(rawURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("%w: %q", ErrIPURLInvalid, rawURL))
		}
	}

	if len(errs) > 0 {
		return &ConfigError{Errs: errs}
	}
	return nil
}
