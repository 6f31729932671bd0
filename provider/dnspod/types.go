package dnspod

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Status codes returned by the API that the client gives special meaning to.
const (
	StatusCodeOK    = "1"
	StatusCodeEmpty = "10"
)

// DefaultLine is the route selector that stands for "default line".
const DefaultLine = "默认"

// updatedOnLayout is the layout of [Record.UpdatedOn], in China Standard Time.
const updatedOnLayout = "2006-01-02 15:04:05"

var cst = time.FixedZone("CST", 8*60*60)

// FlexString is a string that also accepts JSON numbers.
// The API is inconsistent about quoting ids, TTLs, and flags.
type FlexString string

// UnmarshalJSON implements [json.Unmarshaler].
func (s *FlexString) UnmarshalJSON(b []byte) error {
	if bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = FlexString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = FlexString(n)
	return nil
}

// String returns s as a plain string.
func (s FlexString) String() string {
	return string(s)
}

// Status is the status object included in every response.
type Status struct {
	Code      FlexString `json:"code"`
	Message   string     `json:"message"`
	CreatedAt string     `json:"created_at,omitempty"`
}

// Response is the part of every response the client inspects before decoding the payload.
type Response struct {
	Status Status `json:"status"`
}

// RecordSet is the payload of Record.List.
type RecordSet struct {
	Domain  DomainInfo `json:"domain"`
	Info    ListInfo   `json:"info"`
	Records []Record   `json:"records"`
}

// DomainInfo describes the domain a record listing belongs to.
type DomainInfo struct {
	ID       FlexString `json:"id"`
	Name     string     `json:"name"`
	Punycode string     `json:"punycode"`
	Grade    string     `json:"grade"`
	Owner    string     `json:"owner"`
	TTL      FlexString `json:"ttl"`
}

// ListInfo contains counters about a record listing.
type ListInfo struct {
	SubDomains  FlexString `json:"sub_domains"`
	RecordTotal FlexString `json:"record_total"`
	RecordsNum  FlexString `json:"records_num"`
}

// Record represents a DNS record of a domain.
type Record struct {
	ID            FlexString `json:"id"`
	Name          string     `json:"name"`
	Line          string     `json:"line"`
	LineID        FlexString `json:"line_id"`
	Type          string     `json:"type"`
	TTL           FlexString `json:"ttl"`
	Value         string     `json:"value"`
	Weight        FlexString `json:"weight"`
	MX            FlexString `json:"mx"`
	Enabled       FlexString `json:"enabled"`
	Status        string     `json:"status"`
	MonitorStatus string     `json:"monitor_status"`
	Remark        string     `json:"remark"`
	UpdatedOn     string     `json:"updated_on"`
}

// IsEnabled returns whether the record is enabled.
func (r *Record) IsEnabled() bool {
	return r.Enabled == "1" || r.Status == "enable"
}

// TTLSeconds returns the record's TTL, or 0 if the API did not report a valid one.
func (r *Record) TTLSeconds() int {
	ttl, err := strconv.Atoi(string(r.TTL))
	if err != nil {
		return 0
	}
	return ttl
}

// UpdatedAt parses [Record.UpdatedOn]. It returns the zero time if the field is absent or malformed.
func (r *Record) UpdatedAt() time.Time {
	t, err := time.ParseInLocation(updatedOnLayout, r.UpdatedOn, cst)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ModifiedRecord is the record echoed back by Record.Modify and Record.Create.
type ModifiedRecord struct {
	ID     FlexString `json:"id"`
	Name   string     `json:"name"`
	Value  string     `json:"value"`
	Status string     `json:"status"`
}

// ModifyResponse is the payload of Record.Modify and Record.Create.
type ModifyResponse struct {
	Record ModifiedRecord `json:"record"`
}
