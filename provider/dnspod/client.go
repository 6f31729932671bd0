// Package dnspod implements a client for the DNSPod record API.
package dnspod

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/database64128/dnspod-ddns/internal/httphelper"
	"github.com/database64128/dnspod-ddns/provider"
	"github.com/database64128/dnspod-ddns/tslog"
)

const (
	// DefaultBaseURL is the base URL of the DNSPod API.
	DefaultBaseURL = "https://dnsapi.cn"

	// RequestTimeout bounds every API call, including reading the response body.
	RequestTimeout = 30 * time.Second

	maxResponseSize = 1 << 20
)

// Client is a DNSPod API client for managing DNS records.
type Client struct {
	client  *http.Client
	token   string
	baseURL string
	logger  *tslog.Logger
}

// NewClient creates a new [Client] with the given HTTP client and API token.
// The token has the form "ID,Token".
//
//   - If client is nil, [http.DefaultClient] is used.
//   - If baseURL is empty, it defaults to [DefaultBaseURL].
//   - If logger is nil, log messages are discarded.
func NewClient(client *http.Client, token, baseURL string, logger *tslog.Logger) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = tslog.Discard()
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		client:  client,
		token:   token,
		baseURL: baseURL,
		logger:  logger,
	}
}

// CloseIdleConnections closes idle connections of the underlying HTTP client.
func (c *Client) CloseIdleConnections() {
	c.client.CloseIdleConnections()
}

// ListRecords lists the records of domain, filtered by recordType and subDomain when they are not empty.
//
// The API reports an empty listing with status code [StatusCodeEmpty].
// ListRecords translates that into an empty [RecordSet] and a nil error.
func (c *Client) ListRecords(ctx context.Context, domain, recordType, subDomain string) (RecordSet, error) {
	values := url.Values{}
	values.Set("domain", domain)
	urlValuesSetStringIfNotEmpty(values, "record_type", recordType)
	urlValuesSetStringIfNotEmpty(values, "sub_domain", subDomain)

	set, status, err := clientDo[RecordSet](ctx, c, "Record.List", values)
	if err != nil {
		return RecordSet{}, fmt.Errorf("failed to list records: %w", err)
	}

	switch status.Code {
	case StatusCodeOK:
		return set, nil
	case StatusCodeEmpty:
		return RecordSet{}, nil
	default:
		return RecordSet{}, fmt.Errorf("failed to list records: %w", &provider.StatusError{Code: status.Code.String(), Message: status.Message})
	}
}

// UpdateRecordRequest contains the parameters of Record.Modify.
type UpdateRecordRequest struct {
	Domain     string
	RecordID   string
	SubDomain  string
	RecordLine string
	RecordType string
	Value      string
	TTL        int
}

func (r *UpdateRecordRequest) values() url.Values {
	values := url.Values{}
	values.Set("domain", r.Domain)
	values.Set("record_id", r.RecordID)
	values.Set("sub_domain", r.SubDomain)
	values.Set("record_line", lineOrDefault(r.RecordLine))
	values.Set("record_type", r.RecordType)
	values.Set("value", r.Value)
	urlValuesSetIntIfNotZero(values, "ttl", r.TTL)
	return values
}

// UpdateRecord updates an existing record. Success requires status code [StatusCodeOK].
func (c *Client) UpdateRecord(ctx context.Context, req *UpdateRecordRequest) (ModifiedRecord, error) {
	resp, status, err := clientDo[ModifyResponse](ctx, c, "Record.Modify", req.values())
	if err != nil {
		return ModifiedRecord{}, fmt.Errorf("failed to update record %s: %w", req.RecordID, err)
	}
	if status.Code != StatusCodeOK {
		return ModifiedRecord{}, fmt.Errorf("failed to update record %s: %w", req.RecordID, &provider.StatusError{Code: status.Code.String(), Message: status.Message})
	}
	return resp.Record, nil
}

// CreateRecordRequest contains the parameters of Record.Create.
type CreateRecordRequest struct {
	Domain     string
	SubDomain  string
	RecordType string
	RecordLine string
	Value      string
	TTL        int
}

func (r *CreateRecordRequest) values() url.Values {
	values := url.Values{}
	values.Set("domain", r.Domain)
	values.Set("sub_domain", r.SubDomain)
	values.Set("record_type", r.RecordType)
	values.Set("record_line", lineOrDefault(r.RecordLine))
	values.Set("value", r.Value)
	urlValuesSetIntIfNotZero(values, "ttl", r.TTL)
	return values
}

// CreateRecord creates a record and reports whether the API accepted it.
// Failures are logged, not returned: creating a missing record is a best-effort recovery.
func (c *Client) CreateRecord(ctx context.Context, req *CreateRecordRequest) bool {
	record, err := c.createRecord(ctx, req)
	if err != nil {
		c.logger.Warn("Failed to create record",
			slog.String("domain", req.Domain),
			slog.String("sub_domain", req.SubDomain),
			tslog.Err(err),
		)
		return false
	}
	c.logger.Info("Created record",
		slog.String("domain", req.Domain),
		slog.String("sub_domain", req.SubDomain),
		slog.String("record_id", record.ID.String()),
	)
	return true
}

func (c *Client) createRecord(ctx context.Context, req *CreateRecordRequest) (ModifiedRecord, error) {
	resp, status, err := clientDo[ModifyResponse](ctx, c, "Record.Create", req.values())
	if err != nil {
		return ModifiedRecord{}, err
	}
	if status.Code != StatusCodeOK {
		return ModifiedRecord{}, &provider.StatusError{Code: status.Code.String(), Message: status.Message}
	}
	return resp.Record, nil
}

func lineOrDefault(line string) string {
	if line == "" {
		return DefaultLine
	}
	return line
}

func urlValuesSetStringIfNotEmpty(values url.Values, key, value string) {
	if value != "" {
		values.Set(key, value)
	}
}

func urlValuesSetIntIfNotZero(values url.Values, key string, value int) {
	if value != 0 {
		values.Set(key, strconv.Itoa(value))
	}
}

// clientDo sends a form request for action and decodes the response's status and payload.
// Interpreting the status code is up to the caller.
func clientDo[R any](ctx context.Context, c *Client, action string, values url.Values) (result R, status Status, err error) {
	ctx, cancel := context.WithTimeout(ctx, RequestTimeout)
	defer cancel()

	values.Set("login_token", c.token)
	values.Set("format", "json")
	values.Set("lang", "en")
	values.Set("error_on_empty", "no")

	req, err := httphelper.NewFormRequest(ctx, http.MethodPost, c.baseURL+"/"+action, values)
	if err != nil {
		return result, status, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return result, status, fmt.Errorf("failed to send request: %w", provider.ClassifyRequestError(ctx, err))
	}
	defer resp.Body.Close()

	bodyBytes, err := httphelper.ReadBody(resp.Body, maxResponseSize)
	if err != nil {
		if errors.Is(err, httphelper.ErrBodyTooLarge) {
			return result, status, fmt.Errorf("%w: %w", provider.ErrProtocol, err)
		}
		return result, status, fmt.Errorf("failed to read response: %w", provider.ClassifyRequestError(ctx, err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return result, status, fmt.Errorf("%w: unexpected status code %d: %q", provider.ErrTransport, resp.StatusCode, bodyBytes)
	}

	var response Response
	if err = json.Unmarshal(bodyBytes, &response); err != nil {
		return result, status, fmt.Errorf("%w: failed to unmarshal response: %w: %q", provider.ErrProtocol, err, bodyBytes)
	}
	if response.Status.Code == "" {
		return result, status, fmt.Errorf("%w: response has no status code: %q", provider.ErrProtocol, bodyBytes)
	}

	if response.Status.Code == StatusCodeOK {
		if err = json.Unmarshal(bodyBytes, &result); err != nil {
			return result, response.Status, fmt.Errorf("%w: failed to unmarshal response payload: %w: %q", provider.ErrProtocol, err, bodyBytes)
		}
	}

	return result, response.Status, nil
}
