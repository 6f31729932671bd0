package dnspod

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/database64128/dnspod-ddns/internal/httphelper"
	"github.com/database64128/dnspod-ddns/provider"
)

const testToken = "123456,0123456789abcdef"

type recordedRequest struct {
	path      string
	form      url.Values
	userAgent string
}

type testServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, action string, form url.Values)) *testServer {
	t.Helper()
	ts := &testServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method %q", r.Method)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		ts.mu.Lock()
		ts.requests = append(ts.requests, recordedRequest{
			path:      r.URL.Path,
			form:      r.PostForm,
			userAgent: r.Header.Get("User-Agent"),
		})
		ts.mu.Unlock()
		handler(w, strings.TrimPrefix(r.URL.Path, "/"), r.PostForm)
	}))
	t.Cleanup(ts.Close)
	return ts
}

func (ts *testServer) lastRequest(t *testing.T) recordedRequest {
	t.Helper()
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if len(ts.requests) == 0 {
		t.Fatal("no request received")
	}
	return ts.requests[len(ts.requests)-1]
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestListRecords(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, action string, form url.Values) {
		io.WriteString(w, `{
			"status": {"code": "1", "message": "Action completed successful", "created_at": "2026-10-14 10:00:00"},
			"domain": {"id": 1234, "name": "example.com", "punycode": "example.com", "grade": "DP_Free", "owner": "someone", "ttl": 600},
			"info": {"sub_domains": "2", "record_total": "1", "records_num": "1"},
			"records": [
				{"id": "16894439", "name": "home", "line": "默认", "line_id": "0", "type": "A", "ttl": "600",
				 "value": "198.51.100.1", "weight": null, "mx": "0", "enabled": "1", "status": "enable",
				 "monitor_status": "", "remark": "", "updated_on": "2026-10-01 08:30:00"}
			]
		}`)
	})

	c := NewClient(ts.Client(), testToken, ts.URL, nil)
	set, err := c.ListRecords(context.Background(), "example.com", "A", "home")
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}

	req := ts.lastRequest(t)
	if req.path != "/Record.List" {
		t.Errorf("path = %q", req.path)
	}
	if req.userAgent != httphelper.UserAgent {
		t.Errorf("User-Agent = %q, want %q", req.userAgent, httphelper.UserAgent)
	}
	for key, want := range map[string]string{
		"login_token": testToken,
		"format":      "json",
		"domain":      "example.com",
		"record_type": "A",
		"sub_domain":  "home",
	} {
		if got := req.form.Get(key); got != want {
			t.Errorf("form[%q] = %q, want %q", key, got, want)
		}
	}

	if set.Domain.ID != "1234" {
		t.Errorf("Domain.ID = %q, want %q", set.Domain.ID, "1234")
	}
	if len(set.Records) != 1 {
		t.Fatalf("got %d records, want 1", len(set.Records))
	}
	r := set.Records[0]
	if r.ID != "16894439" || r.Name != "home" || r.Line != DefaultLine || r.Value != "198.51.100.1" {
		t.Errorf("unexpected record %+v", r)
	}
	if !r.IsEnabled() {
		t.Error("record should be enabled")
	}
	if got := r.TTLSeconds(); got != 600 {
		t.Errorf("TTLSeconds() = %d, want 600", got)
	}
	if want := time.Date(2026, 10, 1, 8, 30, 0, 0, cst); !r.UpdatedAt().Equal(want) {
		t.Errorf("UpdatedAt() = %v, want %v", r.UpdatedAt(), want)
	}
}

func TestListRecordsEmptyCode(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, action string, form url.Values) {
		writeJSON(w, map[string]any{"status": map[string]string{"code": "10", "message": "No records"}})
	})

	c := NewClient(ts.Client(), testToken, ts.URL, nil)
	set, err := c.ListRecords(context.Background(), "example.com", "A", "home")
	if err != nil {
		t.Fatalf("ListRecords failed: %v", err)
	}
	if len(set.Records) != 0 {
		t.Errorf("got %d records, want 0", len(set.Records))
	}
}

func TestListRecordsStatusError(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, action string, form url.Values) {
		writeJSON(w, map[string]any{"status": map[string]string{"code": "-1", "message": "Login failed"}})
	})

	c := NewClient(ts.Client(), testToken, ts.URL, nil)
	_, err := c.ListRecords(context.Background(), "example.com", "A", "home")

	var statusErr *provider.StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("ListRecords error = %v, want *provider.StatusError", err)
	}
	if statusErr.Code != "-1" || statusErr.Message != "Login failed" {
		t.Errorf("unexpected status error %+v", statusErr)
	}
}

func TestListRecordsHTTPError(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, action string, form url.Values) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "upstream unavailable")
	})

	c := NewClient(ts.Client(), testToken, ts.URL, nil)
	_, err := c.ListRecords(context.Background(), "example.com", "A", "home")
	if !errors.Is(err, provider.ErrTransport) {
		t.Fatalf("ListRecords error = %v, want %v", err, provider.ErrTransport)
	}
	if msg := err.Error(); !strings.Contains(msg, "502") || !strings.Contains(msg, "upstream unavailable") {
		t.Errorf("error message %q lacks status code or body", msg)
	}
}

func TestListRecordsMalformedBody(t *testing.T) {
	for _, body := range []string{`not json`, `{"records": []}`} {
		ts := newTestServer(t, func(w http.ResponseWriter, action string, form url.Values) {
			io.WriteString(w, body)
		})

		c := NewClient(ts.Client(), testToken, ts.URL, nil)
		_, err := c.ListRecords(context.Background(), "example.com", "A", "home")
		if !errors.Is(err, provider.ErrProtocol) {
			t.Errorf("ListRecords(%q) error = %v, want %v", body, err, provider.ErrProtocol)
		}
	}
}

func TestListRecordsTimeout(t *testing.T) {
	release := make(chan struct{})
	ts := newTestServer(t, func(w http.ResponseWriter, action string, form url.Values) {
		<-release
	})
	defer close(release)

	c := NewClient(ts.Client(), testToken, ts.URL, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.ListRecords(ctx, "example.com", "A", "home")
	if !errors.Is(err, provider.ErrTimeout) {
		t.Fatalf("ListRecords error = %v, want %v", err, provider.ErrTimeout)
	}
}

func TestListRecordsCanceled(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, action string, form url.Values) {
		t.Error("request should not reach the server")
	})

	c := NewClient(ts.Client(), testToken, ts.URL, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListRecords(ctx, "example.com", "A", "home")
	if !errors.Is(err, provider.ErrCanceled) {
		t.Fatalf("ListRecords error = %v, want %v", err, provider.ErrCanceled)
	}
}

func TestUpdateRecord(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, action string, form url.Values) {
		io.WriteString(w, `{"status": {"code": "1", "message": "ok"}, "record": {"id": 16894439, "name": "home", "value": "203.0.113.7", "status": "enable"}}`)
	})

	c := NewClient(ts.Client(), testToken, ts.URL, nil)
	record, err := c.UpdateRecord(context.Background(), &UpdateRecordRequest{
		Domain:     "example.com",
		RecordID:   "16894439",
		SubDomain:  "home",
		RecordLine: "电信",
		RecordType: "A",
		Value:      "203.0.113.7",
		TTL:        600,
	})
	if err != nil {
		t.Fatalf("UpdateRecord failed: %v", err)
	}
	if record.ID != "16894439" || record.Value != "203.0.113.7" {
		t.Errorf("unexpected record %+v", record)
	}

	req := ts.lastRequest(t)
	if req.path != "/Record.Modify" {
		t.Errorf("path = %q", req.path)
	}
	for key, want := range map[string]string{
		"record_id":   "16894439",
		"sub_domain":  "home",
		"record_line": "电信",
		"record_type": "A",
		"value":       "203.0.113.7",
		"ttl":         "600",
	} {
		if got := req.form.Get(key); got != want {
			t.Errorf("form[%q] = %q, want %q", key, got, want)
		}
	}
}

func TestUpdateRecordRejected(t *testing.T) {
	for _, code := range []string{"10", "8"} {
		ts := newTestServer(t, func(w http.ResponseWriter, action string, form url.Values) {
			writeJSON(w, map[string]any{"status": map[string]string{"code": code, "message": "rejected"}})
		})

		c := NewClient(ts.Client(), testToken, ts.URL, nil)
		_, err := c.UpdateRecord(context.Background(), &UpdateRecordRequest{Domain: "example.com", RecordID: "1", SubDomain: "home", RecordType: "A", Value: "203.0.113.7"})
		if !errors.Is(err, provider.ErrAPIResponseFailure) {
			t.Errorf("code %s: UpdateRecord error = %v, want %v", code, err, provider.ErrAPIResponseFailure)
		}
	}
}

func TestCreateRecord(t *testing.T) {
	ts := newTestServer(t, func(w http.ResponseWriter, action string, form url.Values) {
		if form.Get("sub_domain") == "taken" {
			writeJSON(w, map[string]any{"status": map[string]string{"code": "104", "message": "Record already exists"}})
			return
		}
		io.WriteString(w, `{"status": {"code": "1", "message": "ok"}, "record": {"id": "42", "name": "home", "status": "enable"}}`)
	})

	c := NewClient(ts.Client(), testToken, ts.URL, nil)
	if !c.CreateRecord(context.Background(), &CreateRecordRequest{Domain: "example.com", SubDomain: "home", RecordType: "A", Value: "203.0.113.7", TTL: 600}) {
		t.Error("CreateRecord returned false, want true")
	}

	req := ts.lastRequest(t)
	if req.path != "/Record.Create" {
		t.Errorf("path = %q", req.path)
	}
	if got := req.form.Get("record_line"); got != DefaultLine {
		t.Errorf("record_line = %q, want %q", got, DefaultLine)
	}

	if c.CreateRecord(context.Background(), &CreateRecordRequest{Domain: "example.com", SubDomain: "taken", RecordType: "A", Value: "203.0.113.7"}) {
		t.Error("CreateRecord returned true for a rejected record")
	}
}

func TestFlexString(t *testing.T) {
	var v struct {
		A FlexString `json:"a"`
		B FlexString `json:"b"`
		C FlexString `json:"c"`
	}
	if err := json.Unmarshal([]byte(`{"a": "x", "b": 600, "c": null}`), &v); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if v.A != "x" || v.B != "600" || v.C != "" {
		t.Errorf("unexpected values %+v", v)
	}
	if err := json.Unmarshal([]byte(`{"a": true}`), &v); err == nil {
		t.Error("Unmarshal accepted a boolean")
	}
}
