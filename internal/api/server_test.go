package api

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"

	"github.com/mpazaryna/tides-lab-sub004/internal/config"
	"github.com/mpazaryna/tides-lab-sub004/internal/metrics"
	"github.com/mpazaryna/tides-lab-sub004/internal/resolver"
	"github.com/mpazaryna/tides-lab-sub004/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeRecords struct {
	ids map[string][]string
}

func (f *fakeRecords) Get(_ context.Context, userID, recordID string) (*store.Record, error) {
	return &store.Record{ID: recordID, UserID: userID, Data: []byte(`{}`)}, nil
}

func (f *fakeRecords) List(_ context.Context, userID string) ([]string, error) {
	return f.ids[userID], nil
}

func newTestServer(cfg *config.Config) *Server {
	if cfg == nil {
		cfg = &config.Config{Debug: true}
	}
	records := &fakeRecords{ids: map[string][]string{
		"user-1": {"evening", "morning"},
	}}
	return New(cfg, resolver.New(resolver.Options{}), records, metrics.New())
}

func post(t *testing.T, s *Server, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestCoordinator_ExplicitService(t *testing.T) {
	s := newTestServer(nil)

	w := post(t, s, "/coordinator", `{"service":"reports","tides_id":"user-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if !gjson.Get(body, "success").Bool() {
		t.Fatalf("expected success, got %s", body)
	}
	if got := gjson.Get(body, "data.resolution.service").String(); got != "reports" {
		t.Errorf("expected reports, got %q", got)
	}
	if got := gjson.Get(body, "data.resolution.confidence").Int(); got != 100 {
		t.Errorf("explicit override should report confidence 100, got %d", got)
	}
	if got := gjson.Get(body, "data.records").Array(); len(got) != 2 {
		t.Errorf("expected 2 records, got %v", got)
	}
}

func TestCoordinator_UnknownExplicitService(t *testing.T) {
	s := newTestServer(nil)

	w := post(t, s, "/coordinator", `{"service":"timetravel"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if gjson.Get(w.Body.String(), "success").Bool() {
		t.Error("expected success=false")
	}
}

func TestCoordinator_ResolvesFromContent(t *testing.T) {
	s := newTestServer(nil)

	w := post(t, s, "/coordinator", `{"question":"How productive was I today?","tides_id":"user-1"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	body := w.Body.String()
	if got := gjson.Get(body, "data.resolution.service").String(); got != "insights" {
		t.Errorf("expected insights, got %q", got)
	}
	if got := gjson.Get(body, "data.resolution.confidence").Int(); got != 95 {
		t.Errorf("expected confidence 95, got %d", got)
	}
	if got := gjson.Get(body, "data.records_analyzed").Int(); got != 2 {
		t.Errorf("expected 2 records analyzed, got %d", got)
	}
}

func TestCoordinator_DefersToChat(t *testing.T) {
	s := newTestServer(nil)

	w := post(t, s, "/coordinator", `{"question":"hello"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if got := gjson.Get(body, "data.service").String(); got != "chat" {
		t.Errorf("expected chat, got %q", got)
	}
	if !gjson.Get(body, "data.suggestion.service").Exists() {
		t.Error("clarification should carry a suggestion")
	}
	if got := gjson.Get(body, "data.suggestion.alternatives").Array(); len(got) != 2 {
		t.Errorf("expected 2 alternatives, got %d", len(got))
	}
	if got := gjson.Get(body, "data.resolution.confidence").Int(); got != 40 {
		t.Errorf("deferred resolution keeps the candidate confidence, got %d", got)
	}
}

func TestCoordinator_EmptyBody(t *testing.T) {
	s := newTestServer(nil)

	w := post(t, s, "/coordinator", `{}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if got := gjson.Get(body, "data.service").String(); got != "chat" {
		t.Errorf("empty body should defer to chat, got %q", got)
	}
	if got := gjson.Get(body, "data.resolution.confidence").Int(); got != 0 {
		t.Errorf("expected confidence 0, got %d", got)
	}
}

func TestCoordinator_Auth(t *testing.T) {
	s := newTestServer(&config.Config{Debug: true, APIKeys: []string{"good-key"}})

	w := post(t, s, "/coordinator", `{"report_type":"weekly"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a key, got %d", w.Code)
	}

	w = post(t, s, "/coordinator", `{"api_key":"good-key","report_type":"weekly"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with a body key, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/coordinator", bytes.NewBufferString(`{"report_type":"weekly"}`))
	req.Header.Set("Authorization", "Bearer good-key")
	w2 := httptest.NewRecorder()
	s.Handler().ServeHTTP(w2, req)
	if w2.Code != http.StatusOK {
		t.Fatalf("expected 200 with a bearer key, got %d", w2.Code)
	}

	w = post(t, s, "/coordinator", `{"api_key":"bad-key","report_type":"weekly"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with a bad key, got %d", w.Code)
	}
}

func TestChatEndpoint(t *testing.T) {
	s := newTestServer(nil)

	w := post(t, s, "/chat", `{"message":"hi there"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if gjson.Get(body, "data.response").String() == "" {
		t.Error("chat should always answer")
	}

	// A clearly routable message includes a service hint.
	w = post(t, s, "/chat", `{"message":"export my weekly report"}`)
	if got := gjson.Get(w.Body.String(), "data.hint.service").String(); got != "reports" {
		t.Errorf("expected a reports hint, got %q", got)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", w.Code)
	}

	// Drive one request so the counters exist, then scrape.
	post(t, s, "/coordinator", `{"report_type":"weekly"}`)
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", w.Code)
	}
	if !bytes.Contains(w.Body.Bytes(), []byte("agent_resolutions_total")) {
		t.Error("metrics output should include resolution counters")
	}
}
