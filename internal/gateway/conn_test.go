package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/perfreview/internal/apilog"
	"github.com/hitoshi/perfreview/internal/logger"
)

// --- テスト用フェイク ---

type fakeSession struct {
	mu      sync.Mutex
	token   string
	hasUser bool
	clears  int
}

func (s *fakeSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *fakeSession) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *fakeSession) ClearAuth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.hasUser = false
	s.clears++
}

type fakeMetrics struct {
	calls  atomic.Int32
	purges atomic.Int32
}

func (m *fakeMetrics) RecordAPICall(string, int, time.Duration) { m.calls.Add(1) }
func (m *fakeMetrics) RecordAuthPurge()                         { m.purges.Add(1) }

type item struct {
	ID string `json:"id"`
}

func newTestClient(t *testing.T, srv *httptest.Server) (*Client, *apilog.Buffer, *fakeMetrics) {
	t.Helper()
	logs := apilog.NewBuffer(100)
	m := &fakeMetrics{}
	c, err := NewClient(Config{BaseURL: srv.URL + "/api/v1"}, logs, m, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c, logs, m
}

// --- テスト ---

func TestNewClient_RejectsInvalidBaseURL(t *testing.T) {
	for _, u := range []string{"", "ftp://example.com", "://bad"} {
		if _, err := NewClient(Config{BaseURL: u}, nil, nil, nil); err == nil {
			t.Errorf("NewClient(%q) should fail", u)
		}
	}
}

func TestNewClient_NormalizesTrailingSlash(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://localhost:8000/api/v1"}, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.BaseURL() != "http://localhost:8000/api/v1/" {
		t.Errorf("BaseURL = %q", c.BaseURL())
	}
}

func TestConn_Do_ResolvesPathAndDecodes(t *testing.T) {
	var gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"g1"}`))
	}))
	defer srv.Close()

	c, logs, _ := newTestClient(t, srv)
	conn := c.Bind(&fakeSession{})

	got, ok := Get[item](context.Background(), conn, "/goals/g1?limit=5")
	if !ok {
		t.Fatal("Get should succeed")
	}
	if got.ID != "g1" {
		t.Errorf("ID = %q, want g1", got.ID)
	}
	if gotPath != "/api/v1/goals/g1" {
		t.Errorf("path = %q, want /api/v1/goals/g1", gotPath)
	}
	if gotQuery != "limit=5" {
		t.Errorf("query = %q, want limit=5", gotQuery)
	}
	// リクエストとレスポンスの2件が記録される
	if logs.Len() != 2 {
		t.Errorf("log entries = %d, want 2", logs.Len())
	}
}

// TestConn_Do_SessionTokenWins はセッションとミラーが食い違う場合にセッションのトークンが使われることを検証する。
func TestConn_Do_SessionTokenWins(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"id":"x"}`))
	}))
	defer srv.Close()

	c, _, _ := newTestClient(t, srv)
	sess := &fakeSession{token: "T1"}
	conn := c.Bind(sess)
	conn.SetToken("T2")

	if _, ok := Get[item](context.Background(), conn, "goals/x"); !ok {
		t.Fatal("Get should succeed")
	}
	if gotAuth != "Bearer T1" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer T1")
	}
	if conn.Token() != "T1" {
		t.Errorf("mirror = %q, want T1", conn.Token())
	}
}

// TestConn_Do_MirrorWrittenBackToSession はセッションが空でミラーだけが持つトークンが書き戻されることを検証する。
func TestConn_Do_MirrorWrittenBackToSession(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"id":"x"}`))
	}))
	defer srv.Close()

	c, _, _ := newTestClient(t, srv)
	sess := &fakeSession{}
	conn := c.Bind(sess)
	conn.SetToken("fresh")

	Get[item](context.Background(), conn, "goals/x")

	if gotAuth != "Bearer fresh" {
		t.Errorf("Authorization = %q, want Bearer fresh", gotAuth)
	}
	if sess.Token() != "fresh" {
		t.Errorf("session token = %q, want fresh", sess.Token())
	}
}

func TestConn_Do_NoTokenNoAuthorizationHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, _, _ := newTestClient(t, srv)
	Get[item](context.Background(), c.Bind(nil), "goals/x")
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want empty", gotAuth)
	}
}

func TestConn_Do_ForwardsRequestID(t *testing.T) {
	var gotID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = r.Header.Get(logger.RequestIDHeader)
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c, _, _ := newTestClient(t, srv)
	ctx := logger.WithRequestID(context.Background(), "req-42")
	Get[item](ctx, c.Bind(nil), "goals/x")
	if gotID != "req-42" {
		t.Errorf("%s = %q, want req-42", logger.RequestIDHeader, gotID)
	}
}

func TestConn_Do_UnauthorizedPurgesSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, _, m := newTestClient(t, srv)
	sess := &fakeSession{token: "T1", hasUser: true}
	conn := c.Bind(sess)

	if _, ok := Get[item](context.Background(), conn, "goals/x"); ok {
		t.Fatal("401 should be absent")
	}
	if sess.Token() != "" || sess.hasUser {
		t.Errorf("session should be purged, token=%q hasUser=%v", sess.Token(), sess.hasUser)
	}
	if conn.Token() != "" {
		t.Errorf("mirror = %q, want empty", conn.Token())
	}
	if m.purges.Load() != 1 {
		t.Errorf("purges = %d, want 1", m.purges.Load())
	}
}

func TestConn_Do_UnauthorizedSuppressed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, _, m := newTestClient(t, srv)
	sess := &fakeSession{token: "T1", hasUser: true}
	conn := c.Bind(sess)

	Get[item](context.Background(), conn, "notifications/unread-count", SuppressAuthClear())

	if sess.Token() != "T1" || !sess.hasUser {
		t.Error("suppressed call must not touch the session")
	}
	if m.purges.Load() != 0 {
		t.Errorf("purges = %d, want 0", m.purges.Load())
	}
}

func TestConn_Do_UnauthorizedOnAuthEndpointKeepsSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, _, _ := newTestClient(t, srv)
	sess := &fakeSession{token: "T1", hasUser: true}
	conn := c.Bind(sess)

	for _, path := range []string{"auth/login", "/auth/me"} {
		Post[item](context.Background(), conn, path, map[string]string{"email": "a@x.com"})
	}
	if sess.Token() != "T1" || !sess.hasUser || sess.clears != 0 {
		t.Error("auth endpoint 401 must leave the session unchanged")
	}
}

// TestConn_Do_ReissuesTemporaryRedirect は307を同じメソッド・ボディ・資格情報で再送することを検証する。
func TestConn_Do_ReissuesTemporaryRedirect(t *testing.T) {
	var hits atomic.Int32
	var gotBody, gotAuth, gotMethod string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/goals", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Redirect(w, r, "/api/v1/goals/", http.StatusTemporaryRedirect)
	})
	mux.HandleFunc("/api/v1/goals/", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		gotAuth = r.Header.Get("Authorization")
		gotMethod = r.Method
		w.Write([]byte(`{"id":"new"}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c, _, _ := newTestClient(t, srv)
	conn := c.Bind(&fakeSession{token: "tok"})

	got, ok := Post[item](context.Background(), conn, "goals", map[string]string{"title": "t"})
	if !ok {
		t.Fatal("redirected POST should succeed")
	}
	if got.ID != "new" {
		t.Errorf("ID = %q, want new", got.ID)
	}
	if hits.Load() != 2 {
		t.Errorf("hits = %d, want 2", hits.Load())
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %s, want POST", gotMethod)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q, want Bearer tok", gotAuth)
	}
	var body map[string]string
	if err := json.Unmarshal([]byte(gotBody), &body); err != nil || body["title"] != "t" {
		t.Errorf("body = %q, want title=t", gotBody)
	}
}

func TestConn_Do_RefusesCrossOriginRedirect(t *testing.T) {
	var otherHits atomic.Int32
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		otherHits.Add(1)
		w.Write([]byte(`{"id":"leak"}`))
	}))
	defer other.Close()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, other.URL+"/steal", http.StatusPermanentRedirect)
	}))
	defer srv.Close()

	c, logs, _ := newTestClient(t, srv)
	conn := c.Bind(&fakeSession{token: "tok"})

	if _, ok := Post[item](context.Background(), conn, "goals", map[string]string{}); ok {
		t.Error("cross-origin redirect should be absent")
	}
	if otherHits.Load() != 0 {
		t.Error("token must not be sent to another origin")
	}
	if logs.Stats().Errors == 0 {
		t.Error("refused redirect should be logged as error")
	}
}

func TestConn_Do_FailuresAreAbsent(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusInternalServerError) }},
		{"not found", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNotFound) }},
		{"malformed json", func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{not json`)) }},
		{"no content", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) }},
		{"empty body", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c, _, _ := newTestClient(t, srv)
			sess := &fakeSession{token: "T"}
			if _, ok := Get[item](context.Background(), c.Bind(sess), "goals/x"); ok {
				t.Error("expected absent result")
			}
			if sess.Token() != "T" {
				t.Error("non-401 failures must not touch the session")
			}
		})
	}
}

func TestConn_Do_NetworkFailureIsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c, logs, _ := newTestClient(t, srv)
	srv.Close()

	if _, ok := Get[item](context.Background(), c.Bind(nil), "goals"); ok {
		t.Error("closed server should be absent")
	}
	if logs.Stats().Errors != 1 {
		t.Errorf("errors = %d, want 1", logs.Stats().Errors)
	}
}

func TestConn_Do_TimeoutIsAbsent(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c, err := NewClient(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if _, ok := Get[item](context.Background(), c.Bind(nil), "slow"); ok {
		t.Error("timed out call should be absent")
	}
}

func TestDelete_NoContentIsSuccess(t *testing.T) {
	var method string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c, _, _ := newTestClient(t, srv)
	if !Delete(context.Background(), c.Bind(nil), "steps/s1") {
		t.Error("Delete with 204 should succeed")
	}
	if method != http.MethodDelete {
		t.Errorf("method = %s, want DELETE", method)
	}
}

func TestConn_HandleUnauthorized_NotReentrant(t *testing.T) {
	c, err := NewClient(Config{BaseURL: "http://localhost:8000/api/v1/"}, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	sess := &fakeSession{token: "T"}
	conn := c.Bind(sess)

	conn.clearing.Store(true)
	conn.handleUnauthorized("goals")
	if sess.clears != 0 {
		t.Error("clear must be skipped while another clear is in progress")
	}

	conn.clearing.Store(false)
	conn.handleUnauthorized("goals")
	if sess.clears != 1 {
		t.Errorf("clears = %d, want 1", sess.clears)
	}
	if conn.clearing.Load() {
		t.Error("guard should be released after clearing")
	}
}
