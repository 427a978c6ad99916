package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/perfreview/internal/apilog"
	"github.com/hitoshi/perfreview/internal/gateway"
	"github.com/hitoshi/perfreview/internal/middleware"
	"github.com/hitoshi/perfreview/internal/model"
	"github.com/hitoshi/perfreview/internal/realtime"
	"github.com/hitoshi/perfreview/internal/security"
	"github.com/hitoshi/perfreview/internal/session"
)

const testPushKey = "push-secret"

// fakeBackend はバックエンドAPIを模したHTTPサーバー。受け取ったリクエストを記録する。
type fakeBackend struct {
	mux *http.ServeMux
	srv *httptest.Server

	mu    sync.Mutex
	calls []string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{mux: http.NewServeMux()}
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls = append(b.calls, r.Method+" "+strings.TrimPrefix(r.URL.Path, "/api/v1/"))
		b.mu.Unlock()
		b.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) handle(pattern string, status int, body any) {
	b.mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	})
}

func (b *fakeBackend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func (b *fakeBackend) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = nil
}

func (b *fakeBackend) client(t *testing.T) *gateway.Client {
	t.Helper()
	c, err := gateway.NewClient(gateway.Config{BaseURL: b.srv.URL + "/api/v1/", Timeout: 5 * time.Second},
		apilog.NewBuffer(100), nil, nil)
	if err != nil {
		t.Fatalf("gateway.NewClient() error = %v", err)
	}
	return c
}

type stubHealth struct {
	err error
}

func (s stubHealth) Ping(context.Context) error { return s.err }

func newTestRouter(t *testing.T, b *fakeBackend, health HealthChecker) http.Handler {
	t.Helper()
	api := b.client(t)

	view, err := NewRenderer(nil)
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfigPerMinute(6000, 6000), nil)
	t.Cleanup(limiter.Stop)

	sessions := session.NewManager(session.NewMemoryStore(), session.ManagerConfig{Secret: "test-secret"}, nil)
	san := security.NewSanitizer()
	hub := realtime.NewHub(nil, nil)

	return NewRouter(&RouterDeps{
		API:         api,
		Sessions:    sessions,
		Renderer:    view,
		Sanitizer:   san,
		RateLimiter: limiter,
		CSRF:        middleware.CSRFConfig{ExemptPrefixes: []string{PushPathPrefix}},
		Hub:         realtime.NewEndpoint(hub, sessions, api, realtime.EndpointConfig{}, nil),
		Push:        realtime.NewPushHandler(hub, testPushKey, san, nil),
		Health:      health,
		Logs:        api.Logs(),
	})
}

// browser はCookieを保持しながらルーターにリクエストを送る。
type browser struct {
	t       *testing.T
	handler http.Handler
	cookies map[string]*http.Cookie
}

func newBrowser(t *testing.T, h http.Handler) *browser {
	return &browser{t: t, handler: h, cookies: map[string]*http.Cookie{}}
}

func (br *browser) do(req *http.Request) *httptest.ResponseRecorder {
	for _, c := range br.cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	br.handler.ServeHTTP(w, req)
	for _, c := range w.Result().Cookies() {
		if c.MaxAge < 0 {
			delete(br.cookies, c.Name)
			continue
		}
		br.cookies[c.Name] = c
	}
	return w
}

func (br *browser) get(path string) *httptest.ResponseRecorder {
	return br.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (br *browser) csrfToken() string {
	if _, ok := br.cookies["csrf_token"]; !ok {
		br.get("/auth/status")
	}
	if c, ok := br.cookies["csrf_token"]; ok {
		return c.Value
	}
	return ""
}

// postForm はCSRFトークン付きでフォームを送信する。
func (br *browser) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	if form == nil {
		form = url.Values{}
	}
	form.Set("csrf_token", br.csrfToken())
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return br.do(req)
}

// postJSON はAJAXとしてJSONを送信する。
func (br *browser) postJSON(path string, body any) *httptest.ResponseRecorder {
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(data)))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("X-CSRF-Token", br.csrfToken())
	return br.do(req)
}

func (br *browser) login(email string) {
	br.t.Helper()
	w := br.postForm("/login", url.Values{"email": {email}, "password": {"secret"}})
	if w.Code != http.StatusFound {
		br.t.Fatalf("POST /login status = %d, want %d; body = %s", w.Code, http.StatusFound, w.Body.String())
	}
}

var (
	testEmployee = model.User{ID: "u-emp", Email: "emp@example.com", FullName: "Employee", IsActive: true}
	testManager  = model.User{ID: "u-mgr", Email: "mgr@example.com", FullName: "Manager", IsManager: true, IsActive: true}
)

// handleLogin はメールアドレスに応じたユーザーでログインを成功させる。
func (b *fakeBackend) handleLogin() {
	b.mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req model.LoginRequest
		json.NewDecoder(r.Body).Decode(&req)
		u := testEmployee
		if req.Email == testManager.Email {
			u = testManager
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(model.AuthResponse{AccessToken: "tok-" + u.ID, TokenType: "bearer", User: u})
	})
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode body %q: %v", w.Body.String(), err)
	}
}

// requestWithScope は認証済みレコードのScopeを持つリクエストを作る。
func requestWithScope(t *testing.T, b *fakeBackend, rec *session.Record, req *http.Request) *http.Request {
	t.Helper()
	sc := NewScope(session.NewDetached(rec), b.client(t), nil)
	return req.WithContext(withScope(req.Context(), sc))
}

func authedRecord(u model.User) *session.Record {
	return &session.Record{Token: "tok-" + u.ID, User: &u}
}
