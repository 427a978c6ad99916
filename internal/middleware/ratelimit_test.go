package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/perfreview/internal/session"
)

type recordingRateMetrics struct {
	mu     sync.Mutex
	scopes []string
}

func (m *recordingRateMetrics) RecordRateLimited(scope string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scopes = append(m.scopes, scope)
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func requestFrom(ip string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = ip + ":12345"
	return req
}

func TestRateLimiter_Login_AllowsBurstThenRejects(t *testing.T) {
	metrics := &recordingRateMetrics{}
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate: 100, GeneralBurst: 100,
		LoginRate: 1.0 / 60.0, LoginBurst: 3,
		CleanupInterval: time.Minute,
	}, metrics)
	defer rl.Stop()

	h := rl.LoginMiddleware()(okHandler())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, requestFrom("10.0.0.1"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, requestFrom("10.0.0.1"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if got := w.Header().Get("Retry-After"); got != "60" {
		t.Errorf("Retry-After = %q, want 60", got)
	}
	if len(metrics.scopes) != 1 || metrics.scopes[0] != "login" {
		t.Errorf("recorded scopes = %v, want [login]", metrics.scopes)
	}

	// 別のIPは独立
	w = httptest.NewRecorder()
	h.ServeHTTP(w, requestFrom("10.0.0.2"))
	if w.Code != http.StatusOK {
		t.Errorf("other ip status = %d, want 200", w.Code)
	}
	if rl.LoginLimiterCount() != 2 {
		t.Errorf("LoginLimiterCount = %d, want 2", rl.LoginLimiterCount())
	}
}

func TestRateLimiter_LoginAndGeneralAreIndependent(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate: 1, GeneralBurst: 1,
		LoginRate: 1, LoginBurst: 1,
		CleanupInterval: time.Minute,
	}, nil)
	defer rl.Stop()

	general := rl.GeneralMiddleware()(okHandler())
	login := rl.LoginMiddleware()(okHandler())

	w := httptest.NewRecorder()
	login.ServeHTTP(w, requestFrom("10.0.0.9"))
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, want 200", w.Code)
	}
	w = httptest.NewRecorder()
	general.ServeHTTP(w, requestFrom("10.0.0.9"))
	if w.Code != http.StatusOK {
		t.Errorf("general status = %d, want 200 (separate pool)", w.Code)
	}
}

func TestRateLimiter_General_KeysBySessionWhenPresent(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate: 1.0 / 60.0, GeneralBurst: 1,
		LoginRate: 1, LoginBurst: 1,
		CleanupInterval: time.Minute,
	}, nil)
	defer rl.Stop()

	mgr := session.NewManager(session.NewMemoryStore(), session.ManagerConfig{Secret: "s"}, nil)
	h := mgr.Middleware(rl.GeneralMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		session.FromContext(r.Context()).AddFlash("success", "ok")
		w.WriteHeader(http.StatusOK)
	})))

	// 1回目: セッションなし（IPキー）でCookieが発行される
	w := httptest.NewRecorder()
	h.ServeHTTP(w, requestFrom("10.1.1.1"))
	if w.Code != http.StatusOK {
		t.Fatalf("first status = %d, want 200", w.Code)
	}
	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == session.CookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("session cookie should be issued")
	}

	// 同じIPでもセッションがあれば別キー
	req := requestFrom("10.1.1.1")
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("session request status = %d, want 200", w.Code)
	}

	req = requestFrom("10.1.1.1")
	req.AddCookie(cookie)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("second session request status = %d, want 429", w.Code)
	}

	if rl.GeneralLimiterCount() != 2 {
		t.Errorf("GeneralLimiterCount = %d, want 2", rl.GeneralLimiterCount())
	}
}

func TestRateLimiter_429Body(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate: 0.5, GeneralBurst: 1,
		LoginRate: 1, LoginBurst: 1,
		CleanupInterval: time.Minute,
	}, nil)
	defer rl.Stop()
	h := rl.GeneralMiddleware()(okHandler())

	h.ServeHTTP(httptest.NewRecorder(), requestFrom("10.2.2.2"))

	t.Run("json", func(t *testing.T) {
		req := requestFrom("10.2.2.2")
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if ct := w.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", ct)
		}
		var body map[string]any
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["success"] != false {
			t.Errorf("success = %v, want false", body["success"])
		}
		if _, err := strconv.Atoi(w.Header().Get("Retry-After")); err != nil {
			t.Errorf("Retry-After should be an integer: %v", err)
		}
	})

	t.Run("html", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, requestFrom("10.2.2.2"))
		if w.Code != http.StatusTooManyRequests {
			t.Errorf("status = %d, want 429", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct == "application/json" {
			t.Error("page request should not receive JSON")
		}
	})
}

func TestRateLimiter_CleanupEvictsIdleEntries(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{
		GeneralRate: 1, GeneralBurst: 1,
		LoginRate: 1, LoginBurst: 1,
		CleanupInterval: time.Minute,
	}, nil)
	defer rl.Stop()

	rl.GeneralMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), requestFrom("10.3.3.3"))
	rl.LoginMiddleware()(okHandler()).ServeHTTP(httptest.NewRecorder(), requestFrom("10.3.3.3"))

	rl.cleanup(time.Now())
	if rl.GeneralLimiterCount() != 1 || rl.LoginLimiterCount() != 1 {
		t.Fatal("fresh entries should survive cleanup")
	}

	rl.cleanup(time.Now().Add(3 * time.Minute))
	if rl.GeneralLimiterCount() != 0 || rl.LoginLimiterCount() != 0 {
		t.Errorf("idle entries should be evicted, got general=%d login=%d",
			rl.GeneralLimiterCount(), rl.LoginLimiterCount())
	}
}

func TestRateLimiterConfigPerMinute(t *testing.T) {
	cfg := RateLimiterConfigPerMinute(120, 10)
	if cfg.GeneralRate != 2 {
		t.Errorf("GeneralRate = %v, want 2", cfg.GeneralRate)
	}
	if cfg.GeneralBurst != 120 || cfg.LoginBurst != 10 {
		t.Errorf("bursts = %d/%d, want 120/10", cfg.GeneralBurst, cfg.LoginBurst)
	}

	rl := NewRateLimiter(DefaultRateLimiterConfig(), nil)
	rl.Stop()
	rl.Stop()
}
