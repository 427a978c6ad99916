package session

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// CookieName はセッションIDを保持するCookieの名前。
	CookieName = "session_id"
	// DefaultIdleTimeout は無操作で失効するまでの時間。
	DefaultIdleTimeout = 2 * time.Hour
)

// ManagerConfig はManagerの設定。
type ManagerConfig struct {
	Secret       string
	IdleTimeout  time.Duration
	CookieSecure bool
	CookieDomain string
}

// Manager はセッションCookieとStoreを仲介する。
type Manager struct {
	store  Store
	secret []byte
	idle   time.Duration
	secure bool
	domain string
	logger *slog.Logger
}

// NewManager はManagerを生成する。
func NewManager(store Store, cfg ManagerConfig, logger *slog.Logger) *Manager {
	idle := cfg.IdleTimeout
	if idle <= 0 {
		idle = DefaultIdleTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:  store,
		secret: []byte(cfg.Secret),
		idle:   idle,
		secure: cfg.CookieSecure,
		domain: cfg.CookieDomain,
		logger: logger,
	}
}

// sign は "<id>.<hmac>" 形式のCookie値を返す。
func (m *Manager) sign(id string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(id))
	return id + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// verify はCookie値の署名を検証し、セッションIDを返す。
func (m *Manager) verify(value string) (string, bool) {
	id, sig, ok := strings.Cut(value, ".")
	if !ok || id == "" || sig == "" {
		return "", false
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", false
	}
	expected := m.sign(id)
	if !hmac.Equal([]byte(expected), []byte(value)) {
		return "", false
	}
	return id, true
}

// SessionID はリクエストのCookieから検証済みのセッションIDを取り出す。
func (m *Manager) SessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil || c.Value == "" {
		return "", false
	}
	return m.verify(c.Value)
}

// Load はセッションIDでレコードを取得する。
// リアルタイム接続のように呼び出しごとに認証状態を確認する用途で使う。
func (m *Manager) Load(ctx context.Context, id string) (*Record, error) {
	return m.store.Load(ctx, id)
}

// Save はセッションIDのレコードを無操作タイムアウト付きで保存する。
func (m *Manager) Save(ctx context.Context, id string, rec *Record) error {
	return m.store.Save(ctx, id, rec, m.idle)
}

// LoadRequest はリクエストのCookieからレコードを取得する。
// Cookieが無効な場合は ErrNotFound を返す。
func (m *Manager) LoadRequest(r *http.Request) (string, *Record, error) {
	id, ok := m.SessionID(r)
	if !ok {
		return "", nil, ErrNotFound
	}
	rec, err := m.store.Load(r.Context(), id)
	if err != nil {
		return "", nil, err
	}
	return id, rec, nil
}

// Middleware はリクエストごとにセッションを読み込み、コンテキストに格納する。
// セッションは最初の書き込みまで作成せず、レスポンスヘッダー送出前に保存する。
func (m *Manager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := newSession()

		if id, ok := m.SessionID(r); ok {
			rec, err := m.store.Load(r.Context(), id)
			switch {
			case err == nil:
				sess.id = id
				sess.rec = rec
				sess.loaded = true
			case errors.Is(err, ErrNotFound):
			default:
				m.logger.Error("failed to load session",
					slog.String("error", err.Error()),
				)
			}
		}

		cw := &commitWriter{ResponseWriter: w}
		cw.commit = func() {
			m.commit(context.WithoutCancel(r.Context()), sess, w)
		}

		next.ServeHTTP(cw, r.WithContext(NewContext(r.Context(), sess)))
		cw.commitOnce()
	})
}

// commit はセッションを保存し、Cookieを更新する。
// 読み込まれた既存セッションは変更がなくても保存し、失効時刻を延長する。
// Regenerate済みなら新しいIDで保存してから旧IDを削除する。
func (m *Manager) commit(ctx context.Context, s *Session, w http.ResponseWriter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.committed {
		return
	}
	s.committed = true

	if !s.loaded && !s.dirty {
		return
	}
	var oldID string
	if s.regenerate {
		oldID = s.id
		s.id = ""
		s.regenerate = false
	}
	if s.id == "" {
		s.id = uuid.NewString()
	}

	if err := m.store.Save(ctx, s.id, s.rec, m.idle); err != nil {
		m.logger.Error("failed to save session",
			slog.String("error", err.Error()),
		)
		return
	}
	if oldID != "" {
		if err := m.store.Delete(ctx, oldID); err != nil {
			m.logger.Warn("failed to delete previous session",
				slog.String("error", err.Error()),
			)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    m.sign(s.id),
		Path:     "/",
		Domain:   m.domain,
		MaxAge:   int(m.idle.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// commitWriter は最初の書き込み直前にセッションを保存するResponseWriter。
type commitWriter struct {
	http.ResponseWriter
	commit func()
	once   sync.Once
}

func (cw *commitWriter) commitOnce() {
	cw.once.Do(cw.commit)
}

// WriteHeader はヘッダー送出前にセッションを保存する。
func (cw *commitWriter) WriteHeader(code int) {
	cw.commitOnce()
	cw.ResponseWriter.WriteHeader(code)
}

// Write はヘッダー送出前にセッションを保存する。
func (cw *commitWriter) Write(b []byte) (int, error) {
	cw.commitOnce()
	return cw.ResponseWriter.Write(b)
}

// Flush はストリーミング応答に対応する。
func (cw *commitWriter) Flush() {
	cw.commitOnce()
	if f, ok := cw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap はhttp.ResponseControllerとWebSocketのHijackのために元のWriterを返す。
func (cw *commitWriter) Unwrap() http.ResponseWriter {
	return cw.ResponseWriter
}
