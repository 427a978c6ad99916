package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/perfreview/internal/apilog"
)

// HealthChecker は依存先の疎通確認。セッションストアなどが実装する。
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// StatusHandler は認証状態・ヘルスチェック・診断ログを扱う。
type StatusHandler struct {
	health HealthChecker
	logs   *apilog.Buffer
	logger *slog.Logger
}

// NewStatusHandler はStatusHandlerを生成する。healthはnilでもよい。
func NewStatusHandler(health HealthChecker, logs *apilog.Buffer, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{health: health, logs: logs, logger: orDefault(logger)}
}

// statusUser は /auth/status に含めるユーザー情報。
type statusUser struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

// authStatus は /auth/status の応答。
type authStatus struct {
	Authenticated bool        `json:"authenticated"`
	User          *statusUser `json:"user"`
	TokenExists   bool        `json:"tokenExists"`
}

// AuthStatus はセッションの認証状態を返す。バックエンドは呼ばない。
// GET /auth/status
func (h *StatusHandler) AuthStatus(w http.ResponseWriter, r *http.Request) {
	sc := scope(r)
	st := authStatus{
		Authenticated: sc.Auth.IsAuthenticated(),
		TokenExists:   sc.Auth.Token() != "",
	}
	if u := sc.Auth.CurrentUser(); u != nil {
		st.User = &statusUser{ID: u.ID, FullName: u.FullName, Email: u.Email}
	}
	writeJSON(w, http.StatusOK, st)
}

// Health はプロセスとセッションストアの状態を返す。
// GET /health
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.health.Ping(ctx); err != nil {
			h.logger.Error("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// apiLogResponse は診断ログの応答。
type apiLogResponse struct {
	Stats   apilog.Stats   `json:"stats"`
	Entries []apilog.Entry `json:"entries"`
}

// APILogs は直近のバックエンド呼び出しログを返す。
// GET /diagnostics/api-logs?count=N
func (h *StatusHandler) APILogs(w http.ResponseWriter, r *http.Request) {
	count, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil || count <= 0 {
		count = apilog.DefaultRecent
	}
	entries := h.logs.Recent(count)
	if entries == nil {
		entries = []apilog.Entry{}
	}
	writeJSON(w, http.StatusOK, apiLogResponse{Stats: h.logs.Stats(), Entries: entries})
}

// ClearAPILogs は診断ログを消去する。
// POST /diagnostics/api-logs/clear
func (h *StatusHandler) ClearAPILogs(w http.ResponseWriter, r *http.Request) {
	h.logs.Clear()
	writeSuccess(w, "APIログを消去しました。", nil)
}
