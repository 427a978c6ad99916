package realtime

import (
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/perfreview/internal/middleware"
	"github.com/hitoshi/perfreview/internal/model"
	"github.com/hitoshi/perfreview/internal/security"
)

// PushKeyHeader はプッシュAPIの共有シークレットを運ぶヘッダー。
const PushKeyHeader = "X-Push-Key"

// maxPushBody はプッシュAPIのリクエストボディ上限。
const maxPushBody = 16 << 10

// PushHandler はバックエンドの通知サービスから呼ばれるプッシュAPI。
type PushHandler struct {
	hub    *Hub
	key    []byte
	san    *security.Sanitizer
	logger *slog.Logger
}

// NewPushHandler はPushHandlerを生成する。keyが空の場合はすべての呼び出しを拒否する。
func NewPushHandler(hub *Hub, key string, san *security.Sanitizer, logger *slog.Logger) *PushHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if san == nil {
		san = security.NewSanitizer()
	}
	return &PushHandler{hub: hub, key: []byte(key), san: san, logger: logger}
}

// RequireKey は X-Push-Key ヘッダーを検証するミドルウェア。
func (p *PushHandler) RequireKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got := []byte(r.Header.Get(PushKeyHeader))
		if len(p.key) == 0 || subtle.ConstantTimeCompare(got, p.key) != 1 {
			p.logger.Warn("push key validation failed",
				slog.String("path", r.URL.Path),
				slog.String("remote", r.RemoteAddr),
			)
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewInvalidPushKeyError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

type notificationPush struct {
	Title   string `json:"title"`
	Message string `json:"message"`
	Type    string `json:"type"`
}

type unreadCountPush struct {
	Count *int `json:"count"`
}

type pushResponse struct {
	Success   bool `json:"success"`
	Delivered int  `json:"delivered"`
}

// Notification は POST /internal/realtime/users/{userId}/notifications を処理する。
func (p *PushHandler) Notification(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("userId is required"))
		return
	}

	var body notificationPush
	if err := decodePush(w, r, &body); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("invalid JSON body"))
		return
	}
	title := p.san.Text(body.Title)
	message := p.san.Text(body.Message)
	if title == "" && message == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("title or message is required"))
		return
	}

	n := p.hub.ReceiveNotification(userID, title, message, p.san.Text(body.Type))
	writePushResponse(w, n)
}

// UnreadCount は POST /internal/realtime/users/{userId}/unread-count を処理する。
func (p *PushHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")
	if userID == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("userId is required"))
		return
	}

	var body unreadCountPush
	if err := decodePush(w, r, &body); err != nil || body.Count == nil || *body.Count < 0 {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("count must be a non-negative integer"))
		return
	}

	n := p.hub.UpdateUnreadCount(userID, *body.Count)
	writePushResponse(w, n)
}

func decodePush(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxPushBody)
	return json.NewDecoder(r.Body).Decode(v)
}

func writePushResponse(w http.ResponseWriter, delivered int) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pushResponse{Success: true, Delivered: delivered})
}
