package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/perfreview/internal/model"
	"github.com/hitoshi/perfreview/internal/notification"
)

// NotificationHandler は通知一覧と既読化を扱う。
type NotificationHandler struct {
	view *Renderer
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(view *Renderer) *NotificationHandler {
	return &NotificationHandler{view: view}
}

// NotificationList は通知一覧画面の表示内容。
type NotificationList struct {
	Notifications []model.Notification
	UnreadOnly    bool
}

// Index は通知一覧。
// GET /notifications?unread_only=true
func (h *NotificationHandler) Index(w http.ResponseWriter, r *http.Request) {
	unreadOnly, _ := strconv.ParseBool(r.URL.Query().Get("unread_only"))
	items, _ := scope(r).Notifications.List(r.Context(), unreadOnly, notification.DefaultLimit)
	h.view.Page(w, r, http.StatusOK, "notifications", "通知", NotificationList{
		Notifications: items,
		UnreadOnly:    unreadOnly,
	})
}

// MarkAsRead は通知を既読にする（AJAX）。
// POST /notifications/mark-read/{id}
func (h *NotificationHandler) MarkAsRead(w http.ResponseWriter, r *http.Request) {
	ok := scope(r).Notifications.MarkAsRead(r.Context(), chi.URLParam(r, "id"))
	writeJSON(w, http.StatusOK, Result{Success: ok})
}

// MarkAllAsRead はすべての通知を既読にする（AJAX）。
// POST /notifications/mark-all-read
func (h *NotificationHandler) MarkAllAsRead(w http.ResponseWriter, r *http.Request) {
	ok := scope(r).Notifications.MarkAllAsRead(r.Context())
	writeJSON(w, http.StatusOK, Result{Success: ok})
}

// UnreadCount は未読件数を返す。未認証なら0を返し、バックエンドは呼ばない。
// GET /notifications/unread-count
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	sc := scope(r)
	count := 0
	if sc.Auth.IsAuthenticated() {
		count, _ = sc.Notifications.UnreadCount(r.Context())
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}
