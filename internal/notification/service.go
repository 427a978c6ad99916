// Package notification は通知のバックエンドAPI呼び出しを提供する。
package notification

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/hitoshi/perfreview/internal/gateway"
	"github.com/hitoshi/perfreview/internal/model"
)

// DefaultLimit は通知一覧の既定件数。
const DefaultLimit = 50

// Service は通知のサービス層。
type Service struct {
	api gateway.Requester
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(api gateway.Requester) *Service {
	return &Service{api: api}
}

// List は通知一覧を取得する。limitが0以下の場合はDefaultLimitを使う。
func (s *Service) List(ctx context.Context, unreadOnly bool, limit int, opts ...gateway.CallOption) ([]model.Notification, bool) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	q := url.Values{}
	q.Set("unread_only", strconv.FormatBool(unreadOnly))
	q.Set("limit", strconv.Itoa(limit))
	return gateway.Get[[]model.Notification](ctx, s.api, "notifications/?"+q.Encode(), opts...)
}

// UnreadCount は未読件数を取得する。
// バッジ表示のための投機的な呼び出しなので、401でもセッションを破棄しない。
// 取得に失敗した場合は (0, false) を返す。
func (s *Service) UnreadCount(ctx context.Context) (int, bool) {
	c, ok := gateway.Get[model.UnreadCount](ctx, s.api, "notifications/unread-count", gateway.SuppressAuthClear())
	if !ok {
		return 0, false
	}
	return c.UnreadCount, true
}

// MarkAsRead は通知を既読にする。
func (s *Service) MarkAsRead(ctx context.Context, id string) bool {
	res, ok := gateway.Put[model.SuccessResponse](ctx, s.api,
		fmt.Sprintf("notifications/%s/read", url.PathEscape(id)), struct{}{})
	return ok && res.OK()
}

// MarkAllAsRead はすべての通知を既読にする。
func (s *Service) MarkAllAsRead(ctx context.Context) bool {
	res, ok := gateway.Put[model.SuccessResponse](ctx, s.api, "notifications/read-all", struct{}{})
	return ok && res.OK()
}
