// Package user はユーザーと上長関係のバックエンドAPI呼び出しを提供する。
package user

import (
	"context"
	"fmt"
	"net/url"

	"github.com/hitoshi/perfreview/internal/gateway"
	"github.com/hitoshi/perfreview/internal/model"
)

// Service はユーザーのサービス層。
type Service struct {
	api gateway.Requester
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(api gateway.Requester) *Service {
	return &Service{api: api}
}

// Managers はマネージャー一覧を取得する。
func (s *Service) Managers(ctx context.Context) ([]model.User, bool) {
	return gateway.Get[[]model.User](ctx, s.api, "users/managers")
}

// Subordinates はログインユーザーの部下一覧を取得する。
func (s *Service) Subordinates(ctx context.Context) ([]model.User, bool) {
	return gateway.Get[[]model.User](ctx, s.api, "users/my-subordinates")
}

// Get はユーザーを1件取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.User, bool) {
	u, ok := gateway.Get[model.User](ctx, s.api, fmt.Sprintf("users/%s", url.PathEscape(id)))
	if !ok {
		return nil, false
	}
	return &u, true
}

// AssignManager はuserIDの上長をmanagerIDに設定する。
func (s *Service) AssignManager(ctx context.Context, userID, managerID string) bool {
	q := url.Values{}
	q.Set("manager_id", managerID)
	path := fmt.Sprintf("users/%s/manager?%s", url.PathEscape(userID), q.Encode())
	_, ok := gateway.Put[model.SuccessResponse](ctx, s.api, path, struct{}{})
	return ok
}

// AvailableRespondents はcurrentがゴールの回答者として指定できるユーザーを返す。
// マネージャーはマネージャーと部下から、それ以外はマネージャーから選ぶ。
// 本人と無効なユーザーは除外し、IDで重複を除く。
func (s *Service) AvailableRespondents(ctx context.Context, current *model.User) []model.User {
	if current == nil {
		return nil
	}

	candidates, _ := s.Managers(ctx)
	if current.IsManager {
		subs, _ := s.Subordinates(ctx)
		candidates = append(candidates, subs...)
	}

	seen := make(map[string]struct{}, len(candidates))
	out := make([]model.User, 0, len(candidates))
	for _, u := range candidates {
		if u.ID == current.ID || !u.IsActive {
			continue
		}
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		out = append(out, u)
	}
	return out
}
