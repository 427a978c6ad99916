// Package goal はゴールとそのステップに関するバックエンドAPI呼び出しを提供する。
package goal

import (
	"context"
	"fmt"
	"net/url"

	"github.com/hitoshi/perfreview/internal/gateway"
	"github.com/hitoshi/perfreview/internal/model"
)

// Service はゴールのサービス層。
// 1リクエストのスコープでセッションに束縛された Requester を受け取る。
type Service struct {
	api gateway.Requester
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(api gateway.Requester) *Service {
	return &Service{api: api}
}

func esc(id string) string {
	return url.PathEscape(id)
}

// ListByEmployee は社員のゴール一覧を取得する。
func (s *Service) ListByEmployee(ctx context.Context, employeeID string) ([]model.Goal, bool) {
	return gateway.Get[[]model.Goal](ctx, s.api, fmt.Sprintf("goals/employee/%s", esc(employeeID)))
}

// Get はゴールを1件取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Goal, bool) {
	g, ok := gateway.Get[model.Goal](ctx, s.api, fmt.Sprintf("goals/%s", esc(id)))
	if !ok {
		return nil, false
	}
	return &g, true
}

// Create はゴールを作成する。
// 作成直後にトークンが失効していてもセッションを破棄しないよう、401による破棄を抑止する。
func (s *Service) Create(ctx context.Context, req model.GoalCreateRequest) (*model.Goal, bool) {
	g, ok := gateway.Post[model.Goal](ctx, s.api, "goals/", req, gateway.SuppressAuthClear())
	if !ok {
		return nil, false
	}
	return &g, true
}

// ListForRespondent はログインユーザーが回答者として割り当てられたゴールを取得する。
func (s *Service) ListForRespondent(ctx context.Context) ([]model.Goal, bool) {
	return gateway.Get[[]model.Goal](ctx, s.api, "goals/respondent/my")
}

// GetForRespondent は回答者向けにゴールを1件取得する。
func (s *Service) GetForRespondent(ctx context.Context, goalID string) (*model.Goal, bool) {
	g, ok := gateway.Get[model.Goal](ctx, s.api, fmt.Sprintf("goals/respondent/%s", esc(goalID)))
	if !ok {
		return nil, false
	}
	return &g, true
}

// SetStatus はゴールの状態を変更する。
func (s *Service) SetStatus(ctx context.Context, goalID string, status model.GoalStatus) bool {
	_, ok := gateway.Put[model.SuccessResponse](ctx, s.api,
		fmt.Sprintf("goals/%s/status", esc(goalID)),
		model.GoalStatusUpdate{Status: status},
	)
	return ok
}
