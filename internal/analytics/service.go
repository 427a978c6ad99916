// Package analytics は評価結果の分析をバックエンドから取得する。
package analytics

import (
	"context"
	"fmt"
	"net/url"

	"github.com/hitoshi/perfreview/internal/gateway"
	"github.com/hitoshi/perfreview/internal/model"
)

// ReviewLister はゴールの評価一覧を取得する。*review.Service が実装する。
type ReviewLister interface {
	ListByGoal(ctx context.Context, goalID string) ([]model.Review, bool)
}

// Service は分析のサービス層。
type Service struct {
	api     gateway.Requester
	reviews ReviewLister
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(api gateway.Requester, reviews ReviewLister) *Service {
	return &Service{api: api, reviews: reviews}
}

// EmployeeSummary は社員の分析サマリーを取得する。
func (s *Service) EmployeeSummary(ctx context.Context, employeeID string) (*model.EmployeeSummary, bool) {
	sum, ok := gateway.Get[model.EmployeeSummary](ctx, s.api,
		fmt.Sprintf("analytics/employee/%s/summary", url.PathEscape(employeeID)))
	if !ok {
		return nil, false
	}
	return &sum, true
}

// Goal はゴールの分析を取得し、確定済みの評価があれば最終評価とフィードバックを反映する。
func (s *Service) Goal(ctx context.Context, goalID string) (*model.GoalAnalytics, bool) {
	ga, ok := gateway.Get[model.GoalAnalytics](ctx, s.api, fmt.Sprintf("analytics/goal/%s", url.PathEscape(goalID)))
	if !ok {
		return nil, false
	}

	if s.reviews != nil {
		reviews, _ := s.reviews.ListByGoal(ctx, goalID)
		for i := range reviews {
			r := &reviews[i]
			if !r.IsFinalized() {
				continue
			}
			ga.FinalRating = *r.FinalRating
			ga.FinalFeedback = ""
			if r.FinalFeedback != nil {
				ga.FinalFeedback = *r.FinalFeedback
			}
			break
		}
	}
	return &ga, true
}
