package goal

import (
	"context"
	"fmt"

	"github.com/hitoshi/perfreview/internal/gateway"
	"github.com/hitoshi/perfreview/internal/model"
)

// empty はボディを持たないPUTに送るJSONオブジェクト。
var empty = struct{}{}

// Steps はゴールのステップ一覧を取得する。
func (s *Service) Steps(ctx context.Context, goalID string) ([]model.GoalStep, bool) {
	return gateway.Get[[]model.GoalStep](ctx, s.api, fmt.Sprintf("goals/%s/steps", esc(goalID)))
}

// RespondentSteps は回答者向けにステップ一覧を取得する。
func (s *Service) RespondentSteps(ctx context.Context, goalID string) ([]model.GoalStep, bool) {
	return gateway.Get[[]model.GoalStep](ctx, s.api, fmt.Sprintf("respondent/%s/steps", esc(goalID)))
}

// CreateStep はゴールにステップを追加する。
func (s *Service) CreateStep(ctx context.Context, goalID string, req model.GoalStepCreateReq) (*model.GoalStep, bool) {
	return stepResult(gateway.Post[model.GoalStep](ctx, s.api, fmt.Sprintf("goals/%s/steps", esc(goalID)), req))
}

// UpdateStep はステップを更新する。
func (s *Service) UpdateStep(ctx context.Context, stepID string, req model.GoalStepCreateReq) (*model.GoalStep, bool) {
	return stepResult(gateway.Put[model.GoalStep](ctx, s.api, fmt.Sprintf("steps/%s", esc(stepID)), req))
}

// DeleteStep はステップを削除する。
func (s *Service) DeleteStep(ctx context.Context, stepID string) bool {
	return gateway.Delete(ctx, s.api, fmt.Sprintf("steps/%s", esc(stepID)))
}

// CompleteStep はステップを完了にする。
func (s *Service) CompleteStep(ctx context.Context, stepID string) (*model.GoalStep, bool) {
	return stepResult(gateway.Put[model.GoalStep](ctx, s.api, fmt.Sprintf("steps/%s/complete", esc(stepID)), empty))
}

// IncompleteStep はステップを未完了に戻す。
func (s *Service) IncompleteStep(ctx context.Context, stepID string) (*model.GoalStep, bool) {
	return stepResult(gateway.Put[model.GoalStep](ctx, s.api, fmt.Sprintf("steps/%s/incomplete", esc(stepID)), empty))
}

func stepResult(step model.GoalStep, ok bool) (*model.GoalStep, bool) {
	if !ok {
		return nil, false
	}
	return &step, true
}
