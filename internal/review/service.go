// Package review は評価・回答者評価・質問テンプレートのバックエンドAPI呼び出しを提供する。
package review

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/perfreview/internal/gateway"
	"github.com/hitoshi/perfreview/internal/model"
)

// Service は評価のサービス層。
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

// List は閲覧可能な評価の一覧を取得する。
func (s *Service) List(ctx context.Context) ([]model.Review, bool) {
	return gateway.Get[[]model.Review](ctx, s.api, "reviews/")
}

// Get は評価を1件取得する。
func (s *Service) Get(ctx context.Context, id string) (*model.Review, bool) {
	r, ok := gateway.Get[model.Review](ctx, s.api, fmt.Sprintf("reviews/%s", esc(id)))
	if !ok {
		return nil, false
	}
	return &r, true
}

// GetWithAnswers は回答付きで評価を取得する。
func (s *Service) GetWithAnswers(ctx context.Context, id string) (*model.ReviewWithAnswers, bool) {
	r, ok := gateway.Get[model.ReviewWithAnswers](ctx, s.api, fmt.Sprintf("reviews/%s", esc(id)))
	if !ok {
		return nil, false
	}
	return &r, true
}

// ListByGoal はゴールに紐づく評価を取得する。
func (s *Service) ListByGoal(ctx context.Context, goalID string) ([]model.Review, bool) {
	return gateway.Get[[]model.Review](ctx, s.api, fmt.Sprintf("reviews/goal/%s", esc(goalID)))
}

// Create は評価を作成する。空の回答は送信前に取り除く。
func (s *Service) Create(ctx context.Context, req model.ReviewCreateRequest) (*model.Review, bool) {
	req.Answers = FilterAnswered(req.Answers)
	r, ok := gateway.Post[model.Review](ctx, s.api, "reviews/", req)
	if !ok {
		return nil, false
	}
	return &r, true
}

// Finalize は最終評価を確定する。
func (s *Service) Finalize(ctx context.Context, id string, upd model.FinalReviewUpdate) (*model.Review, bool) {
	r, ok := gateway.Put[model.Review](ctx, s.api, fmt.Sprintf("reviews/%s/final", esc(id)), upd)
	if !ok {
		return nil, false
	}
	return &r, true
}

// PendingManagerReviews は上長の採点待ちの評価一覧を取得する。
func (s *Service) PendingManagerReviews(ctx context.Context) ([]model.Review, bool) {
	return gateway.Get[[]model.Review](ctx, s.api, "reviews/pending-manager-scores")
}

// PendingManagerScores は評価内の採点待ち質問を取得する。
func (s *Service) PendingManagerScores(ctx context.Context, id string) ([]model.PendingScore, bool) {
	var raw rawJSON
	if !s.api.Do(ctx, http.MethodGet, fmt.Sprintf("reviews/%s/pending-manager-scores", esc(id)), nil, &raw) {
		return nil, false
	}
	return ParsePendingScores(raw), true
}

// managerScore は score-manager-questions に送る1件分の採点。
type managerScore struct {
	QuestionID     string  `json:"question_id"`
	Score          float64 `json:"score"`
	Answer         string  `json:"answer"`
	SelectedOption string  `json:"selected_option"`
}

// ScoreManagerQuestions は上長の採点を送信する。
// スコアのない回答は除外し、送るものがなければ呼び出しを行わず成功を返す。
func (s *Service) ScoreManagerQuestions(ctx context.Context, id string, answers []model.Answer) (model.SuccessResponse, bool) {
	scores := make([]managerScore, 0, len(answers))
	for _, a := range answers {
		if a.Score == nil || a.QuestionID == "" {
			continue
		}
		ms := managerScore{QuestionID: a.QuestionID, Score: *a.Score, Answer: a.Answer}
		if a.SelectedOption != nil {
			ms.SelectedOption = *a.SelectedOption
		}
		scores = append(scores, ms)
	}
	if len(scores) == 0 {
		return model.SuccessResponse{Status: "success", Message: "No scores to update"}, true
	}
	return gateway.Post[model.SuccessResponse](ctx, s.api, fmt.Sprintf("reviews/%s/score-manager-questions", esc(id)), scores)
}

// CreateRespondentReview は回答者評価を作成する。
func (s *Service) CreateRespondentReview(ctx context.Context, req model.RespondentReviewCreateRequest) (*model.RespondentReview, bool) {
	req.Answers = FilterAnswered(req.Answers)
	r, ok := gateway.Post[model.RespondentReview](ctx, s.api, "reviews/respondent", req)
	if !ok {
		return nil, false
	}
	return &r, true
}

// GetRespondentReview は回答者評価を1件取得する。
func (s *Service) GetRespondentReview(ctx context.Context, id string) (*model.RespondentReview, bool) {
	r, ok := gateway.Get[model.RespondentReview](ctx, s.api, fmt.Sprintf("reviews/respondent/%s", esc(id)))
	if !ok {
		return nil, false
	}
	return &r, true
}

// FilterAnswered は回答・スコア・選択肢のいずれも空の回答を取り除く。
func FilterAnswered(answers []model.Answer) []model.Answer {
	out := make([]model.Answer, 0, len(answers))
	for _, a := range answers {
		if strings.TrimSpace(a.Answer) != "" || a.Score != nil || (a.SelectedOption != nil && *a.SelectedOption != "") {
			out = append(out, a)
		}
	}
	return out
}
