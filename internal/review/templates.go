package review

import (
	"context"
	"fmt"
	"net/url"

	"github.com/hitoshi/perfreview/internal/gateway"
	"github.com/hitoshi/perfreview/internal/model"
)

// TemplateFilter は質問テンプレート一覧の絞り込み条件。
type TemplateFilter struct {
	QuestionType string
	Section      string
}

func (f TemplateFilter) path() string {
	q := url.Values{}
	if f.QuestionType != "" {
		q.Set("question_type", f.QuestionType)
	}
	if f.Section != "" {
		q.Set("section", f.Section)
	}
	if len(q) == 0 {
		return "question-templates/"
	}
	return "question-templates/?" + q.Encode()
}

// Templates は質問テンプレートの一覧を取得する。
func (s *Service) Templates(ctx context.Context, f TemplateFilter) ([]model.QuestionTemplate, bool) {
	return gateway.Get[[]model.QuestionTemplate](ctx, s.api, f.path())
}

// QuestionsFor は評価種別に対応する質問を取得する。
func (s *Service) QuestionsFor(ctx context.Context, t model.ReviewType) ([]model.QuestionTemplate, bool) {
	return s.Templates(ctx, TemplateFilter{QuestionType: string(t)})
}

// Template は質問テンプレートを1件取得する。
func (s *Service) Template(ctx context.Context, id string) (*model.QuestionTemplate, bool) {
	return templateResult(gateway.Get[model.QuestionTemplate](ctx, s.api, fmt.Sprintf("question-templates/%s", esc(id))))
}

// CreateTemplate は質問テンプレートを作成する。
func (s *Service) CreateTemplate(ctx context.Context, req model.QuestionTemplateRequest) (*model.QuestionTemplate, bool) {
	return templateResult(gateway.Post[model.QuestionTemplate](ctx, s.api, "question-templates", req))
}

// UpdateTemplate は質問テンプレートを更新する。
func (s *Service) UpdateTemplate(ctx context.Context, id string, req model.QuestionTemplateRequest) (*model.QuestionTemplate, bool) {
	return templateResult(gateway.Put[model.QuestionTemplate](ctx, s.api, fmt.Sprintf("question-templates/%s", esc(id)), req))
}

// DeleteTemplate は質問テンプレートを削除する。
func (s *Service) DeleteTemplate(ctx context.Context, id string) bool {
	return gateway.Delete(ctx, s.api, fmt.Sprintf("question-templates/%s", esc(id)))
}

func templateResult(t model.QuestionTemplate, ok bool) (*model.QuestionTemplate, bool) {
	if !ok {
		return nil, false
	}
	return &t, true
}
