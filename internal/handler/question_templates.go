package handler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/perfreview/internal/middleware"
	"github.com/hitoshi/perfreview/internal/model"
	"github.com/hitoshi/perfreview/internal/review"
	"github.com/hitoshi/perfreview/internal/security"
)

// QuestionTemplateHandler はマネージャー向けの質問テンプレートJSON APIを扱う。
type QuestionTemplateHandler struct {
	san *security.Sanitizer
}

// NewQuestionTemplateHandler はQuestionTemplateHandlerを生成する。
func NewQuestionTemplateHandler(san *security.Sanitizer) *QuestionTemplateHandler {
	return &QuestionTemplateHandler{san: san}
}

// validateTemplate はテンプレートの入力を検証して整形する。問題があれば理由を返す。
func (h *QuestionTemplateHandler) validateTemplate(req *model.QuestionTemplateRequest) string {
	req.QuestionText = h.san.Text(req.QuestionText)
	req.QuestionType = strings.ToLower(strings.TrimSpace(req.QuestionType))
	req.Section = h.san.Text(req.Section)

	switch {
	case req.QuestionText == "":
		return "question_text is required"
	case req.QuestionType == "":
		return "question_type is required"
	case req.Weight < 0:
		return "weight must not be negative"
	case req.MaxScore < 0:
		return "max_score must not be negative"
	}
	if _, ok := model.ParseReviewType(req.QuestionType); !ok {
		return "question_type must be one of self, manager, potential, respondent"
	}
	return ""
}

// List は質問テンプレートの一覧。
// GET /question-templates?question_type=&section=
func (h *QuestionTemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	templates, ok := scope(r).Reviews.Templates(r.Context(), review.TemplateFilter{
		QuestionType: q.Get("question_type"),
		Section:      q.Get("section"),
	})
	if !ok {
		templates = []model.QuestionTemplate{}
	}
	writeJSON(w, http.StatusOK, templates)
}

// Get は質問テンプレートを1件返す。
// GET /question-templates/{id}
func (h *QuestionTemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, ok := scope(r).Reviews.Template(r.Context(), chi.URLParam(r, "id"))
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewNotFoundError("質問テンプレート"))
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Create は質問テンプレートを作成する。
// POST /question-templates
func (h *QuestionTemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, err := h.readTemplate(w, r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err)
		return
	}
	t, ok := scope(r).Reviews.CreateTemplate(r.Context(), *req)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewUpstreamFailedError())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// readTemplate はリクエストボディを読み取り検証する。
func (h *QuestionTemplateHandler) readTemplate(w http.ResponseWriter, r *http.Request) (*model.QuestionTemplateRequest, error) {
	var req model.QuestionTemplateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		return nil, model.NewInvalidRequestError("request body is required")
	}
	if reason := h.validateTemplate(&req); reason != "" {
		return nil, model.NewInvalidRequestError(reason)
	}
	return &req, nil
}

// Update は質問テンプレートを更新する。
// PUT /question-templates/{id}
func (h *QuestionTemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	req, err := h.readTemplate(w, r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err)
		return
	}
	t, ok := scope(r).Reviews.UpdateTemplate(r.Context(), chi.URLParam(r, "id"), *req)
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewUpstreamFailedError())
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// Delete は質問テンプレートを削除する。
// DELETE /question-templates/{id}
func (h *QuestionTemplateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !scope(r).Reviews.DeleteTemplate(r.Context(), chi.URLParam(r, "id")) {
		writeJSON(w, http.StatusBadRequest, model.SuccessResponse{Status: "error", Message: "質問テンプレートを削除できませんでした。"})
		return
	}
	writeJSON(w, http.StatusOK, model.SuccessResponse{Status: "success", Message: "質問テンプレートを削除しました。"})
}
