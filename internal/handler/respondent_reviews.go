package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/perfreview/internal/model"
	"github.com/hitoshi/perfreview/internal/security"
	"github.com/hitoshi/perfreview/internal/session"
)

// RespondentReviewHandler は回答者による評価を扱う。
type RespondentReviewHandler struct {
	view   *Renderer
	san    *security.Sanitizer
	logger *slog.Logger
}

// NewRespondentReviewHandler はRespondentReviewHandlerを生成する。
func NewRespondentReviewHandler(view *Renderer, san *security.Sanitizer, logger *slog.Logger) *RespondentReviewHandler {
	return &RespondentReviewHandler{view: view, san: san, logger: orDefault(logger)}
}

// RespondentReviewPage は回答者評価フォームの表示内容。
type RespondentReviewPage struct {
	GoalID    string
	GoalTitle string
	Questions []model.QuestionTemplate
	Answers   []model.Answer
	Comments  string
}

// CreatePage は回答者評価フォーム。回答者でなければ回答依頼一覧へ戻す。
// GET /respondent-reviews/create/{goalId}
func (h *RespondentReviewHandler) CreatePage(w http.ResponseWriter, r *http.Request) {
	sc := scope(r)
	goalID := chi.URLParam(r, "goalId")

	g, ok := sc.Goals.GetForRespondent(r.Context(), goalID)
	if !ok {
		flash(r, session.FlashError, "このゴールの回答者ではないか、ゴールが見つかりません。")
		redirect(w, r, "/goals/respondent")
		return
	}
	questions, _ := sc.Reviews.QuestionsFor(r.Context(), model.ReviewTypeRespondent)
	h.view.Page(w, r, http.StatusOK, "respondent_review_create", "回答者評価", RespondentReviewPage{
		GoalID:    goalID,
		GoalTitle: g.Title,
		Questions: questions,
	})
}

// Create は回答者評価を送信する。
// POST /respondent-reviews/create
func (h *RespondentReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	sc := scope(r)
	r.ParseForm()

	page := RespondentReviewPage{
		GoalID:   strings.TrimSpace(r.PostForm.Get("goal_id")),
		Answers:  parseAnswers(r.PostForm, h.san),
		Comments: h.san.Text(r.PostForm.Get("comments")),
	}
	if page.GoalID == "" {
		h.renderAgain(w, r, page, "ゴールが指定されていません。")
		return
	}

	req := model.RespondentReviewCreateRequest{GoalID: page.GoalID, Answers: page.Answers}
	if page.Comments != "" {
		c := page.Comments
		req.Comments = &c
	}

	created, ok := sc.Reviews.CreateRespondentReview(r.Context(), req)
	if !ok {
		h.renderAgain(w, r, page, "評価を送信できませんでした。")
		return
	}

	h.logger.Info("respondent review created", slog.String("review_id", created.ID))
	flash(r, session.FlashSuccess, "評価を送信しました。")
	redirect(w, r, "/goals/respondent")
}

func (h *RespondentReviewHandler) renderAgain(w http.ResponseWriter, r *http.Request, page RespondentReviewPage, message string) {
	sc := scope(r)
	page.GoalTitle = "不明なゴール"
	if page.GoalID != "" {
		if g, ok := sc.Goals.GetForRespondent(r.Context(), page.GoalID); ok {
			page.GoalTitle = g.Title
		}
	}
	page.Questions, _ = sc.Reviews.QuestionsFor(r.Context(), model.ReviewTypeRespondent)
	h.view.Form(w, r, "respondent_review_create", "回答者評価", page, map[string]string{"": message})
}

// Details は回答者評価の詳細。
// GET /respondent-reviews/{id}
func (h *RespondentReviewHandler) Details(w http.ResponseWriter, r *http.Request) {
	rv, ok := scope(r).Reviews.GetRespondentReview(r.Context(), chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	h.view.Page(w, r, http.StatusOK, "respondent_review_details", "回答者評価", rv)
}
