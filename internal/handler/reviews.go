package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/perfreview/internal/model"
	"github.com/hitoshi/perfreview/internal/security"
	"github.com/hitoshi/perfreview/internal/session"
)

// ReviewHandler は評価の作成・閲覧・上長による確定を扱う。
type ReviewHandler struct {
	view   *Renderer
	san    *security.Sanitizer
	logger *slog.Logger
}

// NewReviewHandler はReviewHandlerを生成する。
func NewReviewHandler(view *Renderer, san *security.Sanitizer, logger *slog.Logger) *ReviewHandler {
	return &ReviewHandler{view: view, san: san, logger: orDefault(logger)}
}

// ReviewCreatePage は評価作成画面の表示内容。
type ReviewCreatePage struct {
	GoalID     string
	GoalTitle  string
	ReviewType model.ReviewType
	Questions  []model.QuestionTemplate
	Answers    []model.Answer
}

// ManagerScoringPage は上長の採点・確定画面の表示内容。
type ManagerScoringPage struct {
	Review           *model.Review
	PendingQuestions []model.PendingScore
	FinalRating      string
	FinalFeedback    string
}

// reviewTypeGate は作成可能な評価種別かを判定し、不可なら表示するメッセージを返す。
func reviewTypeGate(t model.ReviewType, g *model.Goal, u *model.User) string {
	switch {
	case t == model.ReviewTypePotential && !u.IsManager:
		return "ポテンシャル評価はマネージャーのみ作成できます。"
	case t == model.ReviewTypeSelf && g.EmployeeID != u.ID:
		return "自己評価は自分のゴールにのみ作成できます。"
	}
	return ""
}

// CreatePage は評価作成フォーム。
// GET /reviews/create/{goalId}/{reviewType}
func (h *ReviewHandler) CreatePage(w http.ResponseWriter, r *http.Request) {
	sc := scope(r)
	goalID := chi.URLParam(r, "goalId")

	g, ok := sc.Goals.Get(r.Context(), goalID)
	if !ok {
		flash(r, session.FlashError, "ゴールが見つかりません。")
		redirect(w, r, "/goals")
		return
	}

	t, ok := model.ParseReviewType(strings.ToLower(chi.URLParam(r, "reviewType")))
	if !ok {
		flash(r, session.FlashError, "評価の種類が正しくありません。")
		redirect(w, r, goalPath(goalID))
		return
	}
	if msg := reviewTypeGate(t, g, sc.Auth.CurrentUser()); msg != "" {
		flash(r, session.FlashError, msg)
		redirect(w, r, goalPath(goalID))
		return
	}

	questions, _ := sc.Reviews.QuestionsFor(r.Context(), t)
	h.view.Page(w, r, http.StatusOK, "review_create", "評価の作成", ReviewCreatePage{
		GoalID:     goalID,
		GoalTitle:  g.Title,
		ReviewType: t,
		Questions:  questions,
	})
}

// Create は評価を作成し、種別に応じた画面へ移動する。
// POST /reviews/create
func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	sc := scope(r)
	r.ParseForm()
	user := sc.Auth.CurrentUser()

	goalID := strings.TrimSpace(r.PostForm.Get("goal_id"))
	t, typeOK := model.ParseReviewType(strings.ToLower(r.PostForm.Get("review_type")))
	answers := parseAnswers(r.PostForm, h.san)

	var g *model.Goal
	goalOK := false
	if goalID != "" {
		g, goalOK = sc.Goals.Get(r.Context(), goalID)
	}
	if !typeOK || !goalOK {
		h.renderCreateAgain(w, r, goalID, g, t, answers, "入力内容を確認してください。")
		return
	}
	if msg := reviewTypeGate(t, g, user); msg != "" {
		flash(r, session.FlashError, msg)
		redirect(w, r, goalPath(goalID))
		return
	}

	created, ok := sc.Reviews.Create(r.Context(), model.ReviewCreateRequest{
		GoalID:     goalID,
		ReviewType: t,
		Answers:    answers,
	})
	if !ok {
		h.renderCreateAgain(w, r, goalID, g, t, answers, "評価を作成できませんでした。")
		return
	}

	h.logger.Info("review created",
		slog.String("review_id", created.ID),
		slog.String("review_type", string(t)),
	)

	switch {
	case (t == model.ReviewTypeManager || t == model.ReviewTypePotential) && user.IsManager:
		flash(r, session.FlashSuccess, "評価を作成しました。続けて確定してください。")
		redirect(w, r, "/reviews/complete-manager/"+url.PathEscape(created.ID))
	case t == model.ReviewTypeSelf:
		flash(r, session.FlashSuccess, "自己評価を作成しました。")
		redirect(w, r, "/analytics/goal/"+url.PathEscape(goalID))
	default:
		flash(r, session.FlashSuccess, "評価を作成しました。")
		redirect(w, r, goalPath(goalID))
	}
}

func (h *ReviewHandler) renderCreateAgain(w http.ResponseWriter, r *http.Request, goalID string, g *model.Goal, t model.ReviewType, answers []model.Answer, message string) {
	page := ReviewCreatePage{GoalID: goalID, ReviewType: t, Answers: answers, GoalTitle: "不明なゴール"}
	if g != nil {
		page.GoalTitle = g.Title
	}
	if t != "" {
		page.Questions, _ = scope(r).Reviews.QuestionsFor(r.Context(), t)
	}
	h.view.Form(w, r, "review_create", "評価の作成", page, map[string]string{"": message})
}

// Completed は確定済みの評価一覧。マネージャーはすべて、それ以外は自分が評価者のものだけを表示する。
// GET /reviews/completed
func (h *ReviewHandler) Completed(w http.ResponseWriter, r *http.Request) {
	sc := scope(r)
	user := sc.Auth.CurrentUser()
	all, _ := sc.Reviews.List(r.Context())

	completed := make([]model.Review, 0, len(all))
	for _, rv := range all {
		if rv.IsFinalized() && (user.IsManager || rv.ReviewerID == user.ID) {
			completed = append(completed, rv)
		}
	}
	h.view.Page(w, r, http.StatusOK, "reviews_completed", "確定済みの評価", completed)
}

// SelfAssessments は自分の自己評価一覧。
// GET /reviews/self-assessments
func (h *ReviewHandler) SelfAssessments(w http.ResponseWriter, r *http.Request) {
	sc := scope(r)
	user := sc.Auth.CurrentUser()
	all, _ := sc.Reviews.List(r.Context())

	mine := make([]model.Review, 0, len(all))
	for _, rv := range all {
		if rv.ReviewerID == user.ID && rv.ReviewType == model.ReviewTypeSelf {
			mine = append(mine, rv)
		}
	}
	h.view.Page(w, r, http.StatusOK, "self_assessments", "自己評価", mine)
}

// Details は回答付きの評価詳細。
// GET /reviews/{id}
func (h *ReviewHandler) Details(w http.ResponseWriter, r *http.Request) {
	rv, ok := scope(r).Reviews.GetWithAnswers(r.Context(), chi.URLParam(r, "id"))
	if !ok {
		flash(r, session.FlashError, "評価が見つかりません。")
		redirect(w, r, "/goals")
		return
	}
	h.view.Page(w, r, http.StatusOK, "review_details", "評価の詳細", rv)
}

// Finalize は最終評価を確定する（AJAX）。
// POST /reviews/{id}/final
func (h *ReviewHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	upd := model.FinalReviewUpdate{
		FinalRating:   h.san.Text(r.PostFormValue("final_rating")),
		FinalFeedback: h.san.Text(r.PostFormValue("final_feedback")),
	}
	if upd.FinalRating == "" {
		writeFailure(w, "最終評価を選択してください。")
		return
	}
	if _, ok := scope(r).Reviews.Finalize(r.Context(), chi.URLParam(r, "id"), upd); !ok {
		writeFailure(w, "評価を確定できませんでした。")
		return
	}
	writeSuccess(w, "評価を確定しました。", nil)
}

// PendingScores は評価内の採点待ち質問（AJAX）。
// GET /reviews/{id}/pending-manager-scores
func (h *ReviewHandler) PendingScores(w http.ResponseWriter, r *http.Request) {
	scores, ok := scope(r).Reviews.PendingManagerScores(r.Context(), chi.URLParam(r, "id"))
	if !ok {
		writeFailure(w, "採点待ちの質問を取得できませんでした。")
		return
	}
	writeSuccess(w, "", pendingScoreViews(scores))
}

// PendingManager は上長の採点待ちの評価一覧。
// GET /reviews/pending-manager
func (h *ReviewHandler) PendingManager(w http.ResponseWriter, r *http.Request) {
	reviews, ok := scope(r).Reviews.PendingManagerReviews(r.Context())
	if !ok {
		flash(r, session.FlashError, "採点待ちの評価を取得できませんでした。")
	}
	h.view.Page(w, r, http.StatusOK, "pending_manager", "採点待ちの評価", reviews)
}

// CompleteManagerPage は上長の採点・確定フォーム。
// GET /reviews/complete-manager/{id}
func (h *ReviewHandler) CompleteManagerPage(w http.ResponseWriter, r *http.Request) {
	page, ok := h.managerScoringPage(r, chi.URLParam(r, "id"))
	if !ok {
		flash(r, session.FlashError, "評価が見つかりません。")
		redirect(w, r, "/reviews/pending-manager")
		return
	}
	h.view.Page(w, r, http.StatusOK, "complete_manager", "評価の確定", page)
}

func (h *ReviewHandler) managerScoringPage(r *http.Request, id string) (ManagerScoringPage, bool) {
	sc := scope(r)
	rv, ok := sc.Reviews.Get(r.Context(), id)
	if !ok {
		return ManagerScoringPage{}, false
	}
	pending, _ := sc.Reviews.PendingManagerScores(r.Context(), id)
	return ManagerScoringPage{Review: rv, PendingQuestions: pending}, true
}

// CompleteManager は採点を保存してから評価を確定し、ゴールの分析画面へ移動する。
// 採点の保存に失敗しても確定は続行し、警告を表示する。
// POST /reviews/complete-manager/{id}
func (h *ReviewHandler) CompleteManager(w http.ResponseWriter, r *http.Request) {
	sc := scope(r)
	id := chi.URLParam(r, "id")
	r.ParseForm()

	upd := model.FinalReviewUpdate{
		FinalRating:   h.san.Text(r.PostForm.Get("final_rating")),
		FinalFeedback: h.san.Text(r.PostForm.Get("final_feedback")),
	}
	if upd.FinalRating == "" {
		page, ok := h.managerScoringPage(r, id)
		if !ok {
			flash(r, session.FlashError, "評価が見つかりません。")
			redirect(w, r, "/reviews/pending-manager")
			return
		}
		page.FinalFeedback = upd.FinalFeedback
		h.view.Form(w, r, "complete_manager", "評価の確定", page, map[string]string{
			"final_rating": "最終評価を選択してください。",
		})
		return
	}

	if res, ok := sc.Reviews.ScoreManagerQuestions(r.Context(), id, parseAnswers(r.PostForm, h.san)); !ok || !res.OK() {
		flash(r, session.FlashWarning, "採点を保存できませんでした。")
	}

	finalized, ok := sc.Reviews.Finalize(r.Context(), id, upd)
	if !ok {
		flash(r, session.FlashError, "評価を確定できませんでした。")
		redirect(w, r, "/reviews/complete-manager/"+url.PathEscape(id))
		return
	}

	h.logger.Info("review finalized", slog.String("review_id", id))
	flash(r, session.FlashSuccess, "評価を確定しました。")
	redirect(w, r, "/analytics/goal/"+url.PathEscape(finalized.GoalID))
}

// managerScoreInput は score-manager-questions にJSONで送られる1件分の採点。
type managerScoreInput struct {
	QuestionID string   `json:"question_id"`
	Score      *float64 `json:"score"`
	Feedback   string   `json:"feedback"`
}

// ScoreManagerQuestions は採点だけを保存する（AJAX）。
// POST /reviews/{id}/score-manager-questions
func (h *ReviewHandler) ScoreManagerQuestions(w http.ResponseWriter, r *http.Request) {
	var in []managerScoreInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeFailure(w, "採点の形式が正しくありません。")
		return
	}
	answers := make([]model.Answer, 0, len(in))
	for _, s := range in {
		answers = append(answers, model.Answer{
			QuestionID: strings.TrimSpace(s.QuestionID),
			Score:      s.Score,
			Answer:     h.san.Text(s.Feedback),
		})
	}

	res, ok := scope(r).Reviews.ScoreManagerQuestions(r.Context(), chi.URLParam(r, "id"), answers)
	if !ok || !res.OK() {
		writeFailure(w, "採点を保存できませんでした。")
		return
	}
	writeSuccess(w, "採点を保存しました。", nil)
}

// pendingScoreView は採点待ち質問のJSON表現。
type pendingScoreView struct {
	QuestionID   string   `json:"question_id"`
	QuestionText string   `json:"question_text"`
	QuestionType string   `json:"question_type,omitempty"`
	Section      string   `json:"section,omitempty"`
	Answer       string   `json:"answer,omitempty"`
	CurrentScore *float64 `json:"current_score"`
	Weight       float64  `json:"weight"`
	MaxScore     int      `json:"max_score"`
}

func pendingScoreViews(scores []model.PendingScore) []pendingScoreView {
	out := make([]pendingScoreView, 0, len(scores))
	for _, s := range scores {
		out = append(out, pendingScoreView(s))
	}
	return out
}

func goalPath(id string) string {
	return "/goals/" + url.PathEscape(id)
}
