package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/perfreview/internal/model"
	"github.com/hitoshi/perfreview/internal/session"
)

// AnalyticsHandler は分析画面を扱う。
type AnalyticsHandler struct {
	view *Renderer
}

// NewAnalyticsHandler はAnalyticsHandlerを生成する。
func NewAnalyticsHandler(view *Renderer) *AnalyticsHandler {
	return &AnalyticsHandler{view: view}
}

// Index はログインユーザーの分析サマリー。取得できなければ空のサマリーを表示する。
// GET /analytics
func (h *AnalyticsHandler) Index(w http.ResponseWriter, r *http.Request) {
	sc := scope(r)
	summary, ok := sc.Analytics.EmployeeSummary(r.Context(), sc.Auth.CurrentUser().ID)
	if !ok {
		summary = &model.EmployeeSummary{}
	}
	h.view.Page(w, r, http.StatusOK, "analytics", "分析", summary)
}

// Goal はゴールの分析結果。確定済みの評価があれば最終評価とフィードバックを反映する。
// GET /analytics/goal/{goalId}
func (h *AnalyticsHandler) Goal(w http.ResponseWriter, r *http.Request) {
	ga, ok := scope(r).Analytics.Goal(r.Context(), chi.URLParam(r, "goalId"))
	if !ok {
		flash(r, session.FlashError, "このゴールの分析結果が見つかりません。")
		redirect(w, r, "/analytics")
		return
	}
	h.view.Page(w, r, http.StatusOK, "analytics_goal", ga.GoalTitle, ga)
}
