package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/perfreview/internal/goal"
	"github.com/hitoshi/perfreview/internal/model"
	"github.com/hitoshi/perfreview/internal/security"
	"github.com/hitoshi/perfreview/internal/session"
)

// GoalHandler はゴールの画面とステータス変更を扱う。
type GoalHandler struct {
	view   *Renderer
	san    *security.Sanitizer
	now    func() time.Time
	loc    *time.Location
	logger *slog.Logger
}

// NewGoalHandler はGoalHandlerを生成する。locはフォームの締め切りを解釈するタイムゾーン。
func NewGoalHandler(view *Renderer, san *security.Sanitizer, loc *time.Location, logger *slog.Logger) *GoalHandler {
	if loc == nil {
		loc = time.Local
	}
	return &GoalHandler{view: view, san: san, now: time.Now, loc: loc, logger: orDefault(logger)}
}

// GoalCreatePage はゴール作成画面の表示内容。
type GoalCreatePage struct {
	Form        goal.CreateForm
	Respondents []model.User
}

// Index はログインユーザーのゴール一覧。
// GET /goals
func (h *GoalHandler) Index(w http.ResponseWriter, r *http.Request) {
	sc := scope(r)
	goals, _ := sc.Goals.ListByEmployee(r.Context(), sc.Auth.CurrentUser().ID)
	h.view.Page(w, r, http.StatusOK, "goals", "マイゴール", goals)
}

// CreatePage はゴール作成フォーム。
// GET /goals/create
func (h *GoalHandler) CreatePage(w http.ResponseWriter, r *http.Request) {
	sc := scope(r)
	h.view.Page(w, r, http.StatusOK, "goal_create", "ゴール作成", GoalCreatePage{
		Respondents: sc.Users.AvailableRespondents(r.Context(), sc.Auth.CurrentUser()),
	})
}

// Create はフォームを検証してゴールを作成する。
// POST /goals/create
func (h *GoalHandler) Create(w http.ResponseWriter, r *http.Request) {
	sc := scope(r)
	form := parseGoalForm(r)

	req, errs := form.Validate(h.san, h.now(), h.loc)
	if errs.Any() {
		h.renderCreateForm(w, r, form, errs)
		return
	}

	created, ok := sc.Goals.Create(r.Context(), req)
	if !ok {
		h.renderCreateForm(w, r, form, goal.FieldErrors{
			"": "ゴールを作成できませんでした。入力内容と権限を確認してください。",
		})
		return
	}

	h.logger.Info("goal created", slog.String("goal_id", created.ID))
	flash(r, session.FlashSuccess, "ゴールを作成しました。")
	redirect(w, r, "/goals")
}

func (h *GoalHandler) renderCreateForm(w http.ResponseWriter, r *http.Request, form goal.CreateForm, errs goal.FieldErrors) {
	sc := scope(r)
	h.view.Form(w, r, "goal_create", "ゴール作成", GoalCreatePage{
		Form:        form,
		Respondents: sc.Users.AvailableRespondents(r.Context(), sc.Auth.CurrentUser()),
	}, errs)
}

func parseGoalForm(r *http.Request) goal.CreateForm {
	r.ParseForm()
	form := goal.CreateForm{
		Title:          r.PostForm.Get("title"),
		Description:    r.PostForm.Get("description"),
		ExpectedResult: r.PostForm.Get("expected_result"),
		Deadline:       r.PostForm.Get("deadline"),
		TaskLink:       r.PostForm.Get("task_link"),
		RespondentIDs:  r.PostForm.Get("respondent_ids"),
	}
	titles := r.PostForm["step_title"]
	descriptions := r.PostForm["step_description"]
	for i, t := range titles {
		st := goal.StepForm{Title: t, OrderIndex: i}
		if i < len(descriptions) {
			st.Description = descriptions[i]
		}
		form.Steps = append(form.Steps, st)
	}
	return form
}

// Details はゴール詳細。
// GET /goals/{id}
func (h *GoalHandler) Details(w http.ResponseWriter, r *http.Request) {
	g, ok := scope(r).Goals.Get(r.Context(), chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	h.view.Page(w, r, http.StatusOK, "goal_details", g.Title, g)
}

// RespondentGoals は回答者として割り当てられたゴールの一覧。
// GET /goals/respondent
func (h *GoalHandler) RespondentGoals(w http.ResponseWriter, r *http.Request) {
	goals, _ := scope(r).Goals.ListForRespondent(r.Context())
	h.view.Page(w, r, http.StatusOK, "respondent_goals", "回答依頼", goals)
}

// RespondentGoalDetails は回答者向けのゴール詳細。
// GET /goals/respondent/{goalId}
func (h *GoalHandler) RespondentGoalDetails(w http.ResponseWriter, r *http.Request) {
	g, ok := scope(r).Goals.GetForRespondent(r.Context(), chi.URLParam(r, "goalId"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	h.view.Page(w, r, http.StatusOK, "respondent_goal_details", g.Title, g)
}

// Complete はゴールを完了にする。
// POST /goals/{goalId}/complete
func (h *GoalHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, model.GoalStatusCompleted, "ゴールを完了にしました。")
}

// Cancel はゴールを取り消す。
// POST /goals/{goalId}/cancel
func (h *GoalHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.setStatus(w, r, model.GoalStatusCancelled, "ゴールを取り消しました。")
}

func (h *GoalHandler) setStatus(w http.ResponseWriter, r *http.Request, status model.GoalStatus, message string) {
	if !scope(r).Goals.SetStatus(r.Context(), chi.URLParam(r, "goalId"), status) {
		writeFailure(w, "ゴールの状態を変更できませんでした。")
		return
	}
	writeSuccess(w, message, nil)
}
