package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/perfreview/internal/model"
	"github.com/hitoshi/perfreview/internal/security"
)

// GoalStepHandler はゴールのステップ操作（AJAX）を扱う。
type GoalStepHandler struct {
	san *security.Sanitizer
}

// NewGoalStepHandler はGoalStepHandlerを生成する。
func NewGoalStepHandler(san *security.Sanitizer) *GoalStepHandler {
	return &GoalStepHandler{san: san}
}

// stepRequest はフォームまたはJSONで送られたステップ入力を読み取る。
func (h *GoalStepHandler) stepRequest(w http.ResponseWriter, r *http.Request) (model.GoalStepCreateReq, bool) {
	var req model.GoalStepCreateReq
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := decodeJSON(w, r, &req); err != nil {
			return req, false
		}
	} else {
		req.Title = r.PostFormValue("title")
		req.Description = r.PostFormValue("description")
		if v := r.PostFormValue("order_index"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return req, false
			}
			req.OrderIndex = n
		}
	}
	req.Title = h.san.Text(req.Title)
	req.Description = h.san.Text(req.Description)
	return req, req.Title != ""
}

// Create はステップを追加する。
// POST /goal-steps/create/{goalId}
func (h *GoalStepHandler) Create(w http.ResponseWriter, r *http.Request) {
	req, ok := h.stepRequest(w, r)
	if !ok {
		writeFailure(w, "タイトルを入力してください。")
		return
	}
	step, created := scope(r).Goals.CreateStep(r.Context(), chi.URLParam(r, "goalId"), req)
	stepResponse(w, step, created)
}

// Update はステップを更新する。
// POST /goal-steps/update/{stepId}
func (h *GoalStepHandler) Update(w http.ResponseWriter, r *http.Request) {
	req, ok := h.stepRequest(w, r)
	if !ok {
		writeFailure(w, "タイトルを入力してください。")
		return
	}
	step, updated := scope(r).Goals.UpdateStep(r.Context(), chi.URLParam(r, "stepId"), req)
	stepResponse(w, step, updated)
}

// Delete はステップを削除する。
// POST /goal-steps/delete/{stepId}
func (h *GoalStepHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !scope(r).Goals.DeleteStep(r.Context(), chi.URLParam(r, "stepId")) {
		writeFailure(w, "ステップを削除できませんでした。")
		return
	}
	writeSuccess(w, "ステップを削除しました。", nil)
}

// Complete はステップを完了にする。
// POST /goal-steps/complete/{stepId}
func (h *GoalStepHandler) Complete(w http.ResponseWriter, r *http.Request) {
	step, ok := scope(r).Goals.CompleteStep(r.Context(), chi.URLParam(r, "stepId"))
	stepResponse(w, step, ok)
}

// Incomplete はステップを未完了に戻す。
// POST /goal-steps/incomplete/{stepId}
func (h *GoalStepHandler) Incomplete(w http.ResponseWriter, r *http.Request) {
	step, ok := scope(r).Goals.IncompleteStep(r.Context(), chi.URLParam(r, "stepId"))
	stepResponse(w, step, ok)
}

func stepResponse(w http.ResponseWriter, step *model.GoalStep, ok bool) {
	if !ok {
		writeFailure(w, "ステップを更新できませんでした。")
		return
	}
	writeSuccess(w, "", step)
}
