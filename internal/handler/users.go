package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/perfreview/internal/model"
)

// UserHandler はユーザーのプロフィールと上長の割り当てを扱う。
type UserHandler struct {
	view   *Renderer
	logger *slog.Logger
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(view *Renderer, logger *slog.Logger) *UserHandler {
	return &UserHandler{view: view, logger: orDefault(logger)}
}

// ProfileView はプロフィール画面の表示内容。
type ProfileView struct {
	User        model.User
	ManagerName string
	IsSelf      bool
}

// assignManagerRequest は check-user・assign-manager のリクエストボディ。
type assignManagerRequest struct {
	UserID    string `json:"user_id"`
	ManagerID string `json:"manager_id"`
}

// userSummary は check-user の応答に含めるユーザー情報。
type userSummary struct {
	ID        string `json:"id"`
	FullName  string `json:"full_name"`
	Email     string `json:"email"`
	IsManager bool   `json:"is_manager"`
	IsActive  bool   `json:"is_active"`
}

// Profile は自分のプロフィール。
// GET /users/profile
func (h *UserHandler) Profile(w http.ResponseWriter, r *http.Request) {
	h.renderProfile(w, r, *scope(r).Auth.CurrentUser(), true)
}

// ProfileByID は指定ユーザーのプロフィール。本人かマネージャーのみ閲覧できる。
// GET /users/profile/{id}
func (h *UserHandler) ProfileByID(w http.ResponseWriter, r *http.Request) {
	sc := scope(r)
	current := sc.Auth.CurrentUser()
	id := chi.URLParam(r, "id")

	if current.ID == id {
		h.renderProfile(w, r, *current, true)
		return
	}
	if !current.IsManager {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	u, ok := sc.Users.Get(r.Context(), id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	h.renderProfile(w, r, *u, false)
}

func (h *UserHandler) renderProfile(w http.ResponseWriter, r *http.Request, u model.User, self bool) {
	view := ProfileView{User: u, IsSelf: self}
	if u.HasManager() {
		managers, _ := scope(r).Users.Managers(r.Context())
		for _, m := range managers {
			if m.ID == *u.ManagerID {
				view.ManagerName = m.FullName
				break
			}
		}
	}
	h.view.Page(w, r, http.StatusOK, "user_profile", "プロフィール", view)
}

// Managers はマネージャー一覧。
// GET /users/managers
func (h *UserHandler) Managers(w http.ResponseWriter, r *http.Request) {
	managers, _ := scope(r).Users.Managers(r.Context())
	h.view.Page(w, r, http.StatusOK, "managers", "マネージャー一覧", managers)
}

// Subordinates は部下一覧。
// GET /users/subordinates
func (h *UserHandler) Subordinates(w http.ResponseWriter, r *http.Request) {
	subs, _ := scope(r).Users.Subordinates(r.Context())
	h.view.Page(w, r, http.StatusOK, "subordinates", "部下一覧", subs)
}

// CheckUser はユーザーIDの存在を確認する（AJAX）。
// POST /users/check-user
func (h *UserHandler) CheckUser(w http.ResponseWriter, r *http.Request) {
	var req assignManagerRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.UserID) == "" {
		writeFailure(w, "ユーザーIDを指定してください。")
		return
	}
	u, ok := scope(r).Users.Get(r.Context(), strings.TrimSpace(req.UserID))
	if !ok {
		writeFailure(w, "指定されたIDのユーザーが見つかりません。")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user": userSummary{
			ID:        u.ID,
			FullName:  u.FullName,
			Email:     u.Email,
			IsManager: u.IsManager,
			IsActive:  u.IsActive,
		},
	})
}

// AssignManager はログイン中のマネージャー自身を指定ユーザーの上長にする（AJAX）。
// POST /users/assign-manager
func (h *UserHandler) AssignManager(w http.ResponseWriter, r *http.Request) {
	sc := scope(r)
	current := sc.Auth.CurrentUser()

	var req assignManagerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, "リクエストの形式が正しくありません。")
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)
	if req.ManagerID != current.ID {
		writeFailure(w, "上長には自分自身のみ設定できます。")
		return
	}

	target, ok := sc.Users.Get(r.Context(), req.UserID)
	if !ok {
		writeFailure(w, "指定されたIDのユーザーが見つかりません。")
		return
	}
	if target.ID == req.ManagerID {
		writeFailure(w, "自分自身を自分の上長にはできません。")
		return
	}

	if !sc.Users.AssignManager(r.Context(), req.UserID, req.ManagerID) {
		writeFailure(w, "上長を設定できませんでした。")
		return
	}

	h.logger.Info("manager assigned",
		slog.String("user_id", target.ID),
		slog.String("manager_id", req.ManagerID),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"message":  target.FullName + " さんの上長に設定しました。",
		"userName": target.FullName,
	})
}

// Details はユーザー詳細。本人かマネージャーのみ閲覧できる。
// GET /users/{id}
func (h *UserHandler) Details(w http.ResponseWriter, r *http.Request) {
	sc := scope(r)
	current := sc.Auth.CurrentUser()
	id := chi.URLParam(r, "id")

	if !current.IsManager && current.ID != id {
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}
	u, ok := sc.Users.Get(r.Context(), id)
	if !ok {
		http.NotFound(w, r)
		return
	}
	h.view.Page(w, r, http.StatusOK, "user_details", u.FullName, u)
}
