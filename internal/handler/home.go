package handler

import (
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/perfreview/internal/model"
	"github.com/hitoshi/perfreview/internal/session"
)

const minPasswordLength = 6

// HomeHandler はトップ・ダッシュボード・ログイン・登録・プロフィール画面を扱う。
type HomeHandler struct {
	view   *Renderer
	logger *slog.Logger
}

// NewHomeHandler はHomeHandlerを生成する。
func NewHomeHandler(view *Renderer, logger *slog.Logger) *HomeHandler {
	return &HomeHandler{view: view, logger: orDefault(logger)}
}

// LoginForm はログインフォームの入力値。
type LoginForm struct {
	Email string
}

// RegisterForm は登録フォームの入力値と上長の選択肢。
type RegisterForm struct {
	Email     string
	FullName  string
	IsManager bool
	ManagerID string
	Managers  []model.User
}

// DashboardData はダッシュボードの表示内容。
type DashboardData struct {
	Managers []model.User
}

// Index はトップページ。認証済みならダッシュボードへ移動する。
// GET /
func (h *HomeHandler) Index(w http.ResponseWriter, r *http.Request) {
	if scope(r).Auth.IsAuthenticated() {
		redirect(w, r, "/dashboard")
		return
	}
	h.view.Page(w, r, http.StatusOK, "index", "ようこそ", nil)
}

// Dashboard はダッシュボード。マネージャーには上長一覧も表示する。
// GET /dashboard
func (h *HomeHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	sc := scope(r)
	var data DashboardData
	if sc.Auth.IsManager() {
		data.Managers, _ = sc.Users.Managers(r.Context())
	}
	h.view.Page(w, r, http.StatusOK, "dashboard", "ダッシュボード", data)
}

// LoginPage はログインフォームを表示する。
// GET /login
func (h *HomeHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if scope(r).Auth.IsAuthenticated() {
		redirect(w, r, "/dashboard")
		return
	}
	h.view.Page(w, r, http.StatusOK, "login", "ログイン", LoginForm{})
}

// Login はログインを実行する。
// POST /login
func (h *HomeHandler) Login(w http.ResponseWriter, r *http.Request) {
	sc := scope(r)
	if sc.Auth.IsAuthenticated() {
		redirect(w, r, "/dashboard")
		return
	}

	email := strings.TrimSpace(r.PostFormValue("email"))
	password := r.PostFormValue("password")
	form := LoginForm{Email: email}

	errs := map[string]string{}
	if _, err := mail.ParseAddress(email); email == "" || err != nil {
		errs["email"] = "メールアドレスを正しく入力してください。"
	}
	if password == "" {
		errs["password"] = "パスワードを入力してください。"
	}
	if len(errs) > 0 {
		h.view.Form(w, r, "login", "ログイン", form, errs)
		return
	}

	if _, ok := sc.Auth.Login(r.Context(), email, password); !ok {
		h.view.Form(w, r, "login", "ログイン", form, map[string]string{
			"": "メールアドレスまたはパスワードが正しくありません。",
		})
		return
	}

	h.logger.Info("user logged in", slog.String("user_id", sc.Auth.CurrentUser().ID))
	redirect(w, r, "/dashboard")
}

// RegisterPage は登録フォームを表示する。
// GET /register
func (h *HomeHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	sc := scope(r)
	if sc.Auth.IsAuthenticated() {
		redirect(w, r, "/dashboard")
		return
	}
	managers, _ := sc.Users.Managers(r.Context())
	h.view.Page(w, r, http.StatusOK, "register", "ユーザー登録", RegisterForm{Managers: managers})
}

// Register はユーザーを登録し、続けて自動ログインする。
// 自動ログインに失敗した場合はログイン画面へ誘導する。
// POST /register
func (h *HomeHandler) Register(w http.ResponseWriter, r *http.Request) {
	sc := scope(r)
	if sc.Auth.IsAuthenticated() {
		redirect(w, r, "/dashboard")
		return
	}

	form := RegisterForm{
		Email:     strings.TrimSpace(r.PostFormValue("email")),
		FullName:  strings.TrimSpace(r.PostFormValue("full_name")),
		IsManager: r.PostFormValue("is_manager") == "true" || r.PostFormValue("is_manager") == "on",
		ManagerID: strings.TrimSpace(r.PostFormValue("manager_id")),
	}
	password := r.PostFormValue("password")

	errs := map[string]string{}
	if _, err := mail.ParseAddress(form.Email); form.Email == "" || err != nil {
		errs["email"] = "メールアドレスを正しく入力してください。"
	}
	if form.FullName == "" {
		errs["full_name"] = "氏名を入力してください。"
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		errs["password"] = "パスワードは6文字以上で入力してください。"
	}
	if password != r.PostFormValue("confirm_password") {
		errs["confirm_password"] = "パスワードが一致しません。"
	}
	if len(errs) > 0 {
		form.Managers, _ = sc.Users.Managers(r.Context())
		h.view.Form(w, r, "register", "ユーザー登録", form, errs)
		return
	}

	req := model.RegisterRequest{
		Email:     form.Email,
		FullName:  form.FullName,
		Password:  password,
		IsManager: form.IsManager,
	}
	if form.ManagerID != "" {
		id := form.ManagerID
		req.ManagerID = &id
	}

	if _, ok := sc.Auth.Register(r.Context(), req); !ok {
		form.Managers, _ = sc.Users.Managers(r.Context())
		h.view.Form(w, r, "register", "ユーザー登録", form, map[string]string{
			"": "登録に失敗しました。このメールアドレスは既に使われている可能性があります。",
		})
		return
	}

	if _, ok := sc.Auth.Login(r.Context(), form.Email, password); ok {
		redirect(w, r, "/dashboard")
		return
	}
	flash(r, session.FlashSuccess, "登録が完了しました。ログインしてください。")
	redirect(w, r, "/login")
}

// Logout はログアウトしてトップへ戻る。
// GET /logout
func (h *HomeHandler) Logout(w http.ResponseWriter, r *http.Request) {
	scope(r).Auth.Logout()
	redirect(w, r, "/")
}

// Profile は最新のプロフィールを取得して表示する。
// 取得できない場合はセッションが無効とみなしてログアウトする。
// GET /profile
func (h *HomeHandler) Profile(w http.ResponseWriter, r *http.Request) {
	sc := scope(r)
	u, ok := sc.Auth.RefreshProfile(r.Context())
	if !ok {
		sc.Auth.Logout()
		redirect(w, r, "/login")
		return
	}
	h.view.Page(w, r, http.StatusOK, "profile", "プロフィール", u)
}
