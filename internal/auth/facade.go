// Package auth はログイン・登録・ログアウトとセッション上の認証状態を扱う。
//
// Facade は1リクエストのスコープで生成され、セッションハンドルと
// ゲートウェイのトークンミラーを同時に更新する。
package auth

import (
	"context"
	"log/slog"

	"github.com/hitoshi/perfreview/internal/gateway"
	"github.com/hitoshi/perfreview/internal/model"
)

const (
	loginPath    = "auth/login"
	registerPath = "auth/register"
	profilePath  = "auth/me"
)

// SessionState はFacadeが読み書きするセッションの操作。
// *session.Session が実装する。
type SessionState interface {
	gateway.TokenStore
	User() *model.User
	SetUser(u *model.User)
	SetAuth(token string, u *model.User)
	Authenticated() bool
	Regenerate()
}

// TokenMirror はゲートウェイ側のトークンミラー。
// *gateway.Conn が実装する。
type TokenMirror interface {
	gateway.Requester
	SetToken(token string)
	ClearToken()
}

// Facade は匿名⇔認証済みの状態遷移を提供する。
type Facade struct {
	sess   SessionState
	conn   TokenMirror
	logger *slog.Logger
}

// NewFacade はFacadeを生成する。
func NewFacade(sess SessionState, conn TokenMirror, logger *slog.Logger) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{sess: sess, conn: conn, logger: logger}
}

// Login はバックエンドで認証し、成功時にトークンとユーザーをセッションとミラーへ書き込む。
// 成功時はセッションIDも再発行させる。
// 古い資格情報を送らないよう、呼び出し前に既存のトークンを破棄する。
func (f *Facade) Login(ctx context.Context, email, password string) (*model.AuthResponse, bool) {
	f.sess.ClearAuth()
	f.conn.ClearToken()

	resp, ok := gateway.Post[model.AuthResponse](ctx, f.conn, loginPath, model.LoginRequest{
		Email:    email,
		Password: password,
	})
	if !ok || resp.AccessToken == "" {
		f.logger.Info("login failed", slog.String("email", email))
		return nil, false
	}

	f.sess.Regenerate()
	f.sess.SetAuth(resp.AccessToken, &resp.User)
	f.conn.SetToken(resp.AccessToken)

	f.logger.Info("login succeeded", slog.String("user_id", resp.User.ID))
	return &resp, true
}

// Register はユーザーを登録する。認証状態は変更しない。
// 呼び出し側は続けて同じ資格情報でLoginを呼ぶ。
func (f *Facade) Register(ctx context.Context, req model.RegisterRequest) (*model.User, bool) {
	u, ok := gateway.Post[model.User](ctx, f.conn, registerPath, req)
	if !ok {
		return nil, false
	}
	return &u, true
}

// Logout はセッションとミラーの認証情報を破棄する。何度呼んでもよい。
func (f *Facade) Logout() {
	f.sess.ClearAuth()
	f.conn.ClearToken()
}

// CurrentUser はセッション上のユーザーを返す。ネットワーク呼び出しは行わない。
func (f *Facade) CurrentUser() *model.User {
	if !f.sess.Authenticated() {
		return nil
	}
	return f.sess.User()
}

// IsAuthenticated はセッションが認証済みかを返す。
func (f *Facade) IsAuthenticated() bool {
	return f.sess.Authenticated()
}

// IsManager は認証済みかつマネージャーかを返す。
func (f *Facade) IsManager() bool {
	u := f.CurrentUser()
	return u != nil && u.IsManager
}

// Token はセッションが保持するトークンを返す。
func (f *Facade) Token() string {
	return f.sess.Token()
}

// RefreshProfile はバックエンドから最新のユーザーを取得してセッションを更新する。
// 失敗した場合、呼び出し側はセッションが無効とみなしてLogoutする。
func (f *Facade) RefreshProfile(ctx context.Context) (*model.User, bool) {
	if !f.sess.Authenticated() {
		return nil, false
	}
	u, ok := gateway.Get[model.User](ctx, f.conn, profilePath)
	if !ok || u.ID == "" {
		return nil, false
	}
	f.sess.SetUser(&u)
	return &u, true
}

// UpdateUser はセッション上のユーザーを置き換える。
// 認証済みでない場合は何もしない。
func (f *Facade) UpdateUser(u *model.User) bool {
	if u == nil || !f.sess.Authenticated() {
		return false
	}
	f.sess.SetUser(u)
	return true
}
