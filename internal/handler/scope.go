// Package handler は画面・AJAX・JSON APIのHTTPハンドラーを提供する。
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/perfreview/internal/analytics"
	"github.com/hitoshi/perfreview/internal/auth"
	"github.com/hitoshi/perfreview/internal/gateway"
	"github.com/hitoshi/perfreview/internal/goal"
	"github.com/hitoshi/perfreview/internal/notification"
	"github.com/hitoshi/perfreview/internal/review"
	"github.com/hitoshi/perfreview/internal/session"
	"github.com/hitoshi/perfreview/internal/user"
)

type scopeKey struct{}

// Scope は1リクエスト分の認証状態とドメインサービス。
// セッションミドルウェアの内側で一度だけ組み立て、各ハンドラーへ渡す。
type Scope struct {
	Session       *session.Session
	Conn          *gateway.Conn
	Auth          *auth.Facade
	Goals         *goal.Service
	Reviews       *review.Service
	Notifications *notification.Service
	Users         *user.Service
	Analytics     *analytics.Service
}

// NewScope はセッションに束縛されたゲートウェイからScopeを組み立てる。
func NewScope(sess *session.Session, api *gateway.Client, logger *slog.Logger) *Scope {
	conn := api.Bind(sess)
	reviews := review.NewService(conn)
	return &Scope{
		Session:       sess,
		Conn:          conn,
		Auth:          auth.NewFacade(sess, conn, logger),
		Goals:         goal.NewService(conn),
		Reviews:       reviews,
		Notifications: notification.NewService(conn),
		Users:         user.NewService(conn),
		Analytics:     analytics.NewService(conn, reviews),
	}
}

// NewScopeMiddleware はリクエストごとにScopeを生成してコンテキストに格納するミドルウェアを返す。
// session.Manager.Middleware の内側に配置する。
func NewScopeMiddleware(api *gateway.Client, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := session.FromContext(r.Context())
			if sess == nil {
				sess = session.NewDetached(nil)
			}
			sc := NewScope(sess, api, logger)
			next.ServeHTTP(w, r.WithContext(withScope(r.Context(), sc)))
		})
	}
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}

func withScope(ctx context.Context, sc *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, sc)
}

// ScopeFrom はコンテキストからScopeを取り出す。
func ScopeFrom(ctx context.Context) *Scope {
	sc, _ := ctx.Value(scopeKey{}).(*Scope)
	return sc
}

func scope(r *http.Request) *Scope {
	return ScopeFrom(r.Context())
}
