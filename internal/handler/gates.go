package handler

import (
	"net/http"

	"github.com/hitoshi/perfreview/internal/middleware"
	"github.com/hitoshi/perfreview/internal/model"
)

// ゲートはセッション上の状態だけで判定し、失敗時はバックエンドを一切呼ばない。

const (
	msgLoginRequired   = "ログインが必要です。"
	msgManagerRequired = "この操作はマネージャーのみ実行できます。"
)

// requirePageAuth は未認証の画面リクエストを /login へリダイレクトする。
func requirePageAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !scope(r).Auth.IsAuthenticated() {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAjaxAuth は未認証のAJAXリクエストに {success:false} を返す。
func requireAjaxAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !scope(r).Auth.IsAuthenticated() {
			writeFailure(w, msgLoginRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAPIAuth は未認証のJSON APIリクエストに401を返す。
func requireAPIAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !scope(r).Auth.IsAuthenticated() {
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireManager は認証済みかつマネージャーでなければ403を返す。
// 認証ゲートの内側に配置する。
func requireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !scope(r).Auth.IsManager() {
			if middleware.WantsJSON(r) {
				middleware.WriteErrorResponse(w, http.StatusForbidden, model.NewForbiddenError())
				return
			}
			http.Error(w, msgManagerRequired, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAjaxManager はマネージャー以外のAJAXリクエストに {success:false} を返す。
func requireAjaxManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !scope(r).Auth.IsManager() {
			writeFailure(w, msgManagerRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}
