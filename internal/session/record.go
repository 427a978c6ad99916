// Package session はブラウザセッション単位の認証状態を管理する。
//
// セッションレコードはトークン、ユーザー、フラッシュメッセージを保持し、
// Store（メモリ、Redis、PostgreSQL）に保存される。ブラウザには署名付きの
// セッションIDだけをCookieで渡し、トークン自体はクライアントに出さない。
package session

import (
	"errors"

	"github.com/hitoshi/perfreview/internal/model"
)

// ErrNotFound はセッションが存在しないか期限切れであることを示す。
var ErrNotFound = errors.New("session not found")

// Flash は次の画面表示で一度だけ使われる通知メッセージ。
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// フラッシュメッセージの種類
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashWarning = "warning"
)

// Record はセッションストアに保存される状態。
type Record struct {
	Token   string      `json:"token,omitempty"`
	User    *model.User `json:"user,omitempty"`
	Flashes []Flash     `json:"flashes,omitempty"`
}

// Authenticated はトークンとユーザーの両方が揃っている場合に true を返す。
func (r *Record) Authenticated() bool {
	return r != nil && r.Token != "" && r.User != nil && r.User.ID != ""
}

// clone はスライスとユーザーを複製したコピーを返す。
func (r *Record) clone() *Record {
	if r == nil {
		return &Record{}
	}
	c := &Record{Token: r.Token}
	if r.User != nil {
		u := *r.User
		c.User = &u
	}
	if len(r.Flashes) > 0 {
		c.Flashes = append([]Flash(nil), r.Flashes...)
	}
	return c
}
