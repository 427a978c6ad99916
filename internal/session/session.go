package session

import (
	"context"
	"sync"

	"github.com/hitoshi/perfreview/internal/model"
)

type contextKey struct{}

// Session は1リクエスト分のセッションハンドル。
// gateway.TokenStore を実装し、リクエストスコープでゲートウェイに渡される。
type Session struct {
	mu        sync.Mutex
	id        string
	rec       *Record
	loaded    bool
	dirty     bool
	committed bool
	// regenerate は保存時に新しいIDを発行し、旧IDのレコードを削除する。
	regenerate bool
}

// newSession は空のセッションハンドルを生成する。
func newSession() *Session {
	return &Session{rec: &Record{}}
}

// NewContext はセッションハンドルを格納したコンテキストを返す。
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext はコンテキストからセッションハンドルを取り出す。
// ミドルウェアを通っていない場合はnilを返す。
func FromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(contextKey{}).(*Session)
	return s
}

// NewDetached はストアに紐付かないセッションハンドルを生成する。
// テストやバックグラウンド処理で使用する。
func NewDetached(rec *Record) *Session {
	s := newSession()
	if rec != nil {
		s.rec = rec.clone()
	}
	return s
}

// ID はセッションIDを返す。未保存の新規セッションでは空文字を返す。
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Token は保持しているベアラートークンを返す。
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Token
}

// SetToken はトークンを設定する。
func (s *Session) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec.Token == token {
		return
	}
	s.rec.Token = token
	s.dirty = true
}

// User は現在のユーザーのコピーを返す。未設定ならnil。
func (s *Session) User() *model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec.User == nil {
		return nil
	}
	u := *s.rec.User
	return &u
}

// SetUser はユーザーを置き換える。
func (s *Session) SetUser(u *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u == nil {
		s.rec.User = nil
	} else {
		c := *u
		s.rec.User = &c
	}
	s.dirty = true
}

// SetAuth はトークンとユーザーを同時に設定する。
func (s *Session) SetAuth(token string, u *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Token = token
	if u == nil {
		s.rec.User = nil
	} else {
		c := *u
		s.rec.User = &c
	}
	s.dirty = true
}

// ClearAuth はトークンとユーザーを同時に破棄する。
func (s *Session) ClearAuth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rec.Token == "" && s.rec.User == nil {
		return
	}
	s.rec.Token = ""
	s.rec.User = nil
	s.dirty = true
}

// Regenerate は保存時にセッションIDを新しく発行させる。
// 匿名から認証済みへ切り替わるときに呼び、ログイン前のIDを引き継がない。
func (s *Session) Regenerate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.regenerate = true
	s.dirty = true
}

// Authenticated はトークンとユーザーが揃っているかを返す。
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rec.Authenticated()
}

// AddFlash は次の表示で使うメッセージを追加する。
func (s *Session) AddFlash(kind, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rec.Flashes = append(s.rec.Flashes, Flash{Kind: kind, Message: message})
	s.dirty = true
}

// Flashes は保留中のメッセージを取り出して消去する。
func (s *Session) Flashes() []Flash {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.rec.Flashes) == 0 {
		return nil
	}
	f := s.rec.Flashes
	s.rec.Flashes = nil
	s.dirty = true
	return f
}

// Snapshot は現在のレコードのコピーを返す。
func (s *Session) Snapshot() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.rec.clone()
}
