package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hitoshi/perfreview/internal/apilog"
)

// TokenStore はセッション側のトークン保持領域。
// 1リクエスト分のセッションハンドルが実装する。
type TokenStore interface {
	Token() string
	SetToken(token string)
	// ClearAuth はトークンとユーザーを同時に破棄する。
	ClearAuth()
}

// Requester はドメインサービスが依存するAPI呼び出しインターフェース。
type Requester interface {
	Do(ctx context.Context, method, path string, body, out any, opts ...CallOption) bool
}

type callOptions struct {
	suppressAuthClear bool
}

// CallOption は1回の呼び出しの振る舞いを変更する。
type CallOption func(*callOptions)

// SuppressAuthClear は401を受けてもセッションを破棄しないよう指定する。
// バッジ更新のような投機的な呼び出しに使う。
func SuppressAuthClear() CallOption {
	return func(o *callOptions) {
		o.suppressAuthClear = true
	}
}

// SuppressesAuthClear はoptsにSuppressAuthClearが含まれるかを返す。
// Requesterの代替実装が呼び出しオプションを解釈するために使う。
func SuppressesAuthClear(opts ...CallOption) bool {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o.suppressAuthClear
}

// Conn は1リクエストのスコープでセッションに束縛されたゲートウェイ。
type Conn struct {
	client *Client
	store  TokenStore

	mu    sync.Mutex
	token string

	// clearing は401処理の再入を防ぐガード。
	clearing atomic.Bool
}

// Bind はセッションに束縛されたConnを返す。storeがnilの場合は匿名として扱う。
func (c *Client) Bind(store TokenStore) *Conn {
	return &Conn{client: c, store: store}
}

// Token はミラー中のトークンを返す。
func (c *Conn) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

// SetToken はミラーのトークンを設定する。セッションへの書き込みは行わない。
func (c *Conn) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// ClearToken はミラーのトークンを破棄する。
func (c *Conn) ClearToken() {
	c.SetToken("")
}

// reconcile はミラーとセッションのトークンを突き合わせ、送信に使うトークンを返す。
// セッション側が空でなければセッションを優先する。
// セッションが空でミラーだけが保持している場合はセッションへ書き戻す。
func (c *Conn) reconcile() string {
	var sessionToken string
	if c.store != nil {
		sessionToken = c.store.Token()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case sessionToken != "" && sessionToken != c.token:
		c.token = sessionToken
	case sessionToken == "" && c.token != "" && c.store != nil:
		c.store.SetToken(c.token)
	}
	return c.token
}

// handleUnauthorized はミラーとセッションの認証情報を破棄する。
// 同時に複数の401を受けても破棄処理は1回だけ走る。
func (c *Conn) handleUnauthorized(path string) {
	if !c.clearing.CompareAndSwap(false, true) {
		return
	}
	defer c.clearing.Store(false)

	c.ClearToken()
	if c.store != nil {
		c.store.ClearAuth()
	}
	c.client.metrics.RecordAuthPurge()
	c.client.logger.Warn("バックエンドが401を返したためセッションの認証情報を破棄しました",
		slog.String("path", path),
	)
}

// Do はバックエンドAPIを呼び出す。
// outがnilでない場合はレスポンスをデコードする。2xx以外、通信失敗、デコード失敗は false を返す。
// outがnilの場合は2xx（204含む）で true を返す。
func (c *Conn) Do(ctx context.Context, method, path string, body, out any, opts ...CallOption) bool {
	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	cl := c.client
	logs := cl.logs
	start := time.Now()

	target, err := cl.resolve(path)
	if err != nil {
		cl.logger.Error("APIパスの解決に失敗しました", slog.String("path", path), slog.String("error", err.Error()))
		logs.Record(apilog.Entry{Kind: apilog.KindError, Method: method, Path: path, Error: err.Error()})
		return false
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			cl.logger.Error("リクエストボディのエンコードに失敗しました", slog.String("path", path), slog.String("error", err.Error()))
			logs.Record(apilog.Entry{Kind: apilog.KindError, Method: method, Path: path, Error: err.Error()})
			return false
		}
	}

	token := c.reconcile()
	logs.Record(apilog.Entry{Kind: apilog.KindRequest, Method: method, Path: path, Body: string(payload)})

	resp, data, err := cl.exchange(ctx, method, target, payload, token)
	duration := time.Since(start)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		cl.metrics.RecordAPICall(method, status, duration)
		cl.logger.Warn("バックエンドAPIの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		logs.Record(apilog.Entry{
			Kind: apilog.KindError, Method: method, Path: path,
			StatusCode: status, Duration: duration, Error: err.Error(),
		})
		return false
	}

	cl.metrics.RecordAPICall(method, resp.StatusCode, duration)
	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	logs.Record(apilog.Entry{
		Kind: apilog.KindResponse, Method: method, Path: path, Body: string(data),
		StatusCode: resp.StatusCode, Success: success, Duration: duration,
	})

	if resp.StatusCode == http.StatusUnauthorized {
		if !isAuthPath(path) && !o.suppressAuthClear {
			c.handleUnauthorized(path)
		}
		return false
	}
	if !success {
		cl.logger.Info("バックエンドAPIがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode),
		)
		return false
	}

	if out == nil {
		return true
	}
	if resp.StatusCode == http.StatusNoContent {
		return false
	}
	if err := decode(data, out); err != nil {
		cl.logger.Warn("レスポンスのデコードに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return false
	}
	return true
}
