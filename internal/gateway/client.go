// Package gateway はバックエンドAPIへの全呼び出しを仲介するクライアントを提供する。
//
// Client はプロセス全体で共有するHTTPクライアントで、Bind によって
// リクエストごとの Conn を生成する。Conn はベアラートークンのミラーを保持し、
// 呼び出しのたびにセッション側のトークンと突き合わせる。
// 呼び出しの失敗はすべて ok=false（不在）として返し、エラーは境界の外に出さない。
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/perfreview/internal/apilog"
	"github.com/hitoshi/perfreview/internal/logger"
)

const (
	// DefaultTimeout はバックエンド呼び出しのタイムアウト。
	DefaultTimeout = 30 * time.Second
	// authPathPrefix は認証エンドポイントのパス接頭辞。
	// このパスでの401はセッションを破棄しない。
	authPathPrefix = "auth/"
	// maxResponseBytes はレスポンスボディの読み取り上限。
	maxResponseBytes = 10 << 20
)

var (
	// ErrCrossOriginRedirect はリダイレクト先がバックエンドと異なるオリジンだったことを示す。
	ErrCrossOriginRedirect = errors.New("gateway: cross-origin redirect refused")
	// ErrTooManyRedirects は再発行後に再びリダイレクトされたことを示す。
	ErrTooManyRedirects = errors.New("gateway: too many redirects")
)

// Metrics はゲートウェイが記録するメトリクスのインターフェース。
type Metrics interface {
	RecordAPICall(method string, statusCode int, duration time.Duration)
	RecordAuthPurge()
}

type noopMetrics struct{}

func (noopMetrics) RecordAPICall(string, int, time.Duration) {}
func (noopMetrics) RecordAuthPurge()                         {}

// Config はClientの設定。
type Config struct {
	// BaseURL はバックエンドAPIのベースURL（例: http://localhost:8000/api/v1/）。
	BaseURL string
	// Timeout は1回の呼び出しのタイムアウト。0の場合はDefaultTimeout。
	Timeout time.Duration
	// HTTPClient はテスト用に差し替えるHTTPクライアント。nilなら新規生成する。
	HTTPClient *http.Client
}

// Client はバックエンドAPIクライアント。
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logs       *apilog.Buffer
	metrics    Metrics
	logger     *slog.Logger
}

// NewClient はClientを生成する。
// 自動リダイレクト追従は無効化し、307/308はDo内で明示的に再発行する。
func NewClient(cfg Config, logs *apilog.Buffer, metrics Metrics, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid API base URL scheme: %q", base.Scheme)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var hc http.Client
	if cfg.HTTPClient != nil {
		hc = *cfg.HTTPClient
	}
	hc.Timeout = timeout
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    base,
		httpClient: &hc,
		logs:       logs,
		metrics:    metrics,
		logger:     logger,
	}, nil
}

// BaseURL は正規化済みのベースURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Logs は呼び出しログのバッファを返す。
func (c *Client) Logs() *apilog.Buffer {
	return c.logs
}

// resolve はバックエンド相対パスを絶対URLに変換する。
func (c *Client) resolve(path string) (*url.URL, error) {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid API path %q: %w", path, err)
	}
	return c.baseURL.ResolveReference(ref), nil
}

// sameOrigin はURLがバックエンドと同一オリジンかを判定する。
func (c *Client) sameOrigin(u *url.URL) bool {
	return strings.EqualFold(u.Scheme, c.baseURL.Scheme) && strings.EqualFold(u.Host, c.baseURL.Host)
}

// send は1回分のHTTPリクエストを送信し、ステータスとボディを返す。
func (c *Client) send(ctx context.Context, method string, target *url.URL, body []byte, token string) (*http.Response, []byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), reader)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if id := logger.RequestID(ctx); id != "" {
		req.Header.Set(logger.RequestIDHeader, id)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp, data, nil
}

// exchange はリクエストを送信し、307/308であれば同じメソッド・ボディ・資格情報で1回だけ再発行する。
func (c *Client) exchange(ctx context.Context, method string, target *url.URL, body []byte, token string) (*http.Response, []byte, error) {
	resp, data, err := c.send(ctx, method, target, body, token)
	if err != nil {
		return resp, data, err
	}
	if !isReissueRedirect(resp.StatusCode) {
		return resp, data, nil
	}

	loc, err := resp.Location()
	if err != nil {
		return resp, data, fmt.Errorf("redirect without location: %w", err)
	}
	if !c.sameOrigin(loc) {
		return resp, data, fmt.Errorf("%w: %s", ErrCrossOriginRedirect, loc.Host)
	}

	c.logger.Debug("リダイレクト先に再送信します",
		slog.String("method", method),
		slog.Int("status", resp.StatusCode),
		slog.String("location", loc.String()),
	)

	resp, data, err = c.send(ctx, method, loc, body, token)
	if err != nil {
		return resp, data, err
	}
	if isReissueRedirect(resp.StatusCode) {
		return resp, data, ErrTooManyRedirects
	}
	return resp, data, nil
}

func isReissueRedirect(status int) bool {
	return status == http.StatusTemporaryRedirect || status == http.StatusPermanentRedirect
}

func isAuthPath(path string) bool {
	return strings.HasPrefix(strings.TrimPrefix(path, "/"), authPathPrefix)
}

// decode はレスポンスボディをoutにデコードする。
func decode(data []byte, out any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.New("empty response body")
	}
	return json.Unmarshal(data, out)
}
