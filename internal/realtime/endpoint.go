package realtime

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"

	"github.com/hitoshi/perfreview/internal/gateway"
	"github.com/hitoshi/perfreview/internal/notification"
	"github.com/hitoshi/perfreview/internal/session"
)

const (
	defaultHeartbeatInterval = 30 * time.Second
	defaultHeartbeatTimeout  = 10 * time.Second
	defaultWriteTimeout      = 10 * time.Second
	defaultReadLimit         = 4096
	maxPingFailures          = 3
)

// 呼び出し失敗時にクライアントへ返すエラー文字列
const (
	errUnauthenticated = "unauthenticated"
	errUnknownMethod   = "unknown method"
	errBadArguments    = "invalid arguments"
	errBackendFailed   = "backend call failed"
)

// Sessions はセッションの読み書き。*session.Manager が実装する。
type Sessions interface {
	LoadRequest(r *http.Request) (string, *session.Record, error)
	Load(ctx context.Context, id string) (*session.Record, error)
	Save(ctx context.Context, id string, rec *session.Record) error
}

// EndpointConfig はWebSocketエンドポイントの設定。
type EndpointConfig struct {
	// OriginPatterns はリクエストホスト以外に許可するOriginのホストパターン。
	OriginPatterns    []string
	SendQueueSize     int
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	WriteTimeout      time.Duration
	ReadLimit         int64
}

func (c EndpointConfig) withDefaults() EndpointConfig {
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = DefaultSendQueueSize
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.HeartbeatTimeout <= 0 {
		c.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = defaultWriteTimeout
	}
	if c.ReadLimit <= 0 {
		c.ReadLimit = defaultReadLimit
	}
	return c
}

// Endpoint は /notificationHub のWebSocketハンドラー。
type Endpoint struct {
	hub      *Hub
	sessions Sessions
	api      *gateway.Client
	cfg      EndpointConfig
	logger   *slog.Logger
}

// NewEndpoint はEndpointを生成する。
func NewEndpoint(hub *Hub, sessions Sessions, api *gateway.Client, cfg EndpointConfig, logger *slog.Logger) *Endpoint {
	if logger == nil {
		logger = slog.Default()
	}
	return &Endpoint{
		hub:      hub,
		sessions: sessions,
		api:      api,
		cfg:      cfg.withDefaults(),
		logger:   logger,
	}
}

// ServeHTTP は接続をアップグレードし、切断までメッセージを処理する。
// 接続時点で認証済みのセッションだけがユーザーのグループに入る。
func (e *Endpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID, rec, err := e.sessions.LoadRequest(r)
	if err != nil && !errors.Is(err, session.ErrNotFound) {
		e.logger.Error("failed to load session for realtime connection",
			slog.String("error", err.Error()),
		)
	}
	var userID string
	if err == nil && rec.Authenticated() {
		userID = rec.User.ID
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: e.cfg.OriginPatterns,
	})
	if err != nil {
		e.logger.Info("websocket accept failed",
			slog.String("origin", r.Header.Get("Origin")),
			slog.String("error", err.Error()),
		)
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(e.cfg.ReadLimit)

	client := NewClient(uuid.NewString(), userID, sessionID, e.cfg.SendQueueSize)
	e.hub.Register(client)
	defer e.hub.Unregister(client)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		e.writeLoop(ctx, cancel, conn, client)
	}()
	go func() {
		defer wg.Done()
		e.heartbeat(ctx, cancel, conn, client)
	}()

	e.readLoop(ctx, conn, client)

	client.Close()
	cancel()
	wg.Wait()
	conn.Close(websocket.StatusNormalClosure, "")
}

func (e *Endpoint) readLoop(ctx context.Context, conn *websocket.Conn, client *Client) {
	for {
		var msg Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				e.logger.Debug("realtime read ended",
					slog.String("client_id", client.ID),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		if msg.Type != TypeInvoke {
			continue
		}
		e.invoke(ctx, client, msg)
	}
}

func (e *Endpoint) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, client *Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
			return
		case msg := <-client.Send:
			wctx, wcancel := context.WithTimeout(ctx, e.cfg.WriteTimeout)
			err := wsjson.Write(wctx, conn, msg)
			wcancel()
			if err != nil {
				e.logger.Info("realtime write failed",
					slog.String("client_id", client.ID),
					slog.String("error", err.Error()),
				)
				cancel()
				return
			}
		}
	}
}

func (e *Endpoint) heartbeat(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, client *Client) {
	t := time.NewTicker(e.cfg.HeartbeatInterval)
	defer t.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-client.Done():
			return
		case <-t.C:
			pctx, pcancel := context.WithTimeout(ctx, e.cfg.HeartbeatTimeout)
			err := conn.Ping(pctx)
			pcancel()
			if err == nil {
				failures = 0
				continue
			}
			failures++
			if failures >= maxPingFailures {
				e.logger.Info("realtime heartbeat failed",
					slog.String("client_id", client.ID),
					slog.Int("failures", failures),
				)
				cancel()
				return
			}
		}
	}
}

// invoke はクライアントからの呼び出しを処理する。
// 認証状態は接続時の値を使わず、呼び出しごとにストアから読み直す。
func (e *Endpoint) invoke(ctx context.Context, client *Client, msg Message) {
	var notificationID string
	switch msg.Target {
	case MethodMarkAsRead:
		id, ok := msg.stringArg(0)
		if !ok || id == "" {
			client.enqueue(completion(msg.ID, errBadArguments))
			return
		}
		notificationID = id
	case MethodMarkAllAsRead:
	default:
		client.enqueue(completion(msg.ID, errUnknownMethod))
		return
	}

	sess, ok := e.authenticate(ctx, client)
	if !ok {
		client.enqueue(completion(msg.ID, errUnauthenticated))
		return
	}

	svc := notification.NewService(e.api.Bind(sess))
	var (
		done    bool
		count   int
		counted = true
	)
	if msg.Target == MethodMarkAsRead {
		done = svc.MarkAsRead(ctx, notificationID)
		if done {
			count, counted = svc.UnreadCount(ctx)
		}
	} else {
		done = svc.MarkAllAsRead(ctx)
	}
	e.persistPurge(ctx, client, sess)

	if !done {
		client.enqueue(completion(msg.ID, errBackendFailed))
		return
	}
	client.enqueue(completion(msg.ID, ""))
	// 件数が取れなかった場合はバッジを変えない
	if counted {
		client.enqueue(UnreadCountEvent(count))
	}
}

// authenticate はクライアントのセッションを読み直し、認証済みならハンドルを返す。
func (e *Endpoint) authenticate(ctx context.Context, client *Client) (*session.Session, bool) {
	if client.SessionID == "" {
		return nil, false
	}
	rec, err := e.sessions.Load(ctx, client.SessionID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			e.logger.Error("failed to reload session",
				slog.String("client_id", client.ID),
				slog.String("error", err.Error()),
			)
		}
		return nil, false
	}
	if !rec.Authenticated() {
		return nil, false
	}
	return session.NewDetached(rec), true
}

// persistPurge は呼び出し中に401で認証情報が破棄された場合、それをストアに反映する。
func (e *Endpoint) persistPurge(ctx context.Context, client *Client, sess *session.Session) {
	if sess.Authenticated() {
		return
	}
	rec := sess.Snapshot()
	if err := e.sessions.Save(ctx, client.SessionID, &rec); err != nil {
		e.logger.Error("failed to persist session purge",
			slog.String("client_id", client.ID),
			slog.String("error", err.Error()),
		)
	}
}
