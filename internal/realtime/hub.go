package realtime

import (
	"log/slog"
	"sync"
)

// Metrics はHubが記録するメトリクス。*metrics.Collector が実装する。
type Metrics interface {
	RecordHubConnection(delta int)
	RecordHubPush(target string, delivered int)
	RecordHubDrop()
}

type noopMetrics struct{}

func (noopMetrics) RecordHubConnection(int)   {}
func (noopMetrics) RecordHubPush(string, int) {}
func (noopMetrics) RecordHubDrop()            {}

// Hub はユーザーIDをグループ名として接続を管理する。
type Hub struct {
	logger  *slog.Logger
	metrics Metrics

	mu     sync.RWMutex
	groups map[string]map[*Client]struct{}
	total  int
}

// NewHub はHubを生成する。metricsがnilの場合は記録しない。
func NewHub(logger *slog.Logger, metrics Metrics) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Hub{
		logger:  logger,
		metrics: metrics,
		groups:  make(map[string]map[*Client]struct{}),
	}
}

// Register は接続を登録する。UserIDを持つ接続だけがグループに入る。
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.total++
	if c.UserID != "" {
		g, ok := h.groups[c.UserID]
		if !ok {
			g = make(map[*Client]struct{})
			h.groups[c.UserID] = g
		}
		g[c] = struct{}{}
	}
	h.mu.Unlock()

	h.metrics.RecordHubConnection(1)
	h.logger.Debug("realtime client connected",
		slog.String("client_id", c.ID),
		slog.String("user_id", c.UserID),
	)
}

// Unregister は接続を取り除く。グループが空になれば削除する。
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	h.total--
	if g, ok := h.groups[c.UserID]; ok {
		delete(g, c)
		if len(g) == 0 {
			delete(h.groups, c.UserID)
		}
	}
	h.mu.Unlock()

	h.metrics.RecordHubConnection(-1)
	h.logger.Debug("realtime client disconnected",
		slog.String("client_id", c.ID),
		slog.String("user_id", c.UserID),
	)
}

// SendToUser はユーザーのグループ内の全接続にメッセージを配信し、配信できた接続数を返す。
// 送信キューが満杯の接続はブロックせずに破棄する。
func (h *Hub) SendToUser(userID string, msg Message) int {
	if userID == "" {
		return 0
	}

	h.mu.RLock()
	g := h.groups[userID]
	targets := make([]*Client, 0, len(g))
	for c := range g {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, c := range targets {
		if c.enqueue(msg) {
			delivered++
			continue
		}
		h.metrics.RecordHubDrop()
		h.logger.Warn("送信キューが満杯のためイベントを破棄しました",
			slog.String("client_id", c.ID),
			slog.String("user_id", userID),
			slog.String("target", msg.Target),
		)
	}
	h.metrics.RecordHubPush(msg.Target, delivered)
	return delivered
}

// ReceiveNotification はユーザーに通知を配信する。
func (h *Hub) ReceiveNotification(userID, title, message, kind string) int {
	return h.SendToUser(userID, NotificationEvent(title, message, kind))
}

// UpdateUnreadCount はユーザーに未読件数を配信する。
func (h *Hub) UpdateUnreadCount(userID string, count int) int {
	return h.SendToUser(userID, UnreadCountEvent(count))
}

// GroupSize はユーザーのグループに所属する接続数を返す。
func (h *Hub) GroupSize(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.groups[userID])
}

// Len は接続数の合計を返す。グループに所属しない接続も含む。
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}
