package realtime

import "sync"

// DefaultSendQueueSize は接続ごとの送信キューの既定長。
const DefaultSendQueueSize = 32

// Client は1本のWebSocket接続。
// Send はブロードキャストと競合しないようサーバー側では閉じない。
// 停止は done で通知する。
type Client struct {
	ID        string
	UserID    string
	SessionID string
	Send      chan Message

	done      chan struct{}
	closeOnce sync.Once
}

// NewClient は送信キュー長を指定してClientを生成する。
// userIDが空の場合はどのグループにも所属しない。
func NewClient(id, userID, sessionID string, sendQueueSize int) *Client {
	if sendQueueSize <= 0 {
		sendQueueSize = DefaultSendQueueSize
	}
	return &Client{
		ID:        id,
		UserID:    userID,
		SessionID: sessionID,
		Send:      make(chan Message, sendQueueSize),
		done:      make(chan struct{}),
	}
}

// Done は接続停止時に閉じられるチャネルを返す。
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close は接続の停止を通知する。何度呼んでもよい。
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// enqueue はメッセージを送信キューに積む。満杯または停止済みならfalseを返す。
func (c *Client) enqueue(msg Message) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.Send <- msg:
		return true
	default:
		return false
	}
}
