// Package realtime はブラウザへの通知プッシュとWebSocket上の呼び出しを提供する。
//
// 接続はユーザーIDごとのグループに所属し、バックエンドの通知サービスは
// プッシュAPI経由でグループ内の全接続にイベントを配信する。
package realtime

import "encoding/json"

// メッセージ種別
const (
	TypeInvoke     = "invoke"
	TypeCompletion = "completion"
	TypeEvent      = "event"
)

// クライアントから呼び出せるメソッド
const (
	MethodMarkAsRead    = "MarkAsRead"
	MethodMarkAllAsRead = "MarkAllAsRead"
)

// サーバーからプッシュするイベント
const (
	EventReceiveNotification = "ReceiveNotification"
	EventUpdateUnreadCount   = "UpdateUnreadCount"
)

// Message はWebSocket上でやり取りするJSONフレーム。
type Message struct {
	Type      string            `json:"type"`
	ID        string            `json:"id,omitempty"`
	Target    string            `json:"target,omitempty"`
	Arguments []json.RawMessage `json:"arguments,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// NewEvent はイベントメッセージを組み立てる。
func NewEvent(target string, args ...any) Message {
	raw := make([]json.RawMessage, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			b = []byte("null")
		}
		raw = append(raw, b)
	}
	return Message{Type: TypeEvent, Target: target, Arguments: raw}
}

// NotificationEvent は ReceiveNotification イベントを組み立てる。
func NotificationEvent(title, message, kind string) Message {
	return NewEvent(EventReceiveNotification, title, message, kind)
}

// UnreadCountEvent は UpdateUnreadCount イベントを組み立てる。
func UnreadCountEvent(count int) Message {
	return NewEvent(EventUpdateUnreadCount, count)
}

func completion(id, errMsg string) Message {
	return Message{Type: TypeCompletion, ID: id, Error: errMsg}
}

// stringArg はi番目の引数を文字列として取り出す。
func (m Message) stringArg(i int) (string, bool) {
	if i >= len(m.Arguments) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(m.Arguments[i], &s); err != nil {
		return "", false
	}
	return s, true
}
