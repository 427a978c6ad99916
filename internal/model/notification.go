package model

// Notification はユーザー向け通知。
type Notification struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Message           string    `json:"message"`
	NotificationType  string    `json:"notification_type"`
	IsRead            bool      `json:"is_read"`
	CreatedAt         Timestamp `json:"created_at"`
	RelatedEntityType *string   `json:"related_entity_type,omitempty"`
	RelatedEntityID   *string   `json:"related_entity_id,omitempty"`
}

// UnreadCount は notifications/unread-count のレスポンス。
type UnreadCount struct {
	UnreadCount int `json:"unread_count"`
}
