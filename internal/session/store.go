package session

import (
	"context"
	"time"
)

// Store はセッションレコードの永続化インターフェース。
type Store interface {
	// Load はセッションを取得する。存在しない、または期限切れの場合は ErrNotFound を返す。
	Load(ctx context.Context, id string) (*Record, error)
	// Save はttl後に失効するセッションとして保存する。既存の場合は上書きする。
	Save(ctx context.Context, id string, rec *Record, ttl time.Duration) error
	// Delete はセッションを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, id string) error
	// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}
