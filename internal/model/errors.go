package model

import "fmt"

// APIError は機械可読なエラーレスポンスの統一フォーマットを表す。
// プッシュAPIや管理者向けJSON APIの失敗応答に使用する。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, realtime, system
	Action   string // 呼び出し側向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized   = "UNAUTHORIZED"
	ErrCodeForbidden      = "FORBIDDEN"
	ErrCodeInvalidPushKey = "INVALID_PUSH_KEY"
	ErrCodeInvalidRequest = "INVALID_REQUEST"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeUpstreamFailed = "UPSTREAM_FAILED"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作はマネージャーのみ実行できます。",
		Category: "auth",
		Action:   "マネージャー権限を持つアカウントで操作してください。",
	}
}

// NewInvalidPushKeyError はプッシュAPIの共有鍵不一致エラーを生成する。
func NewInvalidPushKeyError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPushKey,
		Message:  "プッシュキーが無効です。",
		Category: "realtime",
		Action:   "X-Push-Key ヘッダーに正しい共有鍵を指定してください。",
	}
}

// NewInvalidRequestError はリクエスト不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewNotFoundError はリソース未検出エラーを生成する。
func NewNotFoundError(resource string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("%s が見つかりません。", resource),
		Category: "validation",
		Action:   "IDを確認してください。",
	}
}

// NewUpstreamFailedError はバックエンドAPI呼び出し失敗エラーを生成する。
func NewUpstreamFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamFailed,
		Message:  "バックエンドAPIの呼び出しに失敗しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
