// Package model はバックエンドAPIとやり取りするドメインモデルを定義する。
// JSONのフィールド名はバックエンドに合わせてsnake_caseで定義する。
package model

// User はバックエンドが返すユーザーレコードを表す。
// セッションにもこの形のままシリアライズして保持する。
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	IsManager bool      `json:"is_manager"`
	IsActive  bool      `json:"is_active"`
	ManagerID *string   `json:"manager_id,omitempty"`
	CreatedAt Timestamp `json:"created_at"`
}

// HasManager はユーザーに上長が設定されているかを返す。
func (u *User) HasManager() bool {
	return u != nil && u.ManagerID != nil && *u.ManagerID != ""
}

// LoginRequest は auth/login に送るリクエストボディ。
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest は auth/register に送るリクエストボディ。
type RegisterRequest struct {
	Email     string  `json:"email"`
	FullName  string  `json:"full_name"`
	Password  string  `json:"password"`
	IsManager bool    `json:"is_manager"`
	ManagerID *string `json:"manager_id,omitempty"`
}

// AuthResponse は auth/login の成功レスポンス。
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        User   `json:"user"`
}

// SuccessResponse はバックエンドの汎用成功レスポンス。
type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// OK はステータスが success かどうかを返す。
func (r *SuccessResponse) OK() bool {
	return r != nil && r.Status == "success"
}
