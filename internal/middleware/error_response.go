package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hitoshi/perfreview/internal/model"
)

// ErrorResponseBody は機械可読なエラー応答。
// success は常にfalseで、画面のAJAX応答と同じ判定でクライアントが扱える。
type ErrorResponseBody struct {
	Success  bool   `json:"success"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse はapiErrをJSONで書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteError はerrに*model.APIErrorが含まれていればそれを、
// そうでなければ内部エラーを書き込む。
func WriteError(w http.ResponseWriter, statusCode int, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		WriteErrorResponse(w, statusCode, apiErr)
		return
	}
	WriteInternalServerError(w)
}

// WriteInternalServerError は内部エラーを書き込む。詳細はログにのみ残す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
