package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
)

// Result はAJAXアクションの応答フォーマット。
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// writeJSON はvをJSONで書き込む。
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func writeSuccess(w http.ResponseWriter, message string, data any) {
	writeJSON(w, http.StatusOK, Result{Success: true, Message: message, Data: data})
}

// writeFailure は {success:false} を返す。失敗も200で返し、呼び出し側のJSが表示を切り替える。
func writeFailure(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusOK, Result{Success: false, Message: message})
}

// decodeJSON はリクエストボディをJSONとしてデコードする。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	return json.NewDecoder(r.Body).Decode(v)
}
