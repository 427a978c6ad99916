package apilog

import (
	"strings"

	"github.com/tidwall/gjson"
)

// RedactedValue は秘匿キーの値を置き換える文字列。
const RedactedValue = "[REDACTED]"

// sensitiveKeys は値を記録しないJSONキー（小文字）。
var sensitiveKeys = map[string]struct{}{
	"password":         {},
	"confirm_password": {},
	"current_password": {},
	"new_password":     {},
	"access_token":     {},
	"refresh_token":    {},
	"token":            {},
	"secret":           {},
}

func isSensitiveKey(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

// Redact はJSONボディ内の秘匿キーの値をRedactedValueに置き換える。
// ネストしたオブジェクトと配列も対象にする。JSONでないボディはそのまま返す。
func Redact(body string) string {
	if body == "" || !gjson.Valid(body) {
		return body
	}
	var sb strings.Builder
	sb.Grow(len(body))
	writeRedacted(&sb, gjson.Parse(body))
	return sb.String()
}

func writeRedacted(sb *strings.Builder, v gjson.Result) {
	switch {
	case v.IsObject():
		sb.WriteByte('{')
		first := true
		v.ForEach(func(key, value gjson.Result) bool {
			if !first {
				sb.WriteByte(',')
			}
			first = false
			sb.WriteString(key.Raw)
			sb.WriteByte(':')
			if isSensitiveKey(key.String()) && value.Type != gjson.Null {
				sb.WriteString(`"` + RedactedValue + `"`)
				return true
			}
			writeRedacted(sb, value)
			return true
		})
		sb.WriteByte('}')
	case v.IsArray():
		sb.WriteByte('[')
		first := true
		v.ForEach(func(_, value gjson.Result) bool {
			if !first {
				sb.WriteByte(',')
			}
			first = false
			writeRedacted(sb, value)
			return true
		})
		sb.WriteByte(']')
	default:
		sb.WriteString(v.Raw)
	}
}
