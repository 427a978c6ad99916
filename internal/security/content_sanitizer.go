// Package security はフォーム入力の無害化とリンク検証を提供する。
//
// ユーザーが入力したテキストはバックエンドへ送る前にタグを除去する。
// 表示時のエスケープは html/template が行うため、ここではプレーンテキストに戻す。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer はフォーム入力やプッシュ通知の文字列からHTMLを除去する。
// bluemondayのポリシーはゴルーチンセーフなので共有してよい。
type Sanitizer struct {
	strict *bluemonday.Policy
}

// NewSanitizer はSanitizerを生成する。
func NewSanitizer() *Sanitizer {
	return &Sanitizer{strict: bluemonday.StrictPolicy()}
}

// Text はタグをすべて除去し、前後の空白を落としたプレーンテキストを返す。
// 同一入力に対して常に同一出力を返す。
func (s *Sanitizer) Text(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(raw)))
}

// Texts はスライスの各要素にTextを適用し、空になった要素を除く。
func (s *Sanitizer) Texts(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if v := s.Text(r); v != "" {
			out = append(out, v)
		}
	}
	return out
}
