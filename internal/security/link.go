package security

import (
	"errors"
	"net/url"
	"strings"
)

// MaxLinkLength はタスクリンクとして受け付ける最大長。
const MaxLinkLength = 2048

var (
	ErrLinkTooLong      = errors.New("link is too long")
	ErrLinkInvalid      = errors.New("link is not a valid URL")
	ErrLinkSchemeDenied = errors.New("link scheme must be http or https")
)

// ValidateTaskLink はゴールに添付するリンクを検証する。
// 空文字列は「リンクなし」として許可する。
func ValidateTaskLink(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if len(raw) > MaxLinkLength {
		return ErrLinkTooLong
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ErrLinkInvalid
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return ErrLinkSchemeDenied
	}
	if u.User != nil {
		return ErrLinkInvalid
	}
	return nil
}
