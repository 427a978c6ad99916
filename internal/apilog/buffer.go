// Package apilog はバックエンドAPI呼び出しの診断ログを保持するリングバッファを提供する。
// 容量を超えた場合は最も古いエントリから破棄する。
package apilog

import (
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	// DefaultCapacity はバッファのデフォルト容量。
	DefaultCapacity = 1000
	// DefaultRecent は Recent に0以下を渡したときの件数。
	DefaultRecent = 50
	// maxBodyChars はボディを保持する最大文字数。
	maxBodyChars = 2000
)

// Kind はログエントリの種類を表す。
type Kind string

const (
	KindRequest  Kind = "request"
	KindResponse Kind = "response"
	KindError    Kind = "error"
)

// Entry は1件のAPI呼び出しログ。
type Entry struct {
	ID         string        `json:"id"`
	Timestamp  time.Time     `json:"timestamp"`
	Kind       Kind          `json:"kind"`
	Method     string        `json:"method"`
	Path       string        `json:"path"`
	Body       string        `json:"body,omitempty"`
	StatusCode int           `json:"status_code,omitempty"`
	Success    bool          `json:"success"`
	Duration   time.Duration `json:"duration_ns,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// Stats はバッファ内エントリの集計。
type Stats struct {
	Total    int `json:"total"`
	Requests int `json:"requests"`
	Success  int `json:"success"`
	Errors   int `json:"errors"`
}

// Buffer はスレッドセーフな固定長リングバッファ。
type Buffer struct {
	mu      sync.Mutex
	entries []Entry
	next    int
	size    int
	now     func() time.Time
}

// NewBuffer は指定容量のBufferを生成する。0以下の場合はDefaultCapacityを使用する。
func NewBuffer(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{
		entries: make([]Entry, capacity),
		now:     time.Now,
	}
}

// Record はエントリを追加する。IDとタイムスタンプが空なら補完する。
// ボディは秘匿キーを伏せたうえで maxBodyChars 文字で切り詰める。
func (b *Buffer) Record(e Entry) {
	if b == nil {
		return
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.Body = truncate(Redact(e.Body))

	b.mu.Lock()
	defer b.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = b.now()
	}
	b.entries[b.next] = e
	b.next = (b.next + 1) % len(b.entries)
	if b.size < len(b.entries) {
		b.size++
	}
}

// Recent は新しい順に最大n件を返す。
func (b *Buffer) Recent(n int) []Entry {
	if b == nil {
		return nil
	}
	if n <= 0 {
		n = DefaultRecent
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if n > b.size {
		n = b.size
	}
	out := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		idx := (b.next - 1 - i + len(b.entries)) % len(b.entries)
		out = append(out, b.entries[idx])
	}
	return out
}

// Clear は全エントリを破棄する。
func (b *Buffer) Clear() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	clear(b.entries)
	b.next = 0
	b.size = 0
}

// Len は保持しているエントリ数を返す。
func (b *Buffer) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Stats は保持エントリの集計を返す。
func (b *Buffer) Stats() Stats {
	var s Stats
	if b == nil {
		return s
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	s.Total = b.size
	for i := 0; i < b.size; i++ {
		e := b.entries[(b.next-1-i+len(b.entries))%len(b.entries)]
		switch e.Kind {
		case KindRequest:
			s.Requests++
		case KindError:
			s.Errors++
		case KindResponse:
			if e.Success {
				s.Success++
			} else {
				s.Errors++
			}
		}
	}
	return s
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxBodyChars {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxBodyChars]) + "...(truncated)"
}
