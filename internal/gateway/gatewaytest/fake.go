// Package gatewaytest はドメインサービスのテスト用に gateway.Requester の代替を提供する。
package gatewaytest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/hitoshi/perfreview/internal/gateway"
)

// Call は記録された1回の呼び出し。
type Call struct {
	Method     string
	Path       string
	Body       any
	Suppressed bool
}

type response struct {
	body any
	fail bool
}

// Fake はメソッドとパスの組に応答を登録しておく gateway.Requester。
// 登録のない呼び出しは失敗（false）を返す。
type Fake struct {
	mu        sync.Mutex
	responses map[string]response
	calls     []Call
}

// New はFakeを生成する。
func New() *Fake {
	return &Fake{responses: make(map[string]response)}
}

func key(method, path string) string {
	return method + " " + path
}

// On はmethod pathへの応答を登録する。bodyはJSONとして呼び出し元のoutへデコードされる。
func (f *Fake) On(method, path string, body any) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[key(method, path)] = response{body: body}
	return f
}

// Fail はmethod pathへの呼び出しを失敗させる。
func (f *Fake) Fail(method, path string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[key(method, path)] = response{fail: true}
	return f
}

// Do は gateway.Requester を実装する。
func (f *Fake) Do(ctx context.Context, method, path string, body, out any, opts ...gateway.CallOption) bool {
	f.mu.Lock()
	f.calls = append(f.calls, Call{
		Method:     method,
		Path:       path,
		Body:       body,
		Suppressed: gateway.SuppressesAuthClear(opts...),
	})
	resp, ok := f.responses[key(method, path)]
	f.mu.Unlock()

	if !ok || resp.fail {
		return false
	}
	if out == nil || resp.body == nil {
		return out == nil
	}
	data, err := json.Marshal(resp.body)
	if err != nil {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

// Calls は記録された呼び出しのコピーを返す。
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Last は最後の呼び出しを返す。呼び出しがなければfalseを返す。
func (f *Fake) Last() (Call, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return Call{}, false
	}
	return f.calls[len(f.calls)-1], true
}
