package gateway

import (
	"context"
	"net/http"
)

// Get はGETリクエストを送り、レスポンスをTとして返す。
func Get[T any](ctx context.Context, r Requester, path string, opts ...CallOption) (T, bool) {
	var out T
	ok := r.Do(ctx, http.MethodGet, path, nil, &out, opts...)
	return out, ok
}

// Post はbodyをJSONとしてPOSTし、レスポンスをTとして返す。
func Post[T any](ctx context.Context, r Requester, path string, body any, opts ...CallOption) (T, bool) {
	var out T
	ok := r.Do(ctx, http.MethodPost, path, body, &out, opts...)
	return out, ok
}

// Put はbodyをJSONとしてPUTし、レスポンスをTとして返す。
func Put[T any](ctx context.Context, r Requester, path string, body any, opts ...CallOption) (T, bool) {
	var out T
	ok := r.Do(ctx, http.MethodPut, path, body, &out, opts...)
	return out, ok
}

// Delete はDELETEリクエストを送る。2xx（204含む）で true を返す。
func Delete(ctx context.Context, r Requester, path string, opts ...CallOption) bool {
	return r.Do(ctx, http.MethodDelete, path, nil, nil, opts...)
}
