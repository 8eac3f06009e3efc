// Package ctxkeys 定义请求链路在 context 中传递的值。
package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	requestIDKey contextKey = "request_id"
	principalKey contextKey = "principal"
	transportKey contextKey = "transport"
)

// WithRequestID 设置请求 ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID 获取请求 ID
func RequestID(ctx context.Context) (string, bool) {
	return stringValue(ctx, requestIDKey)
}

// WithPrincipal 设置已认证的调用方标识（API Key 指纹或 JWT subject）
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// Principal 获取已认证的调用方标识
func Principal(ctx context.Context) (string, bool) {
	return stringValue(ctx, principalKey)
}

// WithTransport 设置调用入口（http、mcp、cli）
func WithTransport(ctx context.Context, transport string) context.Context {
	return context.WithValue(ctx, transportKey, transport)
}

// Transport 获取调用入口
func Transport(ctx context.Context) (string, bool) {
	return stringValue(ctx, transportKey)
}

func stringValue(ctx context.Context, key contextKey) (string, bool) {
	v, ok := ctx.Value(key).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
