package middleware

import (
	"context"
	"net"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// UnknownClient はクライアントアドレスを特定できない場合のキー。
const UnknownClient = "unknown"

// NewClientIPMiddleware はクライアントアドレスを解決してコンテキストに格納するミドルウェアを返す。
// trustProxyがtrueの場合はchiのRealIPでX-Forwarded-For / X-Real-IPを反映してから解決する。
// プロキシの背後にいない構成でtrueにすると、クライアントがアドレスを詐称できる。
func NewClientIPMiddleware(trustProxy bool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		resolve := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), clientIPContextKey, remoteHost(r.RemoteAddr))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
		if trustProxy {
			return chimw.RealIP(resolve)
		}
		return resolve
	}
}

// ClientIPFromContext はコンテキストからクライアントアドレスを取得する。
// 未設定の場合は空文字を返す。
func ClientIPFromContext(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPContextKey).(string)
	return ip
}

// ClientIP はリクエストのクライアントアドレスを返す。
// ミドルウェアで解決済みであればその値を、なければRemoteAddrから求める。
func ClientIP(r *http.Request) string {
	if ip := ClientIPFromContext(r.Context()); ip != "" {
		return ip
	}
	return remoteHost(r.RemoteAddr)
}

// remoteHost は "host:port" 形式からホスト部分を取り出す。ポートがなければそのまま返す。
func remoteHost(addr string) string {
	if addr == "" {
		return ""
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

// rateLimitKey はレート制限のキーとして使うクライアントアドレスを返す。
func rateLimitKey(r *http.Request) string {
	if ip := ClientIP(r); ip != "" {
		return ip
	}
	return UnknownClient
}
