// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/trackbox/internal/auth"
	"github.com/hitoshi/trackbox/internal/metrics"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// resolutionContextKey はリクエストコンテキストにセッション解決結果を格納するためのキー。
var resolutionContextKey = contextKey("session_resolution")

// SessionResolver はCookieヘッダーからセッションを解決するインターフェース。
// auth.Resolverが実装する。
type SessionResolver interface {
	Resolve(ctx context.Context, cookieHeader string) (auth.Resolution, error)
}

// NewSessionMiddleware はリクエストごとに認証サービスへCookieを転送し、
// 解決したセッションとユーザーをリクエストコンテキストに注入するミドルウェアを返す。
// 未認証や認証サービスの障害でリクエストを拒否することはない。
func NewSessionMiddleware(resolver SessionResolver, collector metrics.MetricsCollector, logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := resolver.Resolve(r.Context(), r.Header.Get("Cookie"))
			if err != nil {
				logger.Warn("session lookup failed",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
			}
			if res.Source == "" {
				res.Source = auth.SourceNone
			}
			collector.RecordSessionResolution(string(res.Source))
			if res.Authenticated() {
				recordUserID(r.Context(), res.User.ID)
			}

			next.ServeHTTP(w, r.WithContext(ContextWithResolution(r.Context(), res)))
		})
	}
}

// ResolutionFromContext はリクエストコンテキストからセッション解決結果を取得する。
// セッションミドルウェアを通過していない場合は未認証を返す。
func ResolutionFromContext(ctx context.Context) auth.Resolution {
	res, ok := ctx.Value(resolutionContextKey).(auth.Resolution)
	if !ok {
		return auth.Unauthenticated()
	}
	return res
}

// UserIDFromContext はリクエストコンテキストから認証済みユーザーのIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	res := ResolutionFromContext(ctx)
	if !res.Authenticated() || res.User.ID == "" {
		return "", fmt.Errorf("user ID not found in context")
	}
	return res.User.ID, nil
}

// ContextWithResolution はコンテキストにセッション解決結果を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithResolution(ctx context.Context, res auth.Resolution) context.Context {
	return context.WithValue(ctx, resolutionContextKey, res)
}
