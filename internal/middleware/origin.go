package middleware

import (
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/trackbox/internal/model"
)

// formContentTypes はブラウザがプリフライトなしでクロスサイト送信できるContent-Type。
var formContentTypes = map[string]bool{
	"application/x-www-form-urlencoded": true,
	"multipart/form-data":               true,
	"text/plain":                        true,
}

// NewOriginCheckMiddleware はクロスサイトからのフォーム送信を拒否するミドルウェアを返す。
// 状態変更メソッドかつフォーム系Content-Typeのリクエストで、
// Originヘッダーが自サイトのオリジンと一致しない場合は403を返す。
// baseURLが空の場合はリクエストのHostから自サイトのオリジンを判定する。
func NewOriginCheckMiddleware(baseURL string) func(next http.Handler) http.Handler {
	allowed := originOf(baseURL)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) || !isFormContentType(r.Header.Get("Content-Type")) {
				next.ServeHTTP(w, r)
				return
			}

			origin := r.Header.Get("Origin")
			if origin != "" && (origin == allowed || origin == requestOrigin(r)) {
				next.ServeHTTP(w, r)
				return
			}

			slog.Warn("cross-site form submission rejected",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("origin", origin),
			)
			WriteErrorResponse(w, http.StatusForbidden, model.NewCrossSiteFormError())
		})
	}
}

// isSafeMethod はHTTPメソッドが安全（読み取り専用）かどうかを判定する。
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	default:
		return false
	}
}

func isFormContentType(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return formContentTypes[mediaType]
}

// originOf はURLからscheme://hostのオリジン文字列を取り出す。
func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// requestOrigin はリクエスト自身のオリジンを返す。
func requestOrigin(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}
