package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/trackbox/internal/metrics"
	"github.com/hitoshi/trackbox/internal/middleware"
	"github.com/hitoshi/trackbox/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	SessionResolver middleware.SessionResolver
	RateLimiter     *middleware.RateLimiter
	BaseURL         string

	// トラック
	TrackService   TrackServiceInterface
	MaxUploadBytes int64

	// 運用
	HealthChecker  HealthChecker
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Logging → Metrics → Session → OriginCheck
//
// /healthと/metricsはセッション解決の外に配置し、認証サービスを呼ばない。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewMetricsMiddleware(deps.Metrics))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewNotFoundError())
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusMethodNotAllowed, model.NewMethodNotAllowedError())
	})

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	trackHandler := NewTrackHandler(deps.TrackService, deps.Metrics, deps.MaxUploadBytes)
	uploadLimit := deps.RateLimiter.UploadMiddleware(deps.Metrics)

	// --- アプリケーションのルート ---
	// ミドルウェアスタック: Session → OriginCheck
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionResolver, deps.Metrics, deps.Logger))
		r.Use(middleware.NewOriginCheckMiddleware(deps.BaseURL))

		r.Get("/", trackHandler.Page)
		r.With(uploadLimit).Post("/", trackHandler.SubmitForm)

		r.Route("/api", func(r chi.Router) {
			r.Get("/tracks", trackHandler.ListTracks)
			r.With(uploadLimit).Post("/tracks", trackHandler.Upload)
			r.Get("/session", Session)
		})
	})

	return r
}
