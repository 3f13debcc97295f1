// Package handler はHTTPハンドラーとルーティングを提供する。
package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/secureform/internal/metrics"
	"github.com/hitoshi/secureform/internal/middleware"
	"github.com/hitoshi/secureform/internal/ratelimit"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	TrustProxy        bool
	Production        bool
	CSRFEnabled       bool
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	SubmissionLimiter *ratelimit.WindowLimiter

	// 送信
	SubmissionService SubmissionServiceInterface
	MaxBodyBytes      int64

	// 運用
	Logger          *slog.Logger
	HealthChecker   HealthChecker
	Metrics         metrics.MetricsCollector
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → ClientIP → Logging → Recovery → SecurityHeaders → CORS
//	  → /api: RateLimit(General) → [CSRF] → POST /api/form-submission: RateLimit(Submission)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Noop{}
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewClientIPMiddleware(deps.TrustProxy))
	r.Use(middleware.NewLoggingMiddleware(logger, collector))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(middleware.SecurityHeadersConfig{Production: deps.Production}))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	submissionHandler := NewSubmissionHandler(deps.SubmissionService, collector, deps.MaxBodyBytes)

	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	r.Route("/api", func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		r.Get("/security-status", NewSecurityStatusHandler(NewSecurityStatus(deps.Production)))
		r.Get("/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

		r.Group(func(r chi.Router) {
			if deps.CSRFEnabled {
				r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
			}

			// POST /api/form-submission - 送信専用の固定ウィンドウ制限を追加
			var submitMW []func(http.Handler) http.Handler
			if deps.SubmissionLimiter != nil {
				submitMW = append(submitMW, middleware.NewSubmissionRateLimitMiddleware(deps.SubmissionLimiter, collector))
			}
			r.With(submitMW...).Post("/form-submission", submissionHandler.SubmitForm)

			r.Get("/form-submissions", submissionHandler.ListSubmissions)
			r.Get("/form-submissions/{id}", submissionHandler.GetSubmission)
		})
	})

	return r
}
