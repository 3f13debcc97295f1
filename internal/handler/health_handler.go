package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/secureform/internal/middleware"
)

// HealthChecker は依存先の疎通確認を行う。database.HealthCheckerが満たす。
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// NewHealthHandler はヘルスチェックのハンドラーを生成する。
// checkerがnilの場合は常に200を返す。
// GET /health
func NewHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.CheckHealth(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
