package handler

import (
	"net/http"

	"github.com/hitoshi/secureform/internal/middleware"
)

// SecurityStatus はデモで有効になっている防御策の一覧。
// 値は実行時の検査結果ではなく、構成から決まる固定値。
type SecurityStatus struct {
	CSRFProtection         bool `json:"csrfProtection"`
	RateLimiting           bool `json:"rateLimiting"`
	InputValidation        bool `json:"inputValidation"`
	SQLInjectionProtection bool `json:"sqlInjectionProtection"`
	XSSProtection          bool `json:"xssProtection"`
	HTTPSOnly              bool `json:"httpsOnly"`
	SecurityHeaders        bool `json:"securityHeaders"`
}

// NewSecurityStatus は構成に応じたSecurityStatusを返す。HTTPSOnlyは本番環境のみtrue。
func NewSecurityStatus(production bool) SecurityStatus {
	return SecurityStatus{
		CSRFProtection:         true,
		RateLimiting:           true,
		InputValidation:        true,
		SQLInjectionProtection: true,
		XSSProtection:          true,
		HTTPSOnly:              production,
		SecurityHeaders:        true,
	}
}

// NewSecurityStatusHandler はセキュリティ状態を返すハンドラーを生成する。
// GET /api/security-status
func NewSecurityStatusHandler(status SecurityStatus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, status)
	}
}
