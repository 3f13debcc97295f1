package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hitoshi/secureform/internal/model"
)

// クライアントに返す固定メッセージ
const (
	MsgValidationFailed = "Validation failed"
	MsgInvalidBody      = "Invalid request body"
	MsgTooManyRequests  = "Too many requests. Please try again later."
	MsgInternalError    = "Internal server error"
	MsgCSRFFailed       = "CSRF token validation failed"
)

// MessageBody はメッセージのみのレスポンス。
type MessageBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ValidationErrorBody は400 Validation failedのレスポンス。
type ValidationErrorBody struct {
	Message string             `json:"message"`
	Errors  []model.FieldError `json:"errors"`
}

// RateLimitBody は429 Too Many Requestsのレスポンス。
type RateLimitBody struct {
	Message    string `json:"message"`
	RetryAfter int    `json:"retryAfter"`
}

// WriteJSON はステータスコードとともに値をJSONで書き込む。
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// WriteMessage は {"message": ...} 形式のレスポンスを書き込む。
func WriteMessage(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, MessageBody{Message: message})
}

// WriteErrorResponse はAPIErrorをメッセージとコードで書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	WriteJSON(w, statusCode, MessageBody{Message: apiErr.Message, Code: apiErr.Code})
}

// WriteValidationError はフィールドエラーの一覧を400で書き込む。
// errors は常に配列としてシリアライズする。
func WriteValidationError(w http.ResponseWriter, verr *model.ValidationError) {
	fields := []model.FieldError{}
	if verr != nil && verr.Fields != nil {
		fields = verr.Fields
	}
	WriteJSON(w, http.StatusBadRequest, ValidationErrorBody{
		Message: MsgValidationFailed,
		Errors:  fields,
	})
}

// WriteInvalidBody はJSONとして解釈できないリクエストボディへの400を書き込む。
func WriteInvalidBody(w http.ResponseWriter) {
	WriteJSON(w, http.StatusBadRequest, ValidationErrorBody{
		Message: MsgInvalidBody,
		Errors:  []model.FieldError{},
	})
}

// WriteRateLimitError は429とRetry-Afterヘッダーを書き込む。
func WriteRateLimitError(w http.ResponseWriter, rlErr *model.RateLimitError) {
	w.Header().Set("Retry-After", strconv.Itoa(rlErr.RetryAfter))
	WriteJSON(w, http.StatusTooManyRequests, RateLimitBody{
		Message:    MsgTooManyRequests,
		RetryAfter: rlErr.RetryAfter,
	})
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteMessage(w, http.StatusInternalServerError, MsgInternalError)
}
