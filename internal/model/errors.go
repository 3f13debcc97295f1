package model

import (
	"errors"
	"fmt"
	"strings"
)

// APIError はクライアントに返す一般的なエラーを表す。
type APIError struct {
	Code    string // エラーコード
	Message string // エラーメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeSubmissionNotFound = "SUBMISSION_NOT_FOUND"
	ErrCodeInvalidID          = "INVALID_ID"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
)

// ErrUsernameTaken はユーザー名が既に使用されている場合のエラー。
var ErrUsernameTaken = errors.New("username already taken")

// NewSubmissionNotFoundError は送信が見つからない場合のエラーを生成する。
func NewSubmissionNotFoundError(id int64) *APIError {
	return &APIError{
		Code:    ErrCodeSubmissionNotFound,
		Message: fmt.Sprintf("Submission not found: %d", id),
	}
}

// NewInvalidIDError はIDの形式が不正な場合のエラーを生成する。
func NewInvalidIDError(raw string) *APIError {
	return &APIError{
		Code:    ErrCodeInvalidID,
		Message: fmt.Sprintf("Invalid submission id: %q", raw),
	}
}

// FieldError は1フィールドの検証エラー。
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError は送信全体の検証失敗を表す。
// 1件でもFieldErrorがあれば送信は保存されない。
type ValidationError struct {
	Fields []FieldError
}

// Error はerrorインターフェースを実装する。
func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has は指定フィールドにエラーがあるかどうかを返す。
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// RateLimitError は送信頻度の上限超過を表す。
type RateLimitError struct {
	RetryAfter int // 次に送信できるまでの秒数
}

// Error はerrorインターフェースを実装する。
func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded, retry after %ds", e.RetryAfter)
}
