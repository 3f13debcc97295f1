// Package security はアプリケーションのセキュリティ機能を提供する。
//
// InputSanitizer はユーザーが送信したテキストからHTMLマークアップを除去し、
// XSS攻撃などのセキュリティリスクからアプリケーションを保護する。
// bluemondayのstrictポリシーを使い、タグと属性を一切通過させない。
package security

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// フォームのフィールド名
const (
	FieldFullName            = "fullName"
	FieldEmail               = "email"
	FieldPhone               = "phone"
	FieldMessage             = "message"
	FieldSecurityPreferences = "securityPreferences"
)

// phoneDisallowed は電話番号で許可されない文字にマッチする。
// 数字、+、-、括弧、空白以外を除去する。
var phoneDisallowed = regexp.MustCompile(`[^\d+\-()\s]`)

// textEscaper はDOMのテキストシリアライズと同じ文字のみをエスケープする。
var textEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"\u00a0", "&nbsp;",
)

// InputSanitizerService は送信フィールドのサニタイズ機能のインターフェースを定義する。
type InputSanitizerService interface {
	// Sanitize は文字列からすべてのHTMLマークアップを除去する。
	Sanitize(raw string) string
	// SanitizeSubmission はフォーム送信の各フィールドを正規化する。
	SanitizeSubmission(fields map[string]any) map[string]any
}

// InputSanitizer はInputSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフなので、1インスタンスを共有してよい。
type InputSanitizer struct {
	policy *bluemonday.Policy
}

// NewInputSanitizer は新しいInputSanitizerを生成する。
// ポリシーの内容:
//   - 許可タグ: なし
//   - 許可属性: なし
//   - script, style等の要素は中身ごと除去される
func NewInputSanitizer() *InputSanitizer {
	return &InputSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は文字列からすべてのHTMLマークアップを除去して返す。
// 残ったテキストは実体参照をデコードした上で、&、<、>、NBSPのみを再エスケープする。
// 出力にタグが含まれることはない。不正な入力は空文字列または短い文字列になるだけで、エラーにはならない。
func (s *InputSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	stripped := s.policy.Sanitize(raw)
	return textEscaper.Replace(html.UnescapeString(stripped))
}

// SanitizeSubmission はフォーム送信の各フィールドを正規化した新しいマップを返す。
// 入力マップは変更しない。
//
//   - fullName, message: 前後の空白を除去
//   - email: 前後の空白を除去して小文字化
//   - phone: 前後の空白を除去し、電話番号に使えない文字を削除
//
// いずれもその後HTMLを除去し、再度空白を除去する。
// 文字列以外の値と未知のキーはそのまま渡し、拒否はバリデータに任せる。
func (s *InputSanitizer) SanitizeSubmission(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}

	for _, name := range []string{FieldFullName, FieldEmail, FieldPhone, FieldMessage} {
		str, ok := out[name].(string)
		if !ok {
			continue
		}

		str = strings.TrimSpace(str)
		switch name {
		case FieldEmail:
			str = strings.ToLower(str)
		case FieldPhone:
			str = phoneDisallowed.ReplaceAllString(str, "")
		}

		out[name] = strings.TrimSpace(s.Sanitize(str))
	}

	return out
}

// compile-time interface check
var _ InputSanitizerService = (*InputSanitizer)(nil)
