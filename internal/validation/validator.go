// Package validation は宣言的なフィールドルールと、それを評価する汎用バリデータを提供する。
//
// スキーマはFieldの並びとして宣言し、Validateがそれを送信データに適用する。
// 失敗したルールはフィールドごとにすべて収集され、1件でもあれば結果全体が拒否される。
package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/hitoshi/secureform/internal/model"
)

// Kind はフィールドが受け付ける値の型。
type Kind int

const (
	// KindString は文字列フィールド。
	KindString Kind = iota
	// KindStringList は文字列の配列フィールド。ルールは各要素に適用される。
	KindStringList
)

// 型・必須チェックのメッセージ
const (
	MsgRequired       = "Required"
	MsgExpectedString = "Expected string"
	MsgExpectedArray  = "Expected array"
)

// Rule は1つの検証ルール。Checkがfalseを返すとMessageがエラーとして記録される。
type Rule struct {
	Check   func(value string) bool
	Message string
}

// Field は1フィールドの宣言。
type Field struct {
	Name     string
	Kind     Kind
	Optional bool
	// EmptyAsAbsent がtrueの場合、空文字列は未指定として扱う。
	EmptyAsAbsent bool
	Rules         []Rule
}

// Schema はフィールド宣言の並び。エラーは宣言順に報告される。
type Schema []Field

// Values は検証を通過した値。文字列フィールドはstring、配列フィールドは[]stringを保持する。
// 未指定のフィールドはキー自体が存在しない。
type Values map[string]any

// String は文字列フィールドの値を返す。未指定の場合は空文字列とfalseを返す。
func (v Values) String(name string) (string, bool) {
	s, ok := v[name].(string)
	return s, ok
}

// Strings は配列フィールドの値を返す。未指定の場合はnilとfalseを返す。
func (v Values) Strings(name string) ([]string, bool) {
	s, ok := v[name].([]string)
	return s, ok
}

// Validate はスキーマをfieldsに適用する。
// すべてのルールを満たした場合はValuesを返し、1件でも失敗した場合は
// *model.ValidationError を返す（部分的な結果は返さない）。
// スキーマにないキーは無視される。
func Validate(schema Schema, fields map[string]any) (Values, error) {
	values := make(Values, len(schema))
	var errs []model.FieldError

	for _, f := range schema {
		raw, present := fields[f.Name]
		if raw == nil {
			present = false
		}
		if present && f.EmptyAsAbsent {
			if s, ok := raw.(string); ok && s == "" {
				present = false
			}
		}

		if !present {
			if !f.Optional {
				errs = append(errs, model.FieldError{Field: f.Name, Message: MsgRequired})
			}
			continue
		}

		switch f.Kind {
		case KindString:
			s, ok := raw.(string)
			if !ok {
				errs = append(errs, model.FieldError{Field: f.Name, Message: MsgExpectedString})
				continue
			}
			fieldErrs := applyRules(f.Name, s, f.Rules)
			if len(fieldErrs) > 0 {
				errs = append(errs, fieldErrs...)
				continue
			}
			values[f.Name] = s

		case KindStringList:
			items, ok := toStringList(raw)
			if !ok {
				errs = append(errs, model.FieldError{Field: f.Name, Message: MsgExpectedArray})
				continue
			}
			var listErrs []model.FieldError
			for i, item := range items {
				path := fmt.Sprintf("%s[%d]", f.Name, i)
				s, ok := item.(string)
				if !ok {
					listErrs = append(listErrs, model.FieldError{Field: path, Message: MsgExpectedString})
					continue
				}
				listErrs = append(listErrs, applyRules(path, s, f.Rules)...)
			}
			if len(listErrs) > 0 {
				errs = append(errs, listErrs...)
				continue
			}
			values[f.Name] = dedupe(items)
		}
	}

	if len(errs) > 0 {
		return nil, &model.ValidationError{Fields: errs}
	}
	return values, nil
}

func applyRules(path, value string, rules []Rule) []model.FieldError {
	var errs []model.FieldError
	for _, r := range rules {
		if !r.Check(value) {
			errs = append(errs, model.FieldError{Field: path, Message: r.Message})
		}
	}
	return errs
}

// toStringList はJSONデコード結果の配列を[]anyとして取り出す。
func toStringList(raw any) ([]any, bool) {
	switch v := raw.(type) {
	case []any:
		return v, true
	case []string:
		out := make([]any, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

// dedupe は出現順を保ったまま重複を取り除く。呼び出し時点で全要素がstringであること。
func dedupe(items []any) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		s := item.(string)
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// --- ルールビルダー ---

// MinLength は文字数（rune数）がn以上であることを要求する。
func MinLength(n int, message string) Rule {
	return Rule{
		Check:   func(v string) bool { return utf8.RuneCountInString(v) >= n },
		Message: message,
	}
}

// MaxLength は文字数（rune数）がn以下であることを要求する。
func MaxLength(n int, message string) Rule {
	return Rule{
		Check:   func(v string) bool { return utf8.RuneCountInString(v) <= n },
		Message: message,
	}
}

// Matches は正規表現に一致することを要求する。
func Matches(re *regexp.Regexp, message string) Rule {
	return Rule{
		Check:   re.MatchString,
		Message: message,
	}
}

// OneOf は許可リストのいずれかであることを要求する。
func OneOf(allowed []string, message string) Rule {
	return Rule{
		Check:   func(v string) bool { return slices.Contains(allowed, v) },
		Message: message,
	}
}

// Email はメールアドレスとして妥当な書式であることを要求する。
// 表示名付きの形式（"Name <a@b.c>"）は受け付けず、ドメインにはドットを必須とする。
func Email(message string) Rule {
	return Rule{
		Check:   isValidEmail,
		Message: message,
	}
}

func isValidEmail(v string) bool {
	if v == "" || strings.ContainsAny(v, " \t\r\n") {
		return false
	}

	addr, err := mail.ParseAddress(v)
	if err != nil || addr.Name != "" || addr.Address != v {
		return false
	}

	local, domain, ok := strings.Cut(v, "@")
	if !ok || local == "" || domain == "" {
		return false
	}
	if strings.HasPrefix(local, ".") || strings.HasSuffix(local, ".") || strings.Contains(local, "..") {
		return false
	}

	labels := strings.Split(domain, ".")
	if len(labels) < 2 {
		return false
	}
	for _, label := range labels {
		if label == "" || strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
	}
	tld := labels[len(labels)-1]
	if len(tld) < 2 {
		return false
	}
	for _, r := range tld {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}
