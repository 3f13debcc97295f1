package security

import (
	"strings"
	"testing"
)

// TestSanitize_RemovesMarkup はタグと属性がすべて除去されることを検証する。
func TestSanitize_RemovesMarkup(t *testing.T) {
	sanitizer := NewInputSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "scriptタグは中身ごと除去される",
			input: "<script>alert('xss')</script>Hello",
			want:  "Hello",
		},
		{
			name:  "装飾タグはテキストのみ残る",
			input: "<b>John</b> Doe",
			want:  "John Doe",
		},
		{
			name:  "onerror属性付きimgは除去される",
			input: `<img src=x onerror="alert(1)">`,
			want:  "",
		},
		{
			name:  "styleタグは中身ごと除去される",
			input: "<style>body{display:none}</style>text",
			want:  "text",
		},
		{
			name:  "iframeは除去される",
			input: `before<iframe src="https://evil.example"></iframe>after`,
			want:  "beforeafter",
		},
		{
			name:  "javascriptリンクはテキストのみ残る",
			input: `<a href="javascript:alert(1)">click</a>`,
			want:  "click",
		},
		{
			name:  "プレーンテキストはそのまま",
			input: "Hello world",
			want:  "Hello world",
		},
		{
			name:  "アポストロフィは実体参照にならない",
			input: "It's fine",
			want:  "It's fine",
		},
		{
			name:  "アンパサンドはエスケープされる",
			input: "Tom & Jerry",
			want:  "Tom &amp; Jerry",
		},
		{
			name:  "空文字列",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			if got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitize_ScriptInputsNeverProduceMarkup はscriptタグを含む入力から
// タグが出力されないことを検証する。
func TestSanitize_ScriptInputsNeverProduceMarkup(t *testing.T) {
	sanitizer := NewInputSanitizer()

	inputs := []string{
		"<script>alert(1)</script>",
		"<SCRIPT SRC=https://evil.example/x.js></SCRIPT>",
		"<scr<script>ipt>alert(1)</script>",
		"<<script>script>alert(1)<</script>/script>",
		"&lt;script&gt;alert(1)&lt;/script&gt;",
		"<script>alert(1)",
		"text<script type=\"text/javascript\">document.cookie</script>more",
		"<svg><script>alert(1)</script></svg>",
		"<script>\n</script><p onclick=\"x()\">p</p>",
	}

	for _, input := range inputs {
		got := sanitizer.Sanitize(input)
		if strings.Contains(got, "<") || strings.Contains(got, ">") {
			t.Errorf("Sanitize(%q) = %q, contains tag markup", input, got)
		}
		if strings.Contains(strings.ToLower(got), "<script") {
			t.Errorf("Sanitize(%q) = %q, contains script tag", input, got)
		}
	}
}

// TestSanitize_Idempotent はタグを含まない出力の再サニタイズで実体参照が二重化しないことを検証する。
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewInputSanitizer()

	first := sanitizer.Sanitize("<b>Tom</b> &amp; Jerry")
	second := sanitizer.Sanitize(first)

	if first != second {
		t.Errorf("Sanitize is not idempotent: %q -> %q", first, second)
	}
}

// TestSanitizeSubmission_NormalizesFields はフィールドごとの正規化を検証する。
func TestSanitizeSubmission_NormalizesFields(t *testing.T) {
	sanitizer := NewInputSanitizer()

	in := map[string]any{
		"fullName": "  <b>Jane</b> Doe  ",
		"email":    "  Jane.DOE@Example.COM ",
		"phone":    " +1 (555) abc-123 ",
		"message":  " <script>alert('x')</script>Hello there, friend ",
	}

	out := sanitizer.SanitizeSubmission(in)

	want := map[string]string{
		"fullName": "Jane Doe",
		"email":    "jane.doe@example.com",
		"phone":    "+1 (555) -123",
		"message":  "Hello there, friend",
	}
	for field, w := range want {
		if got := out[field]; got != w {
			t.Errorf("%s = %q, want %q", field, got, w)
		}
	}
}

// TestSanitizeSubmission_DoesNotMutateInput は入力マップが変更されないことを検証する。
func TestSanitizeSubmission_DoesNotMutateInput(t *testing.T) {
	sanitizer := NewInputSanitizer()

	in := map[string]any{"fullName": "  <i>Jane</i>  "}
	_ = sanitizer.SanitizeSubmission(in)

	if in["fullName"] != "  <i>Jane</i>  " {
		t.Errorf("input map was mutated: %q", in["fullName"])
	}
}

// TestSanitizeSubmission_PassesThroughNonStrings は文字列以外の値と未知のキーが
// そのまま渡されることを検証する。
func TestSanitizeSubmission_PassesThroughNonStrings(t *testing.T) {
	sanitizer := NewInputSanitizer()

	prefs := []any{"newsletter", "2fa"}
	in := map[string]any{
		"fullName":            float64(42),
		"securityPreferences": prefs,
		"extra":               "<b>kept</b>",
	}

	out := sanitizer.SanitizeSubmission(in)

	if out["fullName"] != float64(42) {
		t.Errorf("fullName = %v, want 42", out["fullName"])
	}
	if got, ok := out["securityPreferences"].([]any); !ok || len(got) != 2 {
		t.Errorf("securityPreferences = %v, want passthrough", out["securityPreferences"])
	}
	if out["extra"] != "<b>kept</b>" {
		t.Errorf("extra = %v, want untouched", out["extra"])
	}
	if _, ok := out["email"]; ok {
		t.Error("absent field should stay absent")
	}
}

// TestSanitizeSubmission_MarkupOnlyBecomesEmpty はマークアップのみのフィールドが空になることを検証する。
func TestSanitizeSubmission_MarkupOnlyBecomesEmpty(t *testing.T) {
	sanitizer := NewInputSanitizer()

	out := sanitizer.SanitizeSubmission(map[string]any{
		"fullName": "<script>alert(1)</script>",
	})

	if out["fullName"] != "" {
		t.Errorf("fullName = %q, want empty", out["fullName"])
	}
}
