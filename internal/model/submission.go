// Package model はドメインモデルを定義する。
package model

import "time"

// SecurityPreference はフォームで選択できるセキュリティ設定のタグ。
type SecurityPreference string

const (
	// PreferenceNewsletter はセキュリティニュースレターの購読を表す。
	PreferenceNewsletter SecurityPreference = "newsletter"
	// PreferenceAlerts はセキュリティアラート通知を表す。
	PreferenceAlerts SecurityPreference = "alerts"
	// PreferenceTwoFactor は二要素認証の有効化を表す。
	PreferenceTwoFactor SecurityPreference = "2fa"
)

// SecurityPreferences は許可されたセキュリティ設定タグの一覧を返す。
func SecurityPreferences() []SecurityPreference {
	return []SecurityPreference{PreferenceNewsletter, PreferenceAlerts, PreferenceTwoFactor}
}

// IsValid はタグが許可リストに含まれるかどうかを返す。
func (p SecurityPreference) IsValid() bool {
	switch p {
	case PreferenceNewsletter, PreferenceAlerts, PreferenceTwoFactor:
		return true
	default:
		return false
	}
}

// FormSubmission は保存済みのフォーム送信を表す。
// IDとSubmittedAtは作成時にストレージが一度だけ設定する。
type FormSubmission struct {
	ID                  int64                `json:"id"`
	FullName            string               `json:"fullName"`
	Email               string               `json:"email"`
	Phone               *string              `json:"phone"`
	Message             string               `json:"message"`
	SecurityPreferences []SecurityPreference `json:"securityPreferences"`
	SubmittedAt         time.Time            `json:"submittedAt"`
	IPAddress           *string              `json:"ipAddress"`
	UserAgent           *string              `json:"userAgent"`
}

// SubmissionInput はサニタイズと検証を通過した送信内容。
// 永続化前のため、ID・送信時刻・クライアント情報を含まない。
type SubmissionInput struct {
	FullName            string
	Email               string
	Phone               *string
	Message             string
	SecurityPreferences []SecurityPreference
}

// ClientInfo は送信元クライアントの情報。
// 空文字列は「不明」として扱われ、nilで保存される。
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// Clone はスライスとポインタを複製したコピーを返す。
// ストレージが内部状態を外部に共有しないために使う。
func (s *FormSubmission) Clone() *FormSubmission {
	if s == nil {
		return nil
	}
	c := *s
	c.Phone = cloneString(s.Phone)
	c.IPAddress = cloneString(s.IPAddress)
	c.UserAgent = cloneString(s.UserAgent)
	if s.SecurityPreferences != nil {
		c.SecurityPreferences = append([]SecurityPreference(nil), s.SecurityPreferences...)
	}
	return &c
}

// StringPtr は空文字列ならnil、それ以外ならポインタを返す。
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
