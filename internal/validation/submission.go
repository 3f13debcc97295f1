package validation

import (
	"regexp"

	"github.com/hitoshi/secureform/internal/model"
	"github.com/hitoshi/secureform/internal/security"
)

// 送信フィールドの長さ制限
const (
	FullNameMinLength = 2
	FullNameMaxLength = 50
	EmailMaxLength    = 100
	PhoneMaxLength    = 20
	MessageMinLength  = 10
	MessageMaxLength  = 500
)

var (
	fullNamePattern = regexp.MustCompile(`^[a-zA-Z\s]+$`)
	phonePattern    = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)
)

// SubmissionSchema はフォーム送信のスキーマを返す。
func SubmissionSchema() Schema {
	prefs := make([]string, 0, 3)
	for _, p := range model.SecurityPreferences() {
		prefs = append(prefs, string(p))
	}

	return Schema{
		{
			Name: security.FieldFullName,
			Kind: KindString,
			Rules: []Rule{
				MinLength(FullNameMinLength, "Full name must be at least 2 characters"),
				MaxLength(FullNameMaxLength, "Full name must be less than 50 characters"),
				Matches(fullNamePattern, "Full name can only contain letters and spaces"),
			},
		},
		{
			Name: security.FieldEmail,
			Kind: KindString,
			Rules: []Rule{
				Email("Please enter a valid email address"),
				MaxLength(EmailMaxLength, "Email must be less than 100 characters"),
			},
		},
		{
			Name:          security.FieldPhone,
			Kind:          KindString,
			Optional:      true,
			EmptyAsAbsent: true,
			Rules: []Rule{
				Matches(phonePattern, "Please enter a valid phone number"),
				MaxLength(PhoneMaxLength, "Phone number must be less than 20 characters"),
			},
		},
		{
			Name: security.FieldMessage,
			Kind: KindString,
			Rules: []Rule{
				MinLength(MessageMinLength, "Message must be at least 10 characters"),
				MaxLength(MessageMaxLength, "Message must be less than 500 characters"),
			},
		},
		{
			Name:     security.FieldSecurityPreferences,
			Kind:     KindStringList,
			Optional: true,
			Rules: []Rule{
				OneOf(prefs, "Invalid security preference"),
			},
		},
	}
}

// SubmissionValidator はフォーム送信の検証を行う。
type SubmissionValidator struct {
	schema Schema
}

// NewSubmissionValidator はSubmissionSchemaで検証するSubmissionValidatorを生成する。
func NewSubmissionValidator() *SubmissionValidator {
	return &SubmissionValidator{schema: SubmissionSchema()}
}

// Validate はサニタイズ済みのフィールドを検証し、SubmissionInputに変換する。
// 失敗時は *model.ValidationError を返す。
func (v *SubmissionValidator) Validate(fields map[string]any) (*model.SubmissionInput, error) {
	values, err := Validate(v.schema, fields)
	if err != nil {
		return nil, err
	}

	fullName, _ := values.String(security.FieldFullName)
	email, _ := values.String(security.FieldEmail)
	message, _ := values.String(security.FieldMessage)
	phone, _ := values.String(security.FieldPhone)

	input := &model.SubmissionInput{
		FullName: fullName,
		Email:    email,
		Phone:    model.StringPtr(phone),
		Message:  message,
	}

	if prefs, ok := values.Strings(security.FieldSecurityPreferences); ok {
		input.SecurityPreferences = make([]model.SecurityPreference, 0, len(prefs))
		for _, p := range prefs {
			input.SecurityPreferences = append(input.SecurityPreferences, model.SecurityPreference(p))
		}
	}

	return input, nil
}
