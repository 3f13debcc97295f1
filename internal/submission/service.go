// Package submission はフォーム送信の受付・参照のドメインロジックを提供する。
package submission

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/secureform/internal/model"
	"github.com/hitoshi/secureform/internal/repository"
	"github.com/hitoshi/secureform/internal/security"
)

// Validator はサニタイズ済みフィールドの検証を行う。validation.SubmissionValidatorが満たす。
type Validator interface {
	Validate(fields map[string]any) (*model.SubmissionInput, error)
}

// Service はフォーム送信のサービス層。
// 受付はサニタイズ、検証、保存の順に行い、検証に失敗した送信は保存しない。
type Service struct {
	sanitizer security.InputSanitizerService
	validator Validator
	repo      repository.SubmissionRepository
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	sanitizer security.InputSanitizerService,
	validator Validator,
	repo repository.SubmissionRepository,
) *Service {
	return &Service{
		sanitizer: sanitizer,
		validator: validator,
		repo:      repo,
	}
}

// Submit は生のフィールドを受け付けて保存し、保存済みの送信を返す。
// 検証に失敗した場合は *model.ValidationError を返し、何も保存しない。
func (s *Service) Submit(ctx context.Context, raw map[string]any, client model.ClientInfo) (*model.FormSubmission, error) {
	sanitized := s.sanitizer.SanitizeSubmission(raw)

	input, err := s.validator.Validate(sanitized)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			return nil, verr
		}
		return nil, fmt.Errorf("送信内容の検証に失敗しました: %w", err)
	}

	created, err := s.repo.Create(ctx, input, client)
	if err != nil {
		return nil, fmt.Errorf("送信の保存に失敗しました: %w", err)
	}

	return created, nil
}

// List は保存済みの送信を新しい順に返す。
func (s *Service) List(ctx context.Context) ([]*model.FormSubmission, error) {
	subs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("送信一覧の取得に失敗しました: %w", err)
	}
	return subs, nil
}

// Get は指定IDの送信を返す。存在しない場合は *model.APIError を返す。
func (s *Service) Get(ctx context.Context, id int64) (*model.FormSubmission, error) {
	sub, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("送信の取得に失敗しました: %w", err)
	}
	if sub == nil {
		return nil, model.NewSubmissionNotFoundError(id)
	}
	return sub, nil
}
