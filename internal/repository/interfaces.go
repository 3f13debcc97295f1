// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/hitoshi/secureform/internal/model"
)

// SubmissionRepository はフォーム送信の永続化インターフェース。
// 追記のみで、更新と削除は提供しない。
type SubmissionRepository interface {
	// Create は次の連番IDと送信時刻を割り当てて送信を保存し、保存されたエンティティを返す。
	// clientのIPアドレスとUser-Agentは空文字列ならnilとして保存する。
	Create(ctx context.Context, input *model.SubmissionInput, client model.ClientInfo) (*model.FormSubmission, error)

	// FindByID は指定IDの送信を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.FormSubmission, error)

	// List はすべての送信を送信時刻の降順で返す。同時刻の場合はIDの降順。
	List(ctx context.Context) ([]*model.FormSubmission, error)
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByUsername はユーザー名でユーザーを検索する。見つからない場合はnilを返す。
	FindByUsername(ctx context.Context, username string) (*model.User, error)

	// Create は次の連番IDを割り当ててユーザーを保存する。
	// ユーザー名が重複する場合は model.ErrUsernameTaken を返す。
	Create(ctx context.Context, user model.NewUser) (*model.User, error)
}
