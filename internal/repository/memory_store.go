package repository

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/hitoshi/secureform/internal/model"
)

// MemoryStore はマップを使ったインメモリのストレージ。
// SubmissionRepositoryとUserRepositoryの両方を実装する。
// 状態はプロセス内にのみ存在し、再起動で失われる。
// 内部のエンティティは外部と共有せず、読み書きのたびにコピーする。
type MemoryStore struct {
	mu sync.RWMutex

	users       map[int64]*model.User
	submissions map[int64]*model.FormSubmission

	nextUserID       int64
	nextSubmissionID int64

	now func() time.Time
}

// MemoryStoreOption はMemoryStoreの設定を変更する。
type MemoryStoreOption func(*MemoryStore)

// WithMemoryClock は送信時刻の取得関数を差し替える。テスト用。
func WithMemoryClock(now func() time.Time) MemoryStoreOption {
	return func(s *MemoryStore) { s.now = now }
}

// NewMemoryStore は空のMemoryStoreを生成する。IDは1から採番する。
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		users:            make(map[int64]*model.User),
		submissions:      make(map[int64]*model.FormSubmission),
		nextUserID:       1,
		nextSubmissionID: 1,
		now:              time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create は送信を保存する。
func (s *MemoryStore) Create(ctx context.Context, input *model.SubmissionInput, client model.ClientInfo) (*model.FormSubmission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubmissionID
	s.nextSubmissionID++

	sub := (&model.FormSubmission{
		ID:                  id,
		FullName:            input.FullName,
		Email:               input.Email,
		Phone:               input.Phone,
		Message:             input.Message,
		SecurityPreferences: input.SecurityPreferences,
		SubmittedAt:         s.now(),
		IPAddress:           model.StringPtr(client.IPAddress),
		UserAgent:           model.StringPtr(client.UserAgent),
	}).Clone()

	s.submissions[id] = sub
	return sub.Clone(), nil
}

// FindByID は指定IDの送信を取得する。見つからない場合はnilを返す。
func (s *MemoryStore) FindByID(ctx context.Context, id int64) (*model.FormSubmission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.submissions[id]
	if !ok {
		return nil, nil
	}
	return sub.Clone(), nil
}

// List はすべての送信を送信時刻の降順で返す。
func (s *MemoryStore) List(ctx context.Context) ([]*model.FormSubmission, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	out := make([]*model.FormSubmission, 0, len(s.submissions))
	for _, sub := range s.submissions {
		out = append(out, sub.Clone())
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *model.FormSubmission) int {
		if c := b.SubmittedAt.Compare(a.SubmittedAt); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		default:
			return 0
		}
	})

	return out, nil
}

// --- UserRepository ---

// userStore はMemoryStoreをUserRepositoryとして公開するためのビュー。
// SubmissionRepositoryとメソッド名が衝突するため分けている。
type userStore struct {
	s *MemoryStore
}

// Users はMemoryStoreが保持するユーザーのリポジトリを返す。
func (s *MemoryStore) Users() UserRepository {
	return userStore{s: s}
}

func (u userStore) FindByID(ctx context.Context, id int64) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	user, ok := u.s.users[id]
	if !ok {
		return nil, nil
	}
	c := *user
	return &c, nil
}

func (u userStore) FindByUsername(ctx context.Context, username string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u.s.mu.RLock()
	defer u.s.mu.RUnlock()

	for _, user := range u.s.users {
		if user.Username == username {
			c := *user
			return &c, nil
		}
	}
	return nil, nil
}

func (u userStore) Create(ctx context.Context, nu model.NewUser) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u.s.mu.Lock()
	defer u.s.mu.Unlock()

	for _, user := range u.s.users {
		if user.Username == nu.Username {
			return nil, model.ErrUsernameTaken
		}
	}

	id := u.s.nextUserID
	u.s.nextUserID++

	user := &model.User{ID: id, Username: nu.Username, Password: nu.Password}
	u.s.users[id] = user

	c := *user
	return &c, nil
}

// compile-time interface check
var (
	_ SubmissionRepository = (*MemoryStore)(nil)
	_ UserRepository       = userStore{}
)
