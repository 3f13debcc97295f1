// Package ratelimit はクライアントごとの固定ウィンドウ方式の送信回数制限を提供する。
//
// 各キーは「エントリなし → カウント中 → ブロック中 → 期限切れ（カウント1で再開）」と遷移する。
// 状態はプロセス内のメモリにのみ保持され、複数プロセス間では共有されない。
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// デフォルト値: 60秒あたり5回
const (
	DefaultWindow = 60 * time.Second
	DefaultMax    = 5
)

// Entry はクライアント1件分のカウンタ。
type Entry struct {
	Count   int
	ResetAt time.Time
}

// Decision は1回の判定結果。
type Decision struct {
	Allowed bool
	// Remaining は現在のウィンドウ内で残っている許可回数。
	Remaining int
	// RetryAfter はブロック時に次の送信が可能になるまでの秒数（1以上）。許可時は0。
	RetryAfter int
	ResetAt    time.Time
}

// WindowLimiter は固定ウィンドウのカウンタでキーごとの回数を制限する。
type WindowLimiter struct {
	window time.Duration
	max    int
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*Entry
}

// Option はWindowLimiterの設定を変更する。
type Option func(*WindowLimiter)

// WithClock は現在時刻の取得関数を差し替える。テスト用。
func WithClock(now func() time.Time) Option {
	return func(l *WindowLimiter) { l.now = now }
}

// NewWindowLimiter はwindowあたりmax回まで許可するWindowLimiterを生成する。
// 0以下の値はデフォルト値に置き換える。
func NewWindowLimiter(window time.Duration, max int, opts ...Option) *WindowLimiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if max <= 0 {
		max = DefaultMax
	}
	l := &WindowLimiter{
		window:  window,
		max:     max,
		now:     time.Now,
		entries: make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Window はウィンドウの長さを返す。
func (l *WindowLimiter) Window() time.Duration { return l.window }

// Max はウィンドウあたりの上限回数を返す。
func (l *WindowLimiter) Max() int { return l.max }

// Allow はkeyからのリクエストを1回分評価する。
// 評価の前に期限切れのエントリをすべて削除する（全件走査）。
func (l *WindowLimiter) Allow(key string) Decision {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweepLocked(now)

	e, ok := l.entries[key]
	if !ok || now.After(e.ResetAt) {
		e = &Entry{Count: 1, ResetAt: now.Add(l.window)}
		l.entries[key] = e
		return Decision{Allowed: true, Remaining: l.max - 1, ResetAt: e.ResetAt}
	}

	if e.Count >= l.max {
		return Decision{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: retryAfterSeconds(e.ResetAt.Sub(now)),
			ResetAt:    e.ResetAt,
		}
	}

	e.Count++
	return Decision{Allowed: true, Remaining: l.max - e.Count, ResetAt: e.ResetAt}
}

// Sweep は期限切れのエントリを削除し、削除件数を返す。
func (l *WindowLimiter) Sweep() int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.sweepLocked(now)
}

// Len は現在保持しているエントリ数を返す。テストおよびメトリクス用。
func (l *WindowLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Lookup はkeyのエントリのコピーを返す。存在しない場合はfalseを返す。
func (l *WindowLimiter) Lookup(key string) (Entry, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

func (l *WindowLimiter) sweepLocked(now time.Time) int {
	removed := 0
	for key, e := range l.entries {
		if now.After(e.ResetAt) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// retryAfterSeconds は残り時間を切り上げた秒数にする。最小1秒。
func retryAfterSeconds(d time.Duration) int {
	sec := int(math.Ceil(d.Seconds()))
	if sec < 1 {
		sec = 1
	}
	return sec
}
