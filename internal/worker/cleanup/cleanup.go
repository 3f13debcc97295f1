// Package cleanup はレート制限ウィンドウの定期クリーンアップジョブを提供する。
// 期限切れのクライアントエントリを一定間隔で削除し、メモリ使用量を抑える。
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// DefaultInterval はクリーンアップの既定実行間隔。
const DefaultInterval = time.Minute

// Sweeper は期限切れエントリを削除できるストア。*ratelimit.WindowLimiterが満たす。
type Sweeper interface {
	Sweep() int
	Len() int
}

// SweepJob は期限切れエントリを定期的に削除するジョブ。
// 冪等であり、削除対象がなくてもエラーにならない。
type SweepJob struct {
	sweeper Sweeper
	logger  *slog.Logger
}

// NewSweepJob は新しいSweepJobを生成する。
func NewSweepJob(sweeper Sweeper, logger *slog.Logger) *SweepJob {
	return &SweepJob{
		sweeper: sweeper,
		logger:  logger,
	}
}

// Run は期限切れエントリを1回削除し、削除件数を返す。
func (j *SweepJob) Run(ctx context.Context) int {
	start := time.Now()

	removed := j.sweeper.Sweep()

	if removed > 0 {
		j.logger.DebugContext(ctx, "期限切れのレート制限エントリを削除しました",
			slog.Int("removed_count", removed),
			slog.Int("remaining_count", j.sweeper.Len()),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
	}

	return removed
}

// Start はintervalごとにRunを実行する。
// コンテキストがキャンセルされるまで実行を継続する。
// intervalが0以下の場合はDefaultIntervalを使用する。
func (j *SweepJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("レート制限クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
	)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("レート制限クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
