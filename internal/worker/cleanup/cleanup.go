// Package cleanup は期限切れセッションの定期削除ジョブを提供する。
// メモリとPostgreSQLのストアは期限切れレコードを自分では消さないため、
// serve と worker の両モードでこのジョブを回す。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval はジョブの実行間隔のデフォルト値。
const DefaultInterval = 10 * time.Minute

// Purger は期限切れセッションを削除するストア。session.Store が満たす。
type Purger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Metrics は削除件数を記録する。
type Metrics interface {
	RecordSessionsPurged(n int64)
}

// SessionCleanupJob は期限切れセッションを削除するジョブ。
// 冪等で、削除対象がなくてもエラーにならない。
type SessionCleanupJob struct {
	store   Purger
	metrics Metrics
	logger  *slog.Logger
}

// NewSessionCleanupJob は新しいSessionCleanupJobを生成する。metricsはnilでもよい。
func NewSessionCleanupJob(store Purger, metrics Metrics, logger *slog.Logger) *SessionCleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionCleanupJob{store: store, metrics: metrics, logger: logger}
}

// Run は期限切れセッションを1回削除する。
func (j *SessionCleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deleted, err := j.store.DeleteExpired(ctx)
	if err != nil {
		j.logger.Error("セッションクリーンアップに失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to delete expired sessions: %w", err)
	}

	if j.metrics != nil {
		j.metrics.RecordSessionsPurged(deleted)
	}

	j.logger.Info("セッションクリーンアップが完了しました",
		slog.Int64("deleted_count", deleted),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start はinterval間隔でRunを繰り返す。起動直後に1回実行し、
// コンテキストがキャンセルされるまでブロックする。
func (j *SessionCleanupJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("セッションクリーンアップを開始しました", slog.Duration("interval", interval))

	j.Run(ctx)
	for {
		select {
		case <-ctx.Done():
			j.logger.Info("セッションクリーンアップを停止しました")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
