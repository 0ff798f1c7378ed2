// Package cleanup はPostgreSQLトークンストアの期限切れ行を削除するジョブを提供する。
// セッションの有効期限（SESSION_MAX_AGE）を過ぎて更新されていないトークンは
// 復元時に必ず破棄されるため、定期的にまとめて削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// CleanupJob は保持期間を超過したトークン行の削除ジョブ。冪等。
type CleanupJob struct {
	db        Executor
	logger    *slog.Logger
	Retention time.Duration // トークンの保持期間
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(db Executor, retention time.Duration, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		db:        db,
		logger:    logger,
		Retention: retention,
	}
}

// Run はupdated_atがRetentionより古いトークン行を全オリジン分削除する。
// 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	interval := fmt.Sprintf("%d seconds", int64(j.Retention.Seconds()))

	query := `DELETE FROM token_store WHERE updated_at < now() - $1::interval`
	result, err := j.db.ExecContext(ctx, query, interval)
	if err != nil {
		j.logger.Error("token cleanup failed",
			slog.String("error", err.Error()),
			slog.Duration("retention", j.Retention),
		)
		return fmt.Errorf("failed to clean up tokens: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("failed to read deleted count",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to read deleted count: %w", err)
	}

	j.logger.Info("token cleanup completed",
		slog.Int64("deleted_count", deletedCount),
		slog.Duration("retention", j.Retention),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回、その後intervalごとにRunを実行する。ctxが終了するまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	// 失敗はRun内でログ済み
	_ = j.Run(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = j.Run(ctx)
		}
	}
}
