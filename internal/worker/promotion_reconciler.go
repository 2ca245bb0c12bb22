package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noob-master-cell/esn-sub001/internal/pkg/logger"
)

// Promoter はウェイトリスト昇格を駆動するインターフェース
type Promoter interface {
	PromoteUpTo(ctx context.Context, eventID string, limit int) (int, error)
}

// PromotableLister は昇格候補イベントを列挙するインターフェース
type PromotableLister interface {
	ListPromotable(ctx context.Context) ([]string, error)
}

// PromotionReconciler は取りこぼした昇格を定期的に再実行するワーカー
// キャンセル後の昇格が失敗してもキャンセル自体は成立するため、
// 空き枠とウェイトリストが併存するイベントをここで回収する
type PromotionReconciler struct {
	promoter Promoter
	lister   PromotableLister
	interval time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewPromotionReconciler は新しいリコンサイラーを作成
func NewPromotionReconciler(promoter Promoter, lister PromotableLister, interval time.Duration) *PromotionReconciler {
	return &PromotionReconciler{
		promoter: promoter,
		lister:   lister,
		interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start はリコンサイラーを開始
func (r *PromotionReconciler) Start(ctx context.Context) {
	logger.Info("昇格リコンサイラー開始", zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer close(r.doneCh)

	for {
		select {
		case <-ctx.Done():
			logger.Info("昇格リコンサイラー停止（コンテキストキャンセル）")
			return
		case <-r.stopCh:
			logger.Info("昇格リコンサイラー停止（シグナル受信）")
			return
		case <-ticker.C:
			r.reconcile(ctx)
		}
	}
}

// Stop はリコンサイラーを停止
func (r *PromotionReconciler) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

// reconcile は昇格候補イベントを走査して昇格を再実行
func (r *PromotionReconciler) reconcile(ctx context.Context) {
	log := logger.Get()
	log.Debug("昇格リコンサイル開始")

	eventIDs, err := r.lister.ListPromotable(ctx)
	if err != nil {
		log.Error("昇格候補イベントの取得に失敗", zap.Error(err))
		return
	}
	if len(eventIDs) == 0 {
		log.Debug("昇格候補なし")
		return
	}

	for _, eventID := range eventIDs {
		promoted, err := r.promoter.PromoteUpTo(ctx, eventID, -1)
		if err != nil {
			log.Error("昇格の再実行に失敗",
				zap.String("event_id", eventID),
				zap.Error(err),
			)
			continue
		}
		if promoted > 0 {
			log.Info("取りこぼした昇格を回収",
				zap.String("event_id", eventID),
				zap.Int("promoted", promoted),
			)
		}
	}
}
