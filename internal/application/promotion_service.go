package application

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/noob-master-cell/esn-sub001/internal/domain/event"
	"github.com/noob-master-cell/esn-sub001/internal/domain/registration"
	"github.com/noob-master-cell/esn-sub001/internal/domain/transaction"
	redisinfra "github.com/noob-master-cell/esn-sub001/internal/infrastructure/redis"
	"github.com/noob-master-cell/esn-sub001/internal/pkg/logger"
	"github.com/noob-master-cell/esn-sub001/internal/pkg/metrics"
)

// PromotionService は空き枠発生時にウェイトリスト先頭を確定へ昇格させる
// 昇格と順位の繰り上げは必ず同一トランザクションで行い、
// 昇格だけ適用されて連番が崩れる部分適用を防ぐ
type PromotionService struct {
	txManager   transaction.Manager
	regRepo     registration.Repository
	ledger      event.CapacityLedger
	lockManager redisinfra.LockManagerInterface
	capCache    redisinfra.CapacityCacheInterface
}

func NewPromotionService(
	txManager transaction.Manager,
	regRepo registration.Repository,
	ledger event.CapacityLedger,
	lockManager redisinfra.LockManagerInterface,
	capCache redisinfra.CapacityCacheInterface,
) *PromotionService {
	return &PromotionService{
		txManager:   txManager,
		regRepo:     regRepo,
		ledger:      ledger,
		lockManager: lockManager,
		capCache:    capCache,
	}
}

// PromoteNext はウェイトリスト先頭を1件昇格させる
// 空き枠がない、またはウェイトリストが空の場合は何もせず false を返す
func (s *PromotionService) PromoteNext(ctx context.Context, eventID string) (bool, error) {
	if s.lockManager != nil {
		lock, err := s.lockManager.AcquireLockWithRetry(ctx, "event:"+eventID, eventLockTTL, eventLockRetries, eventLockRetryDelay)
		if err != nil {
			s.recordPromotion("failed")
			return false, fmt.Errorf("ロック取得に失敗: %w", err)
		}
		defer lock.Release(ctx)
	}

	promoted, err := s.promoteTx(ctx, eventID)
	if err != nil {
		s.recordPromotion("failed")
		return false, err
	}
	if !promoted {
		s.recordPromotion("empty")
		return false, nil
	}

	s.recordPromotion("promoted")
	if s.capCache != nil {
		if cacheErr := s.capCache.Invalidate(ctx, eventID); cacheErr != nil {
			logger.Warn("キャッシュ無効化エラー", zap.Error(cacheErr))
		}
	}
	return true, nil
}

func (s *PromotionService) promoteTx(ctx context.Context, eventID string) (bool, error) {
	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	cap, err := s.ledger.GetCapacityForUpdate(ctx, tx, eventID)
	if err != nil {
		return false, err
	}
	if !cap.HasFreeSlot() {
		return false, nil
	}

	first, err := s.regRepo.GetFirstWaitlisted(ctx, tx, eventID)
	if err != nil {
		if errors.Is(err, registration.ErrNoWaitlisted) {
			return false, nil
		}
		return false, err
	}
	promotedPosition := *first.Position

	if err := first.Confirm(); err != nil {
		return false, err
	}
	if err := s.regRepo.Update(ctx, tx, first); err != nil {
		return false, err
	}
	// 残りの順位を詰める。昇格と分離してはならない
	if err := s.regRepo.ShiftPositionsAfter(ctx, tx, eventID, promotedPosition); err != nil {
		return false, err
	}
	if err := s.ledger.DecrementWaitlisted(ctx, tx, eventID); err != nil {
		return false, err
	}
	if err := s.ledger.IncrementConfirmed(ctx, tx, eventID); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("コミットに失敗: %w", err)
	}

	logger.Info("ウェイトリストから昇格しました",
		zap.String("event_id", eventID),
		zap.String("registration_id", first.ID),
	)
	return true, nil
}

// PromoteUpTo は最大 limit 件を順位順に昇格させる（limit < 0 で空き枠が尽きるまで）
// 定員引き上げ時に使用する
func (s *PromotionService) PromoteUpTo(ctx context.Context, eventID string, limit int) (int, error) {
	count := 0
	for limit < 0 || count < limit {
		promoted, err := s.PromoteNext(ctx, eventID)
		if err != nil {
			return count, err
		}
		if !promoted {
			break
		}
		count++
	}
	return count, nil
}

func (s *PromotionService) recordPromotion(result string) {
	if m := metrics.Get(); m != nil {
		m.PromotionsTotal.WithLabelValues(result).Inc()
	}
}
