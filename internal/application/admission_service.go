package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noob-master-cell/esn-sub001/internal/domain/event"
	"github.com/noob-master-cell/esn-sub001/internal/domain/registration"
	"github.com/noob-master-cell/esn-sub001/internal/domain/transaction"
	"github.com/noob-master-cell/esn-sub001/internal/domain/user"
	redisinfra "github.com/noob-master-cell/esn-sub001/internal/infrastructure/redis"
	"github.com/noob-master-cell/esn-sub001/internal/pkg/logger"
	"github.com/noob-master-cell/esn-sub001/internal/pkg/metrics"
)

const (
	eventLockTTL        = 10 * time.Second
	eventLockRetries    = 3
	eventLockRetryDelay = 100 * time.Millisecond

	// 定員カウンタ競合時の内部リトライ回数
	admissionMaxRetries   = 3
	admissionRetryBackoff = 50 * time.Millisecond
)

// AdmissionService は参加登録リクエストの採否を決定する単一の入口
// (userID, eventID) ごとに冪等で、イベント単位で直列化される
type AdmissionService struct {
	txManager   transaction.Manager
	regRepo     registration.Repository
	eventRepo   event.Repository
	userRepo    user.Repository
	ledger      event.CapacityLedger
	lockManager redisinfra.LockManagerInterface
	capCache    redisinfra.CapacityCacheInterface
	promoter    *PromotionService
}

func NewAdmissionService(
	txManager transaction.Manager,
	regRepo registration.Repository,
	eventRepo event.Repository,
	userRepo user.Repository,
	ledger event.CapacityLedger,
	lockManager redisinfra.LockManagerInterface,
	capCache redisinfra.CapacityCacheInterface,
	promoter *PromotionService,
) *AdmissionService {
	return &AdmissionService{
		txManager:   txManager,
		regRepo:     regRepo,
		eventRepo:   eventRepo,
		userRepo:    userRepo,
		ledger:      ledger,
		lockManager: lockManager,
		capCache:    capCache,
		promoter:    promoter,
	}
}

// RequestRegistrationInput は参加登録リクエストの入力
type RequestRegistrationInput struct {
	EventID          string
	UserID           string
	SpecialRequests  string
	Dietary          string
	EmergencyContact string
}

// AdmissionResult は採否結果と更新後のイベントカウントを返す
// クライアントはこのカウントでローカルキャッシュを整合させる
type AdmissionResult struct {
	Registration *registration.Registration
	Event        *event.Event
}

// RequestRegistration は参加登録リクエストを処理する
// 確定・ウェイトリスト・拒否の判定はイベント行ロック下のトランザクションで行う
func (s *AdmissionService) RequestRegistration(ctx context.Context, input RequestRegistrationInput) (*AdmissionResult, error) {
	// 冪等性ガード: アクティブな登録が既にあれば終端的な拒否
	existing, err := s.regRepo.GetActiveByUserAndEvent(ctx, input.UserID, input.EventID)
	if err == nil && existing != nil {
		s.recordAdmission("already_registered")
		return nil, registration.ErrAlreadyRegistered
	}
	if err != nil && !errors.Is(err, registration.ErrRegistrationNotFound) {
		return nil, fmt.Errorf("冪等性チェックに失敗: %w", err)
	}

	// イベント単位の分散ロックを取得
	if s.lockManager != nil {
		lock, err := s.lockManager.AcquireLockWithRetry(ctx, s.eventLockKey(input.EventID), eventLockTTL, eventLockRetries, eventLockRetryDelay)
		if err != nil {
			if errors.Is(err, redisinfra.ErrLockNotAcquired) {
				s.recordAdmission("lock_failed")
				return nil, fmt.Errorf("イベントが他のリクエストによって処理中です")
			}
			return nil, fmt.Errorf("ロック取得に失敗: %w", err)
		}
		defer lock.Release(ctx)
	}

	var result *AdmissionResult
	for attempt := 0; attempt < admissionMaxRetries; attempt++ {
		result, err = s.admitOnce(ctx, input)
		if err == nil || !errors.Is(err, event.ErrConcurrentModification) {
			break
		}
		logger.Warn("定員カウンタの競合を検出、リトライします",
			zap.String("event_id", input.EventID),
			zap.Int("attempt", attempt+1),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(admissionRetryBackoff):
		}
	}
	if err != nil {
		s.recordAdmission(admissionOutcome(err))
		return nil, err
	}

	s.recordAdmission(string(result.Registration.Status))
	s.invalidateCapacityCache(ctx, input.EventID)
	return result, nil
}

// admitOnce は1回分の採否判定をトランザクション内で実行する
func (s *AdmissionService) admitOnce(ctx context.Context, input RequestRegistrationInput) (*AdmissionResult, error) {
	ev, err := s.eventRepo.GetByID(ctx, input.EventID)
	if err != nil {
		return nil, err
	}

	// 事前条件: 状態と締切はエンティティで一元判定
	if err := ev.CheckRegistrable(time.Now()); err != nil {
		return nil, err
	}

	reg := registration.NewRegistration(input.EventID, input.UserID, registration.Options{
		SpecialRequests:  input.SpecialRequests,
		Dietary:          input.Dietary,
		EmergencyContact: input.EmergencyContact,
	})
	s.applyPricing(ctx, reg, ev)

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	// 行ロック付きスナップショットが check-then-act を直列化する
	cap, err := s.ledger.GetCapacityForUpdate(ctx, tx, input.EventID)
	if err != nil {
		return nil, err
	}

	switch {
	case cap.HasFreeSlot():
		if err := reg.Confirm(); err != nil {
			return nil, err
		}
		if err := s.ledger.IncrementConfirmed(ctx, tx, input.EventID); err != nil {
			return nil, err
		}
	case cap.AllowWaitlist:
		if err := reg.Waitlist(cap.Waitlisted + 1); err != nil {
			return nil, err
		}
		if err := s.ledger.IncrementWaitlisted(ctx, tx, input.EventID); err != nil {
			return nil, err
		}
	default:
		return nil, event.ErrEventFull
	}

	if err := reg.Validate(); err != nil {
		return nil, err
	}
	if err := s.regRepo.Create(ctx, tx, reg); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}

	updated, err := s.eventRepo.GetByID(ctx, input.EventID)
	if err != nil {
		return nil, fmt.Errorf("更新後イベント取得に失敗: %w", err)
	}
	return &AdmissionResult{Registration: reg, Event: updated}, nil
}

// applyPricing は実効価格を決定して支払い帳簿を設定する
// ユーザーが見つからない場合は通常価格にフォールバックする
func (s *AdmissionService) applyPricing(ctx context.Context, reg *registration.Registration, ev *event.Event) {
	verified := false
	if s.userRepo != nil {
		u, err := s.userRepo.GetByID(ctx, reg.UserID)
		switch {
		case err == nil:
			verified = u.MemberPriceEligible()
		case errors.Is(err, user.ErrUserNotFound):
			logger.Warn("ユーザー参照が見つかりません、通常価格を適用", zap.String("user_id", reg.UserID))
		default:
			logger.Warn("ユーザー取得エラー、通常価格を適用", zap.Error(err))
		}
	}

	regType := registration.TypeStandard
	if verified && ev.Type == event.TypePaid && ev.MemberPrice < ev.Price {
		regType = registration.TypeMember
	}
	reg.SetPayment(ev.PriceFor(verified), ev.Currency, regType)
}

// CancelRegistration は参加登録をキャンセルする
// キャンセル自体はユーザーへの保証であり、後続の昇格はベストエフォート
// （昇格失敗時はワーカーが再試行し、キャンセルをロールバックすることはない）
func (s *AdmissionService) CancelRegistration(ctx context.Context, id, userID string) (*registration.Registration, error) {
	// 所有者チェック用の事前読み取り。判定に使うスナップショットではない
	reg, err := s.regRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if userID != "" && reg.UserID != userID {
		return nil, registration.ErrNotOwner
	}

	reg, wasConfirmed, err := s.cancelTx(ctx, id, reg.EventID)
	if err != nil {
		return nil, err
	}

	s.invalidateCapacityCache(ctx, reg.EventID)

	if wasConfirmed && s.promoter != nil {
		if _, err := s.promoter.PromoteNext(ctx, reg.EventID); err != nil {
			logger.Warn("キャンセル後の昇格に失敗、ワーカーが再試行します",
				zap.String("event_id", reg.EventID),
				zap.Error(err),
			)
		}
	}
	return reg, nil
}

// cancelTx はキャンセルのトランザクション本体
// ロック取得後に登録を読み直す。同一登録の並行キャンセルは
// ここで ErrAlreadyCancelled となり、カウンタの二重減算を防ぐ
// イベントロックはこのスコープで解放され、後続の昇格が別途取得できる
func (s *AdmissionService) cancelTx(ctx context.Context, id, eventID string) (*registration.Registration, bool, error) {
	if s.lockManager != nil {
		lock, lockErr := s.lockManager.AcquireLockWithRetry(ctx, s.eventLockKey(eventID), eventLockTTL, eventLockRetries, eventLockRetryDelay)
		if lockErr != nil {
			return nil, false, fmt.Errorf("ロック取得に失敗: %w", lockErr)
		}
		defer lock.Release(ctx)
	}

	reg, err := s.regRepo.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}

	wasConfirmed := reg.Status == registration.StatusConfirmed
	wasWaitlisted := reg.IsWaitlisted()
	var cancelledPosition int
	if wasWaitlisted {
		cancelledPosition = *reg.Position
	}

	if err := reg.Cancel(); err != nil {
		return nil, false, err
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := s.regRepo.Update(ctx, tx, reg); err != nil {
		return nil, false, err
	}
	if wasConfirmed {
		if err := s.ledger.DecrementConfirmed(ctx, tx, reg.EventID); err != nil {
			return nil, false, err
		}
	}
	if wasWaitlisted {
		if err := s.ledger.DecrementWaitlisted(ctx, tx, reg.EventID); err != nil {
			return nil, false, err
		}
		// 抜けた順位より後ろを詰めて 1 始まり連番を維持する
		if err := s.regRepo.ShiftPositionsAfter(ctx, tx, reg.EventID, cancelledPosition); err != nil {
			return nil, false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("コミットに失敗: %w", err)
	}
	return reg, wasConfirmed, nil
}

// GetRegistration はIDから参加登録を取得する
func (s *AdmissionService) GetRegistration(ctx context.Context, id string) (*registration.Registration, error) {
	return s.regRepo.GetByID(ctx, id)
}

// GetUserRegistrations はユーザーの参加登録一覧を取得する
func (s *AdmissionService) GetUserRegistrations(ctx context.Context, userID string, limit, offset int) ([]*registration.Registration, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.regRepo.GetByUserID(ctx, userID, limit, offset)
}

// GetEventRegistrations はイベントの参加登録一覧を取得する（主催者向け）
func (s *AdmissionService) GetEventRegistrations(ctx context.Context, eventID string, limit, offset int) ([]*registration.Registration, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.regRepo.GetByEventID(ctx, eventID, limit, offset)
}

// IsRegistered は (userID, eventID) のアクティブな登録有無を返す
func (s *AdmissionService) IsRegistered(ctx context.Context, userID, eventID string) (bool, error) {
	_, err := s.regRepo.GetActiveByUserAndEvent(ctx, userID, eventID)
	if err != nil {
		if errors.Is(err, registration.ErrRegistrationNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// MarkAttended は登録を出席済みにする（主催者チェックイン）
func (s *AdmissionService) MarkAttended(ctx context.Context, id string) (*registration.Registration, error) {
	reg, err := s.regRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := reg.MarkAttended(); err != nil {
		return nil, err
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	if err := s.regRepo.Update(ctx, tx, reg); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("コミットに失敗: %w", err)
	}
	return reg, nil
}

func (s *AdmissionService) eventLockKey(eventID string) string {
	return "event:" + eventID
}

func (s *AdmissionService) invalidateCapacityCache(ctx context.Context, eventID string) {
	if s.capCache == nil {
		return
	}
	if err := s.capCache.Invalidate(ctx, eventID); err != nil {
		logger.Warn("キャッシュ無効化エラー", zap.Error(err))
	}
}

func (s *AdmissionService) recordAdmission(outcome string) {
	if m := metrics.Get(); m != nil {
		m.AdmissionsTotal.WithLabelValues(outcome).Inc()
	}
}

// admissionOutcome はエラーをメトリクスラベルに変換する
func admissionOutcome(err error) string {
	switch {
	case errors.Is(err, event.ErrEventFull):
		return "event_full"
	case errors.Is(err, event.ErrEventNotRegistrable):
		return "not_registrable"
	case errors.Is(err, event.ErrDeadlinePassed):
		return "deadline_passed"
	case errors.Is(err, registration.ErrAlreadyRegistered):
		return "already_registered"
	default:
		return "error"
	}
}
