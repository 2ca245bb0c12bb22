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
	redisinfra "github.com/noob-master-cell/esn-sub001/internal/infrastructure/redis"
	"github.com/noob-master-cell/esn-sub001/internal/pkg/logger"
)

// 残り枠数キャッシュのTTL。書き込み側の無効化があるため短めで十分
const capacityCacheTTL = 30 * time.Second

// EventService はイベントの作成・更新・ライフサイクル遷移を担う
type EventService struct {
	txManager transaction.Manager
	eventRepo event.Repository
	regRepo   registration.Repository
	promoter  *PromotionService
	capCache  redisinfra.CapacityCacheInterface
}

func NewEventService(
	txManager transaction.Manager,
	eventRepo event.Repository,
	regRepo registration.Repository,
	promoter *PromotionService,
	capCache redisinfra.CapacityCacheInterface,
) *EventService {
	return &EventService{
		txManager: txManager,
		eventRepo: eventRepo,
		regRepo:   regRepo,
		promoter:  promoter,
		capCache:  capCache,
	}
}

type CreateEventInput struct {
	Name                 string
	Description          string
	OrganizerID          string
	Type                 event.Type
	MaxParticipants      int
	AllowWaitlist        bool
	RegistrationDeadline *time.Time
	StartAt              time.Time
	EndAt                time.Time
	Price                int
	MemberPrice          int
	Currency             string
}

func (s *EventService) CreateEvent(ctx context.Context, input CreateEventInput) (*event.Event, error) {
	e := event.NewEvent(input.Name, input.Description, input.OrganizerID, input.Type, input.StartAt, input.EndAt, input.MaxParticipants, input.AllowWaitlist)
	e.RegistrationDeadline = input.RegistrationDeadline
	e.Price = input.Price
	e.MemberPrice = input.MemberPrice
	if input.Currency != "" {
		e.Currency = input.Currency
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.eventRepo.Create(ctx, e); err != nil {
		return nil, fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	return e, nil
}

func (s *EventService) GetEvent(ctx context.Context, id string) (*event.Event, error) {
	return s.eventRepo.GetByID(ctx, id)
}

func (s *EventService) ListEvents(ctx context.Context, limit, offset int) ([]*event.Event, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return s.eventRepo.List(ctx, limit, offset)
}

// RemainingCapacity はイベントの残り確定枠数を返す（無制限は -1）
// キャッシュ優先で読み、ミス時はDBの値をTTL付きで書き戻す
// 参照用の値であり、登録可否の判定には使わない
func (s *EventService) RemainingCapacity(ctx context.Context, eventID string) (int, error) {
	if s.capCache != nil {
		remaining, err := s.capCache.GetRemaining(ctx, eventID)
		if err == nil {
			return remaining, nil
		}
		if !errors.Is(err, redisinfra.ErrCacheMiss) {
			logger.Warn("キャッシュ取得エラー、DBから読み取ります", zap.Error(err))
		}
	}

	e, err := s.eventRepo.GetByID(ctx, eventID)
	if err != nil {
		return 0, err
	}
	cap := event.Capacity{
		Confirmed: e.RegistrationCount,
		Max:       e.MaxParticipants,
	}
	remaining := cap.Remaining()

	if s.capCache != nil {
		if err := s.capCache.SetRemaining(ctx, eventID, remaining, capacityCacheTTL); err != nil {
			logger.Warn("キャッシュ保存エラー", zap.Error(err))
		}
	}
	return remaining, nil
}

type UpdateEventInput struct {
	ID                   string
	Name                 string
	Description          string
	MaxParticipants      int
	AllowWaitlist        bool
	RegistrationDeadline *time.Time
	StartAt              time.Time
	EndAt                time.Time
	Price                int
	MemberPrice          int
	Currency             string
}

// UpdateEvent はイベントを更新する
// 定員の引き上げを検出した場合、増枠分だけウェイトリストを昇格させる
func (s *EventService) UpdateEvent(ctx context.Context, input UpdateEventInput) (*event.Event, error) {
	e, err := s.eventRepo.GetByID(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	oldMax := e.MaxParticipants
	e.Name = input.Name
	e.Description = input.Description
	e.MaxParticipants = input.MaxParticipants
	e.AllowWaitlist = input.AllowWaitlist
	e.RegistrationDeadline = input.RegistrationDeadline
	e.StartAt = input.StartAt
	e.EndAt = input.EndAt
	e.Price = input.Price
	e.MemberPrice = input.MemberPrice
	if input.Currency != "" {
		e.Currency = input.Currency
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("バリデーションエラー: %w", err)
	}
	if err := s.eventRepo.Update(ctx, e); err != nil {
		return nil, err
	}
	s.invalidateCapacityCache(ctx, e.ID)

	if delta := capacityDelta(oldMax, e.MaxParticipants); delta != 0 && s.promoter != nil {
		promoted, promoteErr := s.promoter.PromoteUpTo(ctx, e.ID, delta)
		if promoteErr != nil {
			logger.Warn("定員引き上げ後の昇格に失敗、ワーカーが再試行します",
				zap.String("event_id", e.ID),
				zap.Error(promoteErr),
			)
		} else if promoted > 0 {
			logger.Info("定員引き上げにより昇格しました",
				zap.String("event_id", e.ID),
				zap.Int("promoted", promoted),
			)
		}
		// 昇格があった場合はカウントを読み直して返す
		if promoted > 0 {
			if fresh, err := s.eventRepo.GetByID(ctx, e.ID); err == nil {
				return fresh, nil
			}
		}
	}
	return e, nil
}

// capacityDelta は定員変更による昇格上限を返す（0 は昇格不要、-1 は無制限）
func capacityDelta(oldMax, newMax int) int {
	if newMax == event.UnlimitedParticipants && oldMax != event.UnlimitedParticipants {
		return -1
	}
	if oldMax == event.UnlimitedParticipants || newMax <= oldMax {
		return 0
	}
	return newMax - oldMax
}

// PublishEvent はドラフトイベントを公開する
func (s *EventService) PublishEvent(ctx context.Context, id string) (*event.Event, error) {
	return s.transition(ctx, id, (*event.Event).Publish)
}

// OpenRegistration は参加登録の受付を開始する
func (s *EventService) OpenRegistration(ctx context.Context, id string) (*event.Event, error) {
	return s.transition(ctx, id, (*event.Event).OpenRegistration)
}

// CloseRegistration は参加登録の受付を終了する
func (s *EventService) CloseRegistration(ctx context.Context, id string) (*event.Event, error) {
	return s.transition(ctx, id, (*event.Event).CloseRegistration)
}

func (s *EventService) transition(ctx context.Context, id string, fn func(*event.Event) error) (*event.Event, error) {
	e, err := s.eventRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := fn(e); err != nil {
		return nil, err
	}
	if err := s.eventRepo.Update(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// RemoveEvent はイベントを論理削除し、アクティブな参加登録を一括キャンセルする
// 削除とカスケードキャンセルは同一トランザクションで行う
func (s *EventService) RemoveEvent(ctx context.Context, id string) error {
	if _, err := s.eventRepo.GetByID(ctx, id); err != nil {
		return err
	}

	tx, err := s.txManager.Begin(ctx)
	if err != nil {
		return fmt.Errorf("トランザクション開始に失敗: %w", err)
	}
	defer tx.Rollback()

	cancelled, err := s.regRepo.CancelAllActiveByEvent(ctx, tx, id)
	if err != nil {
		return err
	}
	if err := s.eventRepo.SoftDelete(ctx, tx, id); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("コミットに失敗: %w", err)
	}

	s.invalidateCapacityCache(ctx, id)
	logger.Info("イベントを削除しました",
		zap.String("event_id", id),
		zap.Int("cancelled_registrations", cancelled),
	)
	return nil
}

func (s *EventService) invalidateCapacityCache(ctx context.Context, eventID string) {
	if s.capCache == nil {
		return
	}
	if err := s.capCache.Invalidate(ctx, eventID); err != nil {
		logger.Warn("キャッシュ無効化エラー", zap.Error(err))
	}
}
