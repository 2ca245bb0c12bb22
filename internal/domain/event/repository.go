package event

import (
	"context"

	"github.com/noob-master-cell/esn-sub001/internal/domain/transaction"
)

// Repository はイベントリポジトリのインターフェース
type Repository interface {
	// Create は新しいイベントを作成する
	Create(ctx context.Context, event *Event) error

	// GetByID はIDからイベントを取得する（削除済みは除く）
	GetByID(ctx context.Context, id string) (*Event, error)

	// List はイベント一覧を取得する
	List(ctx context.Context, limit, offset int) ([]*Event, error)

	// Update はイベントを更新する（楽観的ロック）
	Update(ctx context.Context, event *Event) error

	// SoftDelete はイベントを論理削除する（トランザクション必須）
	SoftDelete(ctx context.Context, tx transaction.Tx, id string) error

	// ListPromotable は空き枠とウェイトリストの両方を持つイベントIDを取得する
	// 昇格リトライワーカーが使用する
	ListPromotable(ctx context.Context) ([]string, error)
}

// CapacityLedger はイベントごとの定員カウンタを管理するインターフェース
// カウンタの読み書きは必ず登録行の書き込みと同一トランザクション内で行う
type CapacityLedger interface {
	// GetCapacityForUpdate は行ロック付きで定員スナップショットを取得する
	// このロックがイベント単位の直列化ポイントとなる
	GetCapacityForUpdate(ctx context.Context, tx transaction.Tx, eventID string) (*Capacity, error)

	// IncrementConfirmed は確定数を加算する（定員超過の場合は ErrConcurrentModification）
	IncrementConfirmed(ctx context.Context, tx transaction.Tx, eventID string) error

	// DecrementConfirmed は確定数を減算する
	DecrementConfirmed(ctx context.Context, tx transaction.Tx, eventID string) error

	// IncrementWaitlisted はウェイトリスト数を加算する
	IncrementWaitlisted(ctx context.Context, tx transaction.Tx, eventID string) error

	// DecrementWaitlisted はウェイトリスト数を減算する
	DecrementWaitlisted(ctx context.Context, tx transaction.Tx, eventID string) error
}
