package registration

import (
	"context"

	"github.com/noob-master-cell/esn-sub001/internal/domain/transaction"
)

// Repository は参加登録リポジトリのインターフェース
type Repository interface {
	// Create は新しい参加登録を作成する（トランザクション必須）
	// アクティブな重複登録は ErrAlreadyRegistered を返す
	Create(ctx context.Context, tx transaction.Tx, registration *Registration) error

	// GetByID はIDから参加登録を取得する
	GetByID(ctx context.Context, id string) (*Registration, error)

	// GetActiveByUserAndEvent は (userID, eventID) のアクティブな登録を取得する
	GetActiveByUserAndEvent(ctx context.Context, userID, eventID string) (*Registration, error)

	// GetByUserID はユーザーの参加登録一覧を新しい順に取得する
	GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*Registration, error)

	// GetByEventID はイベントの参加登録一覧を取得する（主催者向け）
	GetByEventID(ctx context.Context, eventID string, limit, offset int) ([]*Registration, error)

	// GetFirstWaitlisted は順位1のウェイトリスト登録を行ロック付きで取得する
	GetFirstWaitlisted(ctx context.Context, tx transaction.Tx, eventID string) (*Registration, error)

	// Update は参加登録を更新する（トランザクション必須）
	Update(ctx context.Context, tx transaction.Tx, registration *Registration) error

	// ShiftPositionsAfter は指定順位より後のウェイトリスト順位を1つ詰める
	// 昇格・キャンセルと同一トランザクション内で実行し、1始まり連番の不変条件を保つ
	ShiftPositionsAfter(ctx context.Context, tx transaction.Tx, eventID string, position int) error

	// CancelAllActiveByEvent はイベントの全アクティブ登録をキャンセルする
	// イベント削除のカスケード処理で使用する
	CancelAllActiveByEvent(ctx context.Context, tx transaction.Tx, eventID string) (int, error)

	// ListWaitlisted はイベントのウェイトリストを順位昇順で取得する
	ListWaitlisted(ctx context.Context, eventID string) ([]*Registration, error)
}
