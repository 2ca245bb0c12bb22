package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noob-master-cell/esn-sub001/internal/domain/event"
	"github.com/noob-master-cell/esn-sub001/internal/domain/transaction"
)

// CapacityLedger はイベント定員カウンタのPostgreSQL実装
// カウンタは events テーブルの非正規化列であり、登録行の書き込みと
// 同一トランザクション内のガード付きUPDATEでのみ更新する
type CapacityLedger struct {
	db *sqlx.DB
}

// NewCapacityLedger はCapacityLedgerを作成する
func NewCapacityLedger(db *sqlx.DB) *CapacityLedger {
	return &CapacityLedger{db: db}
}

type capacityRow struct {
	MaxParticipants   int  `db:"max_participants"`
	RegistrationCount int  `db:"registration_count"`
	WaitlistCount     int  `db:"waitlist_count"`
	AllowWaitlist     bool `db:"allow_waitlist"`
}

// GetCapacityForUpdate は行ロック付きで定員スナップショットを取得する
// FOR UPDATE の行ロックが同一イベントへの同時登録を直列化する
func (l *CapacityLedger) GetCapacityForUpdate(ctx context.Context, tx transaction.Tx, eventID string) (*event.Capacity, error) {
	sqlxTx := UnwrapTx(tx)
	query := `
		SELECT max_participants, registration_count, waitlist_count, allow_waitlist
		FROM events
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE
	`

	var row capacityRow
	if err := sqlxTx.GetContext(ctx, &row, query, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("定員スナップショット取得に失敗: %w", err)
	}

	return &event.Capacity{
		Confirmed:     row.RegistrationCount,
		Waitlisted:    row.WaitlistCount,
		Max:           row.MaxParticipants,
		AllowWaitlist: row.AllowWaitlist,
	}, nil
}

// IncrementConfirmed は確定数を加算する
// WHERE句のガードにより定員超過のカウンタは決して生まれない
func (l *CapacityLedger) IncrementConfirmed(ctx context.Context, tx transaction.Tx, eventID string) error {
	query := `
		UPDATE events
		SET registration_count = registration_count + 1, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL
		  AND (max_participants = 0 OR registration_count < max_participants)
	`
	return l.guardedExec(ctx, tx, query, eventID)
}

// DecrementConfirmed は確定数を減算する
func (l *CapacityLedger) DecrementConfirmed(ctx context.Context, tx transaction.Tx, eventID string) error {
	query := `
		UPDATE events
		SET registration_count = registration_count - 1, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL AND registration_count > 0
	`
	return l.guardedExec(ctx, tx, query, eventID)
}

// IncrementWaitlisted はウェイトリスト数を加算する
func (l *CapacityLedger) IncrementWaitlisted(ctx context.Context, tx transaction.Tx, eventID string) error {
	query := `
		UPDATE events
		SET waitlist_count = waitlist_count + 1, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL AND allow_waitlist = TRUE
	`
	return l.guardedExec(ctx, tx, query, eventID)
}

// DecrementWaitlisted はウェイトリスト数を減算する
func (l *CapacityLedger) DecrementWaitlisted(ctx context.Context, tx transaction.Tx, eventID string) error {
	query := `
		UPDATE events
		SET waitlist_count = waitlist_count - 1, updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL AND waitlist_count > 0
	`
	return l.guardedExec(ctx, tx, query, eventID)
}

// guardedExec はガード付きUPDATEを実行し、0行更新を競合として報告する
func (l *CapacityLedger) guardedExec(ctx context.Context, tx transaction.Tx, query, eventID string) error {
	sqlxTx := UnwrapTx(tx)
	result, err := sqlxTx.ExecContext(ctx, query, eventID)
	if err != nil {
		return fmt.Errorf("定員カウンタ更新に失敗: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗: %w", err)
	}
	if rows == 0 {
		return event.ErrConcurrentModification
	}
	return nil
}

var _ event.CapacityLedger = (*CapacityLedger)(nil)
