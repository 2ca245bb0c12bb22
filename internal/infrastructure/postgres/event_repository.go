package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noob-master-cell/esn-sub001/internal/domain/event"
	"github.com/noob-master-cell/esn-sub001/internal/domain/transaction"
)

// eventRow はDBの行を表す構造体
type eventRow struct {
	ID                   string     `db:"id"`
	Name                 string     `db:"name"`
	Description          *string    `db:"description"`
	OrganizerID          string     `db:"organizer_id"`
	Type                 string     `db:"type"`
	Status               string     `db:"status"`
	MaxParticipants      int        `db:"max_participants"`
	RegistrationCount    int        `db:"registration_count"`
	WaitlistCount        int        `db:"waitlist_count"`
	AllowWaitlist        bool       `db:"allow_waitlist"`
	RegistrationDeadline *time.Time `db:"registration_deadline"`
	StartAt              time.Time  `db:"start_at"`
	EndAt                time.Time  `db:"end_at"`
	Price                int        `db:"price"`
	MemberPrice          int        `db:"member_price"`
	Currency             string     `db:"currency"`
	CreatedAt            time.Time  `db:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at"`
	DeletedAt            *time.Time `db:"deleted_at"`
	Version              int        `db:"version"`
}

// toEntity はeventRowをEventエンティティに変換する
func (r *eventRow) toEntity() *event.Event {
	var desc string
	if r.Description != nil {
		desc = *r.Description
	}
	return &event.Event{
		ID:                   r.ID,
		Name:                 r.Name,
		Description:          desc,
		OrganizerID:          r.OrganizerID,
		Type:                 event.Type(r.Type),
		Status:               event.Status(r.Status),
		MaxParticipants:      r.MaxParticipants,
		RegistrationCount:    r.RegistrationCount,
		WaitlistCount:        r.WaitlistCount,
		AllowWaitlist:        r.AllowWaitlist,
		RegistrationDeadline: r.RegistrationDeadline,
		StartAt:              r.StartAt,
		EndAt:                r.EndAt,
		Price:                r.Price,
		MemberPrice:          r.MemberPrice,
		Currency:             r.Currency,
		CreatedAt:            r.CreatedAt,
		UpdatedAt:            r.UpdatedAt,
		DeletedAt:            r.DeletedAt,
		Version:              r.Version,
	}
}

const eventColumns = `id, name, description, organizer_id, type, status, max_participants, registration_count, waitlist_count, allow_waitlist, registration_deadline, start_at, end_at, price, member_price, currency, created_at, updated_at, deleted_at, version`

// EventRepository はイベントリポジトリのPostgreSQL実装
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository はEventRepositoryを作成する
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create は新しいイベントを作成する
func (r *EventRepository) Create(ctx context.Context, e *event.Event) error {
	query := `
		INSERT INTO events (name, description, organizer_id, type, status, max_participants, allow_waitlist, registration_deadline, start_at, end_at, price, member_price, currency, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`
	var desc *string
	if e.Description != "" {
		desc = &e.Description
	}

	err := r.db.QueryRowContext(ctx, query,
		e.Name, desc, e.OrganizerID, string(e.Type), string(e.Status),
		e.MaxParticipants, e.AllowWaitlist, e.RegistrationDeadline,
		e.StartAt, e.EndAt, e.Price, e.MemberPrice, e.Currency,
		e.CreatedAt, e.UpdatedAt, e.Version,
	).Scan(&e.ID)
	if err != nil {
		return fmt.Errorf("イベント作成に失敗しました: %w", err)
	}
	return nil
}

// GetByID はIDからイベントを取得する（削除済みは除く）
func (r *EventRepository) GetByID(ctx context.Context, id string) (*event.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1 AND deleted_at IS NULL`

	var row eventRow
	err := r.db.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, event.ErrEventNotFound
		}
		return nil, fmt.Errorf("イベント取得に失敗しました: %w", err)
	}
	return row.toEntity(), nil
}

// List はイベント一覧を取得する
func (r *EventRepository) List(ctx context.Context, limit, offset int) ([]*event.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE deleted_at IS NULL
		ORDER BY start_at DESC
		LIMIT $1 OFFSET $2
	`

	var rows []eventRow
	err := r.db.SelectContext(ctx, &rows, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("イベント一覧取得に失敗しました: %w", err)
	}

	events := make([]*event.Event, len(rows))
	for i, row := range rows {
		events[i] = row.toEntity()
	}
	return events, nil
}

// Update はイベントを更新する（楽観的ロック）
// カウンタは CapacityLedger の管轄のためここでは触らない
func (r *EventRepository) Update(ctx context.Context, e *event.Event) error {
	query := `
		UPDATE events
		SET name = $1, description = $2, type = $3, status = $4, max_participants = $5,
		    allow_waitlist = $6, registration_deadline = $7, start_at = $8, end_at = $9,
		    price = $10, member_price = $11, currency = $12, updated_at = $13, version = version + 1
		WHERE id = $14 AND version = $15 AND deleted_at IS NULL
	`

	var desc *string
	if e.Description != "" {
		desc = &e.Description
	}

	result, err := r.db.ExecContext(ctx, query,
		e.Name, desc, string(e.Type), string(e.Status), e.MaxParticipants,
		e.AllowWaitlist, e.RegistrationDeadline, e.StartAt, e.EndAt,
		e.Price, e.MemberPrice, e.Currency, time.Now(), e.ID, e.Version,
	)
	if err != nil {
		return fmt.Errorf("イベント更新に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return event.ErrOptimisticLockConflict
	}

	e.Version++
	return nil
}

// SoftDelete はイベントを論理削除する（トランザクション必須）
func (r *EventRepository) SoftDelete(ctx context.Context, tx transaction.Tx, id string) error {
	sqlxTx := UnwrapTx(tx)
	query := `UPDATE events SET status = 'cancelled', deleted_at = $1, updated_at = $1 WHERE id = $2 AND deleted_at IS NULL`

	result, err := sqlxTx.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("イベント削除に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除結果の確認に失敗しました: %w", err)
	}
	if rowsAffected == 0 {
		return event.ErrEventNotFound
	}
	return nil
}

// ListPromotable は空き枠とウェイトリストの両方を持つイベントIDを取得する
func (r *EventRepository) ListPromotable(ctx context.Context) ([]string, error) {
	query := `
		SELECT id FROM events
		WHERE deleted_at IS NULL
		  AND waitlist_count > 0
		  AND (max_participants = 0 OR registration_count < max_participants)
	`

	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query); err != nil {
		return nil, fmt.Errorf("昇格対象イベント取得に失敗しました: %w", err)
	}
	return ids, nil
}

// インターフェースを満たしているか確認
var _ event.Repository = (*EventRepository)(nil)
