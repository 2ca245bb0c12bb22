package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noob-master-cell/esn-sub001/internal/domain/registration"
	"github.com/noob-master-cell/esn-sub001/internal/domain/transaction"
)

type registrationRow struct {
	ID               string     `db:"id"`
	EventID          string     `db:"event_id"`
	UserID           string     `db:"user_id"`
	Status           string     `db:"status"`
	Type             string     `db:"type"`
	Position         *int       `db:"position"`
	PaymentRequired  bool       `db:"payment_required"`
	PaymentStatus    string     `db:"payment_status"`
	AmountDue        int        `db:"amount_due"`
	Currency         string     `db:"currency"`
	SpecialRequests  *string    `db:"special_requests"`
	Dietary          *string    `db:"dietary"`
	EmergencyContact *string    `db:"emergency_contact"`
	RegisteredAt     time.Time  `db:"registered_at"`
	ConfirmedAt      *time.Time `db:"confirmed_at"`
	CancelledAt      *time.Time `db:"cancelled_at"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

func (r *registrationRow) toEntity() *registration.Registration {
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	return &registration.Registration{
		ID:               r.ID,
		EventID:          r.EventID,
		UserID:           r.UserID,
		Status:           registration.Status(r.Status),
		Type:             registration.Type(r.Type),
		Position:         r.Position,
		PaymentRequired:  r.PaymentRequired,
		PaymentStatus:    registration.PaymentStatus(r.PaymentStatus),
		AmountDue:        r.AmountDue,
		Currency:         r.Currency,
		SpecialRequests:  deref(r.SpecialRequests),
		Dietary:          deref(r.Dietary),
		EmergencyContact: deref(r.EmergencyContact),
		RegisteredAt:     r.RegisteredAt,
		ConfirmedAt:      r.ConfirmedAt,
		CancelledAt:      r.CancelledAt,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

const registrationColumns = `id, event_id, user_id, status, type, position, payment_required, payment_status, amount_due, currency, special_requests, dietary, emergency_contact, registered_at, confirmed_at, cancelled_at, created_at, updated_at`

// RegistrationRepository は参加登録リポジトリのPostgreSQL実装
type RegistrationRepository struct{ db *sqlx.DB }

func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// Create は新しい参加登録を作成する（トランザクション必須）
// アクティブな登録の部分ユニークインデックス違反は ErrAlreadyRegistered に変換する
func (r *RegistrationRepository) Create(ctx context.Context, tx transaction.Tx, reg *registration.Registration) error {
	sqlxTx := UnwrapTx(tx)
	query := `
		INSERT INTO registrations (event_id, user_id, status, type, position, payment_required, payment_status, amount_due, currency, special_requests, dietary, emergency_contact, registered_at, confirmed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id
	`
	err := sqlxTx.QueryRowContext(ctx, query,
		reg.EventID, reg.UserID, string(reg.Status), string(reg.Type), reg.Position,
		reg.PaymentRequired, string(reg.PaymentStatus), reg.AmountDue, reg.Currency,
		nullable(reg.SpecialRequests), nullable(reg.Dietary), nullable(reg.EmergencyContact),
		reg.RegisteredAt, reg.ConfirmedAt, reg.CreatedAt, reg.UpdatedAt,
	).Scan(&reg.ID)
	if err != nil {
		var pgErr *pq.Error
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return registration.ErrAlreadyRegistered
		}
		return fmt.Errorf("参加登録の作成に失敗: %w", err)
	}
	return nil
}

// GetByID はIDから参加登録を取得する
func (r *RegistrationRepository) GetByID(ctx context.Context, id string) (*registration.Registration, error) {
	var row registrationRow
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, registration.ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("参加登録の取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// GetActiveByUserAndEvent は (userID, eventID) のアクティブな登録を取得する
func (r *RegistrationRepository) GetActiveByUserAndEvent(ctx context.Context, userID, eventID string) (*registration.Registration, error) {
	var row registrationRow
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE user_id = $1 AND event_id = $2 AND status != 'cancelled'`
	if err := r.db.GetContext(ctx, &row, query, userID, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, registration.ErrRegistrationNotFound
		}
		return nil, fmt.Errorf("参加登録の取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// GetByUserID はユーザーの参加登録一覧を新しい順に取得する
func (r *RegistrationRepository) GetByUserID(ctx context.Context, userID string, limit, offset int) ([]*registration.Registration, error) {
	var rows []registrationRow
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE user_id = $1 ORDER BY registered_at DESC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &rows, query, userID, limit, offset); err != nil {
		return nil, fmt.Errorf("参加登録一覧の取得に失敗: %w", err)
	}
	return toEntities(rows), nil
}

// GetByEventID はイベントの参加登録一覧を取得する
func (r *RegistrationRepository) GetByEventID(ctx context.Context, eventID string, limit, offset int) ([]*registration.Registration, error) {
	var rows []registrationRow
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE event_id = $1 ORDER BY registered_at ASC LIMIT $2 OFFSET $3`
	if err := r.db.SelectContext(ctx, &rows, query, eventID, limit, offset); err != nil {
		return nil, fmt.Errorf("参加登録一覧の取得に失敗: %w", err)
	}
	return toEntities(rows), nil
}

// GetFirstWaitlisted は順位1のウェイトリスト登録を行ロック付きで取得する
func (r *RegistrationRepository) GetFirstWaitlisted(ctx context.Context, tx transaction.Tx, eventID string) (*registration.Registration, error) {
	sqlxTx := UnwrapTx(tx)
	var row registrationRow
	query := `
		SELECT ` + registrationColumns + `
		FROM registrations
		WHERE event_id = $1 AND status = 'waitlisted'
		ORDER BY position ASC
		LIMIT 1
		FOR UPDATE
	`
	if err := sqlxTx.GetContext(ctx, &row, query, eventID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, registration.ErrNoWaitlisted
		}
		return nil, fmt.Errorf("ウェイトリスト先頭の取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

// Update は参加登録を更新する（トランザクション必須）
func (r *RegistrationRepository) Update(ctx context.Context, tx transaction.Tx, reg *registration.Registration) error {
	sqlxTx := UnwrapTx(tx)
	query := `
		UPDATE registrations
		SET status = $1, type = $2, position = $3, payment_required = $4, payment_status = $5,
		    amount_due = $6, confirmed_at = $7, cancelled_at = $8, updated_at = $9
		WHERE id = $10
	`
	result, err := sqlxTx.ExecContext(ctx, query,
		string(reg.Status), string(reg.Type), reg.Position, reg.PaymentRequired,
		string(reg.PaymentStatus), reg.AmountDue, reg.ConfirmedAt, reg.CancelledAt,
		reg.UpdatedAt, reg.ID,
	)
	if err != nil {
		return fmt.Errorf("参加登録の更新に失敗: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return registration.ErrRegistrationNotFound
	}
	return nil
}

// ShiftPositionsAfter は指定順位より後のウェイトリスト順位を1つ詰める
func (r *RegistrationRepository) ShiftPositionsAfter(ctx context.Context, tx transaction.Tx, eventID string, position int) error {
	sqlxTx := UnwrapTx(tx)
	query := `
		UPDATE registrations
		SET position = position - 1, updated_at = NOW()
		WHERE event_id = $1 AND status = 'waitlisted' AND position > $2
	`
	if _, err := sqlxTx.ExecContext(ctx, query, eventID, position); err != nil {
		return fmt.Errorf("ウェイトリスト順位の繰り上げに失敗: %w", err)
	}
	return nil
}

// CancelAllActiveByEvent はイベントの全アクティブ登録をキャンセルする
func (r *RegistrationRepository) CancelAllActiveByEvent(ctx context.Context, tx transaction.Tx, eventID string) (int, error) {
	sqlxTx := UnwrapTx(tx)
	query := `
		UPDATE registrations
		SET status = 'cancelled', position = NULL, cancelled_at = NOW(), updated_at = NOW()
		WHERE event_id = $1 AND status NOT IN ('cancelled', 'attended')
	`
	result, err := sqlxTx.ExecContext(ctx, query, eventID)
	if err != nil {
		return 0, fmt.Errorf("参加登録の一括キャンセルに失敗: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("更新結果の確認に失敗: %w", err)
	}
	return int(rows), nil
}

// ListWaitlisted はイベントのウェイトリストを順位昇順で取得する
func (r *RegistrationRepository) ListWaitlisted(ctx context.Context, eventID string) ([]*registration.Registration, error) {
	var rows []registrationRow
	query := `SELECT ` + registrationColumns + ` FROM registrations WHERE event_id = $1 AND status = 'waitlisted' ORDER BY position ASC`
	if err := r.db.SelectContext(ctx, &rows, query, eventID); err != nil {
		return nil, fmt.Errorf("ウェイトリストの取得に失敗: %w", err)
	}
	return toEntities(rows), nil
}

func toEntities(rows []registrationRow) []*registration.Registration {
	result := make([]*registration.Registration, len(rows))
	for i := range rows {
		result[i] = rows[i].toEntity()
	}
	return result
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ registration.Repository = (*RegistrationRepository)(nil)
