package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noob-master-cell/esn-sub001/internal/domain/user"
)

type userRow struct {
	ID              string    `db:"id"`
	Email           string    `db:"email"`
	FirstName       string    `db:"first_name"`
	LastName        string    `db:"last_name"`
	University      *string   `db:"university"`
	ESNCardNumber   *string   `db:"esn_card_number"`
	ESNCardVerified bool      `db:"esn_card_verified"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r *userRow) toEntity() *user.User {
	var university string
	if r.University != nil {
		university = *r.University
	}
	return &user.User{
		ID:              r.ID,
		Email:           r.Email,
		FirstName:       r.FirstName,
		LastName:        r.LastName,
		University:      university,
		ESNCardNumber:   r.ESNCardNumber,
		ESNCardVerified: r.ESNCardVerified,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

// UserRepository はユーザーリポジトリのPostgreSQL実装（読み取り専用）
// ユーザー本体は外部のアイデンティティ基盤が同期するレプリカテーブルを参照する
type UserRepository struct{ db *sqlx.DB }

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetByID はIDからユーザーを取得する
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	var row userRow
	query := `SELECT id, email, first_name, last_name, university, esn_card_number, esn_card_verified, created_at, updated_at FROM users WHERE id = $1`
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, user.ErrUserNotFound
		}
		return nil, fmt.Errorf("ユーザー取得に失敗: %w", err)
	}
	return row.toEntity(), nil
}

var _ user.Repository = (*UserRepository)(nil)
