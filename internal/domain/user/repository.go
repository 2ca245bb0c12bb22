package user

import "context"

// Repository はユーザーリポジトリのインターフェース（読み取り専用）
type Repository interface {
	// GetByID はIDからユーザーを取得する
	GetByID(ctx context.Context, id string) (*User, error)
}
