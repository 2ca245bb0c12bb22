package transaction

import "context"

// Tx はトランザクションを表すインターフェース
// 登録行と定員カウンターは常に同一トランザクション内で更新する
type Tx interface {
	// Commit はトランザクションをコミットする
	Commit() error
	// Rollback はトランザクションをロールバックする
	Rollback() error
}

// Manager はトランザクションを管理するインターフェース
// アプリケーション層がsqlx等のインフラ実装に依存しないための抽象化
type Manager interface {
	// Begin は新しいトランザクションを開始する
	Begin(ctx context.Context) (Tx, error)
}
