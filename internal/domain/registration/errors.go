package registration

import "errors"

// Registration ドメインのエラー定義
var (
	ErrRegistrationNotFound = errors.New("参加登録が見つかりません")
	ErrAlreadyRegistered    = errors.New("このイベントには既に参加登録済みです")
	ErrAlreadyCancelled     = errors.New("参加登録は既にキャンセルされています")
	ErrAlreadyAttended      = errors.New("出席済みの登録はキャンセルできません")
	ErrNotConfirmable       = errors.New("この状態の登録は確定できません")
	ErrNotWaitlistable      = errors.New("この状態の登録はウェイトリストに入れられません")
	ErrNotAttendable        = errors.New("確定済みの登録のみ出席にできます")
	ErrNotOwner             = errors.New("この参加登録を操作する権限がありません")
	ErrInvalidPosition      = errors.New("ウェイトリスト順位が不正です")
	ErrEventIDRequired      = errors.New("イベントIDは必須です")
	ErrUserIDRequired       = errors.New("ユーザーIDは必須です")
	ErrNoWaitlisted         = errors.New("ウェイトリストに登録がありません")
)
