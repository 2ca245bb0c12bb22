package event

import "errors"

// Event ドメインのエラー定義
var (
	ErrEventNotFound           = errors.New("イベントが見つかりません")
	ErrEventNameRequired       = errors.New("イベント名は必須です")
	ErrOrganizerRequired       = errors.New("主催者IDは必須です")
	ErrInvalidMaxParticipants  = errors.New("定員は0以上である必要があります")
	ErrInvalidEventTime        = errors.New("終了時刻は開始時刻より後である必要があります")
	ErrInvalidPrice            = errors.New("価格が不正です")
	ErrInvalidStatusTransition = errors.New("許可されていない状態遷移です")
	ErrEventNotRegistrable     = errors.New("イベントは参加登録を受け付けていません")
	ErrDeadlinePassed          = errors.New("参加登録の締切を過ぎています")
	ErrEventFull               = errors.New("イベントは満員です")
	ErrConcurrentModification  = errors.New("定員カウンタが並行更新されました")
	ErrOptimisticLockConflict  = errors.New("楽観的ロックの競合が発生しました")
)
