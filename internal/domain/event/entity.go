package event

import "time"

// Status はイベントのライフサイクル状態を表す
type Status string

const (
	StatusDraft              Status = "draft"
	StatusPublished          Status = "published"
	StatusRegistrationOpen   Status = "registration_open"
	StatusRegistrationClosed Status = "registration_closed"
	StatusOngoing            Status = "ongoing"
	StatusCompleted          Status = "completed"
	StatusCancelled          Status = "cancelled"
)

// Type はイベントの料金種別を表す
type Type string

const (
	TypeFree Type = "free"
	TypePaid Type = "paid"
)

// UnlimitedParticipants は定員無制限を表す（MaxParticipants = 0）
const UnlimitedParticipants = 0

// Event はイベントエンティティを表す
type Event struct {
	ID                   string
	Name                 string
	Description          string
	OrganizerID          string
	Type                 Type
	Status               Status
	MaxParticipants      int // 0 は無制限
	RegistrationCount    int
	WaitlistCount        int
	AllowWaitlist        bool
	RegistrationDeadline *time.Time
	StartAt              time.Time
	EndAt                time.Time
	Price                int
	MemberPrice          int
	Currency             string
	CreatedAt            time.Time
	UpdatedAt            time.Time
	DeletedAt            *time.Time
	Version              int // 楽観的ロック用
}

// NewEvent は新しいイベントをドラフト状態で作成する
func NewEvent(name, description, organizerID string, eventType Type, startAt, endAt time.Time, maxParticipants int, allowWaitlist bool) *Event {
	now := time.Now()
	return &Event{
		Name:            name,
		Description:     description,
		OrganizerID:     organizerID,
		Type:            eventType,
		Status:          StatusDraft,
		MaxParticipants: maxParticipants,
		AllowWaitlist:   allowWaitlist,
		StartAt:         startAt,
		EndAt:           endAt,
		Currency:        "EUR",
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         0,
	}
}

// Unlimited は定員が無制限かを返す
func (e *Event) Unlimited() bool {
	return e.MaxParticipants == UnlimitedParticipants
}

// HasCapacity は確定枠に空きがあるかを返す
func (e *Event) HasCapacity() bool {
	return e.Unlimited() || e.RegistrationCount < e.MaxParticipants
}

// CheckRegistrable は現時点で参加登録を受け付けられるかを検証する
// 状態と締切の判定はここに集約し、各所で再実装しない
func (e *Event) CheckRegistrable(now time.Time) error {
	if e.DeletedAt != nil || e.Status != StatusRegistrationOpen {
		return ErrEventNotRegistrable
	}
	if e.RegistrationDeadline != nil && now.After(*e.RegistrationDeadline) {
		return ErrDeadlinePassed
	}
	return nil
}

// CanRegister は参加登録可否の導出値を返す（クライアント表示用）
func (e *Event) CanRegister(now time.Time) bool {
	if e.CheckRegistrable(now) != nil {
		return false
	}
	return e.HasCapacity() || e.AllowWaitlist
}

// PriceFor は会員資格に応じた実効価格を返す
// 検証済みESNカード保持者は会員価格が通常価格を下回る場合のみ割引
func (e *Event) PriceFor(verifiedMember bool) int {
	if e.Type == TypeFree {
		return 0
	}
	if verifiedMember && e.MemberPrice < e.Price {
		return e.MemberPrice
	}
	return e.Price
}

// IsTerminal は終端状態（完了・中止）かを返す
func (e *Event) IsTerminal() bool {
	return e.Status == StatusCompleted || e.Status == StatusCancelled
}

// Publish はドラフトを公開する
func (e *Event) Publish() error {
	if e.Status != StatusDraft {
		return ErrInvalidStatusTransition
	}
	e.Status = StatusPublished
	e.UpdatedAt = time.Now()
	return nil
}

// OpenRegistration は参加登録の受付を開始する
func (e *Event) OpenRegistration() error {
	if e.Status != StatusPublished {
		return ErrInvalidStatusTransition
	}
	e.Status = StatusRegistrationOpen
	e.UpdatedAt = time.Now()
	return nil
}

// CloseRegistration は参加登録の受付を終了する
func (e *Event) CloseRegistration() error {
	if e.Status != StatusRegistrationOpen {
		return ErrInvalidStatusTransition
	}
	e.Status = StatusRegistrationClosed
	e.UpdatedAt = time.Now()
	return nil
}

// Start はイベントを開催中にする
func (e *Event) Start() error {
	if e.Status != StatusRegistrationOpen && e.Status != StatusRegistrationClosed {
		return ErrInvalidStatusTransition
	}
	e.Status = StatusOngoing
	e.UpdatedAt = time.Now()
	return nil
}

// Complete はイベントを完了にする
func (e *Event) Complete() error {
	if e.Status != StatusOngoing {
		return ErrInvalidStatusTransition
	}
	e.Status = StatusCompleted
	e.UpdatedAt = time.Now()
	return nil
}

// Cancel はイベントを中止する（終端状態以外から遷移可能）
func (e *Event) Cancel() error {
	if e.IsTerminal() {
		return ErrInvalidStatusTransition
	}
	e.Status = StatusCancelled
	e.UpdatedAt = time.Now()
	return nil
}

// Validate はイベントの検証を行う
func (e *Event) Validate() error {
	if e.Name == "" {
		return ErrEventNameRequired
	}
	if e.OrganizerID == "" {
		return ErrOrganizerRequired
	}
	if e.MaxParticipants < 0 {
		return ErrInvalidMaxParticipants
	}
	if e.EndAt.Before(e.StartAt) {
		return ErrInvalidEventTime
	}
	if e.Price < 0 || e.MemberPrice < 0 {
		return ErrInvalidPrice
	}
	if e.Type == TypePaid && e.Price == 0 {
		return ErrInvalidPrice
	}
	return nil
}

// Capacity はイベントの定員カウンタのスナップショットを表す
// 管理トランザクション内で読み取られ、登録可否判定の唯一の根拠となる
type Capacity struct {
	Confirmed     int
	Waitlisted    int
	Max           int // 0 は無制限
	AllowWaitlist bool
}

// Unlimited は定員が無制限かを返す
func (c *Capacity) Unlimited() bool {
	return c.Max == UnlimitedParticipants
}

// HasFreeSlot は確定枠に空きがあるかを返す
func (c *Capacity) HasFreeSlot() bool {
	return c.Unlimited() || c.Confirmed < c.Max
}

// Remaining は確定枠の残数を返す（無制限の場合は -1）
func (c *Capacity) Remaining() int {
	if c.Unlimited() {
		return -1
	}
	r := c.Max - c.Confirmed
	if r < 0 {
		r = 0
	}
	return r
}
