package registration

import "time"

// Status は参加登録の状態を表す
type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusWaitlisted Status = "waitlisted"
	StatusCancelled  Status = "cancelled"
	StatusAttended   Status = "attended"
)

// Type は参加登録の種別を表す
type Type string

const (
	TypeStandard Type = "standard"
	TypeMember   Type = "member"
)

// PaymentStatus は支払いの状態を表す
// 支払い処理自体は外部サービスの責務で、ここでは帳簿のみ持つ
type PaymentStatus string

const (
	PaymentStatusNone     PaymentStatus = "none"
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Options は参加登録時の任意入力を表す
type Options struct {
	SpecialRequests  string
	Dietary          string
	EmergencyContact string
}

// Registration は参加登録エンティティを表す
type Registration struct {
	ID               string
	EventID          string
	UserID           string
	Status           Status
	Type             Type
	Position         *int // ウェイトリスト順位（1始まり、waitlisted のときのみ設定）
	PaymentRequired  bool
	PaymentStatus    PaymentStatus
	AmountDue        int
	Currency         string
	SpecialRequests  string
	Dietary          string
	EmergencyContact string
	RegisteredAt     time.Time
	ConfirmedAt      *time.Time
	CancelledAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewRegistration は新しい参加登録を保留状態で作成する
// 確定・ウェイトリストへの振り分けは管理サービスがトランザクション内で行う
func NewRegistration(eventID, userID string, opts Options) *Registration {
	now := time.Now()
	return &Registration{
		EventID:          eventID,
		UserID:           userID,
		Status:           StatusPending,
		Type:             TypeStandard,
		PaymentStatus:    PaymentStatusNone,
		Currency:         "EUR",
		SpecialRequests:  opts.SpecialRequests,
		Dietary:          opts.Dietary,
		EmergencyContact: opts.EmergencyContact,
		RegisteredAt:     now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// IsActive はキャンセル済みでないかを返す
// (userID, eventID) ごとにアクティブな登録は常に高々1件
func (r *Registration) IsActive() bool {
	return r.Status != StatusCancelled
}

// IsWaitlisted はウェイトリスト中かを返す
func (r *Registration) IsWaitlisted() bool {
	return r.Status == StatusWaitlisted
}

// Confirm は登録を確定する（保留またはウェイトリストから遷移）
// ウェイトリストからの昇格時は順位をクリアする
func (r *Registration) Confirm() error {
	if r.Status != StatusPending && r.Status != StatusWaitlisted {
		return ErrNotConfirmable
	}
	now := time.Now()
	r.Status = StatusConfirmed
	r.Position = nil
	r.ConfirmedAt = &now
	r.UpdatedAt = now
	return nil
}

// Waitlist は登録をウェイトリストに入れる
func (r *Registration) Waitlist(position int) error {
	if r.Status != StatusPending {
		return ErrNotWaitlistable
	}
	if position < 1 {
		return ErrInvalidPosition
	}
	r.Status = StatusWaitlisted
	r.Position = &position
	r.UpdatedAt = time.Now()
	return nil
}

// Cancel は登録をキャンセルする
func (r *Registration) Cancel() error {
	if r.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	if r.Status == StatusAttended {
		return ErrAlreadyAttended
	}
	now := time.Now()
	r.Status = StatusCancelled
	r.Position = nil
	r.CancelledAt = &now
	r.UpdatedAt = now
	return nil
}

// MarkAttended は出席済みにする（主催者チェックイン）
func (r *Registration) MarkAttended() error {
	if r.Status != StatusConfirmed {
		return ErrNotAttendable
	}
	r.Status = StatusAttended
	r.UpdatedAt = time.Now()
	return nil
}

// SetPayment は支払い帳簿を設定する
func (r *Registration) SetPayment(amountDue int, currency string, regType Type) {
	r.Type = regType
	if amountDue <= 0 {
		r.PaymentRequired = false
		r.PaymentStatus = PaymentStatusNone
		r.AmountDue = 0
		return
	}
	r.PaymentRequired = true
	r.PaymentStatus = PaymentStatusPending
	r.AmountDue = amountDue
	if currency != "" {
		r.Currency = currency
	}
}

// Validate は参加登録の検証を行う
func (r *Registration) Validate() error {
	if r.EventID == "" {
		return ErrEventIDRequired
	}
	if r.UserID == "" {
		return ErrUserIDRequired
	}
	if r.Status == StatusWaitlisted && r.Position == nil {
		return ErrInvalidPosition
	}
	if r.Status != StatusWaitlisted && r.Position != nil {
		return ErrInvalidPosition
	}
	return nil
}
