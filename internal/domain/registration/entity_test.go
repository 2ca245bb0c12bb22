package registration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistration(t *testing.T) {
	reg := NewRegistration("event-1", "user-1", Options{Dietary: "vegetarian"})

	assert.Equal(t, StatusPending, reg.Status)
	assert.Equal(t, TypeStandard, reg.Type)
	assert.Nil(t, reg.Position)
	assert.Equal(t, PaymentStatusNone, reg.PaymentStatus)
	assert.Equal(t, "vegetarian", reg.Dietary)
	assert.True(t, reg.IsActive())
}

func TestRegistration_Confirm(t *testing.T) {
	t.Run("保留から確定", func(t *testing.T) {
		reg := NewRegistration("event-1", "user-1", Options{})
		require.NoError(t, reg.Confirm())
		assert.Equal(t, StatusConfirmed, reg.Status)
		assert.NotNil(t, reg.ConfirmedAt)
	})

	t.Run("ウェイトリストからの昇格で順位がクリアされる", func(t *testing.T) {
		reg := NewRegistration("event-1", "user-1", Options{})
		require.NoError(t, reg.Waitlist(3))
		require.NotNil(t, reg.Position)

		require.NoError(t, reg.Confirm())
		assert.Equal(t, StatusConfirmed, reg.Status)
		assert.Nil(t, reg.Position)
	})

	t.Run("キャンセル済みは確定不可", func(t *testing.T) {
		reg := NewRegistration("event-1", "user-1", Options{})
		require.NoError(t, reg.Cancel())
		assert.ErrorIs(t, reg.Confirm(), ErrNotConfirmable)
	})
}

func TestRegistration_Waitlist(t *testing.T) {
	t.Run("順位は1始まり", func(t *testing.T) {
		reg := NewRegistration("event-1", "user-1", Options{})
		require.NoError(t, reg.Waitlist(1))
		assert.Equal(t, StatusWaitlisted, reg.Status)
		assert.Equal(t, 1, *reg.Position)
	})

	t.Run("順位0は不正", func(t *testing.T) {
		reg := NewRegistration("event-1", "user-1", Options{})
		assert.ErrorIs(t, reg.Waitlist(0), ErrInvalidPosition)
	})

	t.Run("確定済みはウェイトリスト不可", func(t *testing.T) {
		reg := NewRegistration("event-1", "user-1", Options{})
		require.NoError(t, reg.Confirm())
		assert.ErrorIs(t, reg.Waitlist(1), ErrNotWaitlistable)
	})
}

func TestRegistration_Cancel(t *testing.T) {
	t.Run("確定済みをキャンセル", func(t *testing.T) {
		reg := NewRegistration("event-1", "user-1", Options{})
		require.NoError(t, reg.Confirm())
		require.NoError(t, reg.Cancel())
		assert.Equal(t, StatusCancelled, reg.Status)
		assert.NotNil(t, reg.CancelledAt)
		assert.False(t, reg.IsActive())
	})

	t.Run("ウェイトリスト中のキャンセルで順位がクリアされる", func(t *testing.T) {
		reg := NewRegistration("event-1", "user-1", Options{})
		require.NoError(t, reg.Waitlist(2))
		require.NoError(t, reg.Cancel())
		assert.Nil(t, reg.Position)
	})

	t.Run("二重キャンセルは不可", func(t *testing.T) {
		reg := NewRegistration("event-1", "user-1", Options{})
		require.NoError(t, reg.Cancel())
		assert.ErrorIs(t, reg.Cancel(), ErrAlreadyCancelled)
	})

	t.Run("出席済みはキャンセル不可", func(t *testing.T) {
		reg := NewRegistration("event-1", "user-1", Options{})
		require.NoError(t, reg.Confirm())
		require.NoError(t, reg.MarkAttended())
		assert.ErrorIs(t, reg.Cancel(), ErrAlreadyAttended)
	})
}

func TestRegistration_MarkAttended(t *testing.T) {
	t.Run("確定済みのみ出席可能", func(t *testing.T) {
		reg := NewRegistration("event-1", "user-1", Options{})
		assert.ErrorIs(t, reg.MarkAttended(), ErrNotAttendable)

		require.NoError(t, reg.Confirm())
		require.NoError(t, reg.MarkAttended())
		assert.Equal(t, StatusAttended, reg.Status)
	})

	t.Run("ウェイトリスト中は出席不可", func(t *testing.T) {
		reg := NewRegistration("event-1", "user-1", Options{})
		require.NoError(t, reg.Waitlist(1))
		assert.ErrorIs(t, reg.MarkAttended(), ErrNotAttendable)
	})
}

func TestRegistration_SetPayment(t *testing.T) {
	t.Run("有料は支払い保留", func(t *testing.T) {
		reg := NewRegistration("event-1", "user-1", Options{})
		reg.SetPayment(2000, "EUR", TypeMember)
		assert.True(t, reg.PaymentRequired)
		assert.Equal(t, PaymentStatusPending, reg.PaymentStatus)
		assert.Equal(t, 2000, reg.AmountDue)
		assert.Equal(t, TypeMember, reg.Type)
	})

	t.Run("無料は支払い不要", func(t *testing.T) {
		reg := NewRegistration("event-1", "user-1", Options{})
		reg.SetPayment(0, "EUR", TypeStandard)
		assert.False(t, reg.PaymentRequired)
		assert.Equal(t, PaymentStatusNone, reg.PaymentStatus)
		assert.Equal(t, 0, reg.AmountDue)
	})
}

func TestRegistration_Validate(t *testing.T) {
	pos := 1

	tests := []struct {
		name    string
		setup   func(*Registration)
		wantErr error
	}{
		{"正常な保留", func(r *Registration) {}, nil},
		{"イベントID必須", func(r *Registration) { r.EventID = "" }, ErrEventIDRequired},
		{"ユーザーID必須", func(r *Registration) { r.UserID = "" }, ErrUserIDRequired},
		{"ウェイトリスト中は順位必須", func(r *Registration) { r.Status = StatusWaitlisted }, ErrInvalidPosition},
		{"ウェイトリスト以外で順位ありは不正", func(r *Registration) { r.Position = &pos }, ErrInvalidPosition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := NewRegistration("event-1", "user-1", Options{})
			tt.setup(reg)
			err := reg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
