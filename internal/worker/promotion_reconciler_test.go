package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockPromoter はPromoterのモック
type MockPromoter struct {
	mock.Mock
}

func (m *MockPromoter) PromoteUpTo(ctx context.Context, eventID string, limit int) (int, error) {
	args := m.Called(ctx, eventID, limit)
	return args.Int(0), args.Error(1)
}

// MockPromotableLister はPromotableListerのモック
type MockPromotableLister struct {
	mock.Mock
}

func (m *MockPromotableLister) ListPromotable(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func TestNewPromotionReconciler(t *testing.T) {
	promoter := new(MockPromoter)
	lister := new(MockPromotableLister)

	r := NewPromotionReconciler(promoter, lister, 1*time.Minute)

	assert.NotNil(t, r)
	assert.Equal(t, 1*time.Minute, r.interval)
	assert.NotNil(t, r.stopCh)
	assert.NotNil(t, r.doneCh)
}

func TestPromotionReconciler_Reconcile(t *testing.T) {
	t.Run("昇格候補ごとに空き枠が尽きるまで昇格する", func(t *testing.T) {
		promoter := new(MockPromoter)
		lister := new(MockPromotableLister)

		lister.On("ListPromotable", mock.Anything).Return([]string{"event-1", "event-2"}, nil)
		promoter.On("PromoteUpTo", mock.Anything, "event-1", -1).Return(2, nil)
		promoter.On("PromoteUpTo", mock.Anything, "event-2", -1).Return(0, nil)

		r := NewPromotionReconciler(promoter, lister, 1*time.Minute)
		r.reconcile(context.Background())

		promoter.AssertExpectations(t)
		lister.AssertExpectations(t)
	})

	t.Run("候補なしなら何もしない", func(t *testing.T) {
		promoter := new(MockPromoter)
		lister := new(MockPromotableLister)

		lister.On("ListPromotable", mock.Anything).Return([]string{}, nil)

		r := NewPromotionReconciler(promoter, lister, 1*time.Minute)
		r.reconcile(context.Background())

		promoter.AssertNotCalled(t, "PromoteUpTo", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("1件の失敗で他のイベントを止めない", func(t *testing.T) {
		promoter := new(MockPromoter)
		lister := new(MockPromotableLister)

		lister.On("ListPromotable", mock.Anything).Return([]string{"event-1", "event-2"}, nil)
		promoter.On("PromoteUpTo", mock.Anything, "event-1", -1).Return(0, assert.AnError)
		promoter.On("PromoteUpTo", mock.Anything, "event-2", -1).Return(1, nil)

		r := NewPromotionReconciler(promoter, lister, 1*time.Minute)
		r.reconcile(context.Background())

		promoter.AssertExpectations(t)
	})

	t.Run("候補取得エラーで昇格は実行されない", func(t *testing.T) {
		promoter := new(MockPromoter)
		lister := new(MockPromotableLister)

		lister.On("ListPromotable", mock.Anything).Return(nil, assert.AnError)

		r := NewPromotionReconciler(promoter, lister, 1*time.Minute)
		r.reconcile(context.Background())

		promoter.AssertNotCalled(t, "PromoteUpTo", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPromotionReconciler_StartStop(t *testing.T) {
	promoter := new(MockPromoter)
	lister := new(MockPromotableLister)
	lister.On("ListPromotable", mock.Anything).Return([]string{}, nil).Maybe()

	r := NewPromotionReconciler(promoter, lister, 10*time.Millisecond)

	go r.Start(context.Background())
	time.Sleep(30 * time.Millisecond)
	r.Stop()

	// Stop後にdoneChが閉じていること
	select {
	case <-r.doneCh:
	default:
		t.Fatal("doneCh should be closed after Stop")
	}
}
