package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/noob-master-cell/esn-sub001/internal/application"
	"github.com/noob-master-cell/esn-sub001/internal/domain/event"
)

// MockEventService はEventServiceInterfaceのモック
type MockEventService struct {
	mock.Mock
}

func (m *MockEventService) CreateEvent(ctx context.Context, input application.CreateEventInput) (*event.Event, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) GetEvent(ctx context.Context, id string) (*event.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) ListEvents(ctx context.Context, limit, offset int) ([]*event.Event, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*event.Event), args.Error(1)
}

func (m *MockEventService) UpdateEvent(ctx context.Context, input application.UpdateEventInput) (*event.Event, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) PublishEvent(ctx context.Context, id string) (*event.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) OpenRegistration(ctx context.Context, id string) (*event.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) CloseRegistration(ctx context.Context, id string) (*event.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*event.Event), args.Error(1)
}

func (m *MockEventService) RemoveEvent(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockEventService) RemainingCapacity(ctx context.Context, eventID string) (int, error) {
	args := m.Called(ctx, eventID)
	return args.Int(0), args.Error(1)
}

func sampleEvent() *event.Event {
	return &event.Event{
		ID:                "event-1",
		Name:              "Welcome Week BBQ",
		OrganizerID:       "org-1",
		Type:              event.TypeFree,
		Status:            event.StatusRegistrationOpen,
		MaxParticipants:   50,
		RegistrationCount: 12,
		WaitlistCount:     0,
		AllowWaitlist:     true,
		StartAt:           time.Now().Add(24 * time.Hour),
		EndAt:             time.Now().Add(28 * time.Hour),
		Currency:          "EUR",
	}
}

func TestEventHandler_Create(t *testing.T) {
	e := NewTestEcho()

	t.Run("イベントを作成できる", func(t *testing.T) {
		mockService := new(MockEventService)
		created := sampleEvent()
		created.Status = event.StatusDraft
		mockService.On("CreateEvent", mock.Anything, mock.AnythingOfType("application.CreateEventInput")).
			Return(created, nil)

		handler := NewEventHandler(mockService, nil)

		reqBody := `{
			"name": "Welcome Week BBQ",
			"type": "free",
			"max_participants": 50,
			"allow_waitlist": true,
			"start_at": "2026-09-22T10:00:00+02:00",
			"end_at": "2026-09-22T18:00:00+02:00"
		}`
		req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set("X-User-ID", "org-1")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Create(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)

		var resp EventResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "draft", resp.Status)
		mockService.AssertExpectations(t)
	})

	t.Run("開始時刻の形式不正は400", func(t *testing.T) {
		mockService := new(MockEventService)
		handler := NewEventHandler(mockService, nil)

		reqBody := `{
			"name": "BBQ",
			"type": "free",
			"start_at": "tomorrow",
			"end_at": "2026-09-22T18:00:00+02:00"
		}`
		req := httptest.NewRequest(http.MethodPost, "/events", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set("X-User-ID", "org-1")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Create(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusBadRequest, httpErr.Code)
		mockService.AssertNotCalled(t, "CreateEvent", mock.Anything, mock.Anything)
	})
}

func TestEventHandler_GetByID(t *testing.T) {
	e := NewTestEcho()

	t.Run("登録済みユーザーにはis_registeredを返す", func(t *testing.T) {
		mockEventService := new(MockEventService)
		mockAdmission := new(MockAdmissionService)
		ev := sampleEvent()
		mockEventService.On("GetEvent", mock.Anything, "event-1").Return(ev, nil)
		mockAdmission.On("IsRegistered", mock.Anything, "user-1", "event-1").Return(true, nil)

		handler := NewEventHandler(mockEventService, mockAdmission)

		req := httptest.NewRequest(http.MethodGet, "/events/event-1", nil)
		req.Header.Set("X-User-ID", "user-1")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("event-1")

		err := handler.GetByID(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp EventResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.True(t, resp.IsRegistered)
		// 登録済みなら再登録は不可
		assert.False(t, resp.CanRegister)
		assert.Equal(t, 12, resp.RegistrationCount)
	})

	t.Run("存在しないイベントは404", func(t *testing.T) {
		mockEventService := new(MockEventService)
		mockEventService.On("GetEvent", mock.Anything, "missing").Return(nil, event.ErrEventNotFound)

		handler := NewEventHandler(mockEventService, nil)

		req := httptest.NewRequest(http.MethodGet, "/events/missing", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("missing")

		err := handler.GetByID(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusNotFound, httpErr.Code)
	})
}

func TestEventHandler_Capacity(t *testing.T) {
	e := NewTestEcho()

	t.Run("残り枠数を返す", func(t *testing.T) {
		mockEventService := new(MockEventService)
		mockEventService.On("RemainingCapacity", mock.Anything, "event-1").Return(38, nil)

		handler := NewEventHandler(mockEventService, nil)

		req := httptest.NewRequest(http.MethodGet, "/events/event-1/capacity", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("event-1")

		err := handler.Capacity(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)

		var resp CapacityResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "event-1", resp.EventID)
		assert.Equal(t, 38, resp.Remaining)
		assert.False(t, resp.Unlimited)
	})

	t.Run("無制限イベントは-1を返す", func(t *testing.T) {
		mockEventService := new(MockEventService)
		mockEventService.On("RemainingCapacity", mock.Anything, "event-2").Return(-1, nil)

		handler := NewEventHandler(mockEventService, nil)

		req := httptest.NewRequest(http.MethodGet, "/events/event-2/capacity", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("event-2")

		require.NoError(t, handler.Capacity(c))

		var resp CapacityResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, -1, resp.Remaining)
		assert.True(t, resp.Unlimited)
	})

	t.Run("存在しないイベントは404", func(t *testing.T) {
		mockEventService := new(MockEventService)
		mockEventService.On("RemainingCapacity", mock.Anything, "missing").
			Return(0, event.ErrEventNotFound)

		handler := NewEventHandler(mockEventService, nil)

		req := httptest.NewRequest(http.MethodGet, "/events/missing/capacity", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("missing")

		err := handler.Capacity(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusNotFound, httpErr.Code)
	})
}

func TestEventHandler_List(t *testing.T) {
	e := NewTestEcho()

	mockService := new(MockEventService)
	mockService.On("ListEvents", mock.Anything, 0, 0).
		Return([]*event.Event{sampleEvent()}, nil)

	handler := NewEventHandler(mockService, nil)

	req := httptest.NewRequest(http.MethodGet, "/events", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := handler.List(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp []*EventResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.True(t, resp[0].CanRegister)
}

func TestEventHandler_Publish(t *testing.T) {
	e := NewTestEcho()

	t.Run("ドラフト以外の公開は422", func(t *testing.T) {
		mockService := new(MockEventService)
		mockService.On("PublishEvent", mock.Anything, "event-1").
			Return(nil, event.ErrInvalidStatusTransition)

		handler := NewEventHandler(mockService, nil)

		req := httptest.NewRequest(http.MethodPost, "/events/event-1/publish", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("event-1")

		err := handler.Publish(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusUnprocessableEntity, httpErr.Code)
	})
}

func TestEventHandler_Delete(t *testing.T) {
	e := NewTestEcho()

	mockService := new(MockEventService)
	mockService.On("RemoveEvent", mock.Anything, "event-1").Return(nil)

	handler := NewEventHandler(mockService, nil)

	req := httptest.NewRequest(http.MethodDelete, "/events/event-1", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues("event-1")

	err := handler.Delete(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	mockService.AssertExpectations(t)
}
