package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/noob-master-cell/esn-sub001/internal/application"
	"github.com/noob-master-cell/esn-sub001/internal/domain/event"
	"github.com/noob-master-cell/esn-sub001/internal/domain/registration"
)

// MockAdmissionService はAdmissionServiceInterfaceのモック
type MockAdmissionService struct {
	mock.Mock
}

func (m *MockAdmissionService) RequestRegistration(ctx context.Context, input application.RequestRegistrationInput) (*application.AdmissionResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*application.AdmissionResult), args.Error(1)
}

func (m *MockAdmissionService) CancelRegistration(ctx context.Context, id, userID string) (*registration.Registration, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*registration.Registration), args.Error(1)
}

func (m *MockAdmissionService) GetRegistration(ctx context.Context, id string) (*registration.Registration, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*registration.Registration), args.Error(1)
}

func (m *MockAdmissionService) GetUserRegistrations(ctx context.Context, userID string, limit, offset int) ([]*registration.Registration, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*registration.Registration), args.Error(1)
}

func (m *MockAdmissionService) GetEventRegistrations(ctx context.Context, eventID string, limit, offset int) ([]*registration.Registration, error) {
	args := m.Called(ctx, eventID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*registration.Registration), args.Error(1)
}

func (m *MockAdmissionService) IsRegistered(ctx context.Context, userID, eventID string) (bool, error) {
	args := m.Called(ctx, userID, eventID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAdmissionService) MarkAttended(ctx context.Context, id string) (*registration.Registration, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*registration.Registration), args.Error(1)
}

const testEventID = "550e8400-e29b-41d4-a716-446655440000"

func confirmedResult() *application.AdmissionResult {
	reg := registration.NewRegistration(testEventID, "user-1", registration.Options{})
	reg.ID = "reg-1"
	_ = reg.Confirm()
	return &application.AdmissionResult{
		Registration: reg,
		Event: &event.Event{
			ID:                testEventID,
			Name:              "テストイベント",
			Status:            event.StatusRegistrationOpen,
			MaxParticipants:   10,
			RegistrationCount: 4,
		},
	}
}

func TestRegistrationHandler_Create(t *testing.T) {
	e := NewTestEcho()

	t.Run("確定で登録できる", func(t *testing.T) {
		mockService := new(MockAdmissionService)
		mockService.On("RequestRegistration", mock.Anything, mock.AnythingOfType("application.RequestRegistrationInput")).
			Return(confirmedResult(), nil)

		handler := NewRegistrationHandler(mockService)

		reqBody := `{"event_id": "` + testEventID + `"}`
		req := httptest.NewRequest(http.MethodPost, "/registrations", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set("X-User-ID", "user-1")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Create(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, rec.Code)

		var resp AdmissionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "confirmed", resp.Registration.Status)
		// 応答のイベントには更新後のカウントが入る
		require.NotNil(t, resp.Event)
		assert.Equal(t, 4, resp.Event.RegistrationCount)
		assert.True(t, resp.Event.IsRegistered)
		mockService.AssertExpectations(t)
	})

	t.Run("ユーザーIDなしは401", func(t *testing.T) {
		mockService := new(MockAdmissionService)
		handler := NewRegistrationHandler(mockService)

		reqBody := `{"event_id": "` + testEventID + `"}`
		req := httptest.NewRequest(http.MethodPost, "/registrations", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Create(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
		mockService.AssertNotCalled(t, "RequestRegistration", mock.Anything, mock.Anything)
	})

	t.Run("重複登録は409", func(t *testing.T) {
		mockService := new(MockAdmissionService)
		mockService.On("RequestRegistration", mock.Anything, mock.Anything).
			Return(nil, registration.ErrAlreadyRegistered)

		handler := NewRegistrationHandler(mockService)

		reqBody := `{"event_id": "` + testEventID + `"}`
		req := httptest.NewRequest(http.MethodPost, "/registrations", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set("X-User-ID", "user-1")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Create(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusConflict, httpErr.Code)
	})

	t.Run("満員は409", func(t *testing.T) {
		mockService := new(MockAdmissionService)
		mockService.On("RequestRegistration", mock.Anything, mock.Anything).
			Return(nil, event.ErrEventFull)

		handler := NewRegistrationHandler(mockService)

		reqBody := `{"event_id": "` + testEventID + `"}`
		req := httptest.NewRequest(http.MethodPost, "/registrations", strings.NewReader(reqBody))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set("X-User-ID", "user-1")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Create(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusConflict, httpErr.Code)
	})

	t.Run("event_idなしはバリデーションエラー", func(t *testing.T) {
		mockService := new(MockAdmissionService)
		handler := NewRegistrationHandler(mockService)

		req := httptest.NewRequest(http.MethodPost, "/registrations", strings.NewReader(`{}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set("X-User-ID", "user-1")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		err := handler.Create(c)

		require.Error(t, err)
		mockService.AssertNotCalled(t, "RequestRegistration", mock.Anything, mock.Anything)
	})
}

func TestRegistrationHandler_Cancel(t *testing.T) {
	e := NewTestEcho()

	t.Run("キャンセルできる", func(t *testing.T) {
		mockService := new(MockAdmissionService)
		cancelled := registration.NewRegistration(testEventID, "user-1", registration.Options{})
		cancelled.ID = "reg-1"
		_ = cancelled.Cancel()
		mockService.On("CancelRegistration", mock.Anything, "reg-1", "user-1").Return(cancelled, nil)

		handler := NewRegistrationHandler(mockService)

		req := httptest.NewRequest(http.MethodDelete, "/registrations/reg-1", nil)
		req.Header.Set("X-User-ID", "user-1")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("reg-1")

		err := handler.Cancel(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("他人の登録は403", func(t *testing.T) {
		mockService := new(MockAdmissionService)
		mockService.On("CancelRegistration", mock.Anything, "reg-1", "other").
			Return(nil, registration.ErrNotOwner)

		handler := NewRegistrationHandler(mockService)

		req := httptest.NewRequest(http.MethodDelete, "/registrations/reg-1", nil)
		req.Header.Set("X-User-ID", "other")
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("reg-1")

		err := handler.Cancel(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusForbidden, httpErr.Code)
	})
}

func TestRegistrationHandler_ListMine(t *testing.T) {
	e := NewTestEcho()

	mockService := new(MockAdmissionService)
	reg := registration.NewRegistration(testEventID, "user-1", registration.Options{})
	reg.ID = "reg-1"
	_ = reg.Waitlist(2)
	mockService.On("GetUserRegistrations", mock.Anything, "user-1", 0, 0).
		Return([]*registration.Registration{reg}, nil)

	handler := NewRegistrationHandler(mockService)

	req := httptest.NewRequest(http.MethodGet, "/registrations", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := handler.ListMine(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp []*RegistrationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "waitlisted", resp[0].Status)
	require.NotNil(t, resp[0].Position)
	assert.Equal(t, 2, *resp[0].Position)
}

func TestRegistrationHandler_Attend(t *testing.T) {
	e := NewTestEcho()

	t.Run("出席を記録できる", func(t *testing.T) {
		mockService := new(MockAdmissionService)
		reg := registration.NewRegistration(testEventID, "user-1", registration.Options{})
		reg.ID = "reg-1"
		_ = reg.Confirm()
		_ = reg.MarkAttended()
		mockService.On("MarkAttended", mock.Anything, "reg-1").Return(reg, nil)

		handler := NewRegistrationHandler(mockService)

		req := httptest.NewRequest(http.MethodPost, "/registrations/reg-1/attend", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("reg-1")

		err := handler.Attend(c)

		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("未確定の登録は422", func(t *testing.T) {
		mockService := new(MockAdmissionService)
		mockService.On("MarkAttended", mock.Anything, "reg-1").
			Return(nil, registration.ErrNotAttendable)

		handler := NewRegistrationHandler(mockService)

		req := httptest.NewRequest(http.MethodPost, "/registrations/reg-1/attend", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		c.SetParamNames("id")
		c.SetParamValues("reg-1")

		err := handler.Attend(c)

		var httpErr *echo.HTTPError
		require.ErrorAs(t, err, &httpErr)
		assert.Equal(t, http.StatusUnprocessableEntity, httpErr.Code)
	})
}
