package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/noob-master-cell/esn-sub001/internal/domain/event"
	"github.com/noob-master-cell/esn-sub001/internal/domain/registration"
	"github.com/noob-master-cell/esn-sub001/internal/domain/user"
	"github.com/noob-master-cell/esn-sub001/internal/pkg/logger"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// StatusFromError はドメインエラーをHTTPステータスに対応付ける
func StatusFromError(err error) int {
	switch {
	case errors.Is(err, event.ErrEventNotFound),
		errors.Is(err, registration.ErrRegistrationNotFound),
		errors.Is(err, user.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, registration.ErrAlreadyRegistered),
		errors.Is(err, event.ErrEventFull),
		errors.Is(err, event.ErrOptimisticLockConflict):
		return http.StatusConflict
	case errors.Is(err, event.ErrEventNotRegistrable),
		errors.Is(err, event.ErrDeadlinePassed),
		errors.Is(err, event.ErrInvalidStatusTransition),
		errors.Is(err, registration.ErrAlreadyCancelled),
		errors.Is(err, registration.ErrAlreadyAttended),
		errors.Is(err, registration.ErrNotAttendable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, registration.ErrNotOwner):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var (
		code    = http.StatusInternalServerError
		message = "内部サーバーエラー"
	)

	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	}

	// エラーログを出力（5xx エラーの場合）
	if code >= 500 {
		logger.Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	// JSONレスポンスを返す
	if err := c.JSON(code, ErrorResponse{
		Error: message,
		Code:  code,
	}); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
