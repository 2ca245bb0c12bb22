package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/noob-master-cell/esn-sub001/internal/api"
	"github.com/noob-master-cell/esn-sub001/internal/application"
	"github.com/noob-master-cell/esn-sub001/internal/domain/registration"
)

type RegistrationHandler struct {
	admissionService AdmissionServiceInterface
}

func NewRegistrationHandler(admissionService AdmissionServiceInterface) *RegistrationHandler {
	return &RegistrationHandler{admissionService: admissionService}
}

type CreateRegistrationRequest struct {
	EventID          string `json:"event_id" validate:"required,uuid" example:"550e8400-e29b-41d4-a716-446655440000"`
	SpecialRequests  string `json:"special_requests,omitempty"`
	Dietary          string `json:"dietary,omitempty" example:"vegetarian"`
	EmergencyContact string `json:"emergency_contact,omitempty"`
}

type RegistrationResponse struct {
	ID               string `json:"id"`
	EventID          string `json:"event_id"`
	UserID           string `json:"user_id"`
	Status           string `json:"status"`
	Type             string `json:"type"`
	Position         *int   `json:"position,omitempty"`
	AmountDue        int    `json:"amount_due"`
	Currency         string `json:"currency,omitempty"`
	PaymentStatus    string `json:"payment_status"`
	SpecialRequests  string `json:"special_requests,omitempty"`
	Dietary          string `json:"dietary,omitempty"`
	EmergencyContact string `json:"emergency_contact,omitempty"`
	ConfirmedAt      string `json:"confirmed_at,omitempty"`
	CancelledAt      string `json:"cancelled_at,omitempty"`
	CreatedAt        string `json:"created_at"`
}

// AdmissionResponse は登録要求の結果と更新後のイベント状態をまとめて返す。
// クライアントはこれでキャッシュ済みイベントを再フェッチなしに更新できる。
type AdmissionResponse struct {
	Registration *RegistrationResponse `json:"registration"`
	Event        *EventResponse        `json:"event"`
}

func toRegistrationResponse(r *registration.Registration) *RegistrationResponse {
	resp := &RegistrationResponse{
		ID:               r.ID,
		EventID:          r.EventID,
		UserID:           r.UserID,
		Status:           string(r.Status),
		Type:             string(r.Type),
		Position:         r.Position,
		AmountDue:        r.AmountDue,
		Currency:         r.Currency,
		PaymentStatus:    string(r.PaymentStatus),
		SpecialRequests:  r.SpecialRequests,
		Dietary:          r.Dietary,
		EmergencyContact: r.EmergencyContact,
		CreatedAt:        r.CreatedAt.Format(time.RFC3339),
	}
	if r.ConfirmedAt != nil {
		resp.ConfirmedAt = r.ConfirmedAt.Format(time.RFC3339)
	}
	if r.CancelledAt != nil {
		resp.CancelledAt = r.CancelledAt.Format(time.RFC3339)
	}
	return resp
}

// Create godoc
// @Summary イベントに参加登録
// @Description 空きがあれば確定、満員でウェイトリスト許可なら待機、どちらも不可なら拒否します
// @Tags registrations
// @Accept json
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Param request body CreateRegistrationRequest true "登録情報"
// @Success 201 {object} AdmissionResponse
// @Failure 400 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /registrations [post]
func (h *RegistrationHandler) Create(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	var req CreateRegistrationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result, err := h.admissionService.RequestRegistration(c.Request().Context(), application.RequestRegistrationInput{
		EventID:          req.EventID,
		UserID:           userID,
		SpecialRequests:  req.SpecialRequests,
		Dietary:          req.Dietary,
		EmergencyContact: req.EmergencyContact,
	})
	if err != nil {
		return echo.NewHTTPError(api.StatusFromError(err), err.Error())
	}

	return c.JSON(http.StatusCreated, &AdmissionResponse{
		Registration: toRegistrationResponse(result.Registration),
		Event:        toEventResponse(result.Event, true),
	})
}

// GetByID godoc
// @Summary 参加登録を取得
// @Tags registrations
// @Produce json
// @Param id path string true "登録ID"
// @Success 200 {object} RegistrationResponse
// @Failure 404 {object} map[string]string
// @Router /registrations/{id} [get]
func (h *RegistrationHandler) GetByID(c echo.Context) error {
	r, err := h.admissionService.GetRegistration(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(api.StatusFromError(err), err.Error())
	}
	return c.JSON(http.StatusOK, toRegistrationResponse(r))
}

// ListMine godoc
// @Summary 自分の参加登録一覧を取得
// @Tags registrations
// @Produce json
// @Param X-User-ID header string true "ユーザーID"
// @Success 200 {array} RegistrationResponse
// @Router /registrations [get]
func (h *RegistrationHandler) ListMine(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	regs, err := h.admissionService.GetUserRegistrations(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	responses := make([]*RegistrationResponse, len(regs))
	for i, r := range regs {
		responses[i] = toRegistrationResponse(r)
	}
	return c.JSON(http.StatusOK, responses)
}

// ListByEvent godoc
// @Summary イベントの参加登録一覧を取得
// @Tags registrations
// @Produce json
// @Param id path string true "イベントID"
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} RegistrationResponse
// @Router /events/{id}/registrations [get]
func (h *RegistrationHandler) ListByEvent(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	regs, err := h.admissionService.GetEventRegistrations(c.Request().Context(), c.Param("id"), limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	responses := make([]*RegistrationResponse, len(regs))
	for i, r := range regs {
		responses[i] = toRegistrationResponse(r)
	}
	return c.JSON(http.StatusOK, responses)
}

// Cancel godoc
// @Summary 参加登録をキャンセル
// @Description 確定済みの登録をキャンセルするとウェイトリスト先頭が昇格します
// @Tags registrations
// @Param X-User-ID header string true "ユーザーID"
// @Param id path string true "登録ID"
// @Success 204
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /registrations/{id} [delete]
func (h *RegistrationHandler) Cancel(c echo.Context) error {
	userID := c.Request().Header.Get("X-User-ID")
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}

	if _, err := h.admissionService.CancelRegistration(c.Request().Context(), c.Param("id"), userID); err != nil {
		return echo.NewHTTPError(api.StatusFromError(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// Attend godoc
// @Summary 出席を記録
// @Tags registrations
// @Produce json
// @Param id path string true "登録ID"
// @Success 200 {object} RegistrationResponse
// @Failure 404 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /registrations/{id}/attend [post]
func (h *RegistrationHandler) Attend(c echo.Context) error {
	r, err := h.admissionService.MarkAttended(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(api.StatusFromError(err), err.Error())
	}
	return c.JSON(http.StatusOK, toRegistrationResponse(r))
}
