package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/noob-master-cell/esn-sub001/internal/api"
	"github.com/noob-master-cell/esn-sub001/internal/application"
	"github.com/noob-master-cell/esn-sub001/internal/domain/event"
)

type EventHandler struct {
	eventService     EventServiceInterface
	admissionService AdmissionServiceInterface
}

func NewEventHandler(eventService EventServiceInterface, admissionService AdmissionServiceInterface) *EventHandler {
	return &EventHandler{eventService: eventService, admissionService: admissionService}
}

type CreateEventRequest struct {
	Name                 string `json:"name" validate:"required" example:"Welcome Week ボートツアー"`
	Description          string `json:"description"`
	Type                 string `json:"type" validate:"required,oneof=free paid" example:"paid"`
	MaxParticipants      int    `json:"max_participants" validate:"gte=0" example:"50"`
	AllowWaitlist        bool   `json:"allow_waitlist" example:"true"`
	RegistrationDeadline string `json:"registration_deadline,omitempty" example:"2025-09-20T23:59:59+02:00"`
	StartAt              string `json:"start_at" validate:"required" example:"2025-09-22T10:00:00+02:00"`
	EndAt                string `json:"end_at" validate:"required" example:"2025-09-22T18:00:00+02:00"`
	Price                int    `json:"price" validate:"gte=0" example:"2500"`
	MemberPrice          int    `json:"member_price" validate:"gte=0" example:"2000"`
	Currency             string `json:"currency" example:"EUR"`
}

type EventResponse struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	Description          string `json:"description"`
	OrganizerID          string `json:"organizer_id"`
	Type                 string `json:"type"`
	Status               string `json:"status"`
	MaxParticipants      int    `json:"max_participants"`
	RegistrationCount    int    `json:"registration_count"`
	WaitlistCount        int    `json:"waitlist_count"`
	AllowWaitlist        bool   `json:"allow_waitlist"`
	RegistrationDeadline string `json:"registration_deadline,omitempty"`
	StartAt              string `json:"start_at"`
	EndAt                string `json:"end_at"`
	Price                int    `json:"price"`
	MemberPrice          int    `json:"member_price"`
	Currency             string `json:"currency"`
	CanRegister          bool   `json:"can_register"`
	IsRegistered         bool   `json:"is_registered"`
	CreatedAt            string `json:"created_at"`
	UpdatedAt            string `json:"updated_at"`
}

func toEventResponse(e *event.Event, isRegistered bool) *EventResponse {
	resp := &EventResponse{
		ID:                e.ID,
		Name:              e.Name,
		Description:       e.Description,
		OrganizerID:       e.OrganizerID,
		Type:              string(e.Type),
		Status:            string(e.Status),
		MaxParticipants:   e.MaxParticipants,
		RegistrationCount: e.RegistrationCount,
		WaitlistCount:     e.WaitlistCount,
		AllowWaitlist:     e.AllowWaitlist,
		StartAt:           e.StartAt.Format(time.RFC3339),
		EndAt:             e.EndAt.Format(time.RFC3339),
		Price:             e.Price,
		MemberPrice:       e.MemberPrice,
		Currency:          e.Currency,
		CanRegister:       e.CanRegister(time.Now()) && !isRegistered,
		IsRegistered:      isRegistered,
		CreatedAt:         e.CreatedAt.Format(time.RFC3339),
		UpdatedAt:         e.UpdatedAt.Format(time.RFC3339),
	}
	if e.RegistrationDeadline != nil {
		resp.RegistrationDeadline = e.RegistrationDeadline.Format(time.RFC3339)
	}
	return resp
}

// CapacityResponse は残り枠数のレスポンス
type CapacityResponse struct {
	EventID   string `json:"event_id"`
	Remaining int    `json:"remaining"` // -1 は無制限
	Unlimited bool   `json:"unlimited"`
}

// Create godoc
// @Summary イベントを作成
// @Description 新しいイベントをドラフト状態で作成します
// @Tags events
// @Accept json
// @Produce json
// @Param X-User-ID header string true "主催者ID"
// @Param request body CreateEventRequest true "イベント情報"
// @Success 201 {object} EventResponse
// @Failure 400 {object} map[string]string
// @Router /events [post]
func (h *EventHandler) Create(c echo.Context) error {
	organizerID := c.Request().Header.Get("X-User-ID")
	if organizerID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "ユーザーIDが必要です")
	}
	var req CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	startAt, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "開始時刻の形式が不正です")
	}
	endAt, err := time.Parse(time.RFC3339, req.EndAt)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "終了時刻の形式が不正です")
	}
	var deadline *time.Time
	if req.RegistrationDeadline != "" {
		d, err := time.Parse(time.RFC3339, req.RegistrationDeadline)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "締切時刻の形式が不正です")
		}
		deadline = &d
	}

	e, err := h.eventService.CreateEvent(c.Request().Context(), application.CreateEventInput{
		Name:                 req.Name,
		Description:          req.Description,
		OrganizerID:          organizerID,
		Type:                 event.Type(req.Type),
		MaxParticipants:      req.MaxParticipants,
		AllowWaitlist:        req.AllowWaitlist,
		RegistrationDeadline: deadline,
		StartAt:              startAt,
		EndAt:                endAt,
		Price:                req.Price,
		MemberPrice:          req.MemberPrice,
		Currency:             req.Currency,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, toEventResponse(e, false))
}

// GetByID godoc
// @Summary イベントを取得
// @Description 指定IDのイベントを取得します。X-User-ID があれば登録済みかも返します
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 404 {object} map[string]string
// @Router /events/{id} [get]
func (h *EventHandler) GetByID(c echo.Context) error {
	id := c.Param("id")
	e, err := h.eventService.GetEvent(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(api.StatusFromError(err), err.Error())
	}

	isRegistered := false
	if userID := c.Request().Header.Get("X-User-ID"); userID != "" && h.admissionService != nil {
		isRegistered, _ = h.admissionService.IsRegistered(c.Request().Context(), userID, id)
	}
	return c.JSON(http.StatusOK, toEventResponse(e, isRegistered))
}

// Capacity godoc
// @Summary 残り枠数を取得
// @Description イベントの残り確定枠数を取得します（キャッシュ参照）
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} CapacityResponse
// @Failure 404 {object} map[string]string
// @Router /events/{id}/capacity [get]
func (h *EventHandler) Capacity(c echo.Context) error {
	id := c.Param("id")
	remaining, err := h.eventService.RemainingCapacity(c.Request().Context(), id)
	if err != nil {
		return echo.NewHTTPError(api.StatusFromError(err), err.Error())
	}
	return c.JSON(http.StatusOK, CapacityResponse{
		EventID:   id,
		Remaining: remaining,
		Unlimited: remaining < 0,
	})
}

// List godoc
// @Summary イベント一覧を取得
// @Description イベントの一覧を取得します
// @Tags events
// @Produce json
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} EventResponse
// @Router /events [get]
func (h *EventHandler) List(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	events, err := h.eventService.ListEvents(c.Request().Context(), limit, offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	responses := make([]*EventResponse, len(events))
	for i, e := range events {
		responses[i] = toEventResponse(e, false)
	}
	return c.JSON(http.StatusOK, responses)
}

// Update godoc
// @Summary イベントを更新
// @Description 指定IDのイベントを更新します。定員引き上げ時はウェイトリストが昇格します
// @Tags events
// @Accept json
// @Produce json
// @Param id path string true "イベントID"
// @Param request body CreateEventRequest true "イベント情報"
// @Success 200 {object} EventResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /events/{id} [put]
func (h *EventHandler) Update(c echo.Context) error {
	id := c.Param("id")
	var req CreateEventRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "リクエストの形式が不正です")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	startAt, err := time.Parse(time.RFC3339, req.StartAt)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "開始時刻の形式が不正です")
	}
	endAt, err := time.Parse(time.RFC3339, req.EndAt)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "終了時刻の形式が不正です")
	}
	var deadline *time.Time
	if req.RegistrationDeadline != "" {
		d, err := time.Parse(time.RFC3339, req.RegistrationDeadline)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "締切時刻の形式が不正です")
		}
		deadline = &d
	}

	e, err := h.eventService.UpdateEvent(c.Request().Context(), application.UpdateEventInput{
		ID:                   id,
		Name:                 req.Name,
		Description:          req.Description,
		MaxParticipants:      req.MaxParticipants,
		AllowWaitlist:        req.AllowWaitlist,
		RegistrationDeadline: deadline,
		StartAt:              startAt,
		EndAt:                endAt,
		Price:                req.Price,
		MemberPrice:          req.MemberPrice,
		Currency:             req.Currency,
	})
	if err != nil {
		return echo.NewHTTPError(api.StatusFromError(err), err.Error())
	}
	return c.JSON(http.StatusOK, toEventResponse(e, false))
}

// Publish godoc
// @Summary イベントを公開
// @Description ドラフトイベントを公開します
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} EventResponse
// @Failure 404 {object} map[string]string
// @Failure 422 {object} map[string]string
// @Router /events/{id}/publish [post]
func (h *EventHandler) Publish(c echo.Context) error {
	e, err := h.eventService.PublishEvent(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(api.StatusFromError(err), err.Error())
	}
	return c.JSON(http.StatusOK, toEventResponse(e, false))
}

// OpenRegistration godoc
// @Summary 参加登録の受付を開始
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} EventResponse
// @Router /events/{id}/open [post]
func (h *EventHandler) OpenRegistration(c echo.Context) error {
	e, err := h.eventService.OpenRegistration(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(api.StatusFromError(err), err.Error())
	}
	return c.JSON(http.StatusOK, toEventResponse(e, false))
}

// CloseRegistration godoc
// @Summary 参加登録の受付を終了
// @Tags events
// @Produce json
// @Param id path string true "イベントID"
// @Success 200 {object} EventResponse
// @Router /events/{id}/close [post]
func (h *EventHandler) CloseRegistration(c echo.Context) error {
	e, err := h.eventService.CloseRegistration(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(api.StatusFromError(err), err.Error())
	}
	return c.JSON(http.StatusOK, toEventResponse(e, false))
}

// Delete godoc
// @Summary イベントを削除
// @Description イベントを論理削除し、アクティブな参加登録をキャンセルします
// @Tags events
// @Param id path string true "イベントID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /events/{id} [delete]
func (h *EventHandler) Delete(c echo.Context) error {
	if err := h.eventService.RemoveEvent(c.Request().Context(), c.Param("id")); err != nil {
		return echo.NewHTTPError(api.StatusFromError(err), err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
