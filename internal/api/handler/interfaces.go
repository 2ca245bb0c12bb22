package handler

import (
	"context"

	"github.com/noob-master-cell/esn-sub001/internal/application"
	"github.com/noob-master-cell/esn-sub001/internal/domain/event"
	"github.com/noob-master-cell/esn-sub001/internal/domain/registration"
)

// EventServiceInterface はイベントサービスのインターフェース
type EventServiceInterface interface {
	CreateEvent(ctx context.Context, input application.CreateEventInput) (*event.Event, error)
	GetEvent(ctx context.Context, id string) (*event.Event, error)
	ListEvents(ctx context.Context, limit, offset int) ([]*event.Event, error)
	UpdateEvent(ctx context.Context, input application.UpdateEventInput) (*event.Event, error)
	PublishEvent(ctx context.Context, id string) (*event.Event, error)
	OpenRegistration(ctx context.Context, id string) (*event.Event, error)
	CloseRegistration(ctx context.Context, id string) (*event.Event, error)
	RemoveEvent(ctx context.Context, id string) error
	RemainingCapacity(ctx context.Context, eventID string) (int, error)
}

// AdmissionServiceInterface は参加登録サービスのインターフェース
type AdmissionServiceInterface interface {
	RequestRegistration(ctx context.Context, input application.RequestRegistrationInput) (*application.AdmissionResult, error)
	CancelRegistration(ctx context.Context, id, userID string) (*registration.Registration, error)
	GetRegistration(ctx context.Context, id string) (*registration.Registration, error)
	GetUserRegistrations(ctx context.Context, userID string, limit, offset int) ([]*registration.Registration, error)
	GetEventRegistrations(ctx context.Context, eventID string, limit, offset int) ([]*registration.Registration, error)
	IsRegistered(ctx context.Context, userID, eventID string) (bool, error)
	MarkAttended(ctx context.Context, id string) (*registration.Registration, error)
}
