package service

import (
	"context"
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"

	apperrors "github.com/wellspring/marketplace-server-go/internal/errors"
	"github.com/wellspring/marketplace-server-go/internal/model"
	"github.com/wellspring/marketplace-server-go/internal/repository"
	"github.com/wellspring/marketplace-server-go/internal/sse"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Notifier delivers a notification of kind to a user. The delivery channel is
// the implementation's concern.
type Notifier interface {
	Notify(ctx context.Context, kind model.NotificationKind, recipientID string, payload any) error
}

// Publisher pushes live events to connected clients.
type Publisher interface {
	Publish(ctx context.Context, userID string, event sse.Event) error
}

type NotificationService struct {
	repo      repository.NotificationRepository
	publisher Publisher
}

func NewNotificationService(repo repository.NotificationRepository, publisher Publisher) *NotificationService {
	return &NotificationService{
		repo:      repo,
		publisher: publisher,
	}
}

// Notify persists the notification and pushes it to open streams. A failed
// push is logged only; the stored row is the source of truth.
func (s *NotificationService) Notify(ctx context.Context, kind model.NotificationKind, recipientID string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode notification payload: %w", err)
	}

	n, err := s.repo.Create(ctx, model.CreateNotificationParams{
		RecipientID: recipientID,
		Kind:        kind,
		Payload:     data,
	})
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	log.Debug().
		Str("notificationId", n.ID).
		Str("recipientId", recipientID).
		Str("kind", string(kind)).
		Msg("notification created")

	if s.publisher == nil {
		return nil
	}

	event := sse.Event{Type: string(kind), Data: n.ToSSEEventData()}
	if err := s.publisher.Publish(ctx, recipientID, event); err != nil {
		log.Warn().
			Err(err).
			Str("notificationId", n.ID).
			Str("recipientId", recipientID).
			Msg("failed to publish notification")
	}
	return nil
}

type NotificationList struct {
	Notifications []model.Notification `json:"notifications"`
	UnreadCount   int                  `json:"unreadCount"`
}

func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) (*NotificationList, error) {
	items, err := s.repo.ListByRecipient(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("count unread notifications: %w", err)
	}
	if items == nil {
		items = []model.Notification{}
	}
	return &NotificationList{Notifications: items, UnreadCount: unread}, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, id, userID string) error {
	ok, err := s.repo.MarkRead(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	if !ok {
		return apperrors.NotFound("Notification")
	}
	return nil
}
