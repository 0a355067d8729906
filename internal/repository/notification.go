package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/wellspring/marketplace-server-go/internal/model"
)

type NotificationRepository interface {
	Create(ctx context.Context, params model.CreateNotificationParams) (*model.Notification, error)
	ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]model.Notification, error)
	CountUnread(ctx context.Context, recipientID string) (int, error)
	// MarkRead only touches notifications owned by recipientID.
	MarkRead(ctx context.Context, id, recipientID string) (bool, error)
}

type notificationRepo struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) NotificationRepository {
	return &notificationRepo{db: db}
}

func (r *notificationRepo) Create(ctx context.Context, params model.CreateNotificationParams) (*model.Notification, error) {
	payload := params.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}

	var n model.Notification
	err := r.db.GetContext(ctx, &n, `
		INSERT INTO notifications (recipient_id, kind, payload)
		VALUES ($1, $2, $3)
		RETURNING *
	`, params.RecipientID, params.Kind, []byte(payload))
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notificationRepo) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool, limit, offset int) ([]model.Notification, error) {
	l, o := pageBounds(limit, offset)
	var notifications []model.Notification
	err := r.db.SelectContext(ctx, &notifications, `
		SELECT * FROM notifications
		WHERE recipient_id = $1
		AND (NOT $2 OR read_at IS NULL)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, recipientID, unreadOnly, l, o)
	return notifications, err
}

func (r *notificationRepo) CountUnread(ctx context.Context, recipientID string) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM notifications
		WHERE recipient_id = $1 AND read_at IS NULL
	`, recipientID)
	return count, err
}

func (r *notificationRepo) MarkRead(ctx context.Context, id, recipientID string) (bool, error) {
	return affectedOne(r.db.ExecContext(ctx, `
		UPDATE notifications SET read_at = NOW()
		WHERE id = $1 AND recipient_id = $2 AND read_at IS NULL
	`, id, recipientID))
}
