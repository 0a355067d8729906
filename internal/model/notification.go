package model

import (
	"time"

	jsoniter "github.com/json-iterator/go"
)

type Notification struct {
	ID          string              `db:"id" json:"id"`
	RecipientID string              `db:"recipient_id" json:"recipientId"`
	Kind        NotificationKind    `db:"kind" json:"kind"`
	Payload     jsoniter.RawMessage `db:"payload" json:"payload"`
	ReadAt      *time.Time          `db:"read_at" json:"readAt,omitempty"`
	CreatedAt   time.Time           `db:"created_at" json:"createdAt"`
}

// ToSSEEventData returns JSON data for SSE notification events
func (n *Notification) ToSSEEventData() jsoniter.RawMessage {
	data, _ := json.Marshal(map[string]any{
		"id":        n.ID,
		"kind":      n.Kind,
		"payload":   n.Payload,
		"createdAt": n.CreatedAt,
	})
	return data
}

type CreateNotificationParams struct {
	RecipientID string
	Kind        NotificationKind
	Payload     jsoniter.RawMessage
}
