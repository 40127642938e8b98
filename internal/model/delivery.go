// internal/model/delivery.go
package model

import "time"

// Delivery records the per-recipient outcome of a campaign send. The unique
// (campaign_id, recipient) pair is what lets the worker skip a task the queue
// redelivered after a successful send.
type Delivery struct {
	ID         int       `db:"id" json:"id"`
	CampaignID string    `db:"campaign_id" json:"campaign_id"`
	Recipient  string    `db:"recipient" json:"recipient"`
	Role       Role      `db:"role" json:"role"`
	Status     string    `db:"status" json:"status"` // pending, sent, failed
	MessageID  string    `db:"message_id" json:"message_id,omitempty"`
	LastError  string    `db:"last_error" json:"last_error,omitempty"`
	RetryCount int       `db:"retry_count" json:"retry_count"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

const (
	DeliveryPending = "pending"
	DeliverySent    = "sent"
	DeliveryFailed  = "failed"
)
