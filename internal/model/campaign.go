// internal/model/campaign.go
package model

import "time"

// Campaign statuses. A campaign only reaches "failed" when the dispatcher
// could not create it; per-recipient bounces never fail the whole campaign.
const (
	StatusQueued    = "queued"
	StatusSending   = "sending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Campaign struct {
	ID              string          `db:"id" json:"id"`
	Name            string          `db:"name" json:"name"`
	Subject         string          `db:"subject" json:"subject"`
	Body            string          `db:"body" json:"body"`
	FromAddress     string          `db:"from_address" json:"from_address"`
	Status          string          `db:"status" json:"status"`
	TotalRecipients int             `db:"total_recipients" json:"total_recipients"`
	SentCount       int             `db:"sent_count" json:"sent_count"`
	FailedCount     int             `db:"failed_count" json:"failed_count"`
	QueuedCount     int             `db:"queued_count" json:"queued_count"`
	CCList          []string        `db:"cc_list" json:"cc_list"`
	BCCList         []string        `db:"bcc_list" json:"bcc_list"`
	Attachments     []AttachmentRef `db:"attachments" json:"attachments,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	LastActivityAt  time.Time       `db:"last_activity_at" json:"last_activity_at"`
}

// AttachmentRef points at a blob in the attachment store; content is fetched
// by key at send time, never stored on the campaign row.
type AttachmentRef struct {
	Filename  string `json:"filename"`
	Key       string `json:"s3_key"`
	SizeBytes int64  `json:"size_bytes"`
}

// AttachmentBytes sums the declared size of every attachment. The rate
// controller scales its delay with this number.
func (c *Campaign) AttachmentBytes() int64 {
	var total int64
	for _, a := range c.Attachments {
		total += a.SizeBytes
	}
	return total
}
