// internal/model/recipient_task.go
package model

// Role tags a recipient task with the address header the send should resolve
// the recipient into. RoleNone marks an ordinary target-list recipient and is
// omitted on the wire.
type Role string

const (
	RoleNone Role = ""
	RoleTo   Role = "to"
	RoleCC   Role = "cc"
	RoleBCC  Role = "bcc"
)

// RecipientTask is the queue message: exactly one per unique normalized
// recipient of a campaign.
type RecipientTask struct {
	CampaignID string `json:"campaign_id"`
	Email      string `json:"contact_email"`
	Role       Role   `json:"role,omitempty"`
}
