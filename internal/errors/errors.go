// internal/errors/errors.go
package appErrors

import "fmt"

// ErrCampaignNotFound is a sentinel error
type ErrCampaignNotFound struct {
	CampaignID string
}

func (e *ErrCampaignNotFound) Error() string {
	return fmt.Sprintf("campaign %s not found", e.CampaignID)
}

// Helper constructor
func NewCampaignNotFound(id string) error {
	return &ErrCampaignNotFound{CampaignID: id}
}

// ErrValidation rejects a campaign spec before anything is persisted or
// enqueued.
type ErrValidation struct {
	Field  string
	Reason string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("invalid campaign: %s %s", e.Field, e.Reason)
}

func NewValidation(field, reason string) error {
	return &ErrValidation{Field: field, Reason: reason}
}

// ErrAttachmentNotFound is returned when a blob key has no stored content.
type ErrAttachmentNotFound struct {
	Key string
}

func (e *ErrAttachmentNotFound) Error() string {
	return fmt.Sprintf("attachment %s not found", e.Key)
}

func NewAttachmentNotFound(key string) error {
	return &ErrAttachmentNotFound{Key: key}
}

// ErrContactNotFound is returned when a personalization lookup misses.
type ErrContactNotFound struct {
	Email string
}

func (e *ErrContactNotFound) Error() string {
	return fmt.Sprintf("contact %s not found", e.Email)
}

func NewContactNotFound(email string) error {
	return &ErrContactNotFound{Email: email}
}
