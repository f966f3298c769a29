package models

import (
	"errors"

	"github.com/google/uuid"
)

// EmailJob is the payload of an email.send job.
type EmailJob struct {
	UserID  *uuid.UUID `json:"user_id,omitempty"`
	To      string     `json:"to"`
	Subject string     `json:"subject"`
	HTML    string     `json:"html"`
	From    string     `json:"from,omitempty"` // Optional sender override
}

// Validate checks the fields a producer must fill before publishing.
func (j *EmailJob) Validate() error {
	if j.To == "" {
		return errors.New("email job: recipient is required")
	}
	if j.Subject == "" {
		return errors.New("email job: subject is required")
	}
	if j.HTML == "" {
		return errors.New("email job: body is required")
	}
	return nil
}

// ScanJob is the payload of a scan.url job.
type ScanJob struct {
	LinkID      uuid.UUID `json:"link_id"`
	URL         string    `json:"url"`
	RequestedBy uuid.UUID `json:"requested_by"`
	Force       bool      `json:"force,omitempty"` // Bypass the verdict cache
}

// Validate checks the fields a producer must fill before publishing.
func (j *ScanJob) Validate() error {
	if j.LinkID == uuid.Nil {
		return errors.New("scan job: link id is required")
	}
	if j.URL == "" {
		return errors.New("scan job: url is required")
	}
	return nil
}

// UnreadDigestJob is the payload of a chat.unread.digest job. The trigger
// itself is the only information; consumers derive recipients from storage.
type UnreadDigestJob struct {
	TriggeredAt int64 `json:"triggered_at,omitempty"` // Unix ms, informational
}
