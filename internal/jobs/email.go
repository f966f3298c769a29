// Package jobs holds the handlers bound to the broker's queues. Handlers are
// idempotent under redelivery: email sending is idempotent-enough for the
// domain and scan persistence is an overwrite.
package jobs

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/wirechat/wirechat/internal/mail"
	"github.com/wirechat/wirechat/internal/models"
)

// EmailConsumer handles email.send jobs by delegating to the injected
// outbound sender.
type EmailConsumer struct {
	sender mail.Sender
	logger zerolog.Logger
}

// NewEmailConsumer creates the email.send handler.
func NewEmailConsumer(sender mail.Sender, logger zerolog.Logger) *EmailConsumer {
	return &EmailConsumer{sender: sender, logger: logger.With().Str("job", "email.send").Logger()}
}

// Handle processes one email.send job body.
func (c *EmailConsumer) Handle(ctx context.Context, body []byte) error {
	var job models.EmailJob
	if err := json.Unmarshal(body, &job); err != nil {
		return err
	}
	if err := job.Validate(); err != nil {
		return err
	}

	err := c.sender.Send(ctx, mail.Message{
		To:      job.To,
		Subject: job.Subject,
		HTML:    job.HTML,
		From:    job.From,
	})
	if err != nil {
		return err
	}

	c.logger.Info().Str("to", job.To).Str("subject", job.Subject).Msg("email sent")
	return nil
}
