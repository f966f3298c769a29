package jobs

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/wirechat/wirechat/internal/mail"
	"github.com/wirechat/wirechat/internal/models"
	"github.com/wirechat/wirechat/internal/store"
)

// EmailPublisher enqueues the digest emails onto the broker.
type EmailPublisher interface {
	PublishEmail(ctx context.Context, job models.EmailJob) error
}

// DigestConsumer handles the daily chat.unread.digest trigger: it finds
// every user with unread messages and a known email, renders their digest,
// and enqueues one email.send job each. A failed recipient is logged and
// skipped so one bad address never sinks the whole digest.
type DigestConsumer struct {
	store    store.DataStore
	renderer mail.TemplateRenderer
	emails   EmailPublisher
	logger   zerolog.Logger
}

// NewDigestConsumer creates the chat.unread.digest handler.
func NewDigestConsumer(db store.DataStore, renderer mail.TemplateRenderer, emails EmailPublisher, logger zerolog.Logger) *DigestConsumer {
	return &DigestConsumer{
		store:    db,
		renderer: renderer,
		emails:   emails,
		logger:   logger.With().Str("job", "chat.unread.digest").Logger(),
	}
}

// Handle processes one digest trigger. The trigger body carries no payload.
func (c *DigestConsumer) Handle(ctx context.Context, _ []byte) error {
	entries, err := c.store.UnreadDigests(ctx)
	if err != nil {
		return err
	}

	sent := 0
	for _, e := range entries {
		html, err := c.renderer.Render(mail.TemplateUnreadDigest, map[string]any{
			"name":         e.Name,
			"unread_count": e.UnreadCount,
		})
		if err != nil {
			c.logger.Error().Err(err).Str("user_id", e.UserID.String()).Msg("digest render failed")
			continue
		}

		userID := e.UserID
		job := models.EmailJob{
			UserID:  &userID,
			To:      e.Email,
			Subject: "You have unread messages",
			HTML:    html,
		}
		if err := c.emails.PublishEmail(ctx, job); err != nil {
			c.logger.Error().Err(err).Str("user_id", e.UserID.String()).Msg("digest enqueue failed")
			continue
		}
		sent++
	}

	c.logger.Info().Int("recipients", len(entries)).Int("enqueued", sent).Msg("unread digest processed")
	return nil
}
