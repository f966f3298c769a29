// Package mail declares the outbound email boundary. Rendering and delivery
// are external collaborators; the core only produces and consumes email jobs.
package mail

import (
	"context"

	"github.com/rs/zerolog"
)

// Message is a fully rendered outbound email.
type Message struct {
	To      string
	Subject string
	HTML    string
	From    string // Optional sender override
}

// Sender delivers a rendered email. Implementations are expected to be
// idempotent enough for the domain: sending the same message twice after a
// broker redelivery is acceptable, losing one is not.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// TemplateRenderer renders a named template with the given data into HTML.
type TemplateRenderer interface {
	Render(kind string, data map[string]any) (string, error)
}

// LogSender logs outbound mail instead of delivering it. Used in development
// when no real sender is configured.
type LogSender struct {
	Logger zerolog.Logger
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.Logger.Info().
		Str("to", msg.To).
		Str("subject", msg.Subject).
		Int("html_bytes", len(msg.HTML)).
		Msg("email delivery skipped (log sender)")
	return nil
}
