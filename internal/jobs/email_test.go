package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wirechat/wirechat/internal/mail"
	"github.com/wirechat/wirechat/internal/models"
)

type captureSender struct {
	sent []mail.Message
	err  error
}

func (s *captureSender) Send(_ context.Context, msg mail.Message) error {
	s.sent = append(s.sent, msg)
	return s.err
}

func emailBody(t *testing.T, job models.EmailJob) []byte {
	t.Helper()
	data, err := json.Marshal(job)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestEmailConsumerSends(t *testing.T) {
	sender := &captureSender{}
	c := NewEmailConsumer(sender, zerolog.Nop())

	id := uuid.New()
	body := emailBody(t, models.EmailJob{
		UserID:  &id,
		To:      "dana@example.com",
		Subject: "Welcome",
		HTML:    "<p>hello</p>",
		From:    "noreply@example.com",
	})

	if err := c.Handle(context.Background(), body); err != nil {
		t.Fatal(err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "dana@example.com" || msg.Subject != "Welcome" || msg.From != "noreply@example.com" {
		t.Fatalf("message = %+v", msg)
	}
}

func TestEmailConsumerRejectsMalformedBody(t *testing.T) {
	sender := &captureSender{}
	c := NewEmailConsumer(sender, zerolog.Nop())

	if err := c.Handle(context.Background(), []byte("{broken")); err == nil {
		t.Fatal("malformed body should error")
	}
	if len(sender.sent) != 0 {
		t.Fatal("malformed body must not reach the sender")
	}
}

func TestEmailConsumerRejectsIncompleteJob(t *testing.T) {
	sender := &captureSender{}
	c := NewEmailConsumer(sender, zerolog.Nop())

	body := emailBody(t, models.EmailJob{To: "dana@example.com"})
	if err := c.Handle(context.Background(), body); err == nil {
		t.Fatal("job without subject and body should error")
	}
	if len(sender.sent) != 0 {
		t.Fatal("invalid job must not reach the sender")
	}
}

func TestEmailConsumerPropagatesSendFailure(t *testing.T) {
	sender := &captureSender{err: errors.New("smtp refused")}
	c := NewEmailConsumer(sender, zerolog.Nop())

	body := emailBody(t, models.EmailJob{To: "a@b.c", Subject: "s", HTML: "<p>x</p>"})
	if err := c.Handle(context.Background(), body); err == nil {
		t.Fatal("send failure should surface to the consumer loop")
	}
}
