package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wirechat/wirechat/internal/mail"
	"github.com/wirechat/wirechat/internal/models"
)

type digestStore struct {
	entries []models.UnreadDigestEntry
	err     error
}

func (s *digestStore) Close() {}

func (s *digestStore) Ping(context.Context) error { return nil }

func (s *digestStore) GetLink(context.Context, uuid.UUID) (*models.Link, error) { return nil, nil }

func (s *digestStore) UpdateLinkScan(context.Context, uuid.UUID, *models.ScanVerdict, time.Time) error {
	return nil
}

func (s *digestStore) GetUser(context.Context, uuid.UUID) (*models.User, error) { return nil, nil }

func (s *digestStore) IsChatParticipant(context.Context, string, uuid.UUID) (bool, error) {
	return false, nil
}

func (s *digestStore) UnreadDigests(context.Context) ([]models.UnreadDigestEntry, error) {
	return s.entries, s.err
}

type capturePublisher struct {
	jobs    []models.EmailJob
	failFor string // recipient address that fails to enqueue
}

func (p *capturePublisher) PublishEmail(_ context.Context, job models.EmailJob) error {
	if p.failFor != "" && job.To == p.failFor {
		return errors.New("broker refused")
	}
	p.jobs = append(p.jobs, job)
	return nil
}

func digestEntries() []models.UnreadDigestEntry {
	return []models.UnreadDigestEntry{
		{UserID: uuid.New(), Email: "a@example.com", Name: "Ada", UnreadCount: 3},
		{UserID: uuid.New(), Email: "b@example.com", Name: "Ben", UnreadCount: 12},
	}
}

func TestDigestEnqueuesOneEmailPerRecipient(t *testing.T) {
	pub := &capturePublisher{}
	entries := digestEntries()
	c := NewDigestConsumer(&digestStore{entries: entries}, mail.FallbackRenderer{}, pub, zerolog.Nop())

	if err := c.Handle(context.Background(), nil); err != nil {
		t.Fatal(err)
	}

	if len(pub.jobs) != len(entries) {
		t.Fatalf("enqueued %d emails, want %d", len(pub.jobs), len(entries))
	}
	for i, job := range pub.jobs {
		if job.To != entries[i].Email {
			t.Errorf("job %d to %q, want %q", i, job.To, entries[i].Email)
		}
		if !strings.Contains(job.HTML, entries[i].Name) {
			t.Errorf("job %d body does not mention recipient name", i)
		}
	}
}

func TestDigestSkipsFailedRecipient(t *testing.T) {
	entries := digestEntries()
	pub := &capturePublisher{failFor: entries[0].Email}
	c := NewDigestConsumer(&digestStore{entries: entries}, mail.FallbackRenderer{}, pub, zerolog.Nop())

	// One bad recipient must not sink the rest of the digest.
	if err := c.Handle(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if len(pub.jobs) != 1 {
		t.Fatalf("enqueued %d emails, want 1", len(pub.jobs))
	}
	if pub.jobs[0].To != entries[1].Email {
		t.Fatalf("surviving recipient = %q", pub.jobs[0].To)
	}
}

func TestDigestEmptyRun(t *testing.T) {
	pub := &capturePublisher{}
	c := NewDigestConsumer(&digestStore{}, mail.FallbackRenderer{}, pub, zerolog.Nop())

	if err := c.Handle(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if len(pub.jobs) != 0 {
		t.Fatalf("enqueued %d emails for an empty digest", len(pub.jobs))
	}
}

func TestDigestStoreErrorSurfaces(t *testing.T) {
	c := NewDigestConsumer(&digestStore{err: errors.New("db gone")}, mail.FallbackRenderer{}, &capturePublisher{}, zerolog.Nop())

	if err := c.Handle(context.Background(), nil); err == nil {
		t.Fatal("store failure should surface so the job is recorded as failed")
	}
}
