package scan

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wirechat/wirechat/internal/mail"
	"github.com/wirechat/wirechat/internal/models"
)

type fakeStore struct {
	links map[uuid.UUID]*models.Link
	users map[uuid.UUID]*models.User

	scanUpdates []scanUpdate
}

type scanUpdate struct {
	linkID  uuid.UUID
	verdict models.ScanVerdict
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		links: make(map[uuid.UUID]*models.Link),
		users: make(map[uuid.UUID]*models.User),
	}
}

func (s *fakeStore) Close() {}

func (s *fakeStore) Ping(context.Context) error { return nil }

func (s *fakeStore) GetLink(_ context.Context, id uuid.UUID) (*models.Link, error) {
	return s.links[id], nil
}

func (s *fakeStore) UpdateLinkScan(_ context.Context, id uuid.UUID, v *models.ScanVerdict, _ time.Time) error {
	s.scanUpdates = append(s.scanUpdates, scanUpdate{linkID: id, verdict: *v})
	return nil
}

func (s *fakeStore) GetUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	return s.users[id], nil
}

func (s *fakeStore) IsChatParticipant(context.Context, string, uuid.UUID) (bool, error) {
	return false, nil
}

func (s *fakeStore) UnreadDigests(context.Context) ([]models.UnreadDigestEntry, error) {
	return nil, nil
}

type countingClassifier struct {
	calls   int
	verdict models.ScanVerdict
	err     error
}

func (c *countingClassifier) Classify(context.Context, string) (*models.ScanVerdict, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	v := c.verdict
	return &v, nil
}

type captureEmails struct {
	jobs []models.EmailJob
	err  error
}

func (e *captureEmails) PublishEmail(_ context.Context, job models.EmailJob) error {
	e.jobs = append(e.jobs, job)
	return e.err
}

func safeVerdict() models.ScanVerdict {
	return models.ScanVerdict{Safe: true, Status: models.ScanStatusSafe, Score: 0.05}
}

func maliciousVerdict() models.ScanVerdict {
	return models.ScanVerdict{
		Status:    models.ScanStatusMalicious,
		Score:     0.97,
		Threats:   []string{"phishing"},
		Reasoning: "known phishing kit",
	}
}

func seedLink(s *fakeStore, owner *models.User) *models.Link {
	link := &models.Link{ID: uuid.New(), URL: "https://example.com/page"}
	if owner != nil {
		s.users[owner.ID] = owner
		link.OwnerID = &owner.ID
	}
	s.links[link.ID] = link
	return link
}

func newTestPipeline(st *fakeStore, cls Classifier, emails EmailPublisher) *Pipeline {
	return NewPipeline(NewMemoryCache(), st, cls, emails, mail.FallbackRenderer{}, zerolog.Nop())
}

func TestProcessSkipsVanishedLink(t *testing.T) {
	st := newFakeStore()
	cls := &countingClassifier{verdict: safeVerdict()}
	p := newTestPipeline(st, cls, &captureEmails{})

	job := models.ScanJob{LinkID: uuid.New(), URL: "https://example.com"}
	if err := p.Process(context.Background(), job); err != nil {
		t.Fatalf("vanished link should be a no-op, got %v", err)
	}
	if cls.calls != 0 {
		t.Fatalf("classifier called %d times for a vanished link", cls.calls)
	}
}

func TestProcessDeduplicatesWithinTTL(t *testing.T) {
	st := newFakeStore()
	cls := &countingClassifier{verdict: safeVerdict()}
	p := newTestPipeline(st, cls, &captureEmails{})
	ctx := context.Background()

	a := seedLink(st, nil)
	b := seedLink(st, nil)

	// Same destination spelled two equivalent ways.
	if err := p.Process(ctx, models.ScanJob{LinkID: a.ID, URL: "https://Example.com/page"}); err != nil {
		t.Fatal(err)
	}
	if err := p.Process(ctx, models.ScanJob{LinkID: b.ID, URL: "https://example.com:443/page"}); err != nil {
		t.Fatal(err)
	}

	if cls.calls != 1 {
		t.Fatalf("classifier called %d times, want 1 (second scan should hit the cache)", cls.calls)
	}
	// Both jobs still persist a verdict.
	if len(st.scanUpdates) != 2 {
		t.Fatalf("scan updates = %d, want 2", len(st.scanUpdates))
	}
}

func TestProcessForceBypassesCache(t *testing.T) {
	st := newFakeStore()
	cls := &countingClassifier{verdict: safeVerdict()}
	p := newTestPipeline(st, cls, &captureEmails{})
	ctx := context.Background()

	link := seedLink(st, nil)

	if err := p.Process(ctx, models.ScanJob{LinkID: link.ID, URL: link.URL}); err != nil {
		t.Fatal(err)
	}
	if err := p.Process(ctx, models.ScanJob{LinkID: link.ID, URL: link.URL, Force: true}); err != nil {
		t.Fatal(err)
	}

	if cls.calls != 2 {
		t.Fatalf("classifier called %d times, want 2 with force", cls.calls)
	}
}

func TestProcessRedeliveryIsIdempotent(t *testing.T) {
	st := newFakeStore()
	cls := &countingClassifier{verdict: maliciousVerdict()}
	p := newTestPipeline(st, cls, &captureEmails{})
	ctx := context.Background()

	owner := &models.User{ID: uuid.New(), Email: "owner@example.com", Name: "Dana"}
	link := seedLink(st, owner)
	job := models.ScanJob{LinkID: link.ID, URL: link.URL}

	if err := p.Process(ctx, job); err != nil {
		t.Fatal(err)
	}
	if err := p.Process(ctx, job); err != nil {
		t.Fatal(err)
	}

	if len(st.scanUpdates) != 2 {
		t.Fatalf("scan updates = %d, want 2", len(st.scanUpdates))
	}
	if !reflect.DeepEqual(st.scanUpdates[0].verdict, st.scanUpdates[1].verdict) {
		t.Fatalf("redelivery changed the stored verdict: %+v vs %+v",
			st.scanUpdates[0].verdict, st.scanUpdates[1].verdict)
	}
}

func TestProcessSafeVerdictSendsNoEmail(t *testing.T) {
	st := newFakeStore()
	emails := &captureEmails{}
	p := newTestPipeline(st, &countingClassifier{verdict: safeVerdict()}, emails)

	owner := &models.User{ID: uuid.New(), Email: "owner@example.com"}
	link := seedLink(st, owner)

	if err := p.Process(context.Background(), models.ScanJob{LinkID: link.ID, URL: link.URL}); err != nil {
		t.Fatal(err)
	}
	if len(emails.jobs) != 0 {
		t.Fatalf("safe verdict enqueued %d emails", len(emails.jobs))
	}
}

func TestProcessMaliciousVerdictAlertsOwner(t *testing.T) {
	st := newFakeStore()
	emails := &captureEmails{}
	p := newTestPipeline(st, &countingClassifier{verdict: maliciousVerdict()}, emails)

	owner := &models.User{ID: uuid.New(), Email: "owner@example.com", Name: "Dana"}
	link := seedLink(st, owner)

	if err := p.Process(context.Background(), models.ScanJob{LinkID: link.ID, URL: link.URL}); err != nil {
		t.Fatal(err)
	}

	if len(emails.jobs) != 1 {
		t.Fatalf("emails = %d, want 1", len(emails.jobs))
	}
	got := emails.jobs[0]
	if got.To != owner.Email {
		t.Fatalf("alert to %q, want %q", got.To, owner.Email)
	}
	if got.UserID == nil || *got.UserID != owner.ID {
		t.Fatalf("alert user id = %v", got.UserID)
	}
	if got.HTML == "" || got.Subject == "" {
		t.Fatal("alert email missing body or subject")
	}
}

func TestProcessNoOwnerNoEmail(t *testing.T) {
	st := newFakeStore()
	emails := &captureEmails{}
	p := newTestPipeline(st, &countingClassifier{verdict: maliciousVerdict()}, emails)

	link := seedLink(st, nil)
	if err := p.Process(context.Background(), models.ScanJob{LinkID: link.ID, URL: link.URL}); err != nil {
		t.Fatal(err)
	}
	if len(emails.jobs) != 0 {
		t.Fatalf("ownerless link enqueued %d emails", len(emails.jobs))
	}
}

func TestProcessAlertFailureDoesNotFailJob(t *testing.T) {
	st := newFakeStore()
	emails := &captureEmails{err: errors.New("broker down")}
	p := newTestPipeline(st, &countingClassifier{verdict: maliciousVerdict()}, emails)

	owner := &models.User{ID: uuid.New(), Email: "owner@example.com"}
	link := seedLink(st, owner)

	if err := p.Process(context.Background(), models.ScanJob{LinkID: link.ID, URL: link.URL}); err != nil {
		t.Fatalf("alert enqueue failure must not fail the scan job: %v", err)
	}
	if len(st.scanUpdates) != 1 {
		t.Fatal("verdict was not persisted")
	}
}

func TestProcessClassifierErrorFailsJob(t *testing.T) {
	st := newFakeStore()
	cls := &countingClassifier{err: errors.New("upstream timeout")}
	p := newTestPipeline(st, cls, &captureEmails{})

	link := seedLink(st, nil)
	if err := p.Process(context.Background(), models.ScanJob{LinkID: link.ID, URL: link.URL}); err == nil {
		t.Fatal("classifier error should surface to the consumer")
	}
	if len(st.scanUpdates) != 0 {
		t.Fatal("verdict persisted despite failed classification")
	}
}
