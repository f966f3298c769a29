package scan

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/wirechat/wirechat/internal/mail"
	"github.com/wirechat/wirechat/internal/metrics"
	"github.com/wirechat/wirechat/internal/models"
	"github.com/wirechat/wirechat/internal/store"
)

// Classifier is the external URL classification collaborator.
type Classifier interface {
	Classify(ctx context.Context, url string) (*models.ScanVerdict, error)
}

// EmailPublisher enqueues the alert email that follows a non-safe verdict.
type EmailPublisher interface {
	PublishEmail(ctx context.Context, job models.EmailJob) error
}

// Pipeline executes one scan job end to end. Every step is an overwrite or a
// naturally deduplicated action, so redelivering the same job is safe.
type Pipeline struct {
	cache      Cache
	store      store.DataStore
	classifier Classifier
	emails     EmailPublisher
	renderer   mail.TemplateRenderer
	logger     zerolog.Logger
}

// NewPipeline wires the pipeline's collaborators.
func NewPipeline(cache Cache, db store.DataStore, classifier Classifier, emails EmailPublisher, renderer mail.TemplateRenderer, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		cache:      cache,
		store:      db,
		classifier: classifier,
		emails:     emails,
		renderer:   renderer,
		logger:     logger.With().Str("component", "scan").Logger(),
	}
}

// Process runs the scan state machine for one job:
// cache check (unless forced) → external scan on miss → persist verdict →
// alert email when the verdict is not safe. A vanished link is a no-op.
func (p *Pipeline) Process(ctx context.Context, job models.ScanJob) error {
	link, err := p.store.GetLink(ctx, job.LinkID)
	if err != nil {
		return err
	}
	if link == nil {
		p.logger.Debug().Str("link_id", job.LinkID.String()).Msg("link gone, skipping scan")
		return nil
	}

	normalized, err := NormalizeURL(job.URL)
	if err != nil {
		return err
	}

	var verdict *models.ScanVerdict
	if !job.Force {
		verdict, err = p.cache.Get(ctx, normalized)
		if err != nil {
			// Cache trouble degrades to a fresh scan, never fails the job.
			p.logger.Warn().Err(err).Msg("verdict cache read failed")
			verdict = nil
		}
	}

	if verdict != nil {
		metrics.ScanCacheHits.Inc()
	} else {
		metrics.ScanCacheMisses.Inc()
		verdict, err = p.classifier.Classify(ctx, normalized)
		if err != nil {
			return err
		}
		if err := p.cache.Put(ctx, normalized, verdict); err != nil {
			p.logger.Warn().Err(err).Msg("verdict cache write failed")
		}
	}

	now := time.Now().UTC()
	if err := p.store.UpdateLinkScan(ctx, link.ID, verdict, now); err != nil {
		return err
	}

	if verdict.Status != models.ScanStatusSafe {
		// Alert failures are contained: the verdict is already persisted and
		// the scan job itself succeeded.
		p.enqueueAlert(ctx, link, verdict)
	}

	return nil
}

func (p *Pipeline) enqueueAlert(ctx context.Context, link *models.Link, verdict *models.ScanVerdict) {
	if link.OwnerID == nil {
		return
	}

	owner, err := p.store.GetUser(ctx, *link.OwnerID)
	if err != nil {
		p.logger.Error().Err(err).Str("link_id", link.ID.String()).Msg("owner lookup failed")
		return
	}
	if owner == nil || owner.Email == "" {
		return
	}

	html, err := p.renderer.Render(mail.TemplateScanAlert, map[string]any{
		"name":      owner.Name,
		"url":       link.URL,
		"status":    string(verdict.Status),
		"reasoning": verdict.Reasoning,
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("alert template render failed")
		return
	}

	job := models.EmailJob{
		UserID:  &owner.ID,
		To:      owner.Email,
		Subject: "Security alert: a link you shared was flagged",
		HTML:    html,
	}
	if err := p.emails.PublishEmail(ctx, job); err != nil {
		p.logger.Error().Err(err).
			Str("link_id", link.ID.String()).
			Str("status", string(verdict.Status)).
			Msg("alert email enqueue failed")
	}
}
