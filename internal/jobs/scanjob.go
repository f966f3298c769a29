package jobs

import (
	"context"
	"encoding/json"

	"github.com/wirechat/wirechat/internal/models"
	"github.com/wirechat/wirechat/internal/scan"
)

// ScanConsumer handles scan.url jobs by running the scan pipeline.
type ScanConsumer struct {
	pipeline *scan.Pipeline
}

// NewScanConsumer creates the scan.url handler.
func NewScanConsumer(pipeline *scan.Pipeline) *ScanConsumer {
	return &ScanConsumer{pipeline: pipeline}
}

// Handle processes one scan.url job body.
func (c *ScanConsumer) Handle(ctx context.Context, body []byte) error {
	var job models.ScanJob
	if err := json.Unmarshal(body, &job); err != nil {
		return err
	}
	if err := job.Validate(); err != nil {
		return err
	}
	return c.pipeline.Process(ctx, job)
}
