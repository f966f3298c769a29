package scan

import (
	"context"

	"github.com/wirechat/wirechat/internal/models"
)

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(ctx context.Context, url string) (*models.ScanVerdict, error)

func (f ClassifierFunc) Classify(ctx context.Context, url string) (*models.ScanVerdict, error) {
	return f(ctx, url)
}

// FixedClassifier returns the same verdict for every URL. Development
// deployments run with this until a real classification service is wired in.
type FixedClassifier struct {
	Verdict models.ScanVerdict
}

func (c *FixedClassifier) Classify(context.Context, string) (*models.ScanVerdict, error) {
	v := c.Verdict
	return &v, nil
}
