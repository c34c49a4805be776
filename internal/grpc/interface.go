package grpc

import (
	"context"
	"time"

	"github.com/godilite/evaluation-engine/internal/service"
	"github.com/godilite/evaluation-engine/internal/taxonomy"
)

// Cacher defines the interface for cache operations.
type Cacher interface {
	Close() error
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
}

type EvaluationService interface {
	Taxonomy() *taxonomy.Taxonomy
	ScoreSubmission(sub service.Submission) (service.NormalizedEvaluation, error)
	PreviewDraft(sub service.Submission) (service.DraftPreview, error)
	ComputeDashboardMetrics(evals []service.NormalizedEvaluation) service.DashboardMetrics
	GetDashboardMetrics(ctx context.Context, q service.DashboardQuery) (service.DashboardMetrics, error)
}
