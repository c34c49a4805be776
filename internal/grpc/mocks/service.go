package mocks

import (
	"context"
	"errors"

	"github.com/godilite/evaluation-engine/internal/service"
	"github.com/godilite/evaluation-engine/internal/taxonomy"
)

// MockEvaluationService is a mock implementation of the EvaluationService interface
// for testing the handler layer. It uses function-based mocking for flexibility.
type MockEvaluationService struct {
	TaxonomyFunc                func() *taxonomy.Taxonomy
	ScoreSubmissionFunc         func(sub service.Submission) (service.NormalizedEvaluation, error)
	PreviewDraftFunc            func(sub service.Submission) (service.DraftPreview, error)
	ValidateEvaluationFunc      func(ev service.NormalizedEvaluation) error
	ComputeDashboardMetricsFunc func(evals []service.NormalizedEvaluation) service.DashboardMetrics
	GetDashboardMetricsFunc     func(ctx context.Context, q service.DashboardQuery) (service.DashboardMetrics, error)
}

// Taxonomy implements the EvaluationService interface. It defaults to the built-in taxonomy.
func (m *MockEvaluationService) Taxonomy() *taxonomy.Taxonomy {
	if m.TaxonomyFunc != nil {
		return m.TaxonomyFunc()
	}
	return taxonomy.Default()
}

// ScoreSubmission implements the EvaluationService interface
func (m *MockEvaluationService) ScoreSubmission(sub service.Submission) (service.NormalizedEvaluation, error) {
	if m.ScoreSubmissionFunc != nil {
		return m.ScoreSubmissionFunc(sub)
	}
	return service.NormalizedEvaluation{}, errors.New("ScoreSubmissionFunc not implemented")
}

// PreviewDraft implements the EvaluationService interface
func (m *MockEvaluationService) PreviewDraft(sub service.Submission) (service.DraftPreview, error) {
	if m.PreviewDraftFunc != nil {
		return m.PreviewDraftFunc(sub)
	}
	return service.DraftPreview{}, errors.New("PreviewDraftFunc not implemented")
}

// ValidateEvaluation accepts every evaluation unless ValidateEvaluationFunc is set.
func (m *MockEvaluationService) ValidateEvaluation(ev service.NormalizedEvaluation) error {
	if m.ValidateEvaluationFunc != nil {
		return m.ValidateEvaluationFunc(ev)
	}
	return nil
}

// ComputeDashboardMetrics implements the EvaluationService interface
func (m *MockEvaluationService) ComputeDashboardMetrics(evals []service.NormalizedEvaluation) service.DashboardMetrics {
	if m.ComputeDashboardMetricsFunc != nil {
		return m.ComputeDashboardMetricsFunc(evals)
	}
	return service.DashboardMetrics{}
}

// GetDashboardMetrics implements the EvaluationService interface
func (m *MockEvaluationService) GetDashboardMetrics(ctx context.Context, q service.DashboardQuery) (service.DashboardMetrics, error) {
	if m.GetDashboardMetricsFunc != nil {
		return m.GetDashboardMetricsFunc(ctx, q)
	}
	return service.DashboardMetrics{}, errors.New("GetDashboardMetricsFunc not implemented")
}
