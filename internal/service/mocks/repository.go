package mocks

import (
	"context"
	"errors"
	"time"

	"github.com/godilite/evaluation-engine/internal/repository/models"
)

// MockEvaluationRepository is a mock implementation of the EvaluationRepository interface
// for testing the service layer.
type MockEvaluationRepository struct {
	GetSubmissionsFunc func(ctx context.Context, subjectIDs []string, start, end time.Time) ([]models.StoredSubmission, error)
}

// GetSubmissions implements the EvaluationRepository interface
func (m *MockEvaluationRepository) GetSubmissions(ctx context.Context, subjectIDs []string, start, end time.Time) ([]models.StoredSubmission, error) {
	if m.GetSubmissionsFunc != nil {
		return m.GetSubmissionsFunc(ctx, subjectIDs, start, end)
	}
	return nil, errors.New("GetSubmissionsFunc not implemented")
}
