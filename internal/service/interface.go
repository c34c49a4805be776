package service

import (
	"context"
	"time"

	"github.com/godilite/evaluation-engine/internal/repository/models"
)

// EvaluationRepository is the read-only source of stored submissions.
type EvaluationRepository interface {
	GetSubmissions(ctx context.Context, subjectIDs []string, start, end time.Time) ([]models.StoredSubmission, error)
}
