package service

import (
	"time"

	"github.com/godilite/evaluation-engine/internal/aggregate"
	"github.com/godilite/evaluation-engine/internal/anomaly"
	"github.com/godilite/evaluation-engine/internal/rating"
	"github.com/godilite/evaluation-engine/internal/sentiment"
)

// Submission is the upstream payload of one filled-in evaluation form. Ratings are
// keyed either by current question ids or by legacy composite names, never both.
type Submission struct {
	EvaluationID string         `json:"evaluationId,omitempty"`
	SubjectID    string         `json:"subjectId"`
	RaterID      string         `json:"raterId"`
	Ratings      map[string]int `json:"ratings"`
	Comment      string         `json:"comment,omitempty"`
	SubmittedAt  time.Time      `json:"submittedAt"`
}

// NormalizedEvaluation is a scored submission. It is never edited; a correction is
// scored again from its ratings.
type NormalizedEvaluation struct {
	EvaluationID     string                             `json:"evaluationId"`
	SubjectID        string                             `json:"subjectId"`
	RaterID          string                             `json:"raterId"`
	TaxonomyVersion  string                             `json:"taxonomyVersion"`
	Source           rating.PayloadKind                 `json:"source"`
	Categories       map[string]aggregate.CategoryScore `json:"categories"`
	OverallAverage   float64                            `json:"overallAverage"`
	RatingCount      int                                `json:"ratingCount"`
	Sentiment        sentiment.Sentiment                `json:"sentiment"`
	RatingConfidence int                                `json:"ratingConfidence"`
	Performance      sentiment.Performance              `json:"performance"`
	Comment          string                             `json:"comment,omitempty"`
	CommentPolarity  sentiment.Sentiment                `json:"commentPolarity"`
	SubmittedAt      time.Time                          `json:"submittedAt"`
}

// DraftPreview is the live rollup of an in-progress form.
type DraftPreview struct {
	Categories     map[string]aggregate.CategoryScore `json:"categories"`
	OverallAverage float64                            `json:"overallAverage"`
	Answered       int                                `json:"answered"`
	Total          int                                `json:"total"`
	Progress       int                                `json:"progress"`
	Missing        []string                           `json:"missing"`
	Complete       bool                               `json:"complete"`
	Sentiment      sentiment.Sentiment                `json:"sentiment,omitempty"`
	Performance    *sentiment.Performance             `json:"performance,omitempty"`
}

// DashboardMetrics summarizes a population of evaluations.
type DashboardMetrics struct {
	CategoryAverages        map[string]aggregate.CategorySummary `json:"categoryAverages"`
	OverallAverage          float64                              `json:"overallAverage"`
	SentimentDistribution   map[sentiment.Sentiment]int          `json:"sentimentDistribution"`
	PerformanceDistribution map[string]int                       `json:"performanceDistribution"`
	Anomalies               []anomaly.Result                     `json:"anomalies"`
	InsufficientPopulation  bool                                 `json:"insufficientPopulation"`
	EvaluationCount         int                                  `json:"evaluationCount"`

	// Skipped counts stored submissions that no longer score under the active taxonomy.
	Skipped int `json:"skipped,omitempty"`
}

// DashboardQuery selects stored submissions. An empty SubjectIDs selects every subject.
type DashboardQuery struct {
	SubjectIDs []string  `json:"subjectIds"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
}

// EngineOptions tune classification and anomaly detection.
type EngineOptions struct {
	Thresholds sentiment.Thresholds
	Anomaly    anomaly.Params
}

func DefaultEngineOptions() EngineOptions {
	return EngineOptions{
		Thresholds: sentiment.DefaultThresholds(),
		Anomaly:    anomaly.DefaultParams(),
	}
}
