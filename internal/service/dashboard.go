package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/godilite/evaluation-engine/internal/aggregate"
	"github.com/godilite/evaluation-engine/internal/anomaly"
	"github.com/godilite/evaluation-engine/internal/sentiment"
	"go.uber.org/zap"
)

// ComputeDashboardMetrics summarizes evals and runs anomaly detection over them.
// Sentiment is re-derived from each overall average with the configured thresholds.
// A population too small to cluster yields InsufficientPopulation and no anomalies.
func (s *EvaluationService) ComputeDashboardMetrics(evals []NormalizedEvaluation) DashboardMetrics {
	results := make([]aggregate.Result, len(evals))
	inputs := make([]anomaly.Evaluation, len(evals))

	sentiments := map[sentiment.Sentiment]int{
		sentiment.Positive: 0,
		sentiment.Neutral:  0,
		sentiment.Negative: 0,
	}
	performance := make(map[string]int, len(sentiment.PerformanceLabels()))
	for _, label := range sentiment.PerformanceLabels() {
		performance[label] = 0
	}

	for i, ev := range evals {
		results[i] = toAggregateResult(ev)
		inputs[i] = toAnomalyInput(ev)
		sentiments[s.classifier.Classify(ev.OverallAverage)]++
		performance[sentiment.PerformanceLabel(ev.OverallAverage).Label]++
	}

	summary := s.aggregator.Summarize(results)
	report, err := s.detector.Detect(inputs)
	if err != nil && !errors.Is(err, anomaly.ErrInsufficientPopulation) {
		s.logger.Error("anomaly detection failed", zap.Error(err))
	}

	m := DashboardMetrics{
		CategoryAverages:        summary.Categories,
		OverallAverage:          summary.OverallAverage,
		SentimentDistribution:   sentiments,
		PerformanceDistribution: performance,
		Anomalies:               report.Anomalies,
		InsufficientPopulation:  report.InsufficientPopulation,
		EvaluationCount:         len(evals),
	}
	if m.Anomalies == nil {
		m.Anomalies = []anomaly.Result{}
	}

	s.logger.Info("computed dashboard metrics",
		zap.Int("evaluations", m.EvaluationCount),
		zap.Int("anomalies", len(m.Anomalies)),
		zap.Bool("insufficientPopulation", m.InsufficientPopulation))

	return m
}

// GetDashboardMetrics reads stored submissions for the query window, scores them again
// and computes dashboard metrics. Submissions that no longer score under the active
// taxonomy are skipped and counted.
func (s *EvaluationService) GetDashboardMetrics(ctx context.Context, q DashboardQuery) (DashboardMetrics, error) {
	if s.storage == nil {
		return DashboardMetrics{}, fmt.Errorf("%w: no evaluation repository configured", ErrStorageFailure)
	}

	dbCtx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	rows, err := s.storage.GetSubmissions(dbCtx, q.SubjectIDs, q.Start, q.End)
	if err != nil {
		return DashboardMetrics{}, fmt.Errorf("%w: %v", ErrStorageFailure, err)
	}
	if len(rows) == 0 {
		return DashboardMetrics{}, ErrNoEvaluations
	}

	evals := make([]NormalizedEvaluation, 0, len(rows))
	var skipped int
	for _, row := range rows {
		ev, err := s.ScoreSubmission(Submission{
			EvaluationID: row.EvaluationID,
			SubjectID:    row.SubjectID,
			RaterID:      row.RaterID,
			Ratings:      row.Ratings,
			Comment:      row.Comment,
			SubmittedAt:  row.SubmittedAt,
		})
		if err != nil {
			skipped++
			s.logger.Warn("skipping stored submission",
				zap.String("evaluationId", row.EvaluationID),
				zap.Error(err))
			continue
		}
		evals = append(evals, ev)
	}
	if len(evals) == 0 {
		return DashboardMetrics{}, fmt.Errorf("%w: %d stored submissions could not be scored", ErrNoEvaluations, skipped)
	}

	s.logger.Info("fetched stored submissions",
		zap.Strings("subjects", q.SubjectIDs),
		zap.Time("start", q.Start),
		zap.Time("end", q.End),
		zap.Int("scored", len(evals)),
		zap.Int("skipped", skipped))

	m := s.ComputeDashboardMetrics(evals)
	m.Skipped = skipped
	return m, nil
}

func toAggregateResult(ev NormalizedEvaluation) aggregate.Result {
	count := ev.RatingCount
	if count == 0 {
		for _, c := range ev.Categories {
			count += c.Count
		}
	}
	return aggregate.Result{
		Categories:  ev.Categories,
		Overall:     ev.OverallAverage,
		RatingCount: count,
	}
}

func toAnomalyInput(ev NormalizedEvaluation) anomaly.Evaluation {
	averages := make(map[string]float64, len(ev.Categories))
	for id, c := range ev.Categories {
		if c.Count == 0 {
			continue
		}
		averages[id] = c.Average
	}

	polarity := ev.CommentPolarity
	if polarity == "" {
		polarity = sentiment.CommentPolarity(ev.Comment)
	}

	return anomaly.Evaluation{
		ID:               ev.EvaluationID,
		SubjectID:        ev.SubjectID,
		CategoryAverages: averages,
		Overall:          ev.OverallAverage,
		CommentPolarity:  polarity,
	}
}
