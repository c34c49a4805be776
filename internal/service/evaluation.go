package service

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/godilite/evaluation-engine/internal/aggregate"
	"github.com/godilite/evaluation-engine/internal/anomaly"
	"github.com/godilite/evaluation-engine/internal/rating"
	"github.com/godilite/evaluation-engine/internal/sentiment"
	"github.com/godilite/evaluation-engine/internal/taxonomy"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	dbTimeout = 2 * time.Second
)

var (
	ErrNoEvaluations     = errors.New("no evaluations found")
	ErrStorageFailure    = errors.New("storage failure")
	ErrInvalidSubmission = errors.New("invalid submission")
	ErrInvalidEvaluation = errors.New("invalid evaluation")
)

// EvaluationService scores submissions and computes dashboard metrics for one
// taxonomy. Every method other than GetDashboardMetrics is pure and safe for
// concurrent use.
type EvaluationService struct {
	tax        *taxonomy.Taxonomy
	normalizer *rating.Normalizer
	aggregator *aggregate.Aggregator
	classifier *sentiment.Classifier
	detector   *anomaly.Detector

	storage EvaluationRepository
	logger  *zap.Logger
	now     func() time.Time
	newID   func() string
}

type Option func(*EvaluationService)

// WithStorage sets the repository GetDashboardMetrics reads from.
func WithStorage(storage EvaluationRepository) Option {
	return func(s *EvaluationService) {
		s.storage = storage
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *EvaluationService) {
		s.now = now
	}
}

func WithIDGenerator(newID func() string) Option {
	return func(s *EvaluationService) {
		s.newID = newID
	}
}

// NewEvaluationService creates a new EvaluationService instance.
func NewEvaluationService(tax *taxonomy.Taxonomy, opts EngineOptions, logger *zap.Logger, options ...Option) (*EvaluationService, error) {
	if tax == nil {
		panic("taxonomy must not be nil")
	}
	if logger == nil {
		l, _ := zap.NewProduction()
		logger = l
	}

	classifier, err := sentiment.NewClassifier(opts.Thresholds)
	if err != nil {
		return nil, err
	}
	detector, err := anomaly.NewDetector(tax, opts.Anomaly, logger)
	if err != nil {
		return nil, err
	}

	s := &EvaluationService{
		tax:        tax,
		normalizer: rating.NewNormalizer(tax),
		aggregator: aggregate.NewAggregator(tax),
		classifier: classifier,
		detector:   detector,
		logger:     logger,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

func (s *EvaluationService) Taxonomy() *taxonomy.Taxonomy { return s.tax }

// ScoreSubmission validates a complete submission and derives its category averages,
// overall average, sentiment and comment polarity.
func (s *EvaluationService) ScoreSubmission(sub Submission) (NormalizedEvaluation, error) {
	if sub.SubjectID == "" {
		return NormalizedEvaluation{}, fmt.Errorf("%w: subjectId is required", ErrInvalidSubmission)
	}

	payload, err := s.normalizer.Resolve(sub.Ratings)
	if err != nil {
		return NormalizedEvaluation{}, err
	}
	ratings, err := s.normalizer.Normalize(payload)
	if err != nil {
		return NormalizedEvaluation{}, err
	}

	agg := s.aggregator.Aggregate(ratings)
	detail := s.classifier.Detailed(ratings)

	id := sub.EvaluationID
	if id == "" {
		id = s.newID()
	}
	submittedAt := sub.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = s.now()
	}

	ev := NormalizedEvaluation{
		EvaluationID:     id,
		SubjectID:        sub.SubjectID,
		RaterID:          sub.RaterID,
		TaxonomyVersion:  s.tax.Version(),
		Source:           payload.Kind(),
		Categories:       agg.Categories,
		OverallAverage:   agg.Overall,
		RatingCount:      agg.RatingCount,
		Sentiment:        s.classifier.Classify(agg.Overall),
		RatingConfidence: detail.RatingConfidence,
		Performance:      sentiment.PerformanceLabel(agg.Overall),
		Comment:          sub.Comment,
		CommentPolarity:  sentiment.CommentPolarity(sub.Comment),
		SubmittedAt:      submittedAt.UTC(),
	}

	s.logger.Debug("scored submission",
		zap.String("evaluationId", ev.EvaluationID),
		zap.String("subjectId", ev.SubjectID),
		zap.String("source", string(ev.Source)),
		zap.Float64("overall", ev.OverallAverage),
		zap.String("sentiment", string(ev.Sentiment)))

	return ev, nil
}

// ValidateEvaluation checks an already scored evaluation supplied by a caller against
// the taxonomy. Category ids must exist, every average and the overall must lie in the
// rating scale, and a category count cannot exceed the category's question count.
func (s *EvaluationService) ValidateEvaluation(ev NormalizedEvaluation) error {
	if ev.EvaluationID == "" {
		return fmt.Errorf("%w: evaluationId is required", ErrInvalidEvaluation)
	}
	if ev.SubjectID == "" {
		return fmt.Errorf("%w: evaluation %s: subjectId is required", ErrInvalidEvaluation, ev.EvaluationID)
	}
	if ev.TaxonomyVersion != "" && ev.TaxonomyVersion != s.tax.Version() {
		return fmt.Errorf("%w: evaluation %s: taxonomy version %q, want %q",
			ErrInvalidEvaluation, ev.EvaluationID, ev.TaxonomyVersion, s.tax.Version())
	}
	if len(ev.Categories) == 0 {
		return fmt.Errorf("%w: evaluation %s: no category scores", ErrInvalidEvaluation, ev.EvaluationID)
	}

	var count int
	for _, id := range sortedCategoryIDs(ev.Categories) {
		cs := ev.Categories[id]
		c, ok := s.tax.Category(id)
		if !ok {
			return fmt.Errorf("%w: evaluation %s: unknown category %q", ErrInvalidEvaluation, ev.EvaluationID, id)
		}
		if !inScale(cs.Average) {
			return fmt.Errorf("%w: evaluation %s: category %q average %v outside [%d, %d]",
				ErrInvalidEvaluation, ev.EvaluationID, id, cs.Average, rating.MinRating, rating.MaxRating)
		}
		if cs.Count < 1 || cs.Count > len(c.QuestionIDs) {
			return fmt.Errorf("%w: evaluation %s: category %q count %d outside [1, %d]",
				ErrInvalidEvaluation, ev.EvaluationID, id, cs.Count, len(c.QuestionIDs))
		}
		count += cs.Count
	}

	if !inScale(ev.OverallAverage) {
		return fmt.Errorf("%w: evaluation %s: overall average %v outside [%d, %d]",
			ErrInvalidEvaluation, ev.EvaluationID, ev.OverallAverage, rating.MinRating, rating.MaxRating)
	}
	if ev.RatingCount != 0 && ev.RatingCount != count {
		return fmt.Errorf("%w: evaluation %s: ratingCount %d does not match category counts %d",
			ErrInvalidEvaluation, ev.EvaluationID, ev.RatingCount, count)
	}
	return nil
}

func inScale(v float64) bool {
	return v >= rating.MinRating && v <= rating.MaxRating
}

func sortedCategoryIDs(m map[string]aggregate.CategoryScore) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PreviewDraft aggregates whatever has been answered so far. Unlike ScoreSubmission
// it accepts missing answers and reports them instead.
func (s *EvaluationService) PreviewDraft(sub Submission) (DraftPreview, error) {
	payload, err := s.normalizer.Resolve(sub.Ratings)
	if err != nil {
		return DraftPreview{}, err
	}
	ratings, err := s.normalizer.NormalizeDraft(payload)
	if err != nil {
		return DraftPreview{}, err
	}

	agg := s.aggregator.Aggregate(ratings)
	missing := s.normalizer.Missing(ratings)
	if missing == nil {
		missing = []string{}
	}
	total := s.tax.QuestionCount()
	answered := total - len(missing)

	preview := DraftPreview{
		Categories:     agg.Categories,
		OverallAverage: agg.Overall,
		Answered:       answered,
		Total:          total,
		Progress:       progress(answered, total),
		Missing:        missing,
		Complete:       len(missing) == 0,
	}
	if answered > 0 {
		perf := sentiment.PerformanceLabel(agg.Overall)
		preview.Sentiment = s.classifier.Classify(agg.Overall)
		preview.Performance = &perf
	}
	return preview, nil
}

// progress is the answered share as a whole percentage.
func progress(answered, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(answered) * 100 / float64(total)))
}
