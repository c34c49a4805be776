// Package sentiment classifies averages into the coarse positive/neutral/negative
// sentiment, the finer display performance label, and free-text comment polarity.
package sentiment

import (
	"errors"
	"fmt"
	"math"

	"github.com/godilite/evaluation-engine/internal/rating"
	"github.com/godilite/evaluation-engine/internal/stats"
)

type Sentiment string

const (
	Positive Sentiment = "positive"
	Neutral  Sentiment = "neutral"
	Negative Sentiment = "negative"
)

// rank orders sentiments from negative (0) to positive (2). Unknown values rank -1.
func (s Sentiment) rank() int {
	switch s {
	case Negative:
		return 0
	case Neutral:
		return 1
	case Positive:
		return 2
	default:
		return -1
	}
}

var ErrInvalidThresholds = errors.New("invalid sentiment thresholds")

// Thresholds partition the rating scale: average >= Positive is positive,
// [Neutral, Positive) is neutral, below Neutral is negative.
type Thresholds struct {
	Positive float64 `json:"positive"`
	Neutral  float64 `json:"neutral"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Positive: 3.5, Neutral: 2.5}
}

// Validate checks the thresholds lie on the rating scale and do not overlap.
func (t Thresholds) Validate() error {
	lo, hi := float64(rating.MinRating), float64(rating.MaxRating)
	if math.IsNaN(t.Positive) || math.IsNaN(t.Neutral) {
		return fmt.Errorf("%w: NaN threshold", ErrInvalidThresholds)
	}
	if t.Neutral < lo || t.Positive > hi {
		return fmt.Errorf("%w: thresholds must lie within [%d, %d]", ErrInvalidThresholds, rating.MinRating, rating.MaxRating)
	}
	if t.Neutral > t.Positive {
		return fmt.Errorf("%w: neutral %.2f above positive %.2f", ErrInvalidThresholds, t.Neutral, t.Positive)
	}
	return nil
}

// Detailed is the sentiment of one evaluation together with how consistent its
// ratings were. RatingConfidence is dispersion based and unrelated to the clustering
// confidence reported by anomaly detection.
type Detailed struct {
	Sentiment        Sentiment `json:"sentiment"`
	RatingConfidence int       `json:"ratingConfidence"`
	Average          float64   `json:"average"`
	Consistency      float64   `json:"consistency"`
}

// Classifier applies a fixed set of thresholds. It is stateless after construction.
type Classifier struct {
	thresholds Thresholds
}

// NewClassifier validates t and returns a Classifier using it.
func NewClassifier(t Thresholds) (*Classifier, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Classifier{thresholds: t}, nil
}

// Classify maps an average to a sentiment. It is monotonic in avg.
func (c *Classifier) Classify(avg float64) Sentiment {
	switch {
	case avg >= c.thresholds.Positive:
		return Positive
	case avg >= c.thresholds.Neutral:
		return Neutral
	default:
		return Negative
	}
}

// Detailed classifies the mean of r and derives a confidence from the spread of the
// ratings: consistency = max(0, 1 - stddev/2), confidence = round(consistency * 100).
func (c *Classifier) Detailed(r rating.Ratings) Detailed {
	values := make([]float64, 0, len(r))
	for _, v := range r.Values() {
		if v == rating.Unanswered {
			continue
		}
		values = append(values, float64(v))
	}
	if len(values) == 0 {
		return Detailed{Sentiment: Neutral}
	}

	avg := stats.Mean(values)
	consistency := math.Max(0, 1-stats.StdDev(values)/2)

	return Detailed{
		Sentiment:        c.Classify(avg),
		RatingConfidence: int(math.Round(consistency * 100)),
		Average:          stats.RoundHalfUp(avg, 2),
		Consistency:      stats.RoundHalfUp(consistency, 2),
	}
}
