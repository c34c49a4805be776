// Package anomaly flags evaluations whose category rating pattern sits outside the
// dense regions of their peer population, using density-based clustering (DBSCAN)
// over per-category feature vectors.
package anomaly

import (
	"errors"
	"fmt"

	"github.com/godilite/evaluation-engine/internal/rating"
	"github.com/godilite/evaluation-engine/internal/sentiment"
)

var (
	ErrInsufficientPopulation = errors.New("insufficient population for anomaly detection")
	ErrInvalidParams          = errors.New("invalid anomaly detection parameters")
)

type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

type Type string

const (
	TypeOutlierLow            Type = "OutlierLow"
	TypeOutlierHighSuspicious Type = "OutlierHighSuspicious"
	TypePatternDeviation      Type = "PatternDeviation"
)

// Scope is the reference population an evaluation was judged against.
type Scope string

const (
	ScopeSubject Scope = "subject"
	ScopeGlobal  Scope = "global"
)

// Evaluation is one detector input. CategoryAverages are on the 1-4 rating scale;
// Overall is the evaluation's overall average.
type Evaluation struct {
	ID               string
	SubjectID        string
	CategoryAverages map[string]float64
	Overall          float64
	CommentPolarity  sentiment.Sentiment
}

// Result describes one flagged evaluation. Confidence is derived from the outlier
// score and is unrelated to the rating-dispersion confidence of sentiment analysis.
type Result struct {
	EvaluationID string   `json:"evaluationId"`
	SubjectID    string   `json:"subjectId"`
	Severity     Severity `json:"severity"`
	Score        float64  `json:"score"`
	Confidence   float64  `json:"confidence"`
	Type         Type     `json:"type"`
	Scope        Scope    `json:"scope"`
}

// Report is the output of one detection run.
type Report struct {
	Anomalies              []Result `json:"anomalies"`
	InsufficientPopulation bool     `json:"insufficientPopulation"`
	PopulationSize         int      `json:"populationSize"`
	SubjectScopes          int      `json:"subjectScopes"`
	GlobalFallbacks        int      `json:"globalFallbacks"`
}

// Params tune the detector. Distances are measured between feature vectors whose
// components are category averages divided by the top of the rating scale, so
// Epsilon and the score thresholds live in [0, 1]-per-dimension units.
type Params struct {
	Epsilon          float64 `json:"epsilon"`
	MinPoints        int     `json:"minPoints"`
	HighScore        float64 `json:"highScore"`
	MediumScore      float64 `json:"mediumScore"`
	LowRatingCutoff  float64 `json:"lowRatingCutoff"`
	HighRatingCutoff float64 `json:"highRatingCutoff"`
	ConfidenceScale  float64 `json:"confidenceScale"`

	// Workers bounds the goroutines used for neighbor search. Zero means GOMAXPROCS.
	Workers int `json:"-"`
}

func DefaultParams() Params {
	return Params{
		Epsilon:          0.15,
		MinPoints:        4,
		HighScore:        0.5,
		MediumScore:      0.25,
		LowRatingCutoff:  2.0,
		HighRatingCutoff: 3.5,
		ConfidenceScale:  0.5,
	}
}

// MinPopulation is the smallest population clustering can run on.
func (p Params) MinPopulation() int { return p.MinPoints + 1 }

func (p Params) Validate() error {
	lo, hi := float64(rating.MinRating), float64(rating.MaxRating)
	switch {
	case p.Epsilon <= 0:
		return fmt.Errorf("%w: epsilon must be positive", ErrInvalidParams)
	case p.MinPoints < 1:
		return fmt.Errorf("%w: minPoints must be at least 1", ErrInvalidParams)
	case p.MediumScore < 0 || p.HighScore < p.MediumScore:
		return fmt.Errorf("%w: need 0 <= mediumScore <= highScore", ErrInvalidParams)
	case p.LowRatingCutoff < lo || p.LowRatingCutoff > hi:
		return fmt.Errorf("%w: lowRatingCutoff outside [%d, %d]", ErrInvalidParams, rating.MinRating, rating.MaxRating)
	case p.HighRatingCutoff < lo || p.HighRatingCutoff > hi:
		return fmt.Errorf("%w: highRatingCutoff outside [%d, %d]", ErrInvalidParams, rating.MinRating, rating.MaxRating)
	case p.HighRatingCutoff <= p.LowRatingCutoff:
		return fmt.Errorf("%w: highRatingCutoff must exceed lowRatingCutoff", ErrInvalidParams)
	case p.ConfidenceScale <= 0:
		return fmt.Errorf("%w: confidenceScale must be positive", ErrInvalidParams)
	case p.Workers < 0:
		return fmt.Errorf("%w: workers must not be negative", ErrInvalidParams)
	}
	return nil
}
