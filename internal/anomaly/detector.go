package anomaly

import (
	"math"
	"sort"

	"github.com/godilite/evaluation-engine/internal/rating"
	"github.com/godilite/evaluation-engine/internal/sentiment"
	"github.com/godilite/evaluation-engine/internal/stats"
	"github.com/godilite/evaluation-engine/internal/taxonomy"
	"go.uber.org/zap"
)

const (
	scorePlaces      = 4
	confidencePlaces = 4
)

// Detector runs anomaly detection for one taxonomy and parameter set. It keeps no
// state between calls.
type Detector struct {
	params      Params
	categoryIDs []string
	logger      *zap.Logger
}

// NewDetector validates params and builds a Detector whose feature vectors follow the
// category order of tax.
func NewDetector(tax *taxonomy.Taxonomy, params Params, logger *zap.Logger) (*Detector, error) {
	if tax == nil {
		panic("taxonomy must not be nil")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{
		params:      params,
		categoryIDs: tax.CategoryIDs(),
		logger:      logger.Named("anomaly"),
	}, nil
}

type point struct {
	eval    Evaluation
	vector  []float64
	average float64
}

// Detect clusters the population and reports its noise points. Each subject with at
// least MinPopulation evaluations is clustered on its own; evaluations of smaller
// subjects are judged against the whole population. When the whole population is
// below MinPopulation the report is marked insufficient and
// ErrInsufficientPopulation is returned alongside it.
func (d *Detector) Detect(evals []Evaluation) (Report, error) {
	report := Report{
		Anomalies:      []Result{},
		PopulationSize: len(evals),
	}
	if len(evals) < d.params.MinPopulation() {
		report.InsufficientPopulation = true
		return report, ErrInsufficientPopulation
	}

	points := d.canonicalPoints(evals)

	bySubject := make(map[string][]int)
	var subjects []string
	for i, p := range points {
		sid := p.eval.SubjectID
		if _, ok := bySubject[sid]; !ok {
			subjects = append(subjects, sid)
		}
		bySubject[sid] = append(bySubject[sid], i)
	}
	sort.Strings(subjects)

	var fallback []int
	for _, sid := range subjects {
		idx := bySubject[sid]
		if len(idx) < d.params.MinPopulation() {
			fallback = append(fallback, idx...)
			continue
		}
		report.SubjectScopes++
		report.Anomalies = append(report.Anomalies, d.scan(points, idx, idx, ScopeSubject)...)
	}

	if len(fallback) > 0 {
		all := make([]int, len(points))
		for i := range all {
			all[i] = i
		}
		sort.Ints(fallback)
		report.GlobalFallbacks = len(fallback)
		report.Anomalies = append(report.Anomalies, d.scan(points, all, fallback, ScopeGlobal)...)
		d.logger.Debug("judged small subjects against global population",
			zap.Int("evaluations", len(fallback)),
			zap.Int("population", len(points)))
	}

	sort.SliceStable(report.Anomalies, func(i, j int) bool {
		a, b := report.Anomalies[i], report.Anomalies[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.EvaluationID != b.EvaluationID {
			return a.EvaluationID < b.EvaluationID
		}
		return a.SubjectID < b.SubjectID
	})

	return report, nil
}

// scan clusters the points at population and returns results for the noise points
// that are also listed in judged. Both index lists are ascending.
func (d *Detector) scan(points []point, population, judged []int, scope Scope) []Result {
	vectors := make([][]float64, len(population))
	pos := make(map[int]int, len(population))
	for k, i := range population {
		vectors[k] = points[i].vector
		pos[i] = k
	}

	c := dbscan(vectors, len(d.categoryIDs), d.params.Epsilon, d.params.MinPoints, d.params.Workers)

	var out []Result
	for _, i := range judged {
		k := pos[i]
		if !c.isNoise(k) {
			continue
		}
		score := stats.RoundHalfUp(c.nearestCentroidDistance(vectors[k]), scorePlaces)
		out = append(out, d.describe(points[i], score, scope))
	}
	return out
}

func (d *Detector) describe(p point, score float64, scope Scope) Result {
	return Result{
		EvaluationID: p.eval.ID,
		SubjectID:    p.eval.SubjectID,
		Severity:     d.severity(score, p.average),
		Score:        score,
		Confidence:   d.confidence(score),
		Type:         d.anomalyType(p.average, p.eval.CommentPolarity),
		Scope:        scope,
	}
}

func (d *Detector) severity(score, average float64) Severity {
	switch {
	case score >= d.params.HighScore && average <= d.params.LowRatingCutoff:
		return SeverityHigh
	case score >= d.params.MediumScore:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// confidence rises with the score and saturates at 1.
func (d *Detector) confidence(score float64) float64 {
	c := 1 - math.Exp(-score/d.params.ConfidenceScale)
	return stats.RoundHalfUp(stats.Clip(c, 0, 1), confidencePlaces)
}

func (d *Detector) anomalyType(average float64, polarity sentiment.Sentiment) Type {
	switch {
	case average <= d.params.LowRatingCutoff:
		return TypeOutlierLow
	case average >= d.params.HighRatingCutoff && polarity == sentiment.Negative:
		return TypeOutlierHighSuspicious
	default:
		return TypePatternDeviation
	}
}

// canonicalPoints builds feature vectors and orders them by evaluation id, subject id
// and vector so that detection does not depend on input order.
func (d *Detector) canonicalPoints(evals []Evaluation) []point {
	points := make([]point, len(evals))
	for i, e := range evals {
		points[i] = d.toPoint(e)
	}
	sort.SliceStable(points, func(i, j int) bool {
		a, b := points[i], points[j]
		if a.eval.ID != b.eval.ID {
			return a.eval.ID < b.eval.ID
		}
		if a.eval.SubjectID != b.eval.SubjectID {
			return a.eval.SubjectID < b.eval.SubjectID
		}
		for k := range a.vector {
			if a.vector[k] != b.vector[k] {
				return a.vector[k] < b.vector[k]
			}
		}
		return false
	})
	return points
}

// toPoint normalizes each category average to [0, 1]. A category the evaluation has
// no average for takes the evaluation's overall average.
func (d *Detector) toPoint(e Evaluation) point {
	avg := e.Overall
	if avg == 0 && len(e.CategoryAverages) > 0 {
		vals := make([]float64, 0, len(e.CategoryAverages))
		for _, v := range e.CategoryAverages {
			vals = append(vals, v)
		}
		sort.Float64s(vals)
		avg = stats.Mean(vals)
	}

	vec := make([]float64, len(d.categoryIDs))
	for k, cid := range d.categoryIDs {
		v, ok := e.CategoryAverages[cid]
		if !ok {
			v = avg
		}
		vec[k] = stats.Clip(v/rating.MaxRating, 0, 1)
	}
	return point{eval: e, vector: vec, average: avg}
}
