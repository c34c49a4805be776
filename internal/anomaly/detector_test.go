package anomaly

import (
	"fmt"
	"math"
	"math/rand"
	"testing"

	"github.com/godilite/evaluation-engine/internal/sentiment"
	"github.com/godilite/evaluation-engine/internal/taxonomy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var categoryOrder = []string{
	taxonomy.CategoryInstruction,
	taxonomy.CategoryContent,
	taxonomy.CategoryEngagement,
	taxonomy.CategoryAssessment,
}

func evalWith(id, subject string, averages [4]float64, polarity sentiment.Sentiment) Evaluation {
	cats := make(map[string]float64, 4)
	var sum float64
	for k, cid := range categoryOrder {
		cats[cid] = averages[k]
		sum += averages[k]
	}
	return Evaluation{
		ID:               id,
		SubjectID:        subject,
		CategoryAverages: cats,
		Overall:          sum / 4,
		CommentPolarity:  polarity,
	}
}

func flat(id, subject string, v float64) Evaluation {
	return evalWith(id, subject, [4]float64{v, v, v, v}, sentiment.Neutral)
}

// tightCluster returns n evaluations whose category averages stay within 3.4..3.6.
func tightCluster(prefix, subject string, n int) []Evaluation {
	out := make([]Evaluation, 0, n)
	for i := 0; i < n; i++ {
		var v [4]float64
		for k := range v {
			v[k] = 3.5 + 0.05*float64((i+k)%5-2)
		}
		out = append(out, evalWith(fmt.Sprintf("%s-%02d", prefix, i), subject, v, sentiment.Positive))
	}
	return out
}

func newDetector(t *testing.T, mutate func(*Params)) *Detector {
	t.Helper()
	p := DefaultParams()
	if mutate != nil {
		mutate(&p)
	}
	d, err := NewDetector(taxonomy.Default(), p, zaptest.NewLogger(t))
	require.NoError(t, err)
	return d
}

func TestNewDetector(t *testing.T) {
	t.Run("nil taxonomy panics", func(t *testing.T) {
		assert.Panics(t, func() {
			_, _ = NewDetector(nil, DefaultParams(), nil)
		})
	})

	t.Run("nil logger gets default", func(t *testing.T) {
		d, err := NewDetector(taxonomy.Default(), DefaultParams(), nil)
		require.NoError(t, err)
		assert.NotNil(t, d.logger)
		assert.Equal(t, DefaultParams(), d.params)
	})

	invalid := map[string]func(*Params){
		"zero epsilon":               func(p *Params) { p.Epsilon = 0 },
		"zero minPoints":             func(p *Params) { p.MinPoints = 0 },
		"medium above high":          func(p *Params) { p.MediumScore = 0.9 },
		"negative medium":            func(p *Params) { p.MediumScore = -0.1 },
		"low cutoff off scale":       func(p *Params) { p.LowRatingCutoff = 0.5 },
		"high cutoff off scale":      func(p *Params) { p.HighRatingCutoff = 4.5 },
		"high cutoff below low":      func(p *Params) { p.HighRatingCutoff = 1.5 },
		"non-positive conf scale":    func(p *Params) { p.ConfidenceScale = 0 },
		"negative number of workers": func(p *Params) { p.Workers = -1 },
	}
	for name, mutate := range invalid {
		t.Run(name, func(t *testing.T) {
			p := DefaultParams()
			mutate(&p)
			d, err := NewDetector(taxonomy.Default(), p, nil)
			assert.ErrorIs(t, err, ErrInvalidParams)
			assert.Nil(t, d)
		})
	}
}

func TestDetect_IsolatedLowEvaluation(t *testing.T) {
	d := newDetector(t, nil)

	population := tightCluster("ev", "course-1", 20)
	population = append(population, flat("ev-low", "course-1", 1.0))

	report, err := d.Detect(population)
	require.NoError(t, err)

	assert.False(t, report.InsufficientPopulation)
	assert.Equal(t, 21, report.PopulationSize)
	assert.Equal(t, 1, report.SubjectScopes)
	assert.Equal(t, 0, report.GlobalFallbacks)

	require.Len(t, report.Anomalies, 1)
	a := report.Anomalies[0]
	assert.Equal(t, "ev-low", a.EvaluationID)
	assert.Equal(t, "course-1", a.SubjectID)
	assert.Equal(t, SeverityHigh, a.Severity)
	assert.Equal(t, TypeOutlierLow, a.Type)
	assert.Equal(t, ScopeSubject, a.Scope)
	assert.InDelta(t, 1.25, a.Score, 0.01)
	assert.Greater(t, a.Confidence, 0.9)
	assert.LessOrEqual(t, a.Confidence, 1.0)
}

func TestDetect_InsufficientPopulation(t *testing.T) {
	d := newDetector(t, func(p *Params) { p.MinPoints = 5 })

	report, err := d.Detect([]Evaluation{
		flat("a", "s", 3.5),
		flat("b", "s", 1.0),
		flat("c", "s", 3.0),
	})

	assert.ErrorIs(t, err, ErrInsufficientPopulation)
	assert.True(t, report.InsufficientPopulation)
	assert.NotNil(t, report.Anomalies)
	assert.Empty(t, report.Anomalies)
	assert.Equal(t, 3, report.PopulationSize)

	t.Run("exactly minPoints+1 is enough", func(t *testing.T) {
		evals := make([]Evaluation, 6)
		for i := range evals {
			evals[i] = flat(fmt.Sprintf("e%d", i), "s", 3.0)
		}
		report, err := d.Detect(evals)
		require.NoError(t, err)
		assert.False(t, report.InsufficientPopulation)
		assert.Empty(t, report.Anomalies)
	})
}

func TestDetect_Deterministic(t *testing.T) {
	population := tightCluster("ev", "course-1", 15)
	population = append(population,
		flat("low", "course-1", 1.25),
		evalWith("odd", "course-1", [4]float64{4, 4, 2, 2}, sentiment.Neutral),
		evalWith("small-a", "course-2", [4]float64{3.5, 3.5, 3.5, 3.5}, sentiment.Neutral),
		evalWith("small-b", "course-2", [4]float64{1, 2, 1, 2}, sentiment.Negative),
	)

	first, err := newDetector(t, nil).Detect(population)
	require.NoError(t, err)
	require.NotEmpty(t, first.Anomalies)

	rng := rand.New(rand.NewSource(7))
	for run := 0; run < 10; run++ {
		shuffled := append([]Evaluation(nil), population...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		workers := 1 + run%4
		again, err := newDetector(t, func(p *Params) { p.Workers = workers }).Detect(shuffled)
		require.NoError(t, err)
		assert.Equal(t, first, again, "run %d with %d workers", run, workers)
	}
}

func TestDetect_SeverityAndType(t *testing.T) {
	d := newDetector(t, nil)

	t.Run("far but not low rated is medium pattern deviation", func(t *testing.T) {
		population := make([]Evaluation, 0, 11)
		for i := 0; i < 10; i++ {
			population = append(population, flat(fmt.Sprintf("c%d", i), "s", 3.5))
		}
		population = append(population, flat("mid", "s", 2.5))

		report, err := d.Detect(population)
		require.NoError(t, err)
		require.Len(t, report.Anomalies, 1)

		a := report.Anomalies[0]
		assert.Equal(t, "mid", a.EvaluationID)
		assert.InDelta(t, 0.5, a.Score, 1e-9)
		assert.Equal(t, SeverityMedium, a.Severity)
		assert.Equal(t, TypePatternDeviation, a.Type)
	})

	t.Run("slightly off pattern is low severity", func(t *testing.T) {
		population := make([]Evaluation, 0, 11)
		for i := 0; i < 10; i++ {
			population = append(population, flat(fmt.Sprintf("c%d", i), "s", 3.5))
		}
		population = append(population, evalWith("dip", "s", [4]float64{3.5, 3.5, 3.5, 2.7}, sentiment.Neutral))

		report, err := d.Detect(population)
		require.NoError(t, err)
		require.Len(t, report.Anomalies, 1)

		a := report.Anomalies[0]
		assert.InDelta(t, 0.2, a.Score, 1e-9)
		assert.Equal(t, SeverityLow, a.Severity)
		assert.Equal(t, TypePatternDeviation, a.Type)
		assert.Less(t, a.Confidence, 0.5)
	})

	t.Run("high ratings contradicted by comment are suspicious", func(t *testing.T) {
		population := make([]Evaluation, 0, 12)
		for i := 0; i < 10; i++ {
			population = append(population, flat(fmt.Sprintf("c%d", i), "s", 2.5))
		}
		population = append(population,
			evalWith("glowing-but-angry", "s", [4]float64{4, 4, 4, 4}, sentiment.Negative),
			evalWith("glowing", "s", [4]float64{4, 4, 4, 3.75}, sentiment.Positive),
		)

		report, err := d.Detect(population)
		require.NoError(t, err)
		require.Len(t, report.Anomalies, 2)

		byID := map[string]Result{}
		for _, a := range report.Anomalies {
			byID[a.EvaluationID] = a
		}
		assert.Equal(t, TypeOutlierHighSuspicious, byID["glowing-but-angry"].Type)
		assert.Equal(t, SeverityMedium, byID["glowing-but-angry"].Severity)
		assert.Equal(t, TypePatternDeviation, byID["glowing"].Type)
	})
}

func TestDetect_NoClusterUsesPopulationCentroid(t *testing.T) {
	d := newDetector(t, func(p *Params) { p.MinPoints = 2 })

	report, err := d.Detect([]Evaluation{
		flat("a", "s", 1.0),
		flat("b", "s", 2.5),
		flat("c", "s", 4.0),
	})
	require.NoError(t, err)
	require.Len(t, report.Anomalies, 3)

	// Population centroid is 2.5 on every category.
	byID := map[string]Result{}
	for _, a := range report.Anomalies {
		byID[a.EvaluationID] = a
	}
	assert.InDelta(t, 0.75, byID["a"].Score, 1e-9)
	assert.InDelta(t, 0.0, byID["b"].Score, 1e-9)
	assert.InDelta(t, 0.75, byID["c"].Score, 1e-9)
	assert.Equal(t, SeverityHigh, byID["a"].Severity)
	assert.Equal(t, SeverityLow, byID["b"].Severity)
	assert.Equal(t, 0.0, byID["b"].Confidence)

	// Sorted by score, ties by id.
	assert.Equal(t, []string{"a", "c", "b"}, []string{
		report.Anomalies[0].EvaluationID,
		report.Anomalies[1].EvaluationID,
		report.Anomalies[2].EvaluationID,
	})
}

func TestDetect_Scoping(t *testing.T) {
	d := newDetector(t, nil)

	t.Run("small subject falls back to the global population", func(t *testing.T) {
		population := tightCluster("big", "course-a", 12)
		population = append(population,
			flat("tiny-ok", "course-b", 3.5),
			flat("tiny-low", "course-b", 1.0),
		)

		report, err := d.Detect(population)
		require.NoError(t, err)

		assert.Equal(t, 1, report.SubjectScopes)
		assert.Equal(t, 2, report.GlobalFallbacks)
		require.Len(t, report.Anomalies, 1)
		assert.Equal(t, "tiny-low", report.Anomalies[0].EvaluationID)
		assert.Equal(t, ScopeGlobal, report.Anomalies[0].Scope)
	})

	t.Run("each subject is judged against its own peers", func(t *testing.T) {
		population := tightCluster("a", "course-a", 10)
		for i := 0; i < 6; i++ {
			population = append(population, flat(fmt.Sprintf("b-%d", i), "course-b", 1.5))
		}
		// Typical for course-a, atypical for course-b.
		population = append(population, flat("b-high", "course-b", 3.5))

		report, err := d.Detect(population)
		require.NoError(t, err)

		assert.Equal(t, 2, report.SubjectScopes)
		require.Len(t, report.Anomalies, 1)
		a := report.Anomalies[0]
		assert.Equal(t, "b-high", a.EvaluationID)
		assert.Equal(t, ScopeSubject, a.Scope)
		assert.Equal(t, TypePatternDeviation, a.Type)
	})
}

func TestToPointFillsMissingCategories(t *testing.T) {
	d := newDetector(t, nil)

	p := d.toPoint(Evaluation{
		ID:               "x",
		CategoryAverages: map[string]float64{taxonomy.CategoryInstruction: 4, taxonomy.CategoryContent: 2},
	})

	assert.Equal(t, 3.0, p.average)
	assert.Equal(t, []float64{1, 0.5, 0.75, 0.75}, p.vector)
}

func TestConfidenceIsMonotonic(t *testing.T) {
	d := newDetector(t, nil)

	prev := -1.0
	for s := 0.0; s <= 2.0; s += 0.01 {
		c := d.confidence(s)
		assert.GreaterOrEqual(t, c, prev)
		assert.GreaterOrEqual(t, c, 0.0)
		assert.LessOrEqual(t, c, 1.0)
		prev = c
	}
	assert.InDelta(t, 1-math.Exp(-1), d.confidence(0.5), 1e-4)
}

func TestNeighborhoodsIndependentOfWorkers(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	vectors := make([][]float64, 57)
	for i := range vectors {
		vectors[i] = []float64{rng.Float64(), rng.Float64(), rng.Float64(), rng.Float64()}
	}

	want := neighborhoods(vectors, 0.3, 1)
	for _, w := range []int{2, 3, 8, 100} {
		assert.Equal(t, want, neighborhoods(vectors, 0.3, w), "workers %d", w)
	}
}

func BenchmarkDetect(b *testing.B) {
	d, err := NewDetector(taxonomy.Default(), DefaultParams(), nil)
	require.NoError(b, err)

	rng := rand.New(rand.NewSource(11))
	evals := make([]Evaluation, 0, 500)
	for i := 0; i < 500; i++ {
		var v [4]float64
		for k := range v {
			v[k] = randomAverage(rng)
		}
		evals = append(evals, evalWith(fmt.Sprintf("ev-%03d", i), fmt.Sprintf("course-%d", i%5), v, sentiment.Neutral))
	}

	b.ResetTimer()
	for b.Loop() {
		_, _ = d.Detect(evals)
	}
}

// randomAverage draws a category average on the 1-4 scale, biased towards the upper half.
func randomAverage(rng *rand.Rand) float64 {
	if rng.Intn(10) == 0 {
		return 1 + rng.Float64()*1.5
	}
	return 3 + rng.Float64()
}
