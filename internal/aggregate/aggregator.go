// Package aggregate rolls per-question ratings up into category and overall averages,
// for a single evaluation or a population of them.
package aggregate

import (
	"github.com/godilite/evaluation-engine/internal/rating"
	"github.com/godilite/evaluation-engine/internal/stats"
	"github.com/godilite/evaluation-engine/internal/taxonomy"
)

const averagePlaces = 2

// CategoryScore is the rollup of one category within one evaluation.
type CategoryScore struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
}

// Result is the rollup of one evaluation. Categories only holds categories with at
// least one answered question.
type Result struct {
	Categories  map[string]CategoryScore `json:"categories"`
	Overall     float64                  `json:"overall"`
	RatingCount int                      `json:"ratingCount"`
}

// CategorySummary describes one category across a population.
type CategorySummary struct {
	Mean        float64 `json:"mean"`
	Evaluations int     `json:"evaluations"`
}

// PopulationSummary describes a population of evaluations. Every taxonomy category is
// present, zero-valued when no evaluation contributed to it.
type PopulationSummary struct {
	Categories     map[string]CategorySummary `json:"categories"`
	OverallAverage float64                    `json:"overallAverage"`
	Evaluations    int                        `json:"evaluations"`
}

// Batch is the output of AggregateMany.
type Batch struct {
	PerEvaluation []Result          `json:"perEvaluation"`
	Summary       PopulationSummary `json:"summary"`
}

// Aggregator computes rollups for one taxonomy.
type Aggregator struct {
	tax *taxonomy.Taxonomy
}

// NewAggregator creates an Aggregator bound to tax.
func NewAggregator(tax *taxonomy.Taxonomy) *Aggregator {
	if tax == nil {
		panic("taxonomy must not be nil")
	}
	return &Aggregator{tax: tax}
}

// Aggregate computes category averages and the overall average of r. The overall is
// the flat mean of every present rating, not the mean of the category averages.
// Category averages and the overall are rounded half-up to two decimals; callers
// classify the rounded overall, so a reported value and its label always agree.
func (a *Aggregator) Aggregate(r rating.Ratings) Result {
	res := Result{Categories: make(map[string]CategoryScore)}

	var total int
	for _, c := range a.tax.Categories() {
		var sum, count int
		for _, qid := range c.QuestionIDs {
			v, ok := r[qid]
			if !ok || v == rating.Unanswered {
				continue
			}
			sum += v
			count++
		}
		if count == 0 {
			continue
		}
		res.Categories[c.ID] = CategoryScore{
			Average: stats.RoundHalfUp(float64(sum)/float64(count), averagePlaces),
			Count:   count,
		}
		total += sum
		res.RatingCount += count
	}

	if res.RatingCount > 0 {
		res.Overall = stats.RoundHalfUp(float64(total)/float64(res.RatingCount), averagePlaces)
	}
	return res
}

// AggregateMany aggregates each evaluation and summarizes the population.
func (a *Aggregator) AggregateMany(rs []rating.Ratings) Batch {
	per := make([]Result, len(rs))
	for i, r := range rs {
		per[i] = a.Aggregate(r)
	}
	return Batch{
		PerEvaluation: per,
		Summary:       a.Summarize(per),
	}
}

// Summarize reports, per category, the mean of per-evaluation category averages and
// how many evaluations contributed to it. The overall average is the mean of the
// per-evaluation overall averages.
func (a *Aggregator) Summarize(results []Result) PopulationSummary {
	ids := a.tax.CategoryIDs()
	summary := PopulationSummary{
		Categories:  make(map[string]CategorySummary, len(ids)),
		Evaluations: len(results),
	}

	for _, id := range ids {
		var sum float64
		var n int
		for _, res := range results {
			cs, ok := res.Categories[id]
			if !ok || cs.Count == 0 {
				continue
			}
			sum += cs.Average
			n++
		}
		cat := CategorySummary{Evaluations: n}
		if n > 0 {
			cat.Mean = stats.RoundHalfUp(sum/float64(n), averagePlaces)
		}
		summary.Categories[id] = cat
	}

	var overallSum float64
	var scored int
	for _, res := range results {
		if res.RatingCount == 0 {
			continue
		}
		overallSum += res.Overall
		scored++
	}
	if scored > 0 {
		summary.OverallAverage = stats.RoundHalfUp(overallSum/float64(scored), averagePlaces)
	}

	return summary
}
