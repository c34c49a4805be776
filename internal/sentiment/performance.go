package sentiment

// Performance is the six-bucket display label for an average. It exists for display
// bucketing only and is never used to count positive/neutral/negative evaluations.
type Performance struct {
	Label     string `json:"label"`
	ColorHint string `json:"colorHint"`
}

const (
	LabelExcellent        = "Excellent"
	LabelVeryGood         = "Very Good"
	LabelGood             = "Good"
	LabelSatisfactory     = "Satisfactory"
	LabelNeedsImprovement = "Needs Improvement"
	LabelPoor             = "Poor"
)

type performanceBand struct {
	min  float64
	perf Performance
}

// Ordered from the highest floor down.
var performanceBands = []performanceBand{
	{min: 3.75, perf: Performance{Label: LabelExcellent, ColorHint: "green"}},
	{min: 3.5, perf: Performance{Label: LabelVeryGood, ColorHint: "teal"}},
	{min: 3.0, perf: Performance{Label: LabelGood, ColorHint: "blue"}},
	{min: 2.5, perf: Performance{Label: LabelSatisfactory, ColorHint: "yellow"}},
	{min: 2.0, perf: Performance{Label: LabelNeedsImprovement, ColorHint: "orange"}},
}

var poor = Performance{Label: LabelPoor, ColorHint: "red"}

// PerformanceLabel buckets avg into one of six display labels.
func PerformanceLabel(avg float64) Performance {
	for _, b := range performanceBands {
		if avg >= b.min {
			return b.perf
		}
	}
	return poor
}

// PerformanceLabels lists every label from best to worst.
func PerformanceLabels() []string {
	out := make([]string, 0, len(performanceBands)+1)
	for _, b := range performanceBands {
		out = append(out, b.perf.Label)
	}
	return append(out, poor.Label)
}
