package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/godilite/evaluation-engine/internal/anomaly"
	"github.com/godilite/evaluation-engine/internal/rating"
	"github.com/godilite/evaluation-engine/internal/sentiment"
	"github.com/godilite/evaluation-engine/internal/service"
	"github.com/godilite/evaluation-engine/internal/taxonomy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformRatings(v int) map[string]int {
	out := make(map[string]int)
	for _, qid := range taxonomy.Default().QuestionIDs() {
		out[qid] = v
	}
	return out
}

func writeJSONFile(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "input.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand(strings.NewReader(stdin), &out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestScoreCommand(t *testing.T) {
	t.Run("single submission", func(t *testing.T) {
		path := writeJSONFile(t, service.Submission{SubjectID: "course-101", RaterID: "r-1", Ratings: uniformRatings(4)})

		out, err := run(t, "", "score", path)

		require.NoError(t, err)
		var ev service.NormalizedEvaluation
		require.NoError(t, json.Unmarshal([]byte(out), &ev))
		assert.Equal(t, 4.0, ev.OverallAverage)
		assert.Equal(t, sentiment.Positive, ev.Sentiment)
	})

	t.Run("array from stdin", func(t *testing.T) {
		data, err := json.Marshal([]service.Submission{
			{SubjectID: "s-1", Ratings: uniformRatings(2)},
			{SubjectID: "s-1", Ratings: map[string]int{"clarity": 4, "usefulness": 4, "engagement": 4, "organization": 4}},
		})
		require.NoError(t, err)

		out, err := run(t, string(data), "score", "--compact", "-")

		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(strings.TrimSpace(out), "\n")+1)
		var evs []service.NormalizedEvaluation
		require.NoError(t, json.Unmarshal([]byte(out), &evs))
		require.Len(t, evs, 2)
		assert.Equal(t, sentiment.Negative, evs[0].Sentiment)
		assert.Equal(t, rating.KindLegacy, evs[1].Source)
	})

	t.Run("incomplete submission fails with its index", func(t *testing.T) {
		path := writeJSONFile(t, []service.Submission{
			{SubjectID: "s-1", Ratings: uniformRatings(3)},
			{SubjectID: "s-1", Ratings: map[string]int{"instr_explains": 3}},
		})

		_, err := run(t, "", "score", path)

		require.Error(t, err)
		assert.ErrorIs(t, err, rating.ErrIncompleteSubmission)
		assert.Contains(t, err.Error(), "submission 1")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := run(t, "", "score", filepath.Join(t.TempDir(), "absent.json"))
		assert.ErrorContains(t, err, "failed to read")
	})

	t.Run("requires exactly one file", func(t *testing.T) {
		_, err := run(t, "", "score")
		assert.Error(t, err)
	})
}

func TestDraftCommand(t *testing.T) {
	path := writeJSONFile(t, service.Submission{Ratings: map[string]int{"instr_explains": 4}})

	out, err := run(t, "", "draft", path)

	require.NoError(t, err)
	var preview service.DraftPreview
	require.NoError(t, json.Unmarshal([]byte(out), &preview))
	assert.Equal(t, 1, preview.Answered)
	assert.Equal(t, 7, preview.Progress)
	assert.False(t, preview.Complete)
}

func TestDashboardCommand(t *testing.T) {
	population := func() []service.Submission {
		subs := make([]service.Submission, 0, 11)
		for i := 0; i < 10; i++ {
			subs = append(subs, service.Submission{
				SubjectID: "course-101",
				RaterID:   fmt.Sprintf("r-%d", i),
				Ratings:   uniformRatings(4),
			})
		}
		return append(subs, service.Submission{SubjectID: "course-101", RaterID: "r-low", Ratings: uniformRatings(1)})
	}

	t.Run("bare array flags the isolated low evaluation", func(t *testing.T) {
		out, err := run(t, "", "dashboard", writeJSONFile(t, population()))

		require.NoError(t, err)
		var metrics service.DashboardMetrics
		require.NoError(t, json.Unmarshal([]byte(out), &metrics))
		assert.Equal(t, 11, metrics.EvaluationCount)
		assert.False(t, metrics.InsufficientPopulation)
		require.Len(t, metrics.Anomalies, 1)
		assert.Equal(t, anomaly.SeverityHigh, metrics.Anomalies[0].Severity)
		assert.Equal(t, anomaly.TypeOutlierLow, metrics.Anomalies[0].Type)
	})

	t.Run("object input with a stricter min-points flag", func(t *testing.T) {
		path := writeJSONFile(t, dashboardInput{Submissions: population()[:3]})

		out, err := run(t, "", "dashboard", "--min-points", "3", path)

		require.NoError(t, err)
		var metrics service.DashboardMetrics
		require.NoError(t, json.Unmarshal([]byte(out), &metrics))
		assert.Equal(t, 3, metrics.EvaluationCount)
		assert.True(t, metrics.InsufficientPopulation)
		assert.Empty(t, metrics.Anomalies)
	})

	t.Run("invalid engine flags", func(t *testing.T) {
		_, err := run(t, "", "dashboard", "--epsilon=-1", writeJSONFile(t, population()))
		assert.ErrorContains(t, err, "invalid engine options")
	})

	t.Run("scored evaluations are checked against the taxonomy", func(t *testing.T) {
		input := `{"evaluations":[{"evaluationId":"ev-x","subjectId":"course-101",
			"categories":{"instruction":{"average":40,"count":-3}},"overallAverage":40}]}`

		_, err := run(t, input, "dashboard", "-")

		assert.ErrorIs(t, err, service.ErrInvalidEvaluation)
		assert.ErrorContains(t, err, "evaluation 0")
	})

	t.Run("malformed input", func(t *testing.T) {
		_, err := run(t, "{not json", "dashboard", "-")
		assert.ErrorContains(t, err, "failed to parse dashboard input")
	})
}

func TestTaxonomyCommand(t *testing.T) {
	out, err := run(t, "", "taxonomy")

	require.NoError(t, err)
	var view struct {
		Version    string              `json:"version"`
		Categories []taxonomy.Category `json:"categories"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, taxonomy.DefaultVersion, view.Version)
	assert.Len(t, view.Categories, 4)
}
