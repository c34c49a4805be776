package rating

import (
	"fmt"
	"sort"
	"strings"

	"github.com/godilite/evaluation-engine/internal/taxonomy"
)

// Normalizer resolves and normalizes payloads against one taxonomy. It holds no
// mutable state and is safe for concurrent use.
type Normalizer struct {
	tax *taxonomy.Taxonomy
}

// NewNormalizer creates a Normalizer bound to tax.
func NewNormalizer(tax *taxonomy.Taxonomy) *Normalizer {
	if tax == nil {
		panic("taxonomy must not be nil")
	}
	return &Normalizer{tax: tax}
}

// Resolve decides once which payload shape raw is. Keys must all be current question
// ids or all be legacy composite names.
func (n *Normalizer) Resolve(raw map[string]int) (Payload, error) {
	var current, legacy int
	var unknown []string

	for _, k := range sortedKeys(raw) {
		switch {
		case n.tax.HasQuestion(k):
			current++
		case n.tax.IsLegacyKey(k):
			legacy++
		default:
			unknown = append(unknown, k)
		}
	}

	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: unknown question ids %s", ErrSchemaMismatch, strings.Join(unknown, ", "))
	}
	if current > 0 && legacy > 0 {
		return nil, fmt.Errorf("%w: payload mixes current question ids and legacy scores", ErrSchemaMismatch)
	}

	if legacy > 0 {
		return Legacy{Scores: Composite(copyMap(raw))}, nil
	}
	return Current{Ratings: Ratings(raw).Clone()}, nil
}

// Normalize converts p into a complete current-taxonomy Ratings. It is the entry point
// for scoring and fails with ErrIncompleteSubmission when any question is unanswered.
func (n *Normalizer) Normalize(p Payload) (Ratings, error) {
	out, err := n.normalize(p)
	if err != nil {
		return nil, err
	}
	if missing := n.Missing(out); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrIncompleteSubmission, strings.Join(missing, ", "))
	}
	return out, nil
}

// NormalizeDraft converts p like Normalize but accepts partial data. Unanswered
// entries are dropped from the result.
func (n *Normalizer) NormalizeDraft(p Payload) (Ratings, error) {
	return n.normalize(p)
}

// Missing lists unanswered question ids in taxonomy order.
func (n *Normalizer) Missing(r Ratings) []string {
	var missing []string
	for _, qid := range n.tax.QuestionIDs() {
		if _, ok := r[qid]; !ok {
			missing = append(missing, qid)
		}
	}
	return missing
}

func (n *Normalizer) normalize(p Payload) (Ratings, error) {
	switch v := p.(type) {
	case Current:
		out := make(Ratings, len(v.Ratings))
		for _, qid := range sortedKeys(v.Ratings) {
			if !n.tax.HasQuestion(qid) {
				return nil, fmt.Errorf("%w: unknown question id %s", ErrSchemaMismatch, qid)
			}
			val := v.Ratings[qid]
			if val == Unanswered {
				continue
			}
			if err := checkRange(qid, val); err != nil {
				return nil, err
			}
			out[qid] = val
		}
		return out, nil

	case Legacy:
		if !n.tax.HasLegacy() {
			return nil, fmt.Errorf("%w: taxonomy %s does not accept legacy scores", ErrSchemaMismatch, n.tax.Version())
		}
		out := make(Ratings, n.tax.QuestionCount())
		for _, key := range sortedKeys(v.Scores) {
			if !n.tax.IsLegacyKey(key) {
				return nil, fmt.Errorf("%w: unknown legacy score %s", ErrSchemaMismatch, key)
			}
			val := v.Scores[key]
			if val == Unanswered {
				continue
			}
			if err := checkRange(key, val); err != nil {
				return nil, err
			}
			for _, qid := range n.tax.LegacySuccessors(key) {
				out[qid] = val
			}
		}
		return out, nil

	default:
		return nil, fmt.Errorf("%w: unsupported payload %T", ErrSchemaMismatch, p)
	}
}

func checkRange(key string, val int) error {
	if val < MinRating || val > MaxRating {
		return fmt.Errorf("%w: %s=%d, expected %d..%d", ErrRatingOutOfRange, key, val, MinRating, MaxRating)
	}
	return nil
}

func copyMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func sortedKeys[M ~map[string]int](m M) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
