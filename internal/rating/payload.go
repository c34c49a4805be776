// Package rating turns submitted rating payloads into canonical per-question ratings
// for a given taxonomy.
package rating

import "errors"

const (
	MinRating = 1
	MaxRating = 4

	// Unanswered is how a null or skipped answer arrives from the form.
	Unanswered = 0
)

var (
	ErrSchemaMismatch       = errors.New("schema mismatch")
	ErrIncompleteSubmission = errors.New("incomplete submission: complete all questions")
	ErrRatingOutOfRange     = errors.New("rating out of range")
)

// Ratings maps a current-taxonomy question id to a Likert value in [MinRating, MaxRating].
type Ratings map[string]int

// Clone returns an independent copy.
func (r Ratings) Clone() Ratings {
	out := make(Ratings, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Values returns the ratings ordered by question id.
func (r Ratings) Values() []int {
	keys := sortedKeys(r)
	out := make([]int, len(keys))
	for i, k := range keys {
		out[i] = r[k]
	}
	return out
}

// Composite holds the scores of the retired four-score form, keyed by composite name.
type Composite map[string]int

// PayloadKind names the shape a payload was resolved to.
type PayloadKind string

const (
	KindCurrent PayloadKind = "current"
	KindLegacy  PayloadKind = "legacy"
)

// Payload is either Current or Legacy. It is resolved once by Normalizer.Resolve
// and then passed around as-is.
type Payload interface {
	Kind() PayloadKind
	sealed()
}

// Current is a payload keyed by current-taxonomy question ids.
type Current struct {
	Ratings Ratings
}

func (Current) Kind() PayloadKind { return KindCurrent }
func (Current) sealed()           {}

// Legacy is a payload of four-score composites that fan out onto current questions.
type Legacy struct {
	Scores Composite
}

func (Legacy) Kind() PayloadKind { return KindLegacy }
func (Legacy) sealed()           {}
