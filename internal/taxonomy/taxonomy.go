// Package taxonomy holds the versioned questionnaire schema: which questions exist,
// which category owns each question, and how the retired four-score form maps onto
// the current questions.
//
// A Taxonomy is immutable once built and safe for concurrent use.
package taxonomy

import (
	"errors"
	"fmt"
	"sort"
)

var ErrInvalidTaxonomy = errors.New("invalid taxonomy")

// Question is a single questionnaire item.
type Question struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	ShortLabel string `json:"shortLabel"`
	CategoryID string `json:"categoryId"`
}

// Category groups related questions. QuestionIDs are kept in display order.
type Category struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	QuestionIDs []string `json:"questionIds"`
}

// Taxonomy is the closed, versioned set of categories and questions.
type Taxonomy struct {
	version       string
	categories    []Category
	categoryIndex map[string]int
	questions     map[string]Question
	questionOrder []string

	// legacy composite name -> current question ids it fans out to
	legacy       map[string][]string
	legacySource map[string]string
}

// New validates the definitions and builds a Taxonomy. The legacy table may be nil,
// in which case legacy payloads are rejected by the normalizer. When present it must
// give every current question exactly one legacy source.
func New(version string, categories []Category, questions []Question, legacy map[string][]string) (*Taxonomy, error) {
	if version == "" {
		return nil, fmt.Errorf("%w: version is required", ErrInvalidTaxonomy)
	}
	if len(categories) == 0 {
		return nil, fmt.Errorf("%w: at least one category is required", ErrInvalidTaxonomy)
	}

	t := &Taxonomy{
		version:       version,
		categories:    make([]Category, 0, len(categories)),
		categoryIndex: make(map[string]int, len(categories)),
		questions:     make(map[string]Question, len(questions)),
	}

	for _, q := range questions {
		if q.ID == "" {
			return nil, fmt.Errorf("%w: question with empty id", ErrInvalidTaxonomy)
		}
		if _, dup := t.questions[q.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate question %q", ErrInvalidTaxonomy, q.ID)
		}
		t.questions[q.ID] = q
	}

	claimed := make(map[string]string, len(questions))
	for _, c := range categories {
		if c.ID == "" {
			return nil, fmt.Errorf("%w: category with empty id", ErrInvalidTaxonomy)
		}
		if _, dup := t.categoryIndex[c.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate category %q", ErrInvalidTaxonomy, c.ID)
		}
		if len(c.QuestionIDs) == 0 {
			return nil, fmt.Errorf("%w: category %q has no questions", ErrInvalidTaxonomy, c.ID)
		}
		for _, qid := range c.QuestionIDs {
			q, ok := t.questions[qid]
			if !ok {
				return nil, fmt.Errorf("%w: category %q lists unknown question %q", ErrInvalidTaxonomy, c.ID, qid)
			}
			if q.CategoryID != c.ID {
				return nil, fmt.Errorf("%w: question %q belongs to %q, listed under %q", ErrInvalidTaxonomy, qid, q.CategoryID, c.ID)
			}
			if owner, dup := claimed[qid]; dup {
				return nil, fmt.Errorf("%w: question %q listed under both %q and %q", ErrInvalidTaxonomy, qid, owner, c.ID)
			}
			claimed[qid] = c.ID
			t.questionOrder = append(t.questionOrder, qid)
		}

		cp := c
		cp.QuestionIDs = append([]string(nil), c.QuestionIDs...)
		t.categoryIndex[c.ID] = len(t.categories)
		t.categories = append(t.categories, cp)
	}

	for qid := range t.questions {
		if _, ok := claimed[qid]; !ok {
			return nil, fmt.Errorf("%w: question %q is not listed by any category", ErrInvalidTaxonomy, qid)
		}
	}

	if legacy != nil {
		if err := t.setLegacy(legacy); err != nil {
			return nil, err
		}
	}

	return t, nil
}

func (t *Taxonomy) setLegacy(legacy map[string][]string) error {
	t.legacy = make(map[string][]string, len(legacy))
	t.legacySource = make(map[string]string, len(t.questions))

	for key, successors := range legacy {
		if key == "" {
			return fmt.Errorf("%w: empty legacy key", ErrInvalidTaxonomy)
		}
		if _, clash := t.questions[key]; clash {
			return fmt.Errorf("%w: legacy key %q collides with a question id", ErrInvalidTaxonomy, key)
		}
		if len(successors) == 0 {
			return fmt.Errorf("%w: legacy key %q has no successors", ErrInvalidTaxonomy, key)
		}
		for _, qid := range successors {
			if _, ok := t.questions[qid]; !ok {
				return fmt.Errorf("%w: legacy key %q maps to unknown question %q", ErrInvalidTaxonomy, key, qid)
			}
			if prev, dup := t.legacySource[qid]; dup {
				return fmt.Errorf("%w: question %q has two legacy sources (%q, %q)", ErrInvalidTaxonomy, qid, prev, key)
			}
			t.legacySource[qid] = key
		}
		t.legacy[key] = append([]string(nil), successors...)
	}

	for _, qid := range t.questionOrder {
		if _, ok := t.legacySource[qid]; !ok {
			return fmt.Errorf("%w: question %q has no legacy source", ErrInvalidTaxonomy, qid)
		}
	}
	return nil
}

func (t *Taxonomy) Version() string { return t.version }

// Categories returns a copy of the categories in their defined order.
func (t *Taxonomy) Categories() []Category {
	out := make([]Category, len(t.categories))
	for i, c := range t.categories {
		out[i] = c
		out[i].QuestionIDs = append([]string(nil), c.QuestionIDs...)
	}
	return out
}

// CategoryIDs returns category ids in defined order. This order is the feature
// vector layout used by anomaly detection.
func (t *Taxonomy) CategoryIDs() []string {
	out := make([]string, len(t.categories))
	for i, c := range t.categories {
		out[i] = c.ID
	}
	return out
}

func (t *Taxonomy) Category(id string) (Category, bool) {
	i, ok := t.categoryIndex[id]
	if !ok {
		return Category{}, false
	}
	c := t.categories[i]
	c.QuestionIDs = append([]string(nil), c.QuestionIDs...)
	return c, true
}

func (t *Taxonomy) Question(id string) (Question, bool) {
	q, ok := t.questions[id]
	return q, ok
}

func (t *Taxonomy) HasQuestion(id string) bool {
	_, ok := t.questions[id]
	return ok
}

// QuestionIDs returns every question id, ordered by category then question.
func (t *Taxonomy) QuestionIDs() []string {
	return append([]string(nil), t.questionOrder...)
}

func (t *Taxonomy) QuestionCount() int { return len(t.questionOrder) }

// HasLegacy reports whether this taxonomy accepts legacy composite payloads.
func (t *Taxonomy) HasLegacy() bool { return len(t.legacy) > 0 }

func (t *Taxonomy) IsLegacyKey(key string) bool {
	_, ok := t.legacy[key]
	return ok
}

// LegacyKeys returns the legacy composite names in sorted order.
func (t *Taxonomy) LegacyKeys() []string {
	keys := make([]string, 0, len(t.legacy))
	for k := range t.legacy {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LegacySuccessors returns the current questions a legacy score is copied onto.
func (t *Taxonomy) LegacySuccessors(key string) []string {
	return append([]string(nil), t.legacy[key]...)
}

// LegacySource returns the legacy composite a current question inherits from.
func (t *Taxonomy) LegacySource(questionID string) (string, bool) {
	k, ok := t.legacySource[questionID]
	return k, ok
}
