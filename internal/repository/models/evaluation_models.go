package models

import (
	"database/sql"
	"time"
)

// StoredSubmission is one row of evaluations together with its evaluation_ratings rows.
type StoredSubmission struct {
	EvaluationID string
	SubjectID    string
	RaterID      string
	Comment      string
	SubmittedAt  time.Time
	Ratings      map[string]int
}

type TaxonomyCategoryRow struct {
	ID          string
	Name        string
	Description string
	Position    int
}

type TaxonomyQuestionRow struct {
	ID         string
	CategoryID string
	Text       string
	ShortLabel string
	LegacyKey  sql.NullString
	Position   int
}
