package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/godilite/evaluation-engine/internal/repository/models"
	"github.com/godilite/evaluation-engine/internal/taxonomy"
)

var ErrTaxonomyNotFound = errors.New("taxonomy version not found")

// GetTaxonomyRows returns the category and question rows of one taxonomy version,
// each ordered by position.
func (r *EvaluationRepository) GetTaxonomyRows(ctx context.Context, version string) ([]models.TaxonomyCategoryRow, []models.TaxonomyQuestionRow, error) {
	categoryQuery := `
		SELECT id, name, description, position
		FROM taxonomy_categories
		WHERE version = ` + r.placeholder(1) + `
		ORDER BY position, id
	`
	rows, err := r.db.QueryContext(ctx, categoryQuery, version)
	if err != nil {
		return nil, nil, fmt.Errorf("query taxonomy categories: %w", err)
	}
	defer rows.Close()

	var categories []models.TaxonomyCategoryRow
	for rows.Next() {
		var c models.TaxonomyCategoryRow
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.Position); err != nil {
			return nil, nil, fmt.Errorf("scan taxonomy category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate taxonomy categories: %w", err)
	}

	questionQuery := `
		SELECT id, category_id, text, short_label, legacy_key, position
		FROM taxonomy_questions
		WHERE version = ` + r.placeholder(1) + `
		ORDER BY position, id
	`
	qrows, err := r.db.QueryContext(ctx, questionQuery, version)
	if err != nil {
		return nil, nil, fmt.Errorf("query taxonomy questions: %w", err)
	}
	defer qrows.Close()

	var questions []models.TaxonomyQuestionRow
	for qrows.Next() {
		var q models.TaxonomyQuestionRow
		if err := qrows.Scan(&q.ID, &q.CategoryID, &q.Text, &q.ShortLabel, &q.LegacyKey, &q.Position); err != nil {
			return nil, nil, fmt.Errorf("scan taxonomy question row: %w", err)
		}
		questions = append(questions, q)
	}
	if err := qrows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate taxonomy questions: %w", err)
	}

	return categories, questions, nil
}

// LoadTaxonomy builds the taxonomy stored under version. Questions with a legacy_key
// become that composite's successors; when no question has one, legacy payloads are
// not accepted.
func (r *EvaluationRepository) LoadTaxonomy(ctx context.Context, version string) (*taxonomy.Taxonomy, error) {
	categoryRows, questionRows, err := r.GetTaxonomyRows(ctx, version)
	if err != nil {
		return nil, err
	}
	if len(categoryRows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTaxonomyNotFound, version)
	}

	categories := make([]taxonomy.Category, len(categoryRows))
	index := make(map[string]int, len(categoryRows))
	for i, c := range categoryRows {
		categories[i] = taxonomy.Category{ID: c.ID, Name: c.Name, Description: c.Description}
		index[c.ID] = i
	}

	questions := make([]taxonomy.Question, 0, len(questionRows))
	var legacy map[string][]string
	for _, q := range questionRows {
		questions = append(questions, taxonomy.Question{
			ID:         q.ID,
			Text:       q.Text,
			ShortLabel: q.ShortLabel,
			CategoryID: q.CategoryID,
		})
		if i, ok := index[q.CategoryID]; ok {
			categories[i].QuestionIDs = append(categories[i].QuestionIDs, q.ID)
		}
		if q.LegacyKey.Valid && q.LegacyKey.String != "" {
			if legacy == nil {
				legacy = make(map[string][]string)
			}
			legacy[q.LegacyKey.String] = append(legacy[q.LegacyKey.String], q.ID)
		}
	}

	return taxonomy.New(version, categories, questions, legacy)
}
