package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/godilite/evaluation-engine/internal/repository/models"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"

	sqliteTimeLayout = "2006-01-02 15:04:05.000"
)

// EvaluationRepository reads stored submissions and taxonomy definitions. It never
// writes.
type EvaluationRepository struct {
	db     *sql.DB
	driver string
}

// NewEvaluationRepository wraps db. driver selects the placeholder and time argument
// style and must match the driver db was opened with.
func NewEvaluationRepository(db *sql.DB, driver string) *EvaluationRepository {
	return &EvaluationRepository{db: db, driver: driver}
}

// GetSubmissions returns the submissions with submitted_at in [start, end], ordered by
// submission time and id. An empty subjectIDs selects every subject. Submissions with
// no rating rows are returned with empty Ratings.
func (r *EvaluationRepository) GetSubmissions(ctx context.Context, subjectIDs []string, start, end time.Time) ([]models.StoredSubmission, error) {
	args := []any{r.timeArg(start), r.timeArg(end)}

	var query strings.Builder
	query.WriteString(`
		SELECT
			e.id,
			e.subject_id,
			e.rater_id,
			e.comment,
			e.submitted_at,
			er.question_id,
			er.value
		FROM evaluations AS e
		LEFT JOIN evaluation_ratings AS er ON er.evaluation_id = e.id
		WHERE ` + r.submittedAtWindow())

	if len(subjectIDs) > 0 {
		marks := make([]string, len(subjectIDs))
		for i, id := range subjectIDs {
			args = append(args, id)
			marks[i] = r.placeholder(len(args))
		}
		query.WriteString(`
		  AND e.subject_id IN (` + strings.Join(marks, ", ") + `)`)
	}
	query.WriteString(`
		ORDER BY ` + r.submittedAtOrder() + `, e.id, er.question_id`)

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query GetSubmissions: %w", err)
	}
	defer rows.Close()

	var results []models.StoredSubmission
	for rows.Next() {
		var (
			sub        models.StoredSubmission
			comment    sql.NullString
			questionID sql.NullString
			value      sql.NullInt64
		)
		if err := rows.Scan(&sub.EvaluationID, &sub.SubjectID, &sub.RaterID, &comment, &sub.SubmittedAt, &questionID, &value); err != nil {
			return nil, fmt.Errorf("scan GetSubmissions row: %w", err)
		}

		if n := len(results); n == 0 || results[n-1].EvaluationID != sub.EvaluationID {
			sub.Comment = comment.String
			sub.SubmittedAt = sub.SubmittedAt.UTC()
			sub.Ratings = make(map[string]int)
			results = append(results, sub)
		}
		if questionID.Valid && value.Valid {
			results[len(results)-1].Ratings[questionID.String] = int(value.Int64)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate GetSubmissions: %w", err)
	}
	return results, nil
}

func (r *EvaluationRepository) placeholder(n int) string {
	if r.driver == DriverPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

// submittedAtWindow is the time window predicate. SQLite stores timestamps as text in
// whatever layout the writer used ("2006-01-02 15:04:05-07:00" from go-sqlite3, RFC 3339
// from others), so both sides are compared as julian days rather than as strings.
func (r *EvaluationRepository) submittedAtWindow() string {
	if r.driver == DriverPostgres {
		return `e.submitted_at >= ` + r.placeholder(1) + ` AND e.submitted_at <= ` + r.placeholder(2)
	}
	return `julianday(e.submitted_at) >= julianday(` + r.placeholder(1) + `)
		  AND julianday(e.submitted_at) <= julianday(` + r.placeholder(2) + `)`
}

func (r *EvaluationRepository) submittedAtOrder() string {
	if r.driver == DriverPostgres {
		return "e.submitted_at"
	}
	return "julianday(e.submitted_at)"
}

// timeArg binds t for the window predicate. SQLite bounds are truncated to the
// millisecond, the resolution julianday keeps, so an end bound of 23:59:59.999999999
// does not round up into the next day.
func (r *EvaluationRepository) timeArg(t time.Time) any {
	if r.driver == DriverPostgres {
		return t.UTC()
	}
	return t.UTC().Format(sqliteTimeLayout)
}
