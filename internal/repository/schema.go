package repository

// SQLiteSchema creates the read-side tables in SQLite. Submissions are written by the
// upstream form service; this module only reads them.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS evaluations (
	id           TEXT PRIMARY KEY,
	subject_id   TEXT NOT NULL,
	rater_id     TEXT NOT NULL,
	comment      TEXT,
	submitted_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_evaluations_subject_submitted ON evaluations (subject_id, submitted_at);

CREATE TABLE IF NOT EXISTS evaluation_ratings (
	evaluation_id TEXT NOT NULL REFERENCES evaluations (id),
	question_id   TEXT NOT NULL,
	value         INTEGER NOT NULL,
	PRIMARY KEY (evaluation_id, question_id)
);

CREATE TABLE IF NOT EXISTS taxonomy_categories (
	version     TEXT NOT NULL,
	id          TEXT NOT NULL,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	position    INTEGER NOT NULL,
	PRIMARY KEY (version, id)
);

CREATE TABLE IF NOT EXISTS taxonomy_questions (
	version     TEXT NOT NULL,
	id          TEXT NOT NULL,
	category_id TEXT NOT NULL,
	text        TEXT NOT NULL,
	short_label TEXT NOT NULL DEFAULT '',
	legacy_key  TEXT,
	position    INTEGER NOT NULL,
	PRIMARY KEY (version, id)
);
`
