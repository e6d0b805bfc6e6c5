package store

// schema is applied statement by statement so it runs on drivers that reject
// multi-statement Exec calls. Timestamps are unix nanoseconds.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS questions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_questions_user_content ON questions(user_id, content)`,

	`CREATE TABLE IF NOT EXISTS answers (
    id TEXT PRIMARY KEY,
    content TEXT NOT NULL,
    created_at BIGINT NOT NULL
)`,

	`CREATE TABLE IF NOT EXISTS forms_auto_fill (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    question_id TEXT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
    answer_id TEXT NOT NULL REFERENCES answers(id) ON DELETE CASCADE,
    created_at BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_forms_user ON forms_auto_fill(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_forms_question ON forms_auto_fill(question_id)`,

	`CREATE TABLE IF NOT EXISTS postings (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL DEFAULT '',
    title TEXT NOT NULL DEFAULT '',
    company TEXT NOT NULL DEFAULT '',
    location TEXT NOT NULL DEFAULT '',
    description TEXT NOT NULL DEFAULT '',
    source TEXT NOT NULL DEFAULT '',
    summary TEXT NOT NULL DEFAULT '',
    skills TEXT NOT NULL DEFAULT '[]',
    created_at BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_postings_user ON postings(user_id)`,
}
