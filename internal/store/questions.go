package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Question is a historical form question. Every question belongs to the
// user who recorded it.
type Question struct {
	ID     string
	UserID string
	Text   string
}

// QAPair is a historical question with the answer that was given to it.
type QAPair struct {
	QuestionID string `json:"question_id"`
	Question   string `json:"question"`
	Answer     string `json:"answer"`
}

// QuestionsForUser returns every question the user has answered, ordered by
// the time of the first answer and then by id.
func (d *DB) QuestionsForUser(ctx context.Context, userID string) ([]Question, error) {
	rows, err := d.QueryContext(ctx, d.rebind(`
		SELECT q.id, q.user_id, q.content
		FROM questions q
		JOIN forms_auto_fill f ON f.question_id = q.id AND f.user_id = q.user_id
		WHERE q.user_id = ?
		GROUP BY q.id, q.user_id, q.content
		ORDER BY MIN(f.created_at), q.id`), userID)
	if err != nil {
		return nil, fmt.Errorf("querying questions for user: %w", err)
	}
	defer rows.Close()

	return scanQuestions(rows)
}

// AllQuestions returns every stored question ordered by creation time.
func (d *DB) AllQuestions(ctx context.Context) ([]Question, error) {
	rows, err := d.QueryContext(ctx, `SELECT id, user_id, content FROM questions ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying questions: %w", err)
	}
	defer rows.Close()

	return scanQuestions(rows)
}

func scanQuestions(rows *sql.Rows) ([]Question, error) {
	var out []Question
	for rows.Next() {
		var q Question
		if err := rows.Scan(&q.ID, &q.UserID, &q.Text); err != nil {
			return nil, fmt.Errorf("scanning question: %w", err)
		}
		out = append(out, q)
	}
	return out, rows.Err()
}

// AnswerForQuestion returns the question with the latest answer its owner
// linked to it. ErrNotFound is returned when the question is unknown or has
// never been answered.
func (d *DB) AnswerForQuestion(ctx context.Context, questionID string) (QAPair, error) {
	var pair QAPair
	err := d.QueryRowContext(ctx, d.rebind(`
		SELECT q.id, q.content, a.content
		FROM forms_auto_fill f
		JOIN questions q ON q.id = f.question_id AND q.user_id = f.user_id
		JOIN answers a ON a.id = f.answer_id
		WHERE f.question_id = ?
		ORDER BY f.created_at DESC, f.id DESC
		LIMIT 1`), questionID).Scan(&pair.QuestionID, &pair.Question, &pair.Answer)
	if errors.Is(err, sql.ErrNoRows) {
		return QAPair{}, fmt.Errorf("question %s: %w", questionID, ErrNotFound)
	}
	if err != nil {
		return QAPair{}, fmt.Errorf("querying answer for question %s: %w", questionID, err)
	}

	return pair, nil
}

// Record stores a question/answer pair for the user. The user's own question
// with the exact same text is reused so repeated answers accumulate on it;
// identical text from another user gets its own row.
func (d *DB) Record(ctx context.Context, userID, question, answer string) (QAPair, error) {
	question = strings.TrimSpace(question)
	answer = strings.TrimSpace(answer)
	if userID == "" || question == "" || answer == "" {
		return QAPair{}, fmt.Errorf("user, question and answer are required")
	}

	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return QAPair{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	now := d.timestamp()

	var questionID string
	err = tx.QueryRowContext(ctx, d.rebind(`SELECT id FROM questions WHERE user_id = ? AND content = ? ORDER BY created_at LIMIT 1`), userID, question).Scan(&questionID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		questionID = uuid.NewString()
		if _, err := tx.ExecContext(ctx, d.rebind(`INSERT INTO questions (id, user_id, content, created_at) VALUES (?, ?, ?, ?)`),
			questionID, userID, question, now); err != nil {
			return QAPair{}, fmt.Errorf("inserting question: %w", err)
		}
	case err != nil:
		return QAPair{}, fmt.Errorf("looking up question: %w", err)
	}

	answerID := uuid.NewString()
	if _, err := tx.ExecContext(ctx, d.rebind(`INSERT INTO answers (id, content, created_at) VALUES (?, ?, ?)`),
		answerID, answer, now); err != nil {
		return QAPair{}, fmt.Errorf("inserting answer: %w", err)
	}

	if _, err := tx.ExecContext(ctx, d.rebind(`INSERT INTO forms_auto_fill (id, user_id, question_id, answer_id, created_at) VALUES (?, ?, ?, ?, ?)`),
		uuid.NewString(), userID, questionID, answerID, now); err != nil {
		return QAPair{}, fmt.Errorf("linking answer: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return QAPair{}, fmt.Errorf("committing record: %w", err)
	}

	return QAPair{QuestionID: questionID, Question: question, Answer: answer}, nil
}
