package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/prepstack/prepstack/internal/model"
)

const questionColumns = `id, exam_type, subject, year, topic, question_type,
	question_text, question_image, options, correct_answer, explanation, difficulty`

func scanQuestion(row interface{ Scan(...any) error }) (model.Question, error) {
	var q model.Question
	var options string
	err := row.Scan(&q.ID, &q.ExamType, &q.Subject, &q.Year, &q.Topic, &q.QuestionType,
		&q.QuestionText, &q.QuestionImage, &options, &q.CorrectAnswer, &q.Explanation, &q.Difficulty)
	if err != nil {
		return q, err
	}
	if err := json.Unmarshal([]byte(options), &q.Options); err != nil {
		return q, fmt.Errorf("decode options for question %d: %w", q.ID, err)
	}
	return q, nil
}

// InsertQuestions stores a batch of questions in a single transaction, so a
// partially valid upload never leaves a partial catalog behind.
func (s *Store) InsertQuestions(questions []model.Question) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO questions (exam_type, subject, year, topic, question_type,
		 question_text, question_image, options, correct_answer, explanation, difficulty)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, q := range questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return 0, fmt.Errorf("encode options: %w", err)
		}
		if _, err := stmt.Exec(q.ExamType, q.Subject, q.Year, q.Topic, q.QuestionType,
			q.QuestionText, q.QuestionImage, string(options), q.CorrectAnswer,
			q.Explanation, q.Difficulty); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(questions), nil
}

// GetQuestion returns a question by ID, or nil if absent.
func (s *Store) GetQuestion(id int64) (*model.Question, error) {
	q, err := scanQuestion(s.db.QueryRow(
		`SELECT `+questionColumns+` FROM questions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// ExamTypes returns the distinct exam types present in the catalog.
func (s *Store) ExamTypes() ([]string, error) {
	return s.distinctStrings(`SELECT DISTINCT exam_type FROM questions ORDER BY exam_type`)
}

// Subjects returns the distinct subjects available for an exam type.
func (s *Store) Subjects(examType string) ([]string, error) {
	return s.distinctStrings(
		`SELECT DISTINCT subject FROM questions WHERE exam_type = ? ORDER BY subject`, examType)
}

// Years returns the distinct years for an exam type and subject, newest first.
func (s *Store) Years(examType, subject string) ([]int, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT year FROM questions WHERE exam_type = ? AND subject = ?
		 ORDER BY year DESC`, examType, subject)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var years []int
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	return years, rows.Err()
}

// ListQuestionsFiltered returns questions for an exam type and subject,
// optionally restricted to a year (0 means any year).
func (s *Store) ListQuestionsFiltered(examType, subject string, year int) ([]model.Question, error) {
	query := `SELECT ` + questionColumns + ` FROM questions WHERE exam_type = ? AND subject = ?`
	args := []any{examType, subject}
	if year != 0 {
		query += ` AND year = ?`
		args = append(args, year)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// DeleteQuestion removes a question from the catalog.
func (s *Store) DeleteQuestion(id int64) error {
	res, err := s.db.Exec(`DELETE FROM questions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// QuestionCount returns the total number of questions in the catalog.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

func (s *Store) distinctStrings(query string, args ...any) ([]string, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}
