package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/prepstack/prepstack/internal/model"
)

const sessionColumns = `id, user_id, exam_type, subject, year, start_time,
	duration, total_questions, end_time, is_completed, score`

func scanSession(row interface{ Scan(...any) error }) (*model.ExamSession, error) {
	var sess model.ExamSession
	err := row.Scan(&sess.ID, &sess.UserID, &sess.ExamType, &sess.Subject, &sess.Year,
		&sess.StartTime, &sess.Duration, &sess.TotalQuestions, &sess.EndTime,
		&sess.IsCompleted, &sess.Score)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// CreateSession records the start of an exam attempt.
func (s *Store) CreateSession(sess model.ExamSession) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO exam_sessions (user_id, exam_type, subject, year, start_time,
		 duration, total_questions) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.UserID, sess.ExamType, sess.Subject, sess.Year, sess.StartTime,
		sess.Duration, sess.TotalQuestions,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetSession returns a session by ID, or nil if absent.
func (s *Store) GetSession(id int64) (*model.ExamSession, error) {
	sess, err := scanSession(s.db.QueryRow(
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return sess, err
}

// UpsertAnswer records the latest submission for one question in a session.
// The (session, question) unique index turns a resubmission into an update,
// never a duplicate row.
func (s *Store) UpsertAnswer(a model.ExamAnswer) error {
	_, err := s.db.Exec(
		`INSERT INTO exam_answers (session_id, question_id, selected_answer, is_correct, marked_for_review)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(session_id, question_id) DO UPDATE SET
		   selected_answer = excluded.selected_answer,
		   is_correct = excluded.is_correct,
		   marked_for_review = excluded.marked_for_review`,
		a.SessionID, a.QuestionID, a.SelectedAnswer, a.IsCorrect, a.MarkedForReview,
	)
	return err
}

// CompleteSession makes the terminal transition: it aggregates the recorded
// answers and stamps end time, completion flag and score in one transaction.
// Returns ErrNoAnswers when nothing was recorded and ErrSessionCompleted when
// the session already made the transition.
func (s *Store) CompleteSession(sessionID int64, now time.Time) (score, total int, err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback()

	err = tx.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(is_correct), 0) FROM exam_answers WHERE session_id = ?`,
		sessionID,
	).Scan(&total, &score)
	if err != nil {
		return 0, 0, err
	}
	if total == 0 {
		return 0, 0, ErrNoAnswers
	}

	res, err := tx.Exec(
		`UPDATE exam_sessions SET end_time = ?, is_completed = 1, score = ?
		 WHERE id = ? AND is_completed = 0`,
		now, score, sessionID,
	)
	if err != nil {
		return 0, 0, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists bool
		if err := tx.QueryRow(
			`SELECT EXISTS (SELECT 1 FROM exam_sessions WHERE id = ?)`, sessionID,
		).Scan(&exists); err != nil {
			return 0, 0, err
		}
		if !exists {
			return 0, 0, ErrNotFound
		}
		return 0, 0, ErrSessionCompleted
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, err
	}
	return score, total, nil
}

// SessionResults returns the answers for a session joined with their
// questions, in submission order.
func (s *Store) SessionResults(sessionID int64) ([]model.AnswerResult, error) {
	rows, err := s.db.Query(
		`SELECT q.question_text, q.options, a.selected_answer, q.correct_answer,
		        a.is_correct, q.explanation
		 FROM exam_answers a
		 JOIN questions q ON q.id = a.question_id
		 WHERE a.session_id = ?
		 ORDER BY a.id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var results []model.AnswerResult
	for rows.Next() {
		var r model.AnswerResult
		var options string
		if err := rows.Scan(&r.QuestionText, &options, &r.SelectedAnswer,
			&r.CorrectAnswer, &r.IsCorrect, &r.Explanation); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(options), &r.Options); err != nil {
			return nil, fmt.Errorf("decode options: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// RecentSessions returns the most recently started sessions with the owning
// user's identity, for the admin activity feed.
func (s *Store) RecentSessions(limit int) ([]model.ExamSession, error) {
	rows, err := s.db.Query(
		`SELECT s.id, s.user_id, s.exam_type, s.subject, s.year, s.start_time,
		        s.duration, s.total_questions, s.end_time, s.is_completed, s.score,
		        u.full_name, u.email
		 FROM exam_sessions s
		 JOIN users u ON u.id = s.user_id
		 ORDER BY s.start_time DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var sessions []model.ExamSession
	for rows.Next() {
		var sess model.ExamSession
		if err := rows.Scan(&sess.ID, &sess.UserID, &sess.ExamType, &sess.Subject,
			&sess.Year, &sess.StartTime, &sess.Duration, &sess.TotalQuestions,
			&sess.EndTime, &sess.IsCompleted, &sess.Score,
			&sess.UserFullName, &sess.UserEmail); err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// SessionCount returns the total number of exam sessions.
func (s *Store) SessionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM exam_sessions`).Scan(&count)
	return count, err
}

// Statistics assembles the admin dashboard aggregates.
func (s *Store) Statistics() (model.Statistics, error) {
	var stats model.Statistics
	var err error

	if stats.TotalUsers, err = s.UserCount(); err != nil {
		return stats, err
	}
	if stats.PremiumUsers, err = s.PremiumUserCount(); err != nil {
		return stats, err
	}
	stats.TrialUsers = stats.TotalUsers - stats.PremiumUsers
	if stats.TotalQuestions, err = s.QuestionCount(); err != nil {
		return stats, err
	}
	if stats.TotalSessions, err = s.SessionCount(); err != nil {
		return stats, err
	}
	if stats.TotalCodes, err = s.CodeCount(); err != nil {
		return stats, err
	}
	if stats.ActiveCodes, err = s.ActiveCodeCount(); err != nil {
		return stats, err
	}
	return stats, nil
}
