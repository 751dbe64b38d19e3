// Package store is the persistence layer: a SQLite database holding users,
// unlock codes, the question catalog and exam sessions. Uniqueness rules the
// rest of the system depends on (one account per email, one redemption per
// code, one answer row per question per session) are enforced here as schema
// constraints, not in handler code.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// Sentinel errors for business-rule failures. Anything else coming out of
// this package is a persistence failure.
var (
	// ErrEmailTaken means a user with that email already exists.
	ErrEmailTaken = errors.New("email already registered")
	// ErrCodeInvalid means the unlock code does not exist or was already used.
	ErrCodeInvalid = errors.New("invalid or already used unlock code")
	// ErrCodeExists means a generated code string collided with an existing one.
	ErrCodeExists = errors.New("unlock code already exists")
	// ErrNotFound means the referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNoAnswers means a session was completed with no recorded answers.
	ErrNoAnswers = errors.New("no answers recorded for this session")
	// ErrSessionCompleted means a terminal session was asked to change again.
	ErrSessionCompleted = errors.New("session already completed")
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	// busy_timeout makes the driver retry transient lock contention itself,
	// so callers see either success or a real failure.
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		full_name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		phone TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'student',
		registration_date DATETIME NOT NULL,
		is_premium INTEGER NOT NULL DEFAULT 0,
		premium_expires_at DATETIME,
		used_unlock_code TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS unlock_codes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		code TEXT NOT NULL UNIQUE,
		duration INTEGER NOT NULL,
		is_used INTEGER NOT NULL DEFAULT 0,
		generated_by INTEGER NOT NULL,
		generated_at DATETIME NOT NULL,
		used_by INTEGER,
		used_at DATETIME,
		FOREIGN KEY (generated_by) REFERENCES users(id),
		FOREIGN KEY (used_by) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS questions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		exam_type TEXT NOT NULL,
		subject TEXT NOT NULL,
		year INTEGER NOT NULL,
		topic TEXT NOT NULL DEFAULT '',
		question_type TEXT NOT NULL DEFAULT 'multiple-choice',
		question_text TEXT NOT NULL,
		question_image TEXT NOT NULL DEFAULT '',
		options TEXT NOT NULL,
		correct_answer TEXT NOT NULL,
		explanation TEXT NOT NULL DEFAULT '',
		difficulty TEXT NOT NULL DEFAULT 'medium'
	);

	CREATE TABLE IF NOT EXISTS exam_sessions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		exam_type TEXT NOT NULL,
		subject TEXT NOT NULL,
		year INTEGER NOT NULL DEFAULT 0,
		start_time DATETIME NOT NULL,
		duration INTEGER NOT NULL,
		total_questions INTEGER NOT NULL,
		end_time DATETIME,
		is_completed INTEGER NOT NULL DEFAULT 0,
		score INTEGER,
		FOREIGN KEY (user_id) REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS exam_answers (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id INTEGER NOT NULL,
		question_id INTEGER NOT NULL,
		selected_answer TEXT NOT NULL,
		is_correct INTEGER NOT NULL,
		marked_for_review INTEGER NOT NULL DEFAULT 0,
		UNIQUE (session_id, question_id),
		FOREIGN KEY (session_id) REFERENCES exam_sessions(id),
		FOREIGN KEY (question_id) REFERENCES questions(id)
	);

	CREATE TABLE IF NOT EXISTS import_metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// isUniqueViolation reports whether err is a SQLite unique-constraint failure.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
