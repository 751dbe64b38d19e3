package store

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/prepstack/prepstack/internal/model"
)

const userColumns = `id, full_name, email, phone, password_hash, role,
	registration_date, is_premium, premium_expires_at, used_unlock_code`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.FullName, &u.Email, &u.Phone, &u.PasswordHash,
		&u.Role, &u.RegistrationDate, &u.IsPremium, &u.PremiumExpiresAt, &u.UsedUnlockCode)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// CreateUser inserts a new user. Returns ErrEmailTaken if the email is
// already registered; the unique index makes this safe against a racing
// duplicate registration.
func (s *Store) CreateUser(u model.User) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO users (full_name, email, phone, password_hash, role,
		 registration_date, is_premium, premium_expires_at, used_unlock_code)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.FullName, u.Email, u.Phone, u.PasswordHash, u.Role,
		u.RegistrationDate, u.IsPremium, u.PremiumExpiresAt, u.UsedUnlockCode,
	)
	if isUniqueViolation(err) {
		return 0, ErrEmailTaken
	}
	if err != nil {
		slog.Error("failed to create user", "email", u.Email, "error", err)
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	slog.Info("created user", "id", id, "email", u.Email, "role", u.Role)
	return id, nil
}

// GetUserByEmail returns a user by email, or nil if absent.
func (s *Store) GetUserByEmail(email string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRow(
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// GetUserByID returns a user by ID, or nil if absent.
func (s *Store) GetUserByID(id int64) (*model.User, error) {
	u, err := scanUser(s.db.QueryRow(
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// ListUsers returns all users, newest registration first.
func (s *Store) ListUsers() ([]model.User, error) {
	rows, err := s.db.Query(
		`SELECT ` + userColumns + ` FROM users ORDER BY registration_date DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// GrantPremium sets the premium flag and expiry by administrative override,
// bypassing the unlock-code flow.
func (s *Store) GrantPremium(userID int64, expiresAt time.Time) error {
	res, err := s.db.Exec(
		`UPDATE users SET is_premium = 1, premium_expires_at = ? WHERE id = ?`,
		expiresAt, userID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	slog.Info("granted premium", "user_id", userID, "expires_at", expiresAt)
	return nil
}

// RevokePremium clears the premium flag and expiry.
func (s *Store) RevokePremium(userID int64) error {
	res, err := s.db.Exec(
		`UPDATE users SET is_premium = 0, premium_expires_at = NULL WHERE id = ?`,
		userID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	slog.Info("revoked premium", "user_id", userID)
	return nil
}

// UserCount returns the total number of users.
func (s *Store) UserCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count)
	return count, err
}

// PremiumUserCount returns the number of users with the premium flag set.
func (s *Store) PremiumUserCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM users WHERE is_premium = 1`).Scan(&count)
	return count, err
}
