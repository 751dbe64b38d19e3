package store

import (
	"log/slog"
	"time"

	"github.com/prepstack/prepstack/internal/model"
)

// CreateCode inserts a freshly generated unlock code. Returns ErrCodeExists
// if the code string collides with an existing row, so the caller can
// regenerate and retry.
func (s *Store) CreateCode(c model.UnlockCode) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO unlock_codes (code, duration, is_used, generated_by, generated_at)
		 VALUES (?, ?, 0, ?, ?)`,
		c.Code, c.Duration, c.GeneratedBy, c.GeneratedAt,
	)
	if isUniqueViolation(err) {
		return 0, ErrCodeExists
	}
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListCodes returns all unlock codes, newest first, with the redeeming
// user's identity where the code has been used.
func (s *Store) ListCodes() ([]model.UnlockCode, error) {
	rows, err := s.db.Query(
		`SELECT c.id, c.code, c.duration, c.is_used, c.generated_by, c.generated_at,
		        c.used_by, c.used_at,
		        COALESCE(u.full_name, ''), COALESCE(u.email, '')
		 FROM unlock_codes c
		 LEFT JOIN users u ON u.id = c.used_by
		 ORDER BY c.generated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var codes []model.UnlockCode
	for rows.Next() {
		var c model.UnlockCode
		if err := rows.Scan(&c.ID, &c.Code, &c.Duration, &c.IsUsed, &c.GeneratedBy,
			&c.GeneratedAt, &c.UsedBy, &c.UsedAt, &c.UsedByName, &c.UsedByEmail); err != nil {
			return nil, err
		}
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

// DeleteUnusedCode removes a code only while it is unused. Used codes are
// immutable and stay for the audit trail.
func (s *Store) DeleteUnusedCode(id int64) error {
	res, err := s.db.Exec(
		`DELETE FROM unlock_codes WHERE id = ? AND is_used = 0`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// RedeemCode consumes an unlock code for a user and returns the new premium
// expiry. Both writes happen in one transaction, and the code is claimed with
// a conditional update, so two racing redemptions of the same code produce
// exactly one success and one ErrCodeInvalid.
//
// The new expiry is now + duration months and replaces any premium time the
// user still had; redemption does not stack.
func (s *Store) RedeemCode(code string, userID int64, now time.Time) (time.Time, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return time.Time{}, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(
		`UPDATE unlock_codes SET is_used = 1, used_by = ?, used_at = ?
		 WHERE code = ? AND is_used = 0`,
		userID, now, code,
	)
	if err != nil {
		return time.Time{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return time.Time{}, ErrCodeInvalid
	}

	var duration int
	if err := tx.QueryRow(
		`SELECT duration FROM unlock_codes WHERE code = ?`, code,
	).Scan(&duration); err != nil {
		return time.Time{}, err
	}

	expiresAt := now.AddDate(0, duration, 0)
	res, err = tx.Exec(
		`UPDATE users SET is_premium = 1, premium_expires_at = ?, used_unlock_code = ?
		 WHERE id = ?`,
		expiresAt, code, userID,
	)
	if err != nil {
		return time.Time{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return time.Time{}, ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return time.Time{}, err
	}
	slog.Info("redeemed unlock code", "code", code, "user_id", userID,
		"months", duration, "expires_at", expiresAt)
	return expiresAt, nil
}

// CodeCount returns the total number of unlock codes.
func (s *Store) CodeCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM unlock_codes`).Scan(&count)
	return count, err
}

// ActiveCodeCount returns the number of codes not yet redeemed.
func (s *Store) ActiveCodeCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM unlock_codes WHERE is_used = 0`).Scan(&count)
	return count, err
}
