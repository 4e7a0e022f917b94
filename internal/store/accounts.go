package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/erazemk/lostfound/internal/model"
)

// ErrEmailTaken is returned when an account with the same email exists.
var ErrEmailTaken = errors.New("email already registered")

const accountColumns = `id, email, display_name, password_hash, avatar IS NOT NULL, created_at`

// CreateAccount creates a new sign-in account. Emails are stored lowercase.
func CreateAccount(ctx context.Context, db *sql.DB, email, displayName, passwordHash string) (*model.Account, error) {
	email = normalizeEmail(email)

	existing, err := GetAccountByEmail(ctx, db, email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrEmailTaken
	}

	id := uuid.NewString()
	_, err = db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, display_name, password_hash) VALUES (?, ?, ?, ?)`,
		id, email, displayName, passwordHash,
	)
	if err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}

	return GetAccount(ctx, db, id)
}

// GetAccount returns an account by ID, or nil if it does not exist.
func GetAccount(ctx context.Context, db *sql.DB, id string) (*model.Account, error) {
	a, err := scanAccount(db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id,
	))
	if err != nil {
		return nil, fmt.Errorf("getting account: %w", err)
	}
	return a, nil
}

// GetAccountByEmail returns an account by email, or nil if it does not exist.
func GetAccountByEmail(ctx context.Context, db *sql.DB, email string) (*model.Account, error) {
	a, err := scanAccount(db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE email = ?`, normalizeEmail(email),
	))
	if err != nil {
		return nil, fmt.Errorf("getting account by email: %w", err)
	}
	return a, nil
}

// ListAccounts returns all accounts ordered by email.
func ListAccounts(ctx context.Context, db *sql.DB) ([]model.Account, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY email`)
	if err != nil {
		return nil, fmt.Errorf("listing accounts: %w", err)
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning account: %w", err)
		}
		accounts = append(accounts, *a)
	}
	return accounts, rows.Err()
}

// UpdateAccountPassword replaces an account's password hash.
func UpdateAccountPassword(ctx context.Context, db *sql.DB, id, passwordHash string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE accounts SET password_hash = ? WHERE id = ?`, passwordHash, id,
	)
	if err != nil {
		return fmt.Errorf("updating account password: %w", err)
	}
	return nil
}

// DeleteAccount removes an account. Items it reported keep their owner id.
func DeleteAccount(ctx context.Context, db *sql.DB, id string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	return nil
}

// SetAvatar stores an account's avatar image.
func SetAvatar(ctx context.Context, db *sql.DB, id string, image []byte, mime string) error {
	_, err := db.ExecContext(ctx,
		`UPDATE accounts SET avatar = ?, avatar_mime = ? WHERE id = ?`, image, mime, id,
	)
	if err != nil {
		return fmt.Errorf("setting avatar: %w", err)
	}
	return nil
}

// GetAvatar returns an account's avatar and its MIME type. Data is nil when
// the account has no avatar.
func GetAvatar(ctx context.Context, db *sql.DB, id string) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT avatar, avatar_mime FROM accounts WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting avatar: %w", err)
	}
	return image, mime.String, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (*model.Account, error) {
	a := &model.Account{}
	err := row.Scan(&a.ID, &a.Email, &a.DisplayName, &a.PasswordHash, &a.HasAvatar, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
