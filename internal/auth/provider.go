package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/lostfound/internal/imaging"
	"github.com/erazemk/lostfound/internal/itemstore"
	"github.com/erazemk/lostfound/internal/model"
	"github.com/erazemk/lostfound/internal/store"
)

// Sign-in errors.
var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = fmt.Errorf("password must be at least %d characters", model.MinPasswordLength)
)

// Provider signs users in.
type Provider interface {
	// Name identifies the provider in logs and templates.
	Name() string
	// RequiresCredentials reports whether SignIn checks email and password.
	RequiresCredentials() bool
	SignIn(ctx context.Context, email, password string) (*model.Session, error)
}

// ProviderFor picks the sign-in provider matching the item backend. Shared
// boards need real identities; a local board has a single guest.
func ProviderFor(kind itemstore.Kind, db *sql.DB, logger zerolog.Logger) Provider {
	if kind == itemstore.KindRemote {
		return NewAccounts(db, logger)
	}
	return Guest{}
}

// Guest signs everyone in as the shared local guest.
type Guest struct{}

// Name implements Provider.
func (Guest) Name() string { return "guest" }

// RequiresCredentials implements Provider.
func (Guest) RequiresCredentials() bool { return false }

// SignIn implements Provider.
func (Guest) SignIn(context.Context, string, string) (*model.Session, error) {
	return model.GuestSession(), nil
}

// Accounts signs users in against the accounts table.
type Accounts struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewAccounts creates an account provider.
func NewAccounts(db *sql.DB, logger zerolog.Logger) *Accounts {
	return &Accounts{db: db, logger: logger.With().Str("component", "accounts").Logger()}
}

// Name implements Provider.
func (a *Accounts) Name() string { return "accounts" }

// RequiresCredentials implements Provider.
func (a *Accounts) RequiresCredentials() bool { return true }

// SignIn implements Provider.
func (a *Accounts) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	account, err := store.GetAccountByEmail(ctx, a.db, email)
	if err != nil {
		return nil, fmt.Errorf("looking up account: %w", err)
	}
	if account == nil {
		a.logger.Warn().Str("email", email).Msg("Sign-in for unknown account")
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		a.logger.Warn().Str("email", email).Msg("Sign-in with wrong password")
		return nil, ErrInvalidCredentials
	}

	a.logger.Info().Str("account_id", account.ID).Msg("Signed in")
	return account.Session(), nil
}

// Register creates an account with the given password.
func (a *Accounts) Register(ctx context.Context, email, displayName, password string) (*model.Account, error) {
	if len(password) < model.MinPasswordLength {
		return nil, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}
	account, err := store.CreateAccount(ctx, a.db, email, displayName, string(hash))
	if err != nil {
		return nil, err
	}
	a.logger.Info().Str("account_id", account.ID).Str("email", account.Email).Msg("Account created")
	return account, nil
}

// ChangePassword replaces the password after verifying the current one.
func (a *Accounts) ChangePassword(ctx context.Context, id, current, next string) error {
	account, err := store.GetAccount(ctx, a.db, id)
	if err != nil {
		return fmt.Errorf("looking up account: %w", err)
	}
	if account == nil {
		return ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(current)); err != nil {
		return ErrInvalidCredentials
	}
	if len(next) < model.MinPasswordLength {
		return ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	return store.UpdateAccountPassword(ctx, a.db, id, string(hash))
}

// SetAvatar processes the uploaded image and stores it for the account.
func (a *Accounts) SetAvatar(ctx context.Context, id string, r io.Reader) error {
	avatar, err := imaging.ProcessAvatar(r)
	if err != nil {
		return err
	}
	if err := store.SetAvatar(ctx, a.db, id, avatar.Data, avatar.MIME); err != nil {
		return err
	}
	a.logger.Info().Str("account_id", id).Int("bytes", len(avatar.Data)).Msg("Avatar updated")
	return nil
}

// GeneratedPasswordLength is the length of passwords from GeneratePassword.
const GeneratedPasswordLength = 16

// GeneratePassword returns a random password suitable for a new account.
func GeneratePassword() (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, GeneratedPasswordLength)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", fmt.Errorf("generating password: %w", err)
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
