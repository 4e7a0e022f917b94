package auth

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/lostfound/internal/db"
	"github.com/erazemk/lostfound/internal/imaging"
	"github.com/erazemk/lostfound/internal/itemstore"
	"github.com/erazemk/lostfound/internal/model"
	"github.com/erazemk/lostfound/internal/store"
)

func TestGuestProvider(t *testing.T) {
	var p Provider = Guest{}
	assert.False(t, p.RequiresCredentials())

	sess, err := p.SignIn(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, model.GuestID, sess.ID)
	assert.Equal(t, model.GuestEmail, sess.Email)
	assert.Equal(t, model.GuestDisplayName, sess.DisplayName)
}

func TestProviderFor(t *testing.T) {
	database := db.NewTestDB(t)

	assert.IsType(t, &Accounts{}, ProviderFor(itemstore.KindRemote, database, zerolog.Nop()))
	assert.IsType(t, Guest{}, ProviderFor(itemstore.KindLocal, database, zerolog.Nop()))
}

func TestAccountsSignIn(t *testing.T) {
	accounts := NewAccounts(db.NewTestDB(t), zerolog.Nop())
	ctx := context.Background()

	account, err := accounts.Register(ctx, "Ana@Example.com", "Ana", "correct-horse")
	require.NoError(t, err)

	sess, err := accounts.SignIn(ctx, "ana@example.com", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, account.ID, sess.ID)
	assert.Equal(t, "ana@example.com", sess.Email)
	assert.Equal(t, "Ana", sess.DisplayName)

	tests := map[string][2]string{
		"wrong password": {"ana@example.com", "battery-staple"},
		"unknown email":  {"bob@example.com", "correct-horse"},
		"empty":          {"", ""},
	}
	for name, creds := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := accounts.SignIn(ctx, creds[0], creds[1])
			assert.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestAccountsRegisterRules(t *testing.T) {
	accounts := NewAccounts(db.NewTestDB(t), zerolog.Nop())
	ctx := context.Background()

	_, err := accounts.Register(ctx, "ana@example.com", "Ana", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, err = accounts.Register(ctx, "ana@example.com", "Ana", "long-enough")
	require.NoError(t, err)
	_, err = accounts.Register(ctx, "ANA@example.com", "Other", "long-enough")
	assert.ErrorIs(t, err, store.ErrEmailTaken)
}

func TestAccountsChangePassword(t *testing.T) {
	accounts := NewAccounts(db.NewTestDB(t), zerolog.Nop())
	ctx := context.Background()

	account, err := accounts.Register(ctx, "ana@example.com", "Ana", "first-password")
	require.NoError(t, err)

	assert.ErrorIs(t, accounts.ChangePassword(ctx, account.ID, "wrong", "second-password"), ErrInvalidCredentials)
	assert.ErrorIs(t, accounts.ChangePassword(ctx, account.ID, "first-password", "short"), ErrWeakPassword)
	require.NoError(t, accounts.ChangePassword(ctx, account.ID, "first-password", "second-password"))

	_, err = accounts.SignIn(ctx, "ana@example.com", "first-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = accounts.SignIn(ctx, "ana@example.com", "second-password")
	assert.NoError(t, err)
}

func TestAccountsSetAvatar(t *testing.T) {
	database := db.NewTestDB(t)
	accounts := NewAccounts(database, zerolog.Nop())
	ctx := context.Background()

	account, err := accounts.Register(ctx, "ana@example.com", "Ana", "first-password")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 400, 300))))
	require.NoError(t, accounts.SetAvatar(ctx, account.ID, &buf))

	data, mime, err := store.GetAvatar(ctx, database, account.ID)
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", mime)
	assert.NotEmpty(t, data)

	sess, err := accounts.SignIn(ctx, "ana@example.com", "first-password")
	require.NoError(t, err)
	assert.Equal(t, "/avatars/"+account.ID, sess.PhotoURL)

	err = accounts.SetAvatar(ctx, account.ID, bytes.NewReader([]byte("plain text")))
	assert.ErrorIs(t, err, imaging.ErrUnsupportedFormat)
}

func TestGeneratePassword(t *testing.T) {
	a, err := GeneratePassword()
	require.NoError(t, err)
	b, err := GeneratePassword()
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(a), model.MinPasswordLength)
	assert.NotEqual(t, a, b)
}
