package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	catalogerrors "github.com/abgdnv/gocatalog/internal/errors"
	"github.com/abgdnv/gocatalog/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// stubIssuer records the subject it was asked to sign.
type stubIssuer struct {
	subject string
	err     error
}

func (s *stubIssuer) Issue(subject string) (string, time.Time, error) {
	if s.err != nil {
		return "", time.Time{}, s.err
	}
	s.subject = subject
	return "token-for-" + subject, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), nil
}

func newTestAuth(users store.UserStore, issuer *stubIssuer) *Auth {
	return NewAuthService(users, issuer, bcrypt.MinCost, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func registerAlice(t *testing.T, a *Auth) {
	t.Helper()
	_, err := a.Register(context.Background(), RegisterDto{
		Username: "alice", Email: "alice@example.com", Password: "secret1", ConfirmPassword: "secret1",
	})
	require.NoError(t, err)
}

func Test_AuthService_Register(t *testing.T) {
	// given
	users := store.NewMemoryUserStore()
	a := newTestAuth(users, &stubIssuer{})

	// when
	created, err := a.Register(context.Background(), RegisterDto{
		Username: "alice", Email: "alice@example.com", Password: "secret1", ConfirmPassword: "secret1",
	})

	// then
	require.NoError(t, err)
	assert.Equal(t, "alice", created.Username)
	stored, err := users.GetByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotEqual(t, []byte("secret1"), stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword(stored.PasswordHash, []byte("secret1")))

	// when
	_, err = a.Register(context.Background(), RegisterDto{
		Username: "alice", Email: "other@example.com", Password: "secret2", ConfirmPassword: "secret2",
	})

	// then
	assert.ErrorIs(t, err, catalogerrors.ErrUserExists)
}

func Test_AuthService_Login(t *testing.T) {
	testCases := []struct {
		name        string
		credentials LoginDto
		issuerErr   error
		expectErr   error
	}{
		{
			name:        "Success - token issued",
			credentials: LoginDto{Username: "alice", Password: "secret1"},
		},
		{
			name:        "Error - unknown user",
			credentials: LoginDto{Username: "bob", Password: "secret1"},
			expectErr:   catalogerrors.ErrInvalidCredentials,
		},
		{
			name:        "Error - wrong password",
			credentials: LoginDto{Username: "alice", Password: "secret2"},
			expectErr:   catalogerrors.ErrInvalidCredentials,
		},
		{
			name:        "Error - signing failure",
			credentials: LoginDto{Username: "alice", Password: "secret1"},
			issuerErr:   errors.New("no key"),
			expectErr:   errors.New("failed to issue token: no key"),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			issuer := &stubIssuer{}
			a := newTestAuth(store.NewMemoryUserStore(), issuer)
			registerAlice(t, a)
			issuer.err = tc.issuerErr

			// when
			token, err := a.Login(context.Background(), tc.credentials)

			// then
			if tc.expectErr != nil {
				assert.Nil(t, token)
				if tc.issuerErr != nil {
					assert.EqualError(t, err, tc.expectErr.Error())
				} else {
					assert.ErrorIs(t, err, tc.expectErr)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "token-for-alice", token.Token)
			assert.Equal(t, "alice", issuer.subject)
			assert.False(t, token.ExpiresAt.IsZero())
		})
	}
}
