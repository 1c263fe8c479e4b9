package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	catalogerrors "github.com/abgdnv/gocatalog/internal/errors"
	"github.com/abgdnv/gocatalog/internal/store"
	"github.com/abgdnv/gocatalog/pkg/auth"
	"golang.org/x/crypto/bcrypt"
)

// AuthService registers API users and issues their access tokens.
type AuthService interface {
	// Register returns ErrUserExists if the username is taken.
	Register(ctx context.Context, user RegisterDto) (*UserDto, error)

	// Login returns ErrInvalidCredentials for an unknown user or a wrong password.
	Login(ctx context.Context, credentials LoginDto) (*TokenDto, error)
}

// RegisterDto represents the data transfer object for registering a user.
type RegisterDto struct {
	Username        string `json:"username" validate:"required,max=50"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=6"`
	ConfirmPassword string `json:"confirm_password" validate:"required,eqfield=Password"`
}

// LoginDto represents the data transfer object for a login request.
type LoginDto struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UserDto struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

type TokenDto struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Auth implements AuthService with bcrypt password hashes.
type Auth struct {
	users      store.UserStore
	issuer     auth.Issuer
	bcryptCost int
	logger     *slog.Logger
}

var _ AuthService = (*Auth)(nil)

func NewAuthService(users store.UserStore, issuer auth.Issuer, bcryptCost int, logger *slog.Logger) *Auth {
	return &Auth{
		users:      users,
		issuer:     issuer,
		bcryptCost: bcryptCost,
		logger:     logger.With("component", "auth_service"),
	}
}

func (a *Auth) Register(ctx context.Context, user RegisterDto) (*UserDto, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(user.Password), a.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	created, err := a.users.Create(ctx, store.User{
		Username:     user.Username,
		Email:        user.Email,
		PasswordHash: hash,
	})
	if err != nil {
		return nil, err
	}
	a.logger.InfoContext(ctx, "User registered", "user_id", created.ID)
	return &UserDto{
		ID:        created.ID,
		Username:  created.Username,
		Email:     created.Email,
		CreatedAt: created.CreatedAt,
	}, nil
}

func (a *Auth) Login(ctx context.Context, credentials LoginDto) (*TokenDto, error) {
	user, err := a.users.GetByUsername(ctx, credentials.Username)
	if errors.Is(err, catalogerrors.ErrUserNotFound) {
		return nil, catalogerrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(credentials.Password)); err != nil {
		return nil, catalogerrors.ErrInvalidCredentials
	}

	token, expiresAt, err := a.issuer.Issue(user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}
	return &TokenDto{Token: token, ExpiresAt: expiresAt}, nil
}
