// Package directory implements the identity directory: registration,
// credential verification, and profile lookups over the user table.
package directory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/SkyMonder/SkyCallPro/internal/store"
)

// Sentinel errors surfaced to the REST layer.
var (
	ErrUserExists         = errors.New("username already taken")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

// UserStore is the subset of the store the directory needs.
type UserStore interface {
	CreateUser(ctx context.Context, user *store.User) error
	GetUser(ctx context.Context, username string) (*store.User, error)
	UpdateDisplayName(ctx context.Context, username, displayName string) error
	ListUsers(ctx context.Context) ([]store.User, error)
}

// Directory maps identities to profiles and verifies credentials.
type Directory struct {
	store  UserStore
	logger zerolog.Logger
}

// New creates a directory over the given user store.
func New(s UserStore, logger zerolog.Logger) *Directory {
	return &Directory{store: s, logger: logger}
}

// Register creates a new identity. The display name defaults to the
// username when empty.
func (d *Directory) Register(ctx context.Context, username, password, displayName string) (*store.User, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	if displayName == "" {
		displayName = username
	}

	existing, err := d.store.GetUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return nil, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := &store.User{
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := d.store.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	d.logger.Info().Str("username", username).Msg("user registered")
	return user, nil
}

// Verify checks a (username, password) pair and returns the profile.
func (d *Directory) Verify(ctx context.Context, username, password string) (*store.User, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := d.store.GetUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// Profile returns the profile for username.
func (d *Directory) Profile(ctx context.Context, username string) (*store.User, error) {
	user, err := d.store.GetUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

// UpdateDisplayName changes the display name, the one mutable profile field.
func (d *Directory) UpdateDisplayName(ctx context.Context, username, displayName string) error {
	if displayName == "" {
		displayName = username
	}
	if err := d.store.UpdateDisplayName(ctx, username, displayName); err != nil {
		return ErrUserNotFound
	}
	return nil
}

// List returns all registered identities ordered by username.
func (d *Directory) List(ctx context.Context) ([]store.User, error) {
	return d.store.ListUsers(ctx)
}
