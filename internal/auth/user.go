package auth

import (
	"context"
	"errors"
)

var (
	ErrUserNotFound = errors.New("user not found")
	ErrUserExists   = errors.New("user already exists")
)

type User struct {
	Username     string
	PasswordHash string
}

// CredentialStore is the persisted user lookup, username is unique
type CredentialStore interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
}
