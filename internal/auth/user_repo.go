package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/2beens/catalogsvc/pkg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ CredentialStore = (*UserRepo)(nil)

type UserRepo struct {
	db *pgxpool.Pool
}

func NewUserRepo(db *pgxpool.Pool) *UserRepo {
	return &UserRepo{
		db: db,
	}
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	err := r.db.QueryRow(
		ctx,
		`SELECT username, password_hash FROM app_user WHERE username = $1;`,
		username,
	).Scan(&user.Username, &user.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// Add stores a user with an already hashed password
func (r *UserRepo) Add(ctx context.Context, user User) error {
	if user.Username == "" || user.PasswordHash == "" {
		return errors.New("username or password hash empty")
	}

	_, err := r.db.Exec(
		ctx,
		`INSERT INTO app_user (username, password_hash) VALUES ($1, $2);`,
		user.Username, user.PasswordHash,
	)
	if err != nil {
		if pkg.IsUniqueViolationError(err) {
			return ErrUserExists
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}
