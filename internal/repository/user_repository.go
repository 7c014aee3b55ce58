package repository

import (
	"context"
	"errors"
	"fmt"

	"sentinal-assist/internal/domain/user"
	sentinal_errors "sentinal-assist/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresUserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) UserRepository {
	return &PostgresUserRepository{db: db}
}

func (r *PostgresUserRepository) GetUserByIdentifier(ctx context.Context, identifier string) (user.User, error) {
	const q = `SELECT id, identifier, created_at FROM users WHERE identifier = $1`

	var u user.User
	err := r.db.QueryRow(ctx, q, identifier).Scan(&u.ID, &u.Identifier, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, sentinal_errors.ErrNotFound
		}
		return user.User{}, fmt.Errorf("get user by identifier: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *user.User) error {
	const q = `INSERT INTO users (id, identifier, created_at) VALUES ($1, $2, $3)`

	if _, err := r.db.Exec(ctx, q, u.ID, u.Identifier, u.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return sentinal_errors.ErrAlreadyExists
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}
