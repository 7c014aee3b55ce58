package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         UUID PRIMARY KEY,
		identifier TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_identifier ON users (identifier);`,
}

// InitSchema creates the tables this service owns. Safe to run repeatedly.
func InitSchema(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// DropSchema removes everything InitSchema created.
func DropSchema(ctx context.Context, db *pgxpool.Pool) error {
	if _, err := db.Exec(ctx, `DROP TABLE IF EXISTS users;`); err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}
	return nil
}
