package repository

import (
	"context"

	"sentinal-assist/internal/domain/otp"
	"sentinal-assist/internal/domain/user"
)

type UserRepository interface {
	GetUserByIdentifier(ctx context.Context, identifier string) (user.User, error)
	Create(ctx context.Context, u *user.User) error
}

// OTPStore holds at most one pending record per identifier.
type OTPStore interface {
	// Put stores rec, replacing any record for the same identifier.
	Put(ctx context.Context, rec otp.Record) error
	// Get returns ErrNotFound when no live record exists.
	Get(ctx context.Context, identifier string) (otp.Record, error)
	// DeleteIfMatch removes the record only while its hash still equals
	// codeHash and reports whether it did.
	DeleteIfMatch(ctx context.Context, identifier, codeHash string) (bool, error)
}
