package user

import (
	"time"

	"github.com/google/uuid"
)

// User represents the users table. Identifier is the email address or phone
// number the person logged in with and is unique.
type User struct {
	ID         uuid.UUID
	Identifier string
	CreatedAt  time.Time
}

func New(identifier string, now time.Time) *User {
	return &User{
		ID:         uuid.New(),
		Identifier: identifier,
		CreatedAt:  now,
	}
}
