package otp

import "time"

// CodeLength is the number of digits in an issued code.
const CodeLength = 6

// Record is the pending one-time code for an identifier. Only a hash of the
// code is kept.
type Record struct {
	Identifier string    `json:"identifier"`
	CodeHash   string    `json:"code_hash"`
	IssuedAt   time.Time `json:"issued_at"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
}

// Expired reports whether the record is past its deadline. A zero ExpiresAt
// never expires.
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && !now.Before(r.ExpiresAt)
}
