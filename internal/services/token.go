package services

import (
	"strconv"
	"time"

	"sentinal-assist/internal/domain/user"

	"github.com/golang-jwt/jwt/v5"
)

const MockTokenPrefix = "mock-jwt-token-"

// TokenIssuer produces the credential returned after a successful login.
type TokenIssuer interface {
	Issue(u user.User) (string, error)
}

// MockTokenIssuer returns a placeholder token: a fixed prefix followed by
// the current time in unix milliseconds.
type MockTokenIssuer struct {
	now func() time.Time
}

func NewMockTokenIssuer(now func() time.Time) *MockTokenIssuer {
	if now == nil {
		now = time.Now
	}
	return &MockTokenIssuer{now: now}
}

func (m *MockTokenIssuer) Issue(_ user.User) (string, error) {
	return MockTokenPrefix + strconv.FormatInt(m.now().UnixMilli(), 10), nil
}

type AccessClaims struct {
	Identifier string `json:"identifier"`
	jwt.RegisteredClaims
}

// JWTTokenIssuer signs HS256 access tokens.
type JWTTokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewJWTTokenIssuer(secret string, ttl time.Duration, now func() time.Time) *JWTTokenIssuer {
	if now == nil {
		now = time.Now
	}
	return &JWTTokenIssuer{secret: []byte(secret), ttl: ttl, now: now}
}

func (j *JWTTokenIssuer) Issue(u user.User) (string, error) {
	now := j.now()
	claims := AccessClaims{
		Identifier: u.Identifier,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}
