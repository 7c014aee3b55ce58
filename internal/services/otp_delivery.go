package services

import (
	"context"

	"sentinal-assist/pkg/logger"

	"golang.org/x/crypto/bcrypt"
)

// Notifier delivers a freshly issued code to its owner.
type Notifier interface {
	Deliver(ctx context.Context, identifier, code string) error
}

// LogNotifier writes the code to the operator log instead of sending it.
type LogNotifier struct {
	logger *logger.Logger
}

func NewLogNotifier(l *logger.Logger) *LogNotifier {
	return &LogNotifier{logger: l}
}

func (n *LogNotifier) Deliver(ctx context.Context, identifier, code string) error {
	n.logger.WithContext(ctx).Infof("Generated OTP for %s: %s", identifier, code)
	return nil
}

// CodeHasher turns codes into the form kept in the OTP store.
type CodeHasher interface {
	Hash(code string) (string, error)
	Compare(hash, code string) bool
}

type BcryptHasher struct {
	cost int
}

// NewBcryptHasher uses bcrypt.DefaultCost when cost is out of range.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(code string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(code), h.cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func (h *BcryptHasher) Compare(hash, code string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(code)) == nil
}
