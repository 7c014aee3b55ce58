package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math/big"
	"time"

	"sentinal-assist/internal/domain/otp"
	"sentinal-assist/internal/domain/user"
	"sentinal-assist/internal/metrics"
	"sentinal-assist/internal/repository"
	sentinal_errors "sentinal-assist/pkg/errors"
	"sentinal-assist/pkg/logger"
)

const (
	OTPSentMessage    = "OTP sent successfully (Check console for mock OTP)"
	InvalidOTPMessage = "Invalid OTP"
)

var codeSpace = big.NewInt(1_000_000)

// AuthMetrics receives OTP issue and verification outcomes.
type AuthMetrics interface {
	RecordOTPIssued()
	RecordOTPVerification(result string)
}

type nopAuthMetrics struct{}

func (nopAuthMetrics) RecordOTPIssued() {}
func (nopAuthMetrics) RecordOTPVerification(string) {}

type AuthService struct {
	userRepo repository.UserRepository
	otpStore repository.OTPStore
	hasher   CodeHasher
	notifier Notifier
	tokens   TokenIssuer
	otpTTL   time.Duration
	random   io.Reader
	now      func() time.Time
	logger   *logger.Logger
	metrics  AuthMetrics
}

type AuthOption func(*AuthService)

func WithCodeHasher(h CodeHasher) AuthOption { return func(s *AuthService) { s.hasher = h } }

func WithNotifier(n Notifier) AuthOption { return func(s *AuthService) { s.notifier = n } }

func WithTokenIssuer(t TokenIssuer) AuthOption { return func(s *AuthService) { s.tokens = t } }

// WithOTPTTL bounds how long an issued code stays valid. Zero keeps codes
// until they are used or replaced.
func WithOTPTTL(ttl time.Duration) AuthOption { return func(s *AuthService) { s.otpTTL = ttl } }

func WithRandom(r io.Reader) AuthOption { return func(s *AuthService) { s.random = r } }

func WithClock(now func() time.Time) AuthOption { return func(s *AuthService) { s.now = now } }

func WithLogger(l *logger.Logger) AuthOption { return func(s *AuthService) { s.logger = l } }

func WithAuthMetrics(m AuthMetrics) AuthOption { return func(s *AuthService) { s.metrics = m } }

func NewAuthService(userRepo repository.UserRepository, otpStore repository.OTPStore, opts ...AuthOption) *AuthService {
	s := &AuthService{
		userRepo: userRepo,
		otpStore: otpStore,
		random:   rand.Reader,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.NewNop()
	}
	if s.hasher == nil {
		s.hasher = NewBcryptHasher(0)
	}
	if s.notifier == nil {
		s.notifier = NewLogNotifier(s.logger)
	}
	if s.tokens == nil {
		s.tokens = NewMockTokenIssuer(s.now)
	}
	if s.metrics == nil {
		s.metrics = nopAuthMetrics{}
	}
	return s
}

type SendOTPResult struct {
	Message string
}

type VerifyOTPResult struct {
	Success bool
	Token   string
	Message string
}

// SendOTP issues a fresh code for identifier, replacing any pending one, and
// hands it to the notifier.
func (s *AuthService) SendOTP(ctx context.Context, identifier string) (SendOTPResult, error) {
	code, err := s.generateCode()
	if err != nil {
		return SendOTPResult{}, fmt.Errorf("generate otp: %w", err)
	}

	hash, err := s.hasher.Hash(code)
	if err != nil {
		return SendOTPResult{}, fmt.Errorf("hash otp: %w", err)
	}

	now := s.now()
	rec := otp.Record{
		Identifier: identifier,
		CodeHash:   hash,
		IssuedAt:   now,
	}
	if s.otpTTL > 0 {
		rec.ExpiresAt = now.Add(s.otpTTL)
	}

	if err := s.otpStore.Put(ctx, rec); err != nil {
		return SendOTPResult{}, err
	}

	if err := s.notifier.Deliver(ctx, identifier, code); err != nil {
		return SendOTPResult{}, fmt.Errorf("deliver otp: %w", err)
	}
	s.metrics.RecordOTPIssued()

	return SendOTPResult{Message: OTPSentMessage}, nil
}

// VerifyOTP checks code against the pending record for identifier. A wrong,
// missing, or expired code is a normal unsuccessful result, not an error.
// On success the user is created if needed and the code is consumed.
func (s *AuthService) VerifyOTP(ctx context.Context, identifier, code string) (VerifyOTPResult, error) {
	res, err := s.verify(ctx, identifier, code)
	switch {
	case err != nil:
		s.metrics.RecordOTPVerification(metrics.ResultError)
	case res.Success:
		s.metrics.RecordOTPVerification(metrics.ResultSuccess)
	default:
		s.metrics.RecordOTPVerification(metrics.ResultInvalid)
	}
	return res, err
}

func (s *AuthService) verify(ctx context.Context, identifier, code string) (VerifyOTPResult, error) {
	rec, err := s.otpStore.Get(ctx, identifier)
	if errors.Is(err, sentinal_errors.ErrNotFound) {
		return invalidOTP(), nil
	}
	if err != nil {
		return VerifyOTPResult{}, err
	}

	if !s.hasher.Compare(rec.CodeHash, code) {
		return invalidOTP(), nil
	}

	u, err := s.ensureUser(ctx, identifier)
	if err != nil {
		return VerifyOTPResult{}, err
	}

	consumed, err := s.otpStore.DeleteIfMatch(ctx, identifier, rec.CodeHash)
	if err != nil {
		return VerifyOTPResult{}, err
	}
	if !consumed {
		// used by a concurrent verification or replaced by a newer code
		return invalidOTP(), nil
	}

	token, err := s.tokens.Issue(u)
	if err != nil {
		return VerifyOTPResult{}, fmt.Errorf("issue token: %w", err)
	}

	return VerifyOTPResult{Success: true, Token: token}, nil
}

func (s *AuthService) ensureUser(ctx context.Context, identifier string) (user.User, error) {
	u, err := s.userRepo.GetUserByIdentifier(ctx, identifier)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, sentinal_errors.ErrNotFound) {
		return user.User{}, err
	}

	newUser := user.New(identifier, s.now())
	if err := s.userRepo.Create(ctx, newUser); err != nil {
		if errors.Is(err, sentinal_errors.ErrAlreadyExists) {
			return s.userRepo.GetUserByIdentifier(ctx, identifier)
		}
		return user.User{}, err
	}

	s.logger.WithContext(ctx).Infof("Created new user: %s", identifier)
	return *newUser, nil
}

func (s *AuthService) generateCode() (string, error) {
	n, err := rand.Int(s.random, codeSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otp.CodeLength, n.Int64()), nil
}

func invalidOTP() VerifyOTPResult {
	return VerifyOTPResult{Success: false, Message: InvalidOTPMessage}
}
