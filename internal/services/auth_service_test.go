package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"sentinal-assist/internal/domain/otp"
	"sentinal-assist/internal/domain/user"
	"sentinal-assist/internal/metrics"
	"sentinal-assist/internal/repository"
	sentinal_errors "sentinal-assist/pkg/errors"

	"golang.org/x/crypto/bcrypt"
)

var sixDigits = regexp.MustCompile(`^[0-9]{6}$`)

type recordingNotifier struct {
	mu    sync.Mutex
	codes map[string]string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{codes: make(map[string]string)}
}

func (n *recordingNotifier) Deliver(_ context.Context, identifier, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.codes[identifier] = code
	return nil
}

func (n *recordingNotifier) last(identifier string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.codes[identifier]
}

type authFixture struct {
	svc      *AuthService
	users    *repository.MemoryUserRepository
	otps     *repository.MemoryOTPStore
	notifier *recordingNotifier
}

func newAuthFixture(opts ...AuthOption) *authFixture {
	f := &authFixture{
		users:    repository.NewMemoryUserRepository(),
		otps:     repository.NewMemoryOTPStore(),
		notifier: newRecordingNotifier(),
	}
	base := []AuthOption{
		WithCodeHasher(NewBcryptHasher(bcrypt.MinCost)),
		WithNotifier(f.notifier),
	}
	f.svc = NewAuthService(f.users, f.otps, append(base, opts...)...)
	return f
}

func TestSendOTP_IssuesSixDigitCode(t *testing.T) {
	f := newAuthFixture()

	res, err := f.svc.SendOTP(context.Background(), "alice@example.com")
	if err != nil {
		t.Fatalf("SendOTP failed: %v", err)
	}
	if res.Message != OTPSentMessage {
		t.Errorf("unexpected message %q", res.Message)
	}

	code := f.notifier.last("alice@example.com")
	if !sixDigits.MatchString(code) {
		t.Errorf("expected 6-digit code, got %q", code)
	}
	if f.otps.Len() != 1 {
		t.Errorf("expected one pending record, got %d", f.otps.Len())
	}
}

func TestSendOTP_ZeroPadsSmallValues(t *testing.T) {
	// rand.Int over [0, 1e6) with an all-zero source yields 0
	f := newAuthFixture(WithRandom(strings.NewReader(strings.Repeat("\x00", 64))))

	if _, err := f.svc.SendOTP(context.Background(), "zero"); err != nil {
		t.Fatalf("SendOTP failed: %v", err)
	}
	if got := f.notifier.last("zero"); got != "000000" {
		t.Errorf("expected 000000, got %q", got)
	}
}

func TestVerifyOTP_SucceedsOnceThenFails(t *testing.T) {
	f := newAuthFixture(WithClock(func() time.Time { return time.UnixMilli(1700000000123) }))
	ctx := context.Background()

	if _, err := f.svc.SendOTP(ctx, "alice@example.com"); err != nil {
		t.Fatalf("SendOTP failed: %v", err)
	}
	code := f.notifier.last("alice@example.com")

	res, err := f.svc.VerifyOTP(ctx, "alice@example.com", code)
	if err != nil {
		t.Fatalf("VerifyOTP failed: %v", err)
	}
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Token != "mock-jwt-token-1700000000123" {
		t.Errorf("unexpected token %q", res.Token)
	}

	res, err = f.svc.VerifyOTP(ctx, "alice@example.com", code)
	if err != nil {
		t.Fatalf("VerifyOTP failed: %v", err)
	}
	if res.Success || res.Message != InvalidOTPMessage {
		t.Errorf("second verification must fail, got %+v", res)
	}
}

func TestVerifyOTP_WrongOrUnknownCodeLeavesStateAlone(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	res, _ := f.svc.VerifyOTP(ctx, "nobody@example.com", "123456")
	if res.Success || res.Message != InvalidOTPMessage {
		t.Errorf("never-issued code must fail, got %+v", res)
	}

	_, _ = f.svc.SendOTP(ctx, "bob@example.com")
	code := f.notifier.last("bob@example.com")
	wrong := "999999"
	if code == wrong {
		wrong = "000000"
	}

	res, _ = f.svc.VerifyOTP(ctx, "bob@example.com", wrong)
	if res.Success {
		t.Fatal("wrong code must fail")
	}
	if f.otps.Len() != 1 {
		t.Errorf("failed verification must not remove the record")
	}
	if f.users.Count() != 0 {
		t.Errorf("failed verification must not create a user")
	}

	res, _ = f.svc.VerifyOTP(ctx, "bob@example.com", code)
	if !res.Success {
		t.Error("correct code must still work after a wrong attempt")
	}
}

func TestVerifyOTP_ExactMatchOnly(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	_, _ = f.svc.SendOTP(ctx, "carol")
	code := f.notifier.last("carol")

	for _, attempt := range []string{" " + code, code + " ", code[:5], ""} {
		res, _ := f.svc.VerifyOTP(ctx, "carol", attempt)
		if res.Success {
			t.Errorf("attempt %q must not match %q", attempt, code)
		}
	}
}

func TestVerifyOTP_ReissueInvalidatesPrevious(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	_, _ = f.svc.SendOTP(ctx, "dave")
	first := f.notifier.last("dave")
	var second string
	for {
		_, _ = f.svc.SendOTP(ctx, "dave")
		second = f.notifier.last("dave")
		if second != first {
			break
		}
	}

	if res, _ := f.svc.VerifyOTP(ctx, "dave", first); res.Success {
		t.Error("old code must be invalid after reissue")
	}
	if res, _ := f.svc.VerifyOTP(ctx, "dave", second); !res.Success {
		t.Error("new code must verify")
	}
}

func TestVerifyOTP_CreatesUserOnce(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, _ = f.svc.SendOTP(ctx, "erin@example.com")
		res, err := f.svc.VerifyOTP(ctx, "erin@example.com", f.notifier.last("erin@example.com"))
		if err != nil || !res.Success {
			t.Fatalf("cycle %d failed: %+v %v", i, res, err)
		}
	}

	if f.users.Count() != 1 {
		t.Errorf("expected exactly one user, got %d", f.users.Count())
	}
	u, err := f.users.GetUserByIdentifier(ctx, "erin@example.com")
	if err != nil || u.Identifier != "erin@example.com" {
		t.Errorf("user not stored correctly: %+v %v", u, err)
	}
}

func TestVerifyOTP_ExpiredCode(t *testing.T) {
	now := time.Now()
	f := newAuthFixture(
		WithOTPTTL(5*time.Minute),
		WithClock(func() time.Time { return now }),
	)
	ctx := context.Background()

	_, _ = f.svc.SendOTP(ctx, "frank")
	rec, err := f.otps.Get(ctx, "frank")
	if err != nil {
		t.Fatalf("record missing: %v", err)
	}
	if !rec.ExpiresAt.Equal(now.Add(5 * time.Minute)) {
		t.Errorf("unexpected deadline %s", rec.ExpiresAt)
	}

	// expire it in the store directly
	rec.ExpiresAt = time.Now().Add(-time.Second)
	_ = f.otps.Put(ctx, rec)

	res, _ := f.svc.VerifyOTP(ctx, "frank", f.notifier.last("frank"))
	if res.Success {
		t.Error("expired code must fail")
	}
}

func TestVerifyOTP_ConcurrentVerificationsSucceedOnce(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()
	_, _ = f.svc.SendOTP(ctx, "grace")
	code := f.notifier.last("grace")

	var wg sync.WaitGroup
	var mu sync.Mutex
	successes := 0
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.VerifyOTP(ctx, "grace", code)
			if err == nil && res.Success {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if successes != 1 {
		t.Errorf("expected exactly one success, got %d", successes)
	}
	if f.users.Count() != 1 {
		t.Errorf("expected one user, got %d", f.users.Count())
	}
}

type failingStore struct {
	repository.OTPStore
	err error
}

func (s failingStore) Put(context.Context, otp.Record) error { return s.err }

func (s failingStore) Get(context.Context, string) (otp.Record, error) {
	return otp.Record{}, s.err
}

func TestAuthService_StoreFailuresPropagate(t *testing.T) {
	storeErr := errors.New("connection refused")
	svc := NewAuthService(repository.NewMemoryUserRepository(), failingStore{err: storeErr},
		WithCodeHasher(NewBcryptHasher(bcrypt.MinCost)), WithNotifier(newRecordingNotifier()))

	if _, err := svc.SendOTP(context.Background(), "x"); !errors.Is(err, storeErr) {
		t.Errorf("expected store error from SendOTP, got %v", err)
	}
	if _, err := svc.VerifyOTP(context.Background(), "x", "123456"); !errors.Is(err, storeErr) {
		t.Errorf("expected store error from VerifyOTP, got %v", err)
	}
}

type racingUserRepo struct {
	*repository.MemoryUserRepository
	lookups int
}

// GetUserByIdentifier reports a miss the first time, as if another request
// created the user between the lookup and the insert.
func (r *racingUserRepo) GetUserByIdentifier(ctx context.Context, identifier string) (user.User, error) {
	r.lookups++
	if r.lookups == 1 {
		_ = r.MemoryUserRepository.Create(ctx, user.New(identifier, time.Now()))
		return user.User{}, sentinal_errors.ErrNotFound
	}
	return r.MemoryUserRepository.GetUserByIdentifier(ctx, identifier)
}

func TestVerifyOTP_UserCreatedConcurrently(t *testing.T) {
	users := &racingUserRepo{MemoryUserRepository: repository.NewMemoryUserRepository()}
	notifier := newRecordingNotifier()
	svc := NewAuthService(users, repository.NewMemoryOTPStore(),
		WithCodeHasher(NewBcryptHasher(bcrypt.MinCost)), WithNotifier(notifier))
	ctx := context.Background()

	_, _ = svc.SendOTP(ctx, "heidi")
	res, err := svc.VerifyOTP(ctx, "heidi", notifier.last("heidi"))
	if err != nil || !res.Success {
		t.Fatalf("expected success despite duplicate insert, got %+v %v", res, err)
	}
	if users.Count() != 1 {
		t.Errorf("expected one user, got %d", users.Count())
	}
}

type countingMetrics struct {
	issued  int
	results []string
}

func (m *countingMetrics) RecordOTPIssued() { m.issued++ }
func (m *countingMetrics) RecordOTPVerification(result string) { m.results = append(m.results, result) }

func TestAuthService_RecordsMetrics(t *testing.T) {
	m := &countingMetrics{}
	f := newAuthFixture(WithAuthMetrics(m))
	ctx := context.Background()

	_, _ = f.svc.SendOTP(ctx, "ivan")
	code := f.notifier.last("ivan")
	_, _ = f.svc.VerifyOTP(ctx, "ivan", code)
	_, _ = f.svc.VerifyOTP(ctx, "ivan", code)

	if m.issued != 1 {
		t.Errorf("expected 1 issued code, got %d", m.issued)
	}
	want := []string{metrics.ResultSuccess, metrics.ResultInvalid}
	if len(m.results) != 2 || m.results[0] != want[0] || m.results[1] != want[1] {
		t.Errorf("results = %v, want %v", m.results, want)
	}
}
