package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sentinal-assist/internal/domain/otp"
	sentinal_errors "sentinal-assist/pkg/errors"

	goredis "github.com/redis/go-redis/v9"
)

// Key pattern:
// - otp:{identifier} - pending code record, TTL from OTP_TTL (none when 0)

// deleteIfMatchScript removes the key only when the stored record still
// carries the expected code hash.
var deleteIfMatchScript = goredis.NewScript(`
	local raw = redis.call('GET', KEYS[1])
	if raw == false then
		return 0
	end
	local rec = cjson.decode(raw)
	if rec['code_hash'] ~= ARGV[1] then
		return 0
	end
	redis.call('DEL', KEYS[1])
	return 1
`)

// OTPStore keeps pending codes in Redis so they survive restarts and are
// shared between replicas.
type OTPStore struct {
	client *goredis.Client
}

func NewOTPStore(client *goredis.Client) *OTPStore {
	return &OTPStore{client: client}
}

func otpKey(identifier string) string {
	return fmt.Sprintf("otp:%s", identifier)
}

func (s *OTPStore) Put(ctx context.Context, rec otp.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	var ttl time.Duration
	if !rec.ExpiresAt.IsZero() {
		ttl = time.Until(rec.ExpiresAt)
		if ttl <= 0 {
			if err := s.client.Del(ctx, otpKey(rec.Identifier)).Err(); err != nil {
				return unavailable("store otp", err)
			}
			return nil
		}
	}
	if err := s.client.Set(ctx, otpKey(rec.Identifier), data, ttl).Err(); err != nil {
		return unavailable("store otp", err)
	}
	return nil
}

func (s *OTPStore) Get(ctx context.Context, identifier string) (otp.Record, error) {
	data, err := s.client.Get(ctx, otpKey(identifier)).Result()
	if errors.Is(err, goredis.Nil) {
		return otp.Record{}, sentinal_errors.ErrNotFound
	}
	if err != nil {
		return otp.Record{}, unavailable("load otp", err)
	}

	var rec otp.Record
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return otp.Record{}, fmt.Errorf("decode otp: %w", err)
	}
	if rec.Expired(time.Now()) {
		return otp.Record{}, sentinal_errors.ErrNotFound
	}
	return rec, nil
}

func (s *OTPStore) DeleteIfMatch(ctx context.Context, identifier, codeHash string) (bool, error) {
	n, err := deleteIfMatchScript.Run(ctx, s.client, []string{otpKey(identifier)}, codeHash).Int()
	if err != nil {
		return false, unavailable("consume otp", err)
	}
	return n == 1, nil
}

// unavailable marks a Redis failure so the API answers 503 instead of 500.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, sentinal_errors.ErrServiceUnavailable, err)
}
