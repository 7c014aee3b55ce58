package repository

import (
	"context"
	"sync"
	"time"

	"sentinal-assist/internal/domain/otp"
	sentinal_errors "sentinal-assist/pkg/errors"
)

// MemoryOTPStore is a process-local OTPStore. Expired records are hidden on
// read and removed by Sweep.
type MemoryOTPStore struct {
	mu      sync.Mutex
	records map[string]otp.Record
	now     func() time.Time
}

func NewMemoryOTPStore() *MemoryOTPStore {
	return &MemoryOTPStore{
		records: make(map[string]otp.Record),
		now:     time.Now,
	}
}

func (s *MemoryOTPStore) Put(_ context.Context, rec otp.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Identifier] = rec
	return nil
}

func (s *MemoryOTPStore) Get(_ context.Context, identifier string) (otp.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[identifier]
	if !ok || rec.Expired(s.now()) {
		return otp.Record{}, sentinal_errors.ErrNotFound
	}
	return rec, nil
}

func (s *MemoryOTPStore) DeleteIfMatch(_ context.Context, identifier, codeHash string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[identifier]
	if !ok || rec.CodeHash != codeHash {
		return false, nil
	}
	delete(s.records, identifier)
	return true, nil
}

// Sweep drops expired records and returns how many were removed.
func (s *MemoryOTPStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, id)
			removed++
		}
	}
	return removed
}

// RunJanitor calls Sweep every interval until ctx is done.
func (s *MemoryOTPStore) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Len returns the number of stored records, expired ones included.
func (s *MemoryOTPStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
