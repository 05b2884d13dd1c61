// TransitBook | 2026
// security.go

package core

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost          = 12
	DefaultMaxConcurrentHashes = 8
)

// PasswordHasher wraps bcrypt with a fixed work factor and a concurrency
// bound so a login flood cannot exhaust CPU shared with other handlers.
type PasswordHasher struct {
	cost      int
	sem       chan struct{}
	dummyHash string
}

func NewPasswordHasher(cost, maxConcurrent int) (*PasswordHasher, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentHashes
	}

	dummy, err := bcrypt.GenerateFromPassword(
		[]byte("transitbook-timing-equalizer"),
		cost,
	)
	if err != nil {
		return nil, fmt.Errorf("generate dummy hash: %w", err)
	}

	return &PasswordHasher{
		cost:      cost,
		sem:       make(chan struct{}, maxConcurrent),
		dummyHash: string(dummy),
	}, nil
}

func (h *PasswordHasher) acquire(ctx context.Context) error {
	select {
	case h.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("acquire hash slot: %w", ctx.Err())
	}
}

func (h *PasswordHasher) release() {
	<-h.sem
}

func (h *PasswordHasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.acquire(ctx); err != nil {
		return "", err
	}
	defer h.release()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	return string(hash), nil
}

// Verify reports whether password matches hash. A malformed hash is
// treated as a mismatch, never an error.
func (h *PasswordHasher) Verify(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// VerifyTimingSafe behaves like Verify but always performs a bcrypt
// comparison, substituting an internal dummy hash when the account has
// no stored credential. The response time is then indistinguishable
// between unknown-account and wrong-password.
func (h *PasswordHasher) VerifyTimingSafe(
	ctx context.Context,
	password string,
	hash *string,
) (bool, error) {
	if err := h.acquire(ctx); err != nil {
		return false, err
	}
	defer h.release()

	target := h.dummyHash
	if hash != nil && *hash != "" {
		target = *hash
	}

	matched := bcrypt.CompareHashAndPassword(
		[]byte(target),
		[]byte(password),
	) == nil

	if hash == nil || *hash == "" {
		return false, nil
	}

	return matched, nil
}

func (h *PasswordHasher) Cost() int {
	return h.cost
}
