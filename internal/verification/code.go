package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

const (
	DefaultTTL = 10 * time.Minute

	codeMin = 100000
	codeMax = 999999
)

var (
	ErrCodeNotFound = errors.New("verification code not found")
	ErrUnknownAdmin = errors.New("unknown admin")
)

// Code is a one-time second factor issued after a successful password check.
type Code struct {
	AdminID   string
	Code      string
	ExpiresAt time.Time
}

func (c *Code) IsExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// Store keeps at most one live code per admin.
type Store interface {
	// Create persists a new code, superseding any earlier code of the same admin.
	Create(ctx context.Context, adminID, code string, expiresAt time.Time) (*Code, error)
	// Consume atomically removes and returns the code matching adminID and code that is
	// still valid at now. ErrCodeNotFound covers wrong, expired and already used codes.
	Consume(ctx context.Context, adminID, code string, now time.Time) (*Code, error)
}

// Generate returns a uniformly random 6 digit code in [100000, 999999].
func Generate() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeMax-codeMin+1))
	if err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}

// IsWellFormed reports whether s looks like a code Generate could have produced.
func IsWellFormed(s string) bool {
	if len(s) != 6 || s[0] == '0' {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
