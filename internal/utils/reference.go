package utils

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const maxReferenceAttempts = 10

// NewBookingReference builds one candidate reference
// Format: PREFIX-YYYYMMDD-XXXXXX (6 hex chars)
// Example: KJ-20250610-A1B2C3
func NewBookingReference(prefix string, now time.Time) (string, error) {
	randomBytes := make([]byte, 3)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	randomStr := strings.ToUpper(hex.EncodeToString(randomBytes))

	return fmt.Sprintf("%s-%s-%s", strings.ToUpper(prefix), now.Format("20060102"), randomStr), nil
}

// GenerateBookingReference draws references until exists reports one unused
func GenerateBookingReference(ctx context.Context, prefix string, now time.Time, exists func(context.Context, string) (bool, error)) (string, error) {
	for attempts := 0; attempts < maxReferenceAttempts; attempts++ {
		ref, err := NewBookingReference(prefix, now)
		if err != nil {
			return "", err
		}

		taken, err := exists(ctx, ref)
		if err != nil {
			return "", fmt.Errorf("failed to check reference uniqueness: %w", err)
		}
		if !taken {
			return ref, nil
		}
	}

	return "", fmt.Errorf("failed to generate unique booking reference after %d attempts", maxReferenceAttempts)
}
