package core

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"inventario/internal/config"
)

// SerialGenerator produces a serial number for items created without one.
type SerialGenerator func() (string, error)

// NumericSerials generates 6-digit serials in [100000, 999999].
func NumericSerials() SerialGenerator {
	span := big.NewInt(900000)
	return func() (string, error) {
		n, err := rand.Int(rand.Reader, span)
		if err != nil {
			return "", fmt.Errorf("generate serial: %w", err)
		}
		return fmt.Sprintf("%06d", n.Int64()+100000), nil
	}
}

// TokenSerials generates 8-character upper-case hex serials from a random uuid.
func TokenSerials() SerialGenerator {
	return func() (string, error) {
		id := strings.ReplaceAll(uuid.New().String(), "-", "")
		return strings.ToUpper(id[:8]), nil
	}
}

// SerialsForStyle maps a configured style to its generator.
func SerialsForStyle(style string) SerialGenerator {
	if style == config.SerialToken {
		return TokenSerials()
	}
	return NumericSerials()
}
