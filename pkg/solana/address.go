// Package solana holds the small amount of Solana address handling the tracker needs.
package solana

import (
	"errors"
	"fmt"
	"strings"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

const (
	// WrappedSOLMint is the quote token for swaps and the default chart.
	WrappedSOLMint = "So11111111111111111111111111111111111111112"
	// PublicKeyLength is the decoded size of a Solana account address.
	PublicKeyLength = 32
)

var ErrInvalidAddress = errors.New("invalid solana address")

// ValidateMint checks that addr is base58 and decodes to a 32 byte public key.
func ValidateMint(addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return fmt.Errorf("%w: empty", ErrInvalidAddress)
	}
	raw, err := base58.Decode(addr)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) != PublicKeyLength {
		return fmt.Errorf("%w: decoded to %d bytes", ErrInvalidAddress, len(raw))
	}
	return nil
}

// IsOnCurve reports whether addr is a point on the ed25519 curve. Program derived
// addresses are deliberately off-curve.
func IsOnCurve(addr string) bool {
	raw, err := base58.Decode(addr)
	if err != nil || len(raw) != PublicKeyLength {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}

// AddressKind describes an address for display.
func AddressKind(addr string) string {
	if ValidateMint(addr) != nil {
		return "invalid"
	}
	if IsOnCurve(addr) {
		return "keypair"
	}
	return "program-derived"
}
