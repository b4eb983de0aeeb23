package identity

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// SignatureLength is the size of an r||s||v secp256k1 signature.
const SignatureLength = 65

var (
	// ErrInvalidSignature indicates a malformed or unrecoverable signature.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrSignatureMismatch indicates a valid signature from the wrong key.
	ErrSignatureMismatch = errors.New("signature does not match address")
	// ErrInvalidAddress indicates a string that is not a 20-byte hex address.
	ErrInvalidAddress = errors.New("invalid address")
	// ErrInvalidKey indicates an unusable provider private key.
	ErrInvalidKey = errors.New("invalid provider key")
)

// ParseAddress validates and decodes a hex address. Checksums are not
// enforced; comparison happens on the decoded bytes.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, ErrInvalidAddress
	}
	return common.HexToAddress(s), nil
}
