package identity

import (
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// MessageHash applies the EIP-191 personal-message prefix to a digest. The
// protocol always signs this hash of the digest, never the digest itself.
func MessageHash(digest common.Hash) common.Hash {
	return common.BytesToHash(accounts.TextHash(digest.Bytes()))
}

// DecodeSignature parses a 0x-prefixed 65-byte signature.
func DecodeSignature(s string) ([]byte, error) {
	sig, err := hexutil.Decode(s)
	if err != nil || len(sig) != SignatureLength {
		return nil, ErrInvalidSignature
	}
	return sig, nil
}

// Recover returns the address that personal-signed digest.
func Recover(digest common.Hash, sig []byte) (common.Address, error) {
	if len(sig) != SignatureLength {
		return common.Address{}, ErrInvalidSignature
	}
	normalized := make([]byte, SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	if normalized[64] > 1 {
		return common.Address{}, ErrInvalidSignature
	}

	pub, err := crypto.SigToPub(MessageHash(digest).Bytes(), normalized)
	if err != nil {
		return common.Address{}, ErrInvalidSignature
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// Verify checks that the hex signature over digest recovers to claimed.
func Verify(digest common.Hash, signature string, claimed common.Address) error {
	sig, err := DecodeSignature(signature)
	if err != nil {
		return err
	}
	recovered, err := Recover(digest, sig)
	if err != nil {
		return err
	}
	if recovered != claimed {
		return ErrSignatureMismatch
	}
	return nil
}
