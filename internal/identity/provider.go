package identity

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Provider is the service's own key pair: it signs protocol responses and
// issues chain transactions.
type Provider struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewProvider wraps an existing private key.
func NewProvider(key *ecdsa.PrivateKey) *Provider {
	return &Provider{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}
}

// ParseProvider loads a provider from a hex private key, with or without 0x.
func ParseProvider(hexKey string) (*Provider, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return NewProvider(key), nil
}

// Address returns the provider's on-chain identity.
func (p *Provider) Address() common.Address {
	return p.address
}

// SignDigest personal-signs digest and returns r||s||v with v in {27,28}.
func (p *Provider) SignDigest(digest common.Hash) ([]byte, error) {
	return SignDigest(p.key, digest)
}

// SignDigestHex is SignDigest encoded as a 0x-prefixed string.
func (p *Provider) SignDigestHex(digest common.Hash) (string, error) {
	sig, err := p.SignDigest(digest)
	if err != nil {
		return "", err
	}
	return hexutil.Encode(sig), nil
}

// SignTx signs a transaction for the given chain.
func (p *Provider) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(chainID), p.key)
}

// SignDigest personal-signs digest with key. Clients holding session keys use
// the same convention.
func SignDigest(key *ecdsa.PrivateKey, digest common.Hash) ([]byte, error) {
	sig, err := crypto.Sign(MessageHash(digest).Bytes(), key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}
