package identity

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/spliteth/spliteth/internal/digest"
)

// Fixed session key so failures are reproducible.
const testSessionKey = "7a9bbb765460f5bf28ae6ac1971ee888d2028a47755b04ec921f18030a1594b7"

func TestSignRecoverRoundTrip(t *testing.T) {
	sf, err := digest.SecondFactor("+32478163203")
	if err != nil {
		t.Fatalf("second factor: %v", err)
	}

	for i := 0; i < 8; i++ {
		key, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("generate key: %v", err)
		}
		session := crypto.PubkeyToAddress(key.PublicKey)
		d := digest.RequestDigest(session, sf)

		sig, err := SignDigest(key, d)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		if sig[64] != 27 && sig[64] != 28 {
			t.Fatalf("expected v in {27,28}, got %d", sig[64])
		}
		got, err := Recover(d, sig)
		if err != nil {
			t.Fatalf("recover: %v", err)
		}
		if got != session {
			t.Fatalf("expected %s got %s", session.Hex(), got.Hex())
		}
		if err := Verify(d, hexutil.Encode(sig), session); err != nil {
			t.Fatalf("verify: %v", err)
		}
	}
}

func TestRecoverAcceptsRawRecoveryID(t *testing.T) {
	key, _ := crypto.HexToECDSA(testSessionKey)
	d := digest.Hash(digest.String("hello"))
	sig, err := SignDigest(key, d)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig[64] -= 27
	got, err := Recover(d, sig)
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	if got != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("unexpected signer %s", got.Hex())
	}
}

func TestMutatedSignatureDoesNotVerify(t *testing.T) {
	key, _ := crypto.HexToECDSA(testSessionKey)
	session := crypto.PubkeyToAddress(key.PublicKey)
	sf, _ := digest.SecondFactor("+32478163203")
	d := digest.RequestDigest(session, sf)

	sig, err := SignDigest(key, d)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	for _, idx := range []int{0, 17, 31, 32, 50, 63} {
		mutated := append([]byte(nil), sig...)
		mutated[idx] ^= 0x01
		err := Verify(d, hexutil.Encode(mutated), session)
		if err == nil {
			t.Fatalf("mutation at byte %d still verified", idx)
		}
		if !errors.Is(err, ErrSignatureMismatch) && !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("unexpected error at byte %d: %v", idx, err)
		}
	}
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	key, _ := crypto.HexToECDSA(testSessionKey)
	other, _ := crypto.GenerateKey()
	d := digest.Hash(digest.String("x"))
	sig, _ := SignDigest(other, d)
	if err := Verify(d, hexutil.Encode(sig), crypto.PubkeyToAddress(key.PublicKey)); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected mismatch, got %v", err)
	}
}

func TestDecodeSignatureRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "0x", "deadbeef", "0x1234", "0x" + common.Bytes2Hex(make([]byte, 64))} {
		if _, err := DecodeSignature(s); !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("expected invalid signature for %q, got %v", s, err)
		}
	}
	sig := make([]byte, 65)
	sig[64] = 29
	if _, err := Recover(common.Hash{}, sig); !errors.Is(err, ErrInvalidSignature) {
		t.Fatalf("expected invalid signature for v=29, got %v", err)
	}
}

func TestProvider(t *testing.T) {
	p, err := ParseProvider("0x" + testSessionKey)
	if err != nil {
		t.Fatalf("parse provider: %v", err)
	}
	key, _ := crypto.HexToECDSA(testSessionKey)
	if p.Address() != crypto.PubkeyToAddress(key.PublicKey) {
		t.Fatalf("unexpected provider address %s", p.Address().Hex())
	}

	d := digest.Hash(digest.String("provider"))
	sigHex, err := p.SignDigestHex(d)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := Verify(d, sigHex, p.Address()); err != nil {
		t.Fatalf("verify provider signature: %v", err)
	}

	chainID := big.NewInt(8453)
	to := common.HexToAddress("0x0000000000000000000000000000000000000001")
	tx := types.NewTx(&types.LegacyTx{Nonce: 3, To: &to, Gas: 21000, GasPrice: big.NewInt(1)})
	signed, err := p.SignTx(tx, chainID)
	if err != nil {
		t.Fatalf("sign tx: %v", err)
	}
	from, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	if err != nil {
		t.Fatalf("sender: %v", err)
	}
	if from != p.Address() {
		t.Fatalf("expected sender %s got %s", p.Address().Hex(), from.Hex())
	}

	if _, err := ParseProvider("nothex"); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("expected invalid key, got %v", err)
	}
}

func TestParseAddress(t *testing.T) {
	if _, err := ParseAddress("0x123"); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected invalid address, got %v", err)
	}
	a, err := ParseAddress(" 0x5b38da6a701c568545dcfcb03fcb875f56beddc4 ")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if a != common.HexToAddress("0x5B38Da6a701c568545dCfcB03FcB875f56beddC4") {
		t.Fatalf("unexpected address %s", a.Hex())
	}
}
