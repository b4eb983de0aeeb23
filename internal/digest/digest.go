package digest

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Type names a Solidity type understood by the packed encoding.
type Type string

const (
	TypeAddress Type = "address"
	TypeBytes32 Type = "bytes32"
	TypeString  Type = "string"
	TypeBytes   Type = "bytes"
	TypeUint256 Type = "uint256"
	TypeBool    Type = "bool"
)

// SecondFactorWidth is the fixed slot width of a normalized second factor.
const SecondFactorWidth = 32

// ErrSecondFactorTooLong is returned when a second factor does not fit its slot.
var ErrSecondFactorTooLong = errors.New("second factor exceeds 32 bytes")

// Field is one typed value of an ordered tuple. Build fields with the
// constructors below; the zero Field cannot be packed.
type Field struct {
	typ   Type
	value any
}

// Type reports the Solidity type of the field.
func (f Field) Type() Type { return f.typ }

func Address(a common.Address) Field { return Field{typ: TypeAddress, value: a} }
func Bytes32(b [32]byte) Field       { return Field{typ: TypeBytes32, value: b} }
func String(s string) Field          { return Field{typ: TypeString, value: s} }
func Bytes(b []byte) Field           { return Field{typ: TypeBytes, value: b} }
func Bool(b bool) Field              { return Field{typ: TypeBool, value: b} }

// Uint256 panics on negative values or values wider than 256 bits.
func Uint256(v *big.Int) Field {
	if v == nil || v.Sign() < 0 || v.BitLen() > 256 {
		panic(fmt.Sprintf("digest: uint256 out of range: %v", v))
	}
	return Field{typ: TypeUint256, value: new(big.Int).Set(v)}
}

// Pack concatenates fields using Solidity abi.encodePacked rules: static types
// occupy their natural width, dynamic types are inlined without a length prefix.
// An unknown field type is a programming error and panics.
func Pack(fields ...Field) []byte {
	out := make([]byte, 0, 32*len(fields))
	for i, f := range fields {
		switch f.typ {
		case TypeAddress:
			a := f.value.(common.Address)
			out = append(out, a.Bytes()...)
		case TypeBytes32:
			b := f.value.([32]byte)
			out = append(out, b[:]...)
		case TypeString:
			out = append(out, f.value.(string)...)
		case TypeBytes:
			out = append(out, f.value.([]byte)...)
		case TypeUint256:
			out = append(out, common.LeftPadBytes(f.value.(*big.Int).Bytes(), 32)...)
		case TypeBool:
			if f.value.(bool) {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		default:
			panic(fmt.Sprintf("digest: unsupported field type %q at position %d", f.typ, i))
		}
	}
	return out
}

// Hash returns keccak256(Pack(fields...)). It matches Solidity's
// keccak256(abi.encodePacked(...)) so contracts can recompute it.
func Hash(fields ...Field) common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(Pack(fields...))
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// SecondFactor normalizes an out-of-band identifier into its bytes32 slot: the
// UTF-8 bytes right-padded with zeros. The input is used verbatim so client and
// server always derive the same slot.
func SecondFactor(s string) ([32]byte, error) {
	var out [32]byte
	if len(s) > SecondFactorWidth {
		return out, ErrSecondFactorTooLong
	}
	copy(out[:], s)
	return out, nil
}

// RequestDigest binds a session key to a second factor.
func RequestDigest(session common.Address, secondFactor [32]byte) common.Hash {
	return Hash(Address(session), Bytes32(secondFactor))
}

// ResponseDigest binds the provider, second factor, session and one-time code.
func ResponseDigest(provider common.Address, secondFactor [32]byte, session common.Address, code string) common.Hash {
	return Hash(Address(provider), Bytes32(secondFactor), Address(session), String(code))
}

// SessionDigest binds a provider to a second factor; the session key signs it
// as its second proof of control.
func SessionDigest(provider common.Address, secondFactor [32]byte) common.Hash {
	return Hash(Address(provider), Bytes32(secondFactor))
}
