package digest

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gofiber/fiber/v2"

	"github.com/spliteth/spliteth/internal/apperr"
)

// Handler exposes the packed-hash utility endpoint.
type Handler struct{}

// NewHandler constructs a hash handler.
func NewHandler() *Handler {
	return &Handler{}
}

type hashRequest struct {
	Types  []string          `json:"types"`
	Values []json.RawMessage `json:"values"`
}

// Hash computes keccak256(abi.encodePacked(values)) for the given types.
func (h *Handler) Hash(c *fiber.Ctx) error {
	var req hashRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.BadRequest(err.Error())
	}
	if len(req.Types) == 0 || len(req.Values) == 0 {
		return apperr.BadRequest("Missing data in request")
	}
	if len(req.Types) != len(req.Values) {
		return apperr.BadRequest("Invalid data in request")
	}

	fields, err := ParseFields(req.Types, req.Values)
	if err != nil {
		return apperr.BadRequest(err.Error())
	}
	return c.JSON(fiber.Map{"hash": Hash(fields...).Hex()})
}

// ParseFields converts loosely typed JSON values into fields. Unlike Pack, an
// unknown type here is a caller error.
func ParseFields(types []string, values []json.RawMessage) ([]Field, error) {
	fields := make([]Field, 0, len(types))
	for i, t := range types {
		f, err := parseField(Type(strings.TrimSpace(t)), values[i])
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		fields = append(fields, f)
	}
	return fields, nil
}

func parseField(t Type, raw json.RawMessage) (Field, error) {
	switch t {
	case TypeAddress:
		s, err := asString(raw)
		if err != nil {
			return Field{}, err
		}
		if !common.IsHexAddress(s) {
			return Field{}, fmt.Errorf("invalid address %q", s)
		}
		return Address(common.HexToAddress(s)), nil
	case TypeBytes32:
		s, err := asString(raw)
		if err != nil {
			return Field{}, err
		}
		b, err := hexutil.Decode(s)
		if err != nil || len(b) != 32 {
			return Field{}, fmt.Errorf("invalid bytes32 %q", s)
		}
		var out [32]byte
		copy(out[:], b)
		return Bytes32(out), nil
	case TypeString:
		s, err := asString(raw)
		if err != nil {
			return Field{}, err
		}
		return String(s), nil
	case TypeBytes:
		s, err := asString(raw)
		if err != nil {
			return Field{}, err
		}
		b, err := hexutil.Decode(s)
		if err != nil {
			return Field{}, fmt.Errorf("invalid bytes %q", s)
		}
		return Bytes(b), nil
	case TypeUint256:
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			s, serr := asString(raw)
			if serr != nil {
				return Field{}, fmt.Errorf("invalid uint256")
			}
			n = json.Number(s)
		}
		v, ok := new(big.Int).SetString(n.String(), 0)
		if !ok || v.Sign() < 0 || v.BitLen() > 256 {
			return Field{}, fmt.Errorf("invalid uint256 %q", n.String())
		}
		return Uint256(v), nil
	case TypeBool:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return Field{}, fmt.Errorf("invalid bool")
		}
		return Bool(b), nil
	default:
		return Field{}, fmt.Errorf("unsupported type %q", t)
	}
}

func asString(raw json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("expected string value")
	}
	return s, nil
}
