package settlement

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gofiber/fiber/v2"

	"github.com/spliteth/spliteth/internal/apperr"
	"github.com/spliteth/spliteth/internal/events"
	"github.com/spliteth/spliteth/internal/identity"
	"github.com/spliteth/spliteth/internal/logging"
)

type fakeChain struct {
	funded  bool
	readErr error
	waitErr error
	splits  int
	waits   int
	signer  *identity.Provider
}

func (f *fakeChain) IsFunded(context.Context, common.Address) (bool, error) {
	return f.funded, f.readErr
}

func (f *fakeChain) SplitFunds(_ context.Context, group common.Address) (*types.Transaction, error) {
	f.splits++
	return f.signer.SignTx(types.NewTx(&types.LegacyTx{Nonce: uint64(f.splits), To: &group, Gas: 50_000, GasPrice: big.NewInt(1)}), big.NewInt(1))
}

func (f *fakeChain) WaitMined(_ context.Context, tx *types.Transaction) (*types.Receipt, error) {
	f.waits++
	if f.waitErr != nil {
		return nil, f.waitErr
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, TxHash: tx.Hash(), BlockNumber: big.NewInt(9)}, nil
}

type recorder struct {
	names []string
}

func (r *recorder) Publish(_ context.Context, e events.Event) error {
	r.names = append(r.names, e.Name)
	return nil
}

func newFakeChain(t *testing.T, funded bool) *fakeChain {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return &fakeChain{funded: funded, signer: identity.NewProvider(key)}
}

var group = common.HexToAddress("0x00000000000000000000000000000000000000c1")

func TestSplitFundedGroup(t *testing.T) {
	chain := newFakeChain(t, true)
	pub := &recorder{}
	svc := NewService(chain, Options{Wait: true, Publisher: pub, Logger: logging.Discard()})

	res, err := svc.Split(context.Background(), group)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if res.Receipt == nil || chain.splits != 1 || chain.waits != 1 {
		t.Fatalf("expected mined split, got %+v splits=%d waits=%d", res, chain.splits, chain.waits)
	}
	if len(pub.names) != 1 || pub.names[0] != events.GroupSplit {
		t.Fatalf("expected group.split event, got %v", pub.names)
	}
}

func TestSplitWithoutWait(t *testing.T) {
	chain := newFakeChain(t, true)
	svc := NewService(chain, Options{Logger: logging.Discard()})

	res, err := svc.Split(context.Background(), group)
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	if res.Receipt != nil || res.Tx == nil || chain.waits != 0 {
		t.Fatalf("expected fire-and-forget split, got %+v waits=%d", res, chain.waits)
	}
}

func TestSplitUnfundedGroup(t *testing.T) {
	chain := newFakeChain(t, false)
	svc := NewService(chain, Options{Wait: true, Logger: logging.Discard()})

	_, err := svc.Split(context.Background(), group)
	if !errors.Is(err, apperr.ErrPreconditionFailed) {
		t.Fatalf("expected precondition failure, got %v", err)
	}
	if chain.splits != 0 {
		t.Fatalf("no transaction expected, got %d", chain.splits)
	}
}

func TestSplitChainFailures(t *testing.T) {
	chain := newFakeChain(t, true)
	chain.readErr = errors.New("rpc timeout")
	svc := NewService(chain, Options{Wait: true, Logger: logging.Discard()})
	if _, err := svc.Split(context.Background(), group); !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}

	chain.readErr = nil
	chain.waitErr = errors.New("transaction reverted")
	if _, err := svc.Split(context.Background(), group); !errors.Is(err, apperr.ErrUpstream) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestSplitHandler(t *testing.T) {
	cases := []struct {
		name   string
		funded bool
		body   string
		status int
	}{
		{"funded", true, `{"group":"` + group.Hex() + `"}`, http.StatusOK},
		{"unfunded", false, `{"group":"` + group.Hex() + `"}`, http.StatusPreconditionFailed},
		{"missing group", true, `{}`, http.StatusBadRequest},
		{"invalid group", true, `{"group":"0x12"}`, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := NewService(newFakeChain(t, tc.funded), Options{Wait: true, Logger: logging.Discard()})
			app := fiber.New(fiber.Config{ErrorHandler: apperr.Handler(logging.Discard())})
			app.Post("/split", NewHandler(svc).Split)

			req := httptest.NewRequest(http.MethodPost, "/split", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			if resp.StatusCode != tc.status {
				t.Fatalf("expected %d got %d", tc.status, resp.StatusCode)
			}
		})
	}
}

func TestSplitHandlerWithoutService(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: apperr.Handler(nil)})
	app.Post("/split", NewHandler(nil).Split)
	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/split", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.StatusCode)
	}
}
