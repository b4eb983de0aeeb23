package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrReverted is returned when an included transaction has a failed status.
var ErrReverted = errors.New("transaction reverted")

const (
	defaultPollInterval = 2 * time.Second
	gasMarginPercent    = 20
)

// Backend is the subset of *ethclient.Client the service relies on.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// Signer issues transactions on behalf of one address.
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Client binds the provider identity to a chain backend and the known
// contract surface. Transactions from the signer are serialized so that
// concurrent callers never reuse a nonce.
type Client struct {
	backend      Backend
	signer       Signer
	chainID      *big.Int
	manager      common.Address
	pollInterval time.Duration
	logger       *slog.Logger

	mu       sync.Mutex
	nonce    uint64
	nonceSet bool
}

// Options tune a Client.
type Options struct {
	// ChainID skips the eth_chainId lookup when non-nil.
	ChainID      *big.Int
	PollInterval time.Duration
	Logger       *slog.Logger
}

// NewClient builds a client for the session-manager contract at manager.
func NewClient(ctx context.Context, backend Backend, signer Signer, manager common.Address, opts Options) (*Client, error) {
	if backend == nil || signer == nil {
		return nil, fmt.Errorf("chain backend and signer are required")
	}
	chainID := opts.ChainID
	if chainID == nil || chainID.Sign() == 0 {
		id, err := backend.ChainID(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch chain id: %w", err)
		}
		chainID = id
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		backend:      backend,
		signer:       signer,
		chainID:      new(big.Int).Set(chainID),
		manager:      manager,
		pollInterval: poll,
		logger:       logger,
	}, nil
}

// ChainID returns the chain the client signs for.
func (c *Client) ChainID() *big.Int { return new(big.Int).Set(c.chainID) }

// Ping checks RPC reachability.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.backend.BlockNumber(ctx)
	return err
}

// AccountAddress asks the factory for the deterministic account of
// (provider, secondFactor).
func (c *Client) AccountAddress(ctx context.Context, provider common.Address, secondFactor [32]byte) (common.Address, error) {
	out, err := c.call(ctx, SessionManagerABI, c.manager, "getAddress", provider, secondFactor)
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("getAddress: unexpected return type %T", out[0])
	}
	return addr, nil
}

// Deployed reports whether code exists at account.
func (c *Client) Deployed(ctx context.Context, account common.Address) (bool, error) {
	code, err := c.backend.CodeAt(ctx, account, nil)
	if err != nil {
		return false, fmt.Errorf("get code %s: %w", account.Hex(), err)
	}
	return len(code) > 0, nil
}

// CreateAccount submits factory.createAccount(provider, secondFactor).
func (c *Client) CreateAccount(ctx context.Context, provider common.Address, secondFactor [32]byte) (*types.Transaction, error) {
	return c.transact(ctx, SessionManagerABI, c.manager, "createAccount", provider, secondFactor)
}

// StartSession submits account.startSession(session, duration).
func (c *Client) StartSession(ctx context.Context, account, session common.Address, duration *big.Int) (*types.Transaction, error) {
	return c.transact(ctx, SessionAccountABI, account, "startSession", session, duration)
}

// IsFunded reads group.isFunded().
func (c *Client) IsFunded(ctx context.Context, group common.Address) (bool, error) {
	out, err := c.call(ctx, GroupABI, group, "isFunded")
	if err != nil {
		return false, err
	}
	funded, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("isFunded: unexpected return type %T", out[0])
	}
	return funded, nil
}

// SplitFunds submits group.splitFunds().
func (c *Client) SplitFunds(ctx context.Context, group common.Address) (*types.Transaction, error) {
	return c.transact(ctx, GroupABI, group, "splitFunds")
}

// BadgeURI reads collection.uri(id).
func (c *Client) BadgeURI(ctx context.Context, collection common.Address, id *big.Int) (string, error) {
	out, err := c.call(ctx, BadgeCollectionABI, collection, "uri", id)
	if err != nil {
		return "", err
	}
	uri, ok := out[0].(string)
	if !ok {
		return "", fmt.Errorf("uri: unexpected return type %T", out[0])
	}
	return uri, nil
}

// WaitMined blocks until tx is included or ctx ends. A failed receipt yields
// ErrReverted together with the receipt.
func (c *Client) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, tx.Hash())
		if err == nil && receipt != nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return receipt, fmt.Errorf("%w: %s", ErrReverted, tx.Hash().Hex())
			}
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			c.logger.Debug("receipt lookup failed", slog.String("tx", tx.Hash().Hex()), slog.Any("error", err))
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wait for %s: %w", tx.Hash().Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Client) call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := c.backend.CallContract(ctx, ethereum.CallMsg{From: c.signer.Address(), To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	out, err := contract.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("call %s: empty result", method)
	}
	return out, nil
}

func (c *Client) transact(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) (*types.Transaction, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	from := c.signer.Address()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.nonceSet {
		nonce, err := c.backend.PendingNonceAt(ctx, from)
		if err != nil {
			return nil, fmt.Errorf("%s: pending nonce: %w", method, err)
		}
		c.nonce = nonce
		c.nonceSet = true
	}

	gasPrice, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: gas price: %w", method, err)
	}
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return nil, fmt.Errorf("%s: estimate gas: %w", method, err)
	}
	gas += gas * gasMarginPercent / 100

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    c.nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Data:     data,
	})
	signed, err := c.signer.SignTx(tx, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("%s: sign: %w", method, err)
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		// The node may have seen a nonce we did not; resync on next send.
		c.nonceSet = false
		return nil, fmt.Errorf("%s: send: %w", method, err)
	}
	c.nonce++

	c.logger.Info("transaction sent",
		slog.String("method", method),
		slog.String("to", to.Hex()),
		slog.String("tx", signed.Hash().Hex()),
		slog.Uint64("nonce", signed.Nonce()),
	)
	return signed, nil
}
