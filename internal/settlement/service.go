package settlement

import (
	"context"
	"log/slog"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/spliteth/spliteth/internal/apperr"
	"github.com/spliteth/spliteth/internal/events"
)

const defaultTxTimeout = 2 * time.Minute

// Chain is the group contract surface used for settlement.
type Chain interface {
	IsFunded(ctx context.Context, group common.Address) (bool, error)
	SplitFunds(ctx context.Context, group common.Address) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Options configure a Service.
type Options struct {
	// Wait blocks Split until the transaction is mined.
	Wait      bool
	TxTimeout time.Duration
	Publisher events.Publisher
	Logger    *slog.Logger
}

// Service triggers payout of funded groups.
type Service struct {
	chain     Chain
	wait      bool
	txTimeout time.Duration
	publisher events.Publisher
	logger    *slog.Logger
}

// NewService constructs a settlement service.
func NewService(chain Chain, opts Options) *Service {
	publisher := opts.Publisher
	if publisher == nil {
		publisher = events.Nop{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.TxTimeout
	if timeout <= 0 {
		timeout = defaultTxTimeout
	}
	return &Service{chain: chain, wait: opts.Wait, txTimeout: timeout, publisher: publisher, logger: logger}
}

// Result is the submitted split. Receipt is nil when the service does not
// wait for inclusion.
type Result struct {
	Tx      *types.Transaction
	Receipt *types.Receipt
}

// Split calls splitFunds on a group that reports itself funded.
func (s *Service) Split(ctx context.Context, group common.Address) (Result, error) {
	funded, err := s.chain.IsFunded(ctx, group)
	if err != nil {
		return Result{}, apperr.Upstream("failed to read group state", err)
	}
	if !funded {
		return Result{}, apperr.PreconditionFailed("Group is not funded")
	}

	tx, err := s.chain.SplitFunds(ctx, group)
	if err != nil {
		return Result{}, apperr.Upstream("split failed", err)
	}
	res := Result{Tx: tx}

	if s.wait {
		waitCtx, cancel := context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
		receipt, err := s.chain.WaitMined(waitCtx, tx)
		if err != nil {
			return Result{}, apperr.Upstream("split failed", err)
		}
		res.Receipt = receipt
	}

	s.logger.Info("group split", slog.String("group", group.Hex()), slog.String("tx", tx.Hash().Hex()))
	if err := s.publisher.Publish(ctx, events.New(events.GroupSplit, group.Hex(), map[string]any{
		"tx":    tx.Hash().Hex(),
		"mined": res.Receipt != nil,
	})); err != nil {
		s.logger.Warn("publish event failed", slog.String("event", events.GroupSplit), slog.Any("error", err))
	}
	return res, nil
}
