package account

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/spliteth/spliteth/internal/apperr"
	"github.com/spliteth/spliteth/internal/events"
)

const defaultTxTimeout = 2 * time.Minute

// Chain is the contract surface the provisioner drives.
type Chain interface {
	AccountAddress(ctx context.Context, provider common.Address, secondFactor [32]byte) (common.Address, error)
	Deployed(ctx context.Context, account common.Address) (bool, error)
	CreateAccount(ctx context.Context, provider common.Address, secondFactor [32]byte) (*types.Transaction, error)
	StartSession(ctx context.Context, account, session common.Address, duration *big.Int) (*types.Transaction, error)
	WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

// Options configure a Provisioner.
type Options struct {
	// WaitForActivation blocks ActivateSession until the transaction is mined.
	WaitForActivation bool
	TxTimeout         time.Duration
	Logger            *slog.Logger
	Publisher         events.Publisher
}

// Provisioner deploys session accounts on demand and activates sessions on
// them. Deployments for the same (provider, second factor) are collapsed into
// one in-flight call.
type Provisioner struct {
	chain     Chain
	repo      Repository
	publisher events.Publisher
	logger    *slog.Logger
	wait      bool
	txTimeout time.Duration

	group singleflight.Group
	now   func() time.Time
}

// NewProvisioner builds a provisioner.
func NewProvisioner(chain Chain, repo Repository, opts Options) *Provisioner {
	if repo == nil {
		repo = NewMemoryRepository()
	}
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
	return &Provisioner{
		chain:     chain,
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		wait:      opts.WaitForActivation,
		txTimeout: timeout,
		now:       time.Now,
	}
}

// GetOrDeploy returns the account for (provider, secondFactor), deploying it
// through the factory when no code exists yet. An account that appears while
// our own deployment fails counts as deployed.
func (p *Provisioner) GetOrDeploy(ctx context.Context, provider common.Address, secondFactor [32]byte) (Account, error) {
	key := provider.Hex() + ":" + hexutil.Encode(secondFactor[:])
	v, err, _ := p.group.Do(key, func() (any, error) {
		return p.getOrDeploy(ctx, provider, secondFactor)
	})
	if err != nil {
		return Account{}, err
	}
	return v.(Account), nil
}

func (p *Provisioner) getOrDeploy(ctx context.Context, provider common.Address, secondFactor [32]byte) (Account, error) {
	addr, err := p.chain.AccountAddress(ctx, provider, secondFactor)
	if err != nil {
		return Account{}, apperr.Upstream("failed to derive account address", err)
	}
	acct := Account{Address: addr, Provider: provider, SecondFactor: secondFactor}

	deployed, err := p.chain.Deployed(ctx, addr)
	if err != nil {
		return Account{}, apperr.Upstream("failed to read account code", err)
	}
	if deployed {
		return acct, nil
	}

	tx, err := p.chain.CreateAccount(ctx, provider, secondFactor)
	if err != nil {
		return p.recheck(ctx, acct, "account deployment failed", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, p.txTimeout)
	defer cancel()
	if _, err := p.chain.WaitMined(waitCtx, tx); err != nil {
		return p.recheck(ctx, acct, "account deployment failed", err)
	}

	acct.Created = true
	acct.DeployTx = tx.Hash()
	p.logger.Info("account deployed",
		slog.String("account", addr.Hex()),
		slog.String("tx", tx.Hash().Hex()),
	)
	p.publish(ctx, events.New(events.AccountDeployed, addr.Hex(), map[string]any{
		"provider": provider.Hex(),
		"tx":       tx.Hash().Hex(),
	}))
	return acct, nil
}

// recheck resolves a failed deployment: if code is now present a concurrent
// deployer won and the account is usable.
func (p *Provisioner) recheck(ctx context.Context, acct Account, msg string, cause error) (Account, error) {
	deployed, err := p.chain.Deployed(ctx, acct.Address)
	if err == nil && deployed {
		p.logger.Info("account deployed concurrently",
			slog.String("account", acct.Address.Hex()),
			slog.Any("error", cause),
		)
		return acct, nil
	}
	return Account{}, apperr.Upstream(msg, cause)
}

// ActivateSession starts a session of the given duration on acct. The
// activation is recorded whether or not the caller waits for inclusion.
func (p *Provisioner) ActivateSession(ctx context.Context, acct Account, session common.Address, duration time.Duration) (Activation, error) {
	seconds := uint64(duration / time.Second)
	tx, err := p.chain.StartSession(ctx, acct.Address, session, new(big.Int).SetUint64(seconds))
	if err != nil {
		return Activation{}, apperr.Upstream("session activation failed", err)
	}

	activation := Activation{
		ID:              uuid.NewString(),
		Account:         acct.Address,
		Session:         session,
		DurationSeconds: seconds,
		TxHash:          tx.Hash(),
		Status:          StatusPending,
		CreatedAt:       p.now().UTC(),
		Tx:              tx,
	}

	var waitErr error
	if p.wait {
		waitCtx, cancel := context.WithTimeout(ctx, p.txTimeout)
		receipt, err := p.chain.WaitMined(waitCtx, tx)
		cancel()
		if err != nil {
			activation.Status = StatusFailed
			waitErr = err
		} else {
			activation.Status = StatusConfirmed
			activation.Receipt = receipt
			if receipt.BlockNumber != nil {
				activation.BlockNumber = receipt.BlockNumber.Uint64()
			}
		}
	}

	if err := p.repo.RecordActivation(ctx, activation); err != nil {
		p.logger.Error("record activation failed",
			slog.String("tx", tx.Hash().Hex()),
			slog.Any("error", err),
		)
	}
	if waitErr != nil {
		return Activation{}, apperr.Upstream("session activation failed", waitErr)
	}

	p.publish(ctx, events.New(events.SessionActivated, acct.Address.Hex(), map[string]any{
		"session":  session.Hex(),
		"duration": seconds,
		"tx":       tx.Hash().Hex(),
		"status":   activation.Status,
	}))
	return activation, nil
}

// Activations lists recorded activations for session.
func (p *Provisioner) Activations(ctx context.Context, session common.Address) ([]Activation, error) {
	return p.repo.ListBySession(ctx, session)
}

func (p *Provisioner) publish(ctx context.Context, event events.Event) {
	if err := p.publisher.Publish(ctx, event); err != nil {
		p.logger.Warn("publish event failed", slog.String("event", event.Name), slog.Any("error", err))
	}
}
