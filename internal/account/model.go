package account

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Activation statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
)

// Account is a session account derived from (provider, second factor).
type Account struct {
	Address      common.Address
	Provider     common.Address
	SecondFactor [32]byte
	// Created is true only when this call deployed the contract.
	Created  bool
	DeployTx common.Hash
}

// Activation records one startSession call.
type Activation struct {
	ID              string
	Account         common.Address
	Session         common.Address
	DurationSeconds uint64
	TxHash          common.Hash
	Status          string
	BlockNumber     uint64
	CreatedAt       time.Time

	Tx      *types.Transaction
	Receipt *types.Receipt
}
