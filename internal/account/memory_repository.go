package account

import (
	"context"
	"sort"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[common.Hash]Activation
}

// NewMemoryRepository constructs an in-memory repository, used when no
// database is configured and in tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[common.Hash]Activation)}
}

func (r *memoryRepository) RecordActivation(_ context.Context, a Activation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.storage[a.TxHash]; ok {
		existing.Status = a.Status
		existing.BlockNumber = a.BlockNumber
		r.storage[a.TxHash] = existing
		return nil
	}
	a.Tx, a.Receipt = nil, nil
	r.storage[a.TxHash] = a
	return nil
}

func (r *memoryRepository) ListBySession(_ context.Context, session common.Address) ([]Activation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Activation
	for _, a := range r.storage {
		if a.Session == session {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
