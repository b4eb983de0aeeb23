package infra

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/ethclient"
)

// NewEthClient dials the JSON-RPC endpoint and checks that it answers.
func NewEthClient(ctx context.Context, url string) (*ethclient.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("rpc url is required")
	}

	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if _, err := client.BlockNumber(pingCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping rpc: %w", err)
	}

	return client, nil
}
