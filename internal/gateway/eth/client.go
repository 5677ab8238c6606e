// Package eth implements the chain gateway over a JSON-RPC endpoint using
// go-ethereum primitives: manual ABI packing, local transaction signing, and
// receipt polling.
package eth

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/ethclient"
)

// Client wraps an ethclient connection pinned to an expected chain ID.
type Client struct {
	eth     *ethclient.Client
	chainID *big.Int
	logger  *slog.Logger
}

// Dial connects to the RPC endpoint and verifies the remote chain ID matches
// the configured one, so a misconfigured endpoint fails at startup instead of
// at the first signed transaction.
func Dial(ctx context.Context, rpcURL string, wantChainID int64, logger *slog.Logger) (*Client, error) {
	conn, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("eth: dialing %s: %w", rpcURL, err)
	}

	chainID, err := conn.ChainID(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("eth: reading chain id: %w", err)
	}
	if chainID.Int64() != wantChainID {
		conn.Close()
		return nil, fmt.Errorf("eth: endpoint %s reports chain id %d, want %d", rpcURL, chainID, wantChainID)
	}

	logger = logger.With(slog.String("component", "eth"))
	logger.Info("connected to rpc endpoint",
		slog.String("url", rpcURL),
		slog.Int64("chain_id", chainID.Int64()),
	)

	return &Client{eth: conn, chainID: chainID, logger: logger}, nil
}

// ChainID returns the verified chain ID.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Underlying exposes the raw ethclient for callers that need it.
func (c *Client) Underlying() *ethclient.Client {
	return c.eth
}

// Close tears down the RPC connection.
func (c *Client) Close() {
	c.eth.Close()
}
