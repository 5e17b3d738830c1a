// Package chain wraps a JSON-RPC backend with the deploy, transact, call and
// wait primitives the lottery scripts are built from.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Sentinel errors - Chain
var (
	ErrChainIDMismatch = errors.New("chain: chain ID mismatch")
	ErrReverted        = errors.New("chain: transaction reverted")
	ErrNoSigner        = errors.New("chain: no signer")
)

// DefaultPollInterval is how often the head block is polled while waiting
// for confirmations.
const DefaultPollInterval = time.Second

// Backend is everything the client needs from a node. Both
// *ethclient.Client and the simulated backend's client satisfy it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ethereum.ChainIDReader
	ethereum.BlockNumberReader
	ethereum.ChainStateReader
}

// Signer produces transact options for a chain. account.Account implements it.
type Signer interface {
	Address() common.Address
	Transactor(chainID *big.Int) (*bind.TransactOpts, error)
}

// Options configures a Client.
type Options struct {
	// Confirmations is the number of blocks (including the one holding the
	// transaction) waited for by Wait. Zero means one.
	Confirmations uint64
	// PollInterval is the head polling interval. Zero means DefaultPollInterval.
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Client talks to one chain.
type Client struct {
	backend       Backend
	chainID       *big.Int
	confirmations uint64
	pollInterval  time.Duration
	logger        *slog.Logger
	closeFn       func()
}

// Dial connects to an RPC endpoint. A non-zero expectedChainID is checked
// against the node.
func Dial(ctx context.Context, rpcURL string, expectedChainID int64, opts Options) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", rpcURL, err)
	}

	c, err := NewClient(ctx, ec, opts)
	if err != nil {
		ec.Close()
		return nil, err
	}
	c.closeFn = ec.Close

	if expectedChainID != 0 && c.chainID.Int64() != expectedChainID {
		ec.Close()
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrChainIDMismatch, expectedChainID, c.chainID.Int64())
	}
	return c, nil
}

// NewClient wraps an already connected backend.
func NewClient(ctx context.Context, backend Backend, opts Options) (*Client, error) {
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain ID: %w", err)
	}

	if opts.Confirmations == 0 {
		opts.Confirmations = 1
	}
	if opts.PollInterval == 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Client{
		backend:       backend,
		chainID:       chainID,
		confirmations: opts.Confirmations,
		pollInterval:  opts.PollInterval,
		logger:        opts.Logger,
	}, nil
}

// ChainID returns the chain ID reported by the node.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

// Backend returns the underlying backend.
func (c *Client) Backend() Backend {
	return c.backend
}

// Close releases the connection if the client owns it.
func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// Balance returns the ether balance of addr at the latest block.
func (c *Client) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	return c.backend.BalanceAt(ctx, addr, nil)
}

// Wait blocks until tx has the client's configured number of confirmations.
func (c *Client) Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	return c.WaitN(ctx, tx, c.confirmations)
}

// WaitN blocks until tx is mined successfully and confirmations-1 further
// blocks exist on top of it. A reverted transaction returns ErrReverted
// together with its receipt.
func (c *Client) WaitN(ctx context.Context, tx *types.Transaction, confirmations uint64) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("wait for receipt of %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s", ErrReverted, tx.Hash().Hex())
	}
	if confirmations <= 1 {
		return receipt, nil
	}

	target := receipt.BlockNumber.Uint64() + confirmations - 1
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		head, err := c.backend.BlockNumber(ctx)
		if err != nil {
			c.logger.Warn("failed to read head block", slog.String("error", err.Error()))
		} else if head >= target {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return receipt, ctx.Err()
		case <-ticker.C:
		}
	}
}
