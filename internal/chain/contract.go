package chain

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Mubson1/Deploy-Lottery/internal/artifacts"
)

// Contract is a deployed contract bound to its ABI.
type Contract struct {
	Name    string
	Address common.Address
	ABI     abi.ABI

	client *Client
	bound  *bind.BoundContract
}

// Deployment is the outcome of a confirmed contract creation.
type Deployment struct {
	Contract *Contract
	Tx       *types.Transaction
	Receipt  *types.Receipt
}

// Bind attaches an artifact's ABI to an existing address.
func (c *Client) Bind(address common.Address, artifact *artifacts.ContractArtifact) (*Contract, error) {
	parsed, err := artifact.ParsedABI()
	if err != nil {
		return nil, fmt.Errorf("parse %s ABI: %w", artifact.ContractName, err)
	}
	return c.BindABI(artifact.ContractName, address, parsed), nil
}

// BindABI attaches a parsed ABI to an existing address.
func (c *Client) BindABI(name string, address common.Address, parsed abi.ABI) *Contract {
	return &Contract{
		Name:    name,
		Address: address,
		ABI:     parsed,
		client:  c,
		bound:   bind.NewBoundContract(address, parsed, c.backend, c.backend, c.backend),
	}
}

// Deploy creates a contract from an artifact and waits for confirmation.
// A creation that was mined but reverted returns ErrReverted together with
// a Deployment carrying the transaction and its receipt.
func (c *Client) Deploy(
	ctx context.Context,
	signer Signer,
	artifact *artifacts.ContractArtifact,
	args ...interface{},
) (*Deployment, error) {
	if signer == nil {
		return nil, ErrNoSigner
	}

	bytecode, err := artifact.Bytecode.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%s bytecode: %w", artifact.ContractName, err)
	}
	parsed, err := artifact.ParsedABI()
	if err != nil {
		return nil, fmt.Errorf("parse %s ABI: %w", artifact.ContractName, err)
	}

	opts, err := c.transactOpts(ctx, signer, nil)
	if err != nil {
		return nil, err
	}

	c.logger.Info("deploying contract",
		slog.String("contract", artifact.ContractName),
		slog.String("from", signer.Address().Hex()),
		slog.Int("args", len(args)),
	)

	address, tx, bound, err := bind.DeployContract(opts, parsed, bytecode, c.backend, args...)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", artifact.ContractName, err)
	}

	receipt, err := c.Wait(ctx, tx)
	if err != nil {
		if receipt == nil {
			return nil, fmt.Errorf("deploy %s: %w", artifact.ContractName, err)
		}
		return &Deployment{Tx: tx, Receipt: receipt}, fmt.Errorf("deploy %s: %w", artifact.ContractName, err)
	}

	c.logger.Info("contract deployed",
		slog.String("contract", artifact.ContractName),
		slog.String("address", address.Hex()),
		slog.String("tx_hash", tx.Hash().Hex()),
		slog.Uint64("block_number", receipt.BlockNumber.Uint64()),
		slog.Uint64("gas_used", receipt.GasUsed),
	)

	return &Deployment{
		Contract: &Contract{
			Name:    artifact.ContractName,
			Address: address,
			ABI:     parsed,
			client:  c,
			bound:   bound,
		},
		Tx:      tx,
		Receipt: receipt,
	}, nil
}

func (c *Client) transactOpts(ctx context.Context, signer Signer, value *big.Int) (*bind.TransactOpts, error) {
	opts, err := signer.Transactor(c.chainID)
	if err != nil {
		return nil, fmt.Errorf("create transactor for %s: %w", signer.Address().Hex(), err)
	}
	opts.Context = ctx
	opts.Value = value
	return opts, nil
}

// Call executes a constant method and returns its outputs.
func (k *Contract) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := k.bound.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("call %s.%s: %w", k.Name, method, err)
	}
	return out, nil
}

// Transact sends a state changing call with an optional ether value. The
// transaction is returned as soon as it is accepted by the node; use
// Client.Wait to wait for it.
func (k *Contract) Transact(
	ctx context.Context,
	signer Signer,
	value *big.Int,
	method string,
	args ...interface{},
) (*types.Transaction, error) {
	if signer == nil {
		return nil, ErrNoSigner
	}

	opts, err := k.client.transactOpts(ctx, signer, value)
	if err != nil {
		return nil, err
	}

	tx, err := k.bound.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("transact %s.%s: %w", k.Name, method, err)
	}

	k.client.logger.Debug("transaction sent",
		slog.String("contract", k.Name),
		slog.String("method", method),
		slog.String("tx_hash", tx.Hash().Hex()),
	)
	return tx, nil
}

// Event decodes the first log of the named event emitted by this contract.
// ok is false when the receipt holds no such log.
func (k *Contract) Event(receipt *types.Receipt, name string, out interface{}) (ok bool, err error) {
	ev, found := k.ABI.Events[name]
	if !found {
		return false, fmt.Errorf("%s has no event %s", k.Name, name)
	}
	for _, lg := range receipt.Logs {
		if lg.Address != k.Address || len(lg.Topics) == 0 || lg.Topics[0] != ev.ID {
			continue
		}
		if err := k.bound.UnpackLog(out, name, *lg); err != nil {
			return false, fmt.Errorf("unpack %s: %w", name, err)
		}
		return true, nil
	}
	return false, nil
}
