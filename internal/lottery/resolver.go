// Package lottery implements the deployment scripts of the lottery: mock
// deployment on local chains, funding with LINK, and the deploy, start,
// enter and end steps.
package lottery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Mubson1/Deploy-Lottery/internal/account"
	"github.com/Mubson1/Deploy-Lottery/internal/artifacts"
	"github.com/Mubson1/Deploy-Lottery/internal/chain"
	"github.com/Mubson1/Deploy-Lottery/internal/config"
	"github.com/Mubson1/Deploy-Lottery/internal/contracts"
	"github.com/Mubson1/Deploy-Lottery/internal/metrics"
	"github.com/Mubson1/Deploy-Lottery/internal/network"
	"github.com/Mubson1/Deploy-Lottery/internal/registry"
	"github.com/Mubson1/Deploy-Lottery/internal/verify"
)

// Sentinel errors - Lottery
var (
	ErrUnknownContract = errors.New("lottery: unknown contract")
	ErrNoLottery       = errors.New("lottery: no lottery deployed on this network")
	errStale           = errors.New("lottery: recorded deployment has no code")
)

// Mock parameters.
const (
	DefaultDecimals = 8
	// 2000 USD with 8 decimals.
	DefaultInitialValue = 200000000000
)

// ContractToMock maps the logical contract names of a network profile onto
// the mock deployed in their place on local chains.
var ContractToMock = map[string]string{
	"eth_usd_price_feed": contracts.MockV3AggregatorName,
	"vrf_coordinator":    contracts.VRFCoordinatorMockName,
	"link_token":         contracts.LinkTokenName,
}

// Env is what the scripts run against.
type Env struct {
	Network   string
	Profile   config.NetworkConfig
	Client    *chain.Client
	Accounts  *account.Resolver
	Artifacts *artifacts.Store
	Registry  *registry.Registry
	// Verifier publishes sources when the profile asks for it. Optional.
	Verifier *verify.Client
	// Out receives the status lines meant for the user. Optional.
	Out    io.Writer
	Logger *slog.Logger
	// Metrics counts transactions and rounds. Optional.
	Metrics *metrics.Metrics
}

// Resolver finds the contracts the lottery depends on, deploying mocks on
// local chains when needed.
type Resolver struct {
	env     *Env
	account account.Options
}

// NewResolver creates a resolver signing with the account selected by opts.
func NewResolver(env *Env, opts account.Options) *Resolver {
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	if env.Out == nil {
		env.Out = io.Discard
	}
	return &Resolver{env: env, account: opts}
}

// Account resolves the signing account.
func (r *Resolver) Account(ctx context.Context) (*account.Account, error) {
	return r.env.Accounts.Get(ctx, r.account)
}

// Contract returns the contract behind a logical name. On local chains the
// latest mock is used, deploying all mocks first if none exists. Elsewhere
// the address comes from the network profile.
func (r *Resolver) Contract(ctx context.Context, name string) (*chain.Contract, error) {
	mock, ok := ContractToMock[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownContract, name)
	}

	if network.IsLocal(r.env.Network) {
		c, err := r.Latest(ctx, mock)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, registry.ErrNotFound) && !errors.Is(err, errStale) {
			return nil, err
		}
		if err := r.DeployMocks(ctx, DefaultDecimals, big.NewInt(DefaultInitialValue)); err != nil {
			return nil, err
		}
		return r.Latest(ctx, mock)
	}

	addr, err := r.env.Profile.Address(name)
	if err != nil {
		return nil, fmt.Errorf("network %s: %w", r.env.Network, err)
	}
	art, err := r.env.Artifacts.Load(mock)
	if err != nil {
		return nil, err
	}
	return r.env.Client.Bind(addr, art)
}

// Existing returns the contract behind a logical name like Contract does,
// but never deploys. On local chains without a live mock it returns
// registry.ErrNotFound.
func (r *Resolver) Existing(ctx context.Context, name string) (*chain.Contract, error) {
	mock, ok := ContractToMock[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownContract, name)
	}
	if !network.IsLocal(r.env.Network) {
		return r.Contract(ctx, name)
	}
	c, err := r.Latest(ctx, mock)
	if errors.Is(err, errStale) {
		return nil, fmt.Errorf("%w: %v", registry.ErrNotFound, err)
	}
	return c, err
}

// Latest binds the most recent recorded deployment of a contract type.
func (r *Resolver) Latest(ctx context.Context, contractType string) (*chain.Contract, error) {
	rec, err := r.env.Registry.Latest(ctx, r.env.Network, contractType)
	if err != nil {
		return nil, err
	}

	// Local chains are often restarted from scratch, leaving stale records.
	if network.IsLocal(r.env.Network) {
		code, err := r.env.Client.Backend().CodeAt(ctx, rec.Address, nil)
		if err != nil {
			return nil, fmt.Errorf("read code at %s: %w", rec.Address.Hex(), err)
		}
		if len(code) == 0 {
			r.env.Logger.Warn("recorded deployment is gone, ignoring it",
				slog.String("contract", contractType),
				slog.String("address", rec.Address.Hex()),
			)
			return nil, fmt.Errorf("%w: %s at %s", errStale, contractType, rec.Address.Hex())
		}
	}

	art, err := r.env.Artifacts.Load(contractType)
	if err != nil {
		return nil, err
	}
	return r.env.Client.Bind(rec.Address, art)
}

// DeployMocks deploys the price feed, LINK token and VRF coordinator mocks.
func (r *Resolver) DeployMocks(ctx context.Context, decimals uint8, initialValue *big.Int) error {
	signer, err := r.Account(ctx)
	if err != nil {
		return err
	}

	r.env.Logger.Info("deploying mocks",
		slog.String("network", r.env.Network),
		slog.Int("decimals", int(decimals)),
		slog.String("initial_value", initialValue.String()),
	)

	if _, err := r.deploy(ctx, signer, contracts.MockV3AggregatorName, decimals, initialValue); err != nil {
		return err
	}
	link, err := r.deploy(ctx, signer, contracts.LinkTokenName)
	if err != nil {
		return err
	}
	if _, err := r.deploy(ctx, signer, contracts.VRFCoordinatorMockName, link.Contract.Address); err != nil {
		return err
	}

	r.say("Deployed!")
	return nil
}

// deploy deploys an artifact and records the deployment.
func (r *Resolver) deploy(ctx context.Context, signer chain.Signer, name string, args ...interface{}) (*chain.Deployment, error) {
	art, err := r.env.Artifacts.Load(name)
	if err != nil {
		return nil, err
	}
	dep, err := r.env.Client.Deploy(ctx, signer, art, args...)
	if err != nil {
		var receipt *types.Receipt
		if dep != nil {
			receipt = dep.Receipt
		}
		r.env.Metrics.ObserveTx(r.env.Network, "deploy", receipt, err)
		return nil, err
	}
	r.env.Metrics.ObserveTx(r.env.Network, "deploy", dep.Receipt, nil)
	r.env.Metrics.ObserveDeployment(r.env.Network, name)

	rec := registry.Record{
		Network:  r.env.Network,
		Contract: name,
		Address:  dep.Contract.Address,
		TxHash:   dep.Tx.Hash(),
		Block:    dep.Receipt.BlockNumber.Uint64(),
		Deployer: signer.Address(),
	}
	if err := r.env.Registry.Add(ctx, rec); err != nil {
		return nil, fmt.Errorf("record %s deployment: %w", name, err)
	}
	return dep, nil
}

// wait waits for tx and counts it under action.
func (r *Resolver) wait(ctx context.Context, action string, tx *types.Transaction) (*types.Receipt, error) {
	receipt, err := r.env.Client.Wait(ctx, tx)
	r.env.Metrics.ObserveTx(r.env.Network, action, receipt, err)
	return receipt, err
}

// say prints a status line for the user and logs it.
func (r *Resolver) say(msg string, attrs ...any) {
	fmt.Fprintln(r.env.Out, msg)
	r.env.Logger.Info(msg, append([]any{slog.String("network", r.env.Network)}, attrs...)...)
}

func addressAttr(key string, a common.Address) slog.Attr {
	return slog.String(key, a.Hex())
}
