// Package contracts provides typed access to the lottery contract and the
// Chainlink contracts (or their mocks) it depends on.
package contracts

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Mubson1/Deploy-Lottery/internal/chain"
)

// Artifact names of the contracts.
const (
	LotteryName            = "Lottery"
	LinkTokenName          = "LinkToken"
	MockV3AggregatorName   = "MockV3Aggregator"
	VRFCoordinatorMockName = "VRFCoordinatorMock"
)

// ErrUnexpectedOutput is returned when a call decodes to an unexpected shape.
var ErrUnexpectedOutput = errors.New("contracts: unexpected call output")

// call performs a constant call with a single return value of type T.
func call[T any](ctx context.Context, c *chain.Contract, method string, args ...interface{}) (T, error) {
	var zero T
	out, err := c.Call(ctx, method, args...)
	if err != nil {
		return zero, err
	}
	if len(out) != 1 {
		return zero, fmt.Errorf("%w: %s.%s returned %d values", ErrUnexpectedOutput, c.Name, method, len(out))
	}
	v, ok := out[0].(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s.%s returned %T", ErrUnexpectedOutput, c.Name, method, out[0])
	}
	return v, nil
}

// LinkToken is the ERC677 LINK token.
type LinkToken struct {
	*chain.Contract
}

// NewLinkToken wraps a bound LinkToken.
func NewLinkToken(c *chain.Contract) *LinkToken {
	return &LinkToken{Contract: c}
}

// Transfer sends amount LINK base units to to.
func (l *LinkToken) Transfer(ctx context.Context, signer chain.Signer, to common.Address, amount *big.Int) (*types.Transaction, error) {
	return l.Transact(ctx, signer, nil, "transfer", to, amount)
}

// BalanceOf returns the LINK balance of owner.
func (l *LinkToken) BalanceOf(ctx context.Context, owner common.Address) (*big.Int, error) {
	return call[*big.Int](ctx, l.Contract, "balanceOf", owner)
}

// MockV3Aggregator is the local stand-in for the ETH/USD price feed.
type MockV3Aggregator struct {
	*chain.Contract
}

// NewMockV3Aggregator wraps a bound aggregator.
func NewMockV3Aggregator(c *chain.Contract) *MockV3Aggregator {
	return &MockV3Aggregator{Contract: c}
}

// LatestAnswer returns the current price answer.
func (m *MockV3Aggregator) LatestAnswer(ctx context.Context) (*big.Int, error) {
	return call[*big.Int](ctx, m.Contract, "latestAnswer")
}

// VRFCoordinatorMock answers randomness requests on local chains.
type VRFCoordinatorMock struct {
	*chain.Contract
}

// NewVRFCoordinatorMock wraps a bound coordinator mock.
func NewVRFCoordinatorMock(c *chain.Contract) *VRFCoordinatorMock {
	return &VRFCoordinatorMock{Contract: c}
}

// CallBackWithRandomness fulfils requestID on consumer with randomness.
func (v *VRFCoordinatorMock) CallBackWithRandomness(
	ctx context.Context,
	signer chain.Signer,
	requestID [32]byte,
	randomness *big.Int,
	consumer common.Address,
) (*types.Transaction, error) {
	return v.Transact(ctx, signer, nil, "callBackWithRandomness", requestID, randomness, consumer)
}
