package contracts

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Mubson1/Deploy-Lottery/internal/chain"
)

// LotteryState mirrors the LOTTERY_STATE enum of the contract.
type LotteryState uint8

// Lottery states.
const (
	StateOpen LotteryState = iota
	StateClosed
	StateCalculatingWinner
)

func (s LotteryState) String() string {
	switch s {
	case StateOpen:
		return "OPEN"
	case StateClosed:
		return "CLOSED"
	case StateCalculatingWinner:
		return "CALCULATING_WINNER"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
	}
}

// RequestedRandomnessEvent is emitted by endLottery.
const RequestedRandomnessEvent = "RequestedRandomness"

// Lottery is the lottery contract.
type Lottery struct {
	*chain.Contract
}

// NewLottery wraps a bound Lottery.
func NewLottery(c *chain.Contract) *Lottery {
	return &Lottery{Contract: c}
}

// StartLottery opens the lottery. Owner only.
func (l *Lottery) StartLottery(ctx context.Context, signer chain.Signer) (*types.Transaction, error) {
	return l.Transact(ctx, signer, nil, "startLottery")
}

// Enter buys a ticket paying value wei.
func (l *Lottery) Enter(ctx context.Context, signer chain.Signer, value *big.Int) (*types.Transaction, error) {
	return l.Transact(ctx, signer, value, "enter")
}

// EndLottery closes entries and requests randomness. Owner only; the
// contract must hold at least the VRF fee in LINK.
func (l *Lottery) EndLottery(ctx context.Context, signer chain.Signer) (*types.Transaction, error) {
	return l.Transact(ctx, signer, nil, "endLottery")
}

// EntranceFee returns the minimum ticket price in wei.
func (l *Lottery) EntranceFee(ctx context.Context) (*big.Int, error) {
	return call[*big.Int](ctx, l.Contract, "getEntranceFee")
}

// RecentWinner returns the winner of the last finished round.
func (l *Lottery) RecentWinner(ctx context.Context) (common.Address, error) {
	return call[common.Address](ctx, l.Contract, "recentWinner")
}

// State returns the current lottery state.
func (l *Lottery) State(ctx context.Context) (LotteryState, error) {
	v, err := call[uint8](ctx, l.Contract, "lottery_state")
	return LotteryState(v), err
}

// RequestID extracts the VRF request id from an endLottery receipt.
// ok is false when the receipt carries no RequestedRandomness log.
func (l *Lottery) RequestID(receipt *types.Receipt) (id [32]byte, ok bool, err error) {
	var ev struct {
		RequestId [32]byte
	}
	ok, err = l.Event(receipt, RequestedRandomnessEvent, &ev)
	if err != nil || !ok {
		return id, ok, err
	}
	return ev.RequestId, true, nil
}
