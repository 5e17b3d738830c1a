package lottery

import (
	"context"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Mubson1/Deploy-Lottery/internal/contracts"
)

// Status is a snapshot of the latest lottery.
type Status struct {
	Network      string
	Address      common.Address
	State        contracts.LotteryState
	EntranceFee  *big.Int
	RecentWinner common.Address
	Balance      *big.Int
	LinkBalance  *big.Int
	// Deployments counts the lotteries deployed on the network.
	Deployments int
}

// Status reads the state of the latest lottery.
func (s *Scripts) Status(ctx context.Context) (*Status, error) {
	lottery, err := s.CurrentLottery(ctx)
	if err != nil {
		return nil, err
	}

	st := &Status{Network: s.env.Network, Address: lottery.Address}
	if st.State, err = lottery.State(ctx); err != nil {
		return nil, err
	}
	if st.EntranceFee, err = lottery.EntranceFee(ctx); err != nil {
		return nil, err
	}
	if st.RecentWinner, err = lottery.RecentWinner(ctx); err != nil {
		return nil, err
	}
	if st.Balance, err = s.env.Client.Balance(ctx, lottery.Address); err != nil {
		return nil, err
	}
	if st.Deployments, err = s.env.Registry.Count(ctx, s.env.Network, contracts.LotteryName); err != nil {
		return nil, err
	}

	// The LINK balance is informational. A profile without a token address
	// or a local chain without a live token still gets a status.
	link, err := s.Existing(ctx, "link_token")
	if err != nil {
		s.env.Logger.Debug("LINK balance unavailable", slog.String("error", err.Error()))
		return st, nil
	}
	if st.LinkBalance, err = contracts.NewLinkToken(link).BalanceOf(ctx, lottery.Address); err != nil {
		return nil, err
	}
	return st, nil
}

// Winner returns the recent winner of the latest lottery.
func (s *Scripts) Winner(ctx context.Context) (common.Address, error) {
	lottery, err := s.CurrentLottery(ctx)
	if err != nil {
		return common.Address{}, err
	}
	return lottery.RecentWinner(ctx)
}
