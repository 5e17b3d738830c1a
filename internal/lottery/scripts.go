package lottery

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"

	"github.com/Mubson1/Deploy-Lottery/internal/account"
	"github.com/Mubson1/Deploy-Lottery/internal/contracts"
	"github.com/Mubson1/Deploy-Lottery/internal/network"
	"github.com/Mubson1/Deploy-Lottery/internal/registry"
	"github.com/Mubson1/Deploy-Lottery/internal/verify"
)

// Defaults used when Settings leaves a field zero.
const (
	DefaultEntranceBuffer    = 100000000
	DefaultFundAmount        = 100000000000000000 // 0.1 LINK
	DefaultRandomnessTimeout = 60 * time.Second
	DefaultPollInterval      = 2 * time.Second
)

var errNoAnswerYet = errors.New("lottery: randomness not fulfilled yet")

// Settings tunes the scripts.
type Settings struct {
	// EntranceBuffer is added to getEntranceFee() when entering.
	EntranceBuffer *big.Int
	// FundAmount is the LINK sent to the lottery before it is ended.
	FundAmount *big.Int
	// RandomnessTimeout bounds the wait for the VRF answer.
	RandomnessTimeout time.Duration
	// PollInterval is the first delay between lottery_state() reads.
	PollInterval time.Duration
	// FulfillLocally answers the randomness request through the
	// coordinator mock on local chains.
	FulfillLocally bool
	// Account selects the signing account.
	Account account.Options
	// Remappings map import prefixes onto installed packages, as given to
	// the compiler. Nil means DefaultRemappings.
	Remappings []string
}

// DefaultRemappings resolve the Chainlink contracts the lottery imports.
var DefaultRemappings = []string{"@chainlink=smartcontractkit/chainlink-brownie-contracts@1.1.1"}

func (s *Settings) withDefaults() {
	if s.EntranceBuffer == nil {
		s.EntranceBuffer = big.NewInt(DefaultEntranceBuffer)
	}
	if s.FundAmount == nil {
		s.FundAmount = big.NewInt(DefaultFundAmount)
	}
	if s.RandomnessTimeout == 0 {
		s.RandomnessTimeout = DefaultRandomnessTimeout
	}
	if s.PollInterval == 0 {
		s.PollInterval = DefaultPollInterval
	}
	if s.Remappings == nil {
		s.Remappings = DefaultRemappings
	}
}

// Scripts runs the lottery lifecycle on one network.
type Scripts struct {
	*Resolver
	settings Settings
}

// NewScripts creates the scripts for env.
func NewScripts(env *Env, settings Settings) *Scripts {
	settings.withDefaults()
	return &Scripts{
		Resolver: NewResolver(env, settings.Account),
		settings: settings,
	}
}

// Result is the outcome of ending a lottery.
type Result struct {
	Lottery common.Address
	Winner  common.Address
	// Pending is set when the randomness answer did not arrive in time; the
	// winner is then the one of the previous round.
	Pending   bool
	RequestID [32]byte
}

// FundOptions overrides the defaults of FundWithLink.
type FundOptions struct {
	Account   *account.Account
	LinkToken *contracts.LinkToken
	// Amount in LINK base units. Nil means the configured fund amount.
	Amount *big.Int
}

// FundWithLink transfers LINK to a contract so it can pay for randomness.
func (s *Scripts) FundWithLink(ctx context.Context, to common.Address, opts FundOptions) (*types.Transaction, error) {
	signer := opts.Account
	if signer == nil {
		var err error
		if signer, err = s.Account(ctx); err != nil {
			return nil, err
		}
	}
	link := opts.LinkToken
	if link == nil {
		c, err := s.Contract(ctx, "link_token")
		if err != nil {
			return nil, err
		}
		link = contracts.NewLinkToken(c)
	}
	amount := opts.Amount
	if amount == nil {
		amount = s.settings.FundAmount
	}

	tx, err := link.Transfer(ctx, signer, to, amount)
	if err != nil {
		return nil, fmt.Errorf("fund %s with LINK: %w", to.Hex(), err)
	}
	if _, err := s.wait(ctx, "fund", tx); err != nil {
		return nil, fmt.Errorf("fund %s with LINK: %w", to.Hex(), err)
	}

	s.say("Fund contract!",
		addressAttr("to", to),
		slog.String("amount", amount.String()),
		slog.String("tx_hash", tx.Hash().Hex()),
	)
	return tx, nil
}

// DeployLottery deploys a new lottery wired to the price feed, VRF
// coordinator and LINK token of the network.
func (s *Scripts) DeployLottery(ctx context.Context) (*contracts.Lottery, error) {
	signer, err := s.Account(ctx)
	if err != nil {
		return nil, err
	}

	var deps []common.Address
	for _, name := range []string{"eth_usd_price_feed", "vrf_coordinator", "link_token"} {
		c, err := s.Contract(ctx, name)
		if err != nil {
			return nil, err
		}
		deps = append(deps, c.Address)
	}
	fee, err := s.env.Profile.FeeWei()
	if err != nil {
		return nil, fmt.Errorf("network %s: %w", s.env.Network, err)
	}
	keyHash, err := s.env.Profile.KeyHashBytes()
	if err != nil {
		return nil, fmt.Errorf("network %s: %w", s.env.Network, err)
	}

	args := []interface{}{deps[0], deps[1], deps[2], fee, keyHash}
	dep, err := s.deploy(ctx, signer, contracts.LotteryName, args...)
	if err != nil {
		return nil, err
	}

	if s.env.Profile.Verify {
		s.publish(ctx, dep.Contract.Address, args)
	}

	s.say("Lottery Deployed!",
		addressAttr("address", dep.Contract.Address),
		slog.String("tx_hash", dep.Tx.Hash().Hex()),
	)
	return contracts.NewLottery(dep.Contract), nil
}

// publish verifies the lottery source on the explorer. Failures do not undo
// the deployment and are only logged.
func (s *Scripts) publish(ctx context.Context, address common.Address, args []interface{}) {
	logger := s.env.Logger.With(addressAttr("address", address))
	if s.env.Verifier == nil {
		logger.Warn("source publication requested but no explorer is configured")
		return
	}

	art, err := s.env.Artifacts.Load(contracts.LotteryName)
	if err != nil {
		logger.Warn("source publication skipped", slog.String("error", err.Error()))
		return
	}
	encoded, err := art.EncodeConstructorArgs(args...)
	if err != nil {
		logger.Warn("source publication skipped", slog.String("error", err.Error()))
		return
	}

	req := verify.Request{
		Address:         address,
		Artifact:        art,
		ConstructorArgs: encoded,
	}
	// Sources with a known path are sent with their imports; a bare
	// source is assumed to be flattened.
	if art.SourcePath != "" {
		req.Input, req.SourceName, err = s.env.Artifacts.StandardInput(contracts.LotteryName, s.settings.Remappings)
		if err != nil {
			logger.Warn("source publication skipped", slog.String("error", err.Error()))
			return
		}
	}

	if _, err := s.env.Verifier.Publish(ctx, req); err != nil {
		logger.Warn("source publication failed", slog.String("error", err.Error()))
	}
}

// CurrentLottery binds the most recently deployed lottery.
func (s *Scripts) CurrentLottery(ctx context.Context) (*contracts.Lottery, error) {
	c, err := s.Latest(ctx, contracts.LotteryName)
	if errors.Is(err, registry.ErrNotFound) || errors.Is(err, errStale) {
		return nil, fmt.Errorf("%w: %s", ErrNoLottery, s.env.Network)
	}
	if err != nil {
		return nil, err
	}
	return contracts.NewLottery(c), nil
}

// StartLottery opens the latest lottery for entries.
func (s *Scripts) StartLottery(ctx context.Context) error {
	signer, err := s.Account(ctx)
	if err != nil {
		return err
	}
	lottery, err := s.CurrentLottery(ctx)
	if err != nil {
		return err
	}

	tx, err := lottery.StartLottery(ctx, signer)
	if err != nil {
		return err
	}
	if _, err := s.wait(ctx, "start", tx); err != nil {
		return fmt.Errorf("start lottery: %w", err)
	}

	s.say("The lottery is started!", addressAttr("address", lottery.Address))
	return nil
}

// EnterLottery buys a ticket for the entrance fee plus the configured
// buffer and returns the amount paid.
func (s *Scripts) EnterLottery(ctx context.Context) (*big.Int, error) {
	signer, err := s.Account(ctx)
	if err != nil {
		return nil, err
	}
	lottery, err := s.CurrentLottery(ctx)
	if err != nil {
		return nil, err
	}

	fee, err := lottery.EntranceFee(ctx)
	if err != nil {
		return nil, err
	}
	value := new(big.Int).Add(fee, s.settings.EntranceBuffer)

	tx, err := lottery.Enter(ctx, signer, value)
	if err != nil {
		return nil, err
	}
	if _, err := s.wait(ctx, "enter", tx); err != nil {
		return nil, fmt.Errorf("enter lottery: %w", err)
	}

	s.say("You have entered the lottery!",
		addressAttr("address", lottery.Address),
		slog.String("value", value.String()),
	)
	return value, nil
}

// EndLottery funds the lottery with LINK, ends it and waits for the
// randomness answer to pick a winner.
func (s *Scripts) EndLottery(ctx context.Context) (*Result, error) {
	signer, err := s.Account(ctx)
	if err != nil {
		return nil, err
	}
	lottery, err := s.CurrentLottery(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := s.FundWithLink(ctx, lottery.Address, FundOptions{Account: signer}); err != nil {
		return nil, err
	}

	tx, err := lottery.EndLottery(ctx, signer)
	if err != nil {
		return nil, err
	}
	receipt, err := s.wait(ctx, "end", tx)
	if err != nil {
		return nil, fmt.Errorf("end lottery: %w", err)
	}

	ended := time.Now()
	result := &Result{Lottery: lottery.Address}
	requestID, ok, err := lottery.RequestID(receipt)
	if err != nil {
		return nil, err
	}
	if ok {
		result.RequestID = requestID
		s.env.Logger.Info("randomness requested",
			slog.String("request_id", common.Hash(requestID).Hex()),
		)
	}

	if network.IsLocal(s.env.Network) && s.settings.FulfillLocally {
		if !ok {
			s.env.Logger.Warn("no RequestedRandomness event in receipt, skipping local fulfilment",
				slog.String("tx_hash", tx.Hash().Hex()),
			)
		} else if err := s.fulfill(ctx, signer, requestID, lottery.Address); err != nil {
			return nil, err
		}
	}

	if err := s.awaitAnswer(ctx, lottery); err != nil {
		if !errors.Is(err, errNoAnswerYet) {
			return nil, err
		}
		result.Pending = true
		s.env.Logger.Warn("randomness answer did not arrive in time, reporting the previous winner",
			slog.Duration("timeout", s.settings.RandomnessTimeout),
		)
	}

	winner, err := lottery.RecentWinner(ctx)
	if err != nil {
		return nil, err
	}
	result.Winner = winner
	s.env.Metrics.ObserveRound(s.env.Network, result.Pending, time.Since(ended))

	s.say(fmt.Sprintf("%s is the new winner!", winner.Hex()),
		addressAttr("winner", winner),
		slog.Bool("pending", result.Pending),
	)
	return result, nil
}

// fulfill answers a randomness request through the coordinator mock.
func (s *Scripts) fulfill(ctx context.Context, signer *account.Account, requestID [32]byte, consumer common.Address) error {
	c, err := s.Contract(ctx, "vrf_coordinator")
	if err != nil {
		return err
	}
	randomness, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 256))
	if err != nil {
		return fmt.Errorf("generate randomness: %w", err)
	}

	tx, err := contracts.NewVRFCoordinatorMock(c).CallBackWithRandomness(ctx, signer, requestID, randomness, consumer)
	if err != nil {
		return err
	}
	if _, err := s.wait(ctx, "fulfil", tx); err != nil {
		return fmt.Errorf("fulfil randomness: %w", err)
	}

	s.env.Logger.Info("randomness fulfilled locally",
		slog.String("request_id", common.Hash(requestID).Hex()),
		slog.String("tx_hash", tx.Hash().Hex()),
	)
	return nil
}

// awaitAnswer polls lottery_state() until the lottery is CLOSED again,
// which happens once the VRF coordinator delivered the randomness.
// errNoAnswerYet is returned when RandomnessTimeout elapses first.
func (s *Scripts) awaitAnswer(ctx context.Context, lottery *contracts.Lottery) error {
	eback := backoff.NewExponentialBackOff()
	eback.InitialInterval = s.settings.PollInterval
	eback.MaxInterval = 5 * s.settings.PollInterval
	eback.MaxElapsedTime = s.settings.RandomnessTimeout

	var boff backoff.BackOff = eback
	if s.settings.RandomnessTimeout < 0 {
		boff = &backoff.StopBackOff{}
	}

	check := func() error {
		state, err := lottery.State(ctx)
		if err != nil {
			return err
		}
		if state != contracts.StateClosed {
			s.env.Logger.Debug("waiting for randomness", slog.String("state", state.String()))
			return errNoAnswerYet
		}
		return nil
	}

	err := backoff.Retry(check, backoff.WithContext(boff, ctx))
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Run deploys a lottery, starts it, enters it and ends it.
func (s *Scripts) Run(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	logger := s.env.Logger
	s.env.Logger = logger.With(slog.String("run_id", runID))
	defer func() { s.env.Logger = logger }()

	s.env.Logger.Info("starting lottery run", slog.String("network", s.env.Network))

	if _, err := s.DeployLottery(ctx); err != nil {
		return nil, fmt.Errorf("deploy lottery: %w", err)
	}
	if err := s.StartLottery(ctx); err != nil {
		return nil, fmt.Errorf("start lottery: %w", err)
	}
	if _, err := s.EnterLottery(ctx); err != nil {
		return nil, fmt.Errorf("enter lottery: %w", err)
	}
	result, err := s.EndLottery(ctx)
	if err != nil {
		return nil, fmt.Errorf("end lottery: %w", err)
	}
	return result, nil
}
