package lottery_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mubson1/Deploy-Lottery/internal/account"
	"github.com/Mubson1/Deploy-Lottery/internal/artifacts"
	"github.com/Mubson1/Deploy-Lottery/internal/chain/chaintest"
	"github.com/Mubson1/Deploy-Lottery/internal/config"
	"github.com/Mubson1/Deploy-Lottery/internal/contracts"
	"github.com/Mubson1/Deploy-Lottery/internal/lottery"
	"github.com/Mubson1/Deploy-Lottery/internal/metrics"
	"github.com/Mubson1/Deploy-Lottery/internal/registry"
	"github.com/Mubson1/Deploy-Lottery/internal/verify"
)

const testKeyHash = "0x2ed0feb3e7fd2022120aa84fab1945545a9f2ffc9076fd6156fa96eaff4c1311"

type fixture struct {
	h    *chaintest.Harness
	env  *lottery.Env
	out  *bytes.Buffer
	logs *bytes.Buffer
}

func newFixture(t *testing.T, net string, code map[string]string) *fixture {
	t.Helper()
	h := chaintest.New(t, 2)

	reg, err := registry.Open(filepath.Join(t.TempDir(), "deployments.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	out, logs := &bytes.Buffer{}, &bytes.Buffer{}
	logger := slog.New(slog.NewTextHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	env := &lottery.Env{
		Network: net,
		Profile: config.NetworkConfig{
			Host:    "http://127.0.0.1:8545",
			ChainID: 1337,
			KeyHash: testKeyHash,
			Fee:     "100000000000000000",
		},
		Client: h.Client,
		Accounts: account.NewResolver(account.ResolverConfig{
			Network: net,
			ChainID: h.Client.ChainID(),
			Logger:  logger,
		}),
		Artifacts: artifacts.NewStore(chaintest.WriteArtifactsWithCode(t, code)),
		Registry:  reg,
		Out:       out,
		Logger:    logger,
	}
	return &fixture{h: h, env: env, out: out, logs: logs}
}

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)
	return ctx
}

func fastSettings() lottery.Settings {
	return lottery.Settings{
		RandomnessTimeout: 200 * time.Millisecond,
		PollInterval:      10 * time.Millisecond,
		FulfillLocally:    true,
	}
}

func TestContractUnknownName(t *testing.T) {
	f := newFixture(t, "development", nil)
	r := lottery.NewResolver(f.env, account.Options{})
	_, err := r.Contract(testContext(t), "oracle")
	assert.ErrorIs(t, err, lottery.ErrUnknownContract)
}

func TestContractDeploysMocksOnce(t *testing.T) {
	ctx := testContext(t)
	f := newFixture(t, "development", nil)
	r := lottery.NewResolver(f.env, account.Options{})

	link, err := r.Contract(ctx, "link_token")
	require.NoError(t, err)
	assert.Equal(t, contracts.LinkTokenName, link.Name)
	assert.Equal(t, 1, strings.Count(f.out.String(), "Deployed!"))

	for logical, mock := range lottery.ContractToMock {
		n, err := f.env.Registry.Count(ctx, "development", mock)
		require.NoError(t, err)
		assert.Equal(t, 1, n, logical)
	}

	feed, err := r.Contract(ctx, "eth_usd_price_feed")
	require.NoError(t, err)
	assert.Equal(t, contracts.MockV3AggregatorName, feed.Name)
	again, err := r.Contract(ctx, "link_token")
	require.NoError(t, err)
	assert.Equal(t, link.Address, again.Address)
	assert.Equal(t, 1, strings.Count(f.out.String(), "Deployed!"), "mocks are reused")
}

func TestContractStaleRecordRedeploysMocks(t *testing.T) {
	ctx := testContext(t)
	f := newFixture(t, "development", nil)
	require.NoError(t, f.env.Registry.Add(ctx, registry.Record{
		Network:  "development",
		Contract: contracts.VRFCoordinatorMockName,
		Address:  common.HexToAddress("0xdead"),
	}))

	r := lottery.NewResolver(f.env, account.Options{})
	vrf, err := r.Contract(ctx, "vrf_coordinator")
	require.NoError(t, err)
	assert.NotEqual(t, common.HexToAddress("0xdead"), vrf.Address)
	assert.Contains(t, f.logs.String(), "recorded deployment is gone")
}

func TestContractLiveNetworkUsesProfile(t *testing.T) {
	ctx := testContext(t)
	f := newFixture(t, "rinkeby", nil)
	f.env.Profile.LinkToken = "0x01BE23585060835E02B77ef475b0Cc51aA1e0709"

	r := lottery.NewResolver(f.env, account.Options{})
	link, err := r.Contract(ctx, "link_token")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x01BE23585060835E02B77ef475b0Cc51aA1e0709"), link.Address)
	assert.Equal(t, contracts.LinkTokenName, link.Name)

	_, err = r.Contract(ctx, "vrf_coordinator")
	assert.ErrorIs(t, err, config.ErrMissingAddress)
	assert.Empty(t, f.out.String(), "no mocks on live networks")
}

func TestContractForkedNetworkUsesProfile(t *testing.T) {
	ctx := testContext(t)
	f := newFixture(t, "mainnet-fork", nil)
	f.env.Profile.EthUsdPriceFeed = "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419"
	f.env.Profile.VRFCoordinator = "0xf0d54349aDdcf704F77AE15b96510dEA15cb7952"
	f.env.Profile.LinkToken = "0x514910771AF9Ca656af840dff83E8264EcF986CA"

	r := lottery.NewResolver(f.env, account.Options{})
	for logical, want := range map[string]string{
		"eth_usd_price_feed": f.env.Profile.EthUsdPriceFeed,
		"vrf_coordinator":    f.env.Profile.VRFCoordinator,
		"link_token":         f.env.Profile.LinkToken,
	} {
		c, err := r.Contract(ctx, logical)
		require.NoError(t, err, logical)
		assert.Equal(t, common.HexToAddress(want), c.Address, logical)
		assert.Equal(t, lottery.ContractToMock[logical], c.Name, logical)
	}

	records, err := f.env.Registry.List(ctx, "mainnet-fork")
	require.NoError(t, err)
	assert.Empty(t, records, "forks use the real contracts")
	assert.Empty(t, f.out.String())
}

func TestStatusDoesNotDeployMocks(t *testing.T) {
	ctx := testContext(t)
	f := newFixture(t, "development", nil)
	s := lottery.NewScripts(f.env, fastSettings())

	l, err := s.DeployLottery(ctx)
	require.NoError(t, err)
	require.NoError(t, f.env.Registry.Add(ctx, registry.Record{
		Network:  "development",
		Contract: contracts.LinkTokenName,
		Address:  common.HexToAddress("0xdead"),
	}))
	before := f.out.String()

	st, err := s.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, l.Address, st.Address)
	assert.Nil(t, st.LinkBalance)

	n, err := f.env.Registry.Count(ctx, "development", contracts.LinkTokenName)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "no LINK token redeployed")
	assert.Equal(t, before, f.out.String())
}

func TestRun(t *testing.T) {
	ctx := testContext(t)
	f := newFixture(t, "development", nil)
	f.env.Metrics = metrics.New()
	s := lottery.NewScripts(f.env, fastSettings())

	result, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x01"), result.Winner)
	assert.False(t, result.Pending)

	lines := strings.Split(strings.TrimSpace(f.out.String()), "\n")
	assert.Equal(t, []string{
		"Deployed!",
		"Lottery Deployed!",
		"The lottery is started!",
		"You have entered the lottery!",
		"Fund contract!",
		common.HexToAddress("0x01").Hex() + " is the new winner!",
	}, lines)

	assert.Contains(t, f.logs.String(), "run_id=")
	assert.Contains(t, f.logs.String(), "skipping local fulfilment")

	n, err := f.env.Registry.Count(ctx, "development", contracts.LotteryName)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	t.Run("status", func(t *testing.T) {
		st, err := s.Status(ctx)
		require.NoError(t, err)
		assert.Equal(t, result.Lottery, st.Address)
		assert.Equal(t, contracts.StateClosed, st.State)
		assert.Equal(t, int64(1), st.EntranceFee.Int64())
		assert.Equal(t, int64(1), st.LinkBalance.Int64())
		assert.Equal(t, "100000001", st.Balance.String())
		assert.Equal(t, 1, st.Deployments)
	})

	t.Run("winner", func(t *testing.T) {
		w, err := s.Winner(ctx)
		require.NoError(t, err)
		assert.Equal(t, result.Winner, w)
	})

	t.Run("metrics", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "lottery.prom")
		require.NoError(t, f.env.Metrics.WriteTextfile(path))
		data, err := os.ReadFile(path)
		require.NoError(t, err)

		for _, sample := range []string{
			`lottery_deployments_total{contract="Lottery",network="development"} 1`,
			`lottery_deployments_total{contract="LinkToken",network="development"} 1`,
			`lottery_transactions_total{action="deploy",network="development",status="success"} 4`,
			`lottery_transactions_total{action="enter",network="development",status="success"} 1`,
			`lottery_transactions_total{action="end",network="development",status="success"} 1`,
			`lottery_rounds_ended_total{network="development",outcome="drawn"} 1`,
		} {
			assert.Contains(t, string(data), sample)
		}
	})
}

func TestScriptsWithoutLottery(t *testing.T) {
	ctx := testContext(t)
	f := newFixture(t, "development", nil)
	s := lottery.NewScripts(f.env, fastSettings())

	assert.ErrorIs(t, s.StartLottery(ctx), lottery.ErrNoLottery)
	_, err := s.EnterLottery(ctx)
	assert.ErrorIs(t, err, lottery.ErrNoLottery)
	_, err = s.EndLottery(ctx)
	assert.ErrorIs(t, err, lottery.ErrNoLottery)
	_, err = s.Status(ctx)
	assert.ErrorIs(t, err, lottery.ErrNoLottery)
}

func TestEnterLotteryPaysFeePlusBuffer(t *testing.T) {
	ctx := testContext(t)
	f := newFixture(t, "development", nil)
	settings := fastSettings()
	settings.EntranceBuffer = big.NewInt(500)
	settings.Account = account.AtIndex(1)
	s := lottery.NewScripts(f.env, settings)

	l, err := s.DeployLottery(ctx)
	require.NoError(t, err)
	paid, err := s.EnterLottery(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(501), paid.Int64())

	bal, err := f.h.Client.Balance(ctx, l.Address)
	require.NoError(t, err)
	assert.Equal(t, int64(501), bal.Int64())

	rec, err := f.env.Registry.Latest(ctx, "development", contracts.LotteryName)
	require.NoError(t, err)
	assert.Equal(t, f.h.Accounts[1].Address(), rec.Deployer, "index 1 signs")
}

func TestEndLotteryPendingWhenNoAnswer(t *testing.T) {
	ctx := testContext(t)
	f := newFixture(t, "development", map[string]string{
		contracts.LotteryName: chaintest.ZeroStubBytecode,
	})
	s := lottery.NewScripts(f.env, fastSettings())

	_, err := s.DeployLottery(ctx)
	require.NoError(t, err)

	result, err := s.EndLottery(ctx)
	require.NoError(t, err)
	assert.True(t, result.Pending)
	assert.Equal(t, common.Address{}, result.Winner)
	assert.Contains(t, f.logs.String(), "did not arrive in time")
}

// requestingStub emits RequestedRandomness(7) on every call and returns 1.
func requestingStub() string {
	topic := crypto.Keccak256Hash([]byte("RequestedRandomness(bytes32)"))
	runtime := "6007600052" + "7f" + common.Bytes2Hex(topic.Bytes()) + "60206000a1" + "600160005260206000f3"
	return "0x6035600c60003960356000f3" + runtime
}

func TestEndLotteryFulfilsLocally(t *testing.T) {
	ctx := testContext(t)
	f := newFixture(t, "development", map[string]string{
		contracts.LotteryName: requestingStub(),
	})
	s := lottery.NewScripts(f.env, fastSettings())

	_, err := s.DeployLottery(ctx)
	require.NoError(t, err)

	result, err := s.EndLottery(ctx)
	require.NoError(t, err)
	assert.Equal(t, byte(7), result.RequestID[31])
	assert.False(t, result.Pending)
	assert.Contains(t, f.logs.String(), "randomness fulfilled locally")
}

func TestFundWithLinkOverrides(t *testing.T) {
	ctx := testContext(t)
	f := newFixture(t, "development", nil)
	s := lottery.NewScripts(f.env, fastSettings())

	tx, err := s.FundWithLink(ctx, common.HexToAddress("0xbeef"), lottery.FundOptions{
		Account: f.h.Accounts[1],
		Amount:  big.NewInt(42),
	})
	require.NoError(t, err)

	from, err := types.Sender(types.LatestSignerForChainID(f.h.Client.ChainID()), tx)
	require.NoError(t, err)
	assert.Equal(t, f.h.Accounts[1].Address(), from)
	assert.Contains(t, f.out.String(), "Fund contract!")
	assert.Contains(t, f.logs.String(), "amount=42")
}

func TestDeployLotteryPublishesSource(t *testing.T) {
	var submitted, sourceCode atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		result := "Pass - Verified"
		if r.Form.Get("action") == "verifysourcecode" {
			submitted.Store(r.Form.Get("contractname"))
			sourceCode.Store(r.Form.Get("sourceCode"))
			result = "guid"
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "1", "message": "OK", "result": result})
	}))
	defer srv.Close()

	ctx := testContext(t)
	f := newFixture(t, "development", nil)
	f.env.Profile.Verify = true
	f.env.Verifier = verify.New(verify.Config{APIURL: srv.URL, APIKey: "key", PollInterval: time.Millisecond})

	_, err := lottery.NewScripts(f.env, fastSettings()).DeployLottery(ctx)
	require.NoError(t, err)
	assert.Equal(t, "contracts/Lottery.sol:Lottery", submitted.Load())
	assert.Contains(t, f.logs.String(), "source verified")

	var input artifacts.StandardInput
	require.NoError(t, json.Unmarshal([]byte(sourceCode.Load().(string)), &input))
	require.Contains(t, input.Sources, "@chainlink/contracts/src/v0.6/VRFConsumerBase.sol")
	assert.Equal(t, chaintest.VRFConsumerBaseSource, input.Sources["@chainlink/contracts/src/v0.6/VRFConsumerBase.sol"].Content)
	assert.Contains(t, input.Sources, "contracts/Lottery.sol")
}

func TestDeployLotteryPublishFailureIsNotFatal(t *testing.T) {
	ctx := testContext(t)
	f := newFixture(t, "development", nil)
	f.env.Profile.Verify = true
	f.env.Verifier = verify.New(verify.Config{APIURL: "http://127.0.0.1:1"})

	_, err := lottery.NewScripts(f.env, fastSettings()).DeployLottery(ctx)
	require.NoError(t, err)
	assert.Contains(t, f.logs.String(), verify.ErrNoAPIKey.Error())
	assert.Contains(t, f.out.String(), "Lottery Deployed!")
}

func TestDeployLotteryMissingKeyHash(t *testing.T) {
	ctx := testContext(t)
	f := newFixture(t, "development", nil)
	f.env.Profile.KeyHash = ""

	_, err := lottery.NewScripts(f.env, fastSettings()).DeployLottery(ctx)
	assert.ErrorIs(t, err, config.ErrMissingKeyHash)
}

func TestDeployLotteryMissingFee(t *testing.T) {
	ctx := testContext(t)
	f := newFixture(t, "development", nil)
	f.env.Profile.Fee = ""

	_, err := lottery.NewScripts(f.env, fastSettings()).DeployLottery(ctx)
	assert.ErrorIs(t, err, config.ErrMissingFee)
	n, err := f.env.Registry.Count(ctx, "development", contracts.LotteryName)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func ExampleContractToMock() {
	fmt.Println(lottery.ContractToMock["vrf_coordinator"])
	// Output: VRFCoordinatorMock
}
