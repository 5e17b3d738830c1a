// Package config provides configuration loading for lotteryctl.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/viper"

	"github.com/Mubson1/Deploy-Lottery/internal/network"
	"github.com/Mubson1/Deploy-Lottery/internal/units"
)

// FileName is the config file name searched for when no explicit path is given.
const FileName = "lottery-config"

// VRF parameters used on local networks, where the coordinator is a mock
// that accepts any key hash.
const (
	defaultKeyHash = "0x2ed0feb3e7fd2022120aa84fab1945545a9f2ffc9076fd6156fa96eaff4c1311"
	defaultFee     = "100000000000000000"
)

// Sentinel errors - Configuration
var (
	ErrUnknownNetwork = errors.New("config: unknown network")
	ErrMissingAddress = errors.New("config: contract address not configured")
	ErrMissingKeyHash = errors.New("config: keyhash not configured")
	ErrMissingFee     = errors.New("config: fee not configured")
	ErrInvalidConfig  = errors.New("config: invalid configuration")
)

// Config holds all configuration for the application.
type Config struct {
	DefaultNetwork string                   `mapstructure:"default_network" yaml:"default_network" validate:"required"`
	Project        ProjectConfig            `mapstructure:"project" yaml:"project"`
	Wallets        WalletsConfig            `mapstructure:"wallets" yaml:"wallets"`
	Lottery        LotteryConfig            `mapstructure:"lottery" yaml:"lottery"`
	Etherscan      EtherscanConfig          `mapstructure:"etherscan" yaml:"etherscan"`
	Log            LogConfig                `mapstructure:"log" yaml:"log"`
	Metrics        MetricsConfig            `mapstructure:"metrics" yaml:"metrics"`
	Networks       map[string]NetworkConfig `mapstructure:"networks" yaml:"networks" validate:"dive"`
}

// ProjectConfig points at the build output and local state of the project.
type ProjectConfig struct {
	ArtifactsDir string `mapstructure:"artifacts_dir" yaml:"artifacts_dir" validate:"required"`
	RegistryPath string `mapstructure:"registry_path" yaml:"registry_path" validate:"required"`
	KeystoreDir  string `mapstructure:"keystore_dir" yaml:"keystore_dir" validate:"required"`

	// Remappings map import prefixes to installed package paths, as
	// prefix=package@version.
	Remappings []string `mapstructure:"remappings" yaml:"remappings,omitempty"`
}

// WalletsConfig holds the keys used to sign on live networks.
type WalletsConfig struct {
	FromKey string   `mapstructure:"from_key" yaml:"from_key"`
	DevKeys []string `mapstructure:"dev_keys" yaml:"dev_keys,omitempty" validate:"dive,hexadecimal"`
}

// LotteryConfig tunes the lottery scripts.
type LotteryConfig struct {
	EntranceBuffer    string        `mapstructure:"entrance_buffer" yaml:"entrance_buffer"`
	FundAmount        string        `mapstructure:"fund_amount" yaml:"fund_amount"`
	// RandomnessTimeout bounds the wait for the VRF answer. Zero means the
	// default and a negative value disables waiting.
	RandomnessTimeout time.Duration `mapstructure:"randomness_timeout" yaml:"randomness_timeout"`
	Confirmations     uint64        `mapstructure:"confirmations" yaml:"confirmations" validate:"gte=1"`
	FulfillLocally    bool          `mapstructure:"fulfill_locally" yaml:"fulfill_locally"`
}

// EtherscanConfig configures source publication.
type EtherscanConfig struct {
	APIURL string `mapstructure:"api_url" yaml:"api_url" validate:"omitempty,url"`
	APIKey string `mapstructure:"api_key" yaml:"api_key"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
	File   string `mapstructure:"file" yaml:"file,omitempty"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Textfile receives the Prometheus samples of each command when set.
	Textfile string `mapstructure:"textfile" yaml:"textfile,omitempty"`
}

// NetworkConfig is one network profile.
type NetworkConfig struct {
	Host            string `mapstructure:"host" yaml:"host" validate:"required,url"`
	ChainID         int64  `mapstructure:"chain_id" yaml:"chain_id" validate:"gte=0"`
	EthUsdPriceFeed string `mapstructure:"eth_usd_price_feed" yaml:"eth_usd_price_feed,omitempty" validate:"omitempty,eth_addr"`
	VRFCoordinator  string `mapstructure:"vrf_coordinator" yaml:"vrf_coordinator,omitempty" validate:"omitempty,eth_addr"`
	LinkToken       string `mapstructure:"link_token" yaml:"link_token,omitempty" validate:"omitempty,eth_addr"`
	KeyHash         string `mapstructure:"keyhash" yaml:"keyhash,omitempty" validate:"omitempty,hexadecimal,len=66"`
	Fee             string `mapstructure:"fee" yaml:"fee,omitempty"`
	Verify          bool   `mapstructure:"verify" yaml:"verify"`
}

// Load reads configuration from the given file (or the default search path
// when empty) and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.lotteryctl")
	}

	v.SetEnvPrefix("LOTTERY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Secrets are usually exported under their conventional names.
	v.BindEnv("wallets.from_key", "LOTTERY_WALLETS_FROM_KEY", "PRIVATE_KEY")
	v.BindEnv("etherscan.api_key", "LOTTERY_ETHERSCAN_API_KEY", "ETHERSCAN_TOKEN")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.expandEnv()
	return &cfg, nil
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	v.SetDefault("default_network", network.Default)

	v.SetDefault("project.artifacts_dir", "build/contracts")
	v.SetDefault("project.registry_path", "build/deployments.db")
	v.SetDefault("project.keystore_dir", "~/.lotteryctl/accounts")
	v.SetDefault("project.remappings", []string{"@chainlink=smartcontractkit/chainlink-brownie-contracts@1.1.1"})

	v.SetDefault("lottery.entrance_buffer", "100000000")
	v.SetDefault("lottery.fund_amount", "0.1link")
	v.SetDefault("lottery.randomness_timeout", "60s")
	v.SetDefault("lottery.confirmations", 1)
	v.SetDefault("lottery.fulfill_locally", true)

	v.SetDefault("etherscan.api_url", "https://api.etherscan.io/api")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.textfile", "")

	v.SetDefault("networks.development.host", "http://127.0.0.1:8545")
	// Local nodes disagree on their chain ID (anvil and hardhat use 31337,
	// ganache 1337), so development skips the check.
	v.SetDefault("networks.development.chain_id", 0)
	v.SetDefault("networks.development.keyhash", defaultKeyHash)
	v.SetDefault("networks.development.fee", defaultFee)
	v.SetDefault("networks.ganache-local.host", "http://127.0.0.1:7545")
	v.SetDefault("networks.ganache-local.chain_id", 1337)
	v.SetDefault("networks.ganache-local.keyhash", defaultKeyHash)
	v.SetDefault("networks.ganache-local.fee", defaultFee)
}

// expandEnv substitutes ${VAR} references the same way the config file
// conventionally allows for secrets and RPC URLs.
func (c *Config) expandEnv() {
	c.Wallets.FromKey = os.ExpandEnv(c.Wallets.FromKey)
	c.Etherscan.APIKey = os.ExpandEnv(c.Etherscan.APIKey)
	c.Project.ArtifactsDir = expandPath(c.Project.ArtifactsDir)
	c.Project.RegistryPath = expandPath(c.Project.RegistryPath)
	c.Project.KeystoreDir = expandPath(c.Project.KeystoreDir)
	c.Metrics.Textfile = expandPath(c.Metrics.Textfile)
	for name, n := range c.Networks {
		n.Host = os.ExpandEnv(n.Host)
		c.Networks[name] = n
	}
}

func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

// Network returns the profile for name.
func (c *Config) Network(name string) (NetworkConfig, error) {
	n, ok := c.Networks[strings.ToLower(name)]
	if !ok {
		return NetworkConfig{}, fmt.Errorf("%w: %q", ErrUnknownNetwork, name)
	}
	return n, nil
}

// NetworkNames returns the configured network names, sorted.
func (c *Config) NetworkNames() []string {
	names := make([]string, 0, len(c.Networks))
	for name := range c.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EntranceBufferWei is the amount added on top of the entrance fee.
func (c *Config) EntranceBufferWei() (*big.Int, error) {
	v, err := units.ParseValue(c.Lottery.EntranceBuffer)
	if err != nil {
		return nil, fmt.Errorf("lottery.entrance_buffer: %w", err)
	}
	return v, nil
}

// FundAmountWei is the LINK amount sent to the lottery before it is ended.
func (c *Config) FundAmountWei() (*big.Int, error) {
	v, err := units.ParseValue(c.Lottery.FundAmount)
	if err != nil {
		return nil, fmt.Errorf("lottery.fund_amount: %w", err)
	}
	return v, nil
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	out := *c
	if out.Wallets.FromKey != "" {
		out.Wallets.FromKey = "<redacted>"
	}
	if len(out.Wallets.DevKeys) > 0 {
		out.Wallets.DevKeys = []string{fmt.Sprintf("<%d keys redacted>", len(c.Wallets.DevKeys))}
	}
	if out.Etherscan.APIKey != "" {
		out.Etherscan.APIKey = "<redacted>"
	}
	return out
}

// Address returns the configured address of a logical contract name
// (eth_usd_price_feed, vrf_coordinator, link_token).
func (n NetworkConfig) Address(contract string) (common.Address, error) {
	var hex string
	switch contract {
	case "eth_usd_price_feed":
		hex = n.EthUsdPriceFeed
	case "vrf_coordinator":
		hex = n.VRFCoordinator
	case "link_token":
		hex = n.LinkToken
	}
	if hex == "" || !common.IsHexAddress(hex) {
		return common.Address{}, fmt.Errorf("%w: %s", ErrMissingAddress, contract)
	}
	return common.HexToAddress(hex), nil
}

// FeeWei returns the VRF fee in LINK base units.
func (n NetworkConfig) FeeWei() (*big.Int, error) {
	if n.Fee == "" {
		return nil, ErrMissingFee
	}
	v, err := units.ParseValue(n.Fee)
	if err != nil {
		return nil, fmt.Errorf("fee: %w", err)
	}
	return v, nil
}

// KeyHashBytes returns the VRF key hash.
func (n NetworkConfig) KeyHashBytes() ([32]byte, error) {
	var out [32]byte
	if n.KeyHash == "" {
		return out, ErrMissingKeyHash
	}
	b, err := hexutil.Decode(n.KeyHash)
	if err != nil {
		return out, fmt.Errorf("keyhash: %w", err)
	}
	if len(b) != len(out) {
		return out, fmt.Errorf("keyhash: expected 32 bytes, got %d", len(b))
	}
	copy(out[:], b)
	return out, nil
}
