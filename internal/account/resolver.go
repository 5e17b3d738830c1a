package account

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"os"

	"github.com/howeyc/gopass"

	"github.com/Mubson1/Deploy-Lottery/internal/network"
)

// PasswordEnv is read before prompting for a keystore password.
const PasswordEnv = "LOTTERY_ACCOUNT_PASSWORD"

// PasswordFunc returns the password for a keystore account.
type PasswordFunc func(id string) (string, error)

// PromptPassword reads the password from PasswordEnv, or asks on the
// terminal with masked input.
func PromptPassword(id string) (string, error) {
	if pw, ok := os.LookupEnv(PasswordEnv); ok {
		return pw, nil
	}
	fmt.Fprintf(os.Stderr, "%s password: ", id)
	pw, err := gopass.GetPasswdMasked()
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}

// Options selects an account. The zero value picks the network default.
type Options struct {
	// Index selects a dev account. Zero counts as unset.
	Index *int
	// ID names a keystore account.
	ID string
}

// AtIndex selects dev account i.
func AtIndex(i int) Options {
	return Options{Index: &i}
}

// WithID selects the keystore account id.
func WithID(id string) Options {
	return Options{ID: id}
}

// ResolverConfig configures a Resolver.
type ResolverConfig struct {
	Network  string
	ChainID  *big.Int
	FromKey  string
	DevKeys  []string
	Keystore *Keystore
	Password PasswordFunc
	Logger   *slog.Logger
}

// Resolver picks the signing account for the active network.
type Resolver struct {
	cfg ResolverConfig
}

// NewResolver creates a resolver.
func NewResolver(cfg ResolverConfig) *Resolver {
	if len(cfg.DevKeys) == 0 {
		cfg.DevKeys = DefaultDevKeys
	}
	if cfg.Password == nil {
		cfg.Password = PromptPassword
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Resolver{cfg: cfg}
}

// Get resolves an account:
//  1. a non-zero Index selects that dev account,
//  2. an ID loads the keystore account,
//  3. local and forked networks default to dev account 0,
//  4. anything else uses the configured wallet key.
func (r *Resolver) Get(ctx context.Context, opts Options) (*Account, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		a   *Account
		err error
	)
	switch {
	case opts.Index != nil && *opts.Index != 0:
		a, err = r.Dev(*opts.Index)
	case opts.ID != "":
		a, err = r.keystore(opts.ID)
	case network.UsesDevAccounts(r.cfg.Network):
		a, err = r.Dev(0)
	default:
		a, err = r.wallet()
	}
	if err != nil {
		return nil, err
	}

	r.cfg.Logger.Debug("account resolved",
		slog.String("network", r.cfg.Network),
		slog.String("address", a.Address().Hex()),
		slog.String("source", a.Source),
	)
	return a, nil
}

// Dev returns dev account i. Dev keys are refused on production chain IDs.
func (r *Resolver) Dev(i int) (*Account, error) {
	if err := network.CheckNotProduction(r.cfg.Network, r.cfg.ChainID); err != nil {
		return nil, err
	}
	if i < 0 || i >= len(r.cfg.DevKeys) {
		return nil, fmt.Errorf("%w: %d (have %d)", ErrNoDevAccount, i, len(r.cfg.DevKeys))
	}
	return FromHex(r.cfg.DevKeys[i], fmt.Sprintf("dev[%d]", i))
}

func (r *Resolver) keystore(id string) (*Account, error) {
	if r.cfg.Keystore == nil {
		return nil, fmt.Errorf("%w: %s (no keystore configured)", ErrAccountNotFound, id)
	}
	if _, err := os.Stat(r.cfg.Keystore.Path(id)); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, id)
	}
	pw, err := r.cfg.Password(id)
	if err != nil {
		return nil, err
	}
	return r.cfg.Keystore.Load(id, pw)
}

func (r *Resolver) wallet() (*Account, error) {
	if r.cfg.FromKey == "" {
		return nil, fmt.Errorf("%w for network %q", ErrNoWalletKey, r.cfg.Network)
	}
	return FromHex(r.cfg.FromKey, "wallet")
}
