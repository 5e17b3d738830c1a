package account

import (
	"context"
	"errors"
	"math/big"
	"os"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const walletKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestDefaultDevKeys(t *testing.T) {
	expected := []string{
		"0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266",
		"0x70997970C51812dc3A010C7d01b50e0d17dc79C8",
		"0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC",
	}
	for i, want := range expected {
		a, err := FromHex(DefaultDevKeys[i], "")
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress(want), a.Address(), "dev key %d", i)
	}
}

func TestFromHex(t *testing.T) {
	a, err := FromHex(walletKey, "wallet")
	require.NoError(t, err)
	b, err := FromHex(walletKey[2:], "wallet")
	require.NoError(t, err)
	assert.Equal(t, a.Address(), b.Address())

	for _, bad := range []string{"", "0x", "zz", "0x1234"} {
		_, err := FromHex(bad, "")
		assert.ErrorIs(t, err, ErrInvalidKey, "input %q", bad)
	}
}

func TestTransactor(t *testing.T) {
	a, err := FromHex(DefaultDevKeys[0], "dev[0]")
	require.NoError(t, err)

	opts, err := a.Transactor(big.NewInt(1337))
	require.NoError(t, err)
	assert.Equal(t, a.Address(), opts.From)
	assert.Contains(t, a.String(), "dev[0]")
}

func newResolver(t *testing.T, net string, chainID int64, fromKey string) (*Resolver, *Keystore) {
	t.Helper()
	ks := NewKeystore(t.TempDir(), WithLightScrypt())
	r := NewResolver(ResolverConfig{
		Network:  net,
		ChainID:  big.NewInt(chainID),
		FromKey:  fromKey,
		Keystore: ks,
		Password: func(string) (string, error) { return "hunter2", nil },
	})
	return r, ks
}

func TestResolverGet(t *testing.T) {
	ctx := context.Background()
	wallet, err := FromHex(walletKey, "")
	require.NoError(t, err)
	dev0, err := FromHex(DefaultDevKeys[0], "")
	require.NoError(t, err)
	dev2, err := FromHex(DefaultDevKeys[2], "")
	require.NoError(t, err)

	t.Run("local network defaults to dev account 0", func(t *testing.T) {
		r, _ := newResolver(t, "development", 1337, walletKey)
		a, err := r.Get(ctx, Options{})
		require.NoError(t, err)
		assert.Equal(t, dev0.Address(), a.Address())
	})

	t.Run("index zero counts as unset", func(t *testing.T) {
		r, _ := newResolver(t, "rinkeby", 4, walletKey)
		a, err := r.Get(ctx, AtIndex(0))
		require.NoError(t, err)
		assert.Equal(t, wallet.Address(), a.Address())
	})

	t.Run("index selects a dev account on any network", func(t *testing.T) {
		r, _ := newResolver(t, "rinkeby", 4, "")
		a, err := r.Get(ctx, AtIndex(2))
		require.NoError(t, err)
		assert.Equal(t, dev2.Address(), a.Address())
	})

	t.Run("index out of range", func(t *testing.T) {
		r, _ := newResolver(t, "development", 1337, "")
		_, err := r.Get(ctx, AtIndex(10))
		assert.ErrorIs(t, err, ErrNoDevAccount)
	})

	t.Run("forked network uses dev accounts on mainnet chain id", func(t *testing.T) {
		r, _ := newResolver(t, "mainnet-fork", 1, "")
		a, err := r.Get(ctx, Options{})
		require.NoError(t, err)
		assert.Equal(t, dev0.Address(), a.Address())
	})

	t.Run("dev accounts refused on production chain", func(t *testing.T) {
		r, _ := newResolver(t, "mainnet", 1, walletKey)
		_, err := r.Get(ctx, AtIndex(1))
		assert.Error(t, err)
	})

	t.Run("live network uses wallet key", func(t *testing.T) {
		r, _ := newResolver(t, "rinkeby", 4, walletKey)
		a, err := r.Get(ctx, Options{})
		require.NoError(t, err)
		assert.Equal(t, wallet.Address(), a.Address())
		assert.Equal(t, "wallet", a.Source)
	})

	t.Run("live network without wallet key", func(t *testing.T) {
		r, _ := newResolver(t, "rinkeby", 4, "")
		_, err := r.Get(ctx, Options{})
		assert.ErrorIs(t, err, ErrNoWalletKey)
	})

	t.Run("id loads keystore account", func(t *testing.T) {
		r, ks := newResolver(t, "rinkeby", 4, walletKey)
		stored, err := ks.New("alice", "hunter2")
		require.NoError(t, err)

		a, err := r.Get(ctx, WithID("alice"))
		require.NoError(t, err)
		assert.Equal(t, stored.Address(), a.Address())
		assert.Equal(t, "keystore:alice", a.Source)
	})

	t.Run("unknown id", func(t *testing.T) {
		r, _ := newResolver(t, "development", 1337, "")
		_, err := r.Get(ctx, WithID("bob"))
		assert.ErrorIs(t, err, ErrAccountNotFound)
	})

	t.Run("password error is returned", func(t *testing.T) {
		ks := NewKeystore(t.TempDir(), WithLightScrypt())
		_, err := ks.New("alice", "pw")
		require.NoError(t, err)
		boom := errors.New("no tty")
		r := NewResolver(ResolverConfig{
			Network:  "development",
			Keystore: ks,
			Password: func(string) (string, error) { return "", boom },
		})
		_, err = r.Get(ctx, WithID("alice"))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("canceled context", func(t *testing.T) {
		r, _ := newResolver(t, "development", 1337, "")
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := r.Get(cctx, Options{})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestKeystore(t *testing.T) {
	ks := NewKeystore(t.TempDir(), WithLightScrypt())

	entries, err := ks.List()
	require.NoError(t, err)
	assert.Empty(t, entries)

	imported, err := ks.Import("deployer", walletKey, "pw")
	require.NoError(t, err)
	created, err := ks.New("alice", "pw")
	require.NoError(t, err)

	entries, err = ks.List()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[0].ID)
	assert.Equal(t, created.Address(), entries[0].Address)
	assert.Equal(t, "deployer", entries[1].ID)
	assert.Equal(t, imported.Address(), entries[1].Address)

	info, err := os.Stat(ks.Path("deployer"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := ks.Load("deployer", "pw")
	require.NoError(t, err)
	assert.Equal(t, imported.Address(), loaded.Address())

	_, err = ks.Load("deployer", "wrong")
	assert.Error(t, err)

	_, err = ks.New("alice", "pw")
	assert.ErrorIs(t, err, ErrAccountExists)

	_, err = ks.New("../escape", "pw")
	assert.ErrorIs(t, err, ErrInvalidAccountID)

	_, err = ks.Load("missing", "pw")
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestPromptPasswordFromEnv(t *testing.T) {
	t.Setenv(PasswordEnv, "from-env")
	pw, err := PromptPassword("alice")
	require.NoError(t, err)
	assert.Equal(t, "from-env", pw)
}
