package registry

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) (*Registry, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "build", "deployments.db")
	r, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r, path
}

func TestAddLatestCount(t *testing.T) {
	ctx := context.Background()
	r, _ := openTemp(t)

	_, err := r.Latest(ctx, "development", "Lottery")
	assert.ErrorIs(t, err, ErrNotFound)

	n, err := r.Count(ctx, "development", "Lottery")
	require.NoError(t, err)
	assert.Zero(t, n)

	first := common.HexToAddress("0x01")
	second := common.HexToAddress("0x02")
	require.NoError(t, r.Add(ctx, Record{Network: "development", Contract: "Lottery", Address: first, Block: 3}))
	require.NoError(t, r.Add(ctx, Record{Network: "development", Contract: "Lottery", Address: second, Block: 9}))
	require.NoError(t, r.Add(ctx, Record{Network: "rinkeby", Contract: "Lottery", Address: first}))

	latest, err := r.Latest(ctx, "development", "Lottery")
	require.NoError(t, err)
	assert.Equal(t, second, latest.Address)
	assert.Equal(t, uint64(9), latest.Block)
	assert.False(t, latest.DeployedAt.IsZero(), "deployed_at is filled in")

	n, err = r.Count(ctx, "development", "Lottery")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = r.Latest(ctx, "development", "LinkToken")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddRequiresKeys(t *testing.T) {
	r, _ := openTemp(t)
	assert.Error(t, r.Add(context.Background(), Record{Contract: "Lottery"}))
	assert.Error(t, r.Add(context.Background(), Record{Network: "development"}))
}

func TestListAndNetworks(t *testing.T) {
	ctx := context.Background()
	r, _ := openTemp(t)

	at := time.Date(2022, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, name := range []string{"MockV3Aggregator", "LinkToken", "VRFCoordinatorMock"} {
		require.NoError(t, r.Add(ctx, Record{Network: "development", Contract: name, DeployedAt: at}))
	}
	require.NoError(t, r.Add(ctx, Record{Network: "ganache-local", Contract: "Lottery"}))

	recs, err := r.List(ctx, "development")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	names := []string{recs[0].Contract, recs[1].Contract, recs[2].Contract}
	assert.ElementsMatch(t, []string{"MockV3Aggregator", "LinkToken", "VRFCoordinatorMock"}, names)
	assert.True(t, at.Equal(recs[0].DeployedAt))

	empty, err := r.List(ctx, "kovan")
	require.NoError(t, err)
	assert.Empty(t, empty)

	nets, err := r.Networks(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"development", "ganache-local"}, nets)
}

func TestReset(t *testing.T) {
	ctx := context.Background()
	r, _ := openTemp(t)

	require.NoError(t, r.Add(ctx, Record{Network: "development", Contract: "Lottery"}))
	require.NoError(t, r.Add(ctx, Record{Network: "rinkeby", Contract: "Lottery"}))

	require.NoError(t, r.Reset(ctx, "development"))
	require.NoError(t, r.Reset(ctx, "development"), "reset of an empty network is a no-op")

	_, err := r.Latest(ctx, "development", "Lottery")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = r.Latest(ctx, "rinkeby", "Lottery")
	assert.NoError(t, err)
}

func TestPersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "deployments.db")

	r, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, r.Add(ctx, Record{Network: "development", Contract: "Lottery", Address: common.HexToAddress("0xabc")}))
	require.NoError(t, r.Close())

	r, err = Open(path)
	require.NoError(t, err)
	defer r.Close()

	rec, err := r.Latest(ctx, "development", "Lottery")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0xabc"), rec.Address)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestCanceledContext(t *testing.T) {
	r, _ := openTemp(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Add(ctx, Record{Network: "development", Contract: "Lottery"}), context.Canceled)
}
