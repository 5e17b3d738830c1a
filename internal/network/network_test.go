package network

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassification(t *testing.T) {
	tests := []struct {
		name   string
		local  bool
		forked bool
	}{
		{"development", true, false},
		{"ganache-local", true, false},
		{"mainnet-fork", false, true},
		{"mainnet-fork-dev", false, true},
		{"rinkeby", false, false},
		{"mainnet", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.local, IsLocal(tt.name))
			assert.Equal(t, tt.forked, IsForked(tt.name))
			assert.Equal(t, tt.local || tt.forked, UsesDevAccounts(tt.name))
		})
	}
}

func TestCheckNotProduction(t *testing.T) {
	assert.NoError(t, CheckNotProduction("development", big.NewInt(1337)))
	assert.NoError(t, CheckNotProduction("mainnet-fork", big.NewInt(1)), "forks keep the mainnet chain id")

	err := CheckNotProduction("development", big.NewInt(1))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "Ethereum Mainnet")
}
