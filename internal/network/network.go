// Package network classifies network names into local, forked and live
// environments.
package network

import (
	"fmt"
	"math/big"
	"slices"
)

// Default network selected when none is configured.
const Default = "development"

// LocalBlockchainEnvironments run a throwaway chain where mocks get deployed.
var LocalBlockchainEnvironments = []string{"development", "ganache-local"}

// ForkedLocalEnvironments fork a live chain locally. They reuse the live
// contract addresses but sign with the local dev accounts.
var ForkedLocalEnvironments = []string{"mainnet-fork", "mainnet-fork-dev"}

// productionChainIDs must never be signed for with publicly known dev keys.
var productionChainIDs = map[int64]string{
	1:     "Ethereum Mainnet",
	10:    "Optimism",
	137:   "Polygon",
	8453:  "Base",
	42161: "Arbitrum One",
}

// IsLocal reports whether name is a local blockchain environment.
func IsLocal(name string) bool {
	return slices.Contains(LocalBlockchainEnvironments, name)
}

// IsForked reports whether name is a forked local environment.
func IsForked(name string) bool {
	return slices.Contains(ForkedLocalEnvironments, name)
}

// UsesDevAccounts reports whether accounts on name default to the local dev
// accounts instead of the configured wallet.
func UsesDevAccounts(name string) bool {
	return IsLocal(name) || IsForked(name)
}

// CheckNotProduction returns an error when chainID belongs to a production
// network. Forks keep the chain ID of the forked network, so callers pass the
// network name as well.
func CheckNotProduction(name string, chainID *big.Int) error {
	if chainID == nil || IsForked(name) {
		return nil
	}
	if chainName, ok := productionChainIDs[chainID.Int64()]; ok {
		return fmt.Errorf("dev accounts cannot be used on %s (chain_id=%s): keys are publicly known", chainName, chainID)
	}
	return nil
}
