package commands

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Mubson1/Deploy-Lottery/internal/account"
	"github.com/Mubson1/Deploy-Lottery/internal/artifacts"
	"github.com/Mubson1/Deploy-Lottery/internal/chain"
	"github.com/Mubson1/Deploy-Lottery/internal/lottery"
	"github.com/Mubson1/Deploy-Lottery/internal/metrics"
	"github.com/Mubson1/Deploy-Lottery/internal/registry"
	"github.com/Mubson1/Deploy-Lottery/internal/verify"
)

// session holds the connections opened for one command.
type session struct {
	env     *lottery.Env
	scripts *lottery.Scripts
	closers []func()
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// accountOptions turns the --index and --id flags into resolver options.
func accountOptions() account.Options {
	opts := account.Options{ID: accountID}
	if accountIndex != 0 {
		opts.Index = &accountIndex
	}
	return opts
}

func keystore() *account.Keystore {
	return account.NewKeystore(cfg.Project.KeystoreDir)
}

func openRegistry() (*registry.Registry, error) {
	reg, err := registry.Open(cfg.Project.RegistryPath)
	if err != nil {
		return nil, fmt.Errorf("open deployments registry: %w", err)
	}
	return reg, nil
}

// openSession dials the active network and wires the scripts.
func openSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	name := cfg.DefaultNetwork
	profile, err := cfg.Network(name)
	if err != nil {
		return nil, err
	}
	buffer, err := cfg.EntranceBufferWei()
	if err != nil {
		return nil, err
	}
	fund, err := cfg.FundAmountWei()
	if err != nil {
		return nil, err
	}

	log := logger.With(slog.String("network", name))
	s := &session{}

	client, err := chain.Dial(ctx, profile.Host, profile.ChainID, chain.Options{
		Confirmations: cfg.Lottery.Confirmations,
		Logger:        log,
	})
	if err != nil {
		return nil, fmt.Errorf("network %s: %w", name, err)
	}
	s.closers = append(s.closers, client.Close)

	reg, err := openRegistry()
	if err != nil {
		s.Close()
		return nil, err
	}
	s.closers = append(s.closers, func() { _ = reg.Close() })

	log.Info("connected", slog.String("host", profile.Host), slog.String("chain_id", client.ChainID().String()))

	s.env = &lottery.Env{
		Network: name,
		Profile: profile,
		Client:  client,
		Accounts: account.NewResolver(account.ResolverConfig{
			Network:  name,
			ChainID:  client.ChainID(),
			FromKey:  cfg.Wallets.FromKey,
			DevKeys:  cfg.Wallets.DevKeys,
			Keystore: keystore(),
			Logger:   log,
		}),
		Artifacts: artifacts.NewStore(cfg.Project.ArtifactsDir),
		Registry:  reg,
		Verifier: verify.New(verify.Config{
			APIURL: cfg.Etherscan.APIURL,
			APIKey: cfg.Etherscan.APIKey,
			Logger: log,
		}),
		Out:    cmd.OutOrStdout(),
		Logger: log,
	}
	if path := cfg.Metrics.Textfile; path != "" {
		m := metrics.New()
		s.env.Metrics = m
		s.closers = append(s.closers, func() {
			if err := m.WriteTextfile(path); err != nil {
				log.Warn("failed to write metrics", slog.String("error", err.Error()))
			}
		})
	}
	s.scripts = lottery.NewScripts(s.env, lottery.Settings{
		EntranceBuffer:    buffer,
		FundAmount:        fund,
		RandomnessTimeout: cfg.Lottery.RandomnessTimeout,
		FulfillLocally:    cfg.Lottery.FulfillLocally,
		Remappings:        cfg.Project.Remappings,
		Account:           accountOptions(),
	})
	return s, nil
}

// withSession runs fn against an open session.
func withSession(cmd *cobra.Command, fn func(ctx context.Context, s *session) error) error {
	ctx := cmd.Context()
	s, err := openSession(ctx, cmd)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}
