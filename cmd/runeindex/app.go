package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/synnergy-labs/runeindex/internal/chain/bitcoinrpc"
	"github.com/synnergy-labs/runeindex/internal/config"
	"github.com/synnergy-labs/runeindex/internal/engine"
	"github.com/synnergy-labs/runeindex/internal/logging"
	"github.com/synnergy-labs/runeindex/internal/metrics"
	"github.com/synnergy-labs/runeindex/internal/runestone"
	"github.com/synnergy-labs/runeindex/internal/store/postgres"
)

// app bundles the collaborators every long-running subcommand needs:
// the store, the bitcoind block source, the metrics registry and the
// wired engine.
type app struct {
	cfg      *config.Config
	store    *postgres.Store
	client   *bitcoinrpc.Client
	metrics  *metrics.Collectors
	registry *prometheus.Registry
	engine   *engine.Engine
}

// newApp loads configPath, opens the store and wires an Engine against
// it (spec §6.3: every subcommand but `config new` needs this).
func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	st, err := postgres.Open(ctx, cfg.Postgres.DSN())
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	client := bitcoinrpc.New(cfg.Network.BitcoindRPCURL, cfg.Network.BitcoindRPCUsername, cfg.Network.BitcoindRPCPassword, 0)

	log := logging.New(cfg.Logs.RunesInternals, cfg.Logs.ChainhookInternals)
	hot := logging.NewHotPath(cfg.Logs.RunesInternals)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	eng, err := engine.New(log, hot, st, runestone.Decoder{}, string(cfg.Network.BitcoinNetwork), int(cfg.Resources.LRUCacheSize), m)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}

	return &app{cfg: cfg, store: st, client: client, metrics: m, registry: reg, engine: eng}, nil
}

func (a *app) Close() {
	a.store.Close()
}
