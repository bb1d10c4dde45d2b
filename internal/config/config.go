// Package config loads the indexer's TOML configuration and exposes the
// typed sections consumed by the store, block source and CLI.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/synnergy-labs/runeindex/internal/utils"
)

// BitcoinNetwork enumerates the networks recognized by [network] bitcoin_network.
type BitcoinNetwork string

const (
	Mainnet BitcoinNetwork = "mainnet"
	Testnet BitcoinNetwork = "testnet"
	Signet  BitcoinNetwork = "signet"
	Regtest BitcoinNetwork = "regtest"
)

func (n BitcoinNetwork) valid() bool {
	switch n {
	case Mainnet, Testnet, Signet, Regtest:
		return true
	default:
		return false
	}
}

// Postgres holds the store connection parameters.
type Postgres struct {
	Database string `mapstructure:"database"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// DSN renders the libpq connection string pgx expects.
func (p Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s", p.Username, p.Password, p.Host, p.Port, p.Database)
}

// Network holds the block-source connection parameters.
type Network struct {
	BitcoinNetwork       BitcoinNetwork `mapstructure:"bitcoin_network"`
	BitcoindRPCURL       string         `mapstructure:"bitcoind_rpc_url"`
	BitcoindRPCUsername  string         `mapstructure:"bitcoind_rpc_username"`
	BitcoindRPCPassword  string         `mapstructure:"bitcoind_rpc_password"`
	BitcoindZMQURL       string         `mapstructure:"bitcoind_zmq_url"`
}

// Resources holds per-cache capacity. Shared by the three IndexCache LRUs.
type Resources struct {
	LRUCacheSize uint `mapstructure:"lru_cache_size"`
}

// Logs toggles per-subsystem debug logging.
type Logs struct {
	RunesInternals      bool `mapstructure:"runes_internals"`
	ChainhookInternals  bool `mapstructure:"chainhook_internals"`
}

// Config is the root TOML document described in spec §6.4.
type Config struct {
	Postgres  Postgres  `mapstructure:"postgres"`
	Network   Network   `mapstructure:"network"`
	Resources Resources `mapstructure:"resources"`
	Logs      Logs      `mapstructure:"logs"`
}

const defaultLRUCacheSize = 10_000

func defaults() Config {
	return Config{
		Resources: Resources{LRUCacheSize: defaultLRUCacheSize},
	}
}

// Load reads the TOML file at path into a Config, applying the same
// defaults-then-override pattern as the rest of the ambient stack
// (viper.SetConfigFile + AutomaticEnv) and validating the fields that the
// engine cannot safely proceed without.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetDefault("resources.lru_cache_size", defaultLRUCacheSize)
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "read config")
	}

	cfg := defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configs the engine cannot run with. Malformed config is
// fatal at startup (spec §7: "Config malformed | Exit 1 with diagnostic").
func (c *Config) Validate() error {
	if !c.Network.BitcoinNetwork.valid() {
		return fmt.Errorf("config: network.bitcoin_network %q is not one of mainnet,testnet,signet,regtest", c.Network.BitcoinNetwork)
	}
	if c.Postgres.Database == "" || c.Postgres.Host == "" {
		return fmt.Errorf("config: postgres.database and postgres.host are required")
	}
	if c.Network.BitcoindRPCURL == "" {
		return fmt.Errorf("config: network.bitcoind_rpc_url is required")
	}
	if c.Resources.LRUCacheSize == 0 {
		c.Resources.LRUCacheSize = defaultLRUCacheSize
	}
	return nil
}

// WriteDefault writes a default TOML config for the given network to path,
// backing the `config new` CLI subcommand (spec §6.3).
func WriteDefault(path string, network BitcoinNetwork) error {
	if !network.valid() {
		return fmt.Errorf("config: unknown network %q", network)
	}
	v := viper.New()
	v.SetConfigType("toml")
	v.Set("postgres.database", "runeindex")
	v.Set("postgres.host", "127.0.0.1")
	v.Set("postgres.port", 5432)
	v.Set("postgres.username", "postgres")
	v.Set("postgres.password", "")
	v.Set("network.bitcoin_network", string(network))
	v.Set("network.bitcoind_rpc_url", "http://127.0.0.1:8332")
	v.Set("network.bitcoind_rpc_username", "")
	v.Set("network.bitcoind_rpc_password", "")
	v.Set("resources.lru_cache_size", defaultLRUCacheSize)
	v.Set("logs.runes_internals", false)
	v.Set("logs.chainhook_internals", false)
	return v.WriteConfigAs(path)
}
