// Package config loads the toml configuration for the bridge state tooling.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config describes where the bridge's ledger store lives and which network's
// parameters interpret it.
type Config struct {
	// Network selects the bridge deployment: mainnet, testnet, regtest.
	Network string `toml:"Network"`
	// Backend selects the store: leveldb or bolt.
	Backend string `toml:"Backend"`
	// DataDir is the store location: a directory for leveldb, a file for
	// bolt.
	DataDir string `toml:"DataDir"`
}

// Load loads the configuration from the given path, creating a default file
// when none exists. Unknown keys are rejected so a typo cannot silently point
// the tool at the wrong store.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %q", path, undecoded[0].String())
	}

	if cfg.Network == "" {
		cfg.Network = "regtest"
	}
	if cfg.Backend == "" {
		cfg.Backend = "leveldb"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./pegbridge-data"
	}
	switch cfg.Backend {
	case "leveldb", "bolt":
	default:
		return nil, fmt.Errorf("config file %s has unsupported backend %q", path, cfg.Backend)
	}

	return cfg, nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := &Config{
		Network: "regtest",
		Backend: "leveldb",
		DataDir: "./pegbridge-data",
	}
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
