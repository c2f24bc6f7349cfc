package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"vaultcore/config"
	"vaultcore/core/events"
	"vaultcore/core/state"
	"vaultcore/crypto"
	"vaultcore/native/vault"
	"vaultcore/observability/logging"
	"vaultcore/rpc"
	"vaultcore/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genKey := flag.String("genkey", "", "Generate a new account key, save it to the given keystore path and exit")
	flag.Parse()

	if *genKey != "" {
		if err := generateKey(*genKey); err != nil {
			fmt.Fprintf(os.Stderr, "failed to generate key: %v\n", err)
			os.Exit(1)
		}
		return
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup("vaultd", cfg.LogLevel)

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		logger.Error("failed to open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	ledger := state.NewLedger(db)
	if err := seedGenesis(ledger, cfg); err != nil {
		logger.Error("failed to seed genesis balances", "err", err)
		os.Exit(1)
	}
	if err := initializePools(ledger, cfg); err != nil {
		logger.Error("failed to initialise pools", "err", err)
		os.Exit(1)
	}

	server := rpc.NewServer(ledger, cfg, loggingEmitter{logger: logger}, logger)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", "err", err)
		os.Exit(1)
	}
}

// generateKey creates a fresh account key, encrypts it into an Ethereum v3
// keystore file and prints the bech32 address for use in genesis entries. The
// passphrase comes from VAULT_KEYSTORE_PASSPHRASE.
func generateKey(path string) error {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	if err := crypto.SaveToKeystore(path, key, os.Getenv("VAULT_KEYSTORE_PASSPHRASE")); err != nil {
		return err
	}
	fmt.Println(key.PubKey().Address())
	return nil
}

// seedGenesis credits the configured balances exactly once per data dir.
func seedGenesis(ledger *state.Ledger, cfg *config.Config) error {
	if len(cfg.Genesis) == 0 {
		return nil
	}
	applied, err := ledger.GenesisApplied()
	if err != nil {
		return err
	}
	if applied {
		return nil
	}
	return ledger.Atomically(func(tx *state.Ledger) error {
		for _, bal := range cfg.Genesis {
			addr, err := crypto.DecodeAddress(strings.TrimSpace(bal.Address))
			if err != nil {
				return err
			}
			amount, err := bal.ParsedAmount()
			if err != nil {
				return err
			}
			if err := tx.Credit(addr, strings.TrimSpace(bal.Asset), amount); err != nil {
				return err
			}
		}
		return tx.MarkGenesisApplied()
	})
}

// initializePools creates the configured asset pairings, skipping ones that
// already exist so restarts are idempotent.
func initializePools(ledger *state.Ledger, cfg *config.Config) error {
	for _, poolCfg := range cfg.Pools {
		err := ledger.Atomically(func(tx *state.Ledger) error {
			eng := vault.NewEngine()
			eng.SetState(tx)
			eng.SetCustody(tx)
			_, err := eng.InitializePool(poolCfg.Asset, poolCfg.RewardAsset)
			return err
		})
		if err != nil && !errors.Is(err, vault.ErrPoolExists) {
			return err
		}
	}
	return nil
}

// loggingEmitter surfaces engine events on the structured log until a real
// subscriber transport exists.
type loggingEmitter struct {
	logger interface {
		Info(msg string, args ...any)
	}
}

func (l loggingEmitter) Emit(evt events.Event) {
	l.logger.Info("vault event", "type", evt.EventType())
}
