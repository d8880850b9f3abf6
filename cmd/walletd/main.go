// Package main provides walletd - a CLI entrypoint over the wallet engine's
// public operations, one invocation per operation rather than a
// long-lived daemon.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klingon-exchange/liquid-wallet-core/internal/network"
	"github.com/klingon-exchange/liquid-wallet-core/internal/store"
	"github.com/klingon-exchange/liquid-wallet-core/internal/walletcrypto"
	wlt "github.com/klingon-exchange/liquid-wallet-core/internal/wallet"
	"github.com/klingon-exchange/liquid-wallet-core/pkg/logging"
)

var (
	version = "0.1.0-dev"
	commit  = "unknown"
)

func main() {
	var (
		dataDir     = flag.String("data-dir", "~/.walletd", "Data directory")
		chainFlag   = flag.String("chain", "bitcoin", "Chain family (bitcoin, sidechain)")
		netFlag     = flag.String("net", "mainnet", "Network (mainnet, testnet, regtest)")
		seedFile    = flag.String("seed-file", "", "Path to the password-protected seed envelope")
		password    = flag.String("password", "", "Password protecting the seed envelope")
		op          = flag.String("op", "", "Operation: init, get-address, balance, list-tx, get-settings, change-settings")
		logLevel    = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
		first       = flag.Int("first", 0, "list-tx: pagination offset")
		count       = flag.Int("count", 30, "list-tx: pagination count")
		settingsArg = flag.String("settings", "", "change-settings: opaque settings JSON blob")
		showVersion = flag.Bool("version", false, "Show version and exit")
	)
	flag.Parse()

	log := logging.New(&logging.Config{Level: *logLevel, TimeFormat: time.TimeOnly})
	logging.SetDefault(log)

	if *showVersion {
		log.Infof("walletd %s (commit: %s)", version, commit)
		os.Exit(0)
	}

	params, ok := network.Get(network.Chain(*chainFlag), network.Net(*netFlag))
	if !ok {
		log.Fatal("Unknown chain/net combination", "chain", *chainFlag, "net", *netFlag)
	}

	dataPath := expandPath(*dataDir)
	st, err := store.New(&store.Config{DataDir: dataPath, Chain: params.Chain, Logger: log.Component("store")})
	if err != nil {
		log.Fatal("Failed to open store", "error", err)
	}
	defer st.Close()

	if *op == "init" {
		runInit(log, *seedFile, *password)
		return
	}

	if *seedFile == "" {
		log.Fatal("seed-file is required for this operation")
	}
	mnemonic, err := loadMnemonic(*seedFile, *password)
	if err != nil {
		log.Fatal("Failed to unlock seed", "error", err)
	}

	w, err := wlt.Open(&wlt.OpenConfig{
		Store:    st,
		Params:   params,
		Mnemonic: mnemonic,
		Log:      log.Component("wallet"),
	})
	if err != nil {
		log.Fatal("Failed to open wallet", "error", err)
	}

	switch *op {
	case "get-address":
		addr, err := w.GetAddress()
		if err != nil {
			log.Fatal("get-address failed", "error", err)
		}
		printJSON(log, addr)
	case "balance":
		balances, err := w.Balance()
		if err != nil {
			log.Fatal("balance failed", "error", err)
		}
		printJSON(log, balances)
	case "list-tx":
		txs, err := w.ListTx(*first, *count)
		if err != nil {
			log.Fatal("list-tx failed", "error", err)
		}
		printJSON(log, txs)
	case "get-settings":
		blob, err := w.GetSettings()
		if err != nil {
			log.Fatal("get-settings failed", "error", err)
		}
		fmt.Println(string(blob))
	case "change-settings":
		if err := w.ChangeSettings([]byte(*settingsArg)); err != nil {
			log.Fatal("change-settings failed", "error", err)
		}
		log.Info("Settings updated")
	default:
		log.Fatal("Unknown or missing -op", "op", *op)
	}
}

func runInit(log *logging.Logger, seedFile, password string) {
	if seedFile == "" {
		log.Fatal("seed-file is required for init")
	}
	mnemonic, err := walletcrypto.GenerateMnemonic()
	if err != nil {
		log.Fatal("Failed to generate mnemonic", "error", err)
	}
	encrypted, err := walletcrypto.EncryptMnemonic(mnemonic, password)
	if err != nil {
		log.Fatal("Failed to encrypt seed", "error", err)
	}
	if err := walletcrypto.SaveEncryptedSeed(encrypted, seedFile); err != nil {
		log.Fatal("Failed to save seed", "error", err)
	}
	log.Info("Wallet initialized", "seed-file", seedFile)
	log.Warn("Record this mnemonic now; it will not be shown again", "mnemonic", mnemonic)
}

func loadMnemonic(seedFile, password string) (string, error) {
	encrypted, err := walletcrypto.LoadEncryptedSeed(seedFile)
	if err != nil {
		return "", fmt.Errorf("load seed envelope: %w", err)
	}
	mnemonic, err := walletcrypto.DecryptMnemonic(encrypted, password)
	if err != nil {
		return "", fmt.Errorf("decrypt seed envelope: %w", err)
	}
	return mnemonic, nil
}

func printJSON(log *logging.Logger, v interface{}) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		log.Fatal("Failed to marshal output", "error", err)
	}
	fmt.Println(string(out))
}

func expandPath(path string) string {
	if len(path) > 0 && path[0] == '~' {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[1:])
	}
	return path
}
