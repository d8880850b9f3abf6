package wallet

import (
	"fmt"

	"github.com/klingon-exchange/liquid-wallet-core/internal/keys"
	"github.com/klingon-exchange/liquid-wallet-core/internal/network"
	"github.com/klingon-exchange/liquid-wallet-core/internal/store"
	"github.com/klingon-exchange/liquid-wallet-core/internal/walletcrypto"
	"github.com/klingon-exchange/liquid-wallet-core/pkg/logging"
)

// GenerateMnemonic and ValidateMnemonic pass through to walletcrypto:
// mnemonic lifecycle is that package's concern, exposed here so callers
// never need to import it directly.
func GenerateMnemonic() (string, error) { return walletcrypto.GenerateMnemonic() }

func ValidateMnemonic(mnemonic string) bool { return walletcrypto.ValidateMnemonic(mnemonic) }

// OpenConfig bootstraps a Wallet from a mnemonic rather than already-derived
// extended keys (generate_xprv/xpub_from_xprv are a separate, lower-level
// pair of operations; most real callers go through a mnemonic instead).
type OpenConfig struct {
	Store      store.Store
	Params     *network.Params
	Mnemonic   string
	Passphrase string // BIP-39 passphrase; "" is the common case
	Log        *logging.Logger
}

// Open derives xprv/xpub (and, on the sidechain, the master blinding key)
// from a mnemonic and constructs a Wallet, the bootstrap path
// cmd/walletd wires to its CLI flags.
func Open(cfg *OpenConfig) (*Wallet, error) {
	if cfg == nil || cfg.Store == nil || cfg.Params == nil {
		return nil, fmt.Errorf("wallet: store and params are required")
	}
	if !ValidateMnemonic(cfg.Mnemonic) {
		return nil, fmt.Errorf("wallet: invalid mnemonic")
	}

	seed := walletcrypto.SeedFromMnemonic(cfg.Mnemonic, cfg.Passphrase)

	xprv, err := keys.XprvFromSeed(seed, cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("wallet: derive master key: %w", err)
	}
	xpub, err := keys.XpubFromXprv(xprv)
	if err != nil {
		return nil, fmt.Errorf("wallet: neuter master key: %w", err)
	}

	var masterBlinding []byte
	if cfg.Params.Chain == network.Sidechain {
		masterBlinding = keys.MasterBlindingKeyFromSeed(seed)
	}

	return New(&Config{
		Store:          cfg.Store,
		Params:         cfg.Params,
		Xprv:           xprv,
		Xpub:           xpub,
		MasterBlinding: masterBlinding,
		Log:            cfg.Log,
	})
}
