// Package wallet wires key derivation, the store, the utxo view, the
// transaction builder, the blinder and the signer together behind the
// public operations the enclosing CLI/RPC dispatcher consumes: GetSettings,
// ChangeSettings, ListTx, Balance, CreateTx, Sign, GetAddress,
// GetAssetIcons, GetAssetRegistry and the ValidateAddress stub.
// GenerateXprv/XpubFromXprv live in internal/keys as free-standing helpers
// usable without an open wallet.
package wallet

import (
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"

	"github.com/klingon-exchange/liquid-wallet-core/internal/keys"
	"github.com/klingon-exchange/liquid-wallet-core/internal/network"
	"github.com/klingon-exchange/liquid-wallet-core/internal/store"
	"github.com/klingon-exchange/liquid-wallet-core/internal/walletdata"
	"github.com/klingon-exchange/liquid-wallet-core/internal/walletview"
	"github.com/klingon-exchange/liquid-wallet-core/pkg/logging"
)

// Config holds everything one Wallet instance needs at construction.
// Mnemonic/seed derivation happens upstream, so xprv/xpub/master blinding
// key arrive here already derived.
type Config struct {
	Store          store.Store
	Params         *network.Params
	Xprv           *hdkeychain.ExtendedKey
	Xpub           *hdkeychain.ExtendedKey
	MasterBlinding []byte // sidechain only; nil for Bitcoin
	Log            *logging.Logger
}

// Wallet is the single-threaded, synchronous core: one logical
// snapshot of the store's read views per top-level operation, no
// suspension points between snapshot acquisition and result assembly.
type Wallet struct {
	store          store.Store
	params         *network.Params
	xprv           *hdkeychain.ExtendedKey
	xpub           *hdkeychain.ExtendedKey
	masterBlinding []byte
	log            *logging.Logger

	// mu serializes GetAddress and Sign, the operations that advance an
	// index counter, against this instance; the other operations do not
	// take it. The store itself additionally serializes index increments
	// across instances.
	mu sync.Mutex
}

// New constructs a Wallet from cfg. Both Xprv and Xpub must be set; callers
// that only have a seed should derive both via keys before calling New.
func New(cfg *Config) (*Wallet, error) {
	if cfg == nil || cfg.Store == nil || cfg.Params == nil || cfg.Xprv == nil || cfg.Xpub == nil {
		return nil, fmt.Errorf("wallet: store, params, xprv and xpub are required")
	}
	if cfg.Params.Chain == network.Sidechain && len(cfg.MasterBlinding) == 0 {
		return nil, fmt.Errorf("wallet: master blinding key is required for the sidechain")
	}
	log := cfg.Log
	if log == nil {
		log = logging.GetDefault().Component("wallet")
	}
	return &Wallet{
		store:          cfg.Store,
		params:         cfg.Params,
		xprv:           cfg.Xprv,
		xpub:           cfg.Xpub,
		masterBlinding: cfg.MasterBlinding,
		log:            log,
	}, nil
}

// Network reports which (chain, net) this instance operates against.
func (w *Wallet) Network() *network.Params { return w.params }

// GetSettings returns the opaque settings blob.
func (w *Wallet) GetSettings() ([]byte, error) {
	blob, err := w.store.Settings()
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	return blob, nil
}

// ChangeSettings replaces the settings blob.
func (w *Wallet) ChangeSettings(blob []byte) error {
	if err := w.store.InsertSettings(blob); err != nil {
		return fmt.Errorf("change settings: %w", err)
	}
	return nil
}

// GetAssetIcons returns the cached asset-icons blob (sidechain-only in
// practice, but the pass-through itself is chain-agnostic).
func (w *Wallet) GetAssetIcons() ([]byte, error) {
	blob, err := w.store.AssetIcons()
	if err != nil {
		return nil, fmt.Errorf("get asset icons: %w", err)
	}
	return blob, nil
}

// GetAssetRegistry returns the cached asset-registry blob.
func (w *Wallet) GetAssetRegistry() ([]byte, error) {
	blob, err := w.store.AssetRegistry()
	if err != nil {
		return nil, fmt.Errorf("get asset registry: %w", err)
	}
	return blob, nil
}

// ValidateAddress is intentionally unimplemented; callers should not
// depend on it.
func (w *Wallet) ValidateAddress(addr string) error {
	return keys.ValidateAddress(addr)
}

// GetAddress issues the next external receive address: advances the
// External counter, derives [0, External], and registers the script with
// the store so the view and signer can recognize and spend it later.
func (w *Wallet) GetAddress() (*keys.Address, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	next, err := w.store.IncrementIndex(walletdata.IndexExternal)
	if err != nil {
		return nil, fmt.Errorf("advance external index: %w", err)
	}
	path := keys.Path{Branch: keys.BranchExternal, Index: next}

	addr, err := w.deriveAddress(path)
	if err != nil {
		return nil, err
	}
	if err := w.store.RecordScript(addr.ScriptPubKey, path); err != nil {
		return nil, fmt.Errorf("record issued script: %w", err)
	}
	return addr, nil
}

func (w *Wallet) deriveAddress(path keys.Path) (*keys.Address, error) {
	if w.params.Chain == network.Sidechain {
		addr, err := keys.DeriveConfidentialAddress(w.xpub, path, w.masterBlinding, w.params)
		if err != nil {
			return nil, wrapInvalidKey(path, err)
		}
		return addr, nil
	}
	addr, err := keys.DeriveAddress(w.xpub, path, w.params)
	if err != nil {
		return nil, wrapInvalidKey(path, err)
	}
	return addr, nil
}

func wrapInvalidKey(path keys.Path, err error) error {
	var ik *keys.InvalidKeyError
	if asInvalidKey(err, &ik) {
		return newInvalidKeyErr(fmt.Sprintf("derive [%d,%d]", path.Branch, path.Index), err)
	}
	return fmt.Errorf("derive address: %w", err)
}

func asInvalidKey(err error, target **keys.InvalidKeyError) bool {
	for err != nil {
		if e, ok := err.(*keys.InvalidKeyError); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Balance returns the per-asset sum of every spendable utxo in the current
// view.
func (w *Wallet) Balance() (map[string]uint64, error) {
	view, err := w.buildView()
	if err != nil {
		return nil, err
	}
	balances := make(map[string]uint64)
	for _, u := range view.Utxos {
		balances[u.Asset] += u.Value
	}
	return balances, nil
}

func (w *Wallet) buildView() (*walletdata.WalletView, error) {
	view, err := walletview.Build(w.store, w.params, w.log)
	if err != nil {
		return nil, fmt.Errorf("build wallet view: %w", err)
	}
	return view, nil
}
