// Package store defines the Store contract the wallet engine core
// relies on for cached transactions, the script index, unblinded values,
// spent outpoints and the persisted index counters, plus a concrete SQLite
// adapter. The network client that populates the store and the persistence
// format itself are external collaborators; only the contract and one adapter
// live here so the core is exercisable end to end.
package store

import (
	"github.com/klingon-exchange/liquid-wallet-core/internal/network"
	"github.com/klingon-exchange/liquid-wallet-core/internal/walletdata"
)

// Store is the abstract read/write surface the core relies on. Implementations
// are responsible for snapshot consistency within a single create_tx or
// sign call and for write durability before returning.
type Store interface {
	// WalletTxIDs returns every txid the wallet has cached, independent of
	// chain.
	WalletTxIDs() ([]string, error)
	// CachedTx returns the cached transaction for txid, or nil if absent.
	CachedTx(txid string) (*walletdata.CachedTx, error)
	// SpentSet returns every outpoint the wallet has observed being spent.
	SpentSet() (map[walletdata.Outpoint]struct{}, error)
	// ScriptSet returns every scriptPubKey (hex) the wallet recognizes as
	// its own.
	ScriptSet() (map[string]struct{}, error)
	// UnblindedMap returns the full unblinded-output table (sidechain only).
	UnblindedMap() (map[walletdata.Outpoint]walletdata.Unblinded, error)
	// DerivationPath resolves a wallet-owned scriptPubKey to the path that
	// derives it.
	DerivationPath(scriptPubKey []byte) (walletdata.Path, bool, error)
	// BitcoinTx returns the raw cached Bitcoin transaction data for txid.
	BitcoinTx(txid string) (*walletdata.BitcoinTxData, error)
	// SidechainTx returns the raw cached sidechain transaction data for txid.
	SidechainTx(txid string) (*walletdata.SidechainTxData, error)
	// Header returns the block header cached at height, if any.
	Header(height uint32) ([]byte, bool, error)
	// Settings returns the opaque settings blob.
	Settings() ([]byte, error)
	// AssetRegistry returns the cached asset-registry blob.
	AssetRegistry() ([]byte, error)
	// AssetIcons returns the cached asset-icons blob.
	AssetIcons() ([]byte, error)
	// Index returns the current value of the named monotone counter.
	Index(kind walletdata.IndexKind) (uint32, error)

	// InsertSettings persists a new settings blob, replacing the prior one.
	InsertSettings(blob []byte) error
	// IncrementIndex atomically increments the named counter and returns
	// its new value (never decreases, never reused within a process).
	IncrementIndex(kind walletdata.IndexKind) (uint32, error)

	// RecordScript registers a scriptPubKey as wallet-owned at path, for
	// ScriptSet/DerivationPath lookups. Populated by the chain-follower
	// collaborator in production; exposed here so the core's own address
	// issuance (GetAddress) can register what it derives.
	RecordScript(scriptPubKey []byte, path walletdata.Path) error
	// RecordUnblinded stores the unblinded record for a sidechain outpoint.
	// A no-op if a record already exists (never mutated once stored).
	RecordUnblinded(op walletdata.Outpoint, u walletdata.Unblinded) error
	// RecordSpent marks an outpoint as spent.
	RecordSpent(op walletdata.Outpoint) error
	// PutCachedTx inserts or replaces a cached transaction.
	PutCachedTx(tx *walletdata.CachedTx) error

	// Chain reports the network family this store instance is scoped to.
	Chain() network.Chain
}
