// Package walletdata holds the data model shared across the wallet engine's
// components: paths, outpoints, cached transactions, unblinded records,
// utxos, the assembled wallet view, transaction drafts, and the persisted
// index counters. No component owns these types exclusively; Store,
// UtxoView, CoinSelector/TxBuilder, Blinder and Signer all read and write
// them.
package walletdata

import "github.com/klingon-exchange/liquid-wallet-core/internal/network"

// Branch identifies external (receive) vs internal (change) derivation.
const (
	BranchExternal uint32 = 0
	BranchInternal uint32 = 1
)

// Path is the two-element non-hardened child path every address derivation
// uses: [branch, index].
type Path struct {
	Branch uint32
	Index  uint32
}

// IndexKind names one of the two monotone counters persisted by the store.
type IndexKind string

const (
	IndexExternal IndexKind = "external"
	IndexInternal IndexKind = "internal"
)

// Outpoint is tagged by chain so Bitcoin and sidechain outpoints never alias
// each other even if txid/vout happen to collide.
type Outpoint struct {
	Chain network.Chain
	TxID  string // hex, big-endian display order
	Vout  uint32
}

// Unblinded is the per-outpoint record the sidechain's confidential outputs
// resolve to once the wallet has recovered their blinding factors. Stored
// once per outpoint and never mutated.
type Unblinded struct {
	Asset [32]byte
	Value uint64
	ABF   [32]byte
	VBF   [32]byte
}

// Utxo is a spendable output as seen by coin selection.
type Utxo struct {
	Outpoint Outpoint
	Asset    string // "btc" for Bitcoin and for the sidechain's policy asset; hex asset id otherwise
	Value    uint64
	Script   []byte
}

// CachedTx is a transaction held in the local cache, tagged by chain. Only
// one of Bitcoin/Sidechain is populated, matching the Chain field.
type CachedTx struct {
	Chain     network.Chain
	TxID      string
	Bitcoin   *BitcoinTxData
	Sidechain *SidechainTxData
	// OwnedInputsOnly is true when every input of this transaction spends a
	// wallet-owned output. The chain follower populates it at ingestion time
	// (the core never resolves inputs back to their previous outputs itself);
	// ListTx consults it to classify a tx as a "redeposit" rather than
	// incoming/outgoing.
	OwnedInputsOnly bool
}

// BitcoinTxData is the subset of a Bitcoin transaction the core needs:
// outputs (for UtxoView scanning and prevout lookups) addressed by vout.
type BitcoinTxData struct {
	Outputs []BitcoinTxOut
}

type BitcoinTxOut struct {
	Value        int64
	ScriptPubKey []byte
}

// SidechainTxData mirrors an Elements-style confidential transaction: every
// output's value/asset/nonce may be explicit or confidential.
type SidechainTxData struct {
	Outputs []SidechainTxOut
}

type SidechainTxOut struct {
	// Asset is 33 bytes: 0x01||<32-byte asset id> when explicit, or the
	// serialized asset generator when confidential (outputs blinded by
	// internal/confidential carry it as a compressed point, 0x02/0x03 prefix).
	Asset []byte
	// Value is 9 bytes (0x01||8-byte-LE satoshi) when explicit, or the
	// 33-byte Pedersen commitment when confidential.
	Value []byte
	// Nonce is empty/absent when unblinded, or 33 bytes
	// (prefix||blinding-pubkey-x) when confidential.
	Nonce           []byte
	ScriptPubKey    []byte
	RangeProof      []byte
	SurjectionProof []byte
}

// WalletView is the immutable snapshot the utxo view assembles.
type WalletView struct {
	Utxos        []Utxo
	Txs          map[string]*CachedTx
	SpentSet     map[Outpoint]struct{}
	ScriptSet    map[string]struct{} // hex scriptPubKey -> member
	UnblindedMap map[Outpoint]Unblinded
}

// TxDraft is the mutable transaction under construction.
type TxDraft struct {
	Chain   network.Chain
	Inputs  []DraftInput
	Outputs []DraftOutput
	// FeeOutputIndex is -1 until TxBuilder finalizes a sidechain draft with
	// an explicit fee output.
	FeeOutputIndex int
}

type DraftInput struct {
	Outpoint     Outpoint
	Value        uint64 // fee accounting only; Sign takes the sighash value from the store's cached prior output
	Asset        string // hex asset id, or "btc"; needed for the per-asset fee recompute
	ScriptPubKey []byte
	Sequence     uint32
}

type DraftOutput struct {
	Address      string
	ScriptPubKey []byte
	Asset        string // hex asset id, or "btc"
	Value        uint64
	IsFee        bool
	IsChange     bool
	// BlindingPubKey is set for sidechain non-fee outputs awaiting blinding.
	BlindingPubKey []byte
}

// Addressee is one recipient of a create_tx request.
type Addressee struct {
	Address  string
	Satoshi  uint64
	AssetTag string // hex asset id; empty means the policy asset (sidechain) or "btc"
}

// CreateRequest is the input to CoinSelector/TxBuilder.
type CreateRequest struct {
	Addressees  []Addressee
	FeeRateSatB *uint64 // sat/kB; nil selects the 1000 sat/kB default
	SendAll     bool
}

// TxMeta is what create_tx returns: the draft plus the
// accounting summary a caller/UI needs, with no block height or timestamp
// since the transaction is not yet broadcast.
type TxMeta struct {
	Draft    *TxDraft
	Balances map[string]uint64 // per-asset absolute signed balance
	Fee      uint64
	Network  network.Chain
	Type     string // always "outgoing" for a create_tx result
	Request  CreateRequest
	// ChangeIndex is the Internal-branch index used to derive every change
	// output in this draft (nil if none was emitted). CoinSelector derives
	// all change for one create_tx at the same Internal+1 path;
	// Sign consults this to register the change script without re-deriving
	// or re-reading the store mid-flight.
	ChangeIndex *uint32
}
