// Package txbuilder implements the CoinSelector/TxBuilder: per-asset
// coin selection under outgoing demand, iterative fee recomputation, change
// policy, same-script coalescing and the send-all amount-discovery probe.
package txbuilder

import (
	"encoding/hex"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"

	"github.com/klingon-exchange/liquid-wallet-core/internal/keys"
	"github.com/klingon-exchange/liquid-wallet-core/internal/network"
	"github.com/klingon-exchange/liquid-wallet-core/internal/walletdata"
	"github.com/klingon-exchange/liquid-wallet-core/pkg/logging"
)

// Per-output overhead constants seeding the rolling fee estimate. The
// sidechain constant is large because a confidential output's
// range+surjection proofs dwarf a plain explicit output; both are
// deliberate over-estimates so selection can never under-fund the final
// recompute (see DESIGN.md).
const (
	bitcoinBaseOutputOverhead   = 70
	sidechainBaseOutputOverhead = 1200

	// nonWitnessInputLen approximates a P2SH-P2WPKH input's non-witness
	// serialized length (36-byte outpoint + 4-byte sequence + 1-byte
	// scriptSig length prefix + 23-byte scriptSig).
	nonWitnessInputLen = 64
	// witnessFudge is the per-input estimate of the witness signature's
	// contribution, folded in atop nonWitnessInputLen for every selected input.
	witnessFudge = 70

	bitcoinChangeOutputLen   = 32
	sidechainChangeOutputLen = 4000 // confidential output: commitment + range + surjection proofs

	bitcoinDustThreshold = 546
	sidechainBtcDust     = 546

	defaultFeeRateSatPerKB = 1000
)

// Builder runs CoinSelector/TxBuilder against one WalletView.
type Builder struct {
	View           *walletdata.WalletView
	Params         *network.Params
	XPub           *hdkeychain.ExtendedKey
	MasterBlinding []byte // sidechain only
	// CurrentInternal is the store's Internal counter *before* this call;
	// TxBuilder derives change at CurrentInternal+1 without incrementing it
	// (the Signer increments it on successful sign).
	CurrentInternal uint32
	Log             *logging.Logger
}

// New constructs a Builder. log may be nil to fall back to the package
// default logger.
func New(view *walletdata.WalletView, params *network.Params, xpub *hdkeychain.ExtendedKey, masterBlinding []byte, currentInternal uint32, log *logging.Logger) *Builder {
	if log == nil {
		log = logging.GetDefault().Component("txbuilder")
	}
	return &Builder{
		View:            view,
		Params:          params,
		XPub:            xpub,
		MasterBlinding:  masterBlinding,
		CurrentInternal: currentInternal,
		Log:             log,
	}
}

// CreateTx builds a transaction for a non-send-all request. Use
// SendAll for the send_all=true amount-discovery variant.
func (b *Builder) CreateTx(req walletdata.CreateRequest) (*walletdata.TxMeta, error) {
	if err := b.validate(req); err != nil {
		return nil, err
	}

	feeRateBytes := feeRateBytes(req.FeeRateSatB)
	isSidechain := b.Params.Chain == network.Sidechain

	baseOverhead := bitcoinBaseOutputOverhead
	if isSidechain {
		baseOverhead = sidechainBaseOutputOverhead
	}
	// Base-weight seed: the chain-specific constant plus a rough non-witness
	// tx-overhead estimate (version + input/output counts + locktime),
	// folded in as "current draft weight/4" since the draft starts empty.
	const initialDraftOverheadVBytes = 10
	feeVal := float64(baseOverhead+initialDraftOverheadVBytes) * feeRateBytes

	draft := &walletdata.TxDraft{Chain: b.Params.Chain, FeeOutputIndex: -1}

	outgoing := make(map[string]uint64)
	outgoing["btc"] = 0
	for _, a := range req.Addressees {
		asset := normalizeAsset(a.AssetTag, b.Params)
		outgoing[asset] += a.Satoshi
	}

	// Ordering: process assets sorted by hex-length descending so "btc"
	// (shortest) is processed last: fee is only owed in the fee-asset and
	// must be included in the last selection pass's need.
	assets := make([]string, 0, len(outgoing))
	for asset := range outgoing {
		assets = append(assets, asset)
	}
	sort.Slice(assets, func(i, j int) bool {
		if len(assets[i]) != len(assets[j]) {
			return len(assets[i]) > len(assets[j])
		}
		return assets[i] < assets[j]
	})

	var changeIndex *uint32
	remaining := append([]walletdata.Utxo(nil), b.View.Utxos...)
	changeOutputLen := bitcoinChangeOutputLen
	dustThreshold := uint64(bitcoinDustThreshold)
	if isSidechain {
		changeOutputLen = sidechainChangeOutputLen
	}

	sendAllAsset := ""
	if req.SendAll {
		sendAllAsset = normalizeAsset(req.Addressees[0].AssetTag, b.Params)
	}

	for _, asset := range assets {
		need := outgoing[asset]
		if need == 0 && asset != "btc" {
			continue
		}

		pool, rest := filterByAsset(remaining, asset)
		sort.SliceStable(pool, func(i, j int) bool { return pool[i].Value < pool[j].Value })

		var selectedAmount uint64
		feeComponent := func() uint64 {
			if asset == "btc" {
				return uint64(math.Ceil(feeVal))
			}
			return 0
		}
		needed := need + feeComponent()

		for selectedAmount < needed {
			if len(pool) == 0 {
				return nil, newErr(KindInsufficientFunds, fmt.Sprintf("asset %s: need %d, have %d", asset, needed, selectedAmount))
			}
			// Pop the largest remaining utxo.
			picked := pool[len(pool)-1]
			pool = pool[:len(pool)-1]

			// Same-script coalescing: every other utxo sharing this
			// script, wherever it sits in the pool, joins the same batch;
			// privacy: a script, once touched, is fully consumed.
			batch := []walletdata.Utxo{picked}
			scriptHex := hex.EncodeToString(picked.Script)
			var keptPool []walletdata.Utxo
			for _, u := range pool {
				if hex.EncodeToString(u.Script) == scriptHex {
					batch = append(batch, u)
				} else {
					keptPool = append(keptPool, u)
				}
			}
			pool = keptPool

			for _, u := range batch {
				draft.Inputs = append(draft.Inputs, walletdata.DraftInput{
					Outpoint:     u.Outpoint,
					Value:        u.Value,
					Asset:        asset,
					ScriptPubKey: u.Script,
					Sequence:     0xfffffffe,
				})
				feeVal += float64(nonWitnessInputLen+witnessFudge) * feeRateBytes
				selectedAmount += u.Value
				needed = need + feeComponent()
			}
		}
		remaining = append(rest, pool...)

		// Change.
		var changeVal int64
		if asset == "btc" {
			changeVal = int64(selectedAmount) - int64(need) - int64(math.Ceil(feeVal))
		} else {
			changeVal = int64(selectedAmount) - int64(need)
		}

		minChange := int64(dustThreshold)
		if isSidechain && asset != "btc" {
			minChange = 0
		} else if isSidechain {
			minChange = sidechainBtcDust
		}

		if changeVal > minChange {
			if req.SendAll && asset == sendAllAsset {
				return nil, newErr(KindSendAll, "send-all would require change: contradiction")
			}
			changeAddr, err := b.deriveChangeAddress()
			if err != nil {
				return nil, fmt.Errorf("derive change address: %w", err)
			}
			out := walletdata.DraftOutput{
				Address:      changeAddr.Encoded,
				ScriptPubKey: changeAddr.ScriptPubKey,
				Asset:        asset,
				Value:        uint64(changeVal),
				IsChange:     true,
			}
			if isSidechain {
				out.BlindingPubKey = changeAddr.BlindingPubKey
			}
			draft.Outputs = append(draft.Outputs, out)
			feeVal += float64(changeOutputLen) * feeRateBytes
			if changeIndex == nil {
				idx := b.CurrentInternal + 1
				changeIndex = &idx
			}
		}
	}

	// Non-change, non-fee outputs: the addressees themselves.
	for _, a := range req.Addressees {
		decoded, err := keys.DecodeAddress(a.Address, b.Params)
		if err != nil {
			return nil, newErr(KindInvalidAddress, err.Error())
		}
		draft.Outputs = append(draft.Outputs, walletdata.DraftOutput{
			Address:        a.Address,
			ScriptPubKey:   decoded.ScriptPubKey,
			Asset:          normalizeAsset(a.AssetTag, b.Params),
			Value:          a.Satoshi,
			BlindingPubKey: decoded.BlindingPubKey,
		})
	}

	// Scramble is mandatory for privacy: obscures
	// selection ordering by randomly permuting inputs and outputs.
	b.scramble(draft)

	fee, balances, err := finalize(draft, outgoing, isSidechain, b.Params)
	if err != nil {
		return nil, err
	}

	return &walletdata.TxMeta{
		Draft:       draft,
		Balances:    balances,
		Fee:         fee,
		Network:     b.Params.Chain,
		Type:        "outgoing",
		Request:     req,
		ChangeIndex: changeIndex,
	}, nil
}

// validate runs create_tx's pre-validation, short-circuiting at the first
// violation.
func (b *Builder) validate(req walletdata.CreateRequest) error {
	for _, a := range req.Addressees {
		if _, err := keys.DecodeAddress(a.Address, b.Params); err != nil {
			return newErr(KindInvalidAddress, err.Error())
		}
	}
	if len(req.Addressees) == 0 {
		return newErr(KindEmptyAddressees, "")
	}
	if !req.SendAll {
		for _, a := range req.Addressees {
			if a.Satoshi == 0 {
				return newErr(KindInvalidAmount, "addressee satoshi must be > 0")
			}
		}
	}
	if req.SendAll && len(req.Addressees) != 1 {
		return newErr(KindSendAll, "send_all requires exactly one addressee")
	}
	return nil
}

// feeRateBytes normalizes the requested sat/kB rate into sat/byte,
// defaulting to 1000 sat/kB (1.0 sat/byte).
func feeRateBytes(requested *uint64) float64 {
	rate := uint64(defaultFeeRateSatPerKB)
	if requested != nil && *requested != 0 {
		rate = *requested
	}
	return float64(rate) / 1000.0
}

// normalizeAsset folds the policy-asset aliasing open question: empty tags
// and the chain's policy asset both collapse to "btc" for accounting.
func normalizeAsset(assetTag string, params *network.Params) string {
	if assetTag == "" {
		return "btc"
	}
	if params.IsPolicyAsset(assetTag) {
		return "btc"
	}
	return assetTag
}

func filterByAsset(utxos []walletdata.Utxo, asset string) (matched, rest []walletdata.Utxo) {
	for _, u := range utxos {
		if u.Asset == asset {
			matched = append(matched, u)
		} else {
			rest = append(rest, u)
		}
	}
	return matched, rest
}

func (b *Builder) deriveChangeAddress() (*keys.Address, error) {
	path := keys.Path{Branch: keys.BranchInternal, Index: b.CurrentInternal + 1}
	if b.Params.Chain == network.Sidechain {
		return keys.DeriveConfidentialAddress(b.XPub, path, b.MasterBlinding, b.Params)
	}
	return keys.DeriveAddress(b.XPub, path, b.Params)
}

// scramble randomly permutes inputs and outputs (privacy-motivated, not
// cosmetic). Uses the non-cryptographic PRNG: this permutation carries no
// secrecy requirement beyond breaking selection-order correlation.
func (b *Builder) scramble(draft *walletdata.TxDraft) {
	rand.Shuffle(len(draft.Inputs), func(i, j int) { draft.Inputs[i], draft.Inputs[j] = draft.Inputs[j], draft.Inputs[i] })
	rand.Shuffle(len(draft.Outputs), func(i, j int) { draft.Outputs[i], draft.Outputs[j] = draft.Outputs[j], draft.Outputs[i] })
}

// finalize recomputes fee_val exactly from the built draft (value in minus
// value out, per asset, rather than trusting the rolling estimate) and, for
// the sidechain, appends the explicit fee output. Value conservation
// requires sum_in(a) - sum_out(a) == (fee if a is the fee asset else 0) for
// every asset a, so per-asset totals (not a sum across assets) drive the
// check; the returned balances are the wallet's absolute per-asset outgoing
// amounts (outgoing[a], plus fee for the fee asset).
func finalize(draft *walletdata.TxDraft, outgoing map[string]uint64, isSidechain bool, params *network.Params) (fee uint64, balances map[string]uint64, err error) {
	in := make(map[string]uint64)
	for _, i := range draft.Inputs {
		in[i.Asset] += i.Value
	}
	out := make(map[string]uint64)
	for _, o := range draft.Outputs {
		out[o.Asset] += o.Value
	}
	for asset, inVal := range in {
		if asset == "btc" {
			continue
		}
		if inVal != out[asset] {
			return 0, nil, newErr(KindInsufficientFunds, fmt.Sprintf("asset %s: inputs %d do not equal outputs %d", asset, inVal, out[asset]))
		}
	}
	for asset := range out {
		if _, ok := in[asset]; !ok && asset != "btc" {
			return 0, nil, newErr(KindInsufficientFunds, fmt.Sprintf("asset %s: outputs with no matching input", asset))
		}
	}
	if in["btc"] < out["btc"] {
		return 0, nil, newErr(KindInsufficientFunds, "selected btc inputs do not cover outputs and fee")
	}
	fee = in["btc"] - out["btc"]

	balances = make(map[string]uint64, len(outgoing))
	for asset, v := range outgoing {
		balances[asset] = v
	}
	balances["btc"] += fee

	if isSidechain {
		// Asset stays the "btc" alias like every other output in the draft;
		// whatever assembles the wire transaction resolves the alias back to
		// params.PolicyAsset uniformly, fee output included.
		draft.Outputs = append(draft.Outputs, walletdata.DraftOutput{
			Asset: "btc",
			Value: fee,
			IsFee: true,
		})
		draft.FeeOutputIndex = len(draft.Outputs) - 1
	}

	return fee, balances, nil
}
