package wallet

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/klingon-exchange/liquid-wallet-core/internal/confidential"
	"github.com/klingon-exchange/liquid-wallet-core/internal/keys"
	"github.com/klingon-exchange/liquid-wallet-core/internal/network"
	"github.com/klingon-exchange/liquid-wallet-core/internal/signer"
	"github.com/klingon-exchange/liquid-wallet-core/internal/walletdata"
)

// Sign signs a built draft for whichever chain meta.Draft targets:
// look up each input's derivation path and prior value, sign (blinding the
// sidechain's outputs first), assemble the final wire transaction, register
// the change script if one was emitted, and unconditionally advance the
// Internal counter (a deliberately conservative policy: the index
// moves forward on every successful sign, whether or not this particular
// draft actually produced change, so a later draft can never reuse a path
// this one might have exposed).
func (w *Wallet) Sign(meta *walletdata.TxMeta) ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if meta == nil || meta.Draft == nil {
		return nil, newGenericErr("sign: nil tx meta or draft")
	}

	var raw []byte
	var err error
	if meta.Network == network.Sidechain {
		raw, err = w.signSidechain(meta.Draft)
	} else {
		raw, err = w.signBitcoin(meta.Draft)
	}
	if err != nil {
		return nil, err
	}

	if err := w.registerChange(meta); err != nil {
		return nil, err
	}
	if _, err := w.store.IncrementIndex(walletdata.IndexInternal); err != nil {
		return nil, fmt.Errorf("advance internal index: %w", err)
	}

	return raw, nil
}

// registerChange records the derivation path for the draft's change output
// (if any) so a later UtxoView/Sign can recognize and spend it. Looked up by
// ChangeIndex rather than re-derived, per walletdata.TxMeta's contract.
func (w *Wallet) registerChange(meta *walletdata.TxMeta) error {
	if meta.ChangeIndex == nil {
		return nil
	}
	path := keys.Path{Branch: keys.BranchInternal, Index: *meta.ChangeIndex}
	for _, out := range meta.Draft.Outputs {
		if !out.IsChange {
			continue
		}
		if err := w.store.RecordScript(out.ScriptPubKey, path); err != nil {
			return fmt.Errorf("record change script: %w", err)
		}
	}
	return nil
}

func (w *Wallet) privateKeyFor(scriptPubKey []byte) (*btcec.PrivateKey, error) {
	path, ok, err := w.store.DerivationPath(scriptPubKey)
	if err != nil {
		return nil, fmt.Errorf("derivation path for %x: %w", scriptPubKey, err)
	}
	if !ok {
		return nil, newGenericErr(fmt.Sprintf("no derivation path for input script %x", scriptPubKey))
	}
	priv, err := keys.DerivePrivateChild(w.xprv, path)
	if err != nil {
		return nil, newInvalidKeyErr(fmt.Sprintf("derive [%d,%d]", path.Branch, path.Index), err)
	}
	return priv, nil
}

// signBitcoin handles the Bitcoin chain: for each input, resolve its prior output
// from the store (not from the draft; the cached tx is the authority on the
// value BIP-143 commits to), then compute the sighash, ECDSA-sign and fill
// in the witness stack plus redeem scriptSig.
func (w *Wallet) signBitcoin(draft *walletdata.TxDraft) ([]byte, error) {
	tx, err := signer.BuildBitcoinMsgTx(draft)
	if err != nil {
		return nil, fmt.Errorf("build tx: %w", err)
	}

	for i, in := range draft.Inputs {
		prevTx, err := w.store.BitcoinTx(in.Outpoint.TxID)
		if err != nil {
			return nil, fmt.Errorf("prior tx %s: %w", in.Outpoint.TxID, err)
		}
		if prevTx == nil || int(in.Outpoint.Vout) >= len(prevTx.Outputs) {
			return nil, newGenericErr("cannot find tx in db")
		}
		prevOut := prevTx.Outputs[in.Outpoint.Vout]

		priv, err := w.privateKeyFor(prevOut.ScriptPubKey)
		if err != nil {
			return nil, err
		}
		witness, scriptSig, err := signer.SignBitcoinInput(tx, i, priv, prevOut.Value)
		if err != nil {
			return nil, fmt.Errorf("sign input %d: %w", i, err)
		}
		tx.TxIn[i].Witness = witness
		tx.TxIn[i].SignatureScript = scriptSig
	}

	buf, err := signer.SerializeBitcoinTx(tx)
	if err != nil {
		return nil, fmt.Errorf("serialize tx: %w", err)
	}
	return buf, nil
}

// signSidechain blinds every non-fee output first, then signs each input's
// generalized BIP-143 sighash over the blinded outputs, then assembles the
// final consensus byte stream.
func (w *Wallet) signSidechain(draft *walletdata.TxDraft) ([]byte, error) {
	unblinded, err := w.store.UnblindedMap()
	if err != nil {
		return nil, fmt.Errorf("unblinded map: %w", err)
	}

	blindInputs := make([]confidential.BlindInput, len(draft.Inputs))
	for i, in := range draft.Inputs {
		u, ok := unblinded[in.Outpoint]
		if !ok {
			return nil, newGenericErr(fmt.Sprintf("no unblinded record for input %s:%d", in.Outpoint.TxID, in.Outpoint.Vout))
		}
		blindInputs[i] = confidential.BlindInput{Value: u.Value, Asset: u.Asset, ABF: u.ABF, VBF: u.VBF}
	}

	var blindOutputs []confidential.BlindOutput
	nonFeeIdx := make([]int, 0, len(draft.Outputs))
	for i, out := range draft.Outputs {
		if out.IsFee {
			continue
		}
		asset, err := w.assetBytes(out.Asset)
		if err != nil {
			return nil, err
		}
		blindOutputs = append(blindOutputs, confidential.BlindOutput{
			Value:          out.Value,
			Asset:          asset,
			ScriptPubKey:   out.ScriptPubKey,
			BlindingPubKey: out.BlindingPubKey,
		})
		nonFeeIdx = append(nonFeeIdx, i)
	}

	blinded, err := confidential.BlindTransaction(blindInputs, blindOutputs)
	if err != nil {
		return nil, fmt.Errorf("blind transaction: %w", err)
	}

	finalOutputs := make([]walletdata.SidechainTxOut, len(draft.Outputs))
	for j, i := range nonFeeIdx {
		b := blinded[j]
		finalOutputs[i] = walletdata.SidechainTxOut{
			Asset:           b.AssetGenerator,
			Value:           b.ValueCommitment,
			Nonce:           b.Nonce,
			ScriptPubKey:    draft.Outputs[i].ScriptPubKey,
			RangeProof:      b.RangeProof.Bytes(),
			SurjectionProof: b.SurjectionProof.Bytes(),
		}
	}
	for i, out := range draft.Outputs {
		if !out.IsFee {
			continue
		}
		asset, err := w.assetBytes(out.Asset)
		if err != nil {
			return nil, err
		}
		finalOutputs[i] = walletdata.SidechainTxOut{
			Asset:        append([]byte{0x01}, asset[:]...),
			Value:        explicitValue(out.Value),
			ScriptPubKey: out.ScriptPubKey,
		}
	}

	inputRefs := make([]signer.SidechainInputRef, len(draft.Inputs))
	for i, in := range draft.Inputs {
		inputRefs[i] = signer.SidechainInputRef{Outpoint: in.Outpoint, Sequence: in.Sequence}
	}

	const locktime = uint32(0)
	scriptSigs := make([][]byte, len(draft.Inputs))
	witnesses := make([][][]byte, len(draft.Inputs))
	for i, in := range draft.Inputs {
		prevTx, err := w.store.SidechainTx(in.Outpoint.TxID)
		if err != nil {
			return nil, fmt.Errorf("prior tx %s: %w", in.Outpoint.TxID, err)
		}
		if prevTx == nil || int(in.Outpoint.Vout) >= len(prevTx.Outputs) {
			return nil, newGenericErr("cannot find tx in db")
		}
		prevOut := prevTx.Outputs[in.Outpoint.Vout]

		priv, err := w.privateKeyFor(prevOut.ScriptPubKey)
		if err != nil {
			return nil, err
		}
		witness, scriptSig, err := signer.SignSidechainInput(inputRefs, i, priv, prevOut.Value, finalOutputs, locktime)
		if err != nil {
			return nil, fmt.Errorf("sign input %d: %w", i, err)
		}
		scriptSigs[i] = scriptSig
		witnesses[i] = witness
	}

	return signer.SerializeSidechainTx(inputRefs, scriptSigs, finalOutputs, witnesses, locktime), nil
}

// assetBytes resolves a draft's "btc"-or-hex asset tag back to the 32-byte
// asset id the confidential layer needs, folding the policy-asset alias.
func (w *Wallet) assetBytes(asset string) ([32]byte, error) {
	var out [32]byte
	hexStr := asset
	if asset == "btc" {
		hexStr = w.params.PolicyAsset
	}
	raw, err := hex.DecodeString(hexStr)
	if err != nil || len(raw) != 32 {
		return out, newGenericErr(fmt.Sprintf("malformed asset id %q", asset))
	}
	copy(out[:], raw)
	return out, nil
}

// explicitValue encodes a satoshi amount in the 9-byte explicit-value form
// (0x01 || 8-byte little-endian satoshi) a sidechain's unblinded fields use.
func explicitValue(v uint64) []byte {
	out := make([]byte, 9)
	out[0] = 0x01
	binary.LittleEndian.PutUint64(out[1:], v)
	return out
}
