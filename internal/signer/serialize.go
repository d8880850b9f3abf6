package signer

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/klingon-exchange/liquid-wallet-core/internal/walletdata"
)

// BuildBitcoinMsgTx assembles the unsigned wire.MsgTx a Bitcoin TxDraft
// implies: version 2, one input per draft input (empty scriptSig/witness,
// ready for SignBitcoinInput to fill in), one output per draft output in
// order.
func BuildBitcoinMsgTx(draft *walletdata.TxDraft) (*wire.MsgTx, error) {
	tx := wire.NewMsgTx(2)
	for _, in := range draft.Inputs {
		hash, err := chainhash.NewHashFromStr(in.Outpoint.TxID)
		if err != nil {
			return nil, fmt.Errorf("parse txid %s: %w", in.Outpoint.TxID, err)
		}
		tx.AddTxIn(&wire.TxIn{
			PreviousOutPoint: wire.OutPoint{Hash: *hash, Index: in.Outpoint.Vout},
			Sequence:         in.Sequence,
		})
	}
	for _, out := range draft.Outputs {
		tx.AddTxOut(&wire.TxOut{Value: int64(out.Value), PkScript: out.ScriptPubKey})
	}
	return tx, nil
}

// SerializeBitcoinTx encodes a fully-signed tx to its wire bytes, witness
// data included.
func SerializeBitcoinTx(tx *wire.MsgTx) ([]byte, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("serialize bitcoin tx: %w", err)
	}
	return buf.Bytes(), nil
}

// SerializeSidechainTx assembles the final Elements-style consensus byte
// stream for a signed sidechain transaction: version, inputs (outpoint,
// scriptSig, sequence), outputs (asset, value, nonce, scriptPubKey),
// locktime, then per-input witness stacks and per-output surjection and
// range proofs.
func SerializeSidechainTx(inputs []SidechainInputRef, scriptSigs [][]byte, outputs []walletdata.SidechainTxOut, witnesses [][][]byte, locktime uint32) []byte {
	var buf bytes.Buffer

	var versionLE [4]byte
	binary.LittleEndian.PutUint32(versionLE[:], 2)
	buf.Write(versionLE[:])

	writeVarInt(&buf, uint64(len(inputs)))
	for i, in := range inputs {
		writeOutpoint(&buf, in.Outpoint)
		writeVarBytes(&buf, scriptSigs[i])
		var seqLE [4]byte
		binary.LittleEndian.PutUint32(seqLE[:], in.Sequence)
		buf.Write(seqLE[:])
	}

	writeVarInt(&buf, uint64(len(outputs)))
	for _, out := range outputs {
		buf.Write(out.Asset)
		buf.Write(out.Value)
		if len(out.Nonce) == 0 {
			buf.WriteByte(0x00)
		} else {
			buf.Write(out.Nonce)
		}
		writeVarBytes(&buf, out.ScriptPubKey)
	}

	var lockLE [4]byte
	binary.LittleEndian.PutUint32(lockLE[:], locktime)
	buf.Write(lockLE[:])

	for _, w := range witnesses {
		writeVarInt(&buf, uint64(len(w)))
		for _, item := range w {
			writeVarBytes(&buf, item)
		}
	}
	for _, out := range outputs {
		writeVarBytes(&buf, out.SurjectionProof)
		writeVarBytes(&buf, out.RangeProof)
	}

	return buf.Bytes()
}
