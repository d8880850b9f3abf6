// Package signer computes BIP-143 segwit sighashes and assembles the
// wrapped-segwit witness stack and redeem scriptSig for both chains.
package signer

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// SighashAll is the only sighash type the core ever uses.
const SighashAll = txscript.SigHashAll

// WitnessScriptForPubKey returns the P2PKH script of the compressed public
// key. Per BIP-143, this is the "script code" signed over for a P2WPKH (and
// therefore P2SH-P2WPKH) input.
func WitnessScriptForPubKey(pubKey *btcec.PublicKey) []byte {
	hash := btcutil.Hash160(pubKey.SerializeCompressed())
	script, _ := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(hash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	return script
}

// ScriptSigForPubKey builds the 22-byte-push P2SH-P2WPKH scriptSig: a single
// data push of (OP_0 || 20-byte-push(HASH160(pubkey))).
func ScriptSigForPubKey(pubKey *btcec.PublicKey) ([]byte, error) {
	hash := btcutil.Hash160(pubKey.SerializeCompressed())
	inner, err := txscript.NewScriptBuilder().AddOp(txscript.OP_0).AddData(hash).Script()
	if err != nil {
		return nil, fmt.Errorf("inner witness program: %w", err)
	}
	outer, err := txscript.NewScriptBuilder().AddData(inner).Script()
	if err != nil {
		return nil, fmt.Errorf("outer scriptsig: %w", err)
	}
	return outer, nil
}

// SighashAllBitcoin computes the BIP-143 sighash for a Bitcoin P2SH-P2WPKH
// input over the given unsigned transaction.
func SighashAllBitcoin(tx *wire.MsgTx, idx int, pubKey *btcec.PublicKey, inputValue int64) ([]byte, error) {
	witnessScript := WitnessScriptForPubKey(pubKey)
	sigHashes := txscript.NewTxSigHashes(tx, noopPrevOutFetcher{})
	hash, err := txscript.CalcWitnessSigHash(witnessScript, sigHashes, SighashAll, tx, idx, inputValue)
	if err != nil {
		return nil, fmt.Errorf("calc witness sighash: %w", err)
	}
	return hash, nil
}

// SignBitcoinInput signs one Bitcoin input: compute the BIP-143
// sighash, ECDSA-sign it, append the sighash type byte, and assemble the
// witness stack plus redeem scriptSig.
func SignBitcoinInput(tx *wire.MsgTx, idx int, privKey *btcec.PrivateKey, inputValue int64) (witness wire.TxWitness, scriptSig []byte, err error) {
	pubKey := privKey.PubKey()

	hash, err := SighashAllBitcoin(tx, idx, pubKey, inputValue)
	if err != nil {
		return nil, nil, err
	}

	sig := ecdsa.Sign(privKey, hash)
	derSig := append(sig.Serialize(), byte(SighashAll))

	scriptSig, err = ScriptSigForPubKey(pubKey)
	if err != nil {
		return nil, nil, err
	}

	witness = wire.TxWitness{derSig, pubKey.SerializeCompressed()}
	return witness, scriptSig, nil
}

// VerifyBitcoinInput checks a produced signature against the recomputed
// sighash and recovered pubkey.
func VerifyBitcoinInput(tx *wire.MsgTx, idx int, pubKey *btcec.PublicKey, inputValue int64, derSigWithHashType []byte) (bool, error) {
	if len(derSigWithHashType) == 0 {
		return false, fmt.Errorf("empty signature")
	}
	if derSigWithHashType[len(derSigWithHashType)-1] != byte(SighashAll) {
		return false, fmt.Errorf("unexpected sighash type byte")
	}
	sig, err := ecdsa.ParseDERSignature(derSigWithHashType[:len(derSigWithHashType)-1])
	if err != nil {
		return false, fmt.Errorf("parse der signature: %w", err)
	}
	hash, err := SighashAllBitcoin(tx, idx, pubKey, inputValue)
	if err != nil {
		return false, err
	}
	return sig.Verify(hash, pubKey), nil
}

// noopPrevOutFetcher satisfies txscript.PrevOutputFetcher for legacy/P2WPKH
// sighash computation, which (outside taproot) never consults prevout
// values through the fetcher directly; the value is passed explicitly to
// CalcWitnessSigHash instead.
type noopPrevOutFetcher struct{}

func (noopPrevOutFetcher) FetchPrevOutput(wire.OutPoint) *wire.TxOut { return &wire.TxOut{} }
