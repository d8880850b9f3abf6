package signer

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/klingon-exchange/liquid-wallet-core/internal/walletdata"
)

// SidechainInputRef is the minimal per-input data the sidechain sighash
// needs: its outpoint and sequence number, mirroring what BIP-143 folds
// into hashPrevouts/hashSequence.
type SidechainInputRef struct {
	Outpoint walletdata.Outpoint
	Sequence uint32
}

func dblSha256(b []byte) [32]byte {
	first := sha256.Sum256(b)
	return sha256.Sum256(first[:])
}

func writeOutpoint(buf *bytes.Buffer, op walletdata.Outpoint) {
	// Outpoint.TxID is stored in big-endian display order; consensus
	// serialization wants little-endian byte order.
	raw, err := hex.DecodeString(op.TxID)
	if err != nil {
		raw = make([]byte, 32)
	}
	for i := len(raw) - 1; i >= 0; i-- {
		buf.WriteByte(raw[i])
	}
	var voutLE [4]byte
	binary.LittleEndian.PutUint32(voutLE[:], op.Vout)
	buf.Write(voutLE[:])
}

// sidechainSighashPreimage builds the Elements/Liquid generalization of the
// BIP-143 preimage: identical structure to Bitcoin's, except the output
// serialization carries the (possibly confidential) asset/value/nonce
// triple instead of a plain 8-byte value.
func sidechainSighashPreimage(
	version uint32,
	inputs []SidechainInputRef,
	signIdx int,
	scriptCode []byte,
	valueCommitment []byte,
	outputs []walletdata.SidechainTxOut,
	locktime uint32,
	sighashType uint32,
) []byte {
	var prevouts, sequences bytes.Buffer
	for _, in := range inputs {
		writeOutpoint(&prevouts, in.Outpoint)
		var seqLE [4]byte
		binary.LittleEndian.PutUint32(seqLE[:], in.Sequence)
		sequences.Write(seqLE[:])
	}
	hashPrevouts := dblSha256(prevouts.Bytes())
	hashSequence := dblSha256(sequences.Bytes())

	var outputBuf bytes.Buffer
	for _, out := range outputs {
		outputBuf.Write(out.Asset)
		outputBuf.Write(out.Value)
		if len(out.Nonce) == 0 {
			outputBuf.WriteByte(0x00)
		} else {
			outputBuf.Write(out.Nonce)
		}
		writeVarBytes(&outputBuf, out.ScriptPubKey)
	}
	hashOutputs := dblSha256(outputBuf.Bytes())

	var preimage bytes.Buffer
	var versionLE [4]byte
	binary.LittleEndian.PutUint32(versionLE[:], version)
	preimage.Write(versionLE[:])
	preimage.Write(hashPrevouts[:])
	preimage.Write(hashSequence[:])
	writeOutpoint(&preimage, inputs[signIdx].Outpoint)
	writeVarBytes(&preimage, scriptCode)
	preimage.Write(valueCommitment)
	var seqLE [4]byte
	binary.LittleEndian.PutUint32(seqLE[:], inputs[signIdx].Sequence)
	preimage.Write(seqLE[:])
	preimage.Write(hashOutputs[:])
	var lockLE, hashTypeLE [4]byte
	binary.LittleEndian.PutUint32(lockLE[:], locktime)
	binary.LittleEndian.PutUint32(hashTypeLE[:], sighashType)
	preimage.Write(lockLE[:])
	preimage.Write(hashTypeLE[:])

	return preimage.Bytes()
}

func writeVarBytes(buf *bytes.Buffer, b []byte) {
	writeVarInt(buf, uint64(len(b)))
	buf.Write(b)
}

func writeVarInt(buf *bytes.Buffer, n uint64) {
	switch {
	case n < 0xfd:
		buf.WriteByte(byte(n))
	case n <= 0xffff:
		buf.WriteByte(0xfd)
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], uint16(n))
		buf.Write(b[:])
	case n <= 0xffffffff:
		buf.WriteByte(0xfe)
		var b [4]byte
		binary.LittleEndian.PutUint32(b[:], uint32(n))
		buf.Write(b[:])
	default:
		buf.WriteByte(0xff)
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], n)
		buf.Write(b[:])
	}
}

// SighashAllSidechain computes the sidechain sighash: BIP-143 shape
// over (tx, idx, script_code, confidential_value, SIGHASH_ALL, segwit=true).
func SighashAllSidechain(inputs []SidechainInputRef, signIdx int, scriptCode []byte, valueCommitment []byte, outputs []walletdata.SidechainTxOut, locktime uint32) []byte {
	preimage := sidechainSighashPreimage(2, inputs, signIdx, scriptCode, valueCommitment, outputs, locktime, uint32(SighashAll))
	h := dblSha256(preimage)
	return h[:]
}

// SignSidechainInput signs one sidechain input: same ECDSA/witness shape
// as Bitcoin, but over the sidechain sighash and with the witness stored
// under the input's script witness.
func SignSidechainInput(inputs []SidechainInputRef, signIdx int, privKey *btcec.PrivateKey, valueCommitment []byte, outputs []walletdata.SidechainTxOut, locktime uint32) (witness [][]byte, scriptSig []byte, err error) {
	pubKey := privKey.PubKey()
	scriptCode := WitnessScriptForPubKey(pubKey)

	hash := SighashAllSidechain(inputs, signIdx, scriptCode, valueCommitment, outputs, locktime)

	sig := ecdsa.Sign(privKey, hash)
	derSig := append(sig.Serialize(), byte(SighashAll))

	scriptSig, err = ScriptSigForPubKey(pubKey)
	if err != nil {
		return nil, nil, err
	}
	return [][]byte{derSig, pubKey.SerializeCompressed()}, scriptSig, nil
}

// VerifySidechainInput mirrors VerifyBitcoinInput for the sidechain hasher.
func VerifySidechainInput(inputs []SidechainInputRef, signIdx int, pubKey *btcec.PublicKey, valueCommitment []byte, outputs []walletdata.SidechainTxOut, locktime uint32, derSigWithHashType []byte) (bool, error) {
	if len(derSigWithHashType) == 0 || derSigWithHashType[len(derSigWithHashType)-1] != byte(SighashAll) {
		return false, fmt.Errorf("missing or wrong sighash type byte")
	}
	sig, err := ecdsa.ParseDERSignature(derSigWithHashType[:len(derSigWithHashType)-1])
	if err != nil {
		return false, fmt.Errorf("parse der signature: %w", err)
	}
	scriptCode := WitnessScriptForPubKey(pubKey)
	hash := SighashAllSidechain(inputs, signIdx, scriptCode, valueCommitment, outputs, locktime)
	return sig.Verify(hash, pubKey), nil
}
