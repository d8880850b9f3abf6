package confidential

import (
	"crypto/rand"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// AssetGenerator computes the asset generator point for (asset, abf):
// A = abf*G + H(asset), where H is the try-and-increment hash-to-curve base
// point for the asset tag. Returned compressed (33 bytes, 0x02/0x03 prefix).
func AssetGenerator(asset [32]byte, abf [32]byte) []byte {
	return serializeCompressed(assetGeneratorPoint(asset, abf))
}

// assetGeneratorPoint is AssetGenerator without the final serialization, for
// callers (range/surjection proofs) that need the raw point.
func assetGeneratorPoint(asset [32]byte, abf [32]byte) secp256k1.JacobianPoint {
	base := hashToCurve(asset[:])
	blind := scalarBaseMul(scalarFromBytes(abf))
	return addPoints(blind, base)
}

// scalarFromU64 builds a mod-n scalar from a 64-bit value, since ModNScalar
// only exposes SetInt over the 32-bit domain.
func scalarFromU64(value uint64) secp256k1.ModNScalar {
	hi := uint32(value >> 32)
	lo := uint32(value)

	var shift secp256k1.ModNScalar
	shift.SetInt(1)
	for i := 0; i < 32; i++ {
		shift.Add(&shift)
	}

	var hiScalar, loScalar secp256k1.ModNScalar
	hiScalar.SetInt(hi)
	loScalar.SetInt(lo)
	hiScalar.Mul(&shift)
	hiScalar.Add(&loScalar)
	return hiScalar
}

// ValueCommitment computes the Pedersen commitment C = vbf*G + value*A for
// a given asset generator A (compressed form, as produced by
// AssetGenerator). Returned compressed.
func ValueCommitment(value uint64, vbf [32]byte, generator []byte) ([]byte, error) {
	pt, err := decompress(generator)
	if err != nil {
		return nil, fmt.Errorf("decompress generator: %w", err)
	}
	return valueCommitmentFromPoint(value, vbf, pt), nil
}

func valueCommitmentFromPoint(value uint64, vbf [32]byte, generator secp256k1.JacobianPoint) []byte {
	valueTerm := scalarMul(scalarFromU64(value), generator)
	blindTerm := scalarBaseMul(scalarFromBytes(vbf))
	commitment := addPoints(blindTerm, valueTerm)
	return serializeCompressed(commitment)
}

func decompress(compressed []byte) (secp256k1.JacobianPoint, error) {
	pub, err := secp256k1.ParsePubKey(compressed)
	if err != nil {
		return secp256k1.JacobianPoint{}, err
	}
	var pt secp256k1.JacobianPoint
	pub.AsJacobian(&pt)
	return pt, nil
}

// RandomBlindingFactor draws a fresh 32-byte ABF/VBF from the OS CSPRNG.
func RandomBlindingFactor() ([32]byte, error) {
	var b [32]byte
	if _, err := rand.Read(b[:]); err != nil {
		return b, fmt.Errorf("read entropy: %w", err)
	}
	return b, nil
}

// contribution computes the "effective blinding factor" value*abf + vbf
// (mod n) that must balance across inputs and outputs.
func contribution(value uint64, abf, vbf [32]byte) secp256k1.ModNScalar {
	abfScalar := scalarFromBytes(abf)
	vbfScalar := scalarFromBytes(vbf)

	term := scalarFromU64(value)
	term.Mul(&abfScalar)
	term.Add(&vbfScalar)
	return term
}

// ClosingVBF solves the blinding-balance constraint: given every input's (value, abf,
// vbf) and every non-fee output's (value, abf) plus every output vbf except
// the last, returns the last output's vbf such that the sum of
// contributions balances: Σin = Σout.
func ClosingVBF(
	inputValues []uint64, inputABFs, inputVBFs [][32]byte,
	outputValues []uint64, outputABFs [][32]byte,
	outputVBFsExceptLast [][32]byte,
) ([32]byte, error) {
	if len(inputValues) != len(inputABFs) || len(inputValues) != len(inputVBFs) {
		return [32]byte{}, fmt.Errorf("mismatched input vector lengths")
	}
	if len(outputValues) != len(outputABFs) {
		return [32]byte{}, fmt.Errorf("mismatched output vector lengths")
	}
	if len(outputVBFsExceptLast) != len(outputValues)-1 {
		return [32]byte{}, fmt.Errorf("expected %d prior vbfs, got %d", len(outputValues)-1, len(outputVBFsExceptLast))
	}

	var sum secp256k1.ModNScalar
	for i := range inputValues {
		c := contribution(inputValues[i], inputABFs[i], inputVBFs[i])
		sum.Add(&c)
	}
	for i := 0; i < len(outputValues)-1; i++ {
		c := contribution(outputValues[i], outputABFs[i], outputVBFsExceptLast[i])
		c.Negate()
		sum.Add(&c)
	}
	// sum now holds Σin - Σout(except last). Solve for vbf_last:
	// vbf_last = sum - value_last*abf_last.
	lastIdx := len(outputValues) - 1
	abfLast := scalarFromBytes(outputABFs[lastIdx])
	product := scalarFromU64(outputValues[lastIdx])
	product.Mul(&abfLast)
	product.Negate()

	vbfLast := sum
	vbfLast.Add(&product)

	var out [32]byte
	vbfLast.PutBytesUnchecked(out[:])
	return out, nil
}
