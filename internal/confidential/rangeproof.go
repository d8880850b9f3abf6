package confidential

import (
	"crypto/sha256"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// Range-proof constants: min_value=1, ct_exp=0,
// ct_bits=52 (the pre-bulletproofs Confidential Transactions constants).
const (
	RangeProofMinValue = 1
	RangeProofExp      = 0
	RangeProofBits     = 52
)

// bitRingProof is a 1-of-2 Schnorr OR proof that a per-bit commitment opens
// to either 0 or 2^i under the generator, without revealing which. This is
// the per-ring building block of the classic Borromean range proof; see
// DESIGN.md for the scope note on how this differs from
// libsecp256k1-zkp's bit-grouped Borromean construction.
type bitRingProof struct {
	E0, E1 [32]byte
	S0, S1 [32]byte
}

// RangeProof proves a Pedersen commitment hides a value in
// [RangeProofMinValue, RangeProofMinValue+2^RangeProofBits) without
// revealing it.
type RangeProof struct {
	BitCommitments [][]byte // compressed per-bit commitments, len == RangeProofBits
	Rings          []bitRingProof
}

func bitScalar(i int) secp256k1.ModNScalar {
	var s secp256k1.ModNScalar
	s.SetInt(1)
	for j := 0; j < i; j++ {
		s.Add(&s)
	}
	return s
}

// ProveRange builds a RangeProof that commitment = vbf*G + value*generator
// hides a value in range. scriptPubKey and the blinding
// pubkey are folded into the Fiat-Shamir transcript so the proof is bound
// to its output, matching the real rangeproof's message-binding role.
func ProveRange(value uint64, vbf [32]byte, generator []byte, scriptPubKey, blindingPubKey []byte) (*RangeProof, error) {
	if value < RangeProofMinValue {
		return nil, fmt.Errorf("value %d below range-proof minimum %d", value, RangeProofMinValue)
	}
	shifted := value - RangeProofMinValue
	if shifted>>RangeProofBits != 0 {
		return nil, fmt.Errorf("value %d exceeds %d-bit range", value, RangeProofBits)
	}

	genPt, err := decompress(generator)
	if err != nil {
		return nil, fmt.Errorf("decompress generator: %w", err)
	}

	bits := make([]uint8, RangeProofBits)
	for i := 0; i < RangeProofBits; i++ {
		bits[i] = uint8((shifted >> uint(i)) & 1)
	}

	randomizers := make([]secp256k1.ModNScalar, RangeProofBits)
	var sum secp256k1.ModNScalar
	for i := 0; i < RangeProofBits-1; i++ {
		b, err := RandomBlindingFactor()
		if err != nil {
			return nil, err
		}
		randomizers[i] = scalarFromBytes(b)
		sum.Add(&randomizers[i])
	}
	// Force the last randomizer so Σr_i == vbf (mirrors the VBF closure
	// constraint, applied internally to the proof's bit decomposition).
	vbfScalar := scalarFromBytes(vbf)
	last := vbfScalar
	negSum := sum
	negSum.Negate()
	last.Add(&negSum)
	randomizers[RangeProofBits-1] = last

	commitments := make([]secp256k1.JacobianPoint, RangeProofBits)
	compressed := make([][]byte, RangeProofBits)
	for i := 0; i < RangeProofBits; i++ {
		bitTerm := scalarMul(bitScalar(i), genPt)
		if bits[i] == 0 {
			commitments[i] = scalarBaseMul(randomizers[i])
		} else {
			commitments[i] = addPoints(scalarBaseMul(randomizers[i]), bitTerm)
		}
		compressed[i] = serializeCompressed(commitments[i])
	}

	rings := make([]bitRingProof, RangeProofBits)
	for i := 0; i < RangeProofBits; i++ {
		bitTerm := scalarMul(bitScalar(i), genPt)
		p0 := commitments[i]           // should equal r*G if bit==0
		p1 := subPoint(commitments[i], bitTerm) // should equal r*G if bit==1

		msg := rangeRingMessage(scriptPubKey, blindingPubKey, i, compressed[i])
		ring, err := proveBitRing(bits[i], randomizers[i], p0, p1, msg)
		if err != nil {
			return nil, fmt.Errorf("bit %d ring proof: %w", i, err)
		}
		rings[i] = ring
	}

	return &RangeProof{BitCommitments: compressed, Rings: rings}, nil
}

// VerifyRange checks a RangeProof against the commitment it was produced
// for.
func VerifyRange(proof *RangeProof, generator []byte, scriptPubKey, blindingPubKey []byte, commitment []byte) (bool, error) {
	if len(proof.BitCommitments) != RangeProofBits || len(proof.Rings) != RangeProofBits {
		return false, fmt.Errorf("malformed range proof: expected %d bits", RangeProofBits)
	}
	genPt, err := decompress(generator)
	if err != nil {
		return false, fmt.Errorf("decompress generator: %w", err)
	}

	var sumCommitments secp256k1.JacobianPoint
	first := true
	for i := 0; i < RangeProofBits; i++ {
		pt, err := decompress(proof.BitCommitments[i])
		if err != nil {
			return false, fmt.Errorf("decompress bit commitment %d: %w", i, err)
		}
		if first {
			sumCommitments = pt
			first = false
		} else {
			sumCommitments = addPoints(sumCommitments, pt)
		}

		bitTerm := scalarMul(bitScalar(i), genPt)
		p0 := pt
		p1 := subPoint(pt, bitTerm)
		msg := rangeRingMessage(scriptPubKey, blindingPubKey, i, proof.BitCommitments[i])
		if !verifyBitRing(proof.Rings[i], p0, p1, msg) {
			return false, nil
		}
	}

	// Σ(bit_i commitments) must equal commitment - min_value*generator.
	minValueTerm := scalarMul(bitScalar(0), genPt) // 2^0 == 1 == min_value
	commitPt, err := decompress(commitment)
	if err != nil {
		return false, fmt.Errorf("decompress commitment: %w", err)
	}
	expected := subPoint(commitPt, minValueTerm)
	expected.ToAffine()
	sumCommitments.ToAffine()
	return expected.X.Equals(&sumCommitments.X) && expected.Y.Equals(&sumCommitments.Y), nil
}

func subPoint(p secp256k1.JacobianPoint, q secp256k1.JacobianPoint) secp256k1.JacobianPoint {
	var negQ secp256k1.JacobianPoint
	negQ = q
	negQ.ToAffine()
	negQ.Y.Negate(1)
	negQ.Y.Normalize()
	return addPoints(p, negQ)
}

func rangeRingMessage(scriptPubKey, blindingPubKey []byte, bitIndex int, bitCommitment []byte) []byte {
	h := sha256.New()
	h.Write([]byte("rangeproof"))
	h.Write(scriptPubKey)
	h.Write(blindingPubKey)
	h.Write([]byte{byte(bitIndex)})
	h.Write(bitCommitment)
	return h.Sum(nil)
}

// proveBitRing implements the CDS94 1-of-2 OR proof: the real branch uses
// a fresh nonce, the simulated branch's
// commitment is derived backward from a randomly chosen (challenge,
// response) pair, and both challenges are transmitted so verification
// never needs to invert the Fiat-Shamir hash.
func proveBitRing(bit uint8, r secp256k1.ModNScalar, p0, p1 secp256k1.JacobianPoint, msg []byte) (bitRingProof, error) {
	var proof bitRingProof

	var realIdx, simulatedIdx int
	if bit == 0 {
		realIdx, simulatedIdx = 0, 1
	} else {
		realIdx, simulatedIdx = 1, 0
	}

	simE, err := RandomBlindingFactor()
	if err != nil {
		return proof, err
	}
	simS, err := RandomBlindingFactor()
	if err != nil {
		return proof, err
	}
	simEScalar := scalarFromBytes(simE)
	simSScalar := scalarFromBytes(simS)

	var simP secp256k1.JacobianPoint
	if simulatedIdx == 0 {
		simP = p0
	} else {
		simP = p1
	}
	negETerm := scalarMul(simEScalar, simP)
	negETerm.ToAffine()
	negETerm.Y.Negate(1)
	negETerm.Y.Normalize()
	simA := addPoints(scalarBaseMul(simSScalar), negETerm)

	kBytes, err := RandomBlindingFactor()
	if err != nil {
		return proof, err
	}
	k := scalarFromBytes(kBytes)
	realA := scalarBaseMul(k)

	var a0, a1 secp256k1.JacobianPoint
	if realIdx == 0 {
		a0, a1 = realA, simA
	} else {
		a0, a1 = simA, realA
	}

	eTotal := fiatShamirChallenge(a0, a1, msg)

	realEScalar := eTotal
	negSim := simEScalar
	negSim.Negate()
	realEScalar.Add(&negSim)

	realS := k
	tmp := realEScalar
	tmp.Mul(&r)
	realS.Add(&tmp)

	if realIdx == 0 {
		proof.E0 = scalarBytes(realEScalar)
		proof.S0 = scalarBytes(realS)
		proof.E1 = simE
		proof.S1 = simS
	} else {
		proof.E1 = scalarBytes(realEScalar)
		proof.S1 = scalarBytes(realS)
		proof.E0 = simE
		proof.S0 = simS
	}
	return proof, nil
}

func verifyBitRing(proof bitRingProof, p0, p1 secp256k1.JacobianPoint, msg []byte) bool {
	e0 := scalarFromBytes(proof.E0)
	e1 := scalarFromBytes(proof.E1)
	s0 := scalarFromBytes(proof.S0)
	s1 := scalarFromBytes(proof.S1)

	neg0 := scalarMul(e0, p0)
	neg0.ToAffine()
	neg0.Y.Negate(1)
	neg0.Y.Normalize()
	a0 := addPoints(scalarBaseMul(s0), neg0)

	neg1 := scalarMul(e1, p1)
	neg1.ToAffine()
	neg1.Y.Negate(1)
	neg1.Y.Normalize()
	a1 := addPoints(scalarBaseMul(s1), neg1)

	eTotal := fiatShamirChallenge(a0, a1, msg)
	var eSum secp256k1.ModNScalar
	eSum.Add(&e0)
	eSum.Add(&e1)
	return eTotal.Equals(&eSum)
}

func fiatShamirChallenge(a0, a1 secp256k1.JacobianPoint, msg []byte) secp256k1.ModNScalar {
	h := sha256.New()
	h.Write(serializeCompressed(a0))
	h.Write(serializeCompressed(a1))
	h.Write(msg)
	var s secp256k1.ModNScalar
	s.SetByteSlice(h.Sum(nil))
	return s
}

func scalarBytes(s secp256k1.ModNScalar) [32]byte {
	var out [32]byte
	s.PutBytesUnchecked(out[:])
	return out
}

// Bytes serializes a RangeProof to the flat wire encoding Signer writes into
// a sidechain output's range-proof field: bit count, then each compressed
// bit commitment, then each ring's (E0,S0,E1,S1).
func (p *RangeProof) Bytes() []byte {
	out := make([]byte, 0, len(p.BitCommitments)*33+len(p.Rings)*128+1)
	out = append(out, byte(len(p.BitCommitments)))
	for _, c := range p.BitCommitments {
		out = append(out, c...)
	}
	for _, r := range p.Rings {
		out = append(out, r.E0[:]...)
		out = append(out, r.S0[:]...)
		out = append(out, r.E1[:]...)
		out = append(out, r.S1[:]...)
	}
	return out
}
