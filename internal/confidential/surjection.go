package confidential

import (
	"crypto/sha256"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// SurjectionProof proves that an output's asset generator was derived from
// one of a set of input asset generators (plus a fresh blinding
// contribution), without revealing which input. It is an
// N-ary generalization of the rangeproof's 1-of-2 OR proof: a Schnorr ring
// signature (AOS-style) over the points generator_out - generator_in_i.
type SurjectionProof struct {
	E []([32]byte)
	S []([32]byte)
}

// ProveSurjection builds a SurjectionProof that outputGenerator was derived
// from inputGenerators[realIndex] (the caller knows the asset-blinding
// difference outputABF - inputABFs[realIndex] because it generated both):
// generator_out - generator_in = (abf_out - abf_in)*G when both share the
// same hash-to-curve base point, so that difference is the ring's real
// discrete log.
func ProveSurjection(inputGenerators [][]byte, inputAssets [][32]byte, inputABFs [][32]byte, realIndex int, outputGenerator []byte, outputAsset [32]byte, outputABF [32]byte, msg []byte) (*SurjectionProof, error) {
	n := len(inputGenerators)
	if realIndex < 0 || realIndex >= n {
		return nil, fmt.Errorf("real index %d out of range [0,%d)", realIndex, n)
	}
	if inputAssets[realIndex] != outputAsset {
		return nil, fmt.Errorf("surjection: output asset does not match chosen input asset")
	}

	outPt, err := decompress(outputGenerator)
	if err != nil {
		return nil, fmt.Errorf("decompress output generator: %w", err)
	}

	points := make([]secp256k1.JacobianPoint, n)
	for i, g := range inputGenerators {
		inPt, err := decompress(g)
		if err != nil {
			return nil, fmt.Errorf("decompress input generator %d: %w", i, err)
		}
		points[i] = subPoint(outPt, inPt)
	}

	es := make([]secp256k1.ModNScalar, n)
	ss := make([]secp256k1.ModNScalar, n)
	as := make([]secp256k1.JacobianPoint, n)

	for i := 0; i < n; i++ {
		if i == realIndex {
			continue
		}
		eb, err := RandomBlindingFactor()
		if err != nil {
			return nil, err
		}
		sb, err := RandomBlindingFactor()
		if err != nil {
			return nil, err
		}
		es[i] = scalarFromBytes(eb)
		ss[i] = scalarFromBytes(sb)
		negE := scalarMul(es[i], points[i])
		negE.ToAffine()
		negE.Y.Negate(1)
		negE.Y.Normalize()
		as[i] = addPoints(scalarBaseMul(ss[i]), negE)
	}

	kBytes, err := RandomBlindingFactor()
	if err != nil {
		return nil, err
	}
	k := scalarFromBytes(kBytes)
	as[realIndex] = scalarBaseMul(k)

	eTotal := fiatShamirChallengeN(as, msg)

	var sumOthers secp256k1.ModNScalar
	for i := 0; i < n; i++ {
		if i == realIndex {
			continue
		}
		sumOthers.Add(&es[i])
	}
	eReal := eTotal
	negOthers := sumOthers
	negOthers.Negate()
	eReal.Add(&negOthers)
	es[realIndex] = eReal

	r := scalarFromBytes(outputABF)
	inABF := scalarFromBytes(inputABFs[realIndex])
	negInABF := inABF
	negInABF.Negate()
	r.Add(&negInABF)

	sReal := k
	tmp := eReal
	tmp.Mul(&r)
	sReal.Add(&tmp)
	ss[realIndex] = sReal

	proof := &SurjectionProof{E: make([][32]byte, n), S: make([][32]byte, n)}
	for i := 0; i < n; i++ {
		proof.E[i] = scalarBytes(es[i])
		proof.S[i] = scalarBytes(ss[i])
	}
	return proof, nil
}

// VerifySurjection checks a SurjectionProof against the published input and
// output generators.
func VerifySurjection(proof *SurjectionProof, inputGenerators [][]byte, outputGenerator []byte, msg []byte) (bool, error) {
	n := len(inputGenerators)
	if len(proof.E) != n || len(proof.S) != n {
		return false, fmt.Errorf("surjection proof has %d/%d entries, want %d", len(proof.E), len(proof.S), n)
	}

	outPt, err := decompress(outputGenerator)
	if err != nil {
		return false, fmt.Errorf("decompress output generator: %w", err)
	}

	as := make([]secp256k1.JacobianPoint, n)
	var eSum secp256k1.ModNScalar
	for i := 0; i < n; i++ {
		inPt, err := decompress(inputGenerators[i])
		if err != nil {
			return false, fmt.Errorf("decompress input generator %d: %w", i, err)
		}
		p := subPoint(outPt, inPt)
		e := scalarFromBytes(proof.E[i])
		s := scalarFromBytes(proof.S[i])
		negE := scalarMul(e, p)
		negE.ToAffine()
		negE.Y.Negate(1)
		negE.Y.Normalize()
		as[i] = addPoints(scalarBaseMul(s), negE)
		eSum.Add(&e)
	}

	eTotal := fiatShamirChallengeN(as, msg)
	return eTotal.Equals(&eSum), nil
}

func fiatShamirChallengeN(as []secp256k1.JacobianPoint, msg []byte) secp256k1.ModNScalar {
	h := sha256.New()
	for _, a := range as {
		h.Write(serializeCompressed(a))
	}
	h.Write(msg)
	var s secp256k1.ModNScalar
	s.SetByteSlice(h.Sum(nil))
	return s
}

// Bytes serializes a SurjectionProof to the flat wire encoding Signer writes
// into a sidechain output's surjection-proof field: ring size, then each
// (E,S) pair.
func (p *SurjectionProof) Bytes() []byte {
	out := make([]byte, 0, len(p.E)*64+1)
	out = append(out, byte(len(p.E)))
	for i := range p.E {
		out = append(out, p.E[i][:]...)
		out = append(out, p.S[i][:]...)
	}
	return out
}
