// Package confidential implements confidential-transaction blinding:
// Pedersen value commitments, asset generators, range proofs and surjection
// proofs for the sidechain's confidential outputs, built on raw secp256k1
// group operations rather than a secp256k1-zkp binding (see DESIGN.md).
package confidential

import (
	"crypto/sha256"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// hashToCurve implements the "try and increment" construction: it hashes
// tag with an incrementing counter until the digest is a valid x-coordinate,
// then returns the even-y point at that x. This is the asset-generator base
// point H(asset) used throughout the Confidential Assets scheme.
func hashToCurve(tag []byte) secp256k1.JacobianPoint {
	var x secp256k1.FieldVal
	counter := byte(0)
	for {
		h := sha256.New()
		h.Write(tag)
		h.Write([]byte{counter})
		digest := h.Sum(nil)

		overflow := x.SetByteSlice(digest)
		if !overflow {
			var y secp256k1.FieldVal
			if secp256k1.DecompressY(&x, false, &y) {
				var p secp256k1.JacobianPoint
				p.X = x
				p.Y = y
				p.Z.SetInt(1)
				return p
			}
		}
		counter++
	}
}

// scalarFromBytes reduces a 32-byte value into a mod-n scalar. Inputs here
// are always the output of a hash or CSPRNG, so overflow (value >= n) is
// exceedingly rare; ModNScalar.SetByteSlice reduces automatically and
// reports whether it did, which callers may surface as InvalidKey-class
// errors at their discretion.
func scalarFromBytes(b [32]byte) secp256k1.ModNScalar {
	var s secp256k1.ModNScalar
	s.SetByteSlice(b[:])
	return s
}

// scalarBaseMul computes k*G in Jacobian coordinates.
func scalarBaseMul(k secp256k1.ModNScalar) secp256k1.JacobianPoint {
	var result secp256k1.JacobianPoint
	secp256k1.ScalarBaseMultNonConst(&k, &result)
	return result
}

// scalarMul computes k*P in Jacobian coordinates.
func scalarMul(k secp256k1.ModNScalar, p secp256k1.JacobianPoint) secp256k1.JacobianPoint {
	var result secp256k1.JacobianPoint
	secp256k1.ScalarMultNonConst(&k, &p, &result)
	return result
}

// addPoints computes p1+p2 in Jacobian coordinates.
func addPoints(p1, p2 secp256k1.JacobianPoint) secp256k1.JacobianPoint {
	var result secp256k1.JacobianPoint
	secp256k1.AddNonConst(&p1, &p2, &result)
	return result
}

// serializeCompressed returns the 33-byte compressed encoding of a Jacobian
// point, affine-izing it first.
func serializeCompressed(p secp256k1.JacobianPoint) []byte {
	p.ToAffine()
	pub := secp256k1.NewPublicKey(&p.X, &p.Y)
	return pub.SerializeCompressed()
}
