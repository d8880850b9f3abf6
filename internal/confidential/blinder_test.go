package confidential

import (
	"bytes"
	"testing"
)

func mustAsset(b byte) [32]byte {
	var a [32]byte
	a[0] = b
	a[31] = 0xaa
	return a
}

// Blinding an output and verifying its range and surjection proofs
// against the published generators must succeed for freshly generated
// blinding factors.
func TestBlindTransaction_RoundTrip(t *testing.T) {
	asset := mustAsset(0x01)

	inputABF, err := RandomBlindingFactor()
	if err != nil {
		t.Fatalf("input abf: %v", err)
	}
	inputVBF, err := RandomBlindingFactor()
	if err != nil {
		t.Fatalf("input vbf: %v", err)
	}

	inputs := []BlindInput{{Value: 100_000, Asset: asset, ABF: inputABF, VBF: inputVBF}}
	outputs := []BlindOutput{
		{Value: 60_000, Asset: asset, ScriptPubKey: []byte{0xa9, 0x14, 0x01, 0x87}, BlindingPubKey: fakeBlindingPubKey(t)},
		{Value: 40_000, Asset: asset, ScriptPubKey: []byte{0xa9, 0x14, 0x02, 0x87}, BlindingPubKey: fakeBlindingPubKey(t)},
	}

	blinded, err := BlindTransaction(inputs, outputs)
	if err != nil {
		t.Fatalf("blind transaction: %v", err)
	}
	if len(blinded) != 2 {
		t.Fatalf("expected 2 blinded outputs, got %d", len(blinded))
	}

	inputGenerators := [][]byte{AssetGenerator(asset, inputABF)}
	for i, b := range blinded {
		ok, err := VerifyBlindedOutput(b, outputs[i].ScriptPubKey, outputs[i].BlindingPubKey, inputGenerators)
		if err != nil {
			t.Fatalf("output %d verify: %v", i, err)
		}
		if !ok {
			t.Fatalf("output %d: proofs failed to verify", i)
		}
	}
}

// Tampering with a published value commitment must break range-proof
// verification (the proof is bound to the exact commitment it was built
// against).
func TestVerifyBlindedOutput_RejectsTamperedCommitment(t *testing.T) {
	asset := mustAsset(0x02)
	inputABF, _ := RandomBlindingFactor()
	inputVBF, _ := RandomBlindingFactor()

	inputs := []BlindInput{{Value: 10_000, Asset: asset, ABF: inputABF, VBF: inputVBF}}
	outputs := []BlindOutput{
		{Value: 10_000, Asset: asset, ScriptPubKey: []byte{0xa9, 0x14, 0x03, 0x87}, BlindingPubKey: fakeBlindingPubKey(t)},
	}

	blinded, err := BlindTransaction(inputs, outputs)
	if err != nil {
		t.Fatalf("blind transaction: %v", err)
	}

	tampered := blinded[0]
	goodCommitment, err := ValueCommitment(10_001, tampered.VBF, tampered.AssetGenerator)
	if err != nil {
		t.Fatalf("build tampered commitment: %v", err)
	}
	tampered.ValueCommitment = goodCommitment

	inputGenerators := [][]byte{AssetGenerator(asset, inputABF)}
	ok, err := VerifyBlindedOutput(tampered, outputs[0].ScriptPubKey, outputs[0].BlindingPubKey, inputGenerators)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("expected tampered commitment to fail range-proof verification")
	}
}

// ClosingVBF must solve the last output's vbf so that the input and output
// value*abf+vbf contributions balance exactly.
func TestClosingVBF_BalancesContributions(t *testing.T) {
	inputABF, _ := RandomBlindingFactor()
	inputVBF, _ := RandomBlindingFactor()
	out0ABF, _ := RandomBlindingFactor()
	out0VBF, _ := RandomBlindingFactor()
	out1ABF, _ := RandomBlindingFactor()

	lastVBF, err := ClosingVBF(
		[]uint64{100_000}, [][32]byte{inputABF}, [][32]byte{inputVBF},
		[]uint64{60_000, 40_000}, [][32]byte{out0ABF, out1ABF}, [][32]byte{out0VBF},
	)
	if err != nil {
		t.Fatalf("closing vbf: %v", err)
	}

	left := contribution(100_000, inputABF, inputVBF)
	right := contribution(60_000, out0ABF, out0VBF)
	rightLast := contribution(40_000, out1ABF, lastVBF)
	right.Add(&rightLast)

	if !left.Equals(&right) {
		t.Fatal("input contributions != output contributions after closing")
	}
}

func TestAssetGenerator_Deterministic(t *testing.T) {
	asset := mustAsset(0x03)
	abf, _ := RandomBlindingFactor()
	g1 := AssetGenerator(asset, abf)
	g2 := AssetGenerator(asset, abf)
	if !bytes.Equal(g1, g2) {
		t.Fatal("asset generator must be deterministic for a fixed (asset, abf)")
	}
}

func fakeBlindingPubKey(t *testing.T) []byte {
	t.Helper()
	k, err := RandomBlindingFactor()
	if err != nil {
		t.Fatalf("random blinding factor: %v", err)
	}
	return serializeCompressed(scalarBaseMul(scalarFromBytes(k)))
}
